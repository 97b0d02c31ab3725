// Package checksum computes the content digests used for optimistic
// concurrency on documents and for incremental catalog sync.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Match reports whether ifMatch is empty or equals the digest of data.
// Surrounding quotes (ETag form) are ignored.
func Match(data []byte, ifMatch string) bool {
	if n := len(ifMatch); n >= 2 && ifMatch[0] == '"' && ifMatch[n-1] == '"' {
		ifMatch = ifMatch[1 : n-1]
	}
	return ifMatch == "" || ifMatch == Sum(data)
}
