package xmldoc

import (
	"bytes"
	"fmt"
	"regexp"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/starford/xmledit/internal/apperr"
)

var declEncodingRe = regexp.MustCompile(`^\s*<\?xml[^>]*?encoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// Decode turns imported bytes into a UTF-8 string. A byte order mark wins,
// then the encoding named in the XML declaration, then UTF-8.
func Decode(data []byte) (string, error) {
	var enc encoding.Encoding = unicode.UTF8
	if m := declEncodingRe.FindSubmatch(data); m != nil {
		e, name := charset.Lookup(string(m[1]))
		if e == nil {
			return "", fmt.Errorf("xmldoc: %w: unsupported encoding %q", apperr.ErrInvalid, m[1])
		}
		if name != "utf-8" {
			enc = e
		}
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("xmldoc: decode: %w", err)
	}
	return string(bytes.TrimPrefix(out, []byte("\ufeff"))), nil
}
