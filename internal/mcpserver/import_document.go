package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/xmledit/internal/catalog"
	"github.com/starford/xmledit/internal/storage"
	"github.com/starford/xmledit/internal/xmldoc"
)

const maxDocumentSize = 10 << 20 // 10 MB

var (
	xmlMIMETypes = map[string]bool{
		"application/xml": true,
		"text/xml":        true,
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type importResult struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

func (s *Server) importDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target := req.GetString("path", "")

	var data []byte
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURI(rawURL)
	} else {
		data, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxDocumentSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxDocumentSize)), nil
	}

	content, err := xmldoc.Decode(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v := xmldoc.Validate(content); !v.Valid {
		return mcp.NewToolResultError(fmt.Sprintf("document is not well formed (line %d): %s", v.Line, v.Error)), nil
	}

	if target == "" {
		target = filenameFromURL(rawURL)
	}
	target = sanitizePath(target)

	if _, readErr := s.store.Read(target); readErr == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document already exists: %s", target)), nil
	}
	// The original bytes are stored so the declared encoding stays true.
	if err := s.store.Write(target, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save document: %v", err)), nil
	}
	if err := catalog.IndexFile(s.db, target, data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.db.GetDocument(target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.Marshal(importResult{Path: doc.Path, Kind: string(doc.Kind), Title: doc.Title})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI carrying XML.
func decodeDataURI(uri string) ([]byte, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}

	mime := strings.Split(meta, ";")[0]
	if mime != "" && !xmlMIMETypes[mime] {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}

	if !strings.Contains(meta, ";base64") {
		data, err := url.PathUnescape(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid percent-encoded data: %w", err)
		}
		return []byte(data), nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// fetchHTTP downloads a document from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}

	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", maxDocumentSize)
	}
	return data, nil
}

// blockedHost reports addresses downloads must not reach: loopback and the
// AWS/GCP/Azure metadata endpoint.
var blockedHost = func(ip net.IP) bool {
	return ip.IsLoopback() || ip.Equal(net.ParseIP("169.254.169.254"))
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if blockedHost(ip) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// filenameFromURL tries to extract a file name from a URL, falling back to UUID.
func filenameFromURL(rawURL string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" {
				return base
			}
		}
	}
	return uuid.New().String() + storage.Ext
}

// sanitizePath keeps directory segments but strips unsafe characters from
// each, and forces the .xml extension.
func sanitizePath(p string) string {
	var parts []string
	for _, seg := range strings.Split(strings.ReplaceAll(p, `\`, "/"), "/") {
		seg = safeFilenameRe.ReplaceAllString(seg, "_")
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		parts = []string{uuid.New().String()}
	}
	name := strings.Join(parts, "/")
	if !strings.EqualFold(path.Ext(name), storage.Ext) {
		name += storage.Ext
	}
	return name
}
