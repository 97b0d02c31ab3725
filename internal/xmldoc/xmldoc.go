// Package xmldoc holds the XML plumbing shared by the transcoder, the change
// detector, the revision composer and the catalog: strict well-formedness
// checks, DOM parsing, serialization and charset handling.
package xmldoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/starford/xmledit/internal/apperr"
)

// Validation is the outcome of a well-formedness check.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Line  int    `json:"line,omitempty"`
}

// passthrough keeps already-decoded input as is. Documents reach this
// package as Go strings, so any encoding= in the declaration is stale.
func passthrough(_ string, r io.Reader) (io.Reader, error) { return r, nil }

// Validate runs a strict token pass over s. It reports mismatched or
// unclosed tags, a missing or repeated root element and stray text
// outside the root.
func Validate(s string) Validation {
	dec := xml.NewDecoder(strings.NewReader(s))
	dec.Strict = true
	dec.CharsetReader = passthrough

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				return Validation{Error: syn.Msg, Line: syn.Line}
			}
			line, _ := dec.InputPos()
			return Validation{Error: err.Error(), Line: line}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					line, _ := dec.InputPos()
					return Validation{Error: fmt.Sprintf("multiple root elements: <%s>", t.Name.Local), Line: line}
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				line, _ := dec.InputPos()
				return Validation{Error: "text outside the root element", Line: line}
			}
		}
	}
	if roots == 0 {
		return Validation{Error: "no root element"}
	}
	return Validation{Valid: true}
}

// Parse validates s and reads it into an etree document.
func Parse(s string) (*etree.Document, error) {
	if v := Validate(s); !v.Valid {
		return nil, fmt.Errorf("xmldoc: %w: %s", apperr.ErrMalformed, v.Error)
	}
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = passthrough
	if err := doc.ReadFromString(s); err != nil {
		return nil, fmt.Errorf("xmldoc: %w: %v", apperr.ErrMalformed, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("xmldoc: %w: no root element", apperr.ErrMalformed)
	}
	return doc, nil
}

// Serialize writes doc back to text.
func Serialize(doc *etree.Document) (string, error) {
	s, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("xmldoc: serialize: %w", err)
	}
	return s, nil
}

// PrettyPrint puts a newline between every pair of adjacent tags and drops
// blank lines. It does not indent.
func PrettyPrint(s string) string {
	s = strings.ReplaceAll(s, "><", ">\n<")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// TextContent returns the concatenated character data of el and all of its
// descendants, like the DOM textContent property.
func TextContent(el *etree.Element) string {
	var b strings.Builder
	writeText(&b, el)
	return b.String()
}

func writeText(b *strings.Builder, el *etree.Element) {
	for _, c := range el.Child {
		switch t := c.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			writeText(b, t)
		}
	}
}

// StartTag rebuilds the start tag of el from its prefix, name and
// attributes in document order.
func StartTag(el *etree.Element, selfClosing bool) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(el.FullTag())
	for i := range el.Attr {
		a := &el.Attr[i]
		b.WriteByte(' ')
		b.WriteString(a.FullKey())
		b.WriteString(`="`)
		b.WriteString(EscapeText(a.Value))
		b.WriteByte('"')
	}
	if selfClosing {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}
	return b.String()
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeText escapes the five predefined XML entities.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

var charEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeCharData escapes only what character data requires.
func EscapeCharData(s string) string {
	return charEscaper.Replace(s)
}
