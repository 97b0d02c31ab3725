// Package parser extracts catalog summaries (kind, title, cross references)
// from XML documents.
package parser

import (
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/starford/xmledit/internal/xmldoc"
)

// Kind classifies a document by its root element.
type Kind string

const (
	KindIndex   Kind = "index"
	KindTopic   Kind = "topic"
	KindSection Kind = "section"
	KindError   Kind = "error"
	KindUnknown Kind = "unknown"
)

// Summary holds the output of parsing one XML document.
type Summary struct {
	Filename   string            `json:"filename"`
	Kind       Kind              `json:"kind"`
	Root       string            `json:"root,omitempty"`
	Title      string            `json:"title"`
	Subtype    string            `json:"subtype,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	References []string          `json:"references"`
	Error      string            `json:"error,omitempty"`
	// Text is the document's character data, used for full-text search.
	Text string `json:"-"`
}

// ParseDocument summarizes raw document bytes. It never fails: documents
// that do not parse come back as KindError.
func ParseDocument(data []byte, filename string) *Summary {
	s := &Summary{Filename: filename, References: []string{}}

	content, err := xmldoc.Decode(data)
	if err != nil {
		return failed(s, err)
	}
	doc, err := xmldoc.Parse(content)
	if err != nil {
		return failed(s, err)
	}

	root := doc.Root()
	s.Root = root.Tag
	s.Attributes = make(map[string]string, len(root.Attr))
	for _, a := range root.Attr {
		s.Attributes[a.FullKey()] = a.Value
	}
	s.Text = strings.Join(strings.Fields(xmldoc.TextContent(root)), " ")

	switch root.Tag {
	case "product":
		s.Kind = KindIndex
		s.Title = firstText(doc, "title", "Product Index")
		s.Subtype = s.Attributes["manualCode"]
		s.References = refs(doc, "topicRef")
	case "topic":
		s.Kind = KindTopic
		s.Title = firstText(doc, "title", "Untitled Topic")
		s.Subtype = attrOr(s.Attributes, "type", "chapter")
		s.References = refs(doc, "sectionRef")
	case "section":
		s.Kind = KindSection
		s.Title = firstText(doc, "para", "")
		if s.Title == "" {
			s.Title = firstText(doc, "paragraph", "Untitled Section")
		}
		s.Subtype = attrOr(s.Attributes, "type", "definition")
	default:
		s.Kind = KindUnknown
		s.Title = root.Tag + " Document"
	}
	return s
}

func failed(s *Summary, err error) *Summary {
	s.Kind = KindError
	s.Title = "Error: " + s.Filename
	s.Error = err.Error()
	return s
}

// firstText returns the trimmed text of the first element named tag in
// document order, or def when there is none or it is blank.
func firstText(doc *etree.Document, tag, def string) string {
	el := doc.FindElement("//" + tag)
	if el == nil {
		return def
	}
	if t := strings.TrimSpace(xmldoc.TextContent(el)); t != "" {
		return t
	}
	return def
}

func refs(doc *etree.Document, tag string) []string {
	out := []string{}
	for _, el := range doc.FindElements("//" + tag) {
		if r := el.SelectAttrValue("ref", ""); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func attrOr(attrs map[string]string, key, def string) string {
	if v := attrs[key]; v != "" {
		return v
	}
	return def
}

var kindOrder = map[Kind]int{
	KindIndex:   0,
	KindTopic:   1,
	KindSection: 2,
	KindError:   3,
	KindUnknown: 4,
}

func rank(k Kind) int {
	if r, ok := kindOrder[k]; ok {
		return r
	}
	return len(kindOrder)
}

// Less orders summaries for display: indexes, topics, sections, errors
// and unknown documents, each group by title.
func Less(a, b *Summary) bool {
	if ra, rb := rank(a.Kind), rank(b.Kind); ra != rb {
		return ra < rb
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.Filename < b.Filename
}

// Sort orders list in place with Less.
func Sort(list []*Summary) {
	slices.SortStableFunc(list, func(a, b *Summary) int {
		switch {
		case Less(a, b):
			return -1
		case Less(b, a):
			return 1
		}
		return 0
	})
}
