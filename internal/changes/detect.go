// Package changes compares two snapshots of a document and describes what
// changed between them.
package changes

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/unicode/norm"

	"github.com/starford/xmledit/internal/fidelity"
	"github.com/starford/xmledit/internal/xmldoc"
)

// GenericModification is the only entry reported when either snapshot
// cannot be parsed.
const GenericModification = "Content has been modified"

const snippetLen = 50

// Changes lists the differences between two snapshots.
type Changes struct {
	Additions     []string       `json:"additions"`
	Modifications []string       `json:"modifications"`
	Deletions     []string       `json:"deletions"`
	Fidelity      fidelity.Level `json:"fidelity"`
}

// Empty reports whether no difference was found.
func (c Changes) Empty() bool {
	return len(c.Additions) == 0 && len(c.Modifications) == 0 && len(c.Deletions) == 0
}

// element is the flat view of one element used for comparison.
type element struct {
	tag  string
	id   string
	text string
}

func (e element) key() string { return e.tag + "\x00" + e.id + "\x00" + e.text }
func (e element) tagID() string { return e.tag + "\x00" + e.id }

// Detect compares original and current as multisets of (tag, id, text)
// triples. Structural position is ignored, so moves are invisible.
func Detect(original, current string) Changes {
	origDoc, err := xmldoc.Parse(original)
	if err != nil {
		return fallback()
	}
	curDoc, err := xmldoc.Parse(current)
	if err != nil {
		return fallback()
	}
	return diff(flatten(origDoc), flatten(curDoc))
}

func fallback() Changes {
	return Changes{
		Additions:     []string{},
		Modifications: []string{GenericModification},
		Deletions:     []string{},
		Fidelity:      fidelity.Fallback,
	}
}

// flatten lists every element below the root in document order.
func flatten(doc *etree.Document) []element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	var out []element
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			out = append(out, element{
				tag:  c.FullTag(),
				id:   c.SelectAttrValue("id", ""),
				text: norm.NFC.String(strings.TrimSpace(xmldoc.TextContent(c))),
			})
			walk(c)
		}
	}
	walk(root)
	return out
}

func diff(original, current []element) Changes {
	res := Changes{
		Additions:     []string{},
		Modifications: []string{},
		Deletions:     []string{},
		Fidelity:      fidelity.Exact,
	}

	// Exact matches are consumed one for one.
	remaining := make(map[string]int, len(original))
	for _, e := range original {
		remaining[e.key()]++
	}
	var unmatched []element
	for _, e := range current {
		if remaining[e.key()] > 0 {
			remaining[e.key()]--
			continue
		}
		unmatched = append(unmatched, e)
	}

	var leftover []element
	for _, e := range original {
		if remaining[e.key()] > 0 {
			remaining[e.key()]--
			leftover = append(leftover, e)
		}
	}

	// An unmatched element that shares tag and id with a leftover original
	// is the same element with new text.
	byTagID := make(map[string][]int)
	for i, e := range leftover {
		byTagID[e.tagID()] = append(byTagID[e.tagID()], i)
	}
	used := make([]bool, len(leftover))
	for _, e := range unmatched {
		if idx := byTagID[e.tagID()]; len(idx) > 0 {
			used[idx[0]] = true
			byTagID[e.tagID()] = idx[1:]
			res.Modifications = append(res.Modifications, "Modified: "+e.tag+" content changed")
			continue
		}
		res.Additions = append(res.Additions, entry("Added", e))
	}
	for i, e := range leftover {
		if !used[i] {
			res.Deletions = append(res.Deletions, entry("Removed", e))
		}
	}
	return res
}

func entry(verb string, e element) string {
	if e.text == "" {
		return verb + ": " + e.tag
	}
	return verb + ": " + e.tag + " - " + snippet(e.text)
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}
