// Package revision appends revision records to documents and reads them
// back.
package revision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/starford/xmledit/internal/fidelity"
	"github.com/starford/xmledit/internal/xmldoc"
)

// Record is one finalized revision. Records are values and are never
// changed after creation.
type Record struct {
	Number    string    `json:"number"`
	Date      string    `json:"date"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is a document with a revision inserted.
type Result struct {
	XML      string         `json:"xml"`
	Fidelity fidelity.Level `json:"fidelity"`
}

const (
	containerTag = "Revisions"
	revisionTag  = "Revision"
)

// Template renders rec as the literal block spliced into documents that
// cannot be parsed.
func Template(rec Record) string {
	return "  <Revision>\n" +
		"    <RevisionNumber>" + xmldoc.EscapeText(rec.Number) + "</RevisionNumber>\n" +
		"    <RevisionDate>" + xmldoc.EscapeText(rec.Date) + "</RevisionDate>\n" +
		"    <RevisionComment>" + xmldoc.EscapeText(rec.Comment) + "</RevisionComment>\n" +
		"  </Revision>"
}

// Insert appends rec to the Revisions container of doc, creating the
// container as the first element of the root when it is missing. A
// document that does not parse gets the block spliced in textually, and
// when even that is impossible a comment carrying rec.Comment is appended.
// Insert never merges: the same record inserted twice appears twice.
func Insert(doc string, rec Record) Result {
	if out, err := insertDOM(doc, rec); err == nil {
		return Result{XML: out, Fidelity: fidelity.Exact}
	}
	if out, ok := insertText(doc, rec); ok {
		return Result{XML: out, Fidelity: fidelity.Heuristic}
	}
	return Result{XML: doc + "\n<!-- Revision: " + commentSafe(rec.Comment) + " -->", Fidelity: fidelity.Fallback}
}

func insertDOM(s string, rec Record) (string, error) {
	doc, err := xmldoc.Parse(s)
	if err != nil {
		return "", err
	}
	root := doc.Root()

	container := root.FindElement("//" + containerTag)
	if container == nil {
		container = etree.NewElement(containerTag)
		if first := firstElement(root); first != nil {
			root.InsertChildAt(first.Index(), container)
		} else {
			root.AddChild(container)
		}
	}

	r := container.CreateElement(revisionTag)
	r.CreateElement("RevisionNumber").SetText(rec.Number)
	r.CreateElement("RevisionDate").SetText(rec.Date)
	r.CreateElement("RevisionComment").SetText(rec.Comment)

	out, err := xmldoc.Serialize(doc)
	if err != nil {
		return "", fmt.Errorf("revision: serialize: %w", err)
	}
	return xmldoc.PrettyPrint(out), nil
}

func firstElement(el *etree.Element) *etree.Element {
	for _, c := range el.Child {
		if e, ok := c.(*etree.Element); ok {
			return e
		}
	}
	return nil
}

var (
	declRe      = regexp.MustCompile(`^\s*<\?xml[^>]*\?>\s*`)
	rootStartRe = regexp.MustCompile(`<[A-Za-z_][^>]*>`)
)

const closeContainer = "</" + containerTag + ">"

// insertText splices the template into raw text. It needs a root start tag
// that is not self-closing.
func insertText(s string, rec Record) (string, bool) {
	block := Template(rec) + "\n  " + closeContainer

	if strings.Contains(s, closeContainer) {
		return strings.Replace(s, closeContainer, block, 1), true
	}

	declEnd := 0
	if m := declRe.FindStringIndex(s); m != nil {
		declEnd = m[1]
	}
	loc := rootStartRe.FindStringIndex(s[declEnd:])
	if loc == nil {
		return "", false
	}
	at := declEnd + loc[1]
	if strings.HasSuffix(s[:at], "/>") {
		return "", false
	}
	return s[:at] + "\n  <" + containerTag + ">\n" + block + s[at:], true
}

func commentSafe(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "- -")
	}
	return strings.TrimSuffix(s, "-")
}

// NextNumber increments the minor part of a major.minor revision number.
// Anything else is returned unchanged.
func NextNumber(n string) string {
	parts := strings.Split(n, ".")
	if len(parts) < 2 {
		return n
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return n
	}
	return parts[0] + "." + strconv.Itoa(minor+1)
}

// Today returns the current UTC date as YYYY-MM-DD. A nil clock means
// time.Now.
func Today(clock func() time.Time) string {
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Format(time.DateOnly)
}

// Extract lists the revisions recorded in doc in document order.
func Extract(doc string) ([]Record, error) {
	d, err := xmldoc.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("revision: extract: %w", err)
	}
	var out []Record
	for _, el := range d.FindElements("//" + containerTag + "/" + revisionTag) {
		out = append(out, Record{
			Number:  childText(el, "RevisionNumber"),
			Date:    childText(el, "RevisionDate", "revisionDate"),
			Comment: childText(el, "RevisionComment"),
		})
	}
	return out, nil
}

func childText(el *etree.Element, tags ...string) string {
	for _, tag := range tags {
		if c := el.SelectElement(tag); c != nil {
			return strings.TrimSpace(xmldoc.TextContent(c))
		}
	}
	return ""
}
