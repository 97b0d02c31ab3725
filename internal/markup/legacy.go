package markup

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/starford/xmledit/internal/xmldoc"
)

// The legacy scanner works on tag text alone and keeps no element stack.
// A generic closing marker is resolved by scanning the output written so
// far for the most recently opened container that has not been closed yet.
// Interleaved containers of different kinds can resolve to the wrong tag.

var (
	tokenRe = regexp.MustCompile(`<!--[\s\S]*?-->|<\?[\s\S]*?\?>|<!\[CDATA\[[\s\S]*?\]\]>|<![^>]*>|<(/?)([A-Za-z_][\w.:-]*)((?:[^>"']|"[^"]*"|'[^']*')*?)\s*(/?)>`)
	attrRe  = regexp.MustCompile(`([A-Za-z_][\w.:-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

type tagToken struct {
	raw         string
	closing     bool
	name        string
	attrs       string
	selfClosing bool
}

func attrValue(attrs, key string) (string, bool) {
	for _, m := range attrRe.FindAllStringSubmatch(attrs, -1) {
		if m[1] == key {
			if m[2] != "" || m[3] == "" {
				return html.UnescapeString(m[2]), true
			}
			return html.UnescapeString(m[3]), true
		}
	}
	return "", false
}

// scan walks in, calling text for character data between tokens, special
// for comments, processing instructions, CDATA and directives, and tag
// for element tags.
func scan(in string, text func(string), special func(string), tag func(tagToken)) {
	pos := 0
	for _, m := range tokenRe.FindAllStringSubmatchIndex(in, -1) {
		if m[0] > pos {
			text(in[pos:m[0]])
		}
		raw := in[m[0]:m[1]]
		if m[4] < 0 {
			special(raw)
		} else {
			tag(tagToken{
				raw:         raw,
				closing:     in[m[2]:m[3]] == "/",
				name:        in[m[4]:m[5]],
				attrs:       in[m[6]:m[7]],
				selfClosing: in[m[8]:m[9]] == "/",
			})
		}
		pos = m[1]
	}
	if pos < len(in) {
		text(in[pos:])
	}
}

// lastUnclosed returns the candidate whose most recent opening tag in out
// comes after its most recent closing tag, preferring the latest opening.
func lastUnclosed(out string, candidates []string) (string, bool) {
	best, bestIdx := "", -1
	for _, name := range candidates {
		open := lastOpenIndex(out, name)
		if open < 0 || open < strings.LastIndex(out, "</"+name+">") {
			continue
		}
		if open > bestIdx {
			best, bestIdx = name, open
		}
	}
	return best, bestIdx >= 0
}

// lastOpenIndex finds the last non-self-closing start tag of name.
func lastOpenIndex(out, name string) int {
	prefix := "<" + name
	end := len(out)
	for end > 0 {
		i := strings.LastIndex(out[:end], prefix)
		if i < 0 {
			return -1
		}
		rest := out[i+len(prefix):]
		if rest != "" && (rest[0] == '>' || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\r') {
			if gt := strings.IndexByte(rest, '>'); gt > 0 && rest[gt-1] == '/' {
				end = i
				continue
			}
			return i
		}
		end = i
	}
	return -1
}

func xmlToMarkupLegacy(in string) string {
	var b strings.Builder
	text := func(s string) { b.WriteString(s) }
	special := func(raw string) {
		switch {
		case strings.HasPrefix(raw, "<!--"):
			b.WriteString(raw)
		case strings.HasPrefix(raw, "<![CDATA["):
			body := strings.TrimSuffix(strings.TrimPrefix(raw, "<![CDATA["), "]]>")
			b.WriteString(html.EscapeString(body))
		case strings.HasPrefix(raw, "<?xml"):
			b.WriteString(`<div class="` + classDeclaration + `" data-original="` + url.PathEscape(raw) + `" data-self-closing="true"></div>`)
		default:
			b.WriteString(`<div class="` + classProlog + `" data-original="` + url.PathEscape(raw) + `" data-self-closing="true"></div>`)
		}
	}
	tag := func(t tagToken) {
		if t.closing {
			b.WriteString(legacyMarkupClose(t.name, b.String()))
			return
		}
		b.WriteString(legacyMarkupOpen(t))
	}
	scan(in, text, special, tag)
	return b.String()
}

func legacyMarkupOpen(t tagToken) string {
	original := ` ` + attrOriginal + `="` + url.PathEscape(t.raw) + `"`
	self := ""
	if t.selfClosing {
		self = ` ` + attrSelfClosing + `="true"`
	}

	if t.name == "list" {
		tag := "ul"
		if v, _ := attrValue(t.attrs, "type"); v == "ordered" {
			tag = "ol"
		}
		if t.selfClosing {
			return "<" + tag + original + self + "></" + tag + ">"
		}
		return "<" + tag + original + ">"
	}

	r, known := byXML[t.name]
	if !known {
		return t.raw
	}

	if r.caption != "" {
		ref, _ := attrValue(t.attrs, "ref")
		open := `<p class="` + classReference + `" contenteditable="false" ` + attrRef + `="` + html.EscapeString(ref) + `"` + original + `>` + r.caption + html.EscapeString(ref)
		if t.selfClosing {
			return open + "</p>"
		}
		return open
	}

	attrs := ""
	if r.class != "" {
		attrs += ` class="` + r.class + `"`
	}
	if r.needsElementName() {
		attrs += ` ` + attrXMLElement + `="` + r.xml + `"`
	}
	if id, ok := attrValue(t.attrs, "id"); ok {
		attrs += ` id="` + html.EscapeString(id) + `"`
	}
	open := "<" + r.tag + attrs + original + self + ">" + r.label
	if t.selfClosing {
		return open + "</" + r.tag + ">"
	}
	return open
}

func legacyMarkupClose(name, out string) string {
	if name == "list" {
		if tag, ok := lastUnclosed(out, []string{"ul", "ol"}); ok {
			return "</" + tag + ">"
		}
		return "</ul>"
	}
	if r, known := byXML[name]; known {
		return "</" + r.tag + ">"
	}
	return "</" + name + ">"
}

// divClose holds the candidates for a generic </div>: the dialect
// containers, filled in init, then a literal div. A div.xml-element or any
// other element outside this list is invisible to the scan, so its </div>
// resolves to the enclosing container.
var divClose []string

var spanClose = []string{"RevisionNumber", "RevisionDate", "revisionDate", "RevisionComment", "span"}

// legacyReverse maps markup tags with no side channel onto the dialect.
var legacyReverse = map[string]string{
	"h1":     "title",
	"p":      "para",
	"strong": "bold",
	"b":      "bold",
	"em":     "italic",
	"i":      "italic",
	"li":     "item",
	"header": "frontMatter",
}

type legacyWriter struct {
	b strings.Builder

	// skipName/skipDepth swallow the content of an element whose XML
	// counterpart was already written in full.
	skipName  string
	skipDepth int

	// label is stripped from the next text run.
	label string
	// refElem is set while the ref of a reference marker still has to be
	// read from its caption.
	refElem string
}

func markupToXMLLegacy(in string) string {
	w := &legacyWriter{}
	scan(in, w.text, w.special, w.tag)
	w.flushRef("")
	return w.b.String()
}

func (w *legacyWriter) skip(name string) {
	w.skipName, w.skipDepth = name, 1
}

func (w *legacyWriter) flushRef(caption string) {
	if w.refElem == "" {
		return
	}
	elem := w.refElem
	if elem == "?" {
		elem = "topicRef"
		if strings.Contains(caption, "Section") {
			elem = "sectionRef"
		}
	}
	ref := caption
	if i := strings.Index(ref, ": "); i >= 0 {
		ref = ref[i+2:]
	}
	w.b.WriteString(refTag(elem, strings.TrimSpace(ref)))
	w.refElem = ""
}

func (w *legacyWriter) text(s string) {
	s = html.UnescapeString(s)
	if w.refElem != "" {
		w.flushRef(strings.TrimSpace(s))
		return
	}
	if w.skipDepth > 0 {
		return
	}
	if w.label != "" {
		if trimmed := strings.TrimLeft(s, " \t\r\n"); strings.HasPrefix(trimmed, w.label) {
			s = strings.TrimPrefix(trimmed, w.label)
		}
		w.label = ""
	}
	w.b.WriteString(xmldoc.EscapeCharData(s))
}

func (w *legacyWriter) special(raw string) {
	if w.skipDepth == 0 && strings.HasPrefix(raw, "<!--") {
		w.b.WriteString(raw)
	}
}

func (w *legacyWriter) tag(t tagToken) {
	w.flushRef("")
	name := strings.ToLower(t.name)
	if w.skipDepth > 0 {
		if name == w.skipName && !t.selfClosing {
			if t.closing {
				w.skipDepth--
			} else {
				w.skipDepth++
			}
		}
		return
	}
	w.label = ""

	if t.closing {
		w.b.WriteString(legacyXMLClose(name, t.name, w.b.String()))
		return
	}

	class, _ := attrValue(t.attrs, "class")
	classes := strings.Fields(class)
	has := func(c string) bool {
		for _, x := range classes {
			if x == c {
				return true
			}
		}
		return false
	}

	if v, ok := attrValue(t.attrs, attrOriginal); ok {
		if orig, err := url.PathUnescape(v); err == nil && strings.HasPrefix(orig, "<") {
			w.b.WriteString(orig)
			selfClosing := strings.HasSuffix(orig, "/>") || strings.HasPrefix(orig, "<?") || strings.HasPrefix(orig, "<!")
			if selfClosing && !t.selfClosing && !voidElements[name] {
				w.skip(name)
			}
			if m := tagNameRe.FindStringSubmatch(orig); m != nil {
				w.label = byXML[m[1]].label
			}
			return
		}
	}

	if name == "p" && has(classReference) {
		elem, _ := attrValue(t.attrs, attrXMLElement)
		if ref, ok := attrValue(t.attrs, attrRef); ok {
			if elem == "" {
				elem = "topicRef"
			}
			w.b.WriteString(refTag(elem, ref))
		} else if elem != "" {
			w.refElem = elem
		} else {
			w.refElem = "?"
		}
		if !t.selfClosing {
			w.skip(name)
		}
		return
	}

	if elem, ok := attrValue(t.attrs, attrXMLElement); ok && elem != "" {
		w.b.WriteString("<" + elem + keptAttrs(t.attrs) + closeMark(t.selfClosing))
		w.label = byXML[elem].label
		return
	}
	for _, c := range classes {
		if r, ok := byTagClass[name+"."+c]; ok {
			w.b.WriteString("<" + r.xml + keptAttrs(t.attrs) + closeMark(t.selfClosing))
			w.label = r.label
			return
		}
	}
	switch name {
	case "ul":
		w.b.WriteString(`<list type="unordered">`)
		return
	case "ol":
		w.b.WriteString(`<list type="ordered">`)
		return
	case "br":
		w.b.WriteString("<br/>")
		return
	}
	if has(classLabel) {
		if !t.selfClosing {
			w.skip(name)
		}
		return
	}
	if x, ok := legacyReverse[name]; ok {
		w.b.WriteString("<" + x + keptAttrs(t.attrs) + closeMark(t.selfClosing))
		return
	}
	w.b.WriteString("<" + t.name + keptAttrs(t.attrs) + closeMark(t.selfClosing))
}

func closeMark(selfClosing bool) string {
	if selfClosing {
		return "/>"
	}
	return ">"
}

// keptAttrs drops the markup-only attributes and keeps the rest.
func keptAttrs(attrs string) string {
	var b strings.Builder
	for _, m := range attrRe.FindAllStringSubmatch(attrs, -1) {
		key := strings.ToLower(m[1])
		if key == "class" || key == "contenteditable" || strings.HasPrefix(key, "data-") {
			continue
		}
		val := m[2]
		if val == "" {
			val = m[3]
		}
		b.WriteString(" " + m[1] + `="` + xmldoc.EscapeText(html.UnescapeString(val)) + `"`)
	}
	return b.String()
}

func legacyXMLClose(name, raw, out string) string {
	switch name {
	case "div":
		if x, ok := lastUnclosed(out, divClose); ok {
			return "</" + x + ">"
		}
		return "</div>"
	case "span":
		if x, ok := lastUnclosed(out, spanClose); ok {
			return "</" + x + ">"
		}
		return "</span>"
	case "ul", "ol":
		return "</list>"
	case "br":
		return ""
	}
	if x, ok := legacyReverse[name]; ok {
		return "</" + x + ">"
	}
	return "</" + raw + ">"
}
