package markup

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/starford/xmledit/internal/fidelity"
	"github.com/starford/xmledit/internal/xmldoc"
)

// xmlToMarkupTree maps the etree DOM of a well-formed document onto an
// html.Node tree and renders it.
func xmlToMarkupTree(in string) (string, fidelity.Level, error) {
	doc, err := xmldoc.Parse(in)
	if err != nil {
		return "", fidelity.Heuristic, err
	}

	var b strings.Builder
	for _, tok := range doc.Child {
		n := markupNode(tok)
		if n == nil {
			continue
		}
		if err := html.Render(&b, n); err != nil {
			return "", fidelity.Heuristic, fmt.Errorf("markup: render: %w", err)
		}
	}
	return b.String(), fidelity.Exact, nil
}

func markupNode(tok etree.Token) *html.Node {
	switch t := tok.(type) {
	case *etree.Element:
		return markupElement(t)
	case *etree.CharData:
		return &html.Node{Type: html.TextNode, Data: t.Data}
	case *etree.Comment:
		return &html.Node{Type: html.CommentNode, Data: t.Data}
	case *etree.ProcInst:
		class := classProlog
		if t.Target == "xml" {
			class = classDeclaration
		}
		text := "<?" + t.Target
		if t.Inst != "" {
			text += " " + t.Inst
		}
		return prologNode(class, text+"?>")
	case *etree.Directive:
		return prologNode(classProlog, "<!"+t.Data+">")
	}
	return nil
}

func prologNode(class, original string) *html.Node {
	n := newElement("div")
	setAttr(n, "class", class)
	setAttr(n, attrOriginal, url.PathEscape(original))
	setAttr(n, attrSelfClosing, "true")
	return n
}

func markupElement(el *etree.Element) *html.Node {
	name := el.FullTag()
	empty := len(el.Child) == 0

	var n *html.Node
	r, known := byXML[name]
	switch {
	case name == "list":
		tag := "ul"
		if el.SelectAttrValue("type", "") == "ordered" {
			tag = "ol"
		}
		n = newElement(tag)
	case known:
		n = newElement(r.tag)
		if r.class != "" {
			setAttr(n, "class", r.class)
		}
		if r.needsElementName() {
			setAttr(n, attrXMLElement, name)
		}
	default:
		n = newElement("div")
		setAttr(n, "class", classUnknown)
		setAttr(n, attrXMLElement, name)
	}

	if id := el.SelectAttrValue("id", ""); id != "" {
		setAttr(n, "id", id)
	}
	if len(el.Attr) > 0 {
		setAttr(n, attrOriginal, url.PathEscape(xmldoc.StartTag(el, empty)))
	}
	if empty {
		setAttr(n, attrSelfClosing, "true")
	}

	if r.caption != "" {
		ref := el.SelectAttrValue("ref", "")
		setAttr(n, "contenteditable", "false")
		setAttr(n, attrRef, ref)
		n.AppendChild(&html.Node{Type: html.TextNode, Data: r.caption + ref})
	}
	if r.label != "" {
		label := newElement("span")
		setAttr(label, "class", classLabel)
		setAttr(label, "contenteditable", "false")
		label.AppendChild(&html.Node{Type: html.TextNode, Data: r.label})
		n.AppendChild(label)
	}

	for _, tok := range el.Child {
		if c := markupNode(tok); c != nil {
			n.AppendChild(c)
		}
	}
	return n
}

func newElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func setAttr(n *html.Node, key, val string) {
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, _ := getAttr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// firstClass returns the first class that belongs to the dialect mapping.
func firstClass(n *html.Node) string {
	v, _ := getAttr(n, "class")
	for _, c := range strings.Fields(v) {
		if _, ok := byTagClass[n.Data+"."+c]; ok {
			return c
		}
		switch c {
		case classReference, classUnknown, classDeclaration, classProlog:
			return c
		}
	}
	return ""
}

var errUnbalanced = errors.New("markup: unbalanced tags")

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// parseMarkup assembles the token stream into a tree without the HTML5
// insertion-mode fixups, so a <p> holding a <ul> stays nested as written.
func parseMarkup(in string) (*html.Node, error) {
	root := &html.Node{Type: html.DocumentNode}
	stack := []*html.Node{root}
	top := func() *html.Node { return stack[len(stack)-1] }

	z := html.NewTokenizer(strings.NewReader(in))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if len(stack) > 1 {
					return nil, fmt.Errorf("%w: <%s> not closed", errUnbalanced, top().Data)
				}
				return root, nil
			}
			return nil, fmt.Errorf("markup: tokenize: %w", z.Err())
		case html.TextToken:
			top().AppendChild(&html.Node{Type: html.TextNode, Data: z.Token().Data})
		case html.CommentToken:
			top().AppendChild(&html.Node{Type: html.CommentNode, Data: z.Token().Data})
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			n := &html.Node{Type: html.ElementNode, Data: tok.Data, DataAtom: tok.DataAtom, Attr: tok.Attr}
			top().AppendChild(n)
			if tt == html.StartTagToken && !voidElements[tok.Data] {
				stack = append(stack, n)
			}
		case html.EndTagToken:
			tok := z.Token()
			if voidElements[tok.Data] {
				continue
			}
			if top().Data != tok.Data || len(stack) == 1 {
				return nil, fmt.Errorf("%w: </%s> closes <%s>", errUnbalanced, tok.Data, top().Data)
			}
			stack = stack[:len(stack)-1]
		}
	}
}

// markupToXMLTree maps a markup tree back to the dialect. The side channel
// wins, then data-xml-element, then the element table.
func markupToXMLTree(in string) (string, fidelity.Level, error) {
	root, err := parseMarkup(in)
	if err != nil {
		return "", fidelity.Heuristic, err
	}
	w := &xmlWriter{level: fidelity.Exact}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		w.node(c, "")
	}
	return w.b.String(), w.level, nil
}

type xmlWriter struct {
	b     strings.Builder
	level fidelity.Level
}

func (w *xmlWriter) guessed() {
	w.level = fidelity.Worse(w.level, fidelity.Heuristic)
}

var tagNameRe = regexp.MustCompile(`^<([A-Za-z_][\w.:-]*)`)

// decodeOriginal returns the start tag carried by the side channel.
func decodeOriginal(n *html.Node) (tag, name string, ok bool) {
	v, present := getAttr(n, attrOriginal)
	if !present {
		return "", "", false
	}
	s, err := url.PathUnescape(v)
	if err != nil {
		return "", "", false
	}
	m := tagNameRe.FindStringSubmatch(s)
	if m == nil || !strings.HasSuffix(s, ">") {
		return "", "", false
	}
	return s, m[1], true
}

func (w *xmlWriter) node(n *html.Node, label string) {
	switch n.Type {
	case html.TextNode:
		text := n.Data
		if label != "" {
			if trimmed := strings.TrimLeft(text, " \t\r\n"); strings.HasPrefix(trimmed, label) {
				text = strings.TrimPrefix(trimmed, label)
				w.guessed()
			}
		}
		w.b.WriteString(xmldoc.EscapeCharData(text))
	case html.CommentNode:
		w.b.WriteString("<!--" + n.Data + "-->")
	case html.ElementNode:
		w.element(n)
	}
}

func (w *xmlWriter) element(n *html.Node) {
	class := firstClass(n)
	if class == classDeclaration || class == classProlog {
		if v, ok := getAttr(n, attrOriginal); ok {
			if s, err := url.PathUnescape(v); err == nil {
				w.b.WriteString(s)
				return
			}
		}
		w.guessed()
		return
	}
	if hasClass(n, classLabel) {
		return
	}

	open, name, ok := decodeOriginal(n)
	if _, present := getAttr(n, attrOriginal); present && !ok {
		w.guessed()
	}
	if !ok {
		open, name = w.reconstruct(n, class)
	}
	if name == "" {
		w.unwrap(n)
		return
	}

	r := byXML[name]
	if r.caption != "" {
		// The caption is display text; the ref lives in the tag.
		w.b.WriteString(selfClosed(open))
		return
	}

	sc, _ := getAttr(n, attrSelfClosing)
	if !hasContent(n) && (sc == "true" || strings.HasSuffix(open, "/>")) {
		w.b.WriteString(selfClosed(open))
		return
	}

	w.b.WriteString(openForm(open))
	label := r.label
	if hasLabelChild(n) {
		label = ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, classLabel) {
			continue
		}
		w.node(c, label)
		label = ""
	}
	w.b.WriteString("</" + name + ">")
}

func openForm(open string) string {
	if strings.HasSuffix(open, "/>") {
		return strings.TrimSuffix(open, "/>") + ">"
	}
	return open
}

func selfClosed(open string) string {
	if strings.HasSuffix(open, "/>") {
		return open
	}
	return strings.TrimSuffix(open, ">") + "/>"
}

func hasLabelChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, classLabel) {
			return true
		}
	}
	return false
}

// hasContent reports whether n holds anything besides synthesized labels.
func hasContent(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return true
			}
		case html.ElementNode:
			if !hasClass(c, classLabel) {
				return true
			}
		case html.CommentNode:
			return true
		}
	}
	return false
}

// reconstruct rebuilds the XML start tag of an element that carries no
// usable side channel.
func (w *xmlWriter) reconstruct(n *html.Node, class string) (open, name string) {
	if name, ok := getAttr(n, attrXMLElement); ok && tagNameRe.MatchString("<"+name) {
		if r, known := byXML[name]; known && r.caption != "" {
			return refTag(name, w.refValue(n, r.caption)), name
		}
		return "<" + name + ">", name
	}

	switch {
	case n.Data == "ul":
		return `<list type="unordered">`, "list"
	case n.Data == "ol":
		return `<list type="ordered">`, "list"
	case class == classReference:
		text := textOf(n)
		name := "topicRef"
		caption := topicCaption
		if strings.Contains(text, strings.TrimSpace(sectionCaption)) {
			name, caption = "sectionRef", sectionCaption
		}
		return refTag(name, w.refValue(n, caption)), name
	}

	if r, ok := byTagClass[n.Data+"."+class]; ok {
		return "<" + r.xml + ">", r.xml
	}
	switch n.Data {
	case "b":
		w.guessed()
		return "<bold>", "bold"
	case "i":
		w.guessed()
		return "<italic>", "italic"
	case "br":
		w.guessed()
		return "<br/>", "br"
	}
	return "", ""
}

func refTag(name, ref string) string {
	return "<" + name + ` ref="` + xmldoc.EscapeText(ref) + `"/>`
}

func (w *xmlWriter) refValue(n *html.Node, caption string) string {
	if ref, ok := getAttr(n, attrRef); ok {
		return ref
	}
	w.guessed()
	text := strings.TrimSpace(textOf(n))
	if i := strings.Index(text, ": "); i >= 0 && strings.HasPrefix(caption, text[:i]) {
		return strings.TrimSpace(text[i+2:])
	}
	return strings.TrimSpace(strings.TrimPrefix(text, caption))
}

// unwrap drops a markup element that has no dialect counterpart and keeps
// its children.
func (w *xmlWriter) unwrap(n *html.Node) {
	w.guessed()
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c, "")
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
