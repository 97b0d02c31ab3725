package markup

// rule maps one XML element of the dialect to its markup counterpart.
type rule struct {
	xml   string
	tag   string
	class string
	// label is synthesized text shown before the content and stripped on
	// the way back.
	label string
	// caption prefixes the ref value of a reference marker.
	caption string
	// canonical rules are the ones picked when only tag and class are known.
	canonical bool
}

const (
	topicCaption   = "📄 Topic Reference: "
	sectionCaption = "📋 Section Reference: "
)

var rules = []rule{
	{xml: "title", tag: "h1", canonical: true},
	{xml: "para", tag: "p", canonical: true},
	{xml: "paragraph", tag: "p"},
	{xml: "bold", tag: "strong", canonical: true},
	{xml: "italic", tag: "em", canonical: true},
	{xml: "item", tag: "li", canonical: true},
	{xml: "product", tag: "div", class: "product", canonical: true},
	{xml: "topic", tag: "div", class: "topic", canonical: true},
	{xml: "section", tag: "div", class: "section", canonical: true},
	{xml: "Revisions", tag: "div", class: "revisions-section", canonical: true},
	{xml: "Revision", tag: "div", class: "revision", canonical: true},
	{xml: "revisionMetadata", tag: "div", class: "revision-metadata", canonical: true},
	{xml: "revisionComment", tag: "div", class: "revision-comment", label: "Comment: ", canonical: true},
	{xml: "frontMatter", tag: "header", canonical: true},
	{xml: "RevisionNumber", tag: "span", class: "revision-number", label: "Rev: ", canonical: true},
	{xml: "RevisionDate", tag: "span", class: "revision-date", label: "Date: ", canonical: true},
	{xml: "revisionDate", tag: "span", class: "revision-date", label: "Date: "},
	{xml: "RevisionComment", tag: "span", class: "revision-comment", label: "Comment: ", canonical: true},
	{xml: "topicRef", tag: "p", class: "reference", caption: topicCaption},
	{xml: "sectionRef", tag: "p", class: "reference", caption: sectionCaption},
}

// Markup classes that carry no dialect element of their own.
const (
	classDeclaration = "xml-declaration"
	classProlog      = "xml-prolog"
	classUnknown     = "xml-element"
	classLabel       = "xml-label"
	classReference   = "reference"
)

// Markup attributes of the round-trip side channel.
const (
	attrOriginal    = "data-original"
	attrXMLElement  = "data-xml-element"
	attrSelfClosing = "data-self-closing"
	attrRef         = "data-ref"
)

var (
	byXML      = make(map[string]rule, len(rules))
	byTagClass = make(map[string]rule)
)

func init() {
	for _, r := range rules {
		byXML[r.xml] = r
		if r.canonical {
			byTagClass[r.tag+"."+r.class] = r
		}
		if r.tag == "div" {
			divClose = append(divClose, r.xml)
		}
	}
	divClose = append(divClose, "div")
}

// needsElementName reports whether the reverse mapping of r cannot be
// derived from tag and class alone.
func (r rule) needsElementName() bool {
	return !r.canonical || r.xml == "revisionComment"
}
