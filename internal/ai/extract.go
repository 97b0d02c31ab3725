package ai

import (
	"regexp"
	"strings"
)

var (
	fencedRe  = regexp.MustCompile("(?s)```xml\\s*\\n(.*?)\\n\\s*```")
	declRe    = regexp.MustCompile(`(?s)<\?xml.*</[^>]+>`)
	elementRe = regexp.MustCompile(`(?s)<[A-Za-z_][^>]*>.*</[^>]+>`)
	selfRe    = regexp.MustCompile(`<[A-Za-z_][^>]*/>`)
)

// ExtractXML pulls an XML document out of a model reply: a fenced xml block
// first, then everything from an XML declaration to the last closing tag,
// then from the first start tag to the last closing tag.
func ExtractXML(text string) (string, bool) {
	if m := fencedRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := declRe.FindString(text); m != "" {
		return m, true
	}
	if m := elementRe.FindString(text); m != "" {
		return m, true
	}
	if m := selfRe.FindString(text); m != "" {
		return m, true
	}
	return "", false
}
