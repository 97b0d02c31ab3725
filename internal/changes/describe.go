package changes

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultComment is used when no better revision comment can be derived.
const DefaultComment = "Updated content with improvements and corrections."

const maxCommentLen = 200

// Describe renders c as the plain-text analysis shown when no AI analysis
// is available.
func Describe(c Changes) string {
	var b strings.Builder
	b.WriteString("Basic Change Detection:\n\n")

	section := func(header string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s (%d):\n", header, len(items))
		for _, it := range items {
			b.WriteString("  • " + it + "\n")
		}
		b.WriteString("\n")
	}
	section("➕ Additions", c.Additions)
	section("✏️ Modifications", c.Modifications)
	section("➖ Deletions", c.Deletions)

	if c.Empty() {
		b.WriteString("No significant changes detected.")
	}
	return strings.TrimRight(b.String(), "\n")
}

var commentRules = []struct {
	all     []string
	any     []string
	comment string
}{
	{all: []string{"added", "safety"}, comment: "Added safety warnings and procedural guidance."},
	{any: []string{"added"}, comment: "Added new content to enhance documentation completeness."},
	{any: []string{"modified", "updated"}, comment: "Updated content to reflect current operational requirements."},
	{any: []string{"removed", "deleted"}, comment: "Removed obsolete content no longer applicable."},
	{any: []string{"corrected", "fixed"}, comment: "Corrected technical information for accuracy."},
	{any: []string{"reorganized", "restructured"}, comment: "Reorganized content for improved clarity and usability."},
}

// FallbackComment picks a canned revision comment from keywords in an
// analysis text. The first matching rule wins.
func FallbackComment(analysis string) string {
	lower := strings.ToLower(analysis)
	for _, r := range commentRules {
		if matchAll(lower, r.all) && matchAny(lower, r.any) {
			return r.comment
		}
	}
	return DefaultComment
}

func matchAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

func matchAny(s string, words []string) bool {
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

var (
	quoteRe  = regexp.MustCompile(`^["']|["']$`)
	prefixRe = regexp.MustCompile(`(?i)^(?:revision comment:|comment:)\s*`)
)

// CleanComment normalizes a model-generated revision comment: surrounding
// quotes and label prefixes go, only the first line is kept, the length is
// capped and the sentence is terminated.
func CleanComment(raw string) string {
	c := strings.TrimSpace(raw)
	c = quoteRe.ReplaceAllString(c, "")
	c = prefixRe.ReplaceAllString(c, "")
	c = prefixRe.ReplaceAllString(c, "")
	if i := strings.IndexByte(c, '\n'); i >= 0 {
		c = c[:i]
	}
	c = strings.TrimSpace(c)

	if r := []rune(c); len(r) > maxCommentLen {
		c = string(r[:maxCommentLen-3]) + "..."
	}
	if c != "" && !strings.HasSuffix(c, ".") && !strings.HasSuffix(c, "!") && !strings.HasSuffix(c, "?") {
		c += "."
	}
	if c == "" {
		return DefaultComment
	}
	return c
}
