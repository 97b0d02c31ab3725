package markup

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func markupPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("div", "span", "header")
		p.AllowDataAttributes()
		p.AllowAttrs("class", "id", "contenteditable").Globally()
		p.AllowComments()
		policy = p
	})
	return policy
}

// Sanitize strips everything from editor markup that the transcoder does
// not produce itself: scripts, event handlers, foreign attributes.
func Sanitize(markup string) string {
	return markupPolicy().Sanitize(markup)
}
