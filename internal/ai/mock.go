package ai

import (
	"context"
	"strings"
)

// MockModel is the model name reported by Mock.
const MockModel = "local-mock-ai"

// Mock answers from canned responses chosen by keywords in the caller's
// input. It is always configured and never fails.
type Mock struct{}

var _ Completer = Mock{}

func (Mock) Configured() bool { return true }
func (Mock) Model() string { return MockModel }

// Complete implements Completer.
func (Mock) Complete(ctx context.Context, c Completion) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := mockResponse(c)
	return &Reply{
		Text:  text,
		Model: MockModel,
		Usage: Usage{
			PromptTokens:     len(c.Prompt) / 4,
			CompletionTokens: len(text) / 4,
			TotalTokens:      (len(c.Prompt) + len(text)) / 4,
		},
	}, nil
}

var mockKeywords = []struct {
	words    []string
	response string
}{
	{[]string{"enhance", "improve"}, "To enhance your XML, add a proper declaration with encoding, use semantic element names, keep metadata in a header section and use consistent naming."},
	{[]string{"validate", "check"}, "Validation notes: the document should have a single root element, properly closed and nested tags, and escaped special characters (&, <, >, \", ')."},
	{[]string{"create", "generate"}, "Here is a sample structure:\n\n```xml\n<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<topic type=\"chapter\">\n  <title>New Topic</title>\n  <para>Sample content.</para>\n</topic>\n```"},
	{[]string{"convert", "transform"}, "Conversion keeps the element vocabulary: title, para, list and item map one to one, references stay self-closing."},
	{[]string{"metadata", "attributes"}, "Consider adding id attributes to sections and a frontMatter block carrying document metadata."},
	{[]string{"structure", "organize"}, "Group related paragraphs into sections, keep one topic per file and reference sections with sectionRef."},
}

func mockResponse(c Completion) string {
	switch c.Task {
	case TaskProduceEdits:
		// No edits are applied; the document comes back unchanged.
		if doc, ok := ExtractXML(c.Input); ok {
			return "```xml\n" + doc + "\n```"
		}
	case TaskRevisionComment:
		return "Updated content with improvements and corrections."
	case TaskChangeAnalysis:
		return "The document content was modified."
	}

	lower := strings.ToLower(c.Input)
	for _, k := range mockKeywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.response
			}
		}
	}
	return "I can help with XML enhancement, validation, generation, transformation, metadata and structure. Please describe what you would like to change."
}
