// Package ai is the gateway to hosted text-completion models. It renders a
// task keyword into a prompt and forwards it to one provider: AWS Bedrock,
// an OpenAI-compatible endpoint or a deterministic local mock.
package ai

import "context"

// Completion is one request to a provider.
type Completion struct {
	Task        Task
	System      string
	Prompt      string
	// Input is the caller's text before templating.
	Input       string
	MaxTokens   int
	Temperature float64
}

// Usage counts tokens the way the HTTP API reports them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Reply is the text generated for a Completion.
type Reply struct {
	Text  string
	Model string
	Usage Usage
}

// Completer is implemented by every provider.
type Completer interface {
	Complete(ctx context.Context, c Completion) (*Reply, error)
	// Configured reports whether the provider has what it needs to make
	// calls. It never performs I/O.
	Configured() bool
	Model() string
}
