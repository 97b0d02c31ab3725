package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/xmledit/internal/apperr"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig holds the settings of an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// HTTPClient defaults to a client with a two minute timeout.
	HTTPClient *http.Client
}

// OpenAI calls a chat-completions endpoint.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

var _ Completer = (*OpenAI)(nil)

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	o := &OpenAI{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  cfg.HTTPClient,
	}
	if o.baseURL == "" {
		o.baseURL = DefaultOpenAIBaseURL
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 2 * time.Minute}
	}
	return o
}

func (o *OpenAI) Configured() bool { return o.apiKey != "" && o.model != "" }
func (o *OpenAI) Model() string { return o.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type chatError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, c Completion) (*Reply, error) {
	if !o.Configured() {
		return nil, fmt.Errorf("ai: openai: %w: api key and model are required", apperr.ErrNotConfigured)
	}

	req := chatRequest{
		Model:       o.model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
	if c.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: c.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: c.Prompt})

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ai: openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: openai: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ai: openai: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("ai: openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e chatError
		if json.Unmarshal(data, &e) == nil && e.Error != nil {
			return nil, fmt.Errorf("ai: openai: status %d: %s", resp.StatusCode, e.Error.Message)
		}
		return nil, fmt.Errorf("ai: openai: status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("ai: openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("ai: openai: no choices in response")
	}
	model := out.Model
	if model == "" {
		model = o.model
	}
	return &Reply{Text: out.Choices[0].Message.Content, Model: model, Usage: out.Usage}, nil
}
