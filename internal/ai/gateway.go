package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/xmledit/internal/apperr"
)

const (
	DefaultMaxTokens    = 1000
	DefaultTemperature  = 0.7
	DefaultSystemPrompt = "You are a helpful AI assistant specializing in XML processing and editing."
)

// Request is a task-level completion request.
type Request struct {
	Task    Task
	Context string
	// Prompt, when set, is sent instead of the rendered task template.
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// Response is the result of a Request.
type Response struct {
	Text     string        `json:"response"`
	Model    string        `json:"model"`
	Usage    Usage         `json:"usage"`
	Duration time.Duration `json:"-"`
}

// Info describes the configured provider.
type Info struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Region     string `json:"region,omitempty"`
	Configured bool   `json:"configured"`
}

// Gateway renders tasks into prompts and forwards them to one provider.
type Gateway struct {
	provider  Completer
	name      string
	system    string
	maxTokens int
	temp      float64
	logger    *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(s string) GatewayOption {
	return func(g *Gateway) {
		if s != "" {
			g.system = s
		}
	}
}

// WithDefaults sets the limits used when a request leaves them unset.
func WithDefaults(maxTokens int, temperature float64) GatewayOption {
	return func(g *Gateway) {
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
		g.temp = temperature
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway wraps provider. name is reported by Info.
func NewGateway(name string, provider Completer, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider:  provider,
		name:      name,
		system:    DefaultSystemPrompt,
		maxTokens: DefaultMaxTokens,
		temp:      DefaultTemperature,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Info reports the provider and whether it can make calls.
func (g *Gateway) Info() Info {
	info := Info{Provider: g.name, Model: g.provider.Model(), Configured: g.provider.Configured()}
	if r, ok := g.provider.(interface{ Region() string }); ok {
		info.Region = r.Region()
	}
	return info
}

// Configured reports whether the provider can make calls.
func (g *Gateway) Configured() bool {
	return g.provider.Configured()
}

// Complete renders req and sends it to the provider. It returns
// apperr.ErrNotConfigured when the provider lacks credentials.
func (g *Gateway) Complete(ctx context.Context, req Request) (*Response, error) {
	if !g.provider.Configured() {
		return nil, fmt.Errorf("ai: %s: %w", g.name, apperr.ErrNotConfigured)
	}

	c := Completion{
		Task:        req.Task,
		System:      g.system,
		Prompt:      req.Prompt,
		Input:       req.Context,
		MaxTokens:   req.MaxTokens,
		Temperature: g.temp,
	}
	if c.Task == "" {
		c.Task = TaskExpert
	}
	if c.Prompt == "" {
		c.Prompt = Prompt(c.Task, req.Context)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = g.maxTokens
	}
	if req.Temperature != nil {
		c.Temperature = *req.Temperature
	}

	start := time.Now()
	reply, err := g.provider.Complete(ctx, c)
	if err != nil {
		g.logger.Warn("ai: completion failed",
			slog.String("provider", g.name),
			slog.String("task", string(c.Task)),
			slog.String("error", err.Error()))
		return nil, err
	}
	elapsed := time.Since(start)
	g.logger.Info("ai: completed",
		slog.String("provider", g.name),
		slog.String("model", reply.Model),
		slog.String("task", string(c.Task)),
		slog.Int("completion_tokens", reply.Usage.CompletionTokens),
		slog.Duration("elapsed", elapsed))

	return &Response{Text: reply.Text, Model: reply.Model, Usage: reply.Usage, Duration: elapsed}, nil
}
