package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/xmledit/internal/ai"
)

// newGateway builds the AI gateway for the configured provider.
func newGateway(ctx context.Context, cfg AIConfig, logger *slog.Logger) (*ai.Gateway, error) {
	var provider ai.Completer
	switch cfg.Provider {
	case ProviderBedrock:
		b, err := ai.NewBedrock(ctx, ai.BedrockConfig{
			Region:          cfg.Region,
			ModelID:         cfg.ModelID,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		provider = b
	case ProviderOpenAI:
		provider = ai.NewOpenAI(ai.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.ModelID,
		})
	case ProviderMock, "":
		provider = ai.Mock{}
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}

	if !provider.Configured() {
		logger.Warn("ai: provider is not configured, AI endpoints will answer 503",
			slog.String("provider", cfg.Provider))
	}
	return ai.NewGateway(cfg.Provider, provider,
		ai.WithSystemPrompt(cfg.SystemPrompt),
		ai.WithDefaults(cfg.MaxTokens, cfg.Temperature),
		ai.WithGatewayLogger(logger),
	), nil
}
