package llm

import (
	"context"
	"fmt"

	"github.com/neilberkman/devlog/internal/core/config"
)

// Provider is the interface for LLM backends used to name sessions
type Provider interface {
	// GenerateTitle returns the raw model answer for a naming request
	GenerateTitle(ctx context.Context, req TitleRequest) (string, error)

	// Name returns the provider name (e.g., "bedrock", "openai")
	Name() string
}

// NewFromConfig builds the provider selected by cfg.Namer.
// Returns nil (no error) for the heuristic namer.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Namer {
	case "", config.NamerHeuristic:
		return nil, nil
	case config.NamerBedrock:
		return NewBedrockProvider(ctx, BedrockConfig{
			Region:  cfg.Bedrock.Region,
			ModelID: cfg.Bedrock.ModelID,
			Profile: cfg.Bedrock.Profile,
		})
	case config.NamerOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
	default:
		return nil, fmt.Errorf("unknown namer %q", cfg.Namer)
	}
}
