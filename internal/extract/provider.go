package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ProviderConfig selects and configures the model backend.
type ProviderConfig struct {
	Provider        string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	MaxTokens       int64
	Timeout         time.Duration
}

// NewProvider builds the configured provider, "claude" or "gemini".
func NewProvider(ctx context.Context, cfg ProviderConfig, stats *LLMStats, log *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "", "claude":
		return NewClaudeClient(ClaudeOptions{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AnthropicModel,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, stats, log), nil
	case "gemini":
		g, err := NewGeminiClient(ctx, GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.Timeout,
		}, stats, log)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
