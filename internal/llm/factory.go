package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/synapse/internal/config"
)

// NewProvider builds one provider from a config slot. Each of the three
// Switchboard slots (primary, fallback, fast) goes through here so any slot
// can be repointed at a different backend without code changes.
func NewProvider(ctx context.Context, cfg config.ProviderConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)

	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "claude":
		return NewClaudeProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOllamaProvider(cfg.Model, baseURL)

	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}
