package llmprovider

import (
	"fmt"
	"os"
)

// BackendConfig is the subset of internal/config.LLMBackendConfig the
// factory needs, kept separate so this package never imports
// internal/config (avoiding an import cycle with anything config
// pulls in).
type BackendConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	MaxTokens int
}

// New constructs the configured Provider (spec.md §1 treats the model
// backend as a pluggable external capability; raid ships the two
// backends the original implementation supported).
func New(cfg BackendConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.APIKeyEnv)
		}
		return NewOpenAIBackend(cfg.Model, apiKey, cfg.BaseURL, cfg.MaxTokens), nil
	case "ollama":
		return NewOllamaBackend(cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported llm backend provider: %s", cfg.Provider)
	}
}
