package llm

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// NewCompletionService creates the client for the named provider.
// Returns CompletionService to enable dependency injection of mocks.
func NewCompletionService(provider string, cfg *Config, logger *zap.Logger) (CompletionService, error) {
	switch provider {
	case ProviderAnthropic:
		client, err := NewAnthropicClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	case ProviderOpenAI:
		client, err := NewOpenAIClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}
