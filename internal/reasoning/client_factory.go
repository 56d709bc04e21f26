package reasoning

import (
	"fmt"

	"lyra/internal/config"
)

// NewClient constructs a reasoning client from configuration.
// Supported providers: mistral (default), openai.
func NewClient(cfg *config.Config) (Client, error) {
	llm := cfg.LLM

	switch llm.Provider {
	case "", "mistral":
		mc := DefaultMistralConfig(llm.APIKey)
		if llm.Model != "" {
			mc.Model = llm.Model
		}
		if llm.BaseURL != "" {
			mc.BaseURL = llm.BaseURL
		}
		if llm.Temperature > 0 {
			mc.Temperature = llm.Temperature
		}
		if llm.MaxTokens > 0 {
			mc.MaxTokens = llm.MaxTokens
		}
		mc.Timeout = cfg.LLMTimeout()
		return NewMistralClientWithConfig(mc), nil

	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      llm.APIKey,
			BaseURL:     llm.BaseURL,
			Model:       llm.Model,
			Temperature: llm.Temperature,
		})

	default:
		return nil, fmt.Errorf("unknown reasoning provider: %q", llm.Provider)
	}
}
