package llm

import (
	"fmt"

	"jmxgen/internal/logger"
)

// NewClient creates a new LLM client based on the configured provider.
func NewClient(config *Config, log *logger.Logger) (Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is not set (set JMXGEN_LLM_API_KEY or OPENAI_API_KEY)")
	}
	switch config.Provider {
	case "openai":
		return NewOpenAIClient(config, log), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
