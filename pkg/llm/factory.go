package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// NewFromConfig builds the guarded client for the configured provider.
// An empty provider disables the LLM and returns (nil, nil); callers then use
// deterministic output only.
func NewFromConfig(cfg *Config, guard GuardedConfig, logger *zap.Logger) (LLMClient, error) {
	var (
		inner LLMClient
		err   error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none", "disabled":
		return nil, nil
	case ProviderOpenAI, "groq":
		inner, err = NewClient(cfg, logger)
	case ProviderAnthropic:
		inner, err = NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	return NewGuardedClient(inner, guard, logger), nil
}
