package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/apperrors"
	"github.com/homebrew-hq/homebrew-engine/pkg/retry"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const defaultMaxToolIterations = 5

// Config selects and configures a chat provider.
type Config struct {
	Provider           string
	BaseURL            string
	APIKey             string
	Model              string
	Temperature        float64
	MaxTokens          int
	MaxToolIterations  int
	MaxConcurrentTools int

	// Retry overrides the backoff used for provider calls; nil uses a short default.
	Retry *retry.Config
}

func (c *Config) validate() error {
	if c == nil || c.APIKey == "" {
		return fmt.Errorf("%w: api key is required", apperrors.ErrNoProvider)
	}
	if c.Model == "" {
		return NewError(ErrorTypeModel, "model is required", false, nil)
	}
	return nil
}

func (c *Config) maxToolIterations() int {
	if c.MaxToolIterations <= 0 {
		return defaultMaxToolIterations
	}
	return c.MaxToolIterations
}

func (c *Config) retryConfig() *retry.Config {
	if c.Retry != nil {
		return c.Retry
	}
	return &retry.Config{
		MaxRetries:       2,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         4 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 3,
	}
}

// NewChatClient builds the client for cfg.Provider, wrapped in a circuit
// breaker. An empty API key yields apperrors.ErrNoProvider.
func NewChatClient(cfg *Config, logger *zap.Logger) (ChatClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var client ChatClient
	var err error
	switch cfg.Provider {
	case ProviderOpenAI, "":
		client, err = NewOpenAIChatClient(cfg, logger)
	case ProviderAnthropic:
		client, err = NewAnthropicChatClient(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", apperrors.ErrNoProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Chat provider configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model))

	return WithCircuitBreaker(client, NewCircuitBreaker(DefaultCircuitBreakerConfig()), logger), nil
}
