package factory

import (
	"fmt"

	"github.com/mikey/complaint-router/internal/adapters/bedrock"
	"github.com/mikey/complaint-router/internal/adapters/gemini"
	"github.com/mikey/complaint-router/internal/adapters/openai"
	"github.com/mikey/complaint-router/internal/config"
	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/retry"
	"github.com/mikey/complaint-router/internal/sentiment"
	"github.com/mikey/complaint-router/internal/utils"
	"go.uber.org/zap"
)

// SentimentFactory creates sentiment analyzers
type SentimentFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSentimentFactory creates a new sentiment factory
func NewSentimentFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *SentimentFactory {
	return &SentimentFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAnalyzer creates a retrying sentiment analyzer backed by the
// configured provider. Returns nil when the provider is "none", in which
// case classification runs on keyword confidence alone.
func (f *SentimentFactory) CreateAnalyzer() (core.SentimentClient, error) {
	provider := f.cfg.GetString("sentiment.provider")
	if provider == "none" || provider == "" {
		f.logger.Info("Sentiment analysis disabled")
		return nil, nil
	}

	client, err := f.createBackend(provider)
	if err != nil {
		return nil, err
	}

	policy, err := retryPolicy(f.cfg, "sentiment")
	if err != nil {
		return nil, err
	}

	fallback := f.cfg.GetBool("sentiment.fallback_neutral")
	return sentiment.NewAnalyzer(client, policy, fallback, f.logger), nil
}

func (f *SentimentFactory) createBackend(provider string) (core.SentimentClient, error) {
	switch provider {
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	default:
		return nil, fmt.Errorf("unsupported sentiment provider: %s", provider)
	}
}

// retryPolicy builds a retry policy from the max_retries, retry_delay and
// backoff keys under the given config section.
func retryPolicy(cfg *config.Config, section string) (retry.Policy, error) {
	delay, err := cfg.GetDuration(section + ".retry_delay")
	if err != nil {
		return retry.Policy{}, fmt.Errorf("invalid %s retry delay: %w", section, err)
	}
	return retry.Policy{
		MaxAttempts: cfg.GetInt(section + ".max_retries"),
		Delay:       delay,
		Backoff:     retry.Backoff(cfg.GetString(section + ".backoff")),
	}, nil
}
