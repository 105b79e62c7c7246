package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/complaint-router/internal/adapters/graph"
	"github.com/mikey/complaint-router/internal/config"
	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/exclusions"
	"github.com/mikey/complaint-router/internal/factory"
	"github.com/mikey/complaint-router/internal/feedback"
	"github.com/mikey/complaint-router/internal/keywords"
	"github.com/mikey/complaint-router/internal/logging"
	"github.com/mikey/complaint-router/internal/ports"
	"github.com/mikey/complaint-router/internal/retry"
	"github.com/mikey/complaint-router/internal/sync"
	"github.com/mikey/complaint-router/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewSentimentFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCursorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewRegistryFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFeedbackFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewProviderFactory); err != nil {
		return nil, err
	}

	// Register keyword store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*keywords.Store, error) {
		return keywords.NewStore(keywords.Sources{
			Complaint: cfg.GetString("keywords.complaint_file"),
			Subject:   cfg.GetString("keywords.subject_file"),
			Urgency:   cfg.GetString("keywords.urgency_file"),
			Negation:  cfg.GetString("keywords.negation_file"),
		}, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *keywords.Store) core.KeywordSource {
		return s
	}); err != nil {
		return nil, err
	}

	// Register exclusion checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.Excluder, error) {
		return exclusions.NewChecker(
			cfg.GetStringSlice("exclusions.from"),
			cfg.GetStringSlice("exclusions.subject"),
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register sentiment analyzer
	if err := container.Provide(func(f *factory.SentimentFactory) (core.SentimentClient, error) {
		return f.CreateAnalyzer()
	}); err != nil {
		return nil, err
	}

	// Register cursor store
	if err := container.Provide(func(f *factory.CursorFactory) (core.CursorStore, error) {
		return f.CreateCursorStore()
	}); err != nil {
		return nil, err
	}

	// Register forward registry
	if err := container.Provide(func(f *factory.RegistryFactory) (core.ForwardRegistry, error) {
		return f.CreateRegistry()
	}); err != nil {
		return nil, err
	}

	// Register feedback store
	if err := container.Provide(func(f *factory.FeedbackFactory) (core.FeedbackStore, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register mail provider
	if err := container.Provide(func(f *factory.ProviderFactory) (*graph.Client, error) {
		return f.CreateClient()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *graph.Client) ports.MailProvider {
		return c
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *graph.Client) ports.FeedbackSource {
		return c
	}); err != nil {
		return nil, err
	}

	// Register scoring weights
	if err := container.Provide(func(cfg *config.Config) core.ScoringWeights {
		return cfg.GetScoringWeights()
	}); err != nil {
		return nil, err
	}

	// Register classification engine
	if err := container.Provide(core.NewEngine); err != nil {
		return nil, err
	}
	if err := container.Provide(func(e *core.Engine) sync.Classifier {
		return e
	}); err != nil {
		return nil, err
	}

	// Register sync runner
	if err := container.Provide(func(
		provider ports.MailProvider,
		engine sync.Classifier,
		cursors core.CursorStore,
		registry core.ForwardRegistry,
		cfg *config.Config,
		logger *zap.Logger,
	) (*sync.Runner, error) {
		opts, err := syncOptions(cfg)
		if err != nil {
			return nil, err
		}
		return sync.NewRunner(provider, engine, cursors, registry, opts, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register feedback adjuster and loops
	if err := container.Provide(func(store core.FeedbackStore, cfg *config.Config, logger *zap.Logger) *feedback.Adjuster {
		return feedback.NewAdjuster(store, cfg.GetFloat64("feedback.step"), logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		source ports.FeedbackSource,
		registry core.ForwardRegistry,
		kw core.KeywordSource,
		adjuster *feedback.Adjuster,
		store core.FeedbackStore,
		text *utils.TextProcessor,
		cfg *config.Config,
		logger *zap.Logger,
	) (*feedback.Loops, error) {
		opts, err := feedbackOptions(cfg)
		if err != nil {
			return nil, err
		}
		return feedback.NewLoops(source, registry, kw, adjuster, store, text, opts, logger), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}

func syncOptions(cfg *config.Config) (sync.Options, error) {
	interval, err := cfg.GetDuration("scheduling.main_loop")
	if err != nil {
		return sync.Options{}, err
	}
	batchTimeout, err := cfg.GetDuration("sync.batch_timeout")
	if err != nil {
		return sync.Options{}, err
	}
	retryDelay, err := cfg.GetDuration("provider.retry_delay")
	if err != nil {
		return sync.Options{}, err
	}

	return sync.Options{
		Mailboxes:      cfg.GetStringSlice("mailboxes.monitored"),
		Distribution:   cfg.GetString("mailboxes.distribution_list"),
		DeleteOriginal: cfg.GetBool("mailboxes.delete_original"),
		Interval:       interval,
		BatchTimeout:   batchTimeout,
		Filter: ports.ListFilter{
			StartDate:       cfg.StartDate(),
			FromDomain:      cfg.GetString("email_filter.from_domain"),
			SubjectContains: cfg.GetString("email_filter.subject_contains"),
			Top:             cfg.GetInt("sync.top_emails"),
		},
		Retry: retry.Policy{
			MaxAttempts: cfg.GetInt("provider.max_retries"),
			Delay:       retryDelay,
			Backoff:     retry.Backoff(cfg.GetString("provider.backoff")),
		},
	}, nil
}

func feedbackOptions(cfg *config.Config) (feedback.Options, error) {
	fpInterval, err := cfg.GetDuration("scheduling.fp_feedback_loop")
	if err != nil {
		return feedback.Options{}, err
	}
	fnInterval, err := cfg.GetDuration("scheduling.fn_feedback_loop")
	if err != nil {
		return feedback.Options{}, err
	}
	lookback, err := cfg.GetDuration("feedback.lookback")
	if err != nil {
		return feedback.Options{}, err
	}
	scanTimeout, err := cfg.GetDuration("feedback.scan_timeout")
	if err != nil {
		return feedback.Options{}, err
	}

	return feedback.Options{
		Mailboxes:    cfg.GetStringSlice("mailboxes.monitored"),
		Distribution: cfg.GetString("mailboxes.distribution_list"),
		FPInterval:   fpInterval,
		FNInterval:   fnInterval,
		Lookback:     lookback,
		ScanTimeout:  scanTimeout,
		Top:          cfg.GetInt("sync.top_emails"),
		MarkerRe:     graph.MarkerRe,
	}, nil
}
