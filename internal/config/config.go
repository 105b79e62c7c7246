package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mikey/complaint-router/internal/core"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/complaint-router/")
	v.AddConfigPath("$HOME/.complaint-router")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("COMPLAINT_ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Mailbox defaults
	v.SetDefault("mailboxes.monitored", []string{})
	v.SetDefault("mailboxes.distribution_list", "")
	v.SetDefault("mailboxes.delete_original", false)

	// Graph provider defaults
	v.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("graph.tenant_id", "")
	v.SetDefault("graph.client_id", "")
	v.SetDefault("graph.client_secret", "")
	v.SetDefault("graph.request_timeout", "30s")

	// Fetch filter defaults
	v.SetDefault("email_filter.start_date", "")
	v.SetDefault("email_filter.from_domain", "")
	v.SetDefault("email_filter.subject_contains", "")

	// Sync defaults
	v.SetDefault("sync.top_emails", 50)
	v.SetDefault("sync.cursor_store", "file")
	v.SetDefault("sync.cursor_path", "delta_tokens.json")
	v.SetDefault("sync.sqlite_path", "/data/sync_cursors.db")
	v.SetDefault("sync.batch_timeout", "2m")

	// Provider retry defaults
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.retry_delay", "5s")
	v.SetDefault("provider.backoff", "fixed")

	// Sentiment backend defaults
	v.SetDefault("sentiment.provider", "bedrock")
	v.SetDefault("sentiment.max_retries", 3)
	v.SetDefault("sentiment.retry_delay", "5s")
	v.SetDefault("sentiment.backoff", "linear")
	v.SetDefault("sentiment.fallback_neutral", false)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Keyword file defaults
	v.SetDefault("keywords.complaint_file", "complaint_keywords.txt")
	v.SetDefault("keywords.subject_file", "subject_keywords.txt")
	v.SetDefault("keywords.urgency_file", "urgency_keywords.txt")
	v.SetDefault("keywords.negation_file", "negation_keywords.txt")

	// Scoring defaults
	v.SetDefault("scoring.keyword_threshold", 0.6)
	v.SetDefault("scoring.sentiment_threshold", 0.75)
	v.SetDefault("scoring.sentiment_mode", "gate")
	v.SetDefault("scoring.sentiment_band", 0.15)
	v.SetDefault("scoring.hit_cap", 3)
	v.SetDefault("scoring.weights.body_keyword", 0.3)
	v.SetDefault("scoring.weights.subject_keyword", 0.2)
	v.SetDefault("scoring.weights.urgency", 0.1)
	v.SetDefault("scoring.weights.negation", -0.5)
	v.SetDefault("scoring.weights.sentiment", 0.4)
	v.SetDefault("scoring.contextual.enabled", true)
	v.SetDefault("scoring.contextual.score_threshold", 0.25)
	v.SetDefault("scoring.contextual.negation_proximity", 3)

	// Exclusion defaults
	v.SetDefault("exclusions.from", []string{})
	v.SetDefault("exclusions.subject", []string{})

	// Forward registry defaults
	v.SetDefault("registry.type", "memory")
	v.SetDefault("registry.ttl", "168h")
	v.SetDefault("registry.cleanup_frequency", "1h")
	v.SetDefault("registry.sqlite_path", "/data/forward_registry.db")
	v.SetDefault("registry.mysql_dsn", "user:password@tcp(localhost:3306)/complaint_router")

	// Feedback defaults
	v.SetDefault("feedback.store", "memory")
	v.SetDefault("feedback.sqlite_path", "/data/feedback.db")
	v.SetDefault("feedback.lookback", "24h")
	v.SetDefault("feedback.scan_timeout", "1m")
	v.SetDefault("feedback.step", 0.05)
	v.SetDefault("feedback.min_adjust", -0.5)
	v.SetDefault("feedback.max_adjust", 0.5)

	// Scheduling defaults
	v.SetDefault("scheduling.main_loop", "30s")
	v.SetDefault("scheduling.fp_feedback_loop", "2m")
	v.SetDefault("scheduling.fn_feedback_loop", "2m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate fails fast on missing or inconsistent required fields. It is
// called once at startup; any error it returns is a ConfigError and fatal.
func (c *Config) Validate() error {
	if len(c.GetStringSlice("mailboxes.monitored")) == 0 {
		return core.NewConfigError("mailboxes.monitored", "at least one monitored mailbox is required")
	}
	if c.GetString("mailboxes.distribution_list") == "" {
		return core.NewConfigError("mailboxes.distribution_list", "distribution list address is required")
	}

	for _, key := range []string{
		"keywords.complaint_file",
		"keywords.subject_file",
		"keywords.urgency_file",
		"keywords.negation_file",
	} {
		if c.GetString(key) == "" {
			return core.NewConfigError(key, "keyword file path is required")
		}
	}

	for _, key := range []string{
		"scoring.keyword_threshold",
		"scoring.sentiment_threshold",
		"scoring.sentiment_band",
		"scoring.weights.body_keyword",
		"scoring.weights.subject_keyword",
		"scoring.weights.urgency",
		"scoring.weights.negation",
		"scoring.weights.sentiment",
	} {
		val := c.GetFloat64(key)
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return core.NewConfigError(key, "must be a finite number, got %v", val)
		}
	}

	if c.GetInt("scoring.hit_cap") < 1 {
		return core.NewConfigError("scoring.hit_cap", "must be at least 1")
	}

	switch mode := c.GetString("scoring.sentiment_mode"); mode {
	case core.SentimentModeGate, core.SentimentModeAdditive:
	default:
		return core.NewConfigError("scoring.sentiment_mode", "must be %q or %q, got %q",
			core.SentimentModeGate, core.SentimentModeAdditive, mode)
	}

	for _, key := range []string{
		"sync.batch_timeout",
		"provider.retry_delay",
		"sentiment.retry_delay",
		"graph.request_timeout",
		"registry.ttl",
		"registry.cleanup_frequency",
		"feedback.lookback",
		"feedback.scan_timeout",
		"scheduling.main_loop",
		"scheduling.fp_feedback_loop",
		"scheduling.fn_feedback_loop",
	} {
		if _, err := c.GetDuration(key); err != nil {
			return &core.ConfigError{Field: key, Err: err}
		}
	}

	if start := c.GetString("email_filter.start_date"); start != "" {
		if _, err := time.Parse(time.RFC3339, start); err != nil {
			return &core.ConfigError{Field: "email_filter.start_date", Err: err}
		}
	}

	return nil
}

// OnChange watches the loaded config file and runs fn every time it is
// rewritten. fn runs on the watcher goroutine. A no-op when the process is
// running on defaults with no config file.
func (c *Config) OnChange(fn func()) {
	if c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(fsnotify.Event) { fn() })
	c.v.WatchConfig()
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
