package config

import (
	"time"

	"github.com/mikey/complaint-router/internal/core"
)

// GraphConfig represents the configuration for the Microsoft Graph provider
type GraphConfig struct {
	BaseURL        string
	TenantID       string
	ClientID       string
	ClientSecret   string
	RequestTimeout time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetGraph returns the Graph provider configuration
func (c *Config) GetGraph() GraphConfig {
	timeout, err := c.GetDuration("graph.request_timeout")
	if err != nil {
		timeout = 30 * time.Second
	}
	return GraphConfig{
		BaseURL:        c.GetString("graph.base_url"),
		TenantID:       c.GetString("graph.tenant_id"),
		ClientID:       c.GetString("graph.client_id"),
		ClientSecret:   c.GetString("graph.client_secret"),
		RequestTimeout: timeout,
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetScoringWeights assembles the immutable scoring model configuration
func (c *Config) GetScoringWeights() core.ScoringWeights {
	return core.ScoringWeights{
		BodyKeyword:        c.GetFloat64("scoring.weights.body_keyword"),
		SubjectKeyword:     c.GetFloat64("scoring.weights.subject_keyword"),
		Urgency:            c.GetFloat64("scoring.weights.urgency"),
		Negation:           c.GetFloat64("scoring.weights.negation"),
		Sentiment:          c.GetFloat64("scoring.weights.sentiment"),
		KeywordThreshold:   c.GetFloat64("scoring.keyword_threshold"),
		SentimentThreshold: c.GetFloat64("scoring.sentiment_threshold"),
		SentimentMode:      c.GetString("scoring.sentiment_mode"),
		SentimentBand:      c.GetFloat64("scoring.sentiment_band"),
		HitCap:             c.GetInt("scoring.hit_cap"),
		Contextual: core.ContextualCheck{
			Enabled:           c.GetBool("scoring.contextual.enabled"),
			ScoreThreshold:    c.GetFloat64("scoring.contextual.score_threshold"),
			NegationProximity: c.GetInt("scoring.contextual.negation_proximity"),
		},
	}
}

// StartDate returns the parsed email filter start date, zero when unset.
// Validate has already checked the format.
func (c *Config) StartDate() time.Time {
	raw := c.GetString("email_filter.start_date")
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
