package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/retry"
	"go.uber.org/zap"
)

// Analyzer wraps a sentiment backend with the configured retry policy and the
// fail-closed versus neutral-fallback exhaustion behavior. It implements
// core.SentimentClient itself so the engine never sees the retry machinery.
type Analyzer struct {
	client          core.SentimentClient
	policy          retry.Policy
	fallbackNeutral bool
	logger          *zap.Logger
}

// NewAnalyzer creates a retrying sentiment analyzer
func NewAnalyzer(client core.SentimentClient, policy retry.Policy, fallbackNeutral bool, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		client:          client,
		policy:          policy,
		fallbackNeutral: fallbackNeutral,
		logger:          logger,
	}
}

// Analyze calls the backend with bounded retry. After exhausting the retry
// budget it either returns SentimentUnavailableError or, when the fallback is
// configured, a neutral result so scoring proceeds on keyword signals alone.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*core.SentimentResult, error) {
	var result *core.SentimentResult

	err := a.policy.Do(ctx, func(ctx context.Context) error {
		res, err := a.client.Analyze(ctx, text)
		if err != nil {
			a.logger.Warn("Sentiment backend call failed", zap.Error(err))
			return err
		}
		result = res
		return nil
	})
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if a.fallbackNeutral {
		a.logger.Warn("Sentiment backend unavailable, falling back to neutral score", zap.Error(err))
		return &core.SentimentResult{
			Label:      "NEUTRAL",
			Score:      0,
			Negativity: 0,
			ModelUsed:  "fallback",
		}, nil
	}

	attempts := a.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return nil, &core.SentimentUnavailableError{Attempts: attempts, Err: err}
}

// response is the structured JSON verdict requested from every backend
type response struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ParseResponse parses a backend's text output into a normalized sentiment
// result, tolerating prose around the JSON object the way LLM responses
// sometimes arrive
func ParseResponse(text, model string) (*core.SentimentResult, error) {
	var resp response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		start := strings.IndexByte(text, '{')
		end := strings.LastIndexByte(text, '}')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("failed to extract JSON from sentiment response: %w", err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse sentiment response as JSON: %w", err)
		}
	}

	label := strings.ToUpper(strings.TrimSpace(resp.Label))
	switch label {
	case "NEGATIVE", "NEUTRAL", "POSITIVE":
	default:
		return nil, fmt.Errorf("unexpected sentiment label %q", resp.Label)
	}

	score := resp.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	negativity := 0.0
	if label == "NEGATIVE" {
		negativity = score
	}

	return &core.SentimentResult{
		Label:      label,
		Score:      score,
		Negativity: negativity,
		ModelUsed:  model,
	}, nil
}

// Prompt formats the instruction sent to every LLM-backed sentiment client
func Prompt(text string) string {
	return fmt.Sprintf(`You are a sentiment analysis service for customer support email. Classify the overall sentiment of the text below.
Respond with a JSON object containing:
- label: one of "NEGATIVE", "NEUTRAL", "POSITIVE"
- score: number between 0 and 1 (how confident you are in the label)

Text:
%s

Respond only with the JSON object and nothing else.`, text)
}

var _ core.SentimentClient = (*Analyzer)(nil)
