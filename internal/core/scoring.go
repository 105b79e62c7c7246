package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/complaint-router/internal/negation"
	"github.com/mikey/complaint-router/internal/utils"
	"go.uber.org/zap"
)

// Engine is the core complaint scoring service. It combines keyword presence,
// urgency, contextual negation and the sentiment verdict into one weighted
// confidence and compares it against the configured thresholds.
type Engine struct {
	keywords  KeywordSource
	excluder  Excluder
	sentiment SentimentClient
	feedback  FeedbackStore
	text      *utils.TextProcessor
	logger    *zap.Logger

	mu      sync.RWMutex
	weights ScoringWeights
}

// NewEngine creates a new scoring engine. sentiment and feedback may be nil,
// in which case the decision rests on keyword signals alone with no learned
// adjustments.
func NewEngine(
	keywords KeywordSource,
	excluder Excluder,
	sentiment SentimentClient,
	feedback FeedbackStore,
	text *utils.TextProcessor,
	weights ScoringWeights,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		keywords:  keywords,
		excluder:  excluder,
		sentiment: sentiment,
		feedback:  feedback,
		text:      text,
		weights:   weights,
		logger:    logger,
	}
}

// SetWeights replaces the scoring weights for subsequent classifications.
// Used when the configuration file changes at runtime; an in-flight Classify
// keeps the weights it started with.
func (e *Engine) SetWeights(weights ScoringWeights) {
	e.mu.Lock()
	e.weights = weights
	e.mu.Unlock()
	e.logger.Info("Scoring weights updated",
		zap.Float64("keyword_threshold", weights.KeywordThreshold),
		zap.String("sentiment_mode", weights.SentimentMode))
}

func (e *Engine) snapshotWeights() ScoringWeights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// Classify scores a message and decides whether it is a complaint.
// Exclusion patterns are evaluated first and are authoritative.
func (e *Engine) Classify(ctx context.Context, msg *Message) (*ClassificationResult, error) {
	result := &ClassificationResult{
		MessageID:    msg.ID,
		Mailbox:      msg.Mailbox,
		ClassifiedAt: time.Now(),
	}

	if e.excluder != nil {
		if pattern, excluded := e.excluder.Match(msg.From, msg.Subject); excluded {
			e.logger.Info("Message excluded",
				zap.String("message_id", msg.ID),
				zap.String("sender", msg.From),
				zap.String("pattern", pattern))
			result.Breakdown.ExcludedBy = pattern
			return result, nil
		}
	}

	weights := e.snapshotWeights()
	set := e.keywords.Snapshot()
	bodyTokens := e.text.Tokenize(msg.Body)
	subjectTokens := e.text.Tokenize(msg.Subject)

	adjustments := map[string]float64{}
	if e.feedback != nil {
		var err error
		adjustments, err = e.feedback.Adjustments(ctx)
		if err != nil {
			e.logger.Warn("Failed to load keyword adjustments", zap.Error(err))
			adjustments = map[string]float64{}
		}
	}

	bodyScore := e.scoreBody(bodyTokens, set, adjustments, weights.Contextual, result)
	e.scoreSubject(subjectTokens, set, result)
	e.scoreUrgency(bodyTokens, subjectTokens, set, result)

	negationCount := 0
	for _, tok := range bodyTokens {
		if _, ok := set.Negation[tok]; ok {
			negationCount++
		}
	}
	result.Breakdown.NegationCount = negationCount

	keywordConfidence := weights.BodyKeyword*normalize(bodyScore, weights.HitCap) +
		weights.SubjectKeyword*normalize(float64(len(result.Breakdown.SubjectHits)), weights.HitCap) +
		weights.Urgency*normalize(float64(len(result.Breakdown.UrgencyHits)), weights.HitCap) +
		weights.Negation*float64(negationCount)
	if keywordConfidence < 0 {
		keywordConfidence = 0
	}
	result.Breakdown.KeywordConfidence = keywordConfidence
	result.Confidence = keywordConfidence

	if err := e.applySentiment(ctx, msg, weights, result); err != nil {
		return nil, err
	}

	e.logger.Info("Message classified",
		zap.String("message_id", msg.ID),
		zap.String("mailbox", msg.Mailbox),
		zap.Bool("is_complaint", result.IsComplaint),
		zap.Float64("confidence", result.Confidence),
		zap.Int("body_hits", len(result.Breakdown.BodyHits)),
		zap.Int("negation_count", negationCount),
		zap.Bool("sentiment_applied", result.Breakdown.SentimentApplied))

	return result, nil
}

// scoreBody accumulates complaint keyword hits with contextual suppression
// and feedback multipliers, returning the summed contribution
func (e *Engine) scoreBody(tokens []string, set *KeywordSet, adjustments map[string]float64, ctxCheck ContextualCheck, result *ClassificationResult) float64 {
	score := 0.0
	for i, tok := range tokens {
		if _, ok := set.Complaint[tok]; !ok {
			continue
		}

		suppression := 1.0
		if ctxCheck.Enabled {
			suppression = negation.Check(tokens, i, ctxCheck.NegationProximity, set.Negation)
			if suppression < ctxCheck.ScoreThreshold {
				suppression = 0
			}
		}

		adjustment := 1.0 + adjustments[tok]
		if adjustment < 0 {
			adjustment = 0
		}

		result.Breakdown.BodyHits = append(result.Breakdown.BodyHits, KeywordHit{
			Term:        tok,
			Index:       i,
			Suppression: suppression,
			Adjustment:  adjustment,
		})
		score += suppression * adjustment
	}
	return score
}

func (e *Engine) scoreSubject(tokens []string, set *KeywordSet, result *ClassificationResult) {
	for _, tok := range tokens {
		if _, ok := set.Subject[tok]; ok {
			result.Breakdown.SubjectHits = append(result.Breakdown.SubjectHits, tok)
		}
	}
}

// Urgency terms amplify rather than get suppressed, so no negation dampening
// applies to them
func (e *Engine) scoreUrgency(bodyTokens, subjectTokens []string, set *KeywordSet, result *ClassificationResult) {
	for _, tok := range bodyTokens {
		if _, ok := set.Urgency[tok]; ok {
			result.Breakdown.UrgencyHits = append(result.Breakdown.UrgencyHits, tok)
		}
	}
	for _, tok := range subjectTokens {
		if _, ok := set.Urgency[tok]; ok {
			result.Breakdown.UrgencyHits = append(result.Breakdown.UrgencyHits, tok)
		}
	}
}

// normalize maps a raw hit contribution into [0,1], saturating at the hit cap
// so no single repeated keyword dominates
func normalize(raw float64, hitCap int) float64 {
	limit := float64(hitCap)
	if limit < 1 {
		limit = 1
	}
	if raw > limit {
		raw = limit
	}
	if raw < 0 {
		raw = 0
	}
	return raw / limit
}

// applySentiment combines the keyword confidence with the sentiment verdict
// according to the configured mode and sets the final decision
func (e *Engine) applySentiment(ctx context.Context, msg *Message, weights ScoringWeights, result *ClassificationResult) error {
	keywordConfidence := result.Breakdown.KeywordConfidence
	threshold := weights.KeywordThreshold

	if e.sentiment == nil {
		result.IsComplaint = keywordConfidence >= threshold
		return nil
	}

	switch weights.SentimentMode {
	case SentimentModeAdditive:
		sent, err := e.sentiment.Analyze(ctx, e.text.Clean(msg.Body))
		if err != nil {
			return fmt.Errorf("sentiment analysis for message %s: %w", msg.ID, err)
		}
		result.Breakdown.Sentiment = sent
		result.Breakdown.SentimentApplied = true
		result.Confidence = keywordConfidence + weights.Sentiment*sent.Negativity
		result.IsComplaint = result.Confidence >= threshold

	default: // gate
		result.IsComplaint = keywordConfidence >= threshold

		// Sentiment confirms or overrides only borderline keyword scores;
		// outside the band no backend call is made.
		band := weights.SentimentBand
		if keywordConfidence >= threshold-band && keywordConfidence <= threshold+band {
			sent, err := e.sentiment.Analyze(ctx, e.text.Clean(msg.Body))
			if err != nil {
				return fmt.Errorf("sentiment analysis for message %s: %w", msg.ID, err)
			}
			result.Breakdown.Sentiment = sent
			result.Breakdown.SentimentApplied = true
			result.IsComplaint = sent.Label == "NEGATIVE" && sent.Score >= weights.SentimentThreshold
		}
	}

	return nil
}
