package core

import (
	"context"
	"errors"
	"testing"

	"github.com/mikey/complaint-router/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticKeywords struct {
	set *KeywordSet
}

func (s *staticKeywords) Snapshot() *KeywordSet { return s.set }

type staticExcluder struct {
	pattern string
}

func (s *staticExcluder) Match(from, subject string) (string, bool) {
	return s.pattern, s.pattern != ""
}

type fakeSentiment struct {
	result *SentimentResult
	err    error
	calls  int
}

func (f *fakeSentiment) Analyze(ctx context.Context, text string) (*SentimentResult, error) {
	f.calls++
	return f.result, f.err
}

type staticFeedback struct {
	adjustments map[string]float64
}

func (s *staticFeedback) Adjustments(ctx context.Context) (map[string]float64, error) {
	return s.adjustments, nil
}
func (s *staticFeedback) Apply(ctx context.Context, term string, delta float64) (float64, error) {
	return 0, nil
}
func (s *staticFeedback) AddCandidate(ctx context.Context, term string) error { return nil }
func (s *staticFeedback) Candidates(ctx context.Context) ([]string, error)    { return nil, nil }

func terms(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func testKeywords() KeywordSource {
	return &staticKeywords{set: &KeywordSet{
		Complaint: terms("unhappy", "outage", "refund"),
		Subject:   terms("complaint", "escalation"),
		Urgency:   terms("urgent", "immediately"),
		Negation:  terms("not", "no", "never"),
	}}
}

func testWeights() ScoringWeights {
	return ScoringWeights{
		BodyKeyword:        0.7,
		SubjectKeyword:     0.2,
		Urgency:            0.1,
		Negation:           -0.2,
		Sentiment:          0.4,
		KeywordThreshold:   0.2,
		SentimentThreshold: 0.75,
		SentimentMode:      SentimentModeGate,
		SentimentBand:      0.15,
		HitCap:             3,
		Contextual: ContextualCheck{
			Enabled:           true,
			ScoreThreshold:    0.25,
			NegationProximity: 3,
		},
	}
}

func newTestEngine(t *testing.T, sentiment SentimentClient, feedback FeedbackStore, weights ScoringWeights) *Engine {
	t.Helper()
	return NewEngine(testKeywords(), &staticExcluder{}, sentiment, feedback,
		utils.NewTextProcessor(zap.NewNop()), weights, zap.NewNop())
}

func TestClassifyComplaintKeywords(t *testing.T) {
	engine := newTestEngine(t, nil, nil, testWeights())

	result, err := engine.Classify(context.Background(), &Message{
		ID:      "m1",
		Subject: "service complaint",
		Body:    "I am extremely unhappy about the recurring outage.",
	})
	require.NoError(t, err)

	assert.True(t, result.IsComplaint)
	assert.ElementsMatch(t, []string{"unhappy", "outage"}, result.FiredTerms())
	assert.Equal(t, []string{"complaint"}, result.Breakdown.SubjectHits)
	assert.Zero(t, result.Breakdown.NegationCount)

	// Two body hits of three cap, one subject hit of three cap
	expected := 0.7*(2.0/3.0) + 0.2*(1.0/3.0)
	assert.InDelta(t, expected, result.Confidence, 1e-9)
}

func TestClassifyBodyWeightMonotonic(t *testing.T) {
	msg := &Message{
		ID:      "m1b",
		Subject: "service complaint",
		Body:    "I am extremely unhappy about the recurring outage.",
	}

	low := testWeights()
	low.BodyKeyword = 0.5
	high := testWeights()
	high.BodyKeyword = 0.9

	lowResult, err := newTestEngine(t, nil, nil, low).Classify(context.Background(), msg)
	require.NoError(t, err)
	highResult, err := newTestEngine(t, nil, nil, high).Classify(context.Background(), msg)
	require.NoError(t, err)

	// Raising the body keyword weight can only push the score up
	assert.GreaterOrEqual(t, highResult.Confidence, lowResult.Confidence)
}

func TestSetWeightsAppliesToNextClassify(t *testing.T) {
	engine := newTestEngine(t, nil, nil, testWeights())
	msg := &Message{ID: "m1c", Body: "please refund me"}

	result, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, result.IsComplaint)

	raised := testWeights()
	raised.KeywordThreshold = 0.9
	engine.SetWeights(raised)

	result, err = engine.Classify(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, result.IsComplaint)
}

func TestClassifyNegationFlipsDecision(t *testing.T) {
	engine := newTestEngine(t, nil, nil, testWeights())

	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m2",
		Body: "I am not unhappy with the service.",
	})
	require.NoError(t, err)

	assert.False(t, result.IsComplaint)
	require.Len(t, result.Breakdown.BodyHits, 1)
	assert.Zero(t, result.Breakdown.BodyHits[0].Suppression)
	assert.Equal(t, 1, result.Breakdown.NegationCount)
}

func TestClassifyContextualDisabled(t *testing.T) {
	weights := testWeights()
	weights.Contextual.Enabled = false
	weights.Negation = 0
	engine := newTestEngine(t, nil, nil, weights)

	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m3",
		Body: "I am not unhappy with the service.",
	})
	require.NoError(t, err)

	require.Len(t, result.Breakdown.BodyHits, 1)
	assert.Equal(t, 1.0, result.Breakdown.BodyHits[0].Suppression)
	assert.True(t, result.IsComplaint)
}

func TestClassifyDistantNegationPartiallySuppresses(t *testing.T) {
	engine := newTestEngine(t, nil, nil, testWeights())

	// "not" is two tokens before "unhappy": factor 1/3 > 0.25, so the hit
	// survives at reduced weight
	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m4",
		Body: "not very unhappy",
	})
	require.NoError(t, err)
	require.Len(t, result.Breakdown.BodyHits, 1)
	assert.InDelta(t, 1.0/3.0, result.Breakdown.BodyHits[0].Suppression, 1e-9)
}

func TestClassifyExclusionIsAuthoritative(t *testing.T) {
	sentiment := &fakeSentiment{result: &SentimentResult{Label: "NEGATIVE", Score: 0.99, Negativity: 0.99}}
	engine := NewEngine(testKeywords(), &staticExcluder{pattern: "from:noreply@"},
		sentiment, nil, utils.NewTextProcessor(zap.NewNop()), testWeights(), zap.NewNop())

	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m5",
		From: "noreply@example.com",
		Body: "unhappy outage refund urgent",
	})
	require.NoError(t, err)

	assert.False(t, result.IsComplaint)
	assert.Equal(t, "from:noreply@", result.Breakdown.ExcludedBy)
	assert.Empty(t, result.Breakdown.BodyHits)
	assert.Zero(t, sentiment.calls)
}

func TestClassifyGateModeBorderlineCallsSentiment(t *testing.T) {
	weights := testWeights()
	weights.KeywordThreshold = 0.25
	sentiment := &fakeSentiment{result: &SentimentResult{Label: "NEGATIVE", Score: 0.9, Negativity: 0.9}}
	engine := newTestEngine(t, sentiment, nil, weights)

	// One body hit: 0.7/3 = 0.2333, inside [0.10, 0.40]
	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m6",
		Body: "the outage continues",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sentiment.calls)
	assert.True(t, result.Breakdown.SentimentApplied)
	assert.True(t, result.IsComplaint)
}

func TestClassifyGateModeBorderlineNeutralOverrides(t *testing.T) {
	weights := testWeights()
	weights.KeywordThreshold = 0.2
	sentiment := &fakeSentiment{result: &SentimentResult{Label: "NEUTRAL", Score: 0.8}}
	engine := newTestEngine(t, sentiment, nil, weights)

	// 0.2333 is above the threshold but inside the band, so the neutral
	// verdict vetoes the keyword decision
	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m7",
		Body: "the outage continues",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sentiment.calls)
	assert.False(t, result.IsComplaint)
}

func TestClassifyGateModeOutsideBandSkipsSentiment(t *testing.T) {
	sentiment := &fakeSentiment{result: &SentimentResult{Label: "NEGATIVE", Score: 0.9, Negativity: 0.9}}
	engine := newTestEngine(t, sentiment, nil, testWeights())

	// Three body hits saturate the cap: 0.7 is far above 0.2 + 0.15
	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m8",
		Body: "unhappy outage refund",
	})
	require.NoError(t, err)

	assert.Zero(t, sentiment.calls)
	assert.False(t, result.Breakdown.SentimentApplied)
	assert.True(t, result.IsComplaint)
}

func TestClassifyAdditiveMode(t *testing.T) {
	weights := testWeights()
	weights.SentimentMode = SentimentModeAdditive
	weights.KeywordThreshold = 0.5
	sentiment := &fakeSentiment{result: &SentimentResult{Label: "NEGATIVE", Score: 0.8, Negativity: 0.8}}
	engine := newTestEngine(t, sentiment, nil, weights)

	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m9",
		Body: "the outage continues",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sentiment.calls)
	expected := 0.7*(1.0/3.0) + 0.4*0.8
	assert.InDelta(t, expected, result.Confidence, 1e-9)
	assert.True(t, result.IsComplaint)
}

func TestClassifySentimentErrorPropagates(t *testing.T) {
	weights := testWeights()
	weights.SentimentMode = SentimentModeAdditive
	sentiment := &fakeSentiment{err: errors.New("backend down")}
	engine := newTestEngine(t, sentiment, nil, weights)

	_, err := engine.Classify(context.Background(), &Message{ID: "m10", Body: "the outage continues"})
	require.Error(t, err)
}

func TestClassifyFeedbackAdjustments(t *testing.T) {
	weights := testWeights()
	weights.KeywordThreshold = 0.2

	t.Run("demoted keyword no longer counts", func(t *testing.T) {
		feedback := &staticFeedback{adjustments: map[string]float64{"outage": -1.0}}
		engine := newTestEngine(t, nil, feedback, weights)

		result, err := engine.Classify(context.Background(), &Message{ID: "m11", Body: "the outage continues"})
		require.NoError(t, err)

		require.Len(t, result.Breakdown.BodyHits, 1)
		assert.Zero(t, result.Breakdown.BodyHits[0].Adjustment)
		assert.False(t, result.IsComplaint)
	})

	t.Run("promoted keyword counts extra", func(t *testing.T) {
		feedback := &staticFeedback{adjustments: map[string]float64{"outage": 0.5}}
		engine := newTestEngine(t, nil, feedback, weights)

		result, err := engine.Classify(context.Background(), &Message{ID: "m12", Body: "the outage continues"})
		require.NoError(t, err)

		expected := 0.7 * (1.5 / 3.0)
		assert.InDelta(t, expected, result.Confidence, 1e-9)
	})
}

func TestClassifyUrgencyHitsFromBodyAndSubject(t *testing.T) {
	engine := newTestEngine(t, nil, nil, testWeights())

	result, err := engine.Classify(context.Background(), &Message{
		ID:      "m13",
		Subject: "urgent escalation",
		Body:    "please fix this immediately, the outage is ongoing",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"immediately", "urgent"}, result.Breakdown.UrgencyHits)
	assert.True(t, result.IsComplaint)
}

func TestClassifyHitCapSaturates(t *testing.T) {
	engine := newTestEngine(t, nil, nil, testWeights())

	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m14",
		Body: "outage outage outage outage outage outage",
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.7, result.Breakdown.KeywordConfidence, 1e-9)
}

func TestClassifyConfidenceFloorsAtZero(t *testing.T) {
	engine := newTestEngine(t, nil, nil, testWeights())

	result, err := engine.Classify(context.Background(), &Message{
		ID:   "m15",
		Body: "no no no never not",
	})
	require.NoError(t, err)

	assert.Zero(t, result.Confidence)
	assert.False(t, result.IsComplaint)
}
