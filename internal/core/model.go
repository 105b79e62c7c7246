package core

import (
	"time"
)

// Message represents an email message fetched from a monitored mailbox
type Message struct {
	ID         string
	Mailbox    string
	From       string
	To         []string
	Subject    string
	Body       string
	ReceivedAt time.Time
	Metadata   map[string]string
}

// SentimentResult represents a normalized verdict from the sentiment backend
type SentimentResult struct {
	// Label is one of "NEGATIVE", "NEUTRAL" or "POSITIVE"
	Label string
	// Score is the backend's confidence in the label, in [0,1]
	Score float64
	// Negativity equals Score when the label is NEGATIVE and 0 otherwise
	Negativity float64
	ModelUsed  string
}

// KeywordHit records a single complaint keyword match in the message body
type KeywordHit struct {
	Term string
	// Index is the token position of the match
	Index int
	// Suppression is the contextual negation factor applied to this hit
	// (1 = unaffected, 0 = fully suppressed)
	Suppression float64
	// Adjustment is the feedback-learned multiplier applied to this hit
	Adjustment float64
}

// SignalBreakdown explains which signals contributed to a classification
type SignalBreakdown struct {
	BodyHits          []KeywordHit
	SubjectHits       []string
	UrgencyHits       []string
	NegationCount     int
	KeywordConfidence float64
	Sentiment         *SentimentResult
	SentimentApplied  bool
	ExcludedBy        string
}

// ClassificationResult is produced once per message by the scoring engine
type ClassificationResult struct {
	MessageID    string
	Mailbox      string
	IsComplaint  bool
	Confidence   float64
	Breakdown    SignalBreakdown
	ClassifiedAt time.Time
}

// FiredTerms returns the complaint keywords that contributed to the decision
func (r *ClassificationResult) FiredTerms() []string {
	seen := make(map[string]struct{}, len(r.Breakdown.BodyHits))
	terms := make([]string, 0, len(r.Breakdown.BodyHits))
	for _, hit := range r.Breakdown.BodyHits {
		if _, ok := seen[hit.Term]; ok {
			continue
		}
		seen[hit.Term] = struct{}{}
		terms = append(terms, hit.Term)
	}
	return terms
}

// SyncCursor is the persisted per-mailbox delta position. A nil cursor or an
// empty token means no prior state and triggers a full windowed fetch.
type SyncCursor struct {
	Mailbox      string
	Token        string
	LastSyncedAt time.Time
}

// RegistryEntry records a processed message so reprocessing the same batch
// after a crash never forwards a message twice
type RegistryEntry struct {
	MessageID   string
	Mailbox     string
	IsComplaint bool
	Confidence  float64
	Terms       []string
	ProcessedAt time.Time
	ExpiresAt   time.Time
}

// KeywordSet holds the four immutable, case-normalized keyword categories.
// A set is never mutated after load; refresh means building a new set and
// swapping it in atomically.
type KeywordSet struct {
	Complaint map[string]struct{}
	Subject   map[string]struct{}
	Urgency   map[string]struct{}
	Negation  map[string]struct{}
}

// ContextualCheck configures negation-proximity suppression
type ContextualCheck struct {
	Enabled bool
	// ScoreThreshold is the suppression factor below which a hit is dropped
	// entirely instead of contributing a dampened share
	ScoreThreshold float64
	// NegationProximity is the token window scanned around each keyword hit
	NegationProximity int
}

// Sentiment combination modes
const (
	SentimentModeGate     = "gate"
	SentimentModeAdditive = "additive"
)

// ScoringWeights holds the weighted scoring model configuration. The engine
// snapshots it per classification, so it can be swapped at runtime.
type ScoringWeights struct {
	BodyKeyword    float64
	SubjectKeyword float64
	Urgency        float64
	Negation       float64
	Sentiment      float64

	KeywordThreshold   float64
	SentimentThreshold float64
	// SentimentMode selects how the sentiment verdict combines with the
	// keyword confidence: "gate" consults sentiment only within
	// SentimentBand of the threshold, "additive" folds Sentiment*Negativity
	// into the confidence before the threshold compare.
	SentimentMode string
	SentimentBand float64

	// HitCap saturates raw hit counts so a single repeated keyword cannot
	// dominate the normalized contribution
	HitCap int

	Contextual ContextualCheck
}
