package core

import (
	"context"
)

// KeywordSource yields the current immutable keyword snapshot
type KeywordSource interface {
	Snapshot() *KeywordSet
}

// Excluder short-circuits messages matching a sender or subject exclusion
// pattern before any scoring runs
type Excluder interface {
	// Match returns the pattern that excludes the message, if any
	Match(from, subject string) (string, bool)
}

// SentimentClient defines the interface for the sentiment inference backend
type SentimentClient interface {
	// Analyze classifies the sentiment of the given text
	Analyze(ctx context.Context, text string) (*SentimentResult, error)
}

// CursorStore persists per-mailbox sync cursors durably across restarts.
// Implementations must write atomically so a crash mid-save cannot leave a
// torn cursor behind.
type CursorStore interface {
	// Load returns the persisted cursor for a mailbox, or (nil, nil) when
	// no prior state exists
	Load(ctx context.Context, mailbox string) (*SyncCursor, error)

	// Save persists the cursor for cursor.Mailbox
	Save(ctx context.Context, cursor *SyncCursor) error
}

// ForwardRegistry records processed message identifiers so classification and
// forwarding stay idempotent under at-least-once batch reprocessing
type ForwardRegistry interface {
	// Lookup returns the entry for a message identifier, if present
	Lookup(ctx context.Context, messageID string) (*RegistryEntry, bool, error)

	// Record stores the outcome of a processed message
	Record(ctx context.Context, result *ClassificationResult) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// FeedbackStore persists per-keyword weight adjustments learned by the
// feedback loops, clamped into the bounds fixed at construction time
type FeedbackStore interface {
	// Adjustments returns a snapshot of all keyword adjustments
	Adjustments(ctx context.Context) (map[string]float64, error)

	// Apply adds delta to a keyword's adjustment and returns the clamped value
	Apply(ctx context.Context, term string, delta float64) (float64, error)

	// AddCandidate records a proposed new keyword for operator review
	AddCandidate(ctx context.Context, term string) error

	// Candidates returns the recorded keyword proposals
	Candidates(ctx context.Context) ([]string, error)
}
