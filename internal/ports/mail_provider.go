package ports

import (
	"context"
	"time"

	"github.com/mikey/complaint-router/internal/core"
)

// ListFilter bounds a full fetch when no delta cursor is available
type ListFilter struct {
	StartDate       time.Time
	FromDomain      string
	SubjectContains string
	Top             int
}

// ListResult is one page-walked batch of messages plus the provider's next
// delta cursor, when it granted one
type ListResult struct {
	Messages []*core.Message
	Cursor   *core.SyncCursor
}

// MailProvider defines the mailbox collaborator boundary. Implementations
// must return core.ErrCursorExpired (possibly wrapped) when a presented
// cursor is no longer accepted, distinctly from generic failures.
type MailProvider interface {
	// ListMessages fetches messages after cursor, or a windowed full fetch
	// when cursor is nil or has no token
	ListMessages(ctx context.Context, mailbox string, cursor *core.SyncCursor, filter ListFilter) (*ListResult, error)

	// Forward sends a copy of the message to the distribution address
	Forward(ctx context.Context, mailbox, messageID, distribution string) error

	// Delete removes the original message from the mailbox
	Delete(ctx context.Context, mailbox, messageID string) error
}

// FeedbackSource lists recently received messages so the feedback loops can
// scan them for operator signals
type FeedbackSource interface {
	RecentMessages(ctx context.Context, mailbox string, since time.Time, top int) ([]*core.Message, error)
}
