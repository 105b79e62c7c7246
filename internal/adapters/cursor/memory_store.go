package cursor

import (
	"context"
	"sync"

	"github.com/mikey/complaint-router/internal/core"
)

// MemoryStore keeps cursors in memory. State is lost on restart; intended
// for tests and throwaway runs.
type MemoryStore struct {
	mu      sync.Mutex
	cursors map[string]core.SyncCursor
}

// NewMemoryStore creates an empty in-memory cursor store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]core.SyncCursor)}
}

// Load returns the cursor for a mailbox, or (nil, nil) when absent
func (s *MemoryStore) Load(ctx context.Context, mailbox string) (*core.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.cursors[mailbox]
	if !ok {
		return nil, nil
	}
	copied := cur
	return &copied, nil
}

// Save stores the cursor for cursor.Mailbox
func (s *MemoryStore) Save(ctx context.Context, cursor *core.SyncCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[cursor.Mailbox] = *cursor
	return nil
}

var _ core.CursorStore = (*MemoryStore)(nil)
