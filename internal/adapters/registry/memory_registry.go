package registry

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// MemoryRegistry is an in-memory implementation of the ForwardRegistry
// interface
type MemoryRegistry struct {
	entries     map[string]*core.RegistryEntry
	mu          sync.RWMutex
	ttl         time.Duration
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMemoryRegistry creates a new in-memory forward registry
func NewMemoryRegistry(ttl time.Duration, logger *zap.Logger, cleanupFreq time.Duration) *MemoryRegistry {
	r := &MemoryRegistry{
		entries:     make(map[string]*core.RegistryEntry),
		ttl:         ttl,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go r.startCleanupTask()

	return r
}

// Lookup returns the entry for a message identifier, if present and not
// expired
func (r *MemoryRegistry) Lookup(ctx context.Context, messageID string) (*core.RegistryEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[messageID]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, false, nil
	}

	copied := *entry
	return &copied, true, nil
}

// Record stores the outcome of a processed message
func (r *MemoryRegistry) Record(ctx context.Context, result *core.ClassificationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[result.MessageID] = &core.RegistryEntry{
		MessageID:   result.MessageID,
		Mailbox:     result.Mailbox,
		IsComplaint: result.IsComplaint,
		Confidence:  result.Confidence,
		Terms:       result.FiredTerms(),
		ProcessedAt: result.ClassifiedAt,
		ExpiresAt:   time.Now().Add(r.ttl),
	}
	return nil
}

// Cleanup removes expired entries
func (r *MemoryRegistry) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	expired := 0
	for id, entry := range r.entries {
		if now.After(entry.ExpiresAt) {
			delete(r.entries, id)
			expired++
		}
	}

	r.logger.Debug("Cleaned up expired registry entries", zap.Int("expired_count", expired))
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (r *MemoryRegistry) startCleanupTask() {
	ticker := time.NewTicker(r.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Cleanup(context.Background()); err != nil {
				r.logger.Error("Failed to clean up registry", zap.Error(err))
			}
		case <-r.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (r *MemoryRegistry) Stop() {
	close(r.stopCh)
}

var _ core.ForwardRegistry = (*MemoryRegistry)(nil)
