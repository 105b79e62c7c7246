package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

type fileRecord struct {
	Token        string    `json:"token"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// FileStore persists per-mailbox cursors in a single JSON file. Saves are
// atomic: the whole map is written to a temp file and renamed over the old
// one, so a crash mid-write leaves the previous cursors intact.
type FileStore struct {
	path    string
	mu      sync.Mutex
	records map[string]fileRecord
	logger  *zap.Logger
}

// NewFileStore loads existing cursors from path, starting empty when the
// file does not exist yet
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]fileRecord),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read cursor file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("decode cursor file %s: %w", path, err)
	}

	logger.Info("Loaded sync cursors", zap.String("path", path), zap.Int("mailboxes", len(s.records)))
	return s, nil
}

// Load returns the persisted cursor for a mailbox, or (nil, nil) when no
// prior state exists
func (s *FileStore) Load(ctx context.Context, mailbox string) (*core.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[mailbox]
	if !ok {
		return nil, nil
	}
	return &core.SyncCursor{
		Mailbox:      mailbox,
		Token:        rec.Token,
		LastSyncedAt: rec.LastSyncedAt,
	}, nil
}

// Save persists the cursor for cursor.Mailbox
func (s *FileStore) Save(ctx context.Context, cursor *core.SyncCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[cursor.Mailbox] = fileRecord{
		Token:        cursor.Token,
		LastSyncedAt: cursor.LastSyncedAt,
	}
	return s.flushLocked()
}

// flushLocked writes the full cursor map atomically. Callers hold s.mu.
func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursors: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".cursors-*")
	if err != nil {
		return fmt.Errorf("create temp cursor file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cursor file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp cursor file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cursor file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cursor file: %w", err)
	}
	return nil
}

var _ core.CursorStore = (*FileStore)(nil)
