package cursor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore persists per-mailbox cursors in a SQLite database. Upserts are
// single statements, so readers never observe a torn write.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens or creates the cursor database
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_cursor (
			mailbox TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			last_synced_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Load returns the persisted cursor for a mailbox, or (nil, nil) when no
// prior state exists
func (s *SQLiteStore) Load(ctx context.Context, mailbox string) (*core.SyncCursor, error) {
	var token, lastSynced string
	err := s.db.QueryRowContext(ctx, `
		SELECT token, last_synced_at FROM sync_cursor WHERE mailbox = ?
	`, mailbox).Scan(&token, &lastSynced)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query cursor: %w", err)
	}

	at, err := time.Parse(time.RFC3339, lastSynced)
	if err != nil {
		return nil, fmt.Errorf("parse last_synced_at: %w", err)
	}

	return &core.SyncCursor{
		Mailbox:      mailbox,
		Token:        token,
		LastSyncedAt: at,
	}, nil
}

// Save persists the cursor for cursor.Mailbox
func (s *SQLiteStore) Save(ctx context.Context, cursor *core.SyncCursor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_cursor (mailbox, token, last_synced_at)
		VALUES (?, ?, ?)
	`, cursor.Mailbox, cursor.Token, cursor.LastSyncedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ core.CursorStore = (*SQLiteStore)(nil)
