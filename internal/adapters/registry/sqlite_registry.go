package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// sqliteTimeLayout matches datetime('now') output, so stored timestamps and
// SQLite's clock compare correctly as text. Always UTC.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLiteRegistry is a SQLite implementation of the ForwardRegistry interface
type SQLiteRegistry struct {
	db          *sql.DB
	ttl         time.Duration
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteRegistry creates a new SQLite forward registry
func NewSQLiteRegistry(dbPath string, ttl time.Duration, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS forward_registry (
			message_id TEXT PRIMARY KEY,
			mailbox TEXT,
			is_complaint BOOLEAN,
			confidence REAL,
			terms TEXT,
			processed_at TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_registry_expires_at ON forward_registry(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	r := &SQLiteRegistry{
		db:          db,
		ttl:         ttl,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go r.startCleanupTask()

	return r, nil
}

// Lookup returns the entry for a message identifier, if present and not
// expired
func (r *SQLiteRegistry) Lookup(ctx context.Context, messageID string) (*core.RegistryEntry, bool, error) {
	var mailbox, terms, processedAt, expiresAt string
	var isComplaint bool
	var confidence float64

	err := r.db.QueryRowContext(ctx, `
		SELECT mailbox, is_complaint, confidence, terms, processed_at, expires_at
		FROM forward_registry
		WHERE message_id = ? AND expires_at > datetime('now')
	`, messageID).Scan(&mailbox, &isComplaint, &confidence, &terms, &processedAt, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query registry: %w", err)
	}

	entry := &core.RegistryEntry{
		MessageID:   messageID,
		Mailbox:     mailbox,
		IsComplaint: isComplaint,
		Confidence:  confidence,
	}
	if terms != "" {
		entry.Terms = strings.Split(terms, ",")
	}
	if t, err := time.Parse(sqliteTimeLayout, processedAt); err == nil {
		entry.ProcessedAt = t
	}
	if t, err := time.Parse(sqliteTimeLayout, expiresAt); err == nil {
		entry.ExpiresAt = t
	}

	return entry, true, nil
}

// Record stores the outcome of a processed message
func (r *SQLiteRegistry) Record(ctx context.Context, result *core.ClassificationResult) error {
	expiresAt := time.Now().Add(r.ttl)

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO forward_registry
			(message_id, mailbox, is_complaint, confidence, terms, processed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, result.MessageID, result.Mailbox, result.IsComplaint, result.Confidence,
		strings.Join(result.FiredTerms(), ","),
		result.ClassifiedAt.UTC().Format(sqliteTimeLayout),
		expiresAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("record registry entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (r *SQLiteRegistry) Cleanup(ctx context.Context) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM forward_registry WHERE expires_at <= datetime('now')
	`)
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		r.logger.Debug("Cleaned up expired registry entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (r *SQLiteRegistry) startCleanupTask() {
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

// Stop stops the background cleanup task and closes the database connection
func (r *SQLiteRegistry) Stop() {
	close(r.stopCh)
	if err := r.db.Close(); err != nil {
		r.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}

var _ core.ForwardRegistry = (*SQLiteRegistry)(nil)
