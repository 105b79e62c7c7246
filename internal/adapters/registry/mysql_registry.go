package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// MySQLRegistry is a MySQL implementation of the ForwardRegistry interface
type MySQLRegistry struct {
	db          *sql.DB
	ttl         time.Duration
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLRegistry creates a new MySQL forward registry
func NewMySQLRegistry(dsn string, ttl time.Duration, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLRegistry, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS forward_registry (
			message_id VARCHAR(255) PRIMARY KEY,
			mailbox VARCHAR(255),
			is_complaint BOOLEAN,
			confidence DOUBLE,
			terms TEXT,
			processed_at TIMESTAMP NULL,
			expires_at TIMESTAMP NULL,
			INDEX idx_registry_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	r := &MySQLRegistry{
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
func (r *MySQLRegistry) Lookup(ctx context.Context, messageID string) (*core.RegistryEntry, bool, error) {
	var mailbox, terms string
	var isComplaint bool
	var confidence float64
	var processedAt, expiresAt time.Time

	err := r.db.QueryRowContext(ctx, `
		SELECT mailbox, is_complaint, confidence, terms, processed_at, expires_at
		FROM forward_registry
		WHERE message_id = ? AND expires_at > NOW()
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
		ProcessedAt: processedAt,
		ExpiresAt:   expiresAt,
	}
	if terms != "" {
		entry.Terms = strings.Split(terms, ",")
	}

	return entry, true, nil
}

// Record stores the outcome of a processed message
func (r *MySQLRegistry) Record(ctx context.Context, result *core.ClassificationResult) error {
	expiresAt := time.Now().Add(r.ttl)

	_, err := r.db.ExecContext(ctx, `
		REPLACE INTO forward_registry
			(message_id, mailbox, is_complaint, confidence, terms, processed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, result.MessageID, result.Mailbox, result.IsComplaint, result.Confidence,
		strings.Join(result.FiredTerms(), ","), result.ClassifiedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("record registry entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (r *MySQLRegistry) Cleanup(ctx context.Context) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM forward_registry WHERE expires_at <= NOW()
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
func (r *MySQLRegistry) startCleanupTask() {
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
func (r *MySQLRegistry) Stop() {
	close(r.stopCh)
	if err := r.db.Close(); err != nil {
		r.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}

var _ core.ForwardRegistry = (*MySQLRegistry)(nil)
