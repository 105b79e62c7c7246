package feedback

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore persists keyword adjustments and candidate terms so restarts
// retain what the feedback loops have learned
type SQLiteStore struct {
	db       *sql.DB
	min, max float64
	logger   *zap.Logger
}

// NewSQLiteStore opens or creates the feedback database
func NewSQLiteStore(dbPath string, min, max float64, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS keyword_adjustment (
			term TEXT PRIMARY KEY,
			adjustment REAL NOT NULL
		);
		CREATE TABLE IF NOT EXISTS keyword_candidate (
			term TEXT PRIMARY KEY,
			hits INTEGER NOT NULL DEFAULT 1
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db, min: min, max: max, logger: logger}, nil
}

// Adjustments returns a snapshot of all keyword adjustments
func (s *SQLiteStore) Adjustments(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT term, adjustment FROM keyword_adjustment`)
	if err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}
	defer rows.Close()

	adjustments := make(map[string]float64)
	for rows.Next() {
		var term string
		var adj float64
		if err := rows.Scan(&term, &adj); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		adjustments[term] = adj
	}
	return adjustments, rows.Err()
}

// Apply adds delta to a keyword's adjustment and returns the clamped value
func (s *SQLiteStore) Apply(ctx context.Context, term string, delta float64) (float64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO keyword_adjustment (term, adjustment)
		VALUES (?, MAX(?, MIN(?, ?)))
		ON CONFLICT(term) DO UPDATE SET
			adjustment = MAX(?, MIN(?, adjustment + ?))
	`, term, s.min, s.max, delta, s.min, s.max, delta)
	if err != nil {
		return 0, fmt.Errorf("apply adjustment: %w", err)
	}

	var adj float64
	if err := s.db.QueryRowContext(ctx, `
		SELECT adjustment FROM keyword_adjustment WHERE term = ?
	`, term).Scan(&adj); err != nil {
		return 0, fmt.Errorf("read adjustment: %w", err)
	}

	s.logger.Debug("Applied keyword adjustment",
		zap.String("term", term),
		zap.Float64("delta", delta),
		zap.Float64("adjustment", adj))
	return adj, nil
}

// AddCandidate records a proposed new keyword for operator review
func (s *SQLiteStore) AddCandidate(ctx context.Context, term string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO keyword_candidate (term, hits) VALUES (?, 1)
		ON CONFLICT(term) DO UPDATE SET hits = hits + 1
	`, term)
	if err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

// Candidates returns the recorded keyword proposals, most seen first
func (s *SQLiteStore) Candidates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT term FROM keyword_candidate ORDER BY hits DESC, term
	`)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ core.FeedbackStore = (*SQLiteStore)(nil)
