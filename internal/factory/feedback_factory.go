package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/complaint-router/internal/adapters/feedback"
	"github.com/mikey/complaint-router/internal/config"
	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// FeedbackFactory creates keyword feedback stores based on configuration
type FeedbackFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFeedbackFactory creates a new feedback factory
func NewFeedbackFactory(cfg *config.Config, logger *zap.Logger) *FeedbackFactory {
	return &FeedbackFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates a feedback store based on the configuration
func (f *FeedbackFactory) CreateStore() (core.FeedbackStore, error) {
	storeType := f.cfg.GetString("feedback.store")
	min := f.cfg.GetFloat64("feedback.min_adjust")
	max := f.cfg.GetFloat64("feedback.max_adjust")
	if min > max {
		return nil, fmt.Errorf("feedback.min_adjust %f exceeds feedback.max_adjust %f", min, max)
	}

	switch storeType {
	case "memory":
		return feedback.NewMemoryStore(min, max), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("feedback.sqlite_path")
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return feedback.NewSQLiteStore(sqlitePath, min, max, f.logger)
	default:
		return nil, fmt.Errorf("unsupported feedback store type: %s", storeType)
	}
}
