package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/complaint-router/internal/adapters/cursor"
	"github.com/mikey/complaint-router/internal/config"
	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// CursorFactory creates sync cursor stores based on configuration
type CursorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCursorFactory creates a new cursor factory
func NewCursorFactory(cfg *config.Config, logger *zap.Logger) *CursorFactory {
	return &CursorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCursorStore creates a cursor store based on the configuration
func (f *CursorFactory) CreateCursorStore() (core.CursorStore, error) {
	storeType := f.cfg.GetString("sync.cursor_store")

	switch storeType {
	case "file":
		path := f.cfg.GetString("sync.cursor_path")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cursor directory: %w", err)
		}
		return cursor.NewFileStore(path, f.logger)
	case "sqlite":
		path := f.cfg.GetString("sync.sqlite_path")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return cursor.NewSQLiteStore(path, f.logger)
	case "memory":
		return cursor.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported cursor store type: %s", storeType)
	}
}
