package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/complaint-router/internal/adapters/registry"
	"github.com/mikey/complaint-router/internal/config"
	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// RegistryFactory creates forward registries based on configuration
type RegistryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRegistryFactory creates a new registry factory
func NewRegistryFactory(cfg *config.Config, logger *zap.Logger) *RegistryFactory {
	return &RegistryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRegistry creates a forward registry based on the configuration
func (f *RegistryFactory) CreateRegistry() (core.ForwardRegistry, error) {
	registryType := f.cfg.GetString("registry.type")
	ttl, err := f.cfg.GetDuration("registry.ttl")
	if err != nil {
		return nil, fmt.Errorf("invalid registry TTL: %w", err)
	}
	cleanupFreq, err := f.cfg.GetDuration("registry.cleanup_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid registry cleanup frequency: %w", err)
	}

	switch registryType {
	case "memory":
		return registry.NewMemoryRegistry(ttl, f.logger, cleanupFreq), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("registry.sqlite_path")
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return registry.NewSQLiteRegistry(sqlitePath, ttl, f.logger, cleanupFreq)
	case "mysql":
		mysqlDSN := f.cfg.GetString("registry.mysql_dsn")
		return registry.NewMySQLRegistry(mysqlDSN, ttl, f.logger, cleanupFreq)
	default:
		return nil, fmt.Errorf("unsupported registry type: %s", registryType)
	}
}
