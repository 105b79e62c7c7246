package factory

import (
	"fmt"

	"github.com/mikey/complaint-router/internal/adapters/graph"
	"github.com/mikey/complaint-router/internal/config"
	"go.uber.org/zap"
)

// ProviderFactory creates the mail provider client
type ProviderFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config, logger *zap.Logger) *ProviderFactory {
	return &ProviderFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates a Microsoft Graph client from the configured
// application credentials.
func (f *ProviderFactory) CreateClient() (*graph.Client, error) {
	graphCfg := f.cfg.GetGraph()
	if graphCfg.TenantID == "" || graphCfg.ClientID == "" || graphCfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph tenant_id, client_id and client_secret are required")
	}
	return graph.NewClient(graphCfg, f.logger), nil
}
