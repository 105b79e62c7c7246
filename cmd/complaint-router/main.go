package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/complaint-router/internal/config"
	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/di"
	"github.com/mikey/complaint-router/internal/feedback"
	"github.com/mikey/complaint-router/internal/keywords"
	"github.com/mikey/complaint-router/internal/sync"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	runner *sync.Runner,
	loops *feedback.Loops,
	engine *core.Engine,
	kwStore *keywords.Store,
	sentimentClient core.SentimentClient,
	registry core.ForwardRegistry,
	cursors core.CursorStore,
	feedbackStore core.FeedbackStore,
) error {
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	// Re-apply tunable settings when the config file is edited in place.
	// Keyword files are re-read as well, so operators can promote reviewed
	// candidate terms without a restart.
	cfg.OnChange(func() {
		logger.Info("Configuration changed, re-applying")
		engine.SetWeights(cfg.GetScoringWeights())
		if err := kwStore.Reload(); err != nil {
			logger.Error("Keyword reload failed", zap.Error(err))
		}
	})

	runner.Start()
	loops.Start()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	loops.Stop()
	runner.Stop()

	// Stop background cleanup and close any resources that need closing
	if stopper, ok := registry.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	for _, res := range []interface{}{sentimentClient, cursors, feedbackStore} {
		if closer, ok := res.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close resource", zap.Error(err))
			}
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
