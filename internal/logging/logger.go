package logging

import (
	"fmt"

	"github.com/mikey/complaint-router/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func build(name string, level zapcore.Level, json bool) (*zap.Logger, error) {
	var logConfig zap.Config
	if json {
		logConfig = zap.NewProductionConfig()
		logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Named(name), nil
}

// InitLogger initializes the daemon logger based on configuration
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	return build("complaint-router",
		parseLevel(cfg.GetString("logging.level")),
		cfg.GetString("logging.format") == "json")
}

// InitConsoleLogger initializes a logger for the one-shot CLI
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return build("complaint-check", level, jsonFormat)
}
