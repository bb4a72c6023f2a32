// Package logging bootstraps the process-wide zap logger and the capped
// log-line buckets the control plane exposes per task and in general
// (§7 User-visible failures: "the log stream, task-scoped and general
// buckets, capped at 500 lines each").
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a sugared logger at the given level: debug|info|warn|error.
func New(level string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel

	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		fallback, _ := zap.NewProduction()
		return fallback.Sugar()
	}

	return logger.Sugar()
}
