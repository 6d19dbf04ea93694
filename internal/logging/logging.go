// Package logging builds the zap logger used by cosweep.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger writing to stderr at the given level ("debug",
// "info", "warn", "error") in the given format ("json" or "console").
func New(level, format string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}

	var config zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		config = zap.NewDevelopmentConfig()
		config.Development = false
		config.DisableStacktrace = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case FormatJSON:
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("log format %q: use %q or %q", format, FormatJSON, FormatConsole)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
