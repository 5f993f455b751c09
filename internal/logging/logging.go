// Package logging builds the zap logger used throughout sockd.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to stderr at level in the given format.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case FormatJSON:
		cfg = zap.NewProductionConfig()
	case FormatConsole, "":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, formatErr(format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil

	return cfg.Build()
}

// Check validates level and format without building a logger.
func Check(level, format string) error {
	if _, err := ParseLevel(level); err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case FormatJSON, FormatConsole, "":
		return nil
	default:
		return formatErr(format)
	}
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(level string) (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return lvl, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

func formatErr(format string) error {
	return fmt.Errorf("log format %q: want %s or %s", format, FormatConsole, FormatJSON)
}
