// Package logger provides a configured structured logger for the SDK and
// its binaries. It wraps the standard library "log/slog" package to ensure
// consistent formatting (JSON in production, text in development) and level
// management.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/muninn-io/muninn-go/internal/config"
)

// New creates a new *slog.Logger instance based on the provided config,
// writing to os.Stderr. A library must never claim stdout; stderr keeps SDK
// diagnostics out of the host application's output stream.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter creates a new *slog.Logger writing to the given io.Writer.
// Useful for tests or custom output destinations.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
		// file:line in every record is useful in development, expensive in prod.
		AddSource: cfg.Environment != config.EnvironmentProduction,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// parseLevel converts a string to slog.Level. Defaults to INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
