// Package logging configures the process-wide structured logger.
// Output goes to stderr and, when a file is configured, to that file as well.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is "text" or "json".
	Format string
	// FilePath is an optional log file. Empty means stderr only.
	FilePath string
}

// DefaultConfig returns text logging at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text"}
}

// Setup builds a logger for cfg and returns a cleanup function that closes
// the log file, if any.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg Config, stderr io.Writer) (*slog.Logger, func(), error) {
	output := stderr
	cleanup := func() {}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = io.MultiWriter(f, stderr)
		cleanup = func() {
			_ = f.Sync()
			_ = f.Close()
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler), cleanup, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
