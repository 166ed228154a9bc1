// Package logging builds the JSON-lines structured logger used by minish.
//
// Log lines look like:
//
//	{"ts":"2026-01-15T10:30:00Z","level":"INFO","msg":"shell started","session_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","pid":12345}
//
// Levels:
//   - debug: every dispatch and reap (enabled via MINISH_DEBUG=1)
//   - info: startup, shutdown, background job lifecycle
//   - warn: dispatch failures reported to the user
//   - error: failures that end the session
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: io.Discard)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool

	// SessionID tags every line. A fresh one is generated when empty.
	SessionID string
}

// New creates a new JSON-lines structured logger.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = &Config{}
	}

	output := cfg.Output
	if output == nil {
		output = io.Discard
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Key = "ts"
			}
			return a
		},
	}

	return slog.New(slog.NewJSONHandler(output, opts)).With("session_id", sessionID)
}

// ParseLevel maps a config level name to a slog level. Unknown names map
// to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenFile opens path for appending, creating it and its directory when
// missing. The file is owner-only since command lines end up in it.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// NewFile returns a logger writing to path and a function that closes the
// file. If path cannot be opened the logger discards everything and the
// open error is returned alongside it so the caller can mention it once.
func NewFile(path string, level slog.Level) (*slog.Logger, func() error, error) {
	f, err := OpenFile(path)
	if err != nil {
		return New(&Config{Output: io.Discard, Level: level}), func() error { return nil }, err
	}
	return New(&Config{Output: f, Level: level}), f.Close, nil
}

// StartupInfo holds information to log when the shell starts.
type StartupInfo struct {
	Version     string
	ConfigPath  string
	Interactive bool
	MaxStages   int
	PID         int
}

// LogStartup logs shell startup information.
func LogStartup(logger *slog.Logger, info StartupInfo) {
	logger.Info("shell started",
		"version", info.Version,
		"config_path", info.ConfigPath,
		"interactive", info.Interactive,
		"max_pipeline_stages", info.MaxStages,
		"pid", info.PID,
	)
}

// LogShutdown logs shell shutdown.
func LogShutdown(logger *slog.Logger, reason string, status int) {
	logger.Info("shell exiting", "reason", reason, "status", status)
}
