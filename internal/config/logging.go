package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// NewRunLogger creates a dual-output logger for one run: text to stderr for
// readability, JSON appended to the run log file for machine parsing. Every
// line carries the run id. Returns the logger and a cleanup function to
// close the file.
func NewRunLogger(logPath, runID string, level slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		slog.Error("failed to create log dir, using stderr only", "error", err, "path", logPath)
		return slog.New(stderrHandler).With("run_id", runID), func() error { return nil }
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Error("failed to open log file, using stderr only", "error", err, "path", logPath)
		return slog.New(stderrHandler).With("run_id", runID), func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler)).With("run_id", runID)

	cleanup := func() error {
		return file.Close()
	}
	return logger, cleanup
}

// NewRunLoggerWithWriters creates a run logger with custom writers (for testing).
func NewRunLoggerWithWriters(stderr, file io.Writer, runID string, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)).With("run_id", runID)
}
