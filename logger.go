package h5mbl

import (
	"context"
	"log/slog"
	"os"

	"github.com/DavidAce/h5mbl/internal/filedb"
)

// Logger wraps slog.Logger with h5mbl-specific context: seed and source
// path fields, and summary methods for the merge lifecycle events
// internal/merge.Driver reports.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is
// nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)})
	return &Logger{Logger: slog.New(handler)}
}

// WithSeed adds a seed field to the logger.
func (l *Logger) WithSeed(seed int64) *Logger {
	return &Logger{Logger: l.Logger.With("seed", seed)}
}

// WithPath adds a source path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// LogFileClassified logs the FileDB classification decision for a
// candidate source file (spec.md §4.1).
func (l *Logger) LogFileClassified(ctx context.Context, path string, seed int64, status filedb.Status) {
	switch status {
	case filedb.UpToDate:
		l.DebugContext(ctx, "file up to date, skipping", "path", path, "seed", seed, "error_class", ErrSkip)
	case filedb.Stale:
		l.InfoContext(ctx, "file stale, re-merging", "path", path, "seed", seed)
	default:
		l.DebugContext(ctx, "file missing from file database, merging", "path", path, "seed", seed)
	}
}

// LogTransfer logs the result of transferring one source file's objects
// into the target. A non-nil err is a report-and-continue condition
// (spec.md §7): the file as a whole still counts as merged.
func (l *Logger) LogTransfer(ctx context.Context, path string, seed int64, err error) {
	if err != nil {
		l.WarnContext(ctx, "transfer reported errors", "path", path, "seed", seed, "error", newReportedError("transfer", err))
		return
	}
	l.DebugContext(ctx, "transfer completed", "path", path, "seed", seed)
}

// LogFlush logs a buffered-table flush and FileDB persist, successful or
// not.
func (l *Logger) LogFlush(ctx context.Context, sets int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed", "sets", sets, "error", err)
		return
	}
	l.InfoContext(ctx, "flush completed", "sets", sets)
}

// LogSetBoundary logs a parameter-set boundary crossing: parentDir is
// the new set's directory, filesInSet is how many files the set just
// closed out carried.
func (l *Logger) LogSetBoundary(ctx context.Context, parentDir string, filesInSet int) {
	l.InfoContext(ctx, "parameter set boundary", "next_dir", parentDir, "files_in_previous_set", filesInSet)
}
