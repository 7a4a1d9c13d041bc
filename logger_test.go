package h5mbl

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DavidAce/h5mbl/internal/filedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level}))
}

func TestNewLogger_NilHandlerDefaultsToTextHandler(t *testing.T) {
	l := NewLogger(nil)
	require.NotNil(t, l)
	require.NotNil(t, l.Logger)
}

func TestNoopLogger_DiscardsEverything(t *testing.T) {
	l := NoopLogger()
	l.Info("should not panic or write anywhere visible")
}

func TestWithSeedAndWithPath_AddFields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf, slog.LevelDebug)

	l.WithSeed(42).WithPath("/data/seed_42.h5").Info("merged")
	out := buf.String()
	assert.Contains(t, out, "seed=42")
	assert.Contains(t, out, "/data/seed_42.h5")
}

func TestLogFileClassified_LogsStatusSpecificMessage(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf, slog.LevelDebug)
	ctx := context.Background()

	l.LogFileClassified(ctx, "/data/seed_1.h5", 1, filedb.UpToDate)
	assert.Contains(t, buf.String(), "up to date")

	buf.Reset()
	l.LogFileClassified(ctx, "/data/seed_2.h5", 2, filedb.Stale)
	assert.Contains(t, buf.String(), "stale")

	buf.Reset()
	l.LogFileClassified(ctx, "/data/seed_3.h5", 3, filedb.Status(99))
	assert.Contains(t, buf.String(), "missing from file database")
}

func TestLogTransfer_WarnsOnErrorAndDebugsOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf, slog.LevelDebug)
	ctx := context.Background()

	l.LogTransfer(ctx, "/data/seed_1.h5", 1, errors.New("dataset shape mismatch"))
	assert.Contains(t, buf.String(), "WARN")

	buf.Reset()
	l.LogTransfer(ctx, "/data/seed_1.h5", 1, nil)
	assert.Contains(t, buf.String(), "transfer completed")
}

func TestLogFlush_ErrorsOnFailureAndInfoOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf, slog.LevelDebug)
	ctx := context.Background()

	l.LogFlush(ctx, 3, errors.New("flush write failed"))
	assert.Contains(t, buf.String(), "ERROR")

	buf.Reset()
	l.LogFlush(ctx, 3, nil)
	assert.Contains(t, buf.String(), "flush completed")
}

func TestLogSetBoundary_LogsNextDirAndPreviousCount(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf, slog.LevelDebug)

	l.LogSetBoundary(context.Background(), "/data/L16", 7)
	out := buf.String()
	assert.Contains(t, out, "/data/L16")
	assert.Contains(t, out, "files_in_previous_set=7")
}
