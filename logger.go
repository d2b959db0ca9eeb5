package leann

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with engine-specific helpers so call sites don't
// repeat field names for the same handful of recurring operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger backed by handler. A nil handler falls back to
// a text handler on stderr at Info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger discards all output. It is the default when no logger is configured.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)})
	return &Logger{Logger: slog.New(handler)}
}

// LogBuildPhase logs a builder phase transition.
func (l *Logger) LogBuildPhase(ctx context.Context, phase string, n int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build phase failed", "phase", phase, "n", n, "error", err)
		return
	}
	l.InfoContext(ctx, "build phase completed", "phase", phase, "n", n)
}

// LogSearch logs a completed search, including degraded-path reasons.
func (l *Logger) LogSearch(ctx context.Context, k, found int, partial bool, reason string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "k", k, "error", err)
		return
	}
	if partial {
		l.WarnContext(ctx, "search returned partial results", "k", k, "found", found, "reason", reason)
		return
	}
	l.DebugContext(ctx, "search completed", "k", k, "found", found)
}

// LogIngest logs a single document ingest decision during build.
func (l *Logger) LogIngest(ctx context.Context, id string, skipped bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed", "id", id, "error", err)
		return
	}
	if skipped {
		l.DebugContext(ctx, "ingest skipped duplicate", "id", id)
		return
	}
	l.DebugContext(ctx, "ingest completed", "id", id)
}
