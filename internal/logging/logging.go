// Package logging holds the process logger and the per-request correlation id.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const ctxKeyCorrelationID ctxKey = "correlation_id"

var logger = New(os.Stdout, slog.LevelInfo)

// New returns a JSON logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps LOG_LEVEL style strings to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLogger replaces the process logger. Call it once from main.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func Logger() *slog.Logger {
	return logger
}

// WithCorrelationID stores the request correlation id in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationID returns the id stored by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCorrelationID).(string)
	return id
}

// FromContext returns the process logger tagged with the correlation id.
func FromContext(ctx context.Context) *slog.Logger {
	id := CorrelationID(ctx)
	if id == "" {
		return logger
	}
	return logger.With("correlation_id", id)
}
