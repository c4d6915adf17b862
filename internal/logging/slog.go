package logging

import (
	"context"
	"io"
	"log/slog"
)

// SlogLogger adapts *slog.Logger to the Logger interface. The context is
// forwarded to the handler, so a context-aware handler can pull request
// values into the record.
type SlogLogger struct {
	base *slog.Logger
}

func NewSlogLogger(base *slog.Logger) *SlogLogger {
	return &SlogLogger{base: base}
}

// NewJSONLogger builds a logger writing one JSON record per line, the format
// the server emits in production.
func NewJSONLogger(w io.Writer) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil)))
}

// NewTextLogger builds a logger with the human-readable text handler.
func NewTextLogger(w io.Writer) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(w, nil)))
}

// NewDiscardLogger drops every record. Tests use it to keep output quiet.
func NewDiscardLogger() *SlogLogger {
	return NewTextLogger(io.Discard)
}

func (a *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	a.base.DebugContext(ctx, msg, args...)
}

func (a *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	a.base.InfoContext(ctx, msg, args...)
}

func (a *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	a.base.WarnContext(ctx, msg, args...)
}

func (a *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	a.base.ErrorContext(ctx, msg, args...)
}

func (a *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{base: a.base.With(args...)}
}
