package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so request-scoped fields can be attached and
// passed around through the request context.
type Logger struct {
	*slog.Logger
}

// NewLogger returns a human-readable text logger in development and a JSON
// logger otherwise.
func NewLogger(isDev bool) *Logger {
	return newLogger(os.Stdout, isDev)
}

func newLogger(w io.Writer, isDev bool) *Logger {
	if isDev {
		return &Logger{slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	}
	return &Logger{slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))}
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *Logger {
	return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithFields returns a child logger carrying the given key/value pairs.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{l.Logger.With(args...)}
}

// WithContext stores the logger in ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, l)
}

// NewStdLogger adapts l for APIs that take a *log.Logger, such as
// http.Server.ErrorLog. Records are written at warn level.
func NewStdLogger(l *Logger) *log.Logger {
	return slog.NewLogLogger(l.Handler(), slog.LevelWarn)
}
