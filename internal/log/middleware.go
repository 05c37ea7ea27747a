package log

import (
	"context"
	"log/slog"

	"fintrack/internal/core"
)

type contextKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// LogLedgerError logs a failed ledger operation. Domain rejections are
// warnings; anything else is an error.
func LogLedgerError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.WithError(err).WithOperation(operation)

	logger := FromContext(ctx).WithComponent(ComponentLedger)
	level := slog.LevelWarn
	if kind := core.KindOf(err); kind == core.KindPersistenceFailure || kind == core.KindInternal {
		level = slog.LevelError
	}
	logger.Log(ctx, level, msg, fields.ToSlice()...)
}
