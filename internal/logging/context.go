// Package logging carries a request-scoped slog.Logger through context.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type loggerContextKey struct{}

// FromContext returns the logger stored on the context, or a plain JSON
// logger when the context carries none (background jobs, tests).
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("logger", "background"))
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// AddMetaToContext attaches extra attributes to the context logger so they
// appear on every downstream log line.
func AddMetaToContext(ctx context.Context, args ...slog.Attr) context.Context {
	anyArgs := make([]any, len(args))
	for i, arg := range args {
		anyArgs[i] = arg
	}
	return AddToContext(ctx, FromContext(ctx).With(anyArgs...))
}
