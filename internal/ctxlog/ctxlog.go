// Package ctxlog carries a slog.Logger through context.Context so that
// resolution code can log without depending on process-global state.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is unexported to avoid collisions with context keys from other packages.
type key struct{}

var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. The resolution
// packages are also used library-style from tests that install no logger,
// so a missing logger falls back to slog.Default rather than failing.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
