// Package ctxlog provides a context key for safely passing a
// zerolog.Logger instance through context.Context.
package ctxlog

import (
	"context"

	"github.com/rs/zerolog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// loggerKey is the key for the zerolog.Logger in a context.Context.
var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the zerolog.Logger from a context. If no
// logger is found, it returns a no-op logger (zerolog.Nop) rather
// than panicking — sparkwheel is embedded as a library, and a
// caller that never wired a logger in still deserves resolution to
// proceed silently rather than crash.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}
