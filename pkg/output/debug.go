package output

import (
	"context"

	"github.com/rs/zerolog"
)

type debugLogKey struct{}

var nopLogger = zerolog.Nop()

// WithDebugLogger attaches the given structured logger to the context. The
// execution core emits per-process trace events through it.
func WithDebugLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, debugLogKey{}, logger)
}

// DebugLogger returns the structured logger attached to the context, or a
// disabled logger if none was attached.
func DebugLogger(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(debugLogKey{})
	if logger == nil {
		return &nopLogger
	}

	return logger.(*zerolog.Logger)
}
