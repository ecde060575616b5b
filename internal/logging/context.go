package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const requestIDKey contextKey = iota

// WithRequestID stores the request id and attaches a logger carrying it.
func WithRequestID(ctx context.Context, logger zerolog.Logger, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return logger.With().Str("request_id", requestID).Logger().WithContext(ctx)
}

// RequestID extracts the request id from ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the logger attached to ctx.
// Without one it returns a disabled logger, never nil.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
