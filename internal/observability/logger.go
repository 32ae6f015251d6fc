// Package observability builds the process logger.
package observability

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Log formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a leveled logger writing to w. The console format is meant
// for terminals; anything else writes JSON lines.
func New(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	out := w
	if format == "" || format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// WithRequestID returns a context carrying a logger tagged with requestID.
func WithRequestID(ctx context.Context, logger zerolog.Logger, requestID string) context.Context {
	return logger.With().Str("request_id", requestID).Logger().WithContext(ctx)
}

// LoggerFromContext returns the logger stored in ctx, or fallback.
func LoggerFromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return fallback
}
