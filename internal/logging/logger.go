// Package logging defines the structured-logging interface used across
// buddyinbox. Components depend on Logger, never on a concrete backend.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are key–value pairs:
//
//	log.Info(ctx, "room attached", "room", room, "backlog", n)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn is for degraded but recoverable conditions (parse fallbacks,
	// cloud mirror disabled).
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
