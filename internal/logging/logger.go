// Package logging is the escrow server's and escrowctl's view of structured
// logging. Services depend on Logger only; the slog-backed implementation is
// chosen once, in the server's App constructor.
package logging

import "context"

// Logger writes leveled records with key-value attributes. Callers pass the
// request context so handlers can pick up deadlines and trace values.
//
//	logger.Error(ctx, "rollback step failed", "alias", alias, "error", err.Error())
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	// Error is reserved for failures an operator has to act on, such as a
	// compensation that left an artifact behind.
	Error(ctx context.Context, msg string, args ...any)

	// With binds attributes to every record of the returned logger. The
	// orchestrator uses it to tag a run with its alias.
	With(args ...any) Logger
}
