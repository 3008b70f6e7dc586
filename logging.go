package coronet

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type threaded through Reactor, Socket, and
// Server. It is a thin alias over the teacher stack's generic
// logiface.Logger, instantiated with stumpy's Event — the "model" logiface
// backend, per SPEC_FULL.md's ambient stack.
type Logger = logiface.Logger[*stumpy.Event]

// NewLogger builds a coronet logger writing newline-delimited JSON to the
// given stumpy options (see stumpy.WithWriter, stumpy.WithTimeField, etc).
// Use WithLogger to attach the result to a Reactor, Socket, or Server.
func NewLogger(options ...stumpy.Option) *Logger {
	return stumpy.L.New(stumpy.L.WithStumpy(options...))
}

// disabledLogger is the default used when no logger is configured: a
// logiface logger with logging switched off entirely, so call sites don't
// need nil checks.
func disabledLogger() *Logger {
	return stumpy.L.New(stumpy.L.WithStumpy(), logiface.WithLevel[*stumpy.Event](logiface.LevelDisabled))
}

// logError logs err at error level, except for the Eof/Cancelled control
// signals (spec §7: "Eof and Cancelled are not logged as errors by user
// code"), which are logged at debug level instead.
func logError(l *Logger, category string, ec ErrorCode) {
	if ec.IsZero() {
		return
	}
	b := l.Debug()
	if ec.Kind != KindEof && ec.Kind != KindCancelled {
		b = l.Err()
	}
	b.Str(`category`, category).
		Str(`kind`, ec.Kind.String()).
		Int(`code`, ec.Code).
		Log(ec.Error())
}
