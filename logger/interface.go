// Package logger defines the structured logging contract used throughout the
// subsystem and its zerolog-backed implementation.
package logger

import "time"

// Logger is the contract for structured logging. Implementations must be safe
// for concurrent use.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	WithFields(fields map[string]any) Logger
}

// LogEvent is a structured log event under construction. Msg/Msgf send the
// event; an event must be sent exactly once.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Bool(key string, value bool) LogEvent
	Interface(key string, i any) LogEvent
}
