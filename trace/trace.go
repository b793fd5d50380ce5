/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package trace is the core's structured logging sink. It plays the role
// Jacobin's own jacobin/trace package plays: a package-level, swappable
// logger that every other core package calls into rather than writing
// directly to stdout/stderr.
package trace

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Level is the severity of a trace record.
type Level int

const (
	LevelTrace Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Sink receives formatted trace lines. The default sink writes to stderr;
// tests install their own to capture output.
type Sink func(level Level, msg string)

var (
	mu   sync.Mutex
	sink Sink = defaultSink
	// Enabled gates LevelTrace output; errors and warnings are always emitted.
	// Mirrors Jacobin's globals.TraceClass/TraceCloadi verbosity flags.
	Enabled bool
)

func defaultSink(level Level, msg string) {
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n", time.Now().Format(time.RFC3339), level, msg)
}

// SetSink replaces the active sink and returns the previous one, so callers
// (e.g. tests) can restore it when done.
func SetSink(s Sink) Sink {
	mu.Lock()
	defer mu.Unlock()
	prev := sink
	if s == nil {
		s = defaultSink
	}
	sink = s
	return prev
}

func emit(level Level, msg string) {
	mu.Lock()
	s := sink
	mu.Unlock()
	s(level, msg)
}

// Trace logs a diagnostic message. Suppressed unless Enabled is set, the
// same gate Jacobin uses around globals.TraceClass checks at call sites.
func Trace(msg string) {
	if Enabled {
		emit(LevelTrace, msg)
	}
}

// Warning logs a recoverable but noteworthy condition.
func Warning(msg string) {
	emit(LevelWarning, msg)
}

// Error logs a failure. Error logging is never gated by Enabled: every
// abort path in vmerrors routes through here first.
func Error(msg string) {
	emit(LevelError, msg)
}
