// Package corelog provides a small structured logging seam used throughout
// the core, with a pluggable backend.
//
// Design: a package-level default logger, swappable via SetDefault, so that
// every package in this module (evh, threadpool, container) can log through
// a common seam without importing a concrete logging framework directly.
// This mirrors the teacher's eventloop package, which depends directly on
// github.com/joeycumines/logiface for exactly this purpose: corelog is a
// thin facade over a logiface.Logger, not a reimplementation of one. The
// four-level scheme below (Debug/Info/Warn/Error) is a deliberately small
// subset of logiface's full syslog-style level set, matched to what this
// module's callers actually discriminate on.
package corelog

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Level is the severity of a log entry, mapped onto logiface's syslog-style
// Level scale at the points where corelog talks to logiface.
type Level int32

const (
	// LevelDebug is for detailed diagnostic information.
	LevelDebug Level = iota
	// LevelInfo is for general informational messages.
	LevelInfo
	// LevelWarn is for warning conditions, e.g. a swallowed callback error.
	LevelWarn
	// LevelError is for error conditions.
	LevelError
)

// String returns the level's name, e.g. "WARN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// logifaceLevel maps a corelog Level onto its logiface equivalent.
func (l Level) logifaceLevel() logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	default:
		return logiface.LevelError
	}
}

// Field is a single key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// F constructs a Field; a small helper to keep call sites terse.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the structured logging interface implemented by backends. The
// default implementation wraps a logiface.Logger; Enabled lets callers skip
// building expensive fields for a level that would be discarded anyway.
type Logger interface {
	Log(level Level, msg string, fields ...Field)
	Enabled(level Level) bool
}

var global struct {
	mu     sync.RWMutex
	logger Logger
}

// SetDefault sets the package-level default Logger.
func SetDefault(l Logger) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.logger = l
}

// Default returns the package-level default Logger, or a no-op logger if
// none has been configured.
func Default() Logger {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if global.logger != nil {
		return global.logger
	}
	return noop{}
}

// noop discards everything; it is the zero-configuration default so that
// core packages never need a nil check before logging.
type noop struct{}

func (noop) Log(Level, string, ...Field) {}
func (noop) Enabled(Level) bool          { return false }

// NewNoopLogger returns a Logger that discards all entries.
func NewNoopLogger() Logger { return noop{} }

// levelGate is embeddable by backends that only need a minimum-level filter
// on top of whatever gating the wrapped backend already does.
type levelGate struct {
	min atomic.Int32
}

func (g *levelGate) setMin(l Level)       { g.min.Store(int32(l)) }
func (g *levelGate) Enabled(l Level) bool { return int32(l) >= g.min.Load() }
