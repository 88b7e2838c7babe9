// Package rt holds the ambient plumbing shared by every execution context
// in this module: structured logging, scheduling-latency metrics, and the
// panic/error taxonomy. None of it is part of the public sender/exec
// algebra — it exists purely so reactor, timeloop, ioop, netio and
// asyncsync can all report lifecycle events the same way, the same role
// the teacher's logging.go/metrics.go/errors.go trio plays for its own
// Loop.
package rt

import (
	"github.com/joeycumines/logiface"
	stumpy "github.com/joeycumines/logiface-stumpy"
)

// Logger is the structured logger type every context in this module logs
// through. Call sites use the teacher's chained-builder idiom, e.g.
// log.Debug().Str("fd", ...).Int64("id", ...).Log("timer scheduled").
type Logger = logiface.Logger[*stumpy.Event]

// NewLogger returns a Logger writing newline-delimited JSON via stumpy,
// the teacher's own logging dependency (declared in its go.mod alongside
// logiface itself).
func NewLogger(level logiface.Level, opts ...stumpy.Option) *Logger {
	return stumpy.L.New(
		stumpy.L.WithLevel(level),
		stumpy.L.WithStumpy(opts...),
	)
}

// Discard is a Logger with its level set below everything, for contexts
// that were not configured with their own logger (every call becomes a
// cheap no-op level check rather than a nil-pointer dereference).
var Discard = NewLogger(logiface.LevelDisabled)
