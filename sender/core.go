// Package sender implements the sender/receiver asynchronous-operation
// algebra (§4.2): connect -> start -> exactly one of
// {set_value, set_error, set_stopped}, plus the structural combinators
// built on top of it (then, let_value, when_all, when_any, continues_on,
// starts_on, stop_when, sync_wait, ...).
package sender

import "github.com/coio-go/coio/exec"

// Receiver is a typed continuation accepting exactly one of SetValue,
// SetError or SetStopped, exactly once.
type Receiver[T any] interface {
	SetValue(v T)
	SetError(err error)
	SetStopped()
	// Env exposes the ambient context (stop token, scheduler, allocator)
	// this receiver's connected operation should observe.
	Env() exec.Env
}

// OperationState is the pinned result of connecting a Sender to a
// Receiver. Start must be called exactly once.
type OperationState interface {
	Start()
}

// Sender describes a not-yet-started asynchronous operation producing a
// value of type T (or an error, or a stopped signal).
type Sender[T any] interface {
	Connect(r Receiver[T]) OperationState
}

// funcReceiver adapts three plain callbacks (plus an Env) into a Receiver,
// used internally by combinators that don't need a full named type.
type funcReceiver[T any] struct {
	env       exec.Env
	onValue   func(T)
	onError   func(error)
	onStopped func()
}

func (r *funcReceiver[T]) SetValue(v T)     { r.onValue(v) }
func (r *funcReceiver[T]) SetError(e error) { r.onError(e) }
func (r *funcReceiver[T]) SetStopped()      { r.onStopped() }
func (r *funcReceiver[T]) Env() exec.Env    { return r.env }

// NewReceiver builds a Receiver[T] out of plain callbacks.
func NewReceiver[T any](env exec.Env, onValue func(T), onError func(error), onStopped func()) Receiver[T] {
	return &funcReceiver[T]{env: env, onValue: onValue, onError: onError, onStopped: onStopped}
}

// funcOp adapts a plain func() into an OperationState.
type funcOp func()

func (f funcOp) Start() { f() }
