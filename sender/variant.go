package sender

import "errors"

// Optional is the result type StoppedAsOptional completes with: Ok is
// false exactly when the wrapped sender was stopped.
type Optional[T any] struct {
	Value T
	Ok    bool
}

// StoppedAsOptional maps s's value channel through Optional (Ok=true),
// and its stopped channel to Optional{Ok:false}; errors are forwarded
// unchanged.
func StoppedAsOptional[T any](s Sender[T]) Sender[Optional[T]] {
	return stoppedAsOptionalSender[T]{s: s}
}

type stoppedAsOptionalSender[T any] struct{ s Sender[T] }

func (w stoppedAsOptionalSender[T]) Connect(r Receiver[Optional[T]]) OperationState {
	inner := NewReceiver[T](r.Env(),
		func(v T) { r.SetValue(Optional[T]{Value: v, Ok: true}) },
		r.SetError,
		func() { r.SetValue(Optional[T]{}) },
	)
	return w.s.Connect(inner)
}

// ErrStopped is the default error StoppedAsError substitutes for a stopped
// completion when no explicit error value is given.
var ErrStopped = errors.New("sender: operation stopped")

// StoppedAsError maps s's stopped channel to an error completion (err, or
// ErrStopped if err is nil); value/error are forwarded unchanged.
func StoppedAsError[T any](s Sender[T], err error) Sender[T] {
	if err == nil {
		err = ErrStopped
	}
	return stoppedAsErrorSender[T]{s: s, err: err}
}

type stoppedAsErrorSender[T any] struct {
	s   Sender[T]
	err error
}

func (w stoppedAsErrorSender[T]) Connect(r Receiver[T]) OperationState {
	inner := NewReceiver[T](r.Env(), r.SetValue, r.SetError, func() { r.SetError(w.err) })
	return w.s.Connect(inner)
}

// Variant is the completion tag IntoVariant produces: exactly one of
// Value/Err/Stopped is meaningful, selected by Kind.
type VariantKind int

const (
	VariantValue VariantKind = iota
	VariantError
	VariantStopped
)

type Variant[T any] struct {
	Kind  VariantKind
	Value T
	Err   error
}

// IntoVariant turns every completion channel of s into a value completion
// carrying a tagged Variant, so downstream code can pattern-match on Kind
// without an error/stopped completion ever reaching the receiver.
func IntoVariant[T any](s Sender[T]) Sender[Variant[T]] {
	return intoVariantSender[T]{s: s}
}

type intoVariantSender[T any] struct{ s Sender[T] }

func (w intoVariantSender[T]) Connect(r Receiver[Variant[T]]) OperationState {
	inner := NewReceiver[T](r.Env(),
		func(v T) { r.SetValue(Variant[T]{Kind: VariantValue, Value: v}) },
		func(err error) { r.SetValue(Variant[T]{Kind: VariantError, Err: err}) },
		func() { r.SetValue(Variant[T]{Kind: VariantStopped}) },
	)
	return w.s.Connect(inner)
}

// WhenAllWithVariant is when_all, except each child's completion becomes a
// Variant (via IntoVariant) before joining, so the join itself can never
// observe a non-value channel from a child and therefore always completes
// with value([]Variant[T]) — errors/stopped of individual children are
// visible to the caller by inspecting each Variant's Kind.
func WhenAllWithVariant[T any](ss []Sender[T]) Sender[[]Variant[T]] {
	variants := make([]Sender[Variant[T]], len(ss))
	for i, s := range ss {
		variants[i] = IntoVariant(s)
	}
	return WhenAllSlice(variants)
}
