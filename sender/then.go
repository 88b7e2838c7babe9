package sender

// Then returns a sender that, on value, invokes f and forwards its result
// as the new value; errors and stopped are forwarded unchanged.
func Then[T, U any](s Sender[T], f func(T) U) Sender[U] {
	return thenSender[T, U]{s: s, f: f}
}

type thenSender[T, U any] struct {
	s Sender[T]
	f func(T) U
}

func (t thenSender[T, U]) Connect(r Receiver[U]) OperationState {
	inner := NewReceiver[T](r.Env(),
		func(v T) { r.SetValue(t.f(v)) },
		r.SetError,
		r.SetStopped,
	)
	return t.s.Connect(inner)
}

// UponError maps the error channel to a value via f; value/stopped are
// forwarded unchanged.
func UponError[T any](s Sender[T], f func(error) T) Sender[T] {
	return uponErrorSender[T]{s: s, f: f}
}

type uponErrorSender[T any] struct {
	s Sender[T]
	f func(error) T
}

func (t uponErrorSender[T]) Connect(r Receiver[T]) OperationState {
	inner := NewReceiver[T](r.Env(),
		r.SetValue,
		func(err error) { r.SetValue(t.f(err)) },
		r.SetStopped,
	)
	return t.s.Connect(inner)
}

// UponStopped maps the stopped channel to a value via f; value/error are
// forwarded unchanged.
func UponStopped[T any](s Sender[T], f func() T) Sender[T] {
	return uponStoppedSender[T]{s: s, f: f}
}

type uponStoppedSender[T any] struct {
	s Sender[T]
	f func() T
}

func (t uponStoppedSender[T]) Connect(r Receiver[T]) OperationState {
	inner := NewReceiver[T](r.Env(),
		r.SetValue,
		r.SetError,
		func() { r.SetValue(t.f()) },
	)
	return t.s.Connect(inner)
}
