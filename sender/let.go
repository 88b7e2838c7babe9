package sender

// LetValue returns a sender that, on value, invokes f to produce a new
// sender, connects and starts it, and forwards its completion as the
// combined completion. Error/stopped from s are forwarded without
// invoking f.
func LetValue[T, U any](s Sender[T], f func(T) Sender[U]) Sender[U] {
	return letValueSender[T, U]{s: s, f: f}
}

type letValueSender[T, U any] struct {
	s Sender[T]
	f func(T) Sender[U]
}

type letOpState struct {
	inner OperationState // keeps the child operation's state alive
}

func (o *letOpState) Start() { o.inner.Start() }

func (t letValueSender[T, U]) Connect(r Receiver[U]) OperationState {
	st := &letOpState{}
	inner := NewReceiver[T](r.Env(),
		func(v T) { st.inner = t.f(v).Connect(r); st.inner.Start() },
		r.SetError,
		r.SetStopped,
	)
	st.inner = t.s.Connect(inner)
	return funcOp(func() { st.inner.Start() })
}

// LetError returns a sender that, on error, invokes f to produce a new
// sender whose completion becomes the combined completion. Value/stopped
// from s are forwarded without invoking f.
func LetError[T any](s Sender[T], f func(error) Sender[T]) Sender[T] {
	return letErrorSender[T]{s: s, f: f}
}

type letErrorSender[T any] struct {
	s Sender[T]
	f func(error) Sender[T]
}

func (t letErrorSender[T]) Connect(r Receiver[T]) OperationState {
	st := &letOpState{}
	inner := NewReceiver[T](r.Env(),
		r.SetValue,
		func(err error) { st.inner = t.f(err).Connect(r); st.inner.Start() },
		r.SetStopped,
	)
	st.inner = t.s.Connect(inner)
	return funcOp(func() { st.inner.Start() })
}

// LetStopped returns a sender that, on stopped, invokes f to produce a new
// sender whose completion becomes the combined completion. Value/error
// from s are forwarded without invoking f.
func LetStopped[T any](s Sender[T], f func() Sender[T]) Sender[T] {
	return letStoppedSender[T]{s: s, f: f}
}

type letStoppedSender[T any] struct {
	s Sender[T]
	f func() Sender[T]
}

func (t letStoppedSender[T]) Connect(r Receiver[T]) OperationState {
	st := &letOpState{}
	inner := NewReceiver[T](r.Env(),
		r.SetValue,
		r.SetError,
		func() { st.inner = t.f().Connect(r); st.inner.Start() },
	)
	st.inner = t.s.Connect(inner)
	return funcOp(func() { st.inner.Start() })
}
