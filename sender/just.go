package sender

// Just returns a sender that completes immediately, synchronously inside
// Start, with value(v).
func Just[T any](v T) Sender[T] { return justSender[T]{v: v} }

type justSender[T any] struct{ v T }

func (s justSender[T]) Connect(r Receiver[T]) OperationState {
	return funcOp(func() { r.SetValue(s.v) })
}

// JustError returns a sender that completes immediately with error(err).
func JustError[T any](err error) Sender[T] { return justErrorSender[T]{err: err} }

type justErrorSender[T any] struct{ err error }

func (s justErrorSender[T]) Connect(r Receiver[T]) OperationState {
	return funcOp(func() { r.SetError(s.err) })
}

// JustStopped returns a sender that completes immediately with stopped.
func JustStopped[T any]() Sender[T] { return justStoppedSender[T]{} }

type justStoppedSender[T any] struct{}

func (justStoppedSender[T]) Connect(r Receiver[T]) OperationState {
	return funcOp(func() { r.SetStopped() })
}
