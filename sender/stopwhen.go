package sender

import "github.com/coio-go/coio/stoptoken"

// StopWhen returns a sender that connects s with a receiver whose
// environment reports a stop token combining tok and the downstream
// receiver's own token (logical OR), while forwarding completions
// unchanged. A no-op (returns s itself) when tok is statically
// unstoppable.
func StopWhen[T any](s Sender[T], tok stoptoken.Token) Sender[T] {
	if tok == nil || !tok.StopPossible() {
		return s
	}
	return stopWhenSender[T]{s: s, tok: tok}
}

type stopWhenSender[T any] struct {
	s   Sender[T]
	tok stoptoken.Token
}

func (c stopWhenSender[T]) Connect(r Receiver[T]) OperationState {
	env := r.Env()
	combined := stoptoken.Combine(c.tok, env.StopToken)
	wrapped := NewReceiver[T](env.WithStopToken(combined), r.SetValue, r.SetError, r.SetStopped)
	return c.s.Connect(wrapped)
}
