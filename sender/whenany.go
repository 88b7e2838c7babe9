package sender

import (
	"sync"
	"sync/atomic"
)

// anyCoordinator is when_any's bookkeeping: the first terminal completion
// observed wins (by flipping won 0->1 under mu) and is stashed; the
// internal stop source is tripped immediately so siblings wind down
// quickly; the winning completion is only delivered once every child has
// finished.
type anyCoordinator struct {
	remaining atomic.Int64
	source    stopSourceHolder

	mu      sync.Mutex
	won     bool
	deliver func()
	errs    []error // every error observed among all children, winner included, for Diagnostics
}

func newAnyCoordinator(n int) *anyCoordinator {
	c := &anyCoordinator{}
	c.remaining.Store(int64(n))
	c.source.init()
	return c
}

// win records fn as the winning completion for exactly the first caller;
// subsequent callers are ignored. Returns whether this call won.
func (c *anyCoordinator) win(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.won {
		return false
	}
	c.won = true
	c.deliver = fn
	return true
}

func (c *anyCoordinator) childFinished() bool {
	return c.remaining.Add(-1) == 0
}

// recordError remembers err among every error observed by this
// coordinator's children, winner or not, for Diagnostics.
func (c *anyCoordinator) recordError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

// Diagnostics returns every error observed across all children, as a
// *JoinError, or nil if fewer than two were observed. The completion
// itself still only forwards the winning completion (§4.2); this exists
// for callers that want the full picture (e.g. for logging).
func (c *anyCoordinator) Diagnostics() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) < 2 {
		return nil
	}
	errs := make([]error, len(c.errs))
	copy(errs, c.errs)
	return &JoinError{Errors: errs}
}

func (c *anyCoordinator) deliverWinner() {
	c.mu.Lock()
	fn := c.deliver
	c.mu.Unlock()
	fn()
}

// WhenAnySlice starts every sender in ss in parallel. The first terminal
// completion (value, error, or stopped) wins and is delivered once every
// child has finished; the internal stop source is tripped as soon as the
// winner is decided.
func WhenAnySlice[T any](ss []Sender[T]) Sender[T] {
	return whenAnySliceSender[T]{ss: ss}
}

type whenAnySliceSender[T any] struct{ ss []Sender[T] }

func (w whenAnySliceSender[T]) Connect(r Receiver[T]) OperationState {
	n := len(w.ss)
	if n == 0 {
		return funcOp(r.SetStopped)
	}

	coord := newAnyCoordinator(n)
	onTerminal := func(fn func()) {
		if coord.win(fn) {
			coord.source.requestStop()
		}
		if coord.childFinished() {
			coord.deliverWinner()
		}
	}

	ops := make([]OperationState, n)
	env := r.Env().WithStopToken(coord.source.token())
	for i, s := range w.ss {
		child := StopWhen(s, coord.source.token())
		cr := NewReceiver[T](env,
			func(v T) { onTerminal(func() { r.SetValue(v) }) },
			func(err error) {
				coord.recordError(err)
				onTerminal(func() { r.SetError(err) })
			},
			func() { onTerminal(r.SetStopped) },
		)
		ops[i] = child.Connect(cr)
	}
	return funcOp(func() {
		for _, op := range ops {
			op.Start()
		}
	})
}

// WhenAny2 races a and b, completing with whichever finishes first (by
// any channel), once the loser has also finished.
func WhenAny2[T any](a, b Sender[T]) Sender[T] {
	return WhenAnySlice([]Sender[T]{a, b})
}

// WhenAny3 races a, b, c.
func WhenAny3[T any](a, b, c Sender[T]) Sender[T] {
	return WhenAnySlice([]Sender[T]{a, b, c})
}
