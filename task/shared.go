package task

import (
	"sync"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/sender"
)

// sharedOutcome is the settled result of a SharedTask, stored once and
// replayed to every awaiter connected after settlement.
type sharedOutcome[T any] struct {
	value   T
	err     error
	stopped bool
}

// sharedState is the control block every Connect()'d operation for a given
// SharedTask shares. Grounded on the teacher's promise registry
// (registry.go): there, live promises are tracked via weak.Pointer so a
// periodic Scavenge can drop entries whose owner was already collected
// without the registry itself pinning them alive. Here the analogous
// concern is awaiters outliving settlement: pendingAwaiters holds plain
// closures rather than weak pointers because an awaiter's closure is the
// only reference keeping its receiver reachable in the first place, so
// there is nothing to scavenge early — the list itself is cleared in one
// shot at settle() time instead of being swept incrementally.
type sharedState[T any] struct {
	mu              sync.Mutex
	started         bool
	settled         bool
	outcome         sharedOutcome[T]
	pendingAwaiters []func(sharedOutcome[T])
}

// SharedTask is a Task[T] whose completion may be observed by more than one
// awaiter; once settled, further awaiters complete synchronously with the
// recorded outcome (§4.3).
type SharedTask[T any] struct {
	state *sharedState[T]
}

// NewSharedTask returns a SharedTask that can be connected to more than
// one receiver. It does not store t; call Produce with the task to
// actually start it, which runs the body at most once per SharedTask.
// Connecting SharedTask itself never starts the underlying task — it only registers as an awaiter, so Produce (or an equivalent
// explicit start) must be called exactly once by whichever code owns the
// task's lifetime.
func NewSharedTask[T any](t Task[T]) SharedTask[T] {
	return SharedTask[T]{state: &sharedState[T]{}}
}

// Connect implements sender.Sender[T]. Every call returns an independent
// OperationState; starting it attaches as an awaiter (or, if the task has
// already settled, completes synchronously).
func (s SharedTask[T]) Connect(r sender.Receiver[T]) sender.OperationState {
	return &sharedOpState[T]{state: s.state, r: r}
}

type sharedOpState[T any] struct {
	state *sharedState[T]
	r     sender.Receiver[T]
}

func (o *sharedOpState[T]) Start() {
	o.state.attach(func(out sharedOutcome[T]) { deliver(o.r, out) })
}

func deliver[T any](r sender.Receiver[T], out sharedOutcome[T]) {
	switch {
	case out.stopped:
		r.SetStopped()
	case out.err != nil:
		r.SetError(out.err)
	default:
		r.SetValue(out.value)
	}
}

// attach registers fn to run once the task settles, or runs it immediately
// if it already has.
func (st *sharedState[T]) attach(fn func(sharedOutcome[T])) {
	st.mu.Lock()
	if st.settled {
		out := st.outcome
		st.mu.Unlock()
		fn(out)
		return
	}
	st.pendingAwaiters = append(st.pendingAwaiters, fn)
	st.mu.Unlock()
}

// settle records out as the final outcome and fires every awaiter
// registered so far; a second call is a no-op (first settlement wins,
// matching a Sender's "complete exactly once" obligation).
func (st *sharedState[T]) settle(out sharedOutcome[T]) {
	st.mu.Lock()
	if st.settled {
		st.mu.Unlock()
		return
	}
	st.settled = true
	st.outcome = out
	awaiters := st.pendingAwaiters
	st.pendingAwaiters = nil
	st.mu.Unlock()
	for _, fn := range awaiters {
		fn(out)
	}
}

// Produce connects the original task t to st's settlement path and starts
// it; only the first call for a given SharedTask has any effect.
func Produce[T any](t Task[T], st SharedTask[T], env exec.Env) {
	st.state.mu.Lock()
	if st.state.started {
		st.state.mu.Unlock()
		return
	}
	st.state.started = true
	st.state.mu.Unlock()

	r := sender.NewReceiver[T](env,
		func(v T) { st.state.settle(sharedOutcome[T]{value: v}) },
		func(err error) { st.state.settle(sharedOutcome[T]{err: err}) },
		func() { st.state.settle(sharedOutcome[T]{stopped: true}) },
	)
	op := t.Connect(r)
	op.Start()
}
