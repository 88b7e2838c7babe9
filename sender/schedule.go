package sender

import "github.com/coio-go/coio/exec"

// ContinuesOn returns a sender that, after s completes (on any channel),
// reschedules delivery of that completion onto sched before forwarding it
// to the downstream receiver. If scheduling fails to start (the scheduler
// has no way to report failure in this API, so this can only happen if
// sched is nil), the completion is delivered inline instead — the
// "best-effort" fallback described in §4.2.
func ContinuesOn[T any](s Sender[T], sched exec.Scheduler) Sender[T] {
	return continuesOnSender[T]{s: s, sched: sched}
}

type continuesOnSender[T any] struct {
	s     Sender[T]
	sched exec.Scheduler
}

func (c continuesOnSender[T]) Connect(r Receiver[T]) OperationState {
	deliver := func(completion func()) {
		if c.sched == nil {
			completion()
			return
		}
		sc := c.sched.Schedule().ConnectFunc(completion, completion)
		sc.Start()
	}
	inner := NewReceiver[T](r.Env(),
		func(v T) { deliver(func() { r.SetValue(v) }) },
		func(err error) { deliver(func() { r.SetError(err) }) },
		func() { deliver(r.SetStopped) },
	)
	return c.s.Connect(inner)
}

// StartsOn returns a sender that first schedules onto sched, then runs s.
func StartsOn[T any](sched exec.Scheduler, s Sender[T]) Sender[T] {
	return startsOnSender[T]{sched: sched, s: s}
}

type startsOnSender[T any] struct {
	sched exec.Scheduler
	s     Sender[T]
}

type startsOnOpState struct {
	inner OperationState
}

func (o *startsOnOpState) Start() { o.inner.Start() }

func (c startsOnSender[T]) Connect(r Receiver[T]) OperationState {
	st := &startsOnOpState{}
	run := func() { st.inner = c.s.Connect(r); st.inner.Start() }
	sc := c.sched.Schedule().ConnectFunc(run, r.SetStopped)
	return funcOp(sc.Start)
}

// On is starts_on(sched, continues_on(s, sched)): run on sched, and
// deliver the final completion on sched too.
func On[T any](sched exec.Scheduler, s Sender[T]) Sender[T] {
	return StartsOn(sched, ContinuesOn(s, sched))
}
