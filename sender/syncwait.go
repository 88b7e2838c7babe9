package sender

import (
	"sync"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/stoptoken"
)

// syncWaitLoop is the "private run-loop" sync_wait installs as the
// fallback scheduler in its receiver's environment: just enough of a
// Scheduler for continuations (continues_on, starts_on, let_value bodies
// without their own execution context) to have somewhere to run, driven
// by the same goroutine that called SyncWait.
type syncWaitLoop struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks []func()
	done  bool
}

func newSyncWaitLoop() *syncWaitLoop {
	l := &syncWaitLoop{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *syncWaitLoop) Schedule() exec.ScheduleSender { return syncWaitScheduleSender{l} }

func (l *syncWaitLoop) push(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.cond.Signal()
	l.mu.Unlock()
}

func (l *syncWaitLoop) finish() {
	l.mu.Lock()
	l.done = true
	l.cond.Signal()
	l.mu.Unlock()
}

// drain runs queued continuations until finish() has been called and the
// queue is empty.
func (l *syncWaitLoop) drain() {
	for {
		l.mu.Lock()
		for len(l.tasks) == 0 && !l.done {
			l.cond.Wait()
		}
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		fn()
	}
}

type syncWaitScheduleSender struct{ l *syncWaitLoop }

func (s syncWaitScheduleSender) ConnectFunc(onValue func(), _ func()) exec.Startable {
	return startableFunc(func() { s.l.push(onValue) })
}

type startableFunc func()

func (f startableFunc) Start() { f() }

// SyncWaitResult is what SyncWait returns: exactly one of the three zero
// states holds, mirroring Option<Tuple<values...>> plus a rethrown error.
type SyncWaitResult[T any] struct {
	Value   T
	Ok      bool // true iff the sender completed with value
	Stopped bool
}

// SyncWait blocks the calling goroutine until s completes, driving a
// private run-loop in the meantime so any continuation scheduled back onto
// "the current scheduler" (e.g. by continues_on with no scheduler
// available) still has somewhere to run. On value, returns {Value, true,
// false}. On stopped, returns {_, false, true}. On error, panics with the
// error wrapped in *SyncWaitError — callers that want Go-style error
// handling should use SyncWaitErr instead, which recovers this.
//
// Re-entrant use (calling SyncWait from inside a task already being waited
// on by an outer SyncWait on the same goroutine) is undefined, per §9's
// open question — this implementation does not attempt to detect it.
func SyncWait[T any](s Sender[T], outerTok stoptoken.Token) SyncWaitResult[T] {
	loop := newSyncWaitLoop()
	var result SyncWaitResult[T]
	var panicErr error

	env := exec.Env{StopToken: outerTok, Scheduler: loop}
	r := NewReceiver[T](env,
		func(v T) { result = SyncWaitResult[T]{Value: v, Ok: true}; loop.finish() },
		func(err error) { panicErr = err; loop.finish() },
		func() { result = SyncWaitResult[T]{Stopped: true}; loop.finish() },
	)
	op := s.Connect(r)
	op.Start()
	loop.drain()

	if panicErr != nil {
		panic(&SyncWaitError{Err: panicErr})
	}
	return result
}

// SyncWaitError is the panic value SyncWait raises when s completes with
// an error, matching §7's "sync_wait rethrows the error".
type SyncWaitError struct{ Err error }

func (e *SyncWaitError) Error() string { return e.Err.Error() }
func (e *SyncWaitError) Unwrap() error { return e.Err }

// SyncWaitErr is SyncWait, but converts the error-channel panic into a
// regular Go error return instead of a panic, which is the idiom most
// call sites in this module actually want.
func SyncWaitErr[T any](s Sender[T], outerTok stoptoken.Token) (value T, stopped bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if swe, ok := rec.(*SyncWaitError); ok {
				err = swe.Err
				return
			}
			panic(rec)
		}
	}()
	res := SyncWait(s, outerTok)
	return res.Value, res.Stopped, nil
}
