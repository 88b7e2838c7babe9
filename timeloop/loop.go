// Package timeloop implements the time_loop execution context (§4.4.1): a
// single-threaded run-loop driven purely by a ready queue and a timer
// min-heap, with no I/O readiness concerns. It is the minimal scheduler a
// sync_wait-free program needs for pure timer/compute workloads, and the
// model reactor.Reactor extends with epoll-driven readiness.
//
// Grounded on the teacher's Loop (loop.go): run/tick staging, a work
// counter driving implicit stop, and a timer heap feeding the ready queue
// once deadlines expire. Unlike the teacher, there is no fast-path/
// slow-path split, since time_loop never owns raw I/O FDs,
// and wakeup is a condition variable rather than a pipe or channel, since
// there is no poller to interrupt.
package timeloop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/generator"
	"github.com/coio-go/coio/internal/rt"
	"github.com/coio-go/coio/queue"
	"github.com/coio-go/coio/stoptoken"
)

// Loop is a time_loop execution context: it implements
// exec.TimedScheduler, has no I/O facilities, and stops implicitly once
// its work counter reaches zero and no timers remain pending (§4.4.1).
type Loop struct {
	ready  *queue.OpQueue
	timers *queue.TimerQueue

	workCount atomic.Int64

	mu      sync.Mutex
	cond    *sync.Cond
	running bool

	stopSrc *stoptoken.Source

	timerIDs *generator.Generator[uint64]

	opts    *contextOptions
	metrics *rt.Metrics
	log     *rt.Logger
}

// New returns a ready-to-run, empty Loop, configured by opts following the
// teacher's functional-option pattern (options.go's loopOptionImpl,
// resolveLoopOptions — renamed here to contextOptionFunc/resolveOptions).
func New(opts ...Option) *Loop {
	cfg := resolveOptions(opts)
	l := &Loop{
		ready:   queue.NewOpQueue(),
		timers:  queue.NewTimerQueue(),
		stopSrc: stoptoken.NewSource(),
		timerIDs: generator.New(func(yield func(uint64)) {
			for id := uint64(1); ; id++ {
				yield(id)
			}
		}),
		opts:    cfg,
		metrics: rt.NewMetrics(cfg.metricsEnabled),
		log:     cfg.logger,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Metrics returns a snapshot of the loop's scheduling-latency and
// queue-depth percentiles. Reads are safe only from the loop's own driving
// goroutine (same caller discipline as Run/PollOne), matching every other
// Loop method.
func (l *Loop) Metrics() rt.Snapshot { return l.metrics.Snapshot() }

// nextTimerID draws the next id from the loop's generator-shaped
// allocator (§4.7's note that the timer queue is one of the two places a
// generator is actually exercised). Ids are unique per Loop and
// monotonically increasing; they exist for diagnostics (logging,
// cancellation tracing), not for ordering — TimerQueue orders strictly by
// deadline.
func (l *Loop) nextTimerID() uint64 {
	id, _ := l.timerIDs.Next()
	return id
}

// StopToken returns the loop's own stop token, tripped by Stop.
func (l *Loop) StopToken() stoptoken.Token { return l.stopSrc.Token() }

// Stop requests the loop to unwind at its next opportunity (the Go
// restatement of the work-counter-reaching-zero implicit stop, made
// explicit since a time_loop has no other termination signal to graft
// onto — the teacher's context-cancellation watchdog plays the same role
// for its Loop).
func (l *Loop) Stop() {
	l.log.Debug().Log("timeloop: stop requested")
	l.stopSrc.RequestStop()
	l.wake()
}

// scheduleOp is the queue.Op wrapping a plain closure, used for both
// Schedule() continuations and expired timers reaching the ready queue.
type scheduleOp struct {
	queue.BaseOp
	fn func()
}

func (o *scheduleOp) Finish() { o.fn() }

// Schedule implements exec.Scheduler: returns a sender completing with a
// value once control transfers onto this loop.
func (l *Loop) Schedule() exec.ScheduleSender { return loopScheduleSender{l} }

type loopScheduleSender struct{ l *Loop }

func (s loopScheduleSender) ConnectFunc(onValue func(), _ func()) exec.Startable {
	return startableFunc(func() { s.l.post(onValue) })
}

type startableFunc func()

func (f startableFunc) Start() { f() }

// Now implements exec.TimedScheduler.
func (l *Loop) Now() time.Time { return time.Now() }

// ScheduleAfter implements exec.TimedScheduler.
func (l *Loop) ScheduleAfter(d time.Duration) exec.ScheduleSender {
	return l.ScheduleAt(time.Now().Add(d))
}

// ScheduleAt implements exec.TimedScheduler: returns a sender that
// completes once the loop's clock passes deadline.
func (l *Loop) ScheduleAt(deadline time.Time) exec.ScheduleSender {
	return timerScheduleSender{l: l, deadline: deadline}
}

type timerScheduleSender struct {
	l        *Loop
	deadline time.Time
}

func (s timerScheduleSender) ConnectFunc(onValue func(), onStopped func()) exec.Startable {
	return startableFunc(func() {
		t := &timerOp{l: s.l, id: s.l.nextTimerID(), deadline: s.deadline, fn: onValue}
		s.l.log.Debug().Uint64("timer", t.id).Dur("in", time.Until(s.deadline)).Log("timeloop: timer scheduled")
		s.l.addWork()
		isNewMin := s.l.timers.Add(t)
		if isNewMin {
			s.l.wake()
		}
	})
}

type timerOp struct {
	queue.BaseOp
	l        *Loop
	id       uint64
	deadline time.Time
	fn       func()
	canceled atomic.Bool
	// credited guards the one-time release of this timer's outstanding-work
	// count. TimerQueue only consults Canceled() at the moment it pops an
	// entry off the heap (see TakeReadyTimers) — once an entry has already
	// been moved onto the ready queue, Finish runs regardless of a
	// concurrent cancel(), so both paths race to release the same credit.
	// This flag makes that release idempotent instead of double-counted.
	credited atomic.Bool
}

func (t *timerOp) Deadline() time.Time { return t.deadline }
func (t *timerOp) Canceled() bool      { return t.canceled.Load() }

// ID returns this timer's allocator-assigned identity, for diagnostics.
func (t *timerOp) ID() uint64 { return t.id }

// Finish releases this timer's outstanding-work credit before invoking its
// continuation, so a loop that has no other work goes idle as soon as the
// continuation itself returns without scheduling further work.
func (t *timerOp) Finish() {
	if t.credited.CompareAndSwap(false, true) {
		t.l.doneWork()
	}
	t.l.metrics.ObserveLatency(time.Since(t.deadline).Seconds())
	t.l.log.Debug().Uint64("timer", t.id).Log("timeloop: timer fired")
	t.fn()
}

// cancel marks t so TimerQueue.TakeReadyTimers discards it instead of
// running Finish, and releases its outstanding-work credit if Finish has
// not already done so. Safe to call more than once or after the timer has
// already fired.
func (t *timerOp) cancel() {
	t.canceled.Store(true)
	if t.credited.CompareAndSwap(false, true) {
		t.l.doneWork()
	}
	t.l.log.Debug().Uint64("timer", t.id).Log("timeloop: timer canceled")
}

// post enqueues fn onto the ready queue and wakes the run loop.
func (l *Loop) post(fn func()) {
	l.addWork()
	l.ready.Push(&scheduleOp{fn: func() { l.doneWork(); fn() }})
	l.wake()
}

// Post schedules fn to run on the loop's own goroutine without going
// through the sender algebra; used by other packages (e.g. netio's
// SignalSet and Resolver, through netio.Poster) that
// need a "run this later, on the loop" primitive without paying for a full
// Schedule()/Connect()/Start() round trip.
func (l *Loop) Post(fn func()) { l.post(fn) }

func (l *Loop) addWork()  { l.workCount.Add(1) }
func (l *Loop) doneWork() { l.workCount.Add(-1) }

func (l *Loop) wake() {
	l.mu.Lock()
	l.cond.Signal()
	l.mu.Unlock()
}

// Run drives the loop until it has no outstanding work (no queued ready
// ops, no pending timers, no in-flight async work tracked via the work
// counter) or Stop is called (§4.4.1's run()).
func (l *Loop) Run() {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		if l.stopSrc.StopRequested() {
			return
		}
		if l.opts.drainContinuations {
			l.timers.TakeReadyTimers(time.Now(), l.ready)
			if l.drainReady() > 0 {
				continue
			}
		} else if l.PollOne() {
			continue
		}
		if l.idle() {
			return
		}
		l.waitForWork()
	}
}

// drainReady runs every op currently on the ready queue without
// re-harvesting timers in between. WithDrainContinuations(true) selects
// this batched mode: continuations scheduled causally close together
// (e.g. by let_value/continues_on) run as one uninterrupted burst before
// the next timer check, rather than re-checking timers between each one
// the way the default (PollOne-driven, one op at a time) mode does — the
// Go-domain analogue of the teacher's WithStrictMicrotaskOrdering knob,
// inverted because this mode trades latency for throughput rather than
// the other way around.
func (l *Loop) drainReady() int {
	n := 0
	for {
		op, ok := l.ready.Pop()
		if !ok {
			break
		}
		op.Finish()
		n++
	}
	l.metrics.ObserveQueueDepth(n)
	return n
}

// idle reports whether the loop has nothing left to do and never will
// without further external Schedule calls: no ready ops, no timers, and
// the work counter (tracking Schedule()d-but-not-yet-posted operations) is
// zero.
func (l *Loop) idle() bool {
	return l.ready.Empty() && l.timers.Len() == 0 && l.workCount.Load() == 0
}

// waitForWork blocks until either new work is posted/scheduled or Stop is
// called, waking early if a timer is due to let PollOne harvest it.
func (l *Loop) waitForWork() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if deadline, ok := l.timers.NextDeadline(); ok {
		d := time.Until(deadline)
		if d <= 0 {
			return
		}
		timer := time.AfterFunc(d, l.wake)
		defer timer.Stop()
	}
	if l.ready.Empty() && !l.stopSrc.StopRequested() {
		l.cond.Wait()
	}
}

// PollOne runs at most one ready operation (harvesting expired timers
// first), reporting whether it did any work (§4.4.1's poll_one()).
func (l *Loop) PollOne() bool {
	l.timers.TakeReadyTimers(time.Now(), l.ready)
	op, ok := l.ready.Pop()
	if !ok {
		return false
	}
	op.Finish()
	return true
}

// Poll runs every currently-ready operation without blocking, reporting
// how many ran (§4.4.1's poll()).
func (l *Loop) Poll() int {
	n := 0
	for l.PollOne() {
		n++
	}
	return n
}
