package asyncsync

import (
	"runtime"
	"sync/atomic"

	"github.com/coio-go/coio/queue"
	"github.com/coio-go/coio/sender"
)

// Semaphore is async_semaphore<LeastMax> (§4.5): a signed counter plus a
// waiting list. A positive counter value is available permits; a
// non-positive value after a failed acquire announces the number of
// suspended waiters, mirroring the spec's "lock-free-signed counter".
type Semaphore struct {
	count   atomic.Int64
	waiters queue.WaitStack
}

// NewSemaphore returns a semaphore initialised with the given number of
// available permits.
func NewSemaphore(initial int64) *Semaphore {
	s := &Semaphore{}
	s.count.Store(initial)
	return s
}

// Acquire completes once a permit has been obtained, decrementing the
// counter's fast path via CAS-equivalent atomic subtraction; on failure it
// suspends on the wait list.
func (s *Semaphore) Acquire() sender.Sender[struct{}] {
	return acquireSender{s: s}
}

type acquireSender struct{ s *Semaphore }

func (a acquireSender) Connect(recv sender.Receiver[struct{}]) sender.OperationState {
	return &acquireOpState{s: a.s, recv: recv}
}

type acquireOpState struct {
	s       *Semaphore
	recv    sender.Receiver[struct{}]
	settled atomic.Bool
}

// Wake implements queue.Waiter.
func (o *acquireOpState) Wake() {
	if o.settled.CompareAndSwap(false, true) {
		o.recv.SetValue(struct{}{})
	}
}

func (o *acquireOpState) Start() {
	if o.s.count.Add(-1) >= 0 {
		o.Wake()
		return
	}
	o.s.waiters.Push(o)
}

// Release adds one permit, waking a single suspended Acquire without
// touching the counter further if the post-increment value still shows an
// outstanding waiter (§4.5: "release wakes one waiter if any, without
// touching the counter; otherwise increments"). The increment has already
// happened by the time the counter is checked, so a non-positive result
// means at least one Acquire is currently negative and due a wakeup; this
// spins briefly for that Acquire's Push to land, since the counter
// arithmetic guarantees it must appear.
func (s *Semaphore) Release() {
	if s.count.Add(1) > 0 {
		return
	}
	for {
		if w, ok := s.waiters.Pop(); ok {
			w.Wake()
			return
		}
		runtime.Gosched()
	}
}
