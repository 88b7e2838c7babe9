package asyncsync

import (
	"sync/atomic"

	"github.com/coio-go/coio/queue"
	"github.com/coio-go/coio/sender"
)

// Latch is async_latch (§4.5): a one-shot count-down gate. CountDown
// decrements the count; reaching zero wakes every current waiter.
type Latch struct {
	count   atomic.Int64
	waiters queue.WaitStack
}

// NewLatch returns a latch requiring initial count-downs before it opens.
func NewLatch(initial int64) *Latch {
	l := &Latch{}
	l.count.Store(initial)
	return l
}

// CountDown decrements the latch's count by n (default 1 via CountDownOne),
// waking every waiter if the count reaches zero or below.
func (l *Latch) CountDown(n int64) {
	if n <= 0 {
		return
	}
	if l.count.Add(-n) <= 0 {
		for _, w := range l.waiters.DrainAll() {
			w.Wake()
		}
	}
}

// CountDownOne decrements the latch's count by one.
func (l *Latch) CountDownOne() { l.CountDown(1) }

// TryWait reports whether the latch has already reached zero.
func (l *Latch) TryWait() bool { return l.count.Load() <= 0 }

// Wait completes once the latch's count has reached zero.
func (l *Latch) Wait() sender.Sender[struct{}] {
	return waitLatchSender{l: l}
}

type waitLatchSender struct{ l *Latch }

func (s waitLatchSender) Connect(recv sender.Receiver[struct{}]) sender.OperationState {
	return &waitLatchOpState{l: s.l, recv: recv}
}

type waitLatchOpState struct {
	l       *Latch
	recv    sender.Receiver[struct{}]
	settled atomic.Bool
}

// Wake implements queue.Waiter.
func (o *waitLatchOpState) Wake() {
	if o.settled.CompareAndSwap(false, true) {
		o.recv.SetValue(struct{}{})
	}
}

func (o *waitLatchOpState) Start() {
	if o.l.TryWait() {
		o.Wake()
		return
	}
	o.l.waiters.Push(o)
	// A concurrent CountDown reaching zero may have drained the list
	// (finding it still missing this waiter) just before the push above
	// landed; since the count only ever falls, it is safe to self-resolve
	// here — Wake's settled guard makes this idempotent against a racing
	// drain that also reaches this waiter.
	if o.l.TryWait() {
		o.Wake()
	}
}
