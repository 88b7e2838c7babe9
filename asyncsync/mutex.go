// Package asyncsync provides the non-blocking synchronization primitives
// of §4.5: async_mutex, async_semaphore, async_latch, and async_scope.
// Each suspends a waiting task instead of blocking an OS thread, backed by
// queue.WaitStack — the same intrusive wait-list shape the teacher uses
// for its promise pending-callback list, generalized from one promise's
// settlement to an arbitrary number of waiters.
package asyncsync

import (
	"sync/atomic"

	"github.com/coio-go/coio/queue"
	"github.com/coio-go/coio/sender"
)

// Mutex is async_mutex (§4.5): mutual exclusion whose waiters suspend via
// a sender rather than blocking a thread.
type Mutex struct {
	locked  atomic.Bool
	waiters queue.WaitStack
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex { return &Mutex{} }

// Lock completes once the calling task holds the mutex. The caller must
// call Unlock exactly once to release it.
func (m *Mutex) Lock() sender.Sender[struct{}] {
	return lockSender{m: m}
}

// WithLock acquires the mutex, runs fn while holding it, then releases —
// standing in for async_mutex's lock_guard RAII, which Go's non-unwinding
// control flow cannot express directly as a destructor.
func (m *Mutex) WithLock(fn func()) sender.Sender[struct{}] {
	return sender.Then(m.Lock(), func(struct{}) struct{} {
		fn()
		m.Unlock()
		return struct{}{}
	})
}

type lockSender struct{ m *Mutex }

func (s lockSender) Connect(recv sender.Receiver[struct{}]) sender.OperationState {
	return &lockOpState{m: s.m, recv: recv}
}

type lockOpState struct {
	m       *Mutex
	recv    sender.Receiver[struct{}]
	settled atomic.Bool
}

// Wake implements queue.Waiter.
func (o *lockOpState) Wake() {
	if o.settled.CompareAndSwap(false, true) {
		o.recv.SetValue(struct{}{})
	}
}

func (o *lockOpState) Start() {
	if o.m.locked.CompareAndSwap(false, true) {
		o.Wake()
		return
	}
	o.m.waiters.Push(o)
}

// Unlock releases the mutex, handing it directly to the next waiter (in
// FIFO order of arrival, per §4.5's "invert the pushed stack into a
// waiting FIFO") rather than briefly going uncontended.
func (m *Mutex) Unlock() {
	if m.handOff() {
		return
	}
	m.locked.Store(false)
	// A Lock call may have pushed a waiter after the drain above observed
	// the stack empty but before this Store landed, stranding it with
	// locked now false and nobody left to hand off to. Recover it here.
	if !m.handOffIfReclaimable() {
		return
	}
}

func (m *Mutex) handOff() bool {
	fifo := m.waiters.DrainFIFO()
	if len(fifo) == 0 {
		return false
	}
	for _, w := range fifo[1:] {
		m.waiters.Push(w)
	}
	fifo[0].Wake()
	return true
}

func (m *Mutex) handOffIfReclaimable() bool {
	fifo := m.waiters.DrainFIFO()
	if len(fifo) == 0 {
		return false
	}
	if !m.locked.CompareAndSwap(false, true) {
		// Someone else's Lock already won the re-acquisition race; their
		// eventual Unlock will drain these waiters instead.
		for _, w := range fifo {
			m.waiters.Push(w)
		}
		return false
	}
	for _, w := range fifo[1:] {
		m.waiters.Push(w)
	}
	fifo[0].Wake()
	return true
}
