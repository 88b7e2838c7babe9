package queue

import (
	"container/heap"
	"sync"
	"time"
)

// TimerOp is a single timer entry, ordered by Deadline. Finish is invoked
// once the timer is both expired and has been moved into the ready queue
// by TakeReadyTimers + the context's dispatch loop.
type TimerOp interface {
	Op
	Deadline() time.Time
	// Canceled reports whether the timer was canceled before firing; the
	// TimerQueue itself doesn't remove canceled entries eagerly (that
	// would require O(n) scans under lock on every cancel) — TakeReadyTimers
	// discards them once they reach the front of the heap and are due.
	Canceled() bool
}

type timerHeap []TimerOp

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].Deadline().Before(h[j].Deadline()) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(TimerOp)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// TimerQueue is a min-heap of pending timer operations, keyed by monotonic
// deadline, protected by a coarse mutex (§4.4.3).
type TimerQueue struct {
	mu sync.Mutex
	h  timerHeap
}

// NewTimerQueue returns an empty timer queue.
func NewTimerQueue() *TimerQueue { return &TimerQueue{} }

// Add inserts t and reports whether t's deadline is now the queue's new
// minimum — the caller should interrupt a blocked reactor/time_loop worker
// in that case, since its previously-computed wait deadline is now stale.
func (q *TimerQueue) Add(t TimerOp) (isNewMin bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, t)
	return q.h[0] == t
}

// Len reports the number of pending timers.
func (q *TimerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// NextDeadline returns the earliest pending deadline, if any.
func (q *TimerQueue) NextDeadline() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].Deadline(), true
}

// TakeReadyTimers pops every timer with Deadline() <= now off the heap and
// pushes it onto out, skipping (and discarding) any already-Canceled entry.
func (q *TimerQueue) TakeReadyTimers(now time.Time, out *OpQueue) {
	q.mu.Lock()
	var ready []TimerOp
	for len(q.h) > 0 && !q.h[0].Deadline().After(now) {
		ready = append(ready, heap.Pop(&q.h).(TimerOp))
	}
	q.mu.Unlock()

	for _, t := range ready {
		if t.Canceled() {
			continue
		}
		out.Push(t)
	}
}
