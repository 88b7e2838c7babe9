package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOp struct {
	BaseOp
	id       int
	finished chan int
}

func (o *testOp) Finish() { o.finished <- o.id }

func newTestOp(id int, ch chan int) *testOp {
	return &testOp{id: id, finished: ch}
}

func TestOpQueueFIFO(t *testing.T) {
	ch := make(chan int, 3)
	q := NewOpQueue()
	q.Push(newTestOp(1, ch))
	q.Push(newTestOp(2, ch))
	q.Push(newTestOp(3, ch))

	var got []int
	for {
		op, ok := q.Pop()
		if !ok {
			break
		}
		op.Finish()
		got = append(got, <-ch)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.True(t, q.Empty())
}

func TestOpQueueSplice(t *testing.T) {
	ch := make(chan int, 2)
	a := NewOpQueue()
	b := NewOpQueue()
	a.Push(newTestOp(1, ch))
	b.Push(newTestOp(2, ch))

	a.Splice(b)
	assert.True(t, b.Empty())

	op1, _ := a.Pop()
	op1.Finish()
	op2, _ := a.Pop()
	op2.Finish()
	assert.Equal(t, 1, <-ch)
	assert.Equal(t, 2, <-ch)
}

func TestWaitStackPushResult(t *testing.T) {
	var s WaitStack
	w1, w2 := noopWaiter{}, noopWaiter{}
	require.Equal(t, NeverPushed, s.Push(w1))
	require.Equal(t, WasNonEmpty, s.Push(w2))
	s.DrainAll()
	require.Equal(t, WasEmpty, s.Push(w1))
}

func TestWaitStackDrainFIFO(t *testing.T) {
	var s WaitStack
	s.Push(orderedWaiter(1))
	s.Push(orderedWaiter(2))
	s.Push(orderedWaiter(3))
	fifo := s.DrainFIFO()
	require.Len(t, fifo, 3)
	assert.Equal(t, orderedWaiter(1), fifo[0])
	assert.Equal(t, orderedWaiter(3), fifo[2])
}

type noopWaiter struct{}

func (noopWaiter) Wake() {}

type orderedWaiter int

func (orderedWaiter) Wake() {}

type testTimer struct {
	BaseOp
	deadline time.Time
	canceled bool
	fired    chan time.Time
}

func (t *testTimer) Finish()           { t.fired <- t.deadline }
func (t *testTimer) Deadline() time.Time { return t.deadline }
func (t *testTimer) Canceled() bool    { return t.canceled }

func TestTimerQueueOrdersByDeadline(t *testing.T) {
	q := NewTimerQueue()
	base := time.Now()
	fired := make(chan time.Time, 3)
	q.Add(&testTimer{deadline: base.Add(3 * time.Second), fired: fired})
	isMin := q.Add(&testTimer{deadline: base.Add(1 * time.Second), fired: fired})
	assert.True(t, isMin)
	q.Add(&testTimer{deadline: base.Add(2 * time.Second), fired: fired})

	out := NewOpQueue()
	q.TakeReadyTimers(base.Add(2500*time.Millisecond), out)

	var got []time.Time
	for {
		op, ok := out.Pop()
		if !ok {
			break
		}
		op.Finish()
		got = append(got, <-fired)
	}
	require.Len(t, got, 2)
	assert.True(t, got[0].Before(got[1]) || got[0].Equal(got[1]))
	assert.Equal(t, 1, q.Len())
}

func TestTimerQueueSkipsCanceled(t *testing.T) {
	q := NewTimerQueue()
	fired := make(chan time.Time, 1)
	q.Add(&testTimer{deadline: time.Now(), canceled: true, fired: fired})
	out := NewOpQueue()
	q.TakeReadyTimers(time.Now().Add(time.Second), out)
	assert.True(t, out.Empty())
}
