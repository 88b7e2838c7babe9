package asyncsync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/sender"
	"github.com/coio-go/coio/stoptoken"
	"github.com/coio-go/coio/timeloop"
)

func TestMutexSerializesConcurrentTasks(t *testing.T) {
	l := timeloop.New()
	env := exec.Env{Scheduler: l}
	m := NewMutex()

	var active, maxActive atomic.Int32
	var completed atomic.Int32
	const n = 8

	for i := 0; i < n; i++ {
		m.WithLock(func() {
			cur := active.Add(1)
			for {
				prev := maxActive.Load()
				if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
					break
				}
			}
			active.Add(-1)
			completed.Add(1)
		}).Connect(sender.NewReceiver[struct{}](env,
			func(struct{}) {},
			func(error) { t.Fatal("unexpected error") },
			func() { t.Fatal("unexpected stop") },
		)).Start()
	}

	l.Run()
	assert.EqualValues(t, n, completed.Load())
	assert.LessOrEqual(t, maxActive.Load(), int32(1))
}

func TestSemaphoreLimitsConcurrency(t *testing.T) {
	l := timeloop.New()
	env := exec.Env{Scheduler: l}
	sem := NewSemaphore(2)

	var active, maxActive atomic.Int32
	var completed atomic.Int32
	const n = 6

	for i := 0; i < n; i++ {
		sem.Acquire().Connect(sender.NewReceiver[struct{}](env,
			func(struct{}) {
				cur := active.Add(1)
				for {
					prev := maxActive.Load()
					if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
						break
					}
				}
				active.Add(-1)
				completed.Add(1)
				sem.Release()
			},
			func(error) { t.Fatal("unexpected error") },
			func() { t.Fatal("unexpected stop") },
		)).Start()
	}

	l.Run()
	assert.EqualValues(t, n, completed.Load())
	assert.LessOrEqual(t, maxActive.Load(), int32(2))
}

func TestLatchReleasesAllWaitersAtZero(t *testing.T) {
	l := timeloop.New()
	env := exec.Env{Scheduler: l}
	latch := NewLatch(3)

	var done atomic.Int32
	const waiters = 5
	for i := 0; i < waiters; i++ {
		latch.Wait().Connect(sender.NewReceiver[struct{}](env,
			func(struct{}) { done.Add(1) },
			func(error) { t.Fatal("unexpected error") },
			func() { t.Fatal("unexpected stop") },
		)).Start()
	}

	assert.EqualValues(t, 0, done.Load())
	latch.CountDownOne()
	latch.CountDownOne()
	l.Run()
	assert.EqualValues(t, 0, done.Load())

	latch.CountDownOne()
	l.Run()
	assert.EqualValues(t, waiters, done.Load())
}

func TestLatchTryWaitAlreadyOpenCompletesSynchronously(t *testing.T) {
	l := timeloop.New()
	env := exec.Env{Scheduler: l}
	latch := NewLatch(0)
	require.True(t, latch.TryWait())

	var done bool
	latch.Wait().Connect(sender.NewReceiver[struct{}](env,
		func(struct{}) { done = true },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	)).Start()
	assert.True(t, done)
}

func TestScopeJoinWaitsForAllSpawnedTasks(t *testing.T) {
	l := timeloop.New()
	env := exec.Env{Scheduler: l}
	scope := NewScope()

	for i := 0; i < 4; i++ {
		ok := Spawn[struct{}](scope, timeloopSleep(l, time.Millisecond), env)
		require.True(t, ok)
	}

	joined := false
	scope.Close()
	scope.Join().Connect(sender.NewReceiver[struct{}](env,
		func(struct{}) { joined = true },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	)).Start()

	l.Run()
	assert.True(t, joined)
}

func TestScopeSpawnAfterCloseIsRejected(t *testing.T) {
	l := timeloop.New()
	env := exec.Env{Scheduler: l}
	scope := NewScope()
	scope.Close()

	ok := Spawn[struct{}](scope, sender.Just(struct{}{}), env)
	assert.False(t, ok)

	joined := false
	scope.Join().Connect(sender.NewReceiver[struct{}](env,
		func(struct{}) { joined = true },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	)).Start()
	assert.True(t, joined)
}

func TestScopeRequestStopCancelsSpawnedTasks(t *testing.T) {
	l := timeloop.New()
	src := stoptoken.NewSource()
	env := exec.Env{Scheduler: l, StopToken: src.Token()}
	scope := NewScope()

	var stopped atomic.Bool
	ok := Spawn[struct{}](scope, timeloopSleepWithStop(l, time.Hour, &stopped), env)
	require.True(t, ok)

	scope.Close()
	scope.RequestStop()

	joined := false
	scope.Join().Connect(sender.NewReceiver[struct{}](env,
		func(struct{}) { joined = true },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	)).Start()

	l.Run()
	assert.True(t, joined)
	assert.True(t, stopped.Load())
}

func timeloopSleep(l *timeloop.Loop, d time.Duration) sender.Sender[struct{}] {
	return timeloop.Sleep(l, d)
}

func timeloopSleepWithStop(l *timeloop.Loop, d time.Duration, stopped *atomic.Bool) sender.Sender[struct{}] {
	return sender.UponStopped(timeloop.Sleep(l, d), func() struct{} {
		stopped.Store(true)
		return struct{}{}
	})
}
