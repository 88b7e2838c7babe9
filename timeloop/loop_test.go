package timeloop

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/sender"
	"github.com/coio-go/coio/stoptoken"
)

func TestLoopRunsUntilIdle(t *testing.T) {
	l := New()
	var ran atomic.Bool
	l.Post(func() { ran.Store(true) })
	l.Run()
	assert.True(t, ran.Load())
}

func TestLoopRunsTimersInOrder(t *testing.T) {
	l := New()
	var order []int
	env := exec.Env{Scheduler: l}

	for _, id := range []int{3, 1, 2} {
		id := id
		d := time.Duration(id) * time.Millisecond
		s := Sleep(l, d)
		r := sender.NewReceiver[struct{}](env,
			func(struct{}) { order = append(order, id) },
			func(error) {},
			func() {},
		)
		op := s.Connect(r)
		op.Start()
	}

	l.Run()
	require.Len(t, order, 3)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSleepCancelledByStopToken(t *testing.T) {
	l := New()
	src := stoptoken.NewSource()
	env := exec.Env{Scheduler: l, StopToken: src.Token()}

	var stopped bool
	s := Sleep(l, time.Hour)
	r := sender.NewReceiver[struct{}](env,
		func(struct{}) { t.Fatal("should not deliver a value") },
		func(error) {},
		func() { stopped = true },
	)
	op := s.Connect(r)
	op.Start()

	src.RequestStop()
	l.Run()

	assert.True(t, stopped)
}

func TestSleepAlreadyStoppedCompletesSynchronously(t *testing.T) {
	l := New()
	src := stoptoken.NewSource()
	src.RequestStop()
	env := exec.Env{Scheduler: l, StopToken: src.Token()}

	var stopped bool
	s := Sleep(l, time.Hour)
	r := sender.NewReceiver[struct{}](env,
		func(struct{}) { t.Fatal("should not deliver a value") },
		func(error) {},
		func() { stopped = true },
	)
	op := s.Connect(r)
	op.Start()

	assert.True(t, stopped)
}

func TestLoopPollOneReturnsFalseWhenEmpty(t *testing.T) {
	l := New()
	assert.False(t, l.PollOne())
}

func TestLoopStopUnblocksRun(t *testing.T) {
	l := New()
	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()

	// Keep the loop alive briefly with a far-future timer, then Stop it.
	env := exec.Env{Scheduler: l}
	s := Sleep(l, time.Hour)
	r := sender.NewReceiver[struct{}](env, func(struct{}) {}, func(error) {}, func() {})
	op := s.Connect(r)
	op.Start()

	l.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not unblock after Stop")
	}
}

func TestSyncWaitOverLoopSchedule(t *testing.T) {
	l := New()
	go l.Run()
	defer l.Stop()

	s := sender.ContinuesOn(sender.Just(5), l)
	res := sender.SyncWait(s, stoptoken.Never{})
	require.True(t, res.Ok)
	assert.Equal(t, 5, res.Value)
}

func TestLoopMetricsDisabledByDefault(t *testing.T) {
	l := New()
	l.Post(func() {})
	l.Run()
	snap := l.Metrics()
	assert.Zero(t, snap.Count)
}

func TestLoopMetricsRecordsTimerLatency(t *testing.T) {
	l := New(WithMetrics(true))
	env := exec.Env{Scheduler: l}
	s := Sleep(l, time.Millisecond)
	r := sender.NewReceiver[struct{}](env, func(struct{}) {}, func(error) {}, func() {})
	op := s.Connect(r)
	op.Start()
	l.Run()

	snap := l.Metrics()
	assert.Equal(t, 1, snap.Count)
	assert.GreaterOrEqual(t, snap.P50Latency, 0.0)
}
