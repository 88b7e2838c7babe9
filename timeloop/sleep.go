package timeloop

import (
	"sync/atomic"
	"time"

	"github.com/coio-go/coio/sender"
)

// Sleep returns a sender that completes with a value after d has elapsed
// on l's clock, or with stopped if the connecting receiver's stop token
// fires first. This is the cancellable building block the "two concurrent
// sleeps" and "timer + cancel" scenarios in spec.md §8 are built from; it
// is not part of exec.TimedScheduler itself because cancellation needs the
// connecting receiver's stop token, which ScheduleAt/ScheduleAfter alone
// (an exec.Scheduler-shaped API) has no way to observe.
func Sleep(l *Loop, d time.Duration) sender.Sender[struct{}] {
	return sleepSender{l: l, d: d}
}

type sleepSender struct {
	l *Loop
	d time.Duration
}

func (s sleepSender) Connect(r sender.Receiver[struct{}]) sender.OperationState {
	return &sleepOpState{l: s.l, d: s.d, r: r}
}

type sleepOpState struct {
	l       *Loop
	d       time.Duration
	r       sender.Receiver[struct{}]
	settled atomic.Bool
}

func (o *sleepOpState) Start() {
	env := o.r.Env()
	tok := env.StopToken
	if tok != nil && tok.StopRequested() {
		o.settled.Store(true)
		o.r.SetStopped()
		return
	}

	t := &timerOp{l: o.l, id: o.l.nextTimerID(), deadline: o.l.Now().Add(o.d)}
	var cb interface{ Close() }
	t.fn = func() {
		if !o.settled.CompareAndSwap(false, true) {
			return
		}
		if cb != nil {
			cb.Close()
		}
		o.r.SetValue(struct{}{})
	}

	o.l.addWork()
	isNewMin := o.l.timers.Add(t)
	if isNewMin {
		o.l.wake()
	}

	if tok != nil {
		cb = tok.Register(func() {
			if !o.settled.CompareAndSwap(false, true) {
				return
			}
			t.cancel()
			o.r.SetStopped()
		})
	}
}
