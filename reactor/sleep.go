package reactor

import (
	"sync/atomic"
	"time"

	"github.com/coio-go/coio/sender"
)

// Sleep returns a sender that completes with a value after d has elapsed
// on r's clock, or with stopped if the connecting receiver's stop token
// fires first — the reactor's counterpart to timeloop.Sleep, used when a
// program's I/O and timers share a single execution context.
func Sleep(r *Reactor, d time.Duration) sender.Sender[struct{}] {
	return sleepSender{r: r, d: d}
}

type sleepSender struct {
	r *Reactor
	d time.Duration
}

func (s sleepSender) Connect(recv sender.Receiver[struct{}]) sender.OperationState {
	return &sleepOpState{r: s.r, d: s.d, recv: recv}
}

type sleepOpState struct {
	r       *Reactor
	d       time.Duration
	recv    sender.Receiver[struct{}]
	settled atomic.Bool
}

func (o *sleepOpState) Start() {
	env := o.recv.Env()
	tok := env.StopToken
	if tok != nil && tok.StopRequested() {
		o.settled.Store(true)
		o.recv.SetStopped()
		return
	}

	t := &timerOp{r: o.r, deadline: o.r.Now().Add(o.d)}
	var cb interface{ Close() }
	t.fn = func() {
		if !o.settled.CompareAndSwap(false, true) {
			return
		}
		if cb != nil {
			cb.Close()
		}
		o.recv.SetValue(struct{}{})
	}

	o.r.addWork()
	isNewMin := o.r.timers.Add(t)
	if isNewMin {
		o.r.wake()
	}

	if tok != nil {
		cb = tok.Register(func() {
			if !o.settled.CompareAndSwap(false, true) {
				return
			}
			t.cancel()
			o.recv.SetStopped()
		})
	}
}
