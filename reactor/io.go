package reactor

import (
	"fmt"
	"sync/atomic"

	"github.com/coio-go/coio/sender"
)

// WaitReadable returns a sender that completes once fd becomes readable
// (or hangs up / errors), or stopped if the connecting receiver's stop
// token fires first. fd must have been adopted via MakeIoObject first.
//
// Only one WaitReadable may be outstanding per fd at a time — concurrently
// starting a second one while the first is still pending panics, matching
// §4.4.2's single input_op-per-fd invariant (the asio model this reactor
// follows: a socket may be read by at most one coroutine at a time, same
// for writes).
func (r *Reactor) WaitReadable(fd int) sender.Sender[struct{}] {
	return waitSender{r: r, fd: fd, dir: dirRead}
}

// WaitWritable is WaitReadable's write-direction counterpart.
func (r *Reactor) WaitWritable(fd int) sender.Sender[struct{}] {
	return waitSender{r: r, fd: fd, dir: dirWrite}
}

type waitDirection int

const (
	dirRead waitDirection = iota
	dirWrite
)

type waitSender struct {
	r   *Reactor
	fd  int
	dir waitDirection
}

func (s waitSender) Connect(recv sender.Receiver[struct{}]) sender.OperationState {
	return &waitOpState{r: s.r, fd: s.fd, dir: s.dir, recv: recv}
}

type waitOpState struct {
	r       *Reactor
	fd      int
	dir     waitDirection
	recv    sender.Receiver[struct{}]
	settled atomic.Bool
	pending *pendingWait
}

func (o *waitOpState) Start() {
	env := o.recv.Env()
	tok := env.StopToken
	if tok != nil && tok.StopRequested() {
		o.recv.SetStopped()
		return
	}

	slotAny, ok := o.r.slots.Load(o.fd)
	if !ok {
		panic(fmt.Sprintf("reactor: fd %d was never adopted via MakeIoObject", o.fd))
	}

	var cb interface{ Close() }
	notify := func(err error) {
		if !o.settled.CompareAndSwap(false, true) {
			return
		}
		if cb != nil {
			cb.Close()
		}
		if err != nil {
			o.recv.SetError(err)
			return
		}
		o.recv.SetValue(struct{}{})
	}

	o.pending = &pendingWait{notify: notify}
	slotAny.mu.Lock()
	switch o.dir {
	case dirRead:
		if slotAny.input != nil {
			slotAny.mu.Unlock()
			panic(fmt.Sprintf("reactor: fd %d already has a pending read wait", o.fd))
		}
		slotAny.input = o.pending
	case dirWrite:
		if slotAny.output != nil {
			slotAny.mu.Unlock()
			panic(fmt.Sprintf("reactor: fd %d already has a pending write wait", o.fd))
		}
		slotAny.output = o.pending
	}
	o.r.rearmLocked(slotAny)
	slotAny.mu.Unlock()

	if tok != nil {
		cb = tok.Register(func() {
			if !o.settled.CompareAndSwap(false, true) {
				return
			}
			o.clearSlot(slotAny)
			o.recv.SetStopped()
		})
	}
}

// clearSlot removes this waiter from its direction's slot if it is still
// the one registered there (it may already have been consumed by
// dispatchReady concurrently, in which case this is a no-op).
func (o *waitOpState) clearSlot(slot *fdSlot) {
	slot.mu.Lock()
	switch o.dir {
	case dirRead:
		if slot.input == o.pending {
			slot.input = nil
		}
	case dirWrite:
		if slot.output == o.pending {
			slot.output = nil
		}
	}
	o.r.rearmLocked(slot)
	slot.mu.Unlock()
}
