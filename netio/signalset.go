package netio

import (
	"os"
	"os/signal"
	"sync"

	"github.com/coio-go/coio/sender"
)

// Poster is the minimal capability SignalSet needs from an execution
// context: scheduling a callback to run on that context's own thread(s)
// rather than directly on the signal-delivery goroutine (§6's signal_set,
// whose watcher demultiplexes to registered sets from a background
// thread).
type Poster interface {
	Post(fn func())
}

// SignalSet watches a deduplicated set of process signals and delivers
// the next one to whichever async_wait is pending. Per the spec, signal
// handling is per-process: os/signal.Notify already deduplicates and
// multiplexes registration the same way the original's self-pipe watcher
// does, so SignalSet bridges one shared os/signal channel into the
// sender/receiver idiom instead of installing its own signal handler.
type SignalSet struct {
	p       Poster
	signals []os.Signal
	ch      chan os.Signal
	mu      sync.Mutex
	closed  bool
	doneCh  chan struct{}
}

// NewSignalSet creates a watcher for the given signals, registering them
// with os/signal. It starts no goroutine itself; each started AsyncWait
// runs its own goroutine waiting for the next signal.
func NewSignalSet(p Poster, signals ...os.Signal) *SignalSet {
	s := &SignalSet{
		p:       p,
		signals: signals,
		ch:      make(chan os.Signal, 1),
		doneCh:  make(chan struct{}),
	}
	signal.Notify(s.ch, signals...)
	return s
}

// Close stops watching and releases the underlying os/signal registration,
// delivering stopped to any pending async_wait.
func (s *SignalSet) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	signal.Stop(s.ch)
	close(s.doneCh)
}

// AsyncWait completes with the next delivered signal, or stopped if
// cancelled first via the environment's stop token or Close.
func (s *SignalSet) AsyncWait() sender.Sender[os.Signal] {
	return signalWaitSender{s: s}
}

type signalWaitSender struct{ s *SignalSet }

func (w signalWaitSender) Connect(recv sender.Receiver[os.Signal]) sender.OperationState {
	return &signalWaitOpState{s: w.s, recv: recv}
}

type signalWaitOpState struct {
	s    *SignalSet
	recv sender.Receiver[os.Signal]
}

func (o *signalWaitOpState) Start() {
	tok := o.recv.Env().StopToken
	if tok.StopRequested() {
		o.recv.SetStopped()
		return
	}

	cancelCh := make(chan struct{})
	cb := tok.Register(func() { close(cancelCh) })

	// A single select across exactly these three channels picks exactly
	// one branch, so the natural-delivery and cancellation paths cannot
	// both fire for the same wait.
	go func() {
		select {
		case sig, ok := <-o.s.ch:
			cb.Close()
			if !ok {
				o.s.p.Post(o.recv.SetStopped)
				return
			}
			o.s.p.Post(func() { o.recv.SetValue(sig) })
		case <-o.s.doneCh:
			o.s.p.Post(o.recv.SetStopped)
		case <-cancelCh:
			o.s.p.Post(o.recv.SetStopped)
		}
	}()
}
