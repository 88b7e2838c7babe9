package asyncsync

import (
	"fmt"
	"sync"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/sender"
	"github.com/coio-go/coio/stoptoken"
)

// scopeState is async_scope's state machine (§4.5): {unused, open,
// open_and_joining, closed, closed_and_joining, unused_and_closed,
// joined}.
type scopeState int

const (
	scopeUnused scopeState = iota
	scopeOpen
	scopeOpenAndJoining
	scopeClosed
	scopeClosedAndJoining
	scopeUnusedAndClosed
	scopeJoined
)

// Scope is async_scope (§4.5): structured supervision of fire-and-forget
// tasks. Spawn associates a sender with the scope and starts it
// immediately; Join completes once every associated sender has completed,
// whether or not the scope has been closed.
type Scope struct {
	mu           sync.Mutex
	state        scopeState
	associations int
	stopSrc      *stoptoken.Source
	listeners    []joinListener
}

// NewScope returns an unused, open-on-first-spawn scope.
func NewScope() *Scope {
	return &Scope{state: scopeUnused, stopSrc: stoptoken.NewSource()}
}

// StopToken returns the scope's own stop source's token, tripped by
// RequestStop — every spawned sender observes it via stop_when.
func (s *Scope) StopToken() stoptoken.Token { return s.stopSrc.Token() }

// RequestStop trips the scope's internal stop source, propagating
// cancellation into every currently-associated spawned sender.
func (s *Scope) RequestStop() { s.stopSrc.RequestStop() }

// associate tries to register one more outstanding association, returning
// false if the scope has already closed.
func (s *Scope) associate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case scopeUnused:
		s.state = scopeOpen
	case scopeUnusedAndClosed, scopeClosed, scopeClosedAndJoining, scopeJoined:
		return false
	}
	s.associations++
	return true
}

// disassociate removes one outstanding association, delivering to every
// registered Join listener once the count reaches zero while a join is
// pending, whether or not the scope has separately been closed.
func (s *Scope) disassociate() {
	s.mu.Lock()
	s.associations--
	remaining := s.associations
	var toNotify []joinListener
	if remaining == 0 && (s.state == scopeOpenAndJoining || s.state == scopeClosedAndJoining) {
		s.state = scopeJoined
		toNotify = s.listeners
		s.listeners = nil
	}
	s.mu.Unlock()

	for _, l := range toNotify {
		l.notify()
	}
}

// Close prevents further Spawn calls from associating, without waiting
// for outstanding ones to finish — Join still completes once they do.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case scopeUnused:
		s.state = scopeUnusedAndClosed
	case scopeOpen:
		s.state = scopeClosed
	case scopeOpenAndJoining:
		s.state = scopeClosedAndJoining
	}
}

// Join returns a sender completing once every associated sender has
// disassociated, whether or not the scope has been closed.
func (s *Scope) Join() sender.Sender[struct{}] {
	return joinSender{s: s}
}

type joinListener struct {
	env  exec.Env
	recv sender.Receiver[struct{}]
}

func (l joinListener) notify() {
	sched := l.env.Scheduler
	if sched == nil {
		l.recv.SetValue(struct{}{})
		return
	}
	onValue := func() { l.recv.SetValue(struct{}{}) }
	sched.Schedule().ConnectFunc(onValue, l.recv.SetStopped).Start()
}

type joinSender struct{ s *Scope }

func (j joinSender) Connect(recv sender.Receiver[struct{}]) sender.OperationState {
	return &joinOpState{s: j.s, recv: recv}
}

type joinOpState struct {
	s    *Scope
	recv sender.Receiver[struct{}]
}

func (o *joinOpState) Start() {
	o.s.mu.Lock()
	switch o.s.state {
	case scopeUnused:
		o.s.state = scopeJoined
		o.s.mu.Unlock()
		o.recv.SetValue(struct{}{})
		return
	case scopeUnusedAndClosed:
		o.s.state = scopeJoined
		o.s.mu.Unlock()
		o.recv.SetValue(struct{}{})
		return
	case scopeOpen:
		if o.s.associations == 0 {
			o.s.state = scopeJoined
			o.s.mu.Unlock()
			o.recv.SetValue(struct{}{})
			return
		}
		o.s.state = scopeOpenAndJoining
	case scopeClosed:
		if o.s.associations == 0 {
			o.s.state = scopeJoined
			o.s.mu.Unlock()
			o.recv.SetValue(struct{}{})
			return
		}
		o.s.state = scopeClosedAndJoining
	case scopeJoined:
		o.s.mu.Unlock()
		o.recv.SetValue(struct{}{})
		return
	case scopeOpenAndJoining, scopeClosedAndJoining:
		// Another Join is already pending; both listeners are notified
		// together when associations reach zero.
	}
	o.s.listeners = append(o.s.listeners, joinListener{env: o.recv.Env(), recv: o.recv})
	o.s.mu.Unlock()
}

// Spawn tries to associate s with scope; on success it wraps s to observe
// the scope's stop token (so RequestStop cancels every spawned sender),
// connects it to an internal receiver, and starts it immediately. Value
// and stopped completions both disassociate; an error completion is
// treated as fatal, per §4.5, since a fire-and-forget task has nowhere to
// report an error to. Returns false without starting s if the scope has
// already closed.
func Spawn[T any](scope *Scope, s sender.Sender[T], env exec.Env) bool {
	if !scope.associate() {
		return false
	}
	wrapped := sender.StopWhen(s, scope.StopToken())
	recv := sender.NewReceiver[T](env,
		func(T) { scope.disassociate() },
		func(err error) { panic(fmt.Sprintf("asyncsync: async_scope spawned sender terminated with error: %v", err)) },
		func() { scope.disassociate() },
	)
	wrapped.Connect(recv).Start()
	return true
}
