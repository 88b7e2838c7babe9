// Package exec defines the concepts shared by every execution context in
// coio: the Scheduler/TimedScheduler/IoScheduler hierarchy, and the
// environment/allocator plumbing senders and receivers query for ambient
// context (§4.2, §9 "allocator-aware coroutine frames").
package exec

import (
	"time"

	"github.com/coio-go/coio/stoptoken"
)

// Allocator is the environment-queried allocation hint every suspendable
// operation may use for its frame storage. A nil Allocator means "use the
// runtime default" (Go's garbage-collected heap via plain `new`).
type Allocator interface {
	// Get returns a buffer of at least size bytes, reused from a pool when
	// possible.
	Get(size int) []byte
	// Put returns a buffer obtained from Get for reuse.
	Put(buf []byte)
}

// Env is the ambient context a Receiver exposes to whatever Sender it is
// connected to: a stop token, a scheduler to resume continuations on, and
// an allocator hint.
type Env struct {
	StopToken stoptoken.Token
	Scheduler Scheduler
	Allocator Allocator
}

// WithStopToken returns a copy of e with StopToken replaced — used by
// sender.StopWhen to substitute a combined token for a downstream one.
func (e Env) WithStopToken(tok stoptoken.Token) Env {
	e.StopToken = tok
	return e
}

// Scheduler produces a value-sender whose completion signifies "now running
// on this scheduler". Equality between two Schedulers (via ==, where the
// concrete type supports it) indicates they are the same execution
// resource.
type Scheduler interface {
	// Schedule returns a sender completing with a value once control has
	// been transferred onto this scheduler.
	Schedule() ScheduleSender
}

// ScheduleSender is the minimal sender contract Schedule() returns; it is
// defined as its own interface (rather than reusing sender.Sender[struct{}])
// to keep this package free of an import cycle with package sender, which
// itself depends on exec for Env/Scheduler.
type ScheduleSender interface {
	// ConnectFunc registers onValue/onStopped continuations and starts the
	// operation when Start is called on the returned handle.
	ConnectFunc(onValue func(), onStopped func()) Startable
}

// Startable is returned by ConnectFunc; Start begins the operation exactly
// once.
type Startable interface {
	Start()
}

// TimedScheduler extends Scheduler with clock access and delayed
// scheduling.
type TimedScheduler interface {
	Scheduler
	Now() time.Time
	ScheduleAfter(d time.Duration) ScheduleSender
	ScheduleAt(t time.Time) ScheduleSender
}

// RawFD is the OS file descriptor type senders' io descriptions are
// registered against.
type RawFD = int

// IoObject is an adopted raw handle, created via IoScheduler.MakeIoObject,
// that I/O descriptions are scheduled against.
type IoObject interface {
	FD() RawFD
}

// IoScheduler is a Scheduler that can additionally adopt raw handles.
//
// Go methods cannot introduce their own type parameters, so the actual
// "schedule_io(io_object, io_description) -> Sender<T>" operation from
// §4.2 is not a method on this interface (it would need a different T per
// op kind); instead package ioop provides free generic functions
// (ioop.ReadSome[*reactor.Reactor], ioop.Accept[*reactor.Reactor], ...)
// that take a concrete Registrar and return a typed sender.Sender[T]. This
// interface remains the identification/adoption surface every I/O
// scheduler satisfies.
type IoScheduler interface {
	Scheduler
	MakeIoObject(fd RawFD) IoObject
}
