// Package task implements Task[T]: a lazily-started suspendable procedure
// that is itself a sender.Sender[T] and, via Await, an awaitable inside
// another Task. Go has no stackless coroutines, so a Task's frame is a
// goroutine parked on a channel at every suspension point — the suspension
// points are exactly the calls into Await, matching §4.3's promise model
// one level up from the C++ source's compiler-generated coroutine frame.
package task

import (
	"errors"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/internal/rt"
	"github.com/coio-go/coio/sender"
	"github.com/coio-go/coio/stoptoken"
)

// Stopped is the sentinel error a Task's body function returns to signal
// that it observed cancellation and is unwinding cooperatively; Task
// translates it into a stopped completion instead of an error completion
// (the Go restatement of the C++ promise's unhandled_stopped path).
var Stopped = errors.New("task: stopped")

// Func is the body of a Task[T]: it receives a *Ctx carrying the derived
// stop token/scheduler/allocator, and returns either a value, or Stopped,
// or any other error.
type Func[T any] func(c *Ctx) (T, error)

// Task is a lazily-started suspendable procedure producing T.
type Task[T any] struct {
	fn        Func[T]
	allocator exec.Allocator
}

// New constructs a Task from fn. The task does not start running until it
// is connected to a receiver and Start is called.
func New[T any](fn Func[T]) Task[T] { return Task[T]{fn: fn} }

// WithAllocator returns a copy of t that uses alloc for its frame's pooled
// buffers (exposed to the body as Ctx.Allocator), instead of the
// environment-supplied allocator.
func (t Task[T]) WithAllocator(alloc exec.Allocator) Task[T] {
	t.allocator = alloc
	return t
}

// Connect implements sender.Sender[T].
func (t Task[T]) Connect(r sender.Receiver[T]) sender.OperationState {
	return &taskOpState[T]{t: t, r: r}
}

type taskOpState[T any] struct {
	t Task[T]
	r sender.Receiver[T]
}

// Start resumes (spawns) the task's goroutine exactly once.
func (o *taskOpState[T]) Start() {
	env := o.r.Env()
	alloc := o.t.allocator
	if alloc == nil {
		alloc = env.Allocator
	}
	prop := stoptoken.NewPropagator(env.StopToken)
	ctx := &Ctx{
		env:   env,
		prop:  prop,
		alloc: alloc,
	}

	go func() {
		defer prop.Close()
		value, err := o.runBody(ctx)
		switch {
		case err == nil:
			o.r.SetValue(value)
		case errors.Is(err, Stopped):
			o.r.SetStopped()
		default:
			o.r.SetError(err)
		}
	}()
}

func (o *taskOpState[T]) runBody(ctx *Ctx) (value T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &rt.PanicError{Value: rec}
		}
	}()
	return o.t.fn(ctx)
}

// Ctx is the per-invocation context passed to a Task's body.
type Ctx struct {
	env   exec.Env
	prop  *stoptoken.Propagator
	alloc exec.Allocator
}

// StopToken returns the token this task's body should observe: the
// combination of whatever its connecting receiver exposed, forwarded
// through the task's own propagator.
func (c *Ctx) StopToken() stoptoken.Token { return c.prop.Token() }

// Scheduler returns the ambient scheduler from the connecting receiver's
// environment, or nil if none was supplied.
func (c *Ctx) Scheduler() exec.Scheduler { return c.env.Scheduler }

// Allocator returns the frame allocator in effect for this task, or nil to
// mean "use the Go heap".
func (c *Ctx) Allocator() exec.Allocator { return c.alloc }

// Env returns the full ambient environment, for building a Receiver to
// pass to Await manually (most callers should just use Await).
func (c *Ctx) Env() exec.Env { return c.env }

// PanicError wraps a recovered panic value as an error completion, so a
// panicking task body never crashes the process; it surfaces through the
// error channel like any other failure (§7). Alias of rt.PanicError, the
// shared panic-to-error type every execution context in this module uses.
type PanicError = rt.PanicError

// Await connects and starts s, blocking the calling goroutine (the task's
// own frame) until it completes, then returns its outcome. This is a
// Task's suspension point: the goroutine parks on a channel exactly as a
// compiler-generated coroutine would park its stack, and resumes on
// whichever worker eventually delivers s's completion.
//
// Await cannot be a method of *Ctx because Go methods may not introduce
// new type parameters.
func Await[U any](c *Ctx, s sender.Sender[U]) (U, error) {
	type outcome struct {
		value   U
		err     error
		stopped bool
	}
	ch := make(chan outcome, 1)
	r := sender.NewReceiver[U](c.env,
		func(v U) { ch <- outcome{value: v} },
		func(err error) { ch <- outcome{err: err} },
		func() { ch <- outcome{stopped: true} },
	)
	op := s.Connect(r)
	op.Start()
	out := <-ch
	if out.stopped {
		var zero U
		return zero, Stopped
	}
	return out.value, out.err
}
