// Package generator implements generator (§4.7): a lazy, single-consumer,
// cold sequence of values produced from a suspendable procedure. Nothing
// runs until the first call to Next; the producing goroutine parks on an
// unbuffered channel between values, which gives the same "one frame
// active, resume exactly where it left off" behaviour the spec describes
// for its doubly-linked frame stack, without needing to hand-roll one —
// Go's own goroutine stack already is that frame.
//
// Minimal by design (§4.7 calls generators out of hard-core scope beyond
// this note): the only consumer in this module is timeloop's timer id
// allocator.
package generator

import (
	"runtime"
	"sync"
)

// Generator is a cold, single-consumer sequence of T produced by a
// suspendable procedure (§4.7). The zero value is not usable; construct
// with New.
type Generator[T any] struct {
	once   sync.Once
	body   func(yield func(T))
	values chan T
	done   chan struct{}
}

// New returns a generator that, once started by the first call to Next,
// runs body on its own goroutine. body calls yield to produce each
// element in turn; yield blocks until the consumer calls Next again.
func New[T any](body func(yield func(T))) *Generator[T] {
	return &Generator[T]{
		body:   body,
		values: make(chan T),
		done:   make(chan struct{}),
	}
}

// start launches the producing goroutine exactly once, lazily on first
// Next, so an unconsumed generator never runs its body (§4.7's "cold").
func (g *Generator[T]) start() {
	go func() {
		defer close(g.values)
		g.body(func(v T) {
			select {
			case g.values <- v:
			case <-g.done:
				// Consumer abandoned the sequence; stop producing rather
				// than block forever on a value nobody will ever read.
				runtime.Goexit()
			}
		})
	}()
}

// Next blocks until the next element is produced, returning ok == false
// once the sequence is exhausted.
func (g *Generator[T]) Next() (v T, ok bool) {
	g.once.Do(g.start)
	v, ok = <-g.values
	return v, ok
}

// Close abandons the sequence, releasing a producer goroutine parked on
// yield. Safe to call more than once and safe to call on a generator that
// was never started.
func (g *Generator[T]) Close() {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

// ElementsOf implements elements_of(sub) (§4.7): delegates yield to every
// element of sub in turn, the nested-generator-composition idiom the spec
// calls out explicitly.
func ElementsOf[T any](yield func(T), sub *Generator[T]) {
	for {
		v, ok := sub.Next()
		if !ok {
			return
		}
		yield(v)
	}
}
