package sender

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coio-go/coio/stoptoken"
)

// JoinError aggregates every non-value completion observed by a when_all
// or when_any coordinator, for diagnostics only: completion itself still
// forwards a single error per §4.2 (the first one recorded), but a
// caller that wants to know what else went wrong among the other
// children can consult this via joinCoordinator.Diagnostics/
// anyCoordinator.Diagnostics. The Go restatement of the teacher's
// AggregateError, renamed to this package's join-specific vocabulary.
type JoinError struct{ Errors []error }

func (e *JoinError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "sender: " + strings.Join(msgs, "; ")
}

// Unwrap supports errors.Is/errors.As over every aggregated cause via
// Go's multi-error unwrapping (errors.Join semantics).
func (e *JoinError) Unwrap() []error { return e.Errors }

// Join combines errs into a *JoinError for diagnostics, skipping nils; it
// returns nil if nothing remains.
func Join(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return &JoinError{Errors: nonNil}
}

// stopSourceHolder lazily wraps a *stoptoken.Source for join-style
// coordinators that need to trip a shared source and hand out its token.
type stopSourceHolder struct {
	source *stoptoken.Source
}

func (h *stopSourceHolder) init()                  { h.source = stoptoken.NewSource() }
func (h *stopSourceHolder) requestStop()           { h.source.RequestStop() }
func (h *stopSourceHolder) token() stoptoken.Token { return h.source.Token() }

// joinCoordinator is the bookkeeping behind when_all (when_any uses
// anyCoordinator): a
// remaining-child counter, a place to remember the first non-value
// completion, and an internal stop source used to hurry the remaining
// children along.
type joinCoordinator struct {
	remaining atomic.Int64
	source    *stoptoken.Source

	mu      sync.Mutex
	settled bool // true once a non-value completion has been recorded
	err     error
	stopped bool
	errs    []error // every error observed, for Diagnostics (§4.2 still forwards only c.err)
}

func newJoinCoordinator(n int) *joinCoordinator {
	c := &joinCoordinator{source: stoptoken.NewSource()}
	c.remaining.Store(int64(n))
	return c
}

// recordError remembers err as the first non-value completion (if none
// has been recorded yet) and trips the internal stop source.
func (c *joinCoordinator) recordError(err error) {
	c.mu.Lock()
	if !c.settled {
		c.settled = true
		c.err = err
	}
	c.errs = append(c.errs, err)
	c.mu.Unlock()
	c.source.RequestStop()
}

// recordStopped remembers "stopped" as the first non-value completion (if
// none has been recorded yet) and trips the internal stop source.
func (c *joinCoordinator) recordStopped() {
	c.mu.Lock()
	if !c.settled {
		c.settled = true
		c.stopped = true
	}
	c.mu.Unlock()
	c.source.RequestStop()
}

// childDone decrements the remaining counter, returning true for the one
// caller that observes it reach zero.
func (c *joinCoordinator) childDone() bool {
	return c.remaining.Add(-1) == 0
}

// finalNonValue reports the recorded non-value completion, if any.
func (c *joinCoordinator) finalNonValue() (err error, stopped, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err, c.stopped, c.settled
}

// Diagnostics returns every error this coordinator observed across all of
// its children, aggregated as a *JoinError, or nil if fewer than two were
// observed. When the completion forwarded through finalNonValue is an
// error, it is errs[0] (a stopped child recorded first is forwarded as
// stopped instead); this exists only so a caller that wants the full
// picture (e.g. for logging) can get it.
func (c *joinCoordinator) Diagnostics() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) < 2 {
		return nil
	}
	errs := make([]error, len(c.errs))
	copy(errs, c.errs)
	return &JoinError{Errors: errs}
}
