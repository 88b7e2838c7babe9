package timeloop

import "github.com/coio-go/coio/internal/rt"

// contextOptions holds configuration resolved from Option values, the Go
// restatement of the teacher's loopOptions (options.go) renamed to this
// package's domain.
type contextOptions struct {
	drainContinuations bool
	metricsEnabled     bool
	logger             *rt.Logger
}

// Option configures a Loop instance.
type Option interface {
	applyLoop(*contextOptions)
}

type contextOptionFunc func(*contextOptions)

func (f contextOptionFunc) applyLoop(opts *contextOptions) { f(opts) }

// WithDrainContinuations sets whether continuations scheduled from within
// a running callback are drained before the loop next checks its timer
// heap, the Go-domain equivalent of the teacher's strict microtask
// ordering (WithStrictMicrotaskOrdering) — used by combinators like
// let_value to keep causally-related work together instead of
// interleaving with unrelated timers.
func WithDrainContinuations(enabled bool) Option {
	return contextOptionFunc(func(o *contextOptions) { o.drainContinuations = enabled })
}

// WithMetrics enables scheduling-latency and queue-depth percentile
// collection, retrievable via Loop.Metrics().
func WithMetrics(enabled bool) Option {
	return contextOptionFunc(func(o *contextOptions) { o.metricsEnabled = enabled })
}

// WithLogger sets the structured logger the loop reports lifecycle events
// through. Defaults to rt.Discard (silent) if never set.
func WithLogger(l *rt.Logger) Option {
	return contextOptionFunc(func(o *contextOptions) { o.logger = l })
}

func resolveOptions(opts []Option) *contextOptions {
	cfg := &contextOptions{logger: rt.Discard}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyLoop(cfg)
	}
	return cfg
}
