package reactor

import "github.com/coio-go/coio/internal/rt"

// contextOptions holds configuration resolved from Option values, mirroring
// timeloop's contextOptions — the two execution contexts share the same
// functional-option shape (§4.4).
type contextOptions struct {
	metricsEnabled bool
	logger         *rt.Logger
}

// Option configures a Reactor instance.
type Option interface {
	applyReactor(*contextOptions)
}

type contextOptionFunc func(*contextOptions)

func (f contextOptionFunc) applyReactor(opts *contextOptions) { f(opts) }

// WithMetrics enables scheduling-latency and queue-depth percentile
// collection, retrievable via Reactor.Metrics().
func WithMetrics(enabled bool) Option {
	return contextOptionFunc(func(o *contextOptions) { o.metricsEnabled = enabled })
}

// WithLogger sets the structured logger the reactor reports lifecycle
// events through. Defaults to rt.Discard (silent) if never set.
func WithLogger(l *rt.Logger) Option {
	return contextOptionFunc(func(o *contextOptions) { o.logger = l })
}

func resolveOptions(opts []Option) *contextOptions {
	cfg := &contextOptions{logger: rt.Discard}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyReactor(cfg)
	}
	return cfg
}
