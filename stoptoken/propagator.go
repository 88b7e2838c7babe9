package stoptoken

// Propagator holds a private Source plus a registration on an outer Token
// that forwards RequestStop into the inner source the moment the outer one
// trips. Tasks use this to derive a per-operation stop source from whatever
// token the connected receiver's environment exposes (see taskOpState.Start
// in package task).
//
// When the outer token is statically unstoppable (Never{}), constructing a
// Propagator is still safe and simply never forwards anything.
type Propagator struct {
	inner *Source
	cb    Callback
}

// NewPropagator builds a Propagator forwarding outer's stop request, if any,
// into a freshly created inner Source.
func NewPropagator(outer Token) *Propagator {
	p := &Propagator{inner: NewSource()}
	if outer != nil && outer.StopPossible() {
		p.cb = outer.Register(func() { p.inner.RequestStop() })
	}
	return p
}

// Token returns the propagator's own (inner) token.
func (p *Propagator) Token() Token { return p.inner.Token() }

// Source returns the inner source, e.g. to call RequestStop directly.
func (p *Propagator) Source() *Source { return p.inner }

// Close deregisters the forwarding callback from the outer token.
func (p *Propagator) Close() {
	if p.cb != nil {
		p.cb.Close()
		p.cb = nil
	}
}

// DegeneratePropagator is the Propagator specialization for when the outer
// token is already of the exact token type this component would otherwise
// wrap in a fresh Source — it stores the token directly, with no callback
// and no extra source, matching the C++ source's zero-overhead
// specialization for stop_propagator<Source, Source::Token>.
type DegeneratePropagator struct {
	token Token
}

// NewDegeneratePropagator wraps tok without allocating a new Source.
func NewDegeneratePropagator(tok Token) *DegeneratePropagator {
	return &DegeneratePropagator{token: tok}
}

func (p *DegeneratePropagator) Token() Token { return p.token }
func (p *DegeneratePropagator) Close()       {}
