package netio

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/coio-go/coio/sender"
)

// Resolver is asio's resolver<Protocol> (§6): getaddrinfo-equivalent name
// resolution, upgraded from the original's platform-getaddrinfo-only
// implementation to a protocol-aware DNS client, since this spec treats
// the resolver as a first-class domain-stack component rather than a thin
// OS wrapper.
type Resolver struct {
	p       Poster
	client  *dns.Client
	servers []string
}

// NewResolver builds a resolver that queries the given DNS servers
// (host:port form, e.g. "8.8.8.8:53") in order, moving to the next server
// only when an exchange with the current one fails, delivering results
// through p the same way SignalSet bridges background work onto the
// execution context.
func NewResolver(p Poster, servers ...string) *Resolver {
	if len(servers) == 0 {
		servers = []string{"8.8.8.8:53"}
	}
	return &Resolver{
		p:       p,
		client:  &dns.Client{Timeout: 5 * time.Second},
		servers: servers,
	}
}

// Lookup resolves name to its A and AAAA records, returning one Endpoint
// per address with port applied to each.
func (r *Resolver) Lookup(name string, port uint16) sender.Sender[[]Endpoint] {
	return lookupSender{r: r, name: name, port: port}
}

type lookupSender struct {
	r    *Resolver
	name string
	port uint16
}

func (s lookupSender) Connect(recv sender.Receiver[[]Endpoint]) sender.OperationState {
	return &lookupOpState{s: s, recv: recv}
}

type lookupOpState struct {
	s    lookupSender
	recv sender.Receiver[[]Endpoint]
}

func (o *lookupOpState) Start() {
	tok := o.recv.Env().StopToken
	if tok.StopRequested() {
		o.recv.SetStopped()
		return
	}

	done := make(chan struct{})
	cb := tok.Register(func() { close(done) })

	result := make(chan lookupResult, 1)
	go func() { result <- o.s.r.resolve(o.s.name, o.s.port) }()

	go func() {
		select {
		case res := <-result:
			cb.Close()
			o.s.r.p.Post(func() {
				if res.err != nil {
					o.recv.SetError(res.err)
					return
				}
				o.recv.SetValue(res.endpoints)
			})
		case <-done:
			o.s.r.p.Post(o.recv.SetStopped)
		}
	}()
}

type lookupResult struct {
	endpoints []Endpoint
	err       error
}

func (r *Resolver) resolve(name string, port uint16) lookupResult {
	var endpoints []Endpoint
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(name), qtype)
		msg.RecursionDesired = true

		var lastErr error
		for _, server := range r.servers {
			reply, _, err := r.client.Exchange(msg, server)
			if err != nil {
				lastErr = err
				continue
			}
			for _, rr := range reply.Answer {
				switch rec := rr.(type) {
				case *dns.A:
					if addr, ok := netip.AddrFromSlice(rec.A.To4()); ok {
						endpoints = append(endpoints, Endpoint{Addr: addr, Port: port})
					}
				case *dns.AAAA:
					if addr, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
						endpoints = append(endpoints, Endpoint{Addr: addr, Port: port})
					}
				}
			}
			lastErr = nil
			break
		}
		if lastErr != nil && len(endpoints) == 0 {
			return lookupResult{err: fmt.Errorf("netio: resolve %s: %w", name, lastErr)}
		}
	}
	if len(endpoints) == 0 {
		return lookupResult{err: fmt.Errorf("netio: resolve %s: no records found", name)}
	}
	return lookupResult{endpoints: endpoints}
}
