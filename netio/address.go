// Package netio provides the network, file, and pipe I/O objects built on
// top of package ioop's operation senders: tcp/udp endpoints, a resolver,
// stream/datagram sockets and an acceptor, stream and random-access files,
// pipe reader/writer, and a signal set (§6).
package netio

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"
)

// Endpoint pairs an address with a port, mirroring asio's tcp::endpoint /
// udp::endpoint (§6). Addr may be either an IPv4 or IPv6 netip.Addr.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// NewEndpoint builds an Endpoint from an address and port.
func NewEndpoint(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{Addr: addr, Port: port}
}

func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr, e.Port).String()
}

// Protocol distinguishes the socket (type, family-deciding) flavour a
// netio object is opened with — tcp or udp (§6's `tcp`/`udp` types).
type Protocol int

const (
	TCP Protocol = iota
	UDP
)

func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	default:
		return "unknown"
	}
}

func (p Protocol) sockType() int {
	switch p {
	case TCP:
		return unix.SOCK_STREAM
	case UDP:
		return unix.SOCK_DGRAM
	default:
		panic("netio: unknown protocol")
	}
}

func family(addr netip.Addr) int {
	if addr.Is4() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

func endpointToSockaddr(ep Endpoint) (unix.Sockaddr, error) {
	if !ep.Addr.IsValid() {
		return nil, fmt.Errorf("netio: invalid endpoint address")
	}
	if ep.Addr.Is4() {
		sa := &unix.SockaddrInet4{Port: int(ep.Port)}
		sa.Addr = ep.Addr.As4()
		return sa, nil
	}
	sa := &unix.SockaddrInet6{Port: int(ep.Port)}
	sa.Addr = ep.Addr.As16()
	if z := ep.Addr.Zone(); z != "" {
		if idx, err := zoneIndex(z); err == nil {
			sa.ZoneId = idx
		}
	}
	return sa, nil
}

func sockaddrToEndpoint(sa unix.Sockaddr) (Endpoint, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return Endpoint{Addr: netip.AddrFrom4(v.Addr), Port: uint16(v.Port)}, nil
	case *unix.SockaddrInet6:
		return Endpoint{Addr: netip.AddrFrom16(v.Addr), Port: uint16(v.Port)}, nil
	default:
		return Endpoint{}, fmt.Errorf("netio: unsupported sockaddr type %T", sa)
	}
}

func zoneIndex(name string) (uint32, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return uint32(ifi.Index), nil
}
