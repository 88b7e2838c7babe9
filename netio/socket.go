package netio

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/ioop"
	"github.com/coio-go/coio/sender"
)

// IoEnv is what every netio object needs from its execution context: the
// per-fd readiness waits ioop's operations retry against, plus the
// adoption call that lets the reactor track a newly-created fd.
type IoEnv interface {
	ioop.Registrar
	exec.IoScheduler
}

func openSocket(proto Protocol, fam int) (int, error) {
	fd, err := unix.Socket(fam, proto.sockType()|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("netio: socket: %w", err)
	}
	return fd, nil
}

// StreamSocket is asio's basic_stream_socket<Protocol, IoScheduler>: a
// connected (or connecting) TCP-like byte stream.
type StreamSocket[R IoEnv] struct {
	r  R
	fd int
}

// NewStreamSocket opens an unconnected, non-blocking stream socket for the
// address family implied by family (unix.AF_INET or unix.AF_INET6),
// adopting it with r.
func NewStreamSocket[R IoEnv](r R, family int) (*StreamSocket[R], error) {
	fd, err := openSocket(TCP, family)
	if err != nil {
		return nil, err
	}
	r.MakeIoObject(fd)
	return &StreamSocket[R]{r: r, fd: fd}, nil
}

// adoptStreamSocket wraps an already-adopted fd (e.g. one returned by
// Accept) without reopening or re-registering it.
func adoptStreamSocket[R IoEnv](r R, fd int) *StreamSocket[R] {
	return &StreamSocket[R]{r: r, fd: fd}
}

// DialStream opens a stream socket for remote's address family, connects
// it, and completes with the connected socket.
func DialStream[R IoEnv](r R, remote Endpoint) sender.Sender[*StreamSocket[R]] {
	fam := family(remote.Addr)
	fd, err := openSocket(TCP, fam)
	if err != nil {
		return sender.JustError[*StreamSocket[R]](err)
	}
	r.MakeIoObject(fd)
	sock := &StreamSocket[R]{r: r, fd: fd}
	sa, err := endpointToSockaddr(remote)
	if err != nil {
		return sender.JustError[*StreamSocket[R]](err)
	}
	return sender.Then(ioop.Connect(r, fd, sa), func(struct{}) *StreamSocket[R] { return sock })
}

func (s *StreamSocket[R]) NativeHandle() int { return s.fd }

// Release returns the underlying fd and detaches it from this socket
// object without closing it, per asio's I/O-object-contract "release".
func (s *StreamSocket[R]) Release() int {
	fd := s.fd
	s.fd = -1
	return fd
}

func (s *StreamSocket[R]) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	return unix.Close(fd)
}

func (s *StreamSocket[R]) LocalEndpoint() (Endpoint, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return Endpoint{}, fmt.Errorf("netio: getsockname: %w", err)
	}
	return sockaddrToEndpoint(sa)
}

func (s *StreamSocket[R]) RemoteEndpoint() (Endpoint, error) {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return Endpoint{}, fmt.Errorf("netio: getpeername: %w", err)
	}
	return sockaddrToEndpoint(sa)
}

func (s *StreamSocket[R]) SetOption(level, name, value int) error {
	return unix.SetsockoptInt(s.fd, level, name, value)
}

func (s *StreamSocket[R]) GetOption(level, name int) (int, error) {
	return unix.GetsockoptInt(s.fd, level, name)
}

func (s *StreamSocket[R]) ReadSome(buf []byte) sender.Sender[int]  { return ioop.ReadSome(s.r, s.fd, buf) }
func (s *StreamSocket[R]) WriteSome(buf []byte) sender.Sender[int] { return ioop.WriteSome(s.r, s.fd, buf) }
func (s *StreamSocket[R]) AsyncRead(buf []byte) sender.Sender[int] { return ioop.AsyncRead(s.r, s.fd, buf) }
func (s *StreamSocket[R]) AsyncWrite(buf []byte) sender.Sender[int] {
	return ioop.AsyncWrite(s.r, s.fd, buf)
}

// SocketAcceptor is asio's basic_socket_acceptor: a bound, listening
// socket that yields new connected StreamSockets.
type SocketAcceptor[R IoEnv] struct {
	r  R
	fd int
}

// NewSocketAcceptor opens, binds (with SO_REUSEADDR), and listens on bind.
func NewSocketAcceptor[R IoEnv](r R, bind Endpoint, backlog int) (*SocketAcceptor[R], error) {
	fam := family(bind.Addr)
	fd, err := openSocket(TCP, fam)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netio: setsockopt SO_REUSEADDR: %w", err)
	}
	sa, err := endpointToSockaddr(bind)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netio: bind: %w", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netio: listen: %w", err)
	}
	r.MakeIoObject(fd)
	return &SocketAcceptor[R]{r: r, fd: fd}, nil
}

func (a *SocketAcceptor[R]) NativeHandle() int { return a.fd }

func (a *SocketAcceptor[R]) Close() error {
	if a.fd < 0 {
		return nil
	}
	fd := a.fd
	a.fd = -1
	return unix.Close(fd)
}

func (a *SocketAcceptor[R]) LocalEndpoint() (Endpoint, error) {
	sa, err := unix.Getsockname(a.fd)
	if err != nil {
		return Endpoint{}, fmt.Errorf("netio: getsockname: %w", err)
	}
	return sockaddrToEndpoint(sa)
}

// Accept completes with a new connected StreamSocket, already adopted by
// r, once a client connects.
func (a *SocketAcceptor[R]) Accept() sender.Sender[*StreamSocket[R]] {
	return sender.Then(ioop.Accept(a.r, a.fd), func(res ioop.AcceptResult) *StreamSocket[R] {
		a.r.MakeIoObject(res.FD)
		return adoptStreamSocket(a.r, res.FD)
	})
}

// DatagramSocket is asio's basic_datagram_socket: a connectionless UDP-like
// socket.
type DatagramSocket[R IoEnv] struct {
	r  R
	fd int
}

// NewDatagramSocket opens an unconnected, non-blocking datagram socket
// optionally bound to local (zero value: unbound).
func NewDatagramSocket[R IoEnv](r R, family int, local Endpoint) (*DatagramSocket[R], error) {
	fd, err := openSocket(UDP, family)
	if err != nil {
		return nil, err
	}
	if local.Addr.IsValid() {
		sa, err := endpointToSockaddr(local)
		if err != nil {
			_ = unix.Close(fd)
			return nil, err
		}
		if err := unix.Bind(fd, sa); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("netio: bind: %w", err)
		}
	}
	r.MakeIoObject(fd)
	return &DatagramSocket[R]{r: r, fd: fd}, nil
}

func (s *DatagramSocket[R]) NativeHandle() int { return s.fd }

func (s *DatagramSocket[R]) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	return unix.Close(fd)
}

func (s *DatagramSocket[R]) SendTo(buf []byte, peer Endpoint) sender.Sender[int] {
	sa, err := endpointToSockaddr(peer)
	if err != nil {
		return sender.JustError[int](err)
	}
	return ioop.SendTo(s.r, s.fd, buf, sa)
}

// ReceiveFrom completes with the number of bytes read plus the sender's
// endpoint.
func (s *DatagramSocket[R]) ReceiveFrom(buf []byte) sender.Sender[ReceiveFromResult] {
	return sender.LetValue(ioop.ReceiveFrom(s.r, s.fd, buf), func(res ioop.ReceiveFromResult) sender.Sender[ReceiveFromResult] {
		ep, err := sockaddrToEndpoint(res.From)
		if err != nil {
			return sender.JustError[ReceiveFromResult](err)
		}
		return sender.Just(ReceiveFromResult{N: res.N, From: ep})
	})
}

// ReceiveFromResult is DatagramSocket.ReceiveFrom's outcome.
type ReceiveFromResult struct {
	N    int
	From Endpoint
}
