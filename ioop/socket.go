package ioop

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/coio-go/coio/sender"
)

// AcceptResult is accept(2)'s outcome: the new connection's fd plus its
// peer address.
type AcceptResult struct {
	FD   int
	Addr unix.Sockaddr
}

// Accept performs a single non-blocking accept4 on listenFD, retrying
// (by waiting for readability) whenever it would block. The returned fd
// is created with O_NONBLOCK and O_CLOEXEC already set, ready to be
// adopted via exec.IoScheduler.MakeIoObject.
func Accept[R Registrar](r R, listenFD int) sender.Sender[AcceptResult] {
	return acceptSender[R]{r: r, fd: listenFD}
}

type acceptSender[R Registrar] struct {
	r  R
	fd int
}

func (s acceptSender[R]) Connect(recv sender.Receiver[AcceptResult]) sender.OperationState {
	return &acceptOpState[R]{r: s.r, fd: s.fd, recv: recv}
}

type acceptOpState[R Registrar] struct {
	r    R
	fd   int
	recv sender.Receiver[AcceptResult]
}

func (o *acceptOpState[R]) Start() { o.attempt() }

func (o *acceptOpState[R]) attempt() {
	nfd, sa, err := unix.Accept4(o.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	switch {
	case err == nil:
		o.recv.SetValue(AcceptResult{FD: nfd, Addr: sa})
	case errors.Is(err, unix.EAGAIN):
		wr := sender.NewReceiver[struct{}](o.recv.Env(),
			func(struct{}) { o.attempt() },
			func(e error) { o.recv.SetError(e) },
			func() { o.recv.SetStopped() },
		)
		o.r.WaitReadable(o.fd).Connect(wr).Start()
	case errors.Is(err, unix.EINTR):
		o.attempt()
	default:
		o.recv.SetError(fmt.Errorf("ioop: accept: %w", err))
	}
}

// Connect performs a non-blocking connect(2) on fd towards addr, waiting
// for writability and checking SO_ERROR to distinguish success from a
// deferred connection failure (§4.5.1).
func Connect[R Registrar](r R, fd int, addr unix.Sockaddr) sender.Sender[struct{}] {
	return connectSender[R]{r: r, fd: fd, addr: addr}
}

type connectSender[R Registrar] struct {
	r    R
	fd   int
	addr unix.Sockaddr
}

func (s connectSender[R]) Connect(recv sender.Receiver[struct{}]) sender.OperationState {
	return &connectOpState[R]{r: s.r, fd: s.fd, addr: s.addr, recv: recv}
}

type connectOpState[R Registrar] struct {
	r    R
	fd   int
	addr unix.Sockaddr
	recv sender.Receiver[struct{}]
}

func (o *connectOpState[R]) Start() {
	err := unix.Connect(o.fd, o.addr)
	switch {
	case err == nil:
		o.recv.SetValue(struct{}{})
	case errors.Is(err, unix.EINPROGRESS):
		wr := sender.NewReceiver[struct{}](o.recv.Env(),
			func(struct{}) { o.checkResult() },
			func(e error) { o.recv.SetError(e) },
			func() { o.recv.SetStopped() },
		)
		o.r.WaitWritable(o.fd).Connect(wr).Start()
	default:
		o.recv.SetError(fmt.Errorf("ioop: connect: %w", err))
	}
}

func (o *connectOpState[R]) checkResult() {
	errno, err := unix.GetsockoptInt(o.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		o.recv.SetError(fmt.Errorf("ioop: connect: getsockopt SO_ERROR: %w", err))
		return
	}
	if errno != 0 {
		o.recv.SetError(fmt.Errorf("ioop: connect: %w", unix.Errno(errno)))
		return
	}
	o.recv.SetValue(struct{}{})
}

// SendTo performs a single non-blocking sendto on a datagram socket.
func SendTo[R Registrar](r R, fd int, buf []byte, addr unix.Sockaddr) sender.Sender[int] {
	return sendToSender[R]{r: r, fd: fd, buf: buf, addr: addr}
}

type sendToSender[R Registrar] struct {
	r    R
	fd   int
	buf  []byte
	addr unix.Sockaddr
}

func (s sendToSender[R]) Connect(recv sender.Receiver[int]) sender.OperationState {
	return &sendToOpState[R]{r: s.r, fd: s.fd, buf: s.buf, addr: s.addr, recv: recv}
}

type sendToOpState[R Registrar] struct {
	r    R
	fd   int
	buf  []byte
	addr unix.Sockaddr
	recv sender.Receiver[int]
}

func (o *sendToOpState[R]) Start() { o.attempt() }

func (o *sendToOpState[R]) attempt() {
	err := unix.Sendto(o.fd, o.buf, 0, o.addr)
	switch {
	case err == nil:
		o.recv.SetValue(len(o.buf))
	case errors.Is(err, unix.EAGAIN):
		wr := sender.NewReceiver[struct{}](o.recv.Env(),
			func(struct{}) { o.attempt() },
			func(e error) { o.recv.SetError(e) },
			func() { o.recv.SetStopped() },
		)
		o.r.WaitWritable(o.fd).Connect(wr).Start()
	case errors.Is(err, unix.EINTR):
		o.attempt()
	default:
		o.recv.SetError(fmt.Errorf("ioop: sendto: %w", err))
	}
}

// ReceiveFromResult is recvfrom(2)'s outcome: the number of bytes read
// plus the sender's address.
type ReceiveFromResult struct {
	N    int
	From unix.Sockaddr
}

// ReceiveFrom performs a single non-blocking recvfrom on a datagram
// socket.
func ReceiveFrom[R Registrar](r R, fd int, buf []byte) sender.Sender[ReceiveFromResult] {
	return receiveFromSender[R]{r: r, fd: fd, buf: buf}
}

type receiveFromSender[R Registrar] struct {
	r   R
	fd  int
	buf []byte
}

func (s receiveFromSender[R]) Connect(recv sender.Receiver[ReceiveFromResult]) sender.OperationState {
	return &receiveFromOpState[R]{r: s.r, fd: s.fd, buf: s.buf, recv: recv}
}

type receiveFromOpState[R Registrar] struct {
	r    R
	fd   int
	buf  []byte
	recv sender.Receiver[ReceiveFromResult]
}

func (o *receiveFromOpState[R]) Start() { o.attempt() }

func (o *receiveFromOpState[R]) attempt() {
	n, from, err := unix.Recvfrom(o.fd, o.buf, 0)
	switch {
	case err == nil:
		o.recv.SetValue(ReceiveFromResult{N: n, From: from})
	case errors.Is(err, unix.EAGAIN):
		wr := sender.NewReceiver[struct{}](o.recv.Env(),
			func(struct{}) { o.attempt() },
			func(e error) { o.recv.SetError(e) },
			func() { o.recv.SetStopped() },
		)
		o.r.WaitReadable(o.fd).Connect(wr).Start()
	case errors.Is(err, unix.EINTR):
		o.attempt()
	default:
		o.recv.SetError(fmt.Errorf("ioop: recvfrom: %w", err))
	}
}
