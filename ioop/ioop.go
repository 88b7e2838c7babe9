// Package ioop provides the I/O operation descriptions an execution
// context's adopted raw handles are scheduled against (§4.5): read_some,
// write_some, read_some_at, write_some_at, send, receive, send_to,
// receive_from, accept, connect, plus the async_read/async_write
// composites that retry a partial operation until a buffer is exhausted.
//
// Every operation is a free generic function parameterized over a
// Registrar rather than a method on exec.IoScheduler, because Go methods
// cannot introduce their own type parameters (see exec.IoScheduler's
// doc comment) — each function below would otherwise need its own
// interface method, one per completion type T.
package ioop

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/coio-go/coio/sender"
)

// Registrar is the capability every I/O operation needs from its
// execution context: waiting for a previously-EAGAIN'd fd to become ready
// in one direction. Implemented by *reactor.Reactor.
type Registrar interface {
	WaitReadable(fd int) sender.Sender[struct{}]
	WaitWritable(fd int) sender.Sender[struct{}]
}

// ReadSome performs a single non-blocking read into buf, retrying (by
// waiting for readability through r) whenever the read would block, and
// completing with the number of bytes read on success, 0 at EOF (§4.5.1).
func ReadSome[R Registrar](r R, fd int, buf []byte) sender.Sender[int] {
	return rwSender[R]{r: r, fd: fd, buf: buf, op: opRead}
}

// WriteSome performs a single non-blocking write from buf, retrying
// whenever the write would block, completing with the number of bytes
// written.
func WriteSome[R Registrar](r R, fd int, buf []byte) sender.Sender[int] {
	return rwSender[R]{r: r, fd: fd, buf: buf, op: opWrite}
}

// Send is WriteSome's socket-flavoured name, for symmetry with Receive;
// on Linux, write(2) and send(2) with flags=0 on a connected socket are
// equivalent, so this simply delegates.
func Send[R Registrar](r R, fd int, buf []byte) sender.Sender[int] {
	return WriteSome(r, fd, buf)
}

// Receive is ReadSome's socket-flavoured name.
func Receive[R Registrar](r R, fd int, buf []byte) sender.Sender[int] {
	return ReadSome(r, fd, buf)
}

type rwOpKind int

const (
	opRead rwOpKind = iota
	opWrite
)

type rwSender[R Registrar] struct {
	r   R
	fd  int
	buf []byte
	op  rwOpKind
}

func (s rwSender[R]) Connect(recv sender.Receiver[int]) sender.OperationState {
	return &rwOpState[R]{r: s.r, fd: s.fd, buf: s.buf, op: s.op, recv: recv}
}

type rwOpState[R Registrar] struct {
	r    R
	fd   int
	buf  []byte
	op   rwOpKind
	recv sender.Receiver[int]
}

func (o *rwOpState[R]) Start() { o.attempt() }

func (o *rwOpState[R]) attempt() {
	var n int
	var err error
	switch o.op {
	case opRead:
		n, err = unix.Read(o.fd, o.buf)
	case opWrite:
		n, err = unix.Write(o.fd, o.buf)
	}
	switch {
	case err == nil:
		o.recv.SetValue(n)
	case errors.Is(err, unix.EAGAIN):
		o.waitAndRetry()
	case errors.Is(err, unix.EINTR):
		o.attempt()
	default:
		o.recv.SetError(fmt.Errorf("ioop: %w", err))
	}
}

func (o *rwOpState[R]) waitAndRetry() {
	var w sender.Sender[struct{}]
	if o.op == opRead {
		w = o.r.WaitReadable(o.fd)
	} else {
		w = o.r.WaitWritable(o.fd)
	}
	wr := sender.NewReceiver[struct{}](o.recv.Env(),
		func(struct{}) { o.attempt() },
		func(e error) { o.recv.SetError(e) },
		func() { o.recv.SetStopped() },
	)
	w.Connect(wr).Start()
}

// ReadSomeAt performs a single non-blocking positional read (pread) into
// buf at offset, without disturbing the file's shared read/write cursor
// (§4.5.1's random_access_file operations).
func ReadSomeAt[R Registrar](r R, fd int, offset int64, buf []byte) sender.Sender[int] {
	return rwAtSender[R]{r: r, fd: fd, offset: offset, buf: buf, op: opRead}
}

// WriteSomeAt is ReadSomeAt's write counterpart (pwrite).
func WriteSomeAt[R Registrar](r R, fd int, offset int64, buf []byte) sender.Sender[int] {
	return rwAtSender[R]{r: r, fd: fd, offset: offset, buf: buf, op: opWrite}
}

type rwAtSender[R Registrar] struct {
	r      R
	fd     int
	offset int64
	buf    []byte
	op     rwOpKind
}

func (s rwAtSender[R]) Connect(recv sender.Receiver[int]) sender.OperationState {
	return &rwAtOpState[R]{r: s.r, fd: s.fd, offset: s.offset, buf: s.buf, op: s.op, recv: recv}
}

type rwAtOpState[R Registrar] struct {
	r      R
	fd     int
	offset int64
	buf    []byte
	op     rwOpKind
	recv   sender.Receiver[int]
}

func (o *rwAtOpState[R]) Start() { o.attempt() }

func (o *rwAtOpState[R]) attempt() {
	var n int
	var err error
	switch o.op {
	case opRead:
		n, err = unix.Pread(o.fd, o.buf, o.offset)
	case opWrite:
		n, err = unix.Pwrite(o.fd, o.buf, o.offset)
	}
	switch {
	case err == nil:
		o.recv.SetValue(n)
	case errors.Is(err, unix.EAGAIN):
		var w sender.Sender[struct{}]
		if o.op == opRead {
			w = o.r.WaitReadable(o.fd)
		} else {
			w = o.r.WaitWritable(o.fd)
		}
		wr := sender.NewReceiver[struct{}](o.recv.Env(),
			func(struct{}) { o.attempt() },
			func(e error) { o.recv.SetError(e) },
			func() { o.recv.SetStopped() },
		)
		w.Connect(wr).Start()
	case errors.Is(err, unix.EINTR):
		o.attempt()
	default:
		o.recv.SetError(fmt.Errorf("ioop: %w", err))
	}
}
