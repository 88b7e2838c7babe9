package ioop

import "github.com/coio-go/coio/sender"

// AsyncRead repeatedly calls ReadSome until buf is completely filled or a
// read returns 0 (EOF) or an error, completing with the total number of
// bytes read. A short read (n < len(remaining)) is not itself an error —
// it simply continues reading into the rest of buf — matching asio's
// async_read composite operation (§4.5.2).
func AsyncRead[R Registrar](r R, fd int, buf []byte) sender.Sender[int] {
	return asyncRWSender[R]{r: r, fd: fd, buf: buf, op: opRead}
}

// AsyncWrite repeatedly calls WriteSome until all of buf has been written
// or an error occurs, completing with the total number of bytes written
// (len(buf), unless a write returns 0, which stops it short).
func AsyncWrite[R Registrar](r R, fd int, buf []byte) sender.Sender[int] {
	return asyncRWSender[R]{r: r, fd: fd, buf: buf, op: opWrite}
}

type asyncRWSender[R Registrar] struct {
	r   R
	fd  int
	buf []byte
	op  rwOpKind
}

func (s asyncRWSender[R]) Connect(recv sender.Receiver[int]) sender.OperationState {
	return &asyncRWOpState[R]{r: s.r, fd: s.fd, buf: s.buf, op: s.op, recv: recv}
}

type asyncRWOpState[R Registrar] struct {
	r     R
	fd    int
	buf   []byte
	op    rwOpKind
	recv  sender.Receiver[int]
	total int
}

func (o *asyncRWOpState[R]) Start() { o.step() }

func (o *asyncRWOpState[R]) step() {
	if o.total == len(o.buf) {
		o.recv.SetValue(o.total)
		return
	}

	remaining := o.buf[o.total:]
	var s sender.Sender[int]
	if o.op == opRead {
		s = ReadSome(o.r, o.fd, remaining)
	} else {
		s = WriteSome(o.r, o.fd, remaining)
	}

	inner := sender.NewReceiver[int](o.recv.Env(),
		func(n int) {
			if n == 0 {
				// EOF (read) or a zero-length write: stop short, report
				// what was transferred so far rather than spinning.
				o.recv.SetValue(o.total)
				return
			}
			o.total += n
			o.step()
		},
		func(err error) { o.recv.SetError(err) },
		func() { o.recv.SetStopped() },
	)
	s.Connect(inner).Start()
}
