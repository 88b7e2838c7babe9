package netio

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/coio-go/coio/ioop"
	"github.com/coio-go/coio/sender"
)

// PipeReader and PipeWriter are asio's pipe_reader/writer<IoScheduler>: the
// two ends of an anonymous pipe, each adopted independently so either end
// may be handed to a different task.
type PipeReader[R IoEnv] struct {
	r  R
	fd int
}

type PipeWriter[R IoEnv] struct {
	r  R
	fd int
}

// NewPipe creates an anonymous pipe and adopts both ends with r.
func NewPipe[R IoEnv](r R) (*PipeReader[R], *PipeWriter[R], error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, nil, fmt.Errorf("netio: pipe2: %w", err)
	}
	r.MakeIoObject(fds[0])
	r.MakeIoObject(fds[1])
	return &PipeReader[R]{r: r, fd: fds[0]}, &PipeWriter[R]{r: r, fd: fds[1]}, nil
}

func (p *PipeReader[R]) NativeHandle() int { return p.fd }

func (p *PipeReader[R]) Close() error {
	if p.fd < 0 {
		return nil
	}
	fd := p.fd
	p.fd = -1
	return unix.Close(fd)
}

func (p *PipeReader[R]) ReadSome(buf []byte) sender.Sender[int]  { return ioop.ReadSome(p.r, p.fd, buf) }
func (p *PipeReader[R]) AsyncRead(buf []byte) sender.Sender[int] { return ioop.AsyncRead(p.r, p.fd, buf) }

func (p *PipeWriter[R]) NativeHandle() int { return p.fd }

func (p *PipeWriter[R]) Close() error {
	if p.fd < 0 {
		return nil
	}
	fd := p.fd
	p.fd = -1
	return unix.Close(fd)
}

func (p *PipeWriter[R]) WriteSome(buf []byte) sender.Sender[int] { return ioop.WriteSome(p.r, p.fd, buf) }
func (p *PipeWriter[R]) AsyncWrite(buf []byte) sender.Sender[int] {
	return ioop.AsyncWrite(p.r, p.fd, buf)
}
