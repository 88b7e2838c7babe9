package netio

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/coio-go/coio/ioop"
	"github.com/coio-go/coio/sender"
)

// StreamFile is asio's stream_file<IoScheduler>: sequential, non-seekable
// (from the caller's perspective) byte-stream access to a regular file,
// using the shared kernel file offset.
type StreamFile[R IoEnv] struct {
	r  R
	fd int
}

// OpenStreamFile opens path with flags (os.O_RDONLY etc., ORed with
// O_NONBLOCK internally) and perm, adopting the resulting fd with r.
func OpenStreamFile[R IoEnv](r R, path string, flags int, perm uint32) (*StreamFile[R], error) {
	fd, err := unix.Open(path, flags|unix.O_NONBLOCK|unix.O_CLOEXEC, perm)
	if err != nil {
		return nil, fmt.Errorf("netio: open %s: %w", path, err)
	}
	r.MakeIoObject(fd)
	return &StreamFile[R]{r: r, fd: fd}, nil
}

func (f *StreamFile[R]) NativeHandle() int { return f.fd }

func (f *StreamFile[R]) Close() error {
	if f.fd < 0 {
		return nil
	}
	fd := f.fd
	f.fd = -1
	return unix.Close(fd)
}

func (f *StreamFile[R]) ReadSome(buf []byte) sender.Sender[int]  { return ioop.ReadSome(f.r, f.fd, buf) }
func (f *StreamFile[R]) WriteSome(buf []byte) sender.Sender[int] { return ioop.WriteSome(f.r, f.fd, buf) }
func (f *StreamFile[R]) AsyncRead(buf []byte) sender.Sender[int] { return ioop.AsyncRead(f.r, f.fd, buf) }
func (f *StreamFile[R]) AsyncWrite(buf []byte) sender.Sender[int] {
	return ioop.AsyncWrite(f.r, f.fd, buf)
}

// RandomAccessFile is asio's random_access_file<IoScheduler>: positional
// (pread/pwrite-based) access that never disturbs a shared cursor, so
// concurrent reads/writes at different offsets do not race with each
// other's position.
type RandomAccessFile[R IoEnv] struct {
	r  R
	fd int
}

func OpenRandomAccessFile[R IoEnv](r R, path string, flags int, perm uint32) (*RandomAccessFile[R], error) {
	fd, err := unix.Open(path, flags|unix.O_NONBLOCK|unix.O_CLOEXEC, perm)
	if err != nil {
		return nil, fmt.Errorf("netio: open %s: %w", path, err)
	}
	r.MakeIoObject(fd)
	return &RandomAccessFile[R]{r: r, fd: fd}, nil
}

func (f *RandomAccessFile[R]) NativeHandle() int { return f.fd }

func (f *RandomAccessFile[R]) Close() error {
	if f.fd < 0 {
		return nil
	}
	fd := f.fd
	f.fd = -1
	return unix.Close(fd)
}

func (f *RandomAccessFile[R]) ReadSomeAt(offset int64, buf []byte) sender.Sender[int] {
	return ioop.ReadSomeAt(f.r, f.fd, offset, buf)
}

func (f *RandomAccessFile[R]) WriteSomeAt(offset int64, buf []byte) sender.Sender[int] {
	return ioop.WriteSomeAt(f.r, f.fd, offset, buf)
}

func (f *RandomAccessFile[R]) Size() (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(f.fd, &st); err != nil {
		return 0, fmt.Errorf("netio: fstat: %w", err)
	}
	return st.Size, nil
}
