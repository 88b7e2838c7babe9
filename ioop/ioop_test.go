//go:build linux

package ioop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/reactor"
	"github.com/coio-go/coio/sender"
)

func socketPair(t *testing.T) (a, b int, r *reactor.Reactor) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})

	rr, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { rr.Close() })
	rr.MakeIoObject(fds[0])
	rr.MakeIoObject(fds[1])

	return fds[0], fds[1], rr
}

func TestReadSomeBlocksThenDelivers(t *testing.T) {
	a, b, r := socketPair(t)
	env := exec.Env{Scheduler: r}

	buf := make([]byte, 16)
	var n int
	s := ReadSome(r, a, buf)
	op := s.Connect(sender.NewReceiver[int](env,
		func(v int) { n = v },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	))
	op.Start()

	_, err := unix.Write(b, []byte("hello"))
	require.NoError(t, err)

	require.NoError(t, r.Run())
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestWriteSomeDeliversImmediatelyWhenNotFull(t *testing.T) {
	a, _, r := socketPair(t)
	env := exec.Env{Scheduler: r}

	var n int
	s := WriteSome(r, a, []byte("ping"))
	op := s.Connect(sender.NewReceiver[int](env,
		func(v int) { n = v },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	))
	op.Start()
	require.NoError(t, r.Run())
	assert.Equal(t, 4, n)
}

func TestAsyncReadFillsWholeBuffer(t *testing.T) {
	a, b, r := socketPair(t)
	env := exec.Env{Scheduler: r}

	payload := []byte("the quick brown fox")
	buf := make([]byte, len(payload))
	var n int
	s := AsyncRead(r, a, buf)
	op := s.Connect(sender.NewReceiver[int](env,
		func(v int) { n = v },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	))
	op.Start()

	// Dribble the payload in over two writes to exercise the
	// retry-on-short-read path.
	go func() {
		_, _ = unix.Write(b, payload[:7])
		time.Sleep(5 * time.Millisecond)
		_, _ = unix.Write(b, payload[7:])
	}()

	require.NoError(t, r.Run())
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func TestAsyncWriteSendsEverything(t *testing.T) {
	a, b, r := socketPair(t)
	env := exec.Env{Scheduler: r}

	payload := make([]byte, 1<<16) // large enough to exceed one socket buffer write
	for i := range payload {
		payload[i] = byte(i)
	}

	var n int
	s := AsyncWrite(r, a, payload)
	op := s.Connect(sender.NewReceiver[int](env,
		func(v int) { n = v },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	))
	op.Start()

	received := make([]byte, 0, len(payload))
	go func() {
		buf := make([]byte, 4096)
		for len(received) < len(payload) {
			m, err := unix.Read(b, buf)
			if err != nil {
				if err == unix.EAGAIN {
					time.Sleep(time.Millisecond)
					continue
				}
				return
			}
			received = append(received, buf[:m]...)
		}
	}()

	require.NoError(t, r.Run())
	assert.Equal(t, len(payload), n)
}

func TestAcceptDeliversNewConnection(t *testing.T) {
	listenFD, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(listenFD)

	sockPath := t.TempDir() + "/ioop-test.sock"
	require.NoError(t, unix.Bind(listenFD, &unix.SockaddrUnix{Name: sockPath}))
	require.NoError(t, unix.Listen(listenFD, 1))

	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()
	r.MakeIoObject(listenFD)

	env := exec.Env{Scheduler: r}
	var accepted AcceptResult
	s := Accept(r, listenFD)
	op := s.Connect(sender.NewReceiver[AcceptResult](env,
		func(v AcceptResult) { accepted = v },
		func(error) { t.Fatal("unexpected error") },
		func() { t.Fatal("unexpected stop") },
	))
	op.Start()

	go func() {
		time.Sleep(5 * time.Millisecond)
		clientFD, derr := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		if derr != nil {
			return
		}
		defer unix.Close(clientFD)
		_ = unix.Connect(clientFD, &unix.SockaddrUnix{Name: sockPath})
	}()

	require.NoError(t, r.Run())
	require.Greater(t, accepted.FD, 0)
	_ = unix.Close(accepted.FD)
}
