//go:build linux

package netio

import (
	"net/netip"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/reactor"
	"github.com/coio-go/coio/sender"
	"github.com/coio-go/coio/stoptoken"
)

func newReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func loopback() netip.Addr { return netip.MustParseAddr("127.0.0.1") }

func TestEndpointSockaddrRoundTrip(t *testing.T) {
	ep := NewEndpoint(loopback(), 9000)
	sa, err := endpointToSockaddr(ep)
	require.NoError(t, err)
	back, err := sockaddrToEndpoint(sa)
	require.NoError(t, err)
	assert.Equal(t, ep, back)
}

func TestStreamSocketAcceptAndEcho(t *testing.T) {
	r := newReactor(t)
	env := exec.Env{Scheduler: r}

	acc, err := NewSocketAcceptor(r, NewEndpoint(loopback(), 0), 1)
	require.NoError(t, err)
	defer acc.Close()

	bound, err := acc.LocalEndpoint()
	require.NoError(t, err)

	var serverConn *StreamSocket[*reactor.Reactor]
	acc.Accept().Connect(sender.NewReceiver[*StreamSocket[*reactor.Reactor]](env,
		func(s *StreamSocket[*reactor.Reactor]) { serverConn = s },
		func(e error) { t.Fatalf("accept: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()

	var clientConn *StreamSocket[*reactor.Reactor]
	DialStream(r, bound).Connect(sender.NewReceiver[*StreamSocket[*reactor.Reactor]](env,
		func(s *StreamSocket[*reactor.Reactor]) { clientConn = s },
		func(e error) { t.Fatalf("dial: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()

	require.NoError(t, r.Run())
	require.NotNil(t, serverConn)
	require.NotNil(t, clientConn)
	defer serverConn.Close()
	defer clientConn.Close()

	var n int
	clientConn.WriteSome([]byte("ping")).Connect(sender.NewReceiver[int](env,
		func(v int) { n = v },
		func(e error) { t.Fatalf("write: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()
	require.NoError(t, r.Run())
	assert.Equal(t, 4, n)

	buf := make([]byte, 16)
	var rn int
	serverConn.ReadSome(buf).Connect(sender.NewReceiver[int](env,
		func(v int) { rn = v },
		func(e error) { t.Fatalf("read: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()
	require.NoError(t, r.Run())
	assert.Equal(t, "ping", string(buf[:rn]))
}

func TestDatagramSocketSendReceive(t *testing.T) {
	r := newReactor(t)
	env := exec.Env{Scheduler: r}

	server, err := NewDatagramSocket(r, unix.AF_INET, NewEndpoint(loopback(), 0))
	require.NoError(t, err)
	defer server.Close()

	sa, err := unix.Getsockname(server.fd)
	require.NoError(t, err)
	serverAddr, err := sockaddrToEndpoint(sa)
	require.NoError(t, err)

	client, err := NewDatagramSocket(r, unix.AF_INET, Endpoint{})
	require.NoError(t, err)
	defer client.Close()

	var sent int
	client.SendTo([]byte("hi"), serverAddr).Connect(sender.NewReceiver[int](env,
		func(v int) { sent = v },
		func(e error) { t.Fatalf("sendto: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()
	require.NoError(t, r.Run())
	assert.Equal(t, 2, sent)

	buf := make([]byte, 16)
	var recvResult ReceiveFromResult
	server.ReceiveFrom(buf).Connect(sender.NewReceiver[ReceiveFromResult](env,
		func(v ReceiveFromResult) { recvResult = v },
		func(e error) { t.Fatalf("recvfrom: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()
	require.NoError(t, r.Run())
	assert.Equal(t, 2, recvResult.N)
	assert.Equal(t, "hi", string(buf[:recvResult.N]))
}

func TestPipeRoundTrip(t *testing.T) {
	r := newReactor(t)
	env := exec.Env{Scheduler: r}

	pr, pw, err := NewPipe(r)
	require.NoError(t, err)
	defer pr.Close()
	defer pw.Close()

	var wn int
	pw.WriteSome([]byte("data")).Connect(sender.NewReceiver[int](env,
		func(v int) { wn = v },
		func(e error) { t.Fatalf("write: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()
	require.NoError(t, r.Run())
	assert.Equal(t, 4, wn)

	buf := make([]byte, 16)
	var rn int
	pr.ReadSome(buf).Connect(sender.NewReceiver[int](env,
		func(v int) { rn = v },
		func(e error) { t.Fatalf("read: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()
	require.NoError(t, r.Run())
	assert.Equal(t, "data", string(buf[:rn]))
}

func TestSignalSetDeliversCaughtSignal(t *testing.T) {
	r := newReactor(t)
	env := exec.Env{Scheduler: r}

	set := NewSignalSet(r, syscall.SIGUSR1)
	defer set.Close()

	var got os.Signal
	set.AsyncWait().Connect(sender.NewReceiver[os.Signal](env,
		func(s os.Signal) { got = s },
		func(e error) { t.Fatalf("signal wait: %v", e) },
		func() { t.Fatal("unexpected stop") },
	)).Start()

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = syscall.Kill(os.Getpid(), syscall.SIGUSR1)
	}()

	require.NoError(t, r.Run())
	assert.Equal(t, syscall.SIGUSR1, got)
}

func TestSignalSetWaitCancelledByStopToken(t *testing.T) {
	r := newReactor(t)
	src := stoptoken.NewSource()
	env := exec.Env{Scheduler: r, StopToken: src.Token()}

	set := NewSignalSet(r, syscall.SIGUSR2)
	defer set.Close()

	stopped := false
	set.AsyncWait().Connect(sender.NewReceiver[os.Signal](env,
		func(os.Signal) { t.Fatal("unexpected value") },
		func(e error) { t.Fatalf("signal wait: %v", e) },
		func() { stopped = true },
	)).Start()

	src.RequestStop()
	require.NoError(t, r.Run())
	assert.True(t, stopped)
}

func TestResolverLookupCancelledByStopToken(t *testing.T) {
	r := newReactor(t)
	src := stoptoken.NewSource()
	src.RequestStop()
	env := exec.Env{Scheduler: r, StopToken: src.Token()}

	resolver := NewResolver(r)
	stopped := false
	resolver.Lookup("example.com", 80).Connect(sender.NewReceiver[[]Endpoint](env,
		func([]Endpoint) { t.Fatal("unexpected value") },
		func(error) { t.Fatal("unexpected error") },
		func() { stopped = true },
	)).Start()

	require.NoError(t, r.Run())
	assert.True(t, stopped)
}
