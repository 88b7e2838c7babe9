package main

import (
	"bytes"
	"fmt"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/coio-go/coio/asyncsync"
	"github.com/coio-go/coio/exec"
	"github.com/coio-go/coio/internal/rt"
	"github.com/coio-go/coio/netio"
	"github.com/coio-go/coio/reactor"
	"github.com/coio-go/coio/task"
)

func floatSecondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func parseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(s) {
	case "disabled":
		return logiface.LevelDisabled, nil
	case "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "info", "informational":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	default:
		return 0, fmt.Errorf("echod: unknown log level %q", s)
	}
}

// runServer builds a reactor, an acceptor bound to addr, and an
// asyncsync.Scope supervising one task per connection plus a signal
// watchdog, mirroring original_source/examples/tcp_echo_server.cpp's
// start_server/signal_watchdog pair.
func runServer(addr string, level logiface.Level, metricsEnabled bool) error {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return fmt.Errorf("echod: parse addr: %w", err)
	}

	log := rt.NewLogger(level)
	r, err := reactor.New(reactor.WithLogger(log), reactor.WithMetrics(metricsEnabled))
	if err != nil {
		return fmt.Errorf("echod: new reactor: %w", err)
	}
	defer r.Close()

	acc, err := netio.NewSocketAcceptor(r, netio.NewEndpoint(ap.Addr(), ap.Port()), 128)
	if err != nil {
		return fmt.Errorf("echod: listen: %w", err)
	}
	defer acc.Close()

	bound, err := acc.LocalEndpoint()
	if err != nil {
		return fmt.Errorf("echod: local endpoint: %w", err)
	}
	log.Info().Str("addr", bound.String()).Log("echod: listening")

	scope := asyncsync.NewScope()
	env := exec.Env{StopToken: r.StopToken(), Scheduler: r}

	signals := netio.NewSignalSet(r, syscall.SIGINT, syscall.SIGTERM)
	defer signals.Close()

	asyncsync.Spawn(scope, task.New(func(c *task.Ctx) (struct{}, error) {
		sig, err := task.Await(c, signals.AsyncWait())
		if err != nil {
			return struct{}{}, nil
		}
		log.Info().Str("signal", sig.String()).Log("echod: stop signal received")
		r.Stop()
		return struct{}{}, nil
	}), env)

	asyncsync.Spawn(scope, task.New(func(c *task.Ctx) (struct{}, error) {
		acceptLoop(c, acc, scope, env, log)
		return struct{}{}, nil
	}), env)

	if err := r.Run(); err != nil {
		return fmt.Errorf("echod: run: %w", err)
	}

	if metricsEnabled {
		snap := r.Metrics()
		log.Info().
			Int("count", snap.Count).
			Dur("p50", floatSecondsToDuration(snap.P50Latency)).
			Dur("p99", floatSecondsToDuration(snap.P99Latency)).
			Int("max_queue_depth", snap.MaxQueueDepth).
			Log("echod: final metrics")
	}
	return nil
}

// acceptLoop accepts connections until the acceptor errors out (typically
// because Close was called as part of shutdown, or the reactor stopped),
// spawning one handleConnection task per accepted socket.
func acceptLoop(c *task.Ctx, acc *netio.SocketAcceptor[*reactor.Reactor], scope *asyncsync.Scope, env exec.Env, log *rt.Logger) {
	for {
		if c.StopToken().StopRequested() {
			return
		}
		conn, err := task.Await(c, acc.Accept())
		if err != nil {
			log.Debug().Str("reason", netio.Classify(err)).Log("echod: acceptor stopped")
			return
		}
		remote, _ := conn.RemoteEndpoint()
		log.Debug().Str("remote", remote.String()).Log("echod: connection accepted")
		asyncsync.Spawn(scope, task.New(func(c *task.Ctx) (struct{}, error) {
			handleConnection(c, conn, log)
			return struct{}{}, nil
		}), env)
	}
}

// handleConnection reads lines from conn, uppercases each one, and writes
// it back, until the client disconnects or an I/O error occurs — the
// uppercasing restatement of handle_connection's byte-for-byte echo loop.
func handleConnection(c *task.Ctx, conn *netio.StreamSocket[*reactor.Reactor], log *rt.Logger) {
	defer conn.Close()
	remote, _ := conn.RemoteEndpoint()

	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := task.Await(c, conn.ReadSome(buf))
		if err != nil || n == 0 {
			log.Debug().Str("remote", remote.String()).Log("echod: connection closed")
			return
		}
		pending = append(pending, buf[:n]...)

		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := append([]byte(nil), pending[:i+1]...)
			pending = pending[i+1:]
			if _, err := task.Await(c, conn.AsyncWrite(bytes.ToUpper(line))); err != nil {
				log.Debug().Str("remote", remote.String()).Log("echod: write failed")
				return
			}
		}
	}
}
