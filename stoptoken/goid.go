package stoptoken

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineMarker returns an identifier unique to the calling goroutine, for
// the sole purpose of distinguishing "the callback is deregistering itself"
// (same goroutine, reentrant Close from inside invoke) from "a different
// goroutine wants to deregister it concurrently" (must block on n.done).
//
// Go has no exported goroutine-id API; this parses it out of the runtime
// stack trace header, the same technique used by most goroutine-local-id
// shims in the ecosystem. It is deliberately not on any hot path — only
// Close() of an in-flight callback pays this cost.
func goroutineMarker() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	// "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	b, ok := bytes.CutPrefix(b, []byte(prefix))
	if !ok {
		return 0
	}
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
