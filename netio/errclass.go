package netio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Classify maps a syscall-originated error into the spec's misc-error
// taxonomy (§7): "eof", "already_open", "not_found", or "" when err does
// not fall into one of those buckets (in which case the caller should
// fall back to err's own message). Grounded on the pack's
// bassosimone-nop/errclass pattern of mapping platform errno values to
// short classification strings.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, unix.EEXIST):
		return "already_open"
	case errors.Is(err, unix.ENOENT):
		return "not_found"
	case errors.Is(err, unix.ENOTCONN), errors.Is(err, unix.EPIPE):
		return "eof"
	default:
		return ""
	}
}
