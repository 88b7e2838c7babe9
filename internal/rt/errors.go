package rt

import "fmt"

// PanicError wraps a value recovered from a panic as an error completion,
// the Go restatement of "exceptions escape until the next await/return"
// (§7) — since Go has no stack unwinding across goroutine boundaries, a
// panicking Task's goroutine instead recovers and turns the panic into
// this error, ported from the teacher's panic-to-error conversion used by
// its promise executor (errors.go's PanicError).
type PanicError struct{ Value any }

func (e *PanicError) Error() string { return fmt.Sprintf("rt: panic: %v", e.Value) }

// Unwrap returns the underlying error if the panic value is itself an
// error, enabling errors.Is/errors.As to see through the recovery.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// WrapError wraps cause with a message, preserving it for errors.Is/
// errors.As via %w — the Go restatement of the teacher's WrapError, kept
// for cause-chain construction at sites that need a message attached to a
// propagated error (e.g. resolver/classification failures).
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
