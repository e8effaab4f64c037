package fault

import (
	"errors"
	"fmt"
)

// Failure kinds shared by every component. Callers branch on them with errors.Is.
var (
	// ErrCancelled is returned as soon as the user requested an abort. Never retried.
	ErrCancelled = errors.New("cancelled")
	// ErrUnavailable means a window, process or OS call could not serve a single step.
	// It is skipped at member granularity and never aborts the surrounding operation.
	ErrUnavailable = errors.New("unavailable")
	// ErrAssembly means fewer than 4 valid, locatable accounts exist.
	ErrAssembly = errors.New("not enough locatable accounts to assemble lobbies")
	// ErrRecoveryExhausted is the terminal failure after every recovery cycle ran out.
	ErrRecoveryExhausted = errors.New("match was not found after all recovery cycles")
)

// OpError is a failed OS-level call downgraded onto one of the failure kinds.
type OpError struct {
	Op     string
	Handle uintptr
	Kind   error
	Err    error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (hwnd 0x%X): %v", e.Op, e.Handle, e.Kind)
	}
	return fmt.Sprintf("%s (hwnd 0x%X): %v: %v", e.Op, e.Handle, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Unavailable wraps err as an ErrUnavailable failure of op on the window handle.
func Unavailable(op string, handle uintptr, err error) error {
	return &OpError{Op: op, Handle: handle, Kind: ErrUnavailable, Err: err}
}

// IsCancelled reports whether err carries ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// FromContext maps a context error onto ErrCancelled, keeping the cause.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrCancelled, err)
}
