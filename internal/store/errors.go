package store

import (
	"errors"
	"fmt"
)

// ErrClosed is reported through OnDrop when an action is dispatched to a
// store that has been closed.
var ErrClosed = errors.New("store closed")

// PanicError wraps a value recovered from a panicking middleware or
// subscription handler. The container survives; the causal chain ends.
type PanicError struct {
	Action string // Name of the action being handled
	Value  any    // Recovered panic value
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while handling %s: %v", e.Action, e.Value)
}

// IsPanicError returns true if the error is a PanicError.
func IsPanicError(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
