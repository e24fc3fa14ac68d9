package harness

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/storekit/internal/store"
)

// UnfulfilledError is returned by Fulfillment when it stops waiting before
// every expected action was observed.
type UnfulfilledError[A any] struct {
	Pending []A           // Expected actions never observed
	Timeout time.Duration // Set when the fulfillment timeout expired
	Err     error         // Set when the context ended first
}

// Error implements the error interface.
func (e *UnfulfilledError[A]) Error() string {
	names := make([]string, len(e.Pending))
	for i, a := range e.Pending {
		names[i] = store.ActionName(a)
	}
	pending := "[" + strings.Join(names, ", ") + "]"

	if e.Err != nil {
		return fmt.Sprintf("unfulfilled actions %s: %v", pending, e.Err)
	}
	return fmt.Sprintf("unfulfilled actions %s after %s", pending, e.Timeout)
}

// Unwrap returns the context error, if any.
func (e *UnfulfilledError[A]) Unwrap() error {
	return e.Err
}

// AsUnfulfilled extracts an *UnfulfilledError[A] from err's chain.
func AsUnfulfilled[A any](err error) (*UnfulfilledError[A], bool) {
	var ue *UnfulfilledError[A]
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
