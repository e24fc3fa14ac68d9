package store

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default maximum number of reductions per flow.
// It stops a middleware that keeps answering with follow-ups (A → B → A ...)
// from spinning forever.
const DefaultMaxSteps = 1000

// StepsExceededError is reported when a flow exceeds the max steps quota.
// The offending follow-up is dropped and the flow ends.
type StepsExceededError struct {
	FlowToken string // The flow that exceeded the quota
	Steps     int    // Step the dropped action would have been
	Limit     int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("flow %s exceeded max steps quota: %d steps > %d limit",
		e.FlowToken, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

// checkSteps validates a flow step against the limit.
// A limit of zero or less disables the quota.
func checkSteps(flowToken string, step, limit int) error {
	if limit <= 0 || step <= limit {
		return nil
	}
	return &StepsExceededError{
		FlowToken: flowToken,
		Steps:     step,
		Limit:     limit,
	}
}
