package store

import (
	"context"
	"fmt"
	"strings"
)

// Reducer computes the next state from the current state and an action.
//
// A Reducer must be pure and total: identical (state, action) pairs always
// yield equal results, it performs no I/O, and it never fails. Actions it does
// not handle return state unchanged. Anything that can fail belongs in
// Middleware and comes back as its own action.
type Reducer[S, A any] func(state S, action A) S

// Middleware performs the side effects of an action and optionally answers
// with a follow-up action, which the store dispatches in the same flow.
//
// Middleware may block on I/O. It receives the state committed by the
// action's own reduction, and it must never write state directly. Failures
// are its own business: catch them and return a "failed" action. Returning
// ok == false ends the causal chain.
//
// ctx is cancelled when the store is closed.
type Middleware[S, A, E any] func(ctx context.Context, state S, action A, env E) (next A, ok bool)

// Subscriber wires external event sources into the store. It runs exactly
// once, inside New, before New returns.
type Subscriber[S, A, E any] func(s *Store[S, A, E], env E)

// NoMiddleware is a Middleware that never produces a follow-up.
func NoMiddleware[S, A, E any](context.Context, S, A, E) (A, bool) {
	var zero A
	return zero, false
}

// Named is implemented by actions that want to control how they appear in
// logs, traces and metrics.
type Named interface {
	ActionName() string
}

// ActionName returns a short, stable name for an action value.
//
// Actions implementing Named use their own name; everything else is named
// after its Go type without the package qualifier ("counter.Increment"
// becomes "Increment").
func ActionName(action any) string {
	if n, ok := action.(Named); ok {
		return n.ActionName()
	}
	if action == nil {
		return "<nil>"
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", action), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
