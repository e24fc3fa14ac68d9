// Package counter is a small feature store: a number that can be stepped
// and a value loaded asynchronously through a Fetcher.
package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/storekit/internal/harness"
	"github.com/roach88/storekit/internal/store"
)

// State is the counter's state. Values are immutable; the reducer returns a
// modified copy.
type State struct {
	Count    int    `json:"count"`
	Data     string `json:"data"`
	Loading  bool   `json:"loading"`
	Failures int    `json:"failures"`
}

// Action is any counter action.
type Action interface{ isCounterAction() }

type (
	Increment     struct{}
	Decrement     struct{}
	Reset         struct{}
	Load          struct{ Key string `json:"key"` }
	LoadSucceeded struct{ Data string `json:"data"` }
	LoadFailed    struct{ Reason string `json:"reason"` }
)

func (Increment) isCounterAction()     {}
func (Decrement) isCounterAction()     {}
func (Reset) isCounterAction()         {}
func (Load) isCounterAction()          {}
func (LoadSucceeded) isCounterAction() {}
func (LoadFailed) isCounterAction()    {}

// Fetcher loads the value for a key.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key string) (string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, key string) (string, error) {
	return f(ctx, key)
}

// Environment carries the counter's dependencies.
type Environment struct {
	Fetcher Fetcher
}

// Store is a counter store.
type Store = store.Store[State, Action, Environment]

// Reduce is the counter reducer.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case Increment:
		state.Count++
	case Decrement:
		state.Count--
	case Reset:
		state = State{}
	case Load:
		state.Loading = true
	case LoadSucceeded:
		state.Loading = false
		state.Data = a.Data
	case LoadFailed:
		state.Loading = false
		state.Failures++
	}
	return state
}

// Middleware resolves Load through the environment's Fetcher.
func Middleware(ctx context.Context, _ State, action Action, env Environment) (Action, bool) {
	load, ok := action.(Load)
	if !ok {
		return nil, false
	}
	if env.Fetcher == nil {
		return LoadFailed{Reason: "no fetcher"}, true
	}
	data, err := env.Fetcher.Fetch(ctx, load.Key)
	if err != nil {
		return LoadFailed{Reason: err.Error()}, true
	}
	return LoadSucceeded{Data: data}, true
}

// New creates a counter store.
func New(env Environment, opts ...store.Option) *Store {
	return store.New(State{}, Reduce, env, Middleware, opts...)
}

// DecodeAction builds a counter action from its name and fields.
func DecodeAction(name string, args map[string]any) (Action, error) {
	switch name {
	case "Increment":
		return Increment{}, nil
	case "Decrement":
		return Decrement{}, nil
	case "Reset":
		return Reset{}, nil
	case "Load":
		return harness.DecodeArgs[Load](args)
	case "LoadSucceeded":
		return harness.DecodeArgs[LoadSucceeded](args)
	case "LoadFailed":
		return harness.DecodeArgs[LoadFailed](args)
	}
	return nil, fmt.Errorf("unknown counter action %q", name)
}

// SimulatedLatency is how long the scenario fetcher takes per key.
const SimulatedLatency = 20 * time.Millisecond

// ScenarioFetcher answers "data:<key>" after SimulatedLatency. The key
// "fail" returns an error.
var ScenarioFetcher = FetcherFunc(func(ctx context.Context, key string) (string, error) {
	select {
	case <-time.After(SimulatedLatency):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if key == "fail" {
		return "", fmt.Errorf("fetch %q: unavailable", key)
	}
	return "data:" + key, nil
})

// NewTarget is the harness factory for scenarios targeting "counter".
func NewTarget(cfg harness.TargetConfig) (harness.Target, error) {
	s := New(Environment{Fetcher: ScenarioFetcher}, cfg.StoreOptions()...)
	return harness.Bind(harness.Wrap(s, cfg.HarnessOptions()...), harness.Decoder[Action](DecodeAction)), nil
}
