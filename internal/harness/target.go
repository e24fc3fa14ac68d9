package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/storekit/internal/store"
)

// Target is a feature store driven by name, as scenarios see it.
type Target interface {
	// Step dispatches one scenario step and waits for its expectations.
	Step(ctx context.Context, step Step, timeout time.Duration) error

	// Settle waits until no middleware is in flight.
	Settle(ctx context.Context) error

	// Trace returns every reduction so far in commit order.
	Trace() ([]TraceEvent, error)

	// State returns the current state as JSON.
	State() (json.RawMessage, error)

	// Close releases the target's store.
	Close()
}

// TargetConfig carries what the runner controls when building a target.
type TargetConfig struct {
	Logger   *slog.Logger
	FlowGen  store.FlowTokenGenerator
	MaxSteps int

	// Grace is the delay before each step's dispatch. Zero keeps
	// DefaultGrace.
	Grace time.Duration

	// Options are appended to the store options, e.g. journal or metrics
	// observers.
	Options []store.Option
}

// StoreOptions converts the config into store options.
func (c TargetConfig) StoreOptions() []store.Option {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts := []store.Option{store.WithLogger(logger)}
	if c.FlowGen != nil {
		opts = append(opts, store.WithFlowGenerator(c.FlowGen))
	}
	if c.MaxSteps != 0 {
		opts = append(opts, store.WithMaxSteps(c.MaxSteps))
	}
	return append(opts, c.Options...)
}

// HarnessOptions converts the config into options for Wrap.
func (c TargetConfig) HarnessOptions() []Option {
	if c.Grace > 0 {
		return []Option{WithGrace(c.Grace)}
	}
	return nil
}

// Factory builds a fresh target. Each scenario run gets its own.
type Factory func(cfg TargetConfig) (Target, error)

// Registry maps target names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a name twice panics.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("harness: target %q registered twice", name))
	}
	r.factories[name] = f
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered target names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decoder builds an action from its scenario name and fields.
type Decoder[A any] func(name string, args map[string]any) (A, error)

// DecodeArgs converts scenario fields into T through its JSON form, so T's
// json tags name the fields.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var v T
	if len(args) == 0 {
		return v, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return v, fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode args into %T: %w", v, err)
	}
	return v, nil
}

// Bind adapts a harness to the Target interface.
func Bind[S, A, E any](h *Harness[S, A, E], decode Decoder[A]) Target {
	return &boundTarget[S, A, E]{h: h, decode: decode}
}

type boundTarget[S, A, E any] struct {
	h      *Harness[S, A, E]
	decode Decoder[A]
}

func (b *boundTarget[S, A, E]) Step(ctx context.Context, step Step, timeout time.Duration) error {
	action, err := b.decode(step.Dispatch, step.Args)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", step.Dispatch, err)
	}

	if len(step.Expect) == 0 {
		b.h.Dispatch(action)
		return nil
	}

	matchers := make([]func(A) bool, len(step.Expect))
	for i, spec := range step.Expect {
		want := normalizeArgs(spec.Args)
		name := spec.Action
		matchers[i] = func(got A) bool {
			if store.ActionName(got) != name {
				return false
			}
			return matchArgs(actionArgs(got), want)
		}
	}

	cfg := b.h.cfg.apply([]Option{WithTimeout(timeout)})
	remaining, err := b.h.await(ctx, matchers, func() { b.h.Dispatch(action) }, cfg)
	if remaining == nil {
		return nil
	}

	pending := make([]ActionSpec, len(remaining))
	for i, idx := range remaining {
		pending[i] = step.Expect[idx]
	}
	ue := &UnfulfilledError[ActionSpec]{Pending: pending, Err: err}
	if err == nil {
		ue.Timeout = timeout
	}
	return ue
}

func (b *boundTarget[S, A, E]) Settle(ctx context.Context) error {
	return b.h.Settle(ctx)
}

func (b *boundTarget[S, A, E]) Trace() ([]TraceEvent, error) {
	events := b.h.Events()
	trace := make([]TraceEvent, len(events))
	for i, e := range events {
		trace[i] = TraceEvent{
			Seq:     e.Seq,
			Flow:    e.Flow,
			Step:    e.Step,
			Action:  store.ActionName(e.Action),
			Args:    actionArgs(e.Action),
			Changed: e.Changed,
		}
	}
	return trace, nil
}

func (b *boundTarget[S, A, E]) State() (json.RawMessage, error) {
	data, err := json.Marshal(b.h.State())
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

func (b *boundTarget[S, A, E]) Close() {
	b.h.Close()
	b.h.Store().Close()
}

// actionArgs returns an action's fields in JSON form, or nil if it has none.
func actionArgs(action any) map[string]any {
	data, err := json.Marshal(action)
	if err != nil {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil || len(args) == 0 {
		return nil
	}
	return args
}

// normalizeArgs gives scenario values the same shapes JSON decoding
// produces (float64 numbers, map[string]any objects).
func normalizeArgs(args map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return args
	}
	return out
}
