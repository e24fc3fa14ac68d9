package store

import (
	"fmt"
	"log/slog"
	"reflect"
	"time"
)

// Option configures a Store.
//
// Options that carry typed values (WithEqual, WithHooks, WithSubscriber) are
// checked against the store's type parameters in New; a mismatch is a
// programming error and panics there.
type Option func(*settings)

type settings struct {
	logger     *slog.Logger
	scheduler  Scheduler
	flowGen    FlowTokenGenerator
	maxSteps   int
	equal      any   // func(a, b S) bool
	hooks      []any // Hooks[A]
	observers  []Hooks[any]
	subscriber any   // Subscriber[S, A, E]
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithScheduler sets the executor that subscription handlers run on.
//
// By default every store gets its own SerialScheduler, stopped by Close.
// A scheduler passed here is owned by the caller and may be shared between
// stores; Close does not stop it.
func WithScheduler(scheduler Scheduler) Option {
	return func(s *settings) {
		s.scheduler = scheduler
	}
}

// WithFlowGenerator sets the flow token generator. Default: UUIDv7Generator.
func WithFlowGenerator(gen FlowTokenGenerator) Option {
	return func(s *settings) {
		s.flowGen = gen
	}
}

// WithMaxSteps sets the maximum number of reductions per flow.
//
// Default: 1000 (DefaultMaxSteps). Zero or less disables the quota.
func WithMaxSteps(maxSteps int) Option {
	return func(s *settings) {
		s.maxSteps = maxSteps
	}
}

// WithEqual sets the state equality used to decide whether a reduction
// changed anything. Default: reflect.DeepEqual.
func WithEqual[S any](equal func(a, b S) bool) Option {
	return func(s *settings) {
		s.equal = equal
	}
}

// WithHooks registers hooks for the lifetime of the store.
// Multiple hooks are called in registration order.
func WithHooks[A any](hooks Hooks[A]) Option {
	return func(s *settings) {
		s.hooks = append(s.hooks, hooks)
	}
}

// WithObserver registers hooks that see actions as any. Diagnostics sinks
// that serve stores of every action type (journals, metrics) use this
// instead of WithHooks.
func WithObserver(hooks Hooks[any]) Option {
	return func(s *settings) {
		s.observers = append(s.observers, hooks)
	}
}

// WithSubscriber sets the subscription bridge run once during New.
func WithSubscriber[S, A, E any](subscriber Subscriber[S, A, E]) Option {
	return func(s *settings) {
		s.subscriber = subscriber
	}
}

func defaultSettings() settings {
	return settings{
		flowGen:  UUIDv7Generator{},
		maxSteps: DefaultMaxSteps,
	}
}

// typedEqual resolves the configured equality for S.
func typedEqual[S any](s settings) func(a, b S) bool {
	if s.equal == nil {
		return func(a, b S) bool { return reflect.DeepEqual(a, b) }
	}
	eq, ok := s.equal.(func(a, b S) bool)
	if !ok {
		var zero S
		panic(fmt.Sprintf("store: WithEqual type %T does not match state type %T", s.equal, zero))
	}
	return eq
}

// typedHooks resolves the configured hooks for A.
func typedHooks[A any](s settings) []Hooks[A] {
	hooks := make([]Hooks[A], 0, len(s.hooks))
	for _, h := range s.hooks {
		typed, ok := h.(Hooks[A])
		if !ok {
			var zero A
			panic(fmt.Sprintf("store: WithHooks type %T does not match action type %T", h, zero))
		}
		hooks = append(hooks, typed)
	}
	for _, o := range s.observers {
		hooks = append(hooks, adaptHooks[A](o))
	}
	return hooks
}

// adaptHooks lifts untyped hooks to a concrete action type.
func adaptHooks[A any](h Hooks[any]) Hooks[A] {
	var out Hooks[A]
	if h.OnReduce != nil {
		out.OnReduce = func(e Event[A]) {
			h.OnReduce(untyped(e))
		}
	}
	if h.OnEffect != nil {
		out.OnEffect = func(e Event[A], next A, ok bool, d time.Duration) {
			var n any
			if ok {
				n = next
			}
			h.OnEffect(untyped(e), n, ok, d)
		}
	}
	if h.OnDrop != nil {
		out.OnDrop = func(flow string, action A, err error) {
			h.OnDrop(flow, action, err)
		}
	}
	return out
}

func untyped[A any](e Event[A]) Event[any] {
	return Event[any]{
		Seq:     e.Seq,
		Flow:    e.Flow,
		Step:    e.Step,
		Action:  e.Action,
		Changed: e.Changed,
	}
}

// typedSubscriber resolves the configured subscriber for the store type.
func typedSubscriber[S, A, E any](s settings) Subscriber[S, A, E] {
	if s.subscriber == nil {
		return nil
	}
	sub, ok := s.subscriber.(Subscriber[S, A, E])
	if !ok {
		panic(fmt.Sprintf("store: WithSubscriber type %T does not match %T", s.subscriber, Subscriber[S, A, E](nil)))
	}
	return sub
}
