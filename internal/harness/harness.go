package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/roach88/storekit/internal/store"
)

// DefaultGrace is how long Fulfillment waits after it starts observing
// before it runs the trigger.
const DefaultGrace = 10 * time.Millisecond

// Option configures a Harness or a single Fulfillment call.
type Option func(*config)

type config struct {
	timeout time.Duration
	grace   time.Duration
	equal   any // func(a, b A) bool
}

// WithTimeout bounds how long Fulfillment waits. Zero (the default) waits
// until the context is done.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithGrace sets the delay between starting to observe and running the
// trigger. Default: DefaultGrace.
func WithGrace(d time.Duration) Option {
	return func(c *config) {
		c.grace = d
	}
}

// WithEqual sets how observed actions are matched against expected ones.
// Default: reflect.DeepEqual.
func WithEqual[A any](equal func(a, b A) bool) Option {
	return func(c *config) {
		c.equal = equal
	}
}

func (c config) apply(opts []Option) config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Harness wraps a store and records every action it reduces: external
// dispatches, middleware follow-ups and subscription-originated actions
// alike, in commit order.
//
// Thread-safety: all methods are safe for concurrent use.
type Harness[S, A, E any] struct {
	store  *store.Store[S, A, E]
	cfg    config
	cancel func()

	mu     sync.Mutex
	events []store.Event[A]
	resets int           // bumped by Reset
	notify chan struct{} // closed and replaced on every record
}

// Wrap starts recording s. Recording stops on Close.
func Wrap[S, A, E any](s *store.Store[S, A, E], opts ...Option) *Harness[S, A, E] {
	h := &Harness[S, A, E]{
		store:  s,
		cfg:    config{grace: DefaultGrace}.apply(opts),
		notify: make(chan struct{}),
	}
	h.equalFunc(h.cfg) // fail fast on a mismatched WithEqual

	h.cancel = s.Observe(store.Hooks[A]{OnReduce: h.record})
	return h
}

// record runs inside the store's single-writer section.
func (h *Harness[S, A, E]) record(e store.Event[A]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, e)
	close(h.notify)
	h.notify = make(chan struct{})
}

// Store returns the wrapped store.
func (h *Harness[S, A, E]) Store() *store.Store[S, A, E] {
	return h.store
}

// Dispatch forwards to the wrapped store.
func (h *Harness[S, A, E]) Dispatch(action A) {
	h.store.Dispatch(action)
}

// State returns the wrapped store's current state.
func (h *Harness[S, A, E]) State() S {
	return h.store.State()
}

// Settle waits for the wrapped store to go quiet.
func (h *Harness[S, A, E]) Settle(ctx context.Context) error {
	return h.store.Settle(ctx)
}

// Actions returns every recorded action in commit order.
func (h *Harness[S, A, E]) Actions() []A {
	h.mu.Lock()
	defer h.mu.Unlock()

	actions := make([]A, len(h.events))
	for i, e := range h.events {
		actions[i] = e.Action
	}
	return actions
}

// Events returns every recorded reduction in commit order.
func (h *Harness[S, A, E]) Events() []store.Event[A] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.events)
}

// Latest returns the most recently recorded action.
func (h *Harness[S, A, E]) Latest() (A, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.events) == 0 {
		var zero A
		return zero, false
	}
	return h.events[len(h.events)-1].Action, true
}

// Updated returns a channel that is closed when the next action is recorded.
func (h *Harness[S, A, E]) Updated() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.notify
}

// Reset clears the recorded log.
func (h *Harness[S, A, E]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
	h.resets++
}

// Close stops recording. The wrapped store is left open.
func (h *Harness[S, A, E]) Close() {
	h.cancel()
}

// Fulfillment runs trigger and waits until every expected action has been
// recorded.
//
// Observation starts before the trigger runs; the trigger itself runs on its
// own goroutine after the grace delay, so a slow trigger does not hold up the
// timeout. Each recorded action removes the first pending action it
// matches, so expected is an unordered multiset. Only actions recorded after
// the call begins count.
//
// With a timeout (WithTimeout), Fulfillment gives up when it expires and
// returns an *UnfulfilledError[A] listing the actions still pending. The same
// error, wrapping the context's error, is returned if ctx ends first. An
// empty expected list starts the trigger at once and returns when it
// finishes, the timeout expires or ctx ends, whichever comes first.
func (h *Harness[S, A, E]) Fulfillment(ctx context.Context, expected []A, trigger func(), opts ...Option) error {
	cfg := h.cfg.apply(opts)
	equal := h.equalFunc(cfg)

	matchers := make([]func(A) bool, len(expected))
	for i, want := range expected {
		matchers[i] = func(got A) bool { return equal(want, got) }
	}

	remaining, err := h.await(ctx, matchers, trigger, cfg)
	if remaining == nil {
		return nil
	}

	pending := make([]A, len(remaining))
	for i, idx := range remaining {
		pending[i] = expected[idx]
	}
	ue := &UnfulfilledError[A]{Pending: pending, Err: err}
	if err == nil {
		ue.Timeout = cfg.timeout
	}
	return ue
}

// await runs the fulfillment loop over predicate expectations.
//
// It returns nil once every matcher has consumed a distinct recorded action.
// Otherwise it returns the indexes of the matchers still pending, with the
// context's error if ctx ended or a nil error if the timeout expired.
func (h *Harness[S, A, E]) await(ctx context.Context, matchers []func(A) bool, trigger func(), cfg config) ([]int, error) {
	var expired <-chan time.Time
	if cfg.timeout > 0 {
		timer := time.NewTimer(cfg.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	if len(matchers) == 0 {
		select {
		case <-runTrigger(trigger):
		case <-expired:
		case <-ctx.Done():
		}
		return nil, nil
	}

	pending := make([]int, len(matchers))
	for i := range pending {
		pending[i] = i
	}

	h.mu.Lock()
	cursor := len(h.events)
	resets := h.resets
	h.mu.Unlock()

	grace := time.NewTimer(cfg.grace)
	defer grace.Stop()
	graceC := grace.C
	triggered := false

	for {
		h.mu.Lock()
		if h.resets != resets {
			// Everything in the log was recorded after the Reset.
			cursor = 0
			resets = h.resets
		}
		fresh := h.events[cursor:len(h.events):len(h.events)]
		cursor = len(h.events)
		notify := h.notify
		h.mu.Unlock()

		for _, e := range fresh {
			pending = consume(pending, matchers, e.Action)
		}
		if triggered && len(pending) == 0 {
			return nil, nil
		}

		select {
		case <-notify:
		case <-graceC:
			graceC = nil
			triggered = true
			runTrigger(trigger)
		case <-expired:
			return pending, nil
		case <-ctx.Done():
			return pending, ctx.Err()
		}
	}
}

// runTrigger starts trigger on its own goroutine. The returned channel is
// closed when it returns.
func runTrigger(trigger func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if trigger != nil {
			trigger()
		}
	}()
	return done
}

func (h *Harness[S, A, E]) equalFunc(cfg config) func(a, b A) bool {
	if cfg.equal == nil {
		return func(a, b A) bool { return reflect.DeepEqual(a, b) }
	}
	eq, ok := cfg.equal.(func(a, b A) bool)
	if !ok {
		var zero A
		panic(fmt.Sprintf("harness: WithEqual type %T does not match action type %T", cfg.equal, zero))
	}
	return eq
}

// consume removes the first pending matcher that accepts action.
func consume[A any](pending []int, matchers []func(A) bool, action A) []int {
	for i, idx := range pending {
		if matchers[idx](action) {
			return slices.Delete(pending, i, i+1)
		}
	}
	return pending
}
