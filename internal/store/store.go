package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Store is a generic state container.
//
// It owns exactly one live State value. Dispatch runs the reducer inside a
// single-writer section, then resolves the action's middleware on its own
// goroutine; a follow-up action the middleware returns is dispatched through
// the same single writer, in the same flow.
//
// Thread-safety model:
//   - Dispatch(): safe from any goroutine, never blocks on middleware
//   - State(): wait-free, safe from any goroutine
//   - Observe(), Watch(), Settle(), Close(): safe from any goroutine
type Store[S, A, E any] struct {
	reducer    Reducer[S, A]
	middleware Middleware[S, A, E]
	env        E
	equal      func(a, b S) bool

	mu      sync.Mutex // single-writer section
	current atomic.Pointer[S]
	clock   *Clock

	hooks    hookSet[A]
	feed     *feed[S]
	inflight *inflight

	flowGen  FlowTokenGenerator
	maxSteps int
	logger   *slog.Logger

	sched     Scheduler
	ownsSched bool

	ctx    context.Context
	cancel context.CancelFunc

	lifeMu  sync.Mutex // orders bridge registration against Close
	closed  atomic.Bool
	bridges sync.WaitGroup
}

// New creates a store holding initial.
//
// A nil middleware behaves like NoMiddleware. If WithSubscriber was given,
// the subscriber runs exactly once, with the new store and env, before New
// returns.
func New[S, A, E any](initial S, reducer Reducer[S, A], env E, middleware Middleware[S, A, E], opts ...Option) *Store[S, A, E] {
	if reducer == nil {
		panic("store: nil reducer")
	}

	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if middleware == nil {
		middleware = NoMiddleware[S, A, E]
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store[S, A, E]{
		reducer:    reducer,
		middleware: middleware,
		env:        env,
		equal:      typedEqual[S](cfg),
		clock:      NewClock(),
		feed:       newFeed[S](),
		inflight:   newInflight(),
		flowGen:    cfg.flowGen,
		maxSteps:   cfg.maxSteps,
		logger:     cfg.logger,
		sched:      cfg.scheduler,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.current.Store(&initial)

	if s.sched == nil {
		s.sched = NewSerialScheduler(cfg.logger)
		s.ownsSched = true
	}

	for _, h := range typedHooks[A](cfg) {
		s.hooks.add(h)
	}

	if subscriber := typedSubscriber[S, A, E](cfg); subscriber != nil {
		subscriber(s, env)
	}

	return s
}

// Dispatch starts a new flow with action.
//
// The reduction has committed by the time Dispatch returns. The action's
// middleware then runs asynchronously; any follow-up it returns is
// dispatched in the same flow against the state current at that moment.
func (s *Store[S, A, E]) Dispatch(action A) {
	s.dispatch(s.flowGen.Generate(), 1, action)
}

func (s *Store[S, A, E]) dispatch(flow string, step int, action A) {
	ev, snapshot, err := s.reduce(flow, step, action)
	if err != nil {
		s.drop(flow, action, err)
		return
	}
	go s.effect(ev, snapshot)
}

// reduce runs the single-writer section for one action.
func (s *Store[S, A, E]) reduce(flow string, step int, action A) (Event[A], S, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero S
	if s.closed.Load() {
		return Event[A]{}, zero, ErrClosed
	}
	if err := checkSteps(flow, step, s.maxSteps); err != nil {
		return Event[A]{}, zero, err
	}

	prev := *s.current.Load()
	next := s.reducer(prev, action)
	changed := !s.equal(prev, next)
	if changed {
		s.current.Store(&next)
		s.feed.publish(next)
	}

	ev := Event[A]{
		Seq:     s.clock.Next(),
		Flow:    flow,
		Step:    step,
		Action:  action,
		Changed: changed,
	}

	s.logger.Debug("action reduced",
		"seq", ev.Seq,
		"flow", flow,
		"step", step,
		"action", ActionName(action),
		"changed", changed)

	s.hooks.reduced(ev)
	s.inflight.add()

	return ev, *s.current.Load(), nil
}

// effect resolves the middleware for a committed reduction and continues the
// flow with its follow-up, if any.
func (s *Store[S, A, E]) effect(ev Event[A], state S) {
	defer s.inflight.done()

	start := time.Now()
	next, ok, err := s.runMiddleware(ev, state)
	s.hooks.effected(ev, next, ok, time.Since(start))

	if err != nil {
		s.logger.Error("middleware panicked",
			"flow", ev.Flow,
			"step", ev.Step,
			"action", ActionName(ev.Action),
			"error", err)
		s.hooks.dropped(ev.Flow, ev.Action, err)
		return
	}
	if !ok {
		return
	}
	s.dispatch(ev.Flow, ev.Step+1, next)
}

// runMiddleware calls the middleware, converting a panic into a PanicError.
func (s *Store[S, A, E]) runMiddleware(ev Event[A], state S) (next A, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero A
			next, ok = zero, false
			err = &PanicError{Action: ActionName(ev.Action), Value: r}
		}
	}()
	next, ok = s.middleware(s.ctx, state, ev.Action, s.env)
	return next, ok, nil
}

func (s *Store[S, A, E]) drop(flow string, action A, err error) {
	if IsStepsExceededError(err) {
		s.logger.Warn("follow-up dropped",
			"flow", flow,
			"action", ActionName(action),
			"error", err)
	} else {
		s.logger.Debug("action dropped",
			"flow", flow,
			"action", ActionName(action),
			"error", err)
	}
	s.hooks.dropped(flow, action, err)
}

// State returns the latest committed state.
func (s *Store[S, A, E]) State() S {
	return *s.current.Load()
}

// Context is cancelled when the store is closed. It is the context passed
// to middleware.
func (s *Store[S, A, E]) Context() context.Context {
	return s.ctx
}

// Observe registers hooks until the returned cancel func is called.
func (s *Store[S, A, E]) Observe(hooks Hooks[A]) (cancel func()) {
	return s.hooks.add(hooks)
}

// Watch returns an ordered stream of committed state changes. No-op
// reductions are not delivered. The channel is closed after Close once every
// pending change has been delivered; cancel detaches early.
func (s *Store[S, A, E]) Watch() (changes <-chan S, cancel func()) {
	return s.feed.watch()
}

// Settle blocks until no middleware chain or scheduled subscription handler
// is in flight, or until ctx is done.
func (s *Store[S, A, E]) Settle(ctx context.Context) error {
	if err := s.inflight.wait(ctx); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	return nil
}

// Pending returns the number of middleware chains and scheduled handlers
// currently in flight.
func (s *Store[S, A, E]) Pending() int {
	return s.inflight.count()
}

// Close tears the store down: subscriptions stop, the middleware context is
// cancelled, and further dispatches (including follow-ups of middleware
// still running) are dropped with ErrClosed. Close waits for subscription
// bridges to exit, so it must not be called from a handler running on the
// Inline scheduler.
//
// Close is idempotent.
func (s *Store[S, A, E]) Close() {
	s.lifeMu.Lock()
	s.mu.Lock()
	already := s.closed.Swap(true)
	s.mu.Unlock()
	s.lifeMu.Unlock()
	if already {
		return
	}

	s.cancel()
	s.bridges.Wait()

	if stopper, ok := s.sched.(interface{ Stop() }); ok && s.ownsSched {
		stopper.Stop()
	}
	s.feed.close()

	s.logger.Info("store closed", "seq", s.clock.Current())
}
