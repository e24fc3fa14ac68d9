package store

import "fmt"

// Source is an external event stream. Listen starts delivery and returns the
// event channel plus a func that stops it. A closed channel means the source
// has completed.
type Source[T any] interface {
	Listen() (events <-chan T, stop func())
}

// Chan adapts a plain receive channel to Source.
type Chan[T any] <-chan T

// Listen implements Source. Stopping is a no-op; the channel's owner closes it.
func (c Chan[T]) Listen() (<-chan T, func()) {
	return c, func() {}
}

// Subscribe bridges src into the store. Every event becomes exactly one call
// to handler, run on the store's scheduler rather than the goroutine that
// produced it; handlers typically turn the event into a Dispatch.
//
// The subscription lives as long as the store: Close stops the source and
// waits for the bridge to exit. A source that completes simply stops
// producing. A panicking handler is recovered and logged.
//
// Subscribe on a closed store is a no-op.
func Subscribe[S, A, E, T any](s *Store[S, A, E], src Source[T], handler func(s *Store[S, A, E], event T)) {
	s.lifeMu.Lock()
	if s.closed.Load() {
		s.lifeMu.Unlock()
		return
	}
	s.bridges.Add(1)
	s.lifeMu.Unlock()

	events, stop := src.Listen()
	go s.bridge(func() bool {
		select {
		case <-s.ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				s.logger.Debug("subscription source completed",
					"source", fmt.Sprintf("%T", src))
				return false
			}
			s.schedule(func() { handler(s, event) }, fmt.Sprintf("%T", event))
			return true
		}
	}, stop)
}

// bridge pumps one subscription until next reports false.
func (s *Store[S, A, E]) bridge(next func() bool, stop func()) {
	defer s.bridges.Done()
	defer stop()

	for next() {
	}
}

// schedule hands a handler invocation to the scheduler, tracking it as
// in-flight work until it has run.
func (s *Store[S, A, E]) schedule(task func(), name string) {
	s.inflight.add()
	accepted := s.sched.Schedule(func() {
		defer s.inflight.done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("subscription handler panicked",
					"error", &PanicError{Action: name, Value: r})
			}
		}()
		task()
	})
	if !accepted {
		s.inflight.done()
		s.logger.Debug("subscription event dropped", "event", name, "error", ErrClosed)
	}
}
