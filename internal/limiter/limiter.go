// Package limiter coalesces bursts of dispatch requests.
//
// A Limiter debounces: every Request restarts a quiescence timer, and only
// the most recent producer runs once the timer expires. Producers that were
// superseded never run.
//
//	l := limiter.New(300 * time.Millisecond)
//	l.Request(func() { s.Dispatch(settings.Save{}) })
package limiter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultWaitPeriod is the quiescence period used when New is given zero.
const DefaultWaitPeriod = time.Second

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used for recovered producer panics.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// Limiter is a debounced producer runner. Safe for concurrent use.
type Limiter struct {
	wait   time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // incremented per request; a timer only fires for its own generation
	pending func()
	stopped bool
}

// New creates a limiter with the given quiescence period.
// A period of zero or less uses DefaultWaitPeriod.
func New(wait time.Duration, opts ...Option) *Limiter {
	if wait <= 0 {
		wait = DefaultWaitPeriod
	}
	l := &Limiter{wait: wait}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Request schedules producer to run after the wait period, replacing any
// producer still waiting. Request after Stop is ignored.
func (l *Limiter) Request(producer func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}

	l.gen++
	gen := l.gen
	l.pending = producer

	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.wait, func() { l.fire(gen) })
}

// fire runs the pending producer if no newer request arrived meanwhile.
// Timer.Stop cannot recall a callback that already started, so the
// generation check is what guarantees superseded producers never run.
func (l *Limiter) fire(gen uint64) {
	l.mu.Lock()
	if l.stopped || gen != l.gen || l.pending == nil {
		l.mu.Unlock()
		return
	}
	producer := l.pending
	l.pending = nil
	l.timer = nil
	l.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("limiter producer panicked", "panic", fmt.Sprint(r))
		}
	}()
	producer()
}

// Pending reports whether a producer is waiting for quiescence.
func (l *Limiter) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending != nil
}

// Stop discards the pending producer and ignores future requests.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopped = true
	l.pending = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
