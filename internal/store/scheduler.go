package store

import (
	"log/slog"
)

// Scheduler executes tasks off the caller's goroutine. Subscription bridges
// hand every upstream event to a Scheduler, so handlers never run on the
// goroutine that produced the event.
//
// Schedule returns false if the task was not accepted.
type Scheduler interface {
	Schedule(task func()) bool
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(task func()) bool

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(task func()) bool {
	return f(task)
}

// Inline runs tasks immediately on the scheduling goroutine. For a
// subscription that is the bridge goroutine of that subscription, so events
// from one source stay ordered but events from different sources interleave.
var Inline Scheduler = SchedulerFunc(func(task func()) bool {
	task()
	return true
})

// SerialScheduler runs tasks one at a time, in submission order, on a single
// goroutine. It is the explicit replacement for a process-wide main queue:
// construct one per store (the default) or share one between stores that
// must observe a common order.
//
// Thread-safety model:
//   - Schedule(): safe from any goroutine
//   - Stop(): safe from any goroutine, idempotent
type SerialScheduler struct {
	queue  *queue[func()]
	done   chan struct{}
	logger *slog.Logger
}

// NewSerialScheduler starts a scheduler goroutine.
// A nil logger means slog.Default().
func NewSerialScheduler(logger *slog.Logger) *SerialScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SerialScheduler{
		queue:  newQueue[func()](),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.run()
	return s
}

// Schedule enqueues a task. Returns false once the scheduler is stopped.
func (s *SerialScheduler) Schedule(task func()) bool {
	return s.queue.Enqueue(task)
}

// Stop stops accepting tasks. Tasks already queued still run; Done is closed
// after the last one.
func (s *SerialScheduler) Stop() {
	s.queue.Close()
}

// Done is closed when the scheduler goroutine has exited.
func (s *SerialScheduler) Done() <-chan struct{} {
	return s.done
}

// Pending returns the number of queued tasks.
func (s *SerialScheduler) Pending() int {
	return s.queue.Len()
}

// run is the scheduler loop. It must only ever run on one goroutine.
func (s *SerialScheduler) run() {
	defer close(s.done)

	for {
		task, ok := s.queue.TryDequeue()
		if ok {
			s.exec(task)
			continue
		}

		// Nothing ready: wait for a signal. The signal channel closes on
		// Stop, which keeps this case firing until the queue drains.
		<-s.queue.Wait()
		if s.queue.Drained() {
			return
		}
	}
}

// exec runs a task, containing any panic so one bad handler cannot take the
// loop down with it.
func (s *SerialScheduler) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", "panic", r)
		}
	}()
	task()
}
