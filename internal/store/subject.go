package store

import "sync"

// Subject is an in-process event source that fans values out to every
// current listener. It implements Source.
//
// Send blocks until each listener has accepted the value or stopped
// listening, so a store bridge never misses an event that was sent while it
// was subscribed. Close releases a Send stuck on a listener that stopped
// draining.
type Subject[T any] struct {
	mu        sync.RWMutex // held for reading by Send, for writing by Listen/Close
	nextID    int
	listeners map[int]*listener[T]
	closed    bool

	done     chan struct{} // closed first thing in Close
	doneOnce sync.Once

	replay   bool
	valueMu  sync.Mutex
	value    T
	hasValue bool
}

type listener[T any] struct {
	ch   chan T
	stop chan struct{}
}

// NewSubject creates a passthrough subject: listeners only see values sent
// after they started listening.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{
		listeners: make(map[int]*listener[T]),
		done:      make(chan struct{}),
	}
}

// NewValueSubject creates a subject holding a current value. New listeners
// receive the current value first.
func NewValueSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		listeners: make(map[int]*listener[T]),
		done:      make(chan struct{}),
		replay:    true,
		value:     initial,
		hasValue:  true,
	}
}

// Send delivers v to every listener. Send after Close is a no-op.
func (s *Subject[T]) Send(v T) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	if s.replay {
		s.valueMu.Lock()
		s.value, s.hasValue = v, true
		s.valueMu.Unlock()
	}

	for id := 0; id < s.nextID; id++ {
		l, ok := s.listeners[id]
		if !ok {
			continue
		}
		select {
		case l.ch <- v:
		case <-l.stop:
		case <-s.done:
			return
		}
	}
}

// Value returns the current value of a value subject.
func (s *Subject[T]) Value() (T, bool) {
	s.valueMu.Lock()
	defer s.valueMu.Unlock()
	return s.value, s.hasValue
}

// Listen implements Source.
func (s *Subject[T]) Listen() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := &listener[T]{
		ch:   make(chan T, 1),
		stop: make(chan struct{}),
	}
	if s.closed {
		close(l.ch)
		return l.ch, func() {}
	}

	if s.replay {
		s.valueMu.Lock()
		if s.hasValue {
			l.ch <- s.value
		}
		s.valueMu.Unlock()
	}

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	var once sync.Once
	return l.ch, func() {
		once.Do(func() {
			// Unblock any Send waiting on this listener before taking the
			// write lock it holds for reading.
			close(l.stop)
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Close completes the subject. Every listener channel is closed after its
// pending values. A Send blocked on a listener gives up, so Close never waits
// on a slow reader.
func (s *Subject[T]) Close() {
	// Release blocked senders before taking the lock they hold for reading.
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, l := range s.listeners {
		close(l.ch)
		delete(s.listeners, id)
	}
}
