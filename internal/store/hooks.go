package store

import (
	"sync"
	"time"
)

// Event describes one committed reduction.
type Event[A any] struct {
	Seq     int64  // Logical clock value, strictly increasing in commit order
	Flow    string // Flow token shared by a root action and its follow-ups
	Step    int    // Position in the flow, 1 for the root action
	Action  A
	Changed bool // Whether the reduction produced a different state
}

// Hooks observe a store without taking part in it.
//
// OnReduce runs inside the single-writer section, in commit order, so it must
// be fast and must not call back into the store. OnEffect runs on the
// middleware goroutine after the middleware returns. OnDrop runs wherever the
// action was rejected.
type Hooks[A any] struct {
	OnReduce func(e Event[A])
	OnEffect func(e Event[A], next A, ok bool, d time.Duration)
	OnDrop   func(flow string, action A, err error)
}

// hookSet is a copy-on-write list of registered hooks.
type hookSet[A any] struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]Hooks[A]
	list   []Hooks[A] // rebuilt on every change, read without locking by callers holding a copy
}

func (h *hookSet[A]) add(hooks Hooks[A]) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.byID == nil {
		h.byID = make(map[int]Hooks[A])
	}
	id := h.nextID
	h.nextID++
	h.byID[id] = hooks
	h.rebuild()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.byID, id)
			h.rebuild()
		})
	}
}

// rebuild must be called with h.mu held. Registration order is preserved.
func (h *hookSet[A]) rebuild() {
	list := make([]Hooks[A], 0, len(h.byID))
	for id := 0; id < h.nextID; id++ {
		if hooks, ok := h.byID[id]; ok {
			list = append(list, hooks)
		}
	}
	h.list = list
}

func (h *hookSet[A]) snapshot() []Hooks[A] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.list
}

func (h *hookSet[A]) reduced(e Event[A]) {
	for _, hooks := range h.snapshot() {
		if hooks.OnReduce != nil {
			hooks.OnReduce(e)
		}
	}
}

func (h *hookSet[A]) effected(e Event[A], next A, ok bool, d time.Duration) {
	for _, hooks := range h.snapshot() {
		if hooks.OnEffect != nil {
			hooks.OnEffect(e, next, ok, d)
		}
	}
}

func (h *hookSet[A]) dropped(flow string, action A, err error) {
	for _, hooks := range h.snapshot() {
		if hooks.OnDrop != nil {
			hooks.OnDrop(flow, action, err)
		}
	}
}
