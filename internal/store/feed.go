package store

import "sync"

// watchBuffer is the per-watcher channel buffer. A watcher that falls further
// behind than this holds up the notifier, never the writer.
const watchBuffer = 16

// feed delivers committed states to watchers in commit order.
//
// The writer only ever enqueues; a dedicated notifier goroutine fans states
// out to watcher channels.
type feed[S any] struct {
	queue *queue[S]

	mu       sync.Mutex
	nextID   int
	watchers map[int]*watcher[S]
	closed   bool

	done chan struct{}
}

type watcher[S any] struct {
	ch   chan S
	stop chan struct{}
}

func newFeed[S any]() *feed[S] {
	f := &feed[S]{
		queue:    newQueue[S](),
		watchers: make(map[int]*watcher[S]),
		done:     make(chan struct{}),
	}
	go f.run()
	return f
}

// publish must be called from inside the single-writer section so that
// states are enqueued in commit order.
func (f *feed[S]) publish(state S) {
	f.mu.Lock()
	empty := len(f.watchers) == 0
	f.mu.Unlock()
	if empty {
		return
	}
	f.queue.Enqueue(state)
}

func (f *feed[S]) watch() (<-chan S, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		ch := make(chan S)
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	w := &watcher[S]{
		ch:   make(chan S, watchBuffer),
		stop: make(chan struct{}),
	}
	f.watchers[id] = w

	var once sync.Once
	return w.ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
			close(w.stop)
		})
	}
}

func (f *feed[S]) snapshot() []*watcher[S] {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]*watcher[S], 0, len(f.watchers))
	for id := 0; id < f.nextID; id++ {
		if w, ok := f.watchers[id]; ok {
			list = append(list, w)
		}
	}
	return list
}

// run is the notifier loop. Watcher channels are only ever closed here, after
// the last state has been delivered.
func (f *feed[S]) run() {
	defer close(f.done)

	for {
		state, ok := f.queue.TryDequeue()
		if ok {
			for _, w := range f.snapshot() {
				select {
				case w.ch <- state:
				case <-w.stop:
				}
			}
			continue
		}

		<-f.queue.Wait()
		if f.queue.Drained() {
			break
		}
	}

	f.mu.Lock()
	f.closed = true
	remaining := f.watchers
	f.watchers = make(map[int]*watcher[S])
	f.mu.Unlock()

	for _, w := range remaining {
		close(w.ch)
	}
}

// close stops the feed. Pending states are still delivered.
func (f *feed[S]) close() {
	f.queue.Close()
}
