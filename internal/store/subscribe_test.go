package store

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_EachEventDispatchesOnce(t *testing.T) {
	names := NewSubject[string]()

	sub := func(s *Store[tally, tallyAction, *tallyEnv], _ *tallyEnv) {
		Subscribe(s, names, func(s *Store[tally, tallyAction, *tallyEnv], name string) {
			s.Dispatch(bump{By: 1})
			s.Dispatch(rename{Name: name})
		})
	}
	s := newTallyStore(t, nil, WithSubscriber(Subscriber[tally, tallyAction, *tallyEnv](sub)))

	names.Send("a")
	names.Send("b")
	names.Send("c")

	require.Eventually(t, func() bool {
		return s.State().Count == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "c", s.State().Last, "events from one source stay ordered")
}

func TestSubscribe_ValueSubjectReplaysCurrent(t *testing.T) {
	speed := NewValueSubject(4)

	s := newTallyStore(t, nil)
	Subscribe(s, speed, func(s *Store[tally, tallyAction, *tallyEnv], v int) {
		s.Dispatch(bump{By: v})
	})

	require.Eventually(t, func() bool {
		return s.State().Count == 4
	}, time.Second, 5*time.Millisecond)

	speed.Send(6)
	require.Eventually(t, func() bool {
		return s.State().Count == 10
	}, time.Second, 5*time.Millisecond)

	v, ok := speed.Value()
	assert.True(t, ok)
	assert.Equal(t, 6, v)
}

func TestSubscribe_SourceCompletion(t *testing.T) {
	ch := make(chan int, 2)
	ch <- 1
	ch <- 2
	close(ch)

	s := newTallyStore(t, nil)
	Subscribe(s, Chan[int](ch), func(s *Store[tally, tallyAction, *tallyEnv], v int) {
		s.Dispatch(bump{By: v})
	})

	require.Eventually(t, func() bool {
		return s.State().Count == 3
	}, time.Second, 5*time.Millisecond)

	// A completed source leaves the store fully usable.
	s.Dispatch(bump{By: 1})
	assert.Equal(t, 4, s.State().Count)
}

func TestSubscribe_HandlerRunsOnInjectedScheduler(t *testing.T) {
	var scheduled atomic.Int32
	sched := SchedulerFunc(func(task func()) bool {
		scheduled.Add(1)
		go task()
		return true
	})

	events := NewSubject[int]()
	s := newTallyStore(t, nil, WithScheduler(sched))
	Subscribe(s, events, func(s *Store[tally, tallyAction, *tallyEnv], v int) {
		s.Dispatch(bump{By: v})
	})

	events.Send(1)
	events.Send(1)

	require.Eventually(t, func() bool {
		return s.State().Count == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), scheduled.Load())
}

func TestSubscribe_HandlerPanicContained(t *testing.T) {
	events := NewSubject[int]()
	s := newTallyStore(t, nil)
	Subscribe(s, events, func(s *Store[tally, tallyAction, *tallyEnv], v int) {
		if v < 0 {
			panic("negative")
		}
		s.Dispatch(bump{By: v})
	})

	events.Send(-1)
	events.Send(5)

	require.Eventually(t, func() bool {
		return s.State().Count == 5
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribe_CloseStopsBridge(t *testing.T) {
	events := NewSubject[int]()
	s := New(tally{}, reduceTally, nil, tallyMiddleware, WithLogger(discardLogger()))
	Subscribe(s, events, func(s *Store[tally, tallyAction, *tallyEnv], v int) {
		s.Dispatch(bump{By: v})
	})

	s.Close()

	// The bridge stopped listening, so Send neither blocks nor dispatches.
	done := make(chan struct{})
	go func() {
		events.Send(1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked after store closed")
	}
	assert.Zero(t, s.State().Count)

	// Subscribing to a closed store is a no-op.
	Subscribe(s, events, func(*Store[tally, tallyAction, *tallyEnv], int) {})
}
