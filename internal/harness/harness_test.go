package harness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storekit/internal/store"
)

func TestFulfillment_Increment(t *testing.T) {
	h := newMeterHarness(t)

	err := h.Fulfillment(context.Background(),
		[]meterAction{Tick{}},
		func() { h.Dispatch(Tick{}) },
		WithTimeout(time.Second))

	require.NoError(t, err)
	assert.Equal(t, 1, h.State().Ticks)
	assert.Equal(t, []meterAction{Tick{}}, h.Actions())
}

func TestFulfillment_SingleHopChaining(t *testing.T) {
	h := newMeterHarness(t)

	err := h.Fulfillment(context.Background(),
		[]meterAction{Fetch{Key: "a"}, Fetched{Value: "v:a"}},
		func() { h.Dispatch(Fetch{Key: "a"}) },
		WithTimeout(time.Second))

	require.NoError(t, err)
	assert.Equal(t, []meterAction{Fetch{Key: "a"}, Fetched{Value: "v:a"}}, h.Actions(),
		"follow-up recorded strictly after its trigger")
}

func TestFulfillment_GapReporting(t *testing.T) {
	h := newMeterHarness(t)

	err := h.Fulfillment(context.Background(),
		[]meterAction{Tick{}, Never{}},
		func() { h.Dispatch(Tick{}) },
		WithTimeout(100*time.Millisecond))

	require.Error(t, err)
	ue, ok := AsUnfulfilled[meterAction](err)
	require.True(t, ok, "error should be *UnfulfilledError")
	assert.Equal(t, []meterAction{Never{}}, ue.Pending)
	assert.Equal(t, 100*time.Millisecond, ue.Timeout)
	assert.Contains(t, err.Error(), "[Never]")
}

func TestFulfillment_Multiset(t *testing.T) {
	h := newMeterHarness(t)

	err := h.Fulfillment(context.Background(),
		[]meterAction{Tick{}, Tick{}},
		func() {
			h.Dispatch(Tick{})
			h.Dispatch(Tick{})
		},
		WithTimeout(time.Second))
	require.NoError(t, err)

	err = h.Fulfillment(context.Background(),
		[]meterAction{Tick{}, Tick{}},
		func() { h.Dispatch(Tick{}) },
		WithTimeout(50*time.Millisecond))
	ue, ok := AsUnfulfilled[meterAction](err)
	require.True(t, ok)
	assert.Equal(t, []meterAction{Tick{}}, ue.Pending, "one observation removes one expectation")
}

func TestFulfillment_UnorderedMatch(t *testing.T) {
	h := newMeterHarness(t)

	// Expected order differs from dispatch order.
	err := h.Fulfillment(context.Background(),
		[]meterAction{Add{N: 2}, Tick{}},
		func() {
			h.Dispatch(Tick{})
			h.Dispatch(Add{N: 2})
		},
		WithTimeout(time.Second))
	require.NoError(t, err)
}

func TestFulfillment_OnlyCountsActionsAfterStart(t *testing.T) {
	h := newMeterHarness(t)
	h.Dispatch(Tick{})

	err := h.Fulfillment(context.Background(), []meterAction{Tick{}}, nil, WithTimeout(50*time.Millisecond))
	_, ok := AsUnfulfilled[meterAction](err)
	assert.True(t, ok, "an action reduced before the call does not count")
}

func TestFulfillment_ContextCancel(t *testing.T) {
	h := newMeterHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	// No timeout option: only the context bounds the wait.
	err := h.Fulfillment(ctx, []meterAction{Never{}}, func() {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	ue, ok := AsUnfulfilled[meterAction](err)
	require.True(t, ok)
	assert.Equal(t, []meterAction{Never{}}, ue.Pending)
}

func TestFulfillment_EmptyExpectationReturnsImmediately(t *testing.T) {
	h := newMeterHarness(t)

	ran := false
	start := time.Now()
	err := h.Fulfillment(context.Background(), nil, func() { ran = true }, WithGrace(time.Hour))

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFulfillment_TimeoutHoldsDuringSlowTrigger(t *testing.T) {
	h := newMeterHarness(t)

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := h.Fulfillment(context.Background(),
		[]meterAction{Tick{}, Never{}},
		func() {
			h.Dispatch(Tick{})
			select {
			case <-release:
			case <-time.After(time.Second):
			}
		},
		WithTimeout(100*time.Millisecond))
	elapsed := time.Since(start)

	ue, ok := AsUnfulfilled[meterAction](err)
	require.True(t, ok, "error should be *UnfulfilledError, got %v", err)
	assert.Equal(t, []meterAction{Never{}}, ue.Pending)
	assert.Less(t, elapsed, 500*time.Millisecond, "timeout must not wait for the trigger")
}

func TestFulfillment_ObservesWhileTriggerRuns(t *testing.T) {
	h := newMeterHarness(t)

	release := make(chan struct{})
	defer close(release)

	// The trigger never returns on its own; the expectation is met while it
	// is still running.
	err := h.Fulfillment(context.Background(),
		[]meterAction{Add{N: 1}},
		func() {
			h.Dispatch(Add{N: 1})
			<-release
		},
		WithTimeout(time.Second))
	require.NoError(t, err)
}

func TestFulfillment_ContextCancelDuringSlowTrigger(t *testing.T) {
	h := newMeterHarness(t)

	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := h.Fulfillment(ctx, []meterAction{Never{}}, func() { <-release })
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFulfillment_EmptyExpectationHonorsTimeout(t *testing.T) {
	h := newMeterHarness(t)

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := h.Fulfillment(context.Background(), nil, func() { <-release }, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFulfillment_CountsActionsAfterReset(t *testing.T) {
	h := newMeterHarness(t)
	h.Dispatch(Tick{})
	h.Dispatch(Tick{})

	// The log is cleared and refilled to its old length before the wait
	// loop looks again; the new actions still count.
	err := h.Fulfillment(context.Background(),
		[]meterAction{Add{N: 1}, Add{N: 2}},
		func() {
			h.Reset()
			h.Dispatch(Add{N: 1})
			h.Dispatch(Add{N: 2})
		},
		WithTimeout(time.Second))
	require.NoError(t, err)
}

func TestFulfillment_TriggerRunsAfterGrace(t *testing.T) {
	h := newMeterHarness(t)

	start := time.Now()
	var triggeredAt time.Time
	err := h.Fulfillment(context.Background(),
		[]meterAction{Tick{}},
		func() {
			triggeredAt = time.Now()
			h.Dispatch(Tick{})
		},
		WithGrace(40*time.Millisecond),
		WithTimeout(time.Second))

	require.NoError(t, err)
	assert.GreaterOrEqual(t, triggeredAt.Sub(start), 40*time.Millisecond)
}

func TestFulfillment_CustomEqual(t *testing.T) {
	h := newMeterHarness(t)

	byType := func(a, b meterAction) bool {
		return store.ActionName(a) == store.ActionName(b)
	}

	err := h.Fulfillment(context.Background(),
		[]meterAction{Fetch{}, Fetched{}},
		func() { h.Dispatch(Fetch{Key: "x"}) },
		WithEqual(byType),
		WithTimeout(time.Second))
	require.NoError(t, err)
}

// Many concurrent async loads, each with its own follow-up: every action is
// recorded once and no reduction is lost.
func TestFulfillment_ConcurrentAsyncLoad(t *testing.T) {
	h := newMeterHarness(t)

	const n = 50
	expected := make([]meterAction, 0, 2*n)
	for i := 0; i < n; i++ {
		key := string(rune('a' + i%26))
		expected = append(expected, Fetch{Key: key}, Fetched{Value: "v:" + key})
	}

	err := h.Fulfillment(context.Background(), expected, func() {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.Dispatch(Fetch{Key: string(rune('a' + i%26))})
			}()
		}
		wg.Wait()
	}, WithTimeout(5*time.Second))
	require.NoError(t, err)

	assert.Len(t, h.State().Fetched, n, "no torn writes")
	assert.Len(t, h.Actions(), 2*n)

	events := h.Events()
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Seq, events[i].Seq)
	}
}

func TestHarness_RecordsSubscriptionActions(t *testing.T) {
	ticks := store.NewSubject[int]()
	h := newMeterHarness(t)
	store.Subscribe(h.Store(), ticks, func(s *store.Store[meter, meterAction, meterEnv], n int) {
		s.Dispatch(Add{N: n})
	})

	err := h.Fulfillment(context.Background(),
		[]meterAction{Add{N: 3}},
		func() { ticks.Send(3) },
		WithTimeout(time.Second))
	require.NoError(t, err)
}

func TestHarness_LatestAndUpdated(t *testing.T) {
	h := newMeterHarness(t)

	_, ok := h.Latest()
	assert.False(t, ok)

	updated := h.Updated()
	h.Dispatch(Add{N: 1})

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("updated channel not closed")
	}

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, Add{N: 1}, latest)

	h.Reset()
	assert.Empty(t, h.Actions())
}

func TestHarness_CloseStopsRecording(t *testing.T) {
	h := newMeterHarness(t)
	h.Dispatch(Tick{})
	h.Close()
	h.Dispatch(Tick{})

	assert.Len(t, h.Actions(), 1)
	assert.Equal(t, 2, h.State().Ticks, "the store keeps working")
}

func TestWrap_EqualTypeMismatchPanics(t *testing.T) {
	s := store.New(meter{}, reduceMeter, meterEnv{}, meterMiddleware, store.WithLogger(quietLogger()))
	defer s.Close()

	assert.Panics(t, func() {
		Wrap(s, WithEqual(func(a, b string) bool { return a == b }))
	})
}
