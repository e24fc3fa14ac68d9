package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storekit/internal/store"
	"github.com/roach88/storekit/internal/testutil"
)

type counterAction interface{ isCounterAction() }

type (
	Bump  struct{ By int `json:"by"` }
	Echo  struct{ Text string `json:"text"` }
	Reply struct{ Text string `json:"text"` }
)

func (Bump) isCounterAction()  {}
func (Echo) isCounterAction()  {}
func (Reply) isCounterAction() {}

func reduce(state int, action counterAction) int {
	if b, ok := action.(Bump); ok {
		return state + b.By
	}
	return state
}

func middleware(_ context.Context, _ int, action counterAction, _ struct{}) (counterAction, bool) {
	if e, ok := action.(Echo); ok {
		return Reply{Text: e.Text}, true
	}
	return nil, false
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNow(testutil.NewSteppingClock(fixedNow, time.Second).Now))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func newJournaledStore(t *testing.T, j *Journal, opts ...store.Option) *store.Store[int, counterAction, struct{}] {
	t.Helper()
	opts = append([]store.Option{
		store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		store.WithObserver(j.Observer("counter")),
	}, opts...)
	s := store.New(0, reduce, struct{}{}, middleware, opts...)
	t.Cleanup(s.Close)
	return s
}

func flush(t *testing.T, j *Journal) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, j.Flush(ctx))
}

func settle(t *testing.T, s *store.Store[int, counterAction, struct{}]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Settle(ctx))
}

func TestJournal_RecordsReductions(t *testing.T) {
	j := openTestJournal(t)
	s := newJournaledStore(t, j, store.WithFlowGenerator(store.NewFixedGenerator("f-1", "f-2")))

	s.Dispatch(Bump{By: 2})
	s.Dispatch(Echo{Text: "hi"})
	settle(t, s)
	flush(t, j)

	entries, err := j.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "counter", entries[0].Store)
	assert.Equal(t, "Bump", entries[0].Action)
	assert.Equal(t, KindReduce, entries[0].Kind)
	assert.JSONEq(t, `{"by":2}`, string(entries[0].Payload))
	assert.True(t, entries[0].Changed)
	assert.True(t, fixedNow.Equal(entries[0].RecordedAt))

	assert.Equal(t, "Echo", entries[1].Action)
	assert.False(t, entries[1].Changed)

	assert.Equal(t, "Reply", entries[2].Action)
	assert.Equal(t, "f-2", entries[2].Flow)
	assert.Equal(t, 2, entries[2].Step)
}

func TestJournal_ReadFlow(t *testing.T) {
	j := openTestJournal(t)
	s := newJournaledStore(t, j, store.WithFlowGenerator(store.NewFixedGenerator("a", "b")))

	s.Dispatch(Echo{Text: "one"})
	s.Dispatch(Bump{By: 1})
	settle(t, s)
	flush(t, j)

	entries, err := j.ReadFlow(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Echo", entries[0].Action)
	assert.Equal(t, "Reply", entries[1].Action)
	assert.Less(t, entries[0].Seq, entries[1].Seq)

	none, err := j.ReadFlow(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournal_RecordsDrops(t *testing.T) {
	j := openTestJournal(t)
	s := newJournaledStore(t, j, store.WithFlowGenerator(store.NewFixedGenerator("f-1", "f-2")))

	s.Dispatch(Bump{By: 1})
	s.Close()
	s.Dispatch(Bump{By: 1})
	flush(t, j)

	drops, err := j.List(context.Background(), ListOptions{Kind: KindDrop})
	require.NoError(t, err)
	require.Len(t, drops, 1)
	assert.Equal(t, "f-2", drops[0].Flow)
	assert.Equal(t, store.ErrClosed.Error(), drops[0].Error)
}

func TestJournal_Flows(t *testing.T) {
	j := openTestJournal(t)
	s := newJournaledStore(t, j, store.WithFlowGenerator(store.NewFixedGenerator("f-1", "f-2")))

	s.Dispatch(Echo{Text: "x"})
	settle(t, s)
	s.Dispatch(Bump{By: 3})
	flush(t, j)

	flows, err := j.Flows(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 2)

	assert.Equal(t, "f-1", flows[0].Flow)
	assert.Equal(t, "Echo", flows[0].Root)
	assert.Equal(t, 2, flows[0].Steps)
	assert.Equal(t, int64(1), flows[0].FirstSeq)
	assert.Equal(t, int64(2), flows[0].LastSeq)

	assert.Equal(t, "f-2", flows[1].Flow)
	assert.Equal(t, 1, flows[1].Steps)
	assert.True(t, fixedNow.Add(2*time.Second).Equal(flows[1].StartedAt))
}

func TestJournal_ListLimit(t *testing.T) {
	j := openTestJournal(t)
	for i := 1; i <= 5; i++ {
		j.Append(Entry{Store: "s", Seq: int64(i), Flow: "f", Step: i, Kind: KindReduce, Action: "Bump", Payload: []byte(`{}`)})
	}
	flush(t, j)

	entries, err := j.List(context.Background(), ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(4), entries[0].Seq)
	assert.Equal(t, int64(5), entries[1].Seq)

	other, err := j.List(context.Background(), ListOptions{Store: "other"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestJournal_CloseDrainsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		j.Append(Entry{Store: "s", Seq: int64(i + 1), Flow: "f", Step: 1, Kind: KindReduce, Action: "Bump", Payload: []byte(`{}`)})
	}
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	j.Append(Entry{Store: "s", Kind: KindReduce, Action: "Late"}) // discarded

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 100)
}
