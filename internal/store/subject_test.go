package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestSubject_Passthrough(t *testing.T) {
	s := NewSubject[string]()

	// Nobody listening: the value is gone.
	s.Send("lost")

	ch, stop := s.Listen()
	defer stop()

	go s.Send("hello")
	assert.Equal(t, "hello", receive(t, ch))

	_, ok := s.Value()
	assert.False(t, ok, "passthrough subjects hold no value")
}

func TestSubject_ValueReplay(t *testing.T) {
	s := NewValueSubject("initial")

	ch, stop := s.Listen()
	defer stop()
	assert.Equal(t, "initial", receive(t, ch))

	go s.Send("next")
	assert.Equal(t, "next", receive(t, ch))

	late, stopLate := s.Listen()
	defer stopLate()
	assert.Equal(t, "next", receive(t, late))
}

func TestSubject_StopUnblocksSend(t *testing.T) {
	s := NewSubject[int]()
	_, stop := s.Listen()

	s.Send(1) // fills the listener buffer

	done := make(chan struct{})
	go func() {
		s.Send(2)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send stayed blocked after listener stopped")
	}
}

func TestSubject_CloseUnblocksSend(t *testing.T) {
	s := NewSubject[int]()
	ch, stop := s.Listen()
	defer stop()

	s.Send(1) // fills the listener buffer; nobody drains it

	done := make(chan struct{})
	go func() {
		s.Send(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("send returned while the listener was full")
	case <-time.After(20 * time.Millisecond):
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	for _, c := range []chan struct{}{done, closed} {
		select {
		case <-c:
		case <-time.After(time.Second):
			t.Fatal("close did not release the blocked send")
		}
	}

	assert.Equal(t, 1, receive(t, ch), "buffered value survives close")
	_, ok := <-ch
	assert.False(t, ok)
}

func TestSubject_Close(t *testing.T) {
	s := NewSubject[int]()
	ch, _ := s.Listen()

	s.Send(1)
	s.Close()
	s.Close()

	assert.Equal(t, 1, receive(t, ch), "buffered value survives close")
	_, ok := <-ch
	assert.False(t, ok)

	late, _ := s.Listen()
	_, ok = <-late
	assert.False(t, ok, "listening on a closed subject yields a closed channel")

	s.Send(2) // no-op
}
