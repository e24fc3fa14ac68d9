package store

import "sync/atomic"

// Clock is a monotonic logical clock that stamps every reduction.
//
// Sequence numbers reflect commit order inside the single-writer section,
// which makes them the only reliable ordering key across concurrent
// dispatches. Never use wall-clock timestamps for ordering.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
