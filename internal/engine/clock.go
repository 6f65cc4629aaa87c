package engine

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers.
// Implemented by Clock and testutil.RecordingClock.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock that stamps cart operations.
//
// Every mutation and every change notification gets a strictly increasing
// sequence number. Line stamps compare these numbers to decide whether a
// rollback is still current, so wall-clock time never takes part in ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
