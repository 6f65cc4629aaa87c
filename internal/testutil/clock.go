package testutil

import (
	"slices"
	"sync"
)

// RecordingClock is an engine.Sequencer that remembers every number it
// hands out. Sharing one between tabs gives a single global order that
// tests can inspect after the fact.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingClock struct {
	mu     sync.Mutex
	seq    int64
	issued []int64
}

// NewRecordingClock creates a clock whose first Next returns 1.
func NewRecordingClock() *RecordingClock {
	return &RecordingClock{}
}

// Next stamps one more operation.
func (c *RecordingClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.issued = append(c.issued, c.seq)
	return c.seq
}

// Current returns the last number handed out.
func (c *RecordingClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns a copy of every number handed out, in order.
func (c *RecordingClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.issued)
}

// Reset forgets all stamps.
func (c *RecordingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.issued = nil
}
