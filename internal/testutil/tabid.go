package testutil

import (
	"fmt"
	"sync"
)

// SequentialTabIDs generates "<prefix>-1", "<prefix>-2", ... for tests.
//
// Unlike engine.FixedGenerator it never runs out, which suits scenarios that
// open an arbitrary number of tabs. Implements engine.TabIDGenerator.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialTabIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTabIDs creates a generator. An empty prefix means "tab".
func NewSequentialTabIDs(prefix string) *SequentialTabIDs {
	if prefix == "" {
		prefix = "tab"
	}
	return &SequentialTabIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialTabIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
