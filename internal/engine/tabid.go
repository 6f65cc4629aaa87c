package engine

import (
	"sync"

	"github.com/google/uuid"
)

// TabIDGenerator produces tab identifiers.
// Implemented by UUIDGenerator (production) and FixedGenerator (tests).
type TabIDGenerator interface {
	Generate() string
}

// UUIDGenerator generates time-sortable UUIDv7 tab ids.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if the random source fails.
func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined tab ids for tests.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
// Panics if all ids have been consumed.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
