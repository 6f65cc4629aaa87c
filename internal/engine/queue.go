package engine

import (
	"sync"

	"github.com/roach88/cartsync/internal/cart"
)

// Cause names what produced a cart change.
type Cause string

const (
	CauseAdd      Cause = "add"
	CauseUpdate   Cause = "update"
	CauseRemove   Cause = "remove"
	CauseClear    Cause = "clear"
	CauseRollback Cause = "rollback"
	CausePeerSync Cause = "peer_sync"
	CauseFocus    Cause = "focus"
)

// Change is one in-memory cart transition delivered to watchers.
type Change struct {
	Seq   int64
	Cause Cause
	Cart  cart.Cart
}

// changeQueue is a thread-safe FIFO of changes for one watcher.
//
// The queue is unbounded so the engine never blocks on a slow observer.
// A buffered signal channel of size 1 lets the consumer wait with select
// alongside its context.
type changeQueue struct {
	mu      sync.Mutex
	changes []Change
	closed  bool
	signal  chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		changes: make([]Change, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a change to the back of the queue.
// Returns false if the queue is closed.
func (q *changeQueue) Enqueue(c Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.changes = append(q.changes, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front change without blocking.
func (q *changeQueue) TryDequeue() (Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.changes) == 0 {
		return Change{}, false
	}
	c := q.changes[0]
	// Release the cart slice held by the backing array.
	q.changes[0] = Change{}
	if len(q.changes) == 1 {
		q.changes = q.changes[:0]
	} else {
		q.changes = q.changes[1:]
	}
	return c, true
}

// Wait returns a channel that signals when changes may be available.
// It is closed when the queue is closed.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// drained reports whether the queue is closed and empty.
func (q *changeQueue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.changes) == 0
}

// Close stops further enqueues and wakes the consumer.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
