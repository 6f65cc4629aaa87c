package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeQueue_EnqueueDequeue(t *testing.T) {
	q := newChangeQueue()

	ok := q.Enqueue(Change{Seq: 1, Cause: CauseAdd})
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, CauseAdd, got.Cause)
}

func TestChangeQueue_FIFO(t *testing.T) {
	q := newChangeQueue()
	for i := int64(1); i <= 3; i++ {
		q.Enqueue(Change{Seq: i})
	}

	for want := int64(1); want <= 3; want++ {
		c, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, c.Seq)
	}
}

func TestChangeQueue_TryDequeue_Empty(t *testing.T) {
	q := newChangeQueue()
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestChangeQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newChangeQueue()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-q.Wait()
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(Change{Seq: 1})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not signal")
	}
}

func TestChangeQueue_CloseWakesAndDrains(t *testing.T) {
	q := newChangeQueue()
	q.Enqueue(Change{Seq: 1})
	q.Close()
	q.Close()

	// Closed but not empty: not drained yet.
	assert.False(t, q.drained())
	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue must not block Wait")
	}

	_, ok := q.TryDequeue()
	require.True(t, ok, "pending changes survive Close")
	assert.True(t, q.drained())
}

func TestChangeQueue_Enqueue_AfterClose(t *testing.T) {
	q := newChangeQueue()
	q.Close()
	assert.False(t, q.Enqueue(Change{Seq: 1}))
	assert.Equal(t, 0, q.Len())
}

func TestChangeQueue_Len(t *testing.T) {
	q := newChangeQueue()
	assert.Equal(t, 0, q.Len())
	q.Enqueue(Change{Seq: 1})
	q.Enqueue(Change{Seq: 2})
	assert.Equal(t, 2, q.Len())
	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestChangeQueue_ThreadSafe(t *testing.T) {
	q := newChangeQueue()
	const producers, perProducer = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Change{Seq: int64(i)})
			}
		}()
	}

	got := 0
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for {
			if _, ok := q.TryDequeue(); ok {
				got++
				continue
			}
			<-q.Wait()
			if q.drained() {
				return
			}
		}
	}()

	wg.Wait()
	q.Close()
	<-consumed
	assert.Equal(t, producers*perProducer, got)
}
