package testutil

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingClock_RecordsInOrder(t *testing.T) {
	c := NewRecordingClock()
	assert.Zero(t, c.Current())
	assert.Empty(t, c.Issued())

	for range 3 {
		c.Next()
	}
	assert.Equal(t, int64(3), c.Current())
	assert.Equal(t, []int64{1, 2, 3}, c.Issued())

	issued := c.Issued()
	issued[0] = 99
	assert.Equal(t, int64(1), c.Issued()[0], "Issued must return a copy")
}

func TestRecordingClock_Reset(t *testing.T) {
	c := NewRecordingClock()
	c.Next()
	c.Next()
	c.Reset()

	assert.Zero(t, c.Current())
	assert.Empty(t, c.Issued())
	assert.Equal(t, int64(1), c.Next())
}

func TestRecordingClock_ConcurrentTabs(t *testing.T) {
	c := NewRecordingClock()
	const tabs, opsPerTab = 20, 50

	var wg sync.WaitGroup
	for range tabs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range opsPerTab {
				c.Next()
			}
		}()
	}
	wg.Wait()

	issued := c.Issued()
	require.Len(t, issued, tabs*opsPerTab)
	assert.True(t, slices.IsSorted(issued))
	assert.Equal(t, int64(tabs*opsPerTab), issued[len(issued)-1])
}
