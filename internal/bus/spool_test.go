package bus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSpool(t *testing.T, dir string, opts ...SpoolOption) *Spool {
	t.Helper()
	s, err := OpenSpool(dir, DefaultChannel, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSpool_DeliversAcrossEndpoints(t *testing.T) {
	dir := t.TempDir()
	a := openTestSpool(t, dir)
	b := openTestSpool(t, dir)

	require.NoError(t, a.Publish(Sync("tab-a", sampleCart())))

	m := receive(t, b.Messages())
	assert.Equal(t, TypeSync, m.Type)
	assert.Equal(t, sampleCart(), m.Payload)
}

func TestSpool_DoesNotEchoToPublisher(t *testing.T) {
	dir := t.TempDir()
	a := openTestSpool(t, dir)
	b := openTestSpool(t, dir)

	require.NoError(t, a.Publish(CartMeta("tab-a", "cart-1")))
	receive(t, b.Messages())

	// Give the publisher's watcher time to see its own file.
	time.Sleep(100 * time.Millisecond)
	assertEmpty(t, a.Messages())
}

func TestSpool_IgnoresMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	a := openTestSpool(t, dir)
	b := openTestSpool(t, dir)

	bad := filepath.Join(dir, DefaultChannel, "00000000000000000001-other-000001.msg")
	require.NoError(t, os.WriteFile(bad, []byte("{garbage"), 0o644))
	require.NoError(t, a.Publish(CartMeta("tab-a", "cart-2")))

	assert.Equal(t, "cart-2", receive(t, b.Messages()).CartID)
}

func TestSpool_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	a := openTestSpool(t, dir, WithRetention(time.Millisecond))

	stale := filepath.Join(dir, DefaultChannel, "00000000000000000001-other-000001.msg")
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	require.NoError(t, a.Publish(CartMeta("tab-a", "cart-3")))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestSpool_CloseIsIdempotent(t *testing.T) {
	s, err := OpenSpool(t.TempDir(), DefaultChannel)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, ok := <-s.Messages()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Publish(CartMeta("tab-a", "x")), ErrClosed)
}
