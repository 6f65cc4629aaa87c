package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/cartsync/internal/cart"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testItem creates a cart line with the required remote fields set.
func testItem(id int64, sku string, qty int) cart.Item {
	return cart.Item{
		ID:           id,
		Name:         "Item " + sku,
		Price:        10,
		Quantity:     qty,
		Color:        "#00ff00",
		FilamentType: "PLA",
		SkuNumber:    sku,
	}
}
