package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Slot keys used by the cart engine.
const (
	KeyCart   = "cart"
	KeyCartID = "cartId"
)

// ErrNotFound is returned when a slot has never been written.
var ErrNotFound = errors.New("store: slot not found")

// Slot is one stored key with its raw value.
type Slot struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Get returns the raw value of a slot.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get slot %q: %w", key, err)
	}
	return value, nil
}

// Put writes a slot, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("put slot %q: %w", key, err)
	}
	return nil
}

// Delete removes a slot. Deleting a missing slot is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete slot %q: %w", key, err)
	}
	return nil
}

// Slots lists every slot, most recently written first.
func (s *Store) Slots(ctx context.Context) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_at FROM slots
		ORDER BY updated_at DESC, key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var (
			sl Slot
			ns int64
		)
		if err := rows.Scan(&sl.Key, &sl.Value, &ns); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		sl.UpdatedAt = time.Unix(0, ns)
		slots = append(slots, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}
