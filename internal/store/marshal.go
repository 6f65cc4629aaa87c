package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/cartsync/internal/cart"
)

// DecodeError reports a persisted cart that is not a JSON array of items.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode persisted cart: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if the error is a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Cart returns the persisted cart.
// Returns ErrNotFound when the slot is absent and *DecodeError when its
// content is not a JSON array.
func (s *Store) Cart(ctx context.Context) (cart.Cart, error) {
	raw, err := s.Get(ctx, KeyCart)
	if err != nil {
		return nil, err
	}
	return unmarshalCart(raw)
}

// SaveCart persists the cart as a JSON array.
func (s *Store) SaveCart(ctx context.Context, c cart.Cart) error {
	data, err := marshalCart(c)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return s.Put(ctx, KeyCart, data)
}

// CartID returns the persisted remote cart id, or ErrNotFound.
// An empty stored value counts as absent.
func (s *Store) CartID(ctx context.Context) (string, error) {
	id, err := s.Get(ctx, KeyCartID)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

// SetCartID persists the remote cart id.
func (s *Store) SetCartID(ctx context.Context, id string) error {
	return s.Put(ctx, KeyCartID, id)
}

// marshalCart serializes a cart. A nil cart is written as [] rather than null.
func marshalCart(c cart.Cart) (string, error) {
	if c == nil {
		c = cart.Cart{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(buf.Bytes())), nil
}

// unmarshalCart parses a persisted cart. Null elements are dropped; elements
// that are not item objects are skipped. Anything other than a JSON array is
// a *DecodeError.
func unmarshalCart(raw string) (cart.Cart, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	if elems == nil {
		// Literal "null".
		return nil, &DecodeError{Raw: raw, Err: errors.New("not an array")}
	}

	out := make(cart.Cart, 0, len(elems))
	for _, el := range elems {
		trimmed := bytes.TrimSpace(el)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var it cart.Item
		if err := json.Unmarshal(trimmed, &it); err != nil {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
