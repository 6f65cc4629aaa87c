package engine

import (
	"context"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/gateway"
)

// undo describes how to compensate one operation.
type undo struct {
	seq      int64
	key      cart.Key
	touched  bool      // the operation changed the line
	existed  bool      // the line existed before the operation
	prev     cart.Item // the line before the operation
	snapshot cart.Cart // the whole cart before the operation
}

// AddToCart adds item optimistically and confirms it remotely.
//
// The merged cart is applied, persisted and published before any network
// call. If no CartId can be obtained the optimistic change stays. If the
// remote add fails the change is compensated. A non-nil error is
// informational: the engine has already handled it.
func (e *Engine) AddToCart(ctx context.Context, item cart.Item) error {
	switch {
	case item.ID == 0:
		return e.report(&OpError{Code: ErrCodeValidation, Op: "add", SkuNumber: item.SkuNumber, Err: ErrMissingID})
	case item.SkuNumber == "":
		return e.report(&OpError{Code: ErrCodeValidation, Op: "add", Err: ErrMissingSku})
	}
	item.Quantity = cart.ClampQuantity(item.Quantity)

	u := e.apply(ctx, CauseAdd, item.Key(), func(c cart.Cart) cart.Cart {
		return c.Merge(item)
	})

	id, err := e.EnsureCartID(ctx)
	if err != nil {
		return e.report(&OpError{Code: ErrCodeCartID, Op: "add", SkuNumber: item.SkuNumber, Err: err})
	}

	err = e.gateway.AddItem(ctx, gateway.AddItemRequest{
		CartID:       id,
		SkuNumber:    item.SkuNumber,
		Quantity:     item.Quantity,
		Color:        cart.NormalizeColor(item.Color),
		FilamentType: item.FilamentType,
	})
	if err != nil {
		rolled := e.compensate(ctx, u)
		return e.report(&OpError{Code: ErrCodeRemote, Op: "add", SkuNumber: item.SkuNumber, RolledBack: rolled, Err: err})
	}
	return nil
}

// UpdateQuantity sets the quantity of the line matching item's key,
// clamped to at least 1, and confirms it remotely. The remote call needs a
// cached CartId; without one the change is compensated and no request is
// sent.
func (e *Engine) UpdateQuantity(ctx context.Context, item cart.Item, quantity int) error {
	q := cart.ClampQuantity(quantity)
	key := item.Key()

	u := e.apply(ctx, CauseUpdate, key, func(c cart.Cart) cart.Cart {
		return c.SetQuantity(key, q)
	})

	id := e.cachedCartID(ctx)
	if id == "" {
		rolled := e.compensate(ctx, u)
		return e.report(&OpError{Code: ErrCodeCartID, Op: "update", SkuNumber: item.SkuNumber, RolledBack: rolled, Err: ErrNoCartID})
	}

	err := e.gateway.UpdateQuantity(ctx, gateway.UpdateQuantityRequest{
		CartID:   id,
		ItemID:   item.ID,
		Quantity: q,
	})
	if err != nil {
		rolled := e.compensate(ctx, u)
		return e.report(&OpError{Code: ErrCodeRemote, Op: "update", SkuNumber: item.SkuNumber, RolledBack: rolled, Err: err})
	}
	return nil
}

// RemoveFromCart drops every line matching item's id, color and filament
// type. Local only.
func (e *Engine) RemoveFromCart(ctx context.Context, item cart.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.clock.Next()
	next := e.cart.Remove(item)
	for _, it := range e.cart {
		if _, kept := next.Find(it.Key()); !kept {
			e.stamps[it.Key()] = seq
		}
	}
	e.commitLocked(ctx, next, seq, CauseRemove)
}

// ClearCart empties the cart. Local only.
func (e *Engine) ClearCart(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.clock.Next()
	e.stamps = make(map[cart.Key]int64)
	e.commitLocked(ctx, cart.Cart{}, seq, CauseClear)
}

// apply runs one optimistic mutation under the lock and returns what is
// needed to compensate it.
func (e *Engine) apply(ctx context.Context, cause Cause, key cart.Key, mutate func(cart.Cart) cart.Cart) undo {
	e.mu.Lock()
	defer e.mu.Unlock()

	u := undo{
		seq:      e.clock.Next(),
		key:      key,
		snapshot: e.cart.Clone(),
	}
	u.prev, u.existed = e.cart.Find(key)

	next := mutate(e.cart)
	after, present := next.Find(key)
	u.touched = present != u.existed || after != u.prev
	if u.touched {
		e.stamps[key] = u.seq
	}
	e.commitLocked(ctx, next, u.seq, cause)
	return u
}

// compensate undoes a failed operation according to the rollback mode and
// reports whether anything was restored.
func (e *Engine) compensate(ctx context.Context, u undo) bool {
	ctx = context.WithoutCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rollback == RollbackSnapshot {
		e.stamps = make(map[cart.Key]int64)
		e.commitLocked(ctx, u.snapshot, e.clock.Next(), CauseRollback)
		return true
	}

	if !u.touched {
		return false
	}
	if e.stamps[u.key] != u.seq {
		e.logger.Info("discarding stale rollback",
			"sku", u.key.SkuNumber,
			"op_seq", u.seq,
			"line_seq", e.stamps[u.key],
		)
		return false
	}

	var next cart.Cart
	if u.existed {
		next = e.cart.SetQuantity(u.key, u.prev.Quantity)
	} else {
		next = e.cart.Without(u.key)
	}
	delete(e.stamps, u.key)
	e.commitLocked(ctx, next, e.clock.Next(), CauseRollback)
	return true
}
