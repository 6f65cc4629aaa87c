package engine

import (
	"context"
	"errors"

	"github.com/roach88/cartsync/internal/bus"
	"github.com/roach88/cartsync/internal/store"
)

const cartIDFlight = "cart-id"

// EnsureCartID returns the cached CartId, creating a remote cart when none
// exists. Concurrent callers share one create request. Nothing is cached on
// failure, so a later call retries.
func (e *Engine) EnsureCartID(ctx context.Context) (string, error) {
	if id := e.cachedCartID(ctx); id != "" {
		return id, nil
	}

	ch := e.flight.DoChan(cartIDFlight, func() (any, error) {
		// One caller giving up must not fail the others.
		fctx := context.WithoutCancel(ctx)
		if id := e.cachedCartID(fctx); id != "" {
			return id, nil
		}

		id, err := e.gateway.CreateCart(fctx)
		if err != nil {
			return "", err
		}

		e.mu.Lock()
		e.cartID = id
		if err := e.store.SetCartID(fctx, id); err != nil {
			e.logger.Warn("persist cart id failed", "error", err)
		}
		e.mu.Unlock()

		e.publish(bus.CartMeta(e.tabID, id))
		e.logger.Info("cart created", "cart_id", id)
		return id, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// cachedCartID returns the CartId from memory, falling back to the Local
// Store. A stored id is promoted into memory.
func (e *Engine) cachedCartID(ctx context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cartID != "" {
		return e.cartID
	}
	id, err := e.store.CartID(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("read cart id failed", "error", err)
		}
		return ""
	}
	e.cartID = id
	return id
}
