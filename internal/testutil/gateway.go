package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/cartsync/internal/gateway"
)

// StubGateway is a scriptable in-memory engine.Gateway.
//
// Every call is counted and recorded. Failures are set per operation with
// the Fail* fields. CreateBlock, when non-nil, holds CreateCart until it is
// closed so tests can pile up concurrent callers.
//
// Thread-safety: safe for concurrent use. Set the script fields before the
// stub is shared.
type StubGateway struct {
	// CreateErr fails CreateCart.
	CreateErr error
	// AddErr fails AddItem; AddErrFor overrides it per SKU.
	AddErr    error
	AddErrFor map[string]error
	// UpdateErr fails UpdateQuantity.
	UpdateErr error
	// CreateBlock delays CreateCart until closed.
	CreateBlock chan struct{}
	// AddHook runs inside AddItem before it returns.
	AddHook func(gateway.AddItemRequest)

	mu      sync.Mutex
	creates int
	adds    []gateway.AddItemRequest
	updates []gateway.UpdateQuantityRequest
}

// NewStubGateway creates a stub where every call succeeds.
func NewStubGateway() *StubGateway {
	return &StubGateway{AddErrFor: make(map[string]error)}
}

// CreateCart returns "cart-N".
func (g *StubGateway) CreateCart(ctx context.Context) (string, error) {
	g.mu.Lock()
	g.creates++
	n := g.creates
	block := g.CreateBlock
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.CreateErr != nil {
		return "", g.CreateErr
	}
	return fmt.Sprintf("cart-%d", n), nil
}

// AddItem records the request.
func (g *StubGateway) AddItem(ctx context.Context, req gateway.AddItemRequest) error {
	g.mu.Lock()
	g.adds = append(g.adds, req)
	err := g.AddErr
	if e, ok := g.AddErrFor[req.SkuNumber]; ok {
		err = e
	}
	hook := g.AddHook
	g.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	return err
}

// UpdateQuantity records the request.
func (g *StubGateway) UpdateQuantity(ctx context.Context, req gateway.UpdateQuantityRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, req)
	return g.UpdateErr
}

// Creates returns how many CreateCart calls were made.
func (g *StubGateway) Creates() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates
}

// Adds returns a copy of the AddItem requests.
func (g *StubGateway) Adds() []gateway.AddItemRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.AddItemRequest(nil), g.adds...)
}

// Updates returns a copy of the UpdateQuantity requests.
func (g *StubGateway) Updates() []gateway.UpdateQuantityRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.UpdateQuantityRequest(nil), g.updates...)
}
