package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/cartsync/internal/bus"
	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/gateway"
	"github.com/roach88/cartsync/internal/store"
)

// Store is the Local Store as seen by the engine.
// Implemented by *store.Store.
type Store interface {
	Cart(ctx context.Context) (cart.Cart, error)
	SaveCart(ctx context.Context, c cart.Cart) error
	CartID(ctx context.Context) (string, error)
	SetCartID(ctx context.Context, id string) error
}

// Gateway is the subset of the remote cart API the engine drives.
// Implemented by *gateway.Client.
type Gateway interface {
	CreateCart(ctx context.Context) (string, error)
	AddItem(ctx context.Context, req gateway.AddItemRequest) error
	UpdateQuantity(ctx context.Context, req gateway.UpdateQuantityRequest) error
}

// RollbackMode selects how a failed remote call is compensated.
type RollbackMode string

const (
	// RollbackLine undoes only the failed operation's effect on its line,
	// and only while no newer operation has touched that line.
	RollbackLine RollbackMode = "line"

	// RollbackSnapshot restores the whole pre-operation cart.
	RollbackSnapshot RollbackMode = "snapshot"
)

// ParseRollbackMode maps a config value to a mode. Empty means RollbackLine.
func ParseRollbackMode(s string) (RollbackMode, error) {
	switch RollbackMode(s) {
	case "", RollbackLine:
		return RollbackLine, nil
	case RollbackSnapshot:
		return RollbackSnapshot, nil
	}
	return "", errors.New("rollback mode must be \"line\" or \"snapshot\"")
}

// Engine is the reconciler for one tab.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - cart, cartID and stamps are guarded by mu
//   - gateway calls never run under mu
type Engine struct {
	tabID    string
	store    Store
	bus      bus.Channel
	gateway  Gateway
	clock    Sequencer
	logger   *slog.Logger
	rollback RollbackMode
	onError  func(error)
	onChange func(Change)
	tabGen   TabIDGenerator

	mu       sync.Mutex
	cart     cart.Cart
	cartID   string
	stamps   map[cart.Key]int64
	watchers map[*changeQueue]struct{}
	closed   bool

	flight singleflight.Group

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The tab id is attached to every record.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTabID fixes the tab id instead of generating one.
func WithTabID(id string) Option {
	return func(e *Engine) {
		e.tabID = id
	}
}

// WithTabIDGenerator sets the tab id source. Default: UUIDGenerator.
func WithTabIDGenerator(g TabIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.tabGen = g
		}
	}
}

// WithRollbackMode sets the compensation policy. Default: RollbackLine.
func WithRollbackMode(m RollbackMode) Option {
	return func(e *Engine) {
		if m != "" {
			e.rollback = m
		}
	}
}

// WithErrorHandler receives every operation error, after any rollback.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) {
		e.onError = fn
	}
}

// WithChangeHook calls fn synchronously for every cart change, before
// watchers see it. fn must not call back into the engine.
func WithChangeHook(fn func(Change)) Option {
	return func(e *Engine) {
		e.onChange = fn
	}
}

// WithClock sets the operation clock. Tabs sharing one clock get globally
// ordered change sequences.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates the engine for one tab, loads the persisted cart and CartId
// and starts listening on ch. The engine takes ownership of ch: Close closes
// it.
func New(s Store, ch bus.Channel, gw Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		bus:      ch,
		gateway:  gw,
		clock:    NewClock(),
		logger:   slog.Default(),
		rollback: RollbackLine,
		tabGen:   UUIDGenerator{},
		stamps:   make(map[cart.Key]int64),
		watchers: make(map[*changeQueue]struct{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tabID == "" {
		e.tabID = e.tabGen.Generate()
	}
	e.logger = e.logger.With("tab", e.tabID)

	ctx := context.Background()
	e.cart = e.load(ctx)
	if id, err := e.store.CartID(ctx); err == nil {
		e.cartID = id
	} else if !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("read cart id failed", "error", err)
	}

	go e.listen()
	return e
}

// TabID returns this tab's id.
func (e *Engine) TabID() string {
	return e.tabID
}

// Cart returns a copy of the in-memory cart.
func (e *Engine) Cart() cart.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

// CartID returns the in-memory CartId, or "" when none is cached.
func (e *Engine) CartID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cartID
}

// Close unsubscribes from the bus, stops the listener and ends all watches.
// Safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.quit)
		e.closeErr = e.bus.Close()
		<-e.done

		e.mu.Lock()
		e.closed = true
		for q := range e.watchers {
			q.Close()
		}
		e.mu.Unlock()
		e.logger.Debug("engine closed")
	})
	return e.closeErr
}

// Focus re-reads the Local Store and adopts its cart. An absent or corrupt
// persisted cart leaves the in-memory cart unchanged.
func (e *Engine) Focus(ctx context.Context) {
	c, err := e.store.Cart(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("ignoring persisted cart on focus", "error", err)
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaceLocked(c, CauseFocus)
}

// Watch calls fn for every cart change, in order, until ctx is done or the
// engine is closed. fn runs on the caller's goroutine.
func (e *Engine) Watch(ctx context.Context, fn func(Change)) error {
	q := newChangeQueue()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.watchers[q] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.watchers, q)
		e.mu.Unlock()
		q.Close()
	}()

	for {
		if c, ok := q.TryDequeue(); ok {
			fn(c)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.Wait():
			if q.drained() {
				return nil
			}
		}
	}
}

// listen applies peer messages until the bus closes or Close is called.
func (e *Engine) listen() {
	defer close(e.done)
	msgs := e.bus.Messages()
	for {
		select {
		case <-e.quit:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			e.handleMessage(m)
		}
	}
}

func (e *Engine) handleMessage(m bus.Message) {
	if m.Sender == e.tabID {
		return
	}
	if err := m.Validate(); err != nil {
		e.logger.Debug("ignoring bus message", "error", err)
		return
	}

	switch m.Type {
	case bus.TypeSync:
		e.mu.Lock()
		e.replaceLocked(m.Payload.Clone(), CausePeerSync)
		e.mu.Unlock()
		e.logger.Debug("peer sync applied", "from", m.Sender, "lines", len(m.Payload))

	case bus.TypeCartMeta:
		e.adoptCartID(m.CartID, m.Sender)
	}
}

// adoptCartID takes a peer's CartId when this tab has none.
func (e *Engine) adoptCartID(id, from string) {
	ctx := context.Background()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cartID != "" {
		return
	}
	stored, err := e.store.CartID(ctx)
	if err == nil {
		e.cartID = stored
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("read cart id failed", "error", err)
	}

	e.cartID = id
	if err := e.store.SetCartID(ctx, id); err != nil {
		e.logger.Warn("persist cart id failed", "error", err)
	}
	e.logger.Debug("adopted peer cart id", "from", from, "cart_id", id)
}

// load reads the persisted cart; absence and corruption yield an empty cart.
func (e *Engine) load(ctx context.Context) cart.Cart {
	c, err := e.store.Cart(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("discarding persisted cart", "error", err)
		}
		return cart.Cart{}
	}
	return c
}

// save persists the cart, best effort.
func (e *Engine) save(ctx context.Context, c cart.Cart) {
	if err := e.store.SaveCart(ctx, c); err != nil {
		e.logger.Warn("persist cart failed", "error", err)
	}
}

// publish broadcasts a message, best effort.
func (e *Engine) publish(m bus.Message) {
	if err := e.bus.Publish(m); err != nil {
		e.logger.Warn("publish failed", "type", m.Type, "error", err)
	}
}

// commitLocked sets the cart, persists it, broadcasts it and notifies
// watchers. Caller holds e.mu.
func (e *Engine) commitLocked(ctx context.Context, next cart.Cart, seq int64, cause Cause) {
	e.cart = next
	e.save(ctx, next)
	e.publish(bus.Sync(e.tabID, next))
	e.notifyLocked(seq, cause)
}

// replaceLocked adopts a whole cart from outside this tab's operations.
// Every line stamp is invalidated. Caller holds e.mu.
func (e *Engine) replaceLocked(next cart.Cart, cause Cause) {
	if next == nil {
		next = cart.Cart{}
	}
	e.cart = next
	e.stamps = make(map[cart.Key]int64)
	e.notifyLocked(e.clock.Next(), cause)
}

// notifyLocked fans a change out to watchers. Caller holds e.mu.
func (e *Engine) notifyLocked(seq int64, cause Cause) {
	if e.onChange != nil {
		e.onChange(Change{Seq: seq, Cause: cause, Cart: e.cart.Clone()})
	}
	for q := range e.watchers {
		q.Enqueue(Change{Seq: seq, Cause: cause, Cart: e.cart.Clone()})
	}
}

// report logs an operation error and hands it to the error handler.
func (e *Engine) report(err *OpError) error {
	e.logger.Warn("cart operation failed",
		"op", err.Op,
		"code", err.Code,
		"sku", err.SkuNumber,
		"rolled_back", err.RolledBack,
		"error", err.Err,
	)
	if e.onError != nil {
		e.onError(err)
	}
	return err
}
