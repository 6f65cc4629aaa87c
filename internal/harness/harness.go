package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/roach88/cartsync/internal/bus"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/fakecommerce"
	"github.com/roach88/cartsync/internal/gateway"
	"github.com/roach88/cartsync/internal/store"
	"github.com/roach88/cartsync/internal/testutil"
)

const (
	settleTimeout  = 2 * time.Second
	pollInterval   = 2 * time.Millisecond
	requestTimeout = 5 * time.Second
)

// countingChannel counts the sync broadcasts a tab sends.
type countingChannel struct {
	bus.Channel
	syncs atomic.Int64
}

func (c *countingChannel) Publish(m bus.Message) error {
	if err := c.Channel.Publish(m); err != nil {
		return err
	}
	if m.Type == bus.TypeSync {
		c.syncs.Add(1)
	}
	return nil
}

// tab is one scenario tab and its engine.
type tab struct {
	name      string
	engine    *engine.Engine
	ch        *countingChannel
	peerSyncs atomic.Int64
}

// Harness is the scenario execution environment.
type Harness struct {
	store  *store.Store
	fake   *fakecommerce.Server
	server *httptest.Server
	hub    *bus.Hub
	clock  *testutil.RecordingClock
	tabs   []*tab
	byName map[string]*tab
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh in-memory store and seed the initial state
//  2. Start the fake API with the catalog and injected failures
//  3. Start one engine per tab on a shared bus hub
//  4. Execute steps, settling the bus after each
//  5. Evaluate assertions
//
// The returned error covers harness setup; scenario failures are reported
// in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		h.executeStep(ctx, i+1, step, result)
	}

	result.Requests = h.fake.Requests()
	names := make([]string, 0, len(h.tabs))
	engines := make(map[string]*engine.Engine, len(h.tabs))
	for _, t := range h.tabs {
		result.Carts[t.name] = t.engine.Cart()
		names = append(names, t.name)
		engines[t.name] = t.engine
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   h.store,
		Fake:    h.fake,
		Engines: engines,
		Tabs:    names,
		Wait:    settleTimeout,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	mode, err := engine.ParseRollbackMode(scenario.Rollback)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		store:  st,
		hub:    bus.NewHub(),
		clock:  testutil.NewRecordingClock(),
		byName: make(map[string]*tab),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	catalog := make(map[string]fakecommerce.Product, len(scenario.Catalog))
	for sku, p := range scenario.Catalog {
		catalog[sku] = fakecommerce.Product{ItemID: p.ItemID, Name: p.Name, Price: p.Price}
	}
	h.fake = fakecommerce.New(fakecommerce.WithCatalog(catalog), fakecommerce.WithLogger(h.logger))
	for _, f := range scenario.Failures {
		h.fake.Fail(fakecommerce.Failure{Op: f.Op, Sku: f.Sku, Status: f.Status, Message: f.Message, Times: f.Times})
	}

	if err := h.seed(scenario.Initial); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to seed initial state: %w", err)
	}

	h.server = httptest.NewServer(h.fake.Router())

	ids := testutil.NewSequentialTabIDs("tab")
	for _, name := range scenario.Tabs {
		gw, err := gateway.New(h.server.URL,
			gateway.WithTimeout(requestTimeout),
			gateway.WithLogger(h.logger),
		)
		if err != nil {
			h.close()
			return nil, fmt.Errorf("tab %s: %w", name, err)
		}

		t := &tab{name: name, ch: &countingChannel{Channel: h.hub.Open(bus.DefaultChannel)}}
		t.engine = engine.New(st, t.ch, gw,
			engine.WithTabIDGenerator(ids),
			engine.WithClock(h.clock),
			engine.WithRollbackMode(mode),
			engine.WithLogger(h.logger),
			engine.WithChangeHook(func(c engine.Change) {
				if c.Cause == engine.CausePeerSync {
					t.peerSyncs.Add(1)
				}
			}),
		)
		h.tabs = append(h.tabs, t)
		h.byName[name] = t
	}
	return h, nil
}

// seed writes the initial state to the store and registers the initial
// CartId with the fake API.
func (h *Harness) seed(initial *InitialState) error {
	if initial == nil {
		return nil
	}
	ctx := context.Background()
	if len(initial.Cart) > 0 {
		if err := h.store.SaveCart(ctx, toCart(initial.Cart)); err != nil {
			return err
		}
	}
	if initial.CartID != "" {
		if err := h.store.SetCartID(ctx, initial.CartID); err != nil {
			return err
		}
		h.fake.Seed(initial.CartID)
	}
	return nil
}

func (h *Harness) close() {
	for _, t := range h.tabs {
		_ = t.engine.Close()
	}
	if h.server != nil {
		h.server.Close()
	}
	_ = h.store.Close()
}

func (h *Harness) tab(name string) *tab {
	if name == "" {
		return h.tabs[0]
	}
	return h.byName[name]
}

// executeStep runs one step, waits for the bus to settle and records the
// step in the trace.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) {
	t := h.tab(step.Tab)
	ev := TraceEvent{Step: n, Tab: t.name, Action: step.Action}

	var err error
	switch step.Action {
	case ActionAdd:
		ev.Sku = step.Item.Sku
		err = t.engine.AddToCart(ctx, step.Item.Item())
	case ActionUpdate:
		ev.Sku = step.Item.Sku
		err = t.engine.UpdateQuantity(ctx, step.Item.Item(), step.Quantity)
	case ActionRemove:
		ev.Sku = step.Item.Sku
		t.engine.RemoveFromCart(ctx, step.Item.Item())
	case ActionClear:
		t.engine.ClearCart(ctx)
	case ActionFocus:
		t.engine.Focus(ctx)
	}

	if serr := h.settle(); serr != nil {
		result.AddError(fmt.Sprintf("step %d: %v", n, serr))
	}

	ev.Outcome = outcomeOf(err)
	ev.Cart = t.engine.Cart()
	result.AddStep(ev)

	if step.Expect != "" && step.Expect != ev.Outcome {
		result.AddError(fmt.Sprintf("step %d (%s %s %s): expected outcome %s, got %s: %v",
			n, t.name, step.Action, ev.Sku, step.Expect, ev.Outcome, err))
	}
}

// settle waits until every tab has applied every sync its peers sent.
func (h *Harness) settle() error {
	deadline := time.Now().Add(settleTimeout)
	for {
		pending := h.pending()
		if pending == "" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("bus did not settle: %s", pending)
		}
		time.Sleep(pollInterval)
	}
}

// pending describes the first tab still behind its peers, or "".
func (h *Harness) pending() string {
	var sent int64
	for _, t := range h.tabs {
		sent += t.ch.syncs.Load()
	}
	for _, t := range h.tabs {
		want := sent - t.ch.syncs.Load()
		if got := t.peerSyncs.Load(); got != want {
			return fmt.Sprintf("tab %s applied %d of %d peer syncs", t.name, got, want)
		}
	}
	return ""
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case engine.IsValidation(err):
		return OutcomeValidation
	case engine.IsCartIDError(err):
		return OutcomeCartID
	case engine.IsRemote(err):
		return OutcomeRemote
	}
	return "error"
}
