package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/fakecommerce"
	"github.com/roach88/cartsync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s -> %s (%d lines)\n",
				ev.Step, ev.Tab, ev.Action, ev.Sku, ev.Outcome, len(ev.Cart))
		}
	}
	return buf.String()
}

// AssertionContext carries what assertions inspect once the steps are done.
type AssertionContext struct {
	Ctx     context.Context
	Store   engine.Store
	Fake    *fakecommerce.Server
	Engines map[string]*engine.Engine
	Tabs    []string

	// Wait bounds how long cart_id polls for a peer's cart_meta to land.
	Wait time.Duration
}

// emptyAsEqual treats nil and empty carts alike.
var emptyAsEqual = cmpopts.EquateEmpty()

func formatCart(c cart.Cart) string {
	if len(c) == 0 {
		return "[]"
	}
	parts := make([]string, len(c))
	for i, it := range c {
		parts[i] = fmt.Sprintf("%s x%d (id=%d %s %s)", it.SkuNumber, it.Quantity, it.ID, it.Color, it.FilamentType)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// tabsFor returns the tabs an assertion applies to.
func (a *AssertionContext) tabsFor(assertion Assertion) []string {
	if assertion.Tab != "" {
		return []string{assertion.Tab}
	}
	return a.Tabs
}

// assertCartEquals checks each selected tab's in-memory cart.
func assertCartEquals(trace []TraceEvent, assertion Assertion, actx *AssertionContext) error {
	want := toCart(assertion.Items)
	for _, tab := range actx.tabsFor(assertion) {
		got := actx.Engines[tab].Cart()
		if diff := cmp.Diff(want, got, emptyAsEqual); diff != "" {
			return &AssertionError{
				Type:     AssertCartEquals,
				Expected: fmt.Sprintf("tab %s cart %s", tab, formatCart(want)),
				Actual:   fmt.Sprintf("%s (-want +got):\n%s", formatCart(got), diff),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertStoredCart checks the cart persisted in the Local Store.
func assertStoredCart(trace []TraceEvent, assertion Assertion, actx *AssertionContext) error {
	want := toCart(assertion.Items)
	got, err := actx.Store.Cart(actx.Ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertStoredCart,
			Expected: fmt.Sprintf("stored cart %s", formatCart(want)),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}
	if diff := cmp.Diff(want, got, emptyAsEqual); diff != "" {
		return &AssertionError{
			Type:     AssertStoredCart,
			Expected: fmt.Sprintf("stored cart %s", formatCart(want)),
			Actual:   fmt.Sprintf("%s (-want +got):\n%s", formatCart(got), diff),
			Trace:    trace,
		}
	}
	return nil
}

// assertRequestCount checks how many requests of one op reached the fake API.
func assertRequestCount(trace []TraceEvent, assertion Assertion, actx *AssertionContext) error {
	if n := actx.Fake.Count(assertion.Op); n != assertion.Count {
		return &AssertionError{
			Type:     AssertRequestCount,
			Expected: fmt.Sprintf("%d %s requests", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d requests", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertCartID checks each selected tab's cached CartId. cart_meta delivery
// is asynchronous, so the check polls up to actx.Wait.
func assertCartID(trace []TraceEvent, assertion Assertion, actx *AssertionContext) error {
	for _, tab := range actx.tabsFor(assertion) {
		eng := actx.Engines[tab]
		deadline := time.Now().Add(actx.Wait)
		got := eng.CartID()
		for got != assertion.Value && time.Now().Before(deadline) {
			time.Sleep(pollInterval)
			got = eng.CartID()
		}
		if got != assertion.Value {
			return &AssertionError{
				Type:     AssertCartID,
				Expected: fmt.Sprintf("tab %s cart id %q", tab, assertion.Value),
				Actual:   fmt.Sprintf("%q", got),
				Trace:    trace,
			}
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCartEquals:
			err = assertCartEquals(result.Trace, assertion, actx)
		case AssertStoredCart:
			err = assertStoredCart(result.Trace, assertion, actx)
		case AssertRequestCount:
			err = assertRequestCount(result.Trace, assertion, actx)
		case AssertCartID:
			err = assertCartID(result.Trace, assertion, actx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
