// Package harness runs multi-tab cart scenarios against real engines.
//
// Every scenario gets a fresh fake commerce API behind httptest, an
// in-process bus hub, one shared in-memory SQLite store and one engine per
// tab. Steps run in order; after each step the harness waits until every
// peer has applied every sync broadcast so the next step starts from a
// settled state.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rollback: line            # or snapshot; default line
//	tabs: [a, b]              # default [a]
//	catalog:
//	  SKU-7: { item_id: 7, name: Red PLA, price: 25 }
//	initial:
//	  cart_id: cart-0
//	  cart:
//	    - { id: 7, sku: SKU-7, quantity: 1, color: ff0000, filament_type: PLA }
//	failures:
//	  - { op: add_item, sku: SKU-9, status: 409, message: Out of stock, times: 1 }
//	steps:
//	  - tab: a
//	    action: add
//	    item: { id: 7, sku: SKU-7, quantity: 2, color: "#FF0000", filament_type: PLA }
//	    expect: ok
//	assertions:
//	  - { type: cart_equals, tab: b, items: [...] }
//	  - { type: stored_cart, items: [...] }
//	  - { type: request_count, op: create_cart, count: 1 }
//	  - { type: cart_id, tab: b, value: cart-1 }
//
// # Actions
//
//   - add: AddToCart(item)
//   - update: UpdateQuantity(item, quantity)
//   - remove: RemoveFromCart(item)
//   - clear: ClearCart
//   - focus: Focus
//
// A step's expect is the outcome class: ok, validation, cart_id or remote.
//
// # Deterministic Testing
//
// Tabs share a testutil.RecordingClock and get ids from
// testutil.SequentialTabIDs ("tab-1", "tab-2", ...) in declaration order.
// The trace records each step's outcome and resulting cart plus every
// request the fake API received, and is compared against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/add_creates_cart.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
