package harness

import (
	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/fakecommerce"
)

// Outcome classes a step can end in.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation"
	OutcomeCartID     = "cart_id"
	OutcomeRemote     = "remote"
)

// TraceEvent is one executed step.
type TraceEvent struct {
	Step    int       `json:"step"`
	Tab     string    `json:"tab"`
	Action  string    `json:"action"`
	Sku     string    `json:"sku,omitempty"`
	Outcome string    `json:"outcome"`
	Cart    cart.Cart `json:"cart"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Requests is everything the fake API received, in arrival order.
	Requests []fakecommerce.Request `json:"requests"`

	// Errors is empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Carts is each tab's final in-memory cart, by tab name.
	Carts map[string]cart.Cart `json:"carts,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Requests: []fakecommerce.Request{},
		Errors:   []string{},
		Carts:    make(map[string]cart.Cart),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace.
func (r *Result) AddStep(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
