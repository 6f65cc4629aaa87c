package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/fakecommerce"
)

// Scenario is one multi-tab cart test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rollback is the compensation mode for every tab. Empty means line.
	Rollback string `yaml:"rollback,omitempty"`

	// Tabs names the tabs, in the order their engines are created.
	// Empty means a single tab named "a".
	Tabs []string `yaml:"tabs,omitempty"`

	// Catalog seeds the fake API's products by SKU.
	Catalog map[string]ProductSpec `yaml:"catalog,omitempty"`

	// Initial is written to the Local Store before any tab starts.
	Initial *InitialState `yaml:"initial,omitempty"`

	// Failures are injected into the fake API before the first step.
	Failures []FailureSpec `yaml:"failures,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked once all steps have run.
	Assertions []Assertion `yaml:"assertions"`
}

// ProductSpec is a catalog entry.
type ProductSpec struct {
	ItemID int64   `yaml:"item_id,omitempty"`
	Name   string  `yaml:"name,omitempty"`
	Price  float64 `yaml:"price,omitempty"`
}

// InitialState is the persisted state tabs start from.
type InitialState struct {
	CartID string     `yaml:"cart_id,omitempty"`
	Cart   []ItemSpec `yaml:"cart,omitempty"`
}

// FailureSpec mirrors fakecommerce.Failure.
type FailureSpec struct {
	Op      string `yaml:"op"`
	Sku     string `yaml:"sku,omitempty"`
	Status  int    `yaml:"status"`
	Message string `yaml:"message,omitempty"`
	Times   int    `yaml:"times,omitempty"`
}

// ItemSpec is a cart line in scenario files.
type ItemSpec struct {
	ID           int64   `yaml:"id"`
	Name         string  `yaml:"name,omitempty"`
	Price        float64 `yaml:"price,omitempty"`
	Quantity     int     `yaml:"quantity"`
	Color        string  `yaml:"color,omitempty"`
	FilamentType string  `yaml:"filament_type,omitempty"`
	Sku          string  `yaml:"sku,omitempty"`
	Image        string  `yaml:"image,omitempty"`
}

// Item converts the YAML form to a cart line.
func (s ItemSpec) Item() cart.Item {
	return cart.Item{
		ID:           s.ID,
		Name:         s.Name,
		Price:        s.Price,
		Quantity:     s.Quantity,
		Color:        s.Color,
		FilamentType: s.FilamentType,
		SkuNumber:    s.Sku,
		Image:        s.Image,
	}
}

func toCart(specs []ItemSpec) cart.Cart {
	c := make(cart.Cart, 0, len(specs))
	for _, s := range specs {
		c = append(c, s.Item())
	}
	return c
}

// Step is one action on one tab.
type Step struct {
	// Tab is the acting tab. Empty means the first tab.
	Tab string `yaml:"tab,omitempty"`

	// Action is add, update, remove, clear or focus.
	Action string `yaml:"action"`

	// Item is required by add, update and remove.
	Item *ItemSpec `yaml:"item,omitempty"`

	// Quantity is the new quantity for update.
	Quantity int `yaml:"quantity,omitempty"`

	// Expect is the expected outcome class. Empty skips the check.
	Expect string `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionRemove = "remove"
	ActionClear  = "clear"
	ActionFocus  = "focus"
)

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Tab selects the tab for cart_equals and cart_id. Empty means every tab.
	Tab string `yaml:"tab,omitempty"`

	// Items is the expected cart for cart_equals and stored_cart.
	Items []ItemSpec `yaml:"items,omitempty"`

	// Op and Count are used by request_count.
	Op    string `yaml:"op,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Value is the expected CartId for cart_id.
	Value string `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertCartEquals   = "cart_equals"
	AssertStoredCart   = "stored_cart"
	AssertRequestCount = "request_count"
	AssertCartID       = "cart_id"
)

var knownOps = map[string]bool{
	fakecommerce.OpCreateCart:       true,
	fakecommerce.OpAddItem:          true,
	fakecommerce.OpUpdateQuantity:   true,
	fakecommerce.OpRemoveItem:       true,
	fakecommerce.OpFetchCart:        true,
	fakecommerce.OpEstimateShipping: true,
}

var knownOutcomes = map[string]bool{
	OutcomeOK:         true,
	OutcomeValidation: true,
	OutcomeCartID:     true,
	OutcomeRemote:     true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(scenario.Tabs) == 0 {
		scenario.Tabs = []string{"a"}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := engine.ParseRollbackMode(s.Rollback); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	tabs := make(map[string]bool, len(s.Tabs))
	for _, name := range s.Tabs {
		if name == "" {
			return fmt.Errorf("tab names must be non-empty")
		}
		if tabs[name] {
			return fmt.Errorf("duplicate tab %q", name)
		}
		tabs[name] = true
	}

	for i, f := range s.Failures {
		if !knownOps[f.Op] {
			return fmt.Errorf("failures[%d]: unknown op %q", i, f.Op)
		}
		if f.Status < 400 || f.Status > 599 {
			return fmt.Errorf("failures[%d]: status must be 4xx or 5xx, got %d", i, f.Status)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step, tabs); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, tabs); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, tabs map[string]bool) error {
	if step.Tab != "" && !tabs[step.Tab] {
		return fmt.Errorf("unknown tab %q", step.Tab)
	}
	if step.Expect != "" && !knownOutcomes[step.Expect] {
		return fmt.Errorf("unknown expect %q", step.Expect)
	}
	switch step.Action {
	case ActionAdd, ActionUpdate, ActionRemove:
		if step.Item == nil {
			return fmt.Errorf("%s requires item", step.Action)
		}
	case ActionClear, ActionFocus:
		if step.Item != nil {
			return fmt.Errorf("%s takes no item", step.Action)
		}
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

// validateAssertion checks that an assertion has required fields for its type.
func validateAssertion(a Assertion, tabs map[string]bool) error {
	if a.Tab != "" && !tabs[a.Tab] {
		return fmt.Errorf("unknown tab %q", a.Tab)
	}
	switch a.Type {
	case AssertCartEquals, AssertStoredCart:
		// An absent items list asserts an empty cart.
		return nil
	case AssertRequestCount:
		if !knownOps[a.Op] {
			return fmt.Errorf("request_count requires a known op, got %q", a.Op)
		}
		if a.Count < 0 {
			return fmt.Errorf("request_count requires count >= 0")
		}
	case AssertCartID:
		// An empty value asserts that no CartId is cached.
		return nil
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
