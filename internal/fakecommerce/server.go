// Package fakecommerce is an in-memory implementation of the remote cart API.
//
// It backs gateway and engine tests, the scenario harness, and
// `cartsync fake-gateway` for local development. Failures can be injected
// per operation and SKU, and every request is recorded so tests can assert
// on exactly what reached the server.
package fakecommerce

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Operation names recorded in the request log.
const (
	OpCreateCart       = "create_cart"
	OpAddItem          = "add_item"
	OpUpdateQuantity   = "update_quantity"
	OpRemoveItem       = "remove_item"
	OpFetchCart        = "fetch_cart"
	OpEstimateShipping = "estimate_shipping"
)

// SessionCookie is set on cart creation and checked when sessions are required.
const SessionCookie = "cart_session"

// Product is a catalog entry keyed by SKU.
type Product struct {
	// ItemID is the line id given to new lines of this product. Zero means
	// a server-assigned sequential id.
	ItemID        int64
	ProductID     string
	Name          string
	Price         float64
	StripePriceID string
}

// Failure makes matching requests fail.
type Failure struct {
	Op string
	// Sku restricts the failure to one SKU. Empty matches any.
	Sku    string
	Status int
	// Message is sent as {"error": Message}. Empty sends no body.
	Message string
	// Times limits how often the failure fires. Zero means always.
	Times int
}

// Request is one recorded API call.
type Request struct {
	Op           string `json:"op" yaml:"op"`
	CartID       string `json:"cart_id,omitempty" yaml:"cart_id,omitempty"`
	SkuNumber    string `json:"sku,omitempty" yaml:"sku,omitempty"`
	ItemID       int64  `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	Quantity     int    `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Color        string `json:"color,omitempty" yaml:"color,omitempty"`
	FilamentType string `json:"filament_type,omitempty" yaml:"filament_type,omitempty"`
	Status       int    `json:"status" yaml:"status"`
}

// Line is one server-side cart line.
type Line struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	SkuNumber     string  `json:"skuNumber"`
	ProductID     string  `json:"productId"`
	Quantity      int     `json:"quantity"`
	Color         string  `json:"color"`
	FilamentType  string  `json:"filamentType"`
	StripePriceID *string `json:"stripePriceId"`
	Price         float64 `json:"price"`
}

// Server is the fake API.
//
// Thread-safety: all methods are safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	carts    map[string][]Line
	order    []string
	nextCart int
	nextLine int64
	catalog  map[string]Product
	failures []*Failure
	requests []Request

	shippingBase    float64
	shippingPerUnit float64
	requireSession  bool
	delay           time.Duration
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog registers products by SKU.
func WithCatalog(products map[string]Product) Option {
	return func(s *Server) {
		for sku, p := range products {
			s.catalog[sku] = p
		}
	}
}

// WithShipping sets the shipping formula: base + perUnit * units.
func WithShipping(base, perUnit float64) Option {
	return func(s *Server) {
		s.shippingBase = base
		s.shippingPerUnit = perUnit
	}
}

// WithRequireSession rejects cart calls that do not carry the session cookie
// issued on creation.
func WithRequireSession() Option {
	return func(s *Server) {
		s.requireSession = true
	}
}

// WithDelay delays every response.
func WithDelay(d time.Duration) Option {
	return func(s *Server) {
		s.delay = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty fake API.
func New(opts ...Option) *Server {
	s := &Server{
		carts:           make(map[string][]Line),
		catalog:         make(map[string]Product),
		shippingBase:    4.99,
		shippingPerUnit: 1.00,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler serving the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.delay > 0 {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				select {
				case <-time.After(s.delay):
				case <-req.Context().Done():
					return
				}
				next.ServeHTTP(w, req)
			})
		})
	}

	r.Route("/cart", func(r chi.Router) {
		r.Post("/create", s.handleCreate)
		r.Post("/add", s.handleAdd)
		r.Put("/update", s.handleUpdate)
		r.Delete("/remove", s.handleRemove)
		r.Get("/shipping", s.handleShipping)
		r.Get("/{cartID}", s.handleFetch)
	})
	return r
}

// Fail registers a failure rule. Rules are checked in registration order.
func (s *Server) Fail(f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule := f
	s.failures = append(s.failures, &rule)
}

// Seed creates an empty cart with a fixed id, as if an earlier session had
// created it. Seeding an existing id is a no-op.
func (s *Server) Seed(cartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[cartID]; ok {
		return
	}
	s.carts[cartID] = []Line{}
	s.order = append(s.order, cartID)
}

// Requests returns a copy of the request log.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests of an operation were received.
func (s *Server) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Op == op {
			n++
		}
	}
	return n
}

// Lines returns a copy of a cart's lines.
func (s *Server) Lines(cartID string) ([]Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.carts[cartID]
	if !ok {
		return nil, false
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out, true
}

// CartIDs returns every created cart id in creation order.
func (s *Server) CartIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// matchFailure returns the first live failure rule for op and sku.
// Caller holds s.mu.
func (s *Server) matchFailure(op, sku string) *Failure {
	for _, f := range s.failures {
		if f.Op != op || (f.Sku != "" && f.Sku != sku) {
			continue
		}
		if f.Times < 0 {
			continue
		}
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				f.Times = -1
			}
		}
		return f
	}
	return nil
}

// record appends to the request log. Caller holds s.mu.
func (s *Server) record(r Request) {
	s.requests = append(s.requests, r)
	s.logger.Debug("fake commerce request", "op", r.Op, "cart", r.CartID, "status", r.Status)
}

// checkSession enforces the session cookie. Caller holds s.mu.
func (s *Server) checkSession(r *http.Request, cartID string) bool {
	if !s.requireSession {
		return true
	}
	c, err := r.Cookie(SessionCookie)
	return err == nil && c.Value == cartID
}

// newCartID returns the next unused sequential id. Caller holds s.mu.
func (s *Server) newCartID() string {
	for {
		s.nextCart++
		id := fmt.Sprintf("cart-%d", s.nextCart)
		if _, seeded := s.carts[id]; !seeded {
			return id
		}
	}
}
