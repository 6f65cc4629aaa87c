package fakecommerce

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f := s.matchFailure(OpCreateCart, ""); f != nil {
		s.record(Request{Op: OpCreateCart, Status: f.Status})
		writeError(w, f.Status, f.Message)
		return
	}

	id := s.newCartID()
	s.carts[id] = []Line{}
	s.order = append(s.order, id)
	s.record(Request{Op: OpCreateCart, CartID: id, Status: http.StatusOK})

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: id, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"cartId": id})
}

type addBody struct {
	CartID       string `json:"cartId"`
	SkuNumber    string `json:"skuNumber"`
	Quantity     int    `json:"quantity"`
	Color        string `json:"color"`
	FilamentType string `json:"filamentType"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var body addBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Request{
		Op:           OpAddItem,
		CartID:       body.CartID,
		SkuNumber:    body.SkuNumber,
		Quantity:     body.Quantity,
		Color:        body.Color,
		FilamentType: body.FilamentType,
	}
	fail := func(status int, msg string) {
		rec.Status = status
		s.record(rec)
		writeError(w, status, msg)
	}

	if f := s.matchFailure(OpAddItem, body.SkuNumber); f != nil {
		fail(f.Status, f.Message)
		return
	}
	lines, ok := s.carts[body.CartID]
	if !ok {
		fail(http.StatusNotFound, "cart not found")
		return
	}
	if !s.checkSession(r, body.CartID) {
		fail(http.StatusUnauthorized, "missing session")
		return
	}
	if body.SkuNumber == "" {
		fail(http.StatusBadRequest, "skuNumber is required")
		return
	}
	if body.Quantity < 1 {
		fail(http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	merged := false
	for i := range lines {
		l := &lines[i]
		if l.SkuNumber == body.SkuNumber && l.Color == body.Color && l.FilamentType == body.FilamentType {
			l.Quantity += body.Quantity
			merged = true
			break
		}
	}
	if !merged {
		p := s.catalog[body.SkuNumber]
		id := p.ItemID
		if id == 0 {
			s.nextLine++
			id = s.nextLine
		}
		line := Line{
			ID:           id,
			Name:         p.Name,
			SkuNumber:    body.SkuNumber,
			ProductID:    p.ProductID,
			Quantity:     body.Quantity,
			Color:        body.Color,
			FilamentType: body.FilamentType,
			Price:        p.Price,
		}
		if line.Name == "" {
			line.Name = body.SkuNumber
		}
		if p.StripePriceID != "" {
			price := p.StripePriceID
			line.StripePriceID = &price
		}
		lines = append(lines, line)
	}
	s.carts[body.CartID] = lines

	rec.Status = http.StatusOK
	s.record(rec)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type updateBody struct {
	CartID   string `json:"cartId"`
	ItemID   int64  `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body updateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Request{Op: OpUpdateQuantity, CartID: body.CartID, ItemID: body.ItemID, Quantity: body.Quantity}
	fail := func(status int, msg string) {
		rec.Status = status
		s.record(rec)
		writeError(w, status, msg)
	}

	if f := s.matchFailure(OpUpdateQuantity, ""); f != nil {
		fail(f.Status, f.Message)
		return
	}
	lines, ok := s.carts[body.CartID]
	if !ok {
		fail(http.StatusNotFound, "cart not found")
		return
	}
	if !s.checkSession(r, body.CartID) {
		fail(http.StatusUnauthorized, "missing session")
		return
	}
	if body.Quantity < 1 {
		fail(http.StatusBadRequest, "quantity must be at least 1")
		return
	}
	for i := range lines {
		if lines[i].ID == body.ItemID {
			lines[i].Quantity = body.Quantity
			rec.Status = http.StatusOK
			s.record(rec)
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			return
		}
	}
	fail(http.StatusNotFound, "item not found")
}

type removeBody struct {
	CartID string `json:"cartId"`
	ItemID int64  `json:"itemId"`
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var body removeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Request{Op: OpRemoveItem, CartID: body.CartID, ItemID: body.ItemID}
	fail := func(status int, msg string) {
		rec.Status = status
		s.record(rec)
		writeError(w, status, msg)
	}

	if f := s.matchFailure(OpRemoveItem, ""); f != nil {
		fail(f.Status, f.Message)
		return
	}
	lines, ok := s.carts[body.CartID]
	if !ok {
		fail(http.StatusNotFound, "cart not found")
		return
	}
	if !s.checkSession(r, body.CartID) {
		fail(http.StatusUnauthorized, "missing session")
		return
	}
	for i := range lines {
		if lines[i].ID == body.ItemID {
			s.carts[body.CartID] = append(lines[:i:i], lines[i+1:]...)
			rec.Status = http.StatusOK
			s.record(rec)
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			return
		}
	}
	fail(http.StatusNotFound, "item not found")
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Request{Op: OpFetchCart, CartID: cartID}
	if f := s.matchFailure(OpFetchCart, ""); f != nil {
		rec.Status = f.Status
		s.record(rec)
		writeError(w, f.Status, f.Message)
		return
	}
	lines, ok := s.carts[cartID]
	if !ok {
		rec.Status = http.StatusNotFound
		s.record(rec)
		writeError(w, http.StatusNotFound, "cart not found")
		return
	}

	var total float64
	for _, l := range lines {
		total += l.Price * float64(l.Quantity)
	}
	rec.Status = http.StatusOK
	s.record(rec)
	writeJSON(w, http.StatusOK, map[string]any{"items": lines, "total": total})
}

func (s *Server) handleShipping(w http.ResponseWriter, r *http.Request) {
	cartID := r.URL.Query().Get("cartId")

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Request{Op: OpEstimateShipping, CartID: cartID}
	if f := s.matchFailure(OpEstimateShipping, ""); f != nil {
		rec.Status = f.Status
		s.record(rec)
		writeError(w, f.Status, f.Message)
		return
	}
	lines, ok := s.carts[cartID]
	if !ok {
		rec.Status = http.StatusNotFound
		s.record(rec)
		writeError(w, http.StatusNotFound, "cart not found")
		return
	}

	units := 0
	for _, l := range lines {
		units += l.Quantity
	}
	cost := 0.0
	if units > 0 {
		cost = s.shippingBase + s.shippingPerUnit*float64(units)
	}
	rec.Status = http.StatusOK
	s.record(rec)
	writeJSON(w, http.StatusOK, map[string]float64{"shippingCost": cost})
}
