package cart

import "strings"

// Item is one cart line.
type Item struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	Color        string  `json:"color"`
	FilamentType string  `json:"filamentType"`

	// SkuNumber is the remote line-item key. Remote operations require it.
	SkuNumber string `json:"skuNumber"`

	Image string `json:"image,omitempty"`
}

// Key is the identity of a cart line. Two items with equal keys are the same
// line and are merged by summing quantities.
type Key struct {
	ID           int64
	Color        string
	FilamentType string
	SkuNumber    string
}

// Key returns the identity key of the item.
func (it Item) Key() Key {
	return Key{
		ID:           it.ID,
		Color:        it.Color,
		FilamentType: it.FilamentType,
		SkuNumber:    it.SkuNumber,
	}
}

// sameVariant reports whether two items are the same product variant,
// ignoring the SKU. Removal matches on this coarser tuple.
func (it Item) sameVariant(other Item) bool {
	return it.ID == other.ID && it.Color == other.Color && it.FilamentType == other.FilamentType
}

// Cart is an ordered sequence of unique lines.
type Cart []Item

// Clone returns a deep copy. A nil cart clones to an empty, non-nil cart so
// it always serializes as a JSON array.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Index returns the position of the line with the given key, or -1.
func (c Cart) Index(k Key) int {
	for i, it := range c {
		if it.Key() == k {
			return i
		}
	}
	return -1
}

// Find returns the line with the given key.
func (c Cart) Find(k Key) (Item, bool) {
	if i := c.Index(k); i >= 0 {
		return c[i], true
	}
	return Item{}, false
}

// Merge adds item to the cart. An existing line with the same key gets the
// quantities summed; otherwise the item is appended.
func (c Cart) Merge(item Item) Cart {
	out := c.Clone()
	if i := out.Index(item.Key()); i >= 0 {
		out[i].Quantity += item.Quantity
		return out
	}
	return append(out, item)
}

// SetQuantity sets the quantity of the line with the given key. The cart is
// returned unchanged (as a copy) when no line matches.
func (c Cart) SetQuantity(k Key, quantity int) Cart {
	out := c.Clone()
	if i := out.Index(k); i >= 0 {
		out[i].Quantity = quantity
	}
	return out
}

// Without drops the line with exactly the given key.
func (c Cart) Without(k Key) Cart {
	out := make(Cart, 0, len(c))
	for _, it := range c {
		if it.Key() != k {
			out = append(out, it)
		}
	}
	return out
}

// Remove drops every line matching the item's id, color and filament type.
// The SKU is not compared.
func (c Cart) Remove(item Item) Cart {
	out := make(Cart, 0, len(c))
	for _, it := range c {
		if !it.sameVariant(item) {
			out = append(out, it)
		}
	}
	return out
}

// Count returns the number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, it := range c {
		n += it.Quantity
	}
	return n
}

// Total returns the sum of price times quantity.
func (c Cart) Total() float64 {
	var total float64
	for _, it := range c {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Equal reports whether two carts hold the same lines in the same order.
func (c Cart) Equal(other Cart) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// NormalizeColor ensures the color carries a leading '#'.
func NormalizeColor(color string) string {
	if strings.HasPrefix(color, "#") {
		return color
	}
	return "#" + color
}

// ClampQuantity coerces quantities below 1 up to 1.
func ClampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}
