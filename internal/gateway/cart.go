package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Operation names, also used as Error.Op.
const (
	OpCreateCart       = "create_cart"
	OpAddItem          = "add_item"
	OpUpdateQuantity   = "update_quantity"
	OpRemoveItem       = "remove_item"
	OpFetchCart        = "fetch_cart"
	OpEstimateShipping = "estimate_shipping"
)

// AddItemRequest is the body of POST /cart/add.
type AddItemRequest struct {
	CartID       string `json:"cartId"`
	SkuNumber    string `json:"skuNumber"`
	Quantity     int    `json:"quantity"`
	Color        string `json:"color"`
	FilamentType string `json:"filamentType"`
}

// UpdateQuantityRequest is the body of PUT /cart/update.
type UpdateQuantityRequest struct {
	CartID   string `json:"cartId"`
	ItemID   int64  `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// RemoveItemRequest is the body of DELETE /cart/remove.
type RemoveItemRequest struct {
	CartID string `json:"cartId"`
	ItemID int64  `json:"itemId"`
}

// RemoteItem is one line of the server-side cart.
type RemoteItem struct {
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

// RemoteCart is the server-side cart.
type RemoteCart struct {
	Items []RemoteItem `json:"items"`
	Total float64      `json:"total"`
}

// CreateCart creates a remote cart and returns its id.
func (c *Client) CreateCart(ctx context.Context) (string, error) {
	var out struct {
		CartID string `json:"cartId"`
	}
	if err := c.do(ctx, OpCreateCart, http.MethodPost, "/cart/create", nil, nil, &out, "Failed to create cart"); err != nil {
		return "", err
	}
	if out.CartID == "" {
		return "", &Error{Op: OpCreateCart, Status: http.StatusOK, Message: ErrMissingCartID.Error()}
	}
	return out.CartID, nil
}

// AddItem adds quantity units of a SKU to the remote cart.
func (c *Client) AddItem(ctx context.Context, req AddItemRequest) error {
	return c.do(ctx, OpAddItem, http.MethodPost, "/cart/add", nil, req, nil, "Add to cart failed")
}

// UpdateQuantity sets the quantity of a remote cart line.
func (c *Client) UpdateQuantity(ctx context.Context, req UpdateQuantityRequest) error {
	return c.do(ctx, OpUpdateQuantity, http.MethodPut, "/cart/update", nil, req, nil, "Failed to update quantity")
}

// RemoveItem removes a remote cart line. Used at checkout; best effort.
func (c *Client) RemoveItem(ctx context.Context, req RemoveItemRequest) error {
	return c.do(ctx, OpRemoveItem, http.MethodDelete, "/cart/remove", nil, req, nil, "Failed to remove item")
}

// FetchCart returns the server-side cart.
func (c *Client) FetchCart(ctx context.Context, cartID string) (*RemoteCart, error) {
	var out RemoteCart
	path := "/cart/" + url.PathEscape(cartID)
	if err := c.do(ctx, OpFetchCart, http.MethodGet, path, nil, nil, &out, "Failed to fetch cart"); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []RemoteItem{}
	}
	return &out, nil
}

// EstimateShipping returns the shipping cost for the cart.
func (c *Client) EstimateShipping(ctx context.Context, cartID string) (float64, error) {
	var out struct {
		ShippingCost *float64 `json:"shippingCost"`
	}
	q := url.Values{"cartId": {cartID}}
	if err := c.do(ctx, OpEstimateShipping, http.MethodGet, "/cart/shipping", q, nil, &out, "Failed to estimate shipping"); err != nil {
		return 0, err
	}
	if out.ShippingCost == nil {
		return 0, &Error{Op: OpEstimateShipping, Status: http.StatusOK, Message: "shippingCost missing in response"}
	}
	return *out.ShippingCost, nil
}
