package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/fakecommerce"
	"github.com/roach88/cartsync/internal/gateway"
)

func newFake(t *testing.T, opts ...fakecommerce.Option) (*fakecommerce.Server, *gateway.Client) {
	t.Helper()
	fake := fakecommerce.New(opts...)
	srv := httptest.NewServer(fake.Router())
	t.Cleanup(srv.Close)

	c, err := gateway.New(srv.URL, gateway.WithTimeout(2*time.Second))
	require.NoError(t, err)
	return fake, c
}

func newRaw(t *testing.T, h http.HandlerFunc) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := gateway.New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := gateway.New("ftp://example.com")
	assert.Error(t, err)

	c, err := gateway.New("https://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", c.BaseURL())
}

func TestClient_RoundTrip(t *testing.T) {
	fake, c := newFake(t, fakecommerce.WithCatalog(map[string]fakecommerce.Product{
		"SKU-7": {ProductID: "p7", Name: "PETG", Price: 24},
	}))
	ctx := context.Background()

	id, err := c.CreateCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-1", id)

	err = c.AddItem(ctx, gateway.AddItemRequest{CartID: id, SkuNumber: "SKU-7", Quantity: 2, Color: "Black", FilamentType: "PETG"})
	require.NoError(t, err)

	remote, err := c.FetchCart(ctx, id)
	require.NoError(t, err)
	require.Len(t, remote.Items, 1)
	assert.Equal(t, "SKU-7", remote.Items[0].SkuNumber)
	assert.Equal(t, 2, remote.Items[0].Quantity)
	assert.InDelta(t, 48.0, remote.Total, 1e-9)

	itemID := remote.Items[0].ID
	require.NoError(t, c.UpdateQuantity(ctx, gateway.UpdateQuantityRequest{CartID: id, ItemID: itemID, Quantity: 5}))
	cost, err := c.EstimateShipping(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 4.99+5, cost, 1e-9)

	require.NoError(t, c.RemoveItem(ctx, gateway.RemoveItemRequest{CartID: id, ItemID: itemID}))
	remote, err = c.FetchCart(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, remote.Items)
	assert.NotNil(t, remote.Items)

	assert.Equal(t, 1, fake.Count(fakecommerce.OpCreateCart))
}

func TestClient_ServerErrorMessage(t *testing.T) {
	fake, c := newFake(t)
	ctx := context.Background()
	id, err := c.CreateCart(ctx)
	require.NoError(t, err)

	fake.Fail(fakecommerce.Failure{Op: fakecommerce.OpAddItem, Status: http.StatusConflict, Message: "Out of stock"})

	err = c.AddItem(ctx, gateway.AddItemRequest{CartID: id, SkuNumber: "X", Quantity: 1})
	require.Error(t, err)

	var ge *gateway.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gateway.OpAddItem, ge.Op)
	assert.Equal(t, http.StatusConflict, ge.Status)
	assert.Equal(t, "Out of stock", ge.Message)
	assert.Equal(t, http.StatusConflict, gateway.StatusCode(err))
}

func TestClient_FallbackMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(*gateway.Client) error
		want string
	}{
		{
			name: "create without body",
			call: func(c *gateway.Client) error { _, err := c.CreateCart(context.Background()); return err },
			want: "Failed to create cart (500)",
		},
		{
			name: "add with non-string error",
			body: `{"error":{"code":1}}`,
			call: func(c *gateway.Client) error {
				return c.AddItem(context.Background(), gateway.AddItemRequest{CartID: "c", SkuNumber: "s", Quantity: 1})
			},
			want: "Add to cart failed (500)",
		},
		{
			name: "update with html body",
			body: `<html>oops</html>`,
			call: func(c *gateway.Client) error {
				return c.UpdateQuantity(context.Background(), gateway.UpdateQuantityRequest{CartID: "c", ItemID: 1, Quantity: 1})
			},
			want: "Failed to update quantity (500)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, tt.body)
			})
			err := tt.call(c)
			var ge *gateway.Error
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tt.want, ge.Message)
			assert.Equal(t, http.StatusInternalServerError, ge.Status)
		})
	}
}

func TestClient_CreateMissingCartID(t *testing.T) {
	c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	_, err := c.CreateCart(context.Background())
	var ge *gateway.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gateway.ErrMissingCartID.Error(), ge.Message)
}

func TestClient_ShippingMissingCost(t *testing.T) {
	c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("cartId"))
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := c.EstimateShipping(context.Background(), "abc")
	assert.Error(t, err)
}

func TestClient_SendsJSONBody(t *testing.T) {
	var got gateway.AddItemRequest
	c := newRaw(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cart/add", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{}`)
	})
	want := gateway.AddItemRequest{CartID: "c1", SkuNumber: "SKU-7", Quantity: 3, Color: "Red", FilamentType: "PLA"}
	require.NoError(t, c.AddItem(context.Background(), want))
	assert.Equal(t, want, got)
}

func TestClient_Timeout(t *testing.T) {
	fake := fakecommerce.New(fakecommerce.WithDelay(500 * time.Millisecond))
	srv := httptest.NewServer(fake.Router())
	t.Cleanup(srv.Close)

	c, err := gateway.New(srv.URL, gateway.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.CreateCart(context.Background())
	require.Error(t, err)
	assert.Zero(t, gateway.StatusCode(err))
}

func TestClient_SessionCookie(t *testing.T) {
	fake, c := newFake(t, fakecommerce.WithRequireSession())
	ctx := context.Background()

	id, err := c.CreateCart(ctx)
	require.NoError(t, err)
	require.NoError(t, c.AddItem(ctx, gateway.AddItemRequest{CartID: id, SkuNumber: "S", Quantity: 1}))

	lines, ok := fake.Lines(id)
	require.True(t, ok)
	assert.Len(t, lines, 1)
}
