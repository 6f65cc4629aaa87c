package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/store"
)

func seedStore(t *testing.T, opts *RootOptions, c cart.Cart, cartID string) {
	t.Helper()
	st, err := store.Open(opts.Config.Database)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	if c != nil {
		require.NoError(t, st.SaveCart(ctx, c))
	}
	if cartID != "" {
		require.NoError(t, st.SetCartID(ctx, cartID))
	}
}

func execCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestShowEmptyStore(t *testing.T) {
	opts := testOptions(t, "text", "")

	out, err := execCmd(t, NewShowCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Cart (not created yet)")
	assert.Contains(t, out, "(empty)")
	assert.Contains(t, out, "Items: 0")
}

func TestShowPersistedCart(t *testing.T) {
	opts := testOptions(t, "text", "")
	seedStore(t, opts, cart.Cart{
		{ID: 7, Name: "Red PLA", Price: 25, Quantity: 2, Color: "ff0000", FilamentType: "PLA", SkuNumber: "SKU-7"},
	}, "cart-9")

	out, err := execCmd(t, NewShowCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Cart cart-9")
	assert.Contains(t, out, "SKU-7")
	assert.Contains(t, out, "ff0000/PLA x2")
	assert.Contains(t, out, "Items: 2")
	assert.Contains(t, out, "$")
	assert.Contains(t, out, "50.00")
}

func TestShowJSON(t *testing.T) {
	opts := testOptions(t, "json", "")
	seedStore(t, opts, cart.Cart{
		{ID: 1, Price: 10, Quantity: 3, Color: "000000", FilamentType: "PETG", SkuNumber: "SKU-1"},
	}, "")

	out, err := execCmd(t, NewShowCommand(opts))
	require.NoError(t, err)

	var resp struct {
		Status string   `json:"status"`
		Data   CartView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data.CartID)
	assert.Equal(t, 3, resp.Data.Count)
	assert.InDelta(t, 30.0, resp.Data.Total, 1e-9)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "SKU-1", resp.Data.Items[0].SkuNumber)
}

func TestShowCorruptCartIsEmpty(t *testing.T) {
	opts := testOptions(t, "text", "")
	st, err := store.Open(opts.Config.Database)
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), store.KeyCart, "{not json"))
	require.NoError(t, st.Close())

	out, err := execCmd(t, NewShowCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "(empty)")
}

func TestFormatMoney(t *testing.T) {
	s := formatMoney(12.5)
	assert.Contains(t, s, "$")
	assert.Contains(t, s, "12.50")
}

func TestShowSlots(t *testing.T) {
	opts := testOptions(t, "text", "")

	out, err := execCmd(t, NewShowCommand(opts), "--slots")
	require.NoError(t, err)
	assert.Contains(t, out, "(no slots)")

	seedStore(t, opts, cart.Cart{{ID: 1, Quantity: 1, SkuNumber: "SKU-1"}}, "cart-3")
	out, err = execCmd(t, NewShowCommand(opts), "--slots")
	require.NoError(t, err)
	assert.Contains(t, out, store.KeyCartID)
	assert.Contains(t, out, "cart-3")
	assert.Contains(t, out, `"skuNumber":"SKU-1"`)
}
