package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/cart"
)

func sampleCart() cart.Cart {
	return cart.Cart{{ID: 7, Name: "Vase", Price: 12.5, Quantity: 2, Color: "ff0000", FilamentType: "PLA", SkuNumber: "SKU-7"}}
}

func TestEncode_SyncEnvelope(t *testing.T) {
	data, err := Encode(Sync("tab-a", sampleCart()))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "sync",
		"sender": "tab-a",
		"payload": [{"id":7,"name":"Vase","price":12.5,"quantity":2,"color":"ff0000","filamentType":"PLA","skuNumber":"SKU-7"}]
	}`, string(data))
}

func TestEncode_CartMetaEnvelope(t *testing.T) {
	data, err := Encode(CartMeta("tab-a", "cart-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"cart_meta","sender":"tab-a","cartId":"cart-1"}`, string(data))
}

func TestEncode_EmptyCartIsArray(t *testing.T) {
	data, err := Encode(Sync("tab-a", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"sync","sender":"tab-a","payload":[]}`, string(data))
}

func TestDecode_RoundTrip(t *testing.T) {
	data, err := Encode(Sync("tab-a", sampleCart()))
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeSync, m.Type)
	assert.Equal(t, "tab-a", m.Sender)
	assert.Equal(t, sampleCart(), m.Payload)
}

func TestDecode_DropsNullItems(t *testing.T) {
	m, err := Decode([]byte(`{"type":"sync","sender":"b","payload":[null,{"id":1,"quantity":1,"skuNumber":"S"}]}`))
	require.NoError(t, err)
	require.Len(t, m.Payload, 1)
	assert.Equal(t, int64(1), m.Payload[0].ID)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `nope`},
		{"unknown type", `{"type":"ping","sender":"b"}`},
		{"missing sender", `{"type":"sync","payload":[]}`},
		{"sync without payload", `{"type":"sync","sender":"b"}`},
		{"sync object payload", `{"type":"sync","sender":"b","payload":{"id":1}}`},
		{"sync null payload", `{"type":"sync","sender":"b","payload":null}`},
		{"cart_meta without id", `{"type":"cart_meta","sender":"b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestSync_CopiesCart(t *testing.T) {
	c := sampleCart()
	m := Sync("a", c)
	c[0].Quantity = 99
	assert.Equal(t, 2, m.Payload[0].Quantity)
}
