package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redPLA(qty int) Item {
	return Item{ID: 7, Name: "Vase", Price: 12.5, Quantity: qty, Color: "ff0000", FilamentType: "PLA", SkuNumber: "SKU-7"}
}

func TestMerge_SameKeySumsQuantity(t *testing.T) {
	var c Cart
	c = c.Merge(redPLA(2))
	c = c.Merge(redPLA(3))

	require.Len(t, c, 1)
	assert.Equal(t, 5, c[0].Quantity)
}

func TestMerge_DifferentKeyAppends(t *testing.T) {
	blue := redPLA(1)
	blue.Color = "0000ff"

	c := Cart{redPLA(1)}.Merge(blue)

	require.Len(t, c, 2)
	assert.Equal(t, "ff0000", c[0].Color)
	assert.Equal(t, "0000ff", c[1].Color)
}

func TestMerge_DifferentSkuIsDifferentLine(t *testing.T) {
	other := redPLA(1)
	other.SkuNumber = "SKU-8"

	c := Cart{redPLA(1)}.Merge(other)
	assert.Len(t, c, 2)
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	orig := Cart{redPLA(1)}
	_ = orig.Merge(redPLA(4))
	assert.Equal(t, 1, orig[0].Quantity)
}

func TestSetQuantity(t *testing.T) {
	c := Cart{redPLA(1)}
	updated := c.SetQuantity(redPLA(0).Key(), 9)

	assert.Equal(t, 9, updated[0].Quantity)
	assert.Equal(t, 1, c[0].Quantity)

	missing := c.SetQuantity(Key{ID: 99}, 3)
	assert.True(t, missing.Equal(c))
}

func TestRemove_IgnoresSku(t *testing.T) {
	otherSku := redPLA(1)
	otherSku.SkuNumber = "SKU-OTHER"
	petg := redPLA(1)
	petg.FilamentType = "PETG"

	c := Cart{redPLA(1), otherSku, petg}
	out := c.Remove(Item{ID: 7, Color: "ff0000", FilamentType: "PLA"})

	require.Len(t, out, 1)
	assert.Equal(t, "PETG", out[0].FilamentType)
}

func TestWithout(t *testing.T) {
	otherSku := redPLA(1)
	otherSku.SkuNumber = "SKU-OTHER"

	out := Cart{redPLA(1), otherSku}.Without(redPLA(1).Key())
	require.Len(t, out, 1)
	assert.Equal(t, "SKU-OTHER", out[0].SkuNumber)
}

func TestCountAndTotal(t *testing.T) {
	second := Item{ID: 2, Price: 4, Quantity: 2, SkuNumber: "SKU-2"}
	c := Cart{redPLA(2), second}

	assert.Equal(t, 4, c.Count())
	assert.InDelta(t, 33.0, c.Total(), 1e-9)
}

func TestClone_NilIsEmpty(t *testing.T) {
	var c Cart
	clone := c.Clone()
	assert.NotNil(t, clone)
	assert.Len(t, clone, 0)
}

func TestNormalizeColor(t *testing.T) {
	assert.Equal(t, "#ff0000", NormalizeColor("ff0000"))
	assert.Equal(t, "#ff0000", NormalizeColor("#ff0000"))
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 1, ClampQuantity(0))
	assert.Equal(t, 1, ClampQuantity(-5))
	assert.Equal(t, 1, ClampQuantity(1))
	assert.Equal(t, 7, ClampQuantity(7))
}
