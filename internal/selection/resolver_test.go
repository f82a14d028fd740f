package selection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/internal/catalog"
	"cart-service/internal/models"
)

func productWith(t *testing.T, stock int, variants []models.Variant) *models.Product {
	t.Helper()
	p := &models.Product{ID: "p1", Name: "Camiseta", Stock: stock}
	if variants != nil {
		raw, err := json.Marshal(variants)
		require.NoError(t, err)
		p.Variants = raw
	}
	return p
}

func TestResolver_ScenarioA_AutoSelectsSingleSize(t *testing.T) {
	p := productWith(t, 0, []models.Variant{
		{Size: "M", Color: "Red", Stock: 0},
		{Size: "M", Color: "Blue", Stock: 3},
	})
	r := New(p, nil)

	assert.Equal(t, "M", r.Size())
	assert.Equal(t, StateSizeChosen, r.State())
	assert.False(t, r.NeedsSizeSelection())
	assert.Equal(t, []catalog.ColorOption{{Name: "Blue", Stock: 3}}, r.Colors())
	assert.False(t, r.PurchaseReady())

	assert.False(t, r.SelectColor("Red"), "out of stock color is not offered")
	assert.Equal(t, "", r.Color())

	require.True(t, r.SelectColor("Blue"))
	assert.Equal(t, StateFullySelected, r.State())
	assert.Equal(t, 3, r.EffectiveStock())
	assert.True(t, r.PurchaseReady())
	assert.NoError(t, r.Validate())
}

func TestResolver_SizeChangeClearsColorAndQuantity(t *testing.T) {
	p := productWith(t, 10, []models.Variant{
		{Size: "P", Color: "Preto", Stock: 4},
		{Size: "M", Color: "Preto", Stock: 2},
		{Size: "M", Color: "Branco", Stock: 1},
	})
	r := New(p, nil)

	assert.Equal(t, StateInitial, r.State())
	assert.True(t, r.NeedsSizeSelection())
	assert.Empty(t, r.Colors())
	assert.ErrorIs(t, r.Validate(), ErrSelectionIncomplete)

	require.True(t, r.SelectSize("P"))
	require.True(t, r.SelectColor("Preto"))
	require.True(t, r.SetQuantity(3))

	require.True(t, r.SelectSize("M"))
	assert.Equal(t, "", r.Color())
	assert.Equal(t, 1, r.Quantity())
	assert.Equal(t, StateSizeChosen, r.State())
	assert.Equal(t, 10, r.EffectiveStock(), "product stock until fully selected")

	assert.False(t, r.SelectSize("G"), "unknown size is ignored")
	assert.Equal(t, "M", r.Size())
}

func TestResolver_NoVariantsUsesProductStock(t *testing.T) {
	r := New(productWith(t, 2, nil), nil)

	assert.Equal(t, StateFullySelected, r.State())
	assert.Equal(t, 2, r.EffectiveStock())
	assert.True(t, r.PurchaseReady())
	_, ok := r.SelectedVariant()
	assert.False(t, ok)

	r = New(productWith(t, 0, nil), nil)
	assert.False(t, r.PurchaseReady())
}

func TestResolver_SizeWithoutColorsIsFullySelected(t *testing.T) {
	r := New(productWith(t, 0, []models.Variant{{Size: "38", Stock: 5}, {Size: "40", Stock: 1}}), nil)
	require.True(t, r.SelectSize("40"))

	assert.Equal(t, StateFullySelected, r.State())
	assert.Equal(t, 1, r.EffectiveStock())
	assert.True(t, r.PurchaseReady())
}

func TestResolver_QuantityClamping(t *testing.T) {
	r := New(productWith(t, 0, []models.Variant{{Size: "M", Color: "Azul", Stock: 2}}), nil)
	require.True(t, r.SelectColor("Azul"))

	assert.False(t, r.Decrement())
	assert.Equal(t, 1, r.Quantity())

	assert.True(t, r.Increment())
	assert.False(t, r.Increment())
	assert.Equal(t, 2, r.Quantity())

	assert.False(t, r.SetQuantity(0))
	assert.False(t, r.SetQuantity(3))
	assert.Equal(t, 2, r.Quantity())

	assert.True(t, r.Decrement())
	assert.Equal(t, 1, r.Quantity())
}

func TestResolver_MalformedVariantsDegradeToProductStock(t *testing.T) {
	p := &models.Product{ID: "p1", Stock: 4, Variants: json.RawMessage(`"[{broken"`)}
	r := New(p, nil)

	assert.Equal(t, StateFullySelected, r.State())
	assert.Equal(t, 4, r.EffectiveStock())
}
