package catalog

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/internal/models"
)

const scenarioA = `[{"size":"M","color":"Red","stock":0},{"size":"M","color":"Blue","colorHex":"#0000ff","stock":3}]`

func encodeString(t *testing.T, payload string) string {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(b)
}

func TestParse_EncodingsResolveToSameCatalog(t *testing.T) {
	native := []byte(scenarioA)
	once := []byte(encodeString(t, scenarioA))
	twice := []byte(encodeString(t, string(once)))

	want := Parse(native)
	require.False(t, want.Empty())

	assert.Equal(t, want.Variants(), Parse(once).Variants())
	assert.Equal(t, want.Variants(), Parse(twice).Variants())
}

func TestParse_ProductFieldDoublyEncoded(t *testing.T) {
	once := encodeString(t, scenarioA)
	body := `{"id":"p1","name":"Shirt","price":"59.90","stock":0,"variants":` + encodeString(t, once) + `}`

	var p models.Product
	require.NoError(t, json.Unmarshal([]byte(body), &p))

	cat := FromProduct(&p)
	assert.True(t, cat.HasVariants())
	assert.Equal(t, []string{"M"}, cat.SizesWithStock())
}

func TestParse_MalformedDegradesToEmpty(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"null":           `null`,
		"object":         `{"size":"M"}`,
		"number":         `42`,
		"broken json":    `[{"size":"M",`,
		"broken string":  `"[{\"size\":`,
		"string of junk": `"hello"`,
		"bad stock type": `[{"size":"M","stock":{"a":1}}]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			res := Parse([]byte(payload))
			assert.True(t, res.Empty())
			assert.Empty(t, res.Variants())
		})
	}
}

func TestParse_UnwrapIsBounded(t *testing.T) {
	payload := scenarioA
	for i := 0; i < MaxUnwrap; i++ {
		payload = encodeString(t, payload)
	}
	assert.False(t, Parse([]byte(payload)).Empty(), "MaxUnwrap layers must still decode")

	payload = encodeString(t, payload)
	assert.True(t, Parse([]byte(payload)).Empty(), "one layer past the cap fails closed")
}

func TestParse_NormalizesLooseFields(t *testing.T) {
	res := Parse([]byte(`[{"size":" P ","color":"Azul","stock":"4","price":"20.00","skuId":123},{"color":"Preto","stock":-2}]`))
	require.Len(t, res.Variants(), 2)

	first := res.Variants()[0]
	assert.Equal(t, "P", first.Size)
	assert.Equal(t, 4, first.Stock)
	assert.Equal(t, "123", first.SkuID)
	require.NotNil(t, first.Price)
	assert.True(t, first.Price.Equal(decimal.RequireFromString("20")))

	second := res.Variants()[1]
	assert.Equal(t, models.SingleSize, second.Size)
	assert.Equal(t, 0, second.Stock)
	assert.Nil(t, second.Price)
}

func TestCatalog_ScenarioA(t *testing.T) {
	cat := New(Parse([]byte(scenarioA)).Variants())

	assert.Equal(t, []string{"M"}, cat.SizesWithStock())
	assert.Equal(t, []ColorOption{{Name: "Blue", Hex: "#0000ff", Stock: 3}}, cat.ColorsForSize("M"))
}

func TestCatalog_Queries(t *testing.T) {
	cat := New([]models.Variant{
		{Size: "P", Color: "Preto", Stock: 0},
		{Size: "M", Color: "Preto", Stock: 2},
		{Size: "P", Color: "Branco", Stock: 1},
		{Size: "M", Color: "Preto", Stock: 9},
		{Size: "G", Color: "Preto", Stock: 0},
		{Size: "M", Color: "Branco", ColorHex: "#fff", Stock: 5},
	})

	assert.Equal(t, []string{"M", "P"}, cat.SizesWithStock())
	assert.Equal(t, []ColorOption{{Name: "Preto", Stock: 2}, {Name: "Branco", Hex: "#fff", Stock: 5}}, cat.ColorsForSize("M"))
	assert.Empty(t, cat.ColorsForSize("G"))
	assert.Empty(t, cat.ColorsForSize("XG"))
	assert.True(t, cat.HasSize("G"), "sold out sizes still exist")
	assert.False(t, cat.HasSize("XG"))

	v, ok := cat.VariantFor("M", "Preto")
	require.True(t, ok)
	assert.Equal(t, 2, v.Stock)

	v, ok = cat.VariantFor("G", "Preto")
	require.True(t, ok)
	assert.Equal(t, 0, v.Stock)

	_, ok = cat.VariantFor("M", "Rosa")
	assert.False(t, ok)
}

func TestCatalog_DuplicateColorPrefersInStockEntry(t *testing.T) {
	cat := New([]models.Variant{
		{Size: "M", Color: "Red", Stock: 0, SkuID: "a"},
		{Size: "M", Color: "Red", Stock: 4, SkuID: "b"},
	})

	assert.Equal(t, []ColorOption{{Name: "Red", Stock: 4}}, cat.ColorsForSize("M"))
	v, ok := cat.VariantFor("M", "Red")
	require.True(t, ok)
	assert.Equal(t, "b", v.SkuID)
}

func TestFromProduct_NilAndMissing(t *testing.T) {
	assert.False(t, FromProduct(nil).HasVariants())
	assert.False(t, FromProduct(&models.Product{ID: "p"}).HasVariants())
}
