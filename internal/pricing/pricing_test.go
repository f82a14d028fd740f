package pricing

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cart-service/internal/models"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestResolvePrice_ScenarioB_CustomPriceWins(t *testing.T) {
	product := &models.Product{Price: *dec("59.90")}
	variant := &models.Variant{SkuID: "s1", Price: dec("20.00")}
	skus := []models.SelectedSku{{SkuID: "s1", CustomPrice: dec("49.90")}}

	got := ResolvePrice(product, variant, skus)
	assert.True(t, got.Equal(decimal.RequireFromString("49.90")), got.String())
}

func TestResolvePrice_ScenarioC_DomesticVariantPrice(t *testing.T) {
	product := &models.Product{Price: *dec("59.90")}
	variant := &models.Variant{Price: dec("35.00")}

	got := ResolvePrice(product, variant, nil)
	assert.True(t, got.Equal(decimal.RequireFromString("35")), got.String())
}

func TestResolvePrice_FallsBackToProductPrice(t *testing.T) {
	product := &models.Product{Price: *dec("59.90")}

	assert.True(t, ResolvePrice(product, nil, nil).Equal(product.Price))
	assert.True(t, ResolvePrice(product, &models.Variant{Size: "M"}, nil).Equal(product.Price))
	assert.True(t, ResolvePrice(nil, nil, nil).IsZero())
}

// Supplier cost must never leak as a sale price when SKU configuration exists.
func TestResolvePrice_NeverSurfacesCostWithSelectedSkus(t *testing.T) {
	productPrice := decimal.RequireFromString("59.90")
	cost := decimal.RequireFromString("20.00")
	custom := decimal.RequireFromString("49.90")

	variantSkus := []string{"", "s1", "other"}
	variantPrices := []*decimal.Decimal{nil, &cost}
	skuIDs := []string{"s1", "s2"}
	customPrices := []*decimal.Decimal{nil, &custom}

	for _, vSku := range variantSkus {
		for _, vPrice := range variantPrices {
			for _, skuID := range skuIDs {
				for _, cPrice := range customPrices {
					name := fmt.Sprintf("variant=%q price=%v sku=%s custom=%v", vSku, vPrice != nil, skuID, cPrice != nil)
					t.Run(name, func(t *testing.T) {
						product := &models.Product{Price: productPrice}
						variant := &models.Variant{SkuID: vSku, Price: vPrice}
						skus := []models.SelectedSku{{SkuID: skuID, Enabled: true, CustomPrice: cPrice, CostPrice: &cost}}

						got := ResolvePrice(product, variant, skus)

						matches := vSku != "" && vSku == skuID && cPrice != nil
						if matches {
							assert.True(t, got.Equal(custom), "custom price must win, got %s", got)
						} else {
							assert.True(t, got.Equal(productPrice), "expected product price, got %s", got)
						}
						assert.False(t, got.Equal(cost), "supplier cost surfaced as sale price")
					})
				}
			}
		}
	}
}

func TestResolveSource(t *testing.T) {
	tests := []struct {
		name    string
		product *models.Product
		want    models.LineSource
	}{
		{"nil", nil, models.AdminSource()},
		{"admin", &models.Product{}, models.AdminSource()},
		{"supplier", &models.Product{SupplierID: "sup-1"}, models.DropshipSource("sup-1")},
		{"selected skus", &models.Product{SelectedSkus: []models.SelectedSku{{SkuID: "s1"}}}, models.DropshipSource("")},
		{"seller", &models.Product{SellerID: "sel-1", SellerCEP: "01001-000"}, models.SellerSource("sel-1", "01001-000")},
		{"supplier beats seller", &models.Product{SupplierID: "sup-1", SellerID: "sel-1"}, models.DropshipSource("sup-1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSource(tt.product))
		})
	}
}
