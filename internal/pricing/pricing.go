// Package pricing decides the sale price of a product selection and the
// fulfilment source of the resulting cart line.
package pricing

import (
	"github.com/shopspring/decimal"

	"cart-service/internal/models"
)

// ResolvePrice returns the sale price for a product and the selected variant.
//
//  1. A seller custom price configured for the variant's SKU.
//  2. The variant price, only for products without seller SKU configuration.
//  3. The product's own listed price.
//
// When selectedSkus is non-empty the variant price is supplier cost and is
// never returned.
func ResolvePrice(product *models.Product, variant *models.Variant, selectedSkus []models.SelectedSku) decimal.Decimal {
	if variant != nil && variant.SkuID != "" {
		if sku, ok := models.FindSelectedSku(selectedSkus, variant.SkuID); ok && sku.CustomPrice != nil {
			return *sku.CustomPrice
		}
	}
	if len(selectedSkus) == 0 && variant != nil && variant.Price != nil {
		return *variant.Price
	}
	if product == nil {
		return decimal.Zero
	}
	return product.Price
}

// ResolveSource tags who fulfils the product. Supplier-backed products, or any
// product carrying seller SKU configuration, are dropship.
func ResolveSource(product *models.Product) models.LineSource {
	if product == nil {
		return models.AdminSource()
	}
	switch {
	case product.SupplierID != "" || len(product.SelectedSkus) > 0:
		return models.DropshipSource(product.SupplierID)
	case product.SellerID != "":
		return models.SellerSource(product.SellerID, product.SellerCEP)
	default:
		return models.AdminSource()
	}
}
