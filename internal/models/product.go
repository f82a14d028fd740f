package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// SingleSize is the size label used for products sold in one size only.
const SingleSize = "ÚNICO"

// Product is the read-only product payload returned by the catalog API.
// Variants is kept raw because the API may send it as a native array, a JSON
// string, or a JSON string that was encoded more than once.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Weight       decimal.Decimal `json:"weight"`
	Images       []string        `json:"images,omitempty"`
	Variants     json.RawMessage `json:"variants,omitempty"`
	SelectedSkus []SelectedSku   `json:"selectedSkus,omitempty"`
	SupplierID   string          `json:"supplierId,omitempty"`
	SellerID     string          `json:"sellerId,omitempty"`
	SellerCEP    string          `json:"sellerCep,omitempty"`
}

// MainImage returns the first image URL, or "" when the product has none.
func (p *Product) MainImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Variant is one cell of the sparse size x color matrix of a product.
// Price, when present, is the supplier cost and never a sale price on its own.
type Variant struct {
	Size     string           `json:"size"`
	Color    string           `json:"color,omitempty"`
	ColorHex string           `json:"colorHex,omitempty"`
	Stock    int              `json:"stock"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	SkuID    string           `json:"skuId,omitempty"`
}

// SelectedSku is the seller configuration for a supplier-sourced SKU.
type SelectedSku struct {
	SkuID       string           `json:"skuId"`
	Enabled     bool             `json:"enabled"`
	CustomPrice *decimal.Decimal `json:"customPrice,omitempty"`
	CustomStock *int             `json:"customStock,omitempty"`
	Margin      *decimal.Decimal `json:"margin,omitempty"`
	CostPrice   *decimal.Decimal `json:"costPrice,omitempty"`
}

// FindSelectedSku returns the SKU configuration with the given id.
func FindSelectedSku(skus []SelectedSku, skuID string) (SelectedSku, bool) {
	if skuID == "" {
		return SelectedSku{}, false
	}
	for _, sku := range skus {
		if sku.SkuID == skuID {
			return sku, true
		}
	}
	return SelectedSku{}, false
}

// ProductResponse is the envelope used by the products API.
type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
}
