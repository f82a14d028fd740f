package catalog

import (
	"cart-service/internal/models"
)

// ColorOption is a purchasable color of one size.
type ColorOption struct {
	Name  string `json:"name"`
	Hex   string `json:"hex,omitempty"`
	Stock int    `json:"stock"`
}

// Catalog answers size/color/stock queries over a product's variants.
type Catalog struct {
	variants []models.Variant
}

// New builds a catalog from already normalized variants.
func New(variants []models.Variant) *Catalog {
	return &Catalog{variants: variants}
}

// FromProduct parses the product's raw variants payload.
// Malformed payloads yield an empty catalog.
func FromProduct(p *models.Product) *Catalog {
	if p == nil {
		return New(nil)
	}
	return New(Parse(p.Variants).Variants())
}

// HasVariants reports whether the product has any variant at all.
func (c *Catalog) HasVariants() bool {
	return len(c.variants) > 0
}

// Variants returns the normalized variants.
func (c *Catalog) Variants() []models.Variant {
	return c.variants
}

// HasSize reports whether any variant carries the size, in stock or not.
func (c *Catalog) HasSize(size string) bool {
	for _, v := range c.variants {
		if v.Size == size {
			return true
		}
	}
	return false
}

// SizesWithStock returns distinct sizes having at least one variant in stock,
// in first-seen order.
func (c *Catalog) SizesWithStock() []string {
	seen := make(map[string]bool)
	sizes := make([]string, 0)
	for _, v := range c.variants {
		if v.Stock <= 0 || seen[v.Size] {
			continue
		}
		seen[v.Size] = true
		sizes = append(sizes, v.Size)
	}
	return sizes
}

// ColorsForSize returns the in-stock colors of a size. A repeated color name
// keeps its first occurrence. Variants without a color are not options.
func (c *Catalog) ColorsForSize(size string) []ColorOption {
	seen := make(map[string]bool)
	colors := make([]ColorOption, 0)
	for _, v := range c.variants {
		if v.Size != size || v.Stock <= 0 || v.Color == "" || seen[v.Color] {
			continue
		}
		seen[v.Color] = true
		colors = append(colors, ColorOption{Name: v.Color, Hex: v.ColorHex, Stock: v.Stock})
	}
	return colors
}

// VariantFor returns the variant matching size and color. When the payload
// repeats a combination, the in-stock entry that ColorsForSize offered wins.
func (c *Catalog) VariantFor(size, color string) (models.Variant, bool) {
	var match *models.Variant
	for i := range c.variants {
		v := &c.variants[i]
		if v.Size != size || v.Color != color {
			continue
		}
		if v.Stock > 0 {
			return *v, true
		}
		if match == nil {
			match = v
		}
	}
	if match == nil {
		return models.Variant{}, false
	}
	return *match, true
}
