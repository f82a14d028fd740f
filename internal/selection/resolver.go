// Package selection resolves what a buyer may pick for a product and whether
// the current pick can be bought.
package selection

import (
	"errors"

	"cart-service/internal/catalog"
	"cart-service/internal/models"
)

// ErrSelectionIncomplete is returned when a required size or color is missing.
var ErrSelectionIncomplete = errors.New("selection incomplete: choose size and color")

// State is the position of a selection in the size -> color flow.
type State string

const (
	StateInitial       State = "INITIAL"
	StateSizeChosen    State = "SIZE_CHOSEN"
	StateFullySelected State = "FULLY_SELECTED"
)

// Resolver holds the size/color/quantity selection for one product view.
type Resolver struct {
	product  *models.Product
	catalog  *catalog.Catalog
	size     string
	color    string
	quantity int
}

// New creates a resolver. A product with a single in-stock size starts with
// that size selected.
func New(product *models.Product, cat *catalog.Catalog) *Resolver {
	if cat == nil {
		cat = catalog.FromProduct(product)
	}
	r := &Resolver{product: product, catalog: cat, quantity: 1}
	if sizes := cat.SizesWithStock(); len(sizes) == 1 {
		r.size = sizes[0]
	}
	return r
}

// Catalog returns the catalog the resolver reads from.
func (r *Resolver) Catalog() *catalog.Catalog { return r.catalog }

// Product returns the product being selected.
func (r *Resolver) Product() *models.Product { return r.product }

func (r *Resolver) Size() string  { return r.size }
func (r *Resolver) Color() string { return r.color }
func (r *Resolver) Quantity() int { return r.quantity }

// Sizes returns the sizes the buyer may pick.
func (r *Resolver) Sizes() []string {
	return r.catalog.SizesWithStock()
}

// Colors returns the colors offered for the selected size.
func (r *Resolver) Colors() []catalog.ColorOption {
	if r.size == "" {
		return []catalog.ColorOption{}
	}
	return r.catalog.ColorsForSize(r.size)
}

// SelectSize picks a size, clearing the color and resetting quantity to 1.
// Sizes without stock are ignored.
func (r *Resolver) SelectSize(size string) bool {
	if !contains(r.Sizes(), size) {
		return false
	}
	r.size = size
	r.color = ""
	r.quantity = 1
	return true
}

// SelectColor picks a color offered for the selected size. Anything else is
// ignored and the selection is left as it was.
func (r *Resolver) SelectColor(color string) bool {
	for _, opt := range r.Colors() {
		if opt.Name == color {
			r.color = color
			r.clampQuantity()
			return true
		}
	}
	return false
}

// State returns the current state of the selection.
func (r *Resolver) State() State {
	if !r.catalog.HasVariants() {
		return StateFullySelected
	}
	if r.size == "" {
		return StateInitial
	}
	if r.color == "" && len(r.Colors()) > 0 {
		return StateSizeChosen
	}
	return StateFullySelected
}

// SelectedVariant returns the variant of a complete selection.
func (r *Resolver) SelectedVariant() (models.Variant, bool) {
	if !r.catalog.HasVariants() || r.State() != StateFullySelected {
		return models.Variant{}, false
	}
	return r.catalog.VariantFor(r.size, r.color)
}

// EffectiveStock is the variant stock of a complete selection, otherwise the
// product stock.
func (r *Resolver) EffectiveStock() int {
	if v, ok := r.SelectedVariant(); ok {
		return v.Stock
	}
	if r.product == nil {
		return 0
	}
	return r.product.Stock
}

// NeedsSizeSelection reports whether the buyer has to choose between sizes.
func (r *Resolver) NeedsSizeSelection() bool {
	return len(r.Sizes()) > 1
}

// PurchaseReady reports whether the selection can be added to the cart.
func (r *Resolver) PurchaseReady() bool {
	return r.EffectiveStock() > 0 && r.State() == StateFullySelected
}

// Validate returns ErrSelectionIncomplete unless the selection is complete.
func (r *Resolver) Validate() error {
	if r.State() != StateFullySelected {
		return ErrSelectionIncomplete
	}
	return nil
}

// Increment raises the quantity by one unless it would pass the stock.
func (r *Resolver) Increment() bool {
	if r.quantity+1 > r.EffectiveStock() {
		return false
	}
	r.quantity++
	return true
}

// Decrement lowers the quantity by one unless it would go below 1.
func (r *Resolver) Decrement() bool {
	if r.quantity <= 1 {
		return false
	}
	r.quantity--
	return true
}

// SetQuantity sets the quantity when it lies within [1, EffectiveStock].
func (r *Resolver) SetQuantity(n int) bool {
	if n < 1 || n > r.EffectiveStock() {
		return false
	}
	r.quantity = n
	return true
}

func (r *Resolver) clampQuantity() {
	if stock := r.EffectiveStock(); r.quantity > stock {
		r.quantity = stock
	}
	if r.quantity < 1 {
		r.quantity = 1
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
