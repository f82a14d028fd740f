package cart

import (
	"cart-service/internal/models"
	"cart-service/internal/pricing"
	"cart-service/internal/selection"
)

// LineFromSelection builds the cart line for a resolved selection. The price
// and fulfilment source are fixed here and carried on the line from then on.
// A product whose variants are all sold out fails on stock, not on selection.
func LineFromSelection(r *selection.Resolver, quantity int) (models.CartLine, error) {
	if cat := r.Catalog(); cat.HasVariants() && len(cat.SizesWithStock()) == 0 {
		return models.CartLine{}, &StockExceededError{ProductID: r.Product().ID, Requested: quantity, Available: 0}
	}
	if err := r.Validate(); err != nil {
		return models.CartLine{}, err
	}
	if quantity < 1 {
		return models.CartLine{}, ErrInvalidQuantity
	}

	p := r.Product()
	stock := r.EffectiveStock()
	if quantity > stock {
		return models.CartLine{}, &StockExceededError{ProductID: p.ID, Requested: quantity, Available: stock}
	}

	var variant *models.Variant
	if v, ok := r.SelectedVariant(); ok {
		variant = &v
	}

	return models.CartLine{
		ProductID:    p.ID,
		Size:         r.Size(),
		Color:        r.Color(),
		Quantity:     quantity,
		UnitPrice:    pricing.ResolvePrice(p, variant, p.SelectedSkus),
		StockCeiling: stock,
		Name:         p.Name,
		Image:        p.MainImage(),
		Slug:         p.Slug,
		Weight:       p.Weight,
		Source:       pricing.ResolveSource(p),
	}, nil
}
