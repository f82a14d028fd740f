package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cart-service/internal/cart"
	"cart-service/internal/clients"
	"cart-service/internal/models"
	"cart-service/internal/selection"
	"cart-service/internal/storage"
)

// Issue kinds reported by cart validation.
const (
	IssueOutOfStock   = "OUT_OF_STOCK"
	IssueUnavailable  = "UNAVAILABLE"
	IssueLowStock     = "LOW_STOCK"
	IssuePriceChanged = "PRICE_CHANGED"
)

// LineIssue describes what validation changed on a line.
type LineIssue struct {
	LineID      string           `json:"lineId"`
	ProductID   string           `json:"productId"`
	Size        string           `json:"selectedSize,omitempty"`
	Color       string           `json:"selectedColor,omitempty"`
	Issue       string           `json:"issue"`
	OldQuantity int              `json:"oldQuantity,omitempty"`
	NewQuantity int              `json:"newQuantity,omitempty"`
	OldPrice    *decimal.Decimal `json:"oldPrice,omitempty"`
	NewPrice    *decimal.Decimal `json:"newPrice,omitempty"`
}

// CartValidationResult contains the result of cart validation.
type CartValidationResult struct {
	Cart            models.Cart `json:"cart"`
	Issues          []LineIssue `json:"issues"`
	RemovedCount    int         `json:"removedCount"`
	LowStockCount   int         `json:"lowStockCount"`
	HasPriceChanges bool        `json:"hasPriceChanges"`
	ValidatedAt     time.Time   `json:"validatedAt"`
}

// freshLine is the current price and stock of a cart line's selection.
type freshLine struct {
	price     decimal.Decimal
	stock     int
	available bool
	missing   bool
}

// CartValidator re-checks cart lines against the live catalog.
type CartValidator struct {
	carts    *cart.Manager
	products ProductSource
	logger   *logrus.Entry
}

func NewCartValidator(carts *cart.Manager, products ProductSource, logger *logrus.Entry) *CartValidator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CartValidator{
		carts:    carts,
		products: products,
		logger:   logger.WithField("component", "cart_validator"),
	}
}

// ValidateCart refreshes every line of the session cart. Lines that can no
// longer be bought are removed, quantities above the new stock are clamped,
// and price changes are flagged until accepted.
func (v *CartValidator) ValidateCart(ctx context.Context, tenantID, sessionID string) (*CartValidationResult, error) {
	return v.validate(ctx, v.carts.Get(tenantID, sessionID), tenantID, "")
}

// RevalidateProduct refreshes the lines of one product in every stored cart
// that holds it. It returns the number of carts touched.
func (v *CartValidator) RevalidateProduct(ctx context.Context, tenantID, productID string) (int, error) {
	if inv, ok := v.products.(interface {
		Invalidate(ctx context.Context, tenantID, productID string)
	}); ok {
		inv.Invalidate(ctx, tenantID, productID)
	}

	index, ok := v.carts.Store().(storage.ProductIndex)
	if !ok {
		return 0, nil
	}
	keys, err := index.KeysWithProduct(ctx, productID)
	if err != nil {
		return 0, err
	}

	touched := 0
	for _, key := range keys {
		keyTenant, _, ok := cart.SessionFromKey(key)
		if !ok || (tenantID != "" && keyTenant != tenantID) {
			continue
		}
		agg, _ := v.carts.ForKey(key)
		if _, err := v.validate(ctx, agg, keyTenant, productID); err != nil {
			v.logger.WithError(err).WithField("cart_key", key).Warn("Failed to revalidate cart")
			continue
		}
		touched++
	}
	return touched, nil
}

// AcceptPriceChanges adopts the pending prices of flagged lines.
func (v *CartValidator) AcceptPriceChanges(ctx context.Context, tenantID, sessionID string) (models.Cart, error) {
	return v.carts.Get(tenantID, sessionID).Update(ctx, func(c *models.Cart) error {
		for i := range c.Lines {
			line := &c.Lines[i]
			if line.CurrentPrice == nil {
				continue
			}
			line.UnitPrice = *line.CurrentPrice
			line.CurrentPrice = nil
			line.Status = models.LineStatusAvailable
		}
		return nil
	})
}

// validate refreshes the lines of agg; an empty onlyProduct means all lines.
func (v *CartValidator) validate(ctx context.Context, agg *cart.Aggregator, tenantID, onlyProduct string) (*CartValidationResult, error) {
	current, err := agg.Cart(ctx)
	if err != nil {
		return nil, err
	}

	// products are fetched outside the cart lock
	products := make(map[string]*models.Product)
	missing := make(map[string]bool)
	for _, id := range current.ProductIDs() {
		if onlyProduct != "" && id != onlyProduct {
			continue
		}
		p, err := v.products.GetProduct(ctx, tenantID, id)
		if errors.Is(err, clients.ErrProductNotFound) {
			missing[id] = true
			continue
		}
		if err != nil {
			return nil, err
		}
		products[id] = p
	}

	result := &CartValidationResult{Issues: []LineIssue{}, ValidatedAt: time.Now()}
	c, err := agg.Update(ctx, func(c *models.Cart) error {
		result.Issues = result.Issues[:0]
		result.RemovedCount, result.LowStockCount, result.HasPriceChanges = 0, 0, false

		kept := make([]models.CartLine, 0, len(c.Lines))
		for _, line := range c.Lines {
			var fresh freshLine
			switch {
			case missing[line.ProductID]:
				fresh = freshLine{missing: true}
			case products[line.ProductID] != nil:
				fresh = resolveFresh(products[line.ProductID], line)
			default:
				kept = append(kept, line)
				continue
			}

			if !fresh.available {
				issue := IssueOutOfStock
				if fresh.missing {
					issue = IssueUnavailable
				}
				result.Issues = append(result.Issues, LineIssue{
					LineID: line.ID, ProductID: line.ProductID, Size: line.Size, Color: line.Color,
					Issue: issue, OldQuantity: line.Quantity,
				})
				result.RemovedCount++
				continue
			}

			line.StockCeiling = fresh.stock
			line.Status = models.LineStatusAvailable
			if line.Quantity > fresh.stock {
				result.Issues = append(result.Issues, LineIssue{
					LineID: line.ID, ProductID: line.ProductID, Size: line.Size, Color: line.Color,
					Issue: IssueLowStock, OldQuantity: line.Quantity, NewQuantity: fresh.stock,
				})
				line.Quantity = fresh.stock
				line.Status = models.LineStatusLowStock
				result.LowStockCount++
			}

			line.CurrentPrice = nil
			if !fresh.price.Equal(line.UnitPrice) {
				oldPrice, newPrice := line.UnitPrice, fresh.price
				result.Issues = append(result.Issues, LineIssue{
					LineID: line.ID, ProductID: line.ProductID, Size: line.Size, Color: line.Color,
					Issue: IssuePriceChanged, OldPrice: &oldPrice, NewPrice: &newPrice,
				})
				line.CurrentPrice = &newPrice
				line.Status = models.LineStatusPriceChanged
				result.HasPriceChanges = true
			}
			kept = append(kept, line)
		}
		c.Lines = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Cart = c

	if len(result.Issues) > 0 {
		v.logger.WithFields(logrus.Fields{
			"cart_key":      agg.Key(),
			"issues":        len(result.Issues),
			"removed":       result.RemovedCount,
			"price_changed": result.HasPriceChanges,
		}).Info("Cart revalidated with changes")
	}
	return result, nil
}

// resolveFresh replays the line's selection against the current product.
func resolveFresh(p *models.Product, line models.CartLine) freshLine {
	r := selection.New(p, nil)
	if line.Size != "" && r.Size() != line.Size && !r.SelectSize(line.Size) {
		return freshLine{}
	}
	if line.Color != "" && !r.SelectColor(line.Color) {
		return freshLine{}
	}
	fresh, err := cart.LineFromSelection(r, 1)
	if err != nil {
		return freshLine{}
	}
	return freshLine{price: fresh.UnitPrice, stock: fresh.StockCeiling, available: true}
}
