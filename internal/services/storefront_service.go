// Package services orchestrates the storefront flows on top of the cart engine:
// product lookup, selection, pricing, shipping quotes and revalidation.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cart-service/internal/cart"
	"cart-service/internal/catalog"
	"cart-service/internal/checkout"
	"cart-service/internal/models"
	"cart-service/internal/pricing"
	"cart-service/internal/selection"
)

// Cart event types.
const (
	EventItemAdded     = "cart.item_added"
	EventItemRemoved   = "cart.item_removed"
	EventCartCleared   = "cart.cleared"
	EventCouponApplied = "cart.coupon_applied"
)

// ProductSource returns products with their raw variant payloads.
type ProductSource interface {
	GetProduct(ctx context.Context, tenantID, productID string) (*models.Product, error)
}

// CartEventPublisher publishes cart domain events. Implementations must not block.
type CartEventPublisher interface {
	PublishCartEvent(ctx context.Context, eventType string, c models.Cart, data map[string]interface{})
}

// SelectionInput is a buyer's size/color/quantity choice for a product.
type SelectionInput struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity int    `json:"quantity"`
}

// AddItemInput identifies a product selection to add to the cart.
type AddItemInput struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

// SelectionView is what a product page needs to render the picker.
type SelectionView struct {
	ProductID          string                `json:"productId"`
	State              selection.State       `json:"state"`
	Sizes              []string              `json:"sizes"`
	Colors             []catalog.ColorOption `json:"colors"`
	SelectedSize       string                `json:"selectedSize,omitempty"`
	SelectedColor      string                `json:"selectedColor,omitempty"`
	NeedsSizeSelection bool                  `json:"needsSizeSelection"`
	EffectiveStock     int                   `json:"effectiveStock"`
	Quantity           int                   `json:"quantity"`
	Price              decimal.Decimal       `json:"price"`
	PurchaseReady      bool                  `json:"purchaseReady"`
	Source             models.LineSource     `json:"source"`
}

// StorefrontService runs the cart flows of the storefront API.
type StorefrontService struct {
	carts     *cart.Manager
	products  ProductSource
	quoter    *ShippingQuoter
	payments  checkout.PaymentMethods
	publisher CartEventPublisher
	logger    *logrus.Entry
}

func NewStorefrontService(carts *cart.Manager, products ProductSource, quoter *ShippingQuoter, payments checkout.PaymentMethods, publisher CartEventPublisher, logger *logrus.Entry) *StorefrontService {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &StorefrontService{
		carts:     carts,
		products:  products,
		quoter:    quoter,
		payments:  payments,
		publisher: publisher,
		logger:    logger.WithField("component", "storefront_service"),
	}
}

// Cart returns the session cart.
func (s *StorefrontService) Cart(ctx context.Context, tenantID, sessionID string) (models.Cart, error) {
	return s.carts.Get(tenantID, sessionID).Cart(ctx)
}

// ResolveSelection applies a selection to a product and reports the outcome.
// Choices that are not offered are ignored, exactly as the picker would.
func (s *StorefrontService) ResolveSelection(ctx context.Context, tenantID, productID string, in SelectionInput) (*SelectionView, error) {
	p, err := s.products.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	r := selection.New(p, nil)
	if in.Size != "" && in.Size != r.Size() {
		r.SelectSize(in.Size)
	}
	if in.Color != "" {
		r.SelectColor(in.Color)
	}
	if in.Quantity > 0 {
		r.SetQuantity(in.Quantity)
	}

	var variant *models.Variant
	if v, ok := r.SelectedVariant(); ok {
		variant = &v
	}
	return &SelectionView{
		ProductID:          p.ID,
		State:              r.State(),
		Sizes:              r.Sizes(),
		Colors:             r.Colors(),
		SelectedSize:       r.Size(),
		SelectedColor:      r.Color(),
		NeedsSizeSelection: r.NeedsSizeSelection(),
		EffectiveStock:     r.EffectiveStock(),
		Quantity:           r.Quantity(),
		Price:              pricing.ResolvePrice(p, variant, p.SelectedSkus),
		PurchaseReady:      r.PurchaseReady(),
		Source:             pricing.ResolveSource(p),
	}, nil
}

// buildLine fetches the product and resolves the line for a selection.
func (s *StorefrontService) buildLine(ctx context.Context, tenantID string, in AddItemInput) (models.CartLine, error) {
	p, err := s.products.GetProduct(ctx, tenantID, in.ProductID)
	if err != nil {
		return models.CartLine{}, err
	}
	r := selection.New(p, nil)
	soldOut := &cart.StockExceededError{ProductID: p.ID, Requested: in.Quantity, Available: 0}
	if in.Size != "" && in.Size != r.Size() && !r.SelectSize(in.Size) {
		if r.Catalog().HasSize(in.Size) {
			return models.CartLine{}, soldOut
		}
		return models.CartLine{}, fmt.Errorf("%w: size %q is not available", selection.ErrSelectionIncomplete, in.Size)
	}
	if in.Color != "" && !r.SelectColor(in.Color) {
		if _, ok := r.Catalog().VariantFor(r.Size(), in.Color); ok {
			return models.CartLine{}, soldOut
		}
		return models.CartLine{}, fmt.Errorf("%w: color %q is not available", selection.ErrSelectionIncomplete, in.Color)
	}
	return cart.LineFromSelection(r, in.Quantity)
}

// AddItem resolves the selection, prices it and adds it to the cart.
func (s *StorefrontService) AddItem(ctx context.Context, tenantID, sessionID string, in AddItemInput) (models.Cart, error) {
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	line, err := s.buildLine(ctx, tenantID, in)
	if err != nil {
		return models.Cart{}, err
	}

	c, err := s.carts.Get(tenantID, sessionID).AddItem(ctx, line)
	if err != nil {
		return c, err
	}
	s.publish(ctx, EventItemAdded, c, map[string]interface{}{
		"productId": line.ProductID,
		"size":      line.Size,
		"color":     line.Color,
		"quantity":  line.Quantity,
		"unitPrice": line.UnitPrice.String(),
		"source":    line.Source.Kind,
	})
	return c, nil
}

func (s *StorefrontService) lineKey(ctx context.Context, agg *cart.Aggregator, lineID string) (models.LineKey, error) {
	c, err := agg.Cart(ctx)
	if err != nil {
		return models.LineKey{}, err
	}
	line, ok := c.LineByID(lineID)
	if !ok {
		return models.LineKey{}, cart.ErrLineNotFound
	}
	return line.Key(), nil
}

// UpdateLine sets the quantity of a line addressed by id.
func (s *StorefrontService) UpdateLine(ctx context.Context, tenantID, sessionID, lineID string, quantity int) (models.Cart, error) {
	agg := s.carts.Get(tenantID, sessionID)
	key, err := s.lineKey(ctx, agg, lineID)
	if err != nil {
		return models.Cart{}, err
	}
	c, err := agg.UpdateQuantity(ctx, key, quantity)
	if err == nil && quantity < 1 {
		s.publish(ctx, EventItemRemoved, c, map[string]interface{}{"productId": key.ProductID, "lineId": lineID})
	}
	return c, err
}

// RemoveLine removes a line addressed by id.
func (s *StorefrontService) RemoveLine(ctx context.Context, tenantID, sessionID, lineID string) (models.Cart, error) {
	agg := s.carts.Get(tenantID, sessionID)
	key, err := s.lineKey(ctx, agg, lineID)
	if err != nil {
		return models.Cart{}, err
	}
	c, err := agg.RemoveItem(ctx, key)
	if err != nil {
		return c, err
	}
	s.publish(ctx, EventItemRemoved, c, map[string]interface{}{"productId": key.ProductID, "lineId": lineID})
	return c, nil
}

// Clear empties the cart.
func (s *StorefrontService) Clear(ctx context.Context, tenantID, sessionID string) models.Cart {
	c := s.carts.Get(tenantID, sessionID).Clear(ctx)
	s.publish(ctx, EventCartCleared, c, nil)
	return c
}

// ApplyCoupon validates and applies a coupon code.
func (s *StorefrontService) ApplyCoupon(ctx context.Context, tenantID, sessionID, code string) (models.Cart, error) {
	c, err := s.carts.Get(tenantID, sessionID).ApplyCoupon(ctx, code)
	if err != nil {
		return c, err
	}
	s.publish(ctx, EventCouponApplied, c, map[string]interface{}{
		"code":     c.CouponCode,
		"discount": c.Discount.String(),
	})
	return c, nil
}

// RemoveCoupon drops the applied coupon.
func (s *StorefrontService) RemoveCoupon(ctx context.Context, tenantID, sessionID string) (models.Cart, error) {
	return s.carts.Get(tenantID, sessionID).RemoveCoupon(ctx)
}

// MergeResult reports a merge of lines into the session cart.
type MergeResult struct {
	Cart    models.Cart      `json:"cart"`
	Clamped []models.LineKey `json:"clamped"`
	Skipped []AddItemInput   `json:"skipped"`
}

// Merge re-resolves each incoming line against the catalog, so prices and
// ceilings never come from the client, then folds them into the cart.
func (s *StorefrontService) Merge(ctx context.Context, tenantID, sessionID string, items []AddItemInput) (*MergeResult, error) {
	result := &MergeResult{Clamped: []models.LineKey{}, Skipped: []AddItemInput{}}
	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			result.Skipped = append(result.Skipped, item)
			continue
		}
		// resolve with quantity 1 so a short stock clamps instead of failing
		want := item.Quantity
		item.Quantity = 1
		line, err := s.buildLine(ctx, tenantID, item)
		item.Quantity = want
		if err != nil {
			s.logger.WithError(err).WithField("product_id", item.ProductID).Info("Skipping line during merge")
			result.Skipped = append(result.Skipped, item)
			continue
		}
		line.Quantity = want
		lines = append(lines, line)
	}

	c, clamped, err := s.carts.Get(tenantID, sessionID).Merge(ctx, lines)
	if err != nil {
		return nil, err
	}
	result.Cart = c
	if clamped != nil {
		result.Clamped = clamped
	}
	return result, nil
}

// QuoteShipping quotes the cart for a destination and stores the quote with
// its cheapest option selected. weight overrides the weight of the lines.
func (s *StorefrontService) QuoteShipping(ctx context.Context, tenantID, sessionID, zip string, weight *decimal.Decimal) (models.Cart, error) {
	agg := s.carts.Get(tenantID, sessionID)
	reqCtx, ticket, current, err := agg.BeginShippingQuote(ctx)
	if err != nil {
		return models.Cart{}, err
	}
	defer ticket.Release()

	req := models.ShippingRequest{
		DestinationZip: zip,
		CartValue:      current.Subtotal,
		Weight:         current.TotalWeight(),
	}
	if weight != nil {
		req.Weight = *weight
	}

	quote, err := s.quoter.Quote(reqCtx, tenantID, req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return current, cart.ErrStaleResponse
		}
		return current, err
	}
	return agg.ApplyShippingQuote(ctx, ticket, quote)
}

// SelectShipping picks an option of the stored quote.
func (s *StorefrontService) SelectShipping(ctx context.Context, tenantID, sessionID, option string) (models.Cart, error) {
	return s.carts.Get(tenantID, sessionID).SelectShipping(ctx, option)
}

// SelectPaymentMethod applies the merchant discount of a payment method.
func (s *StorefrontService) SelectPaymentMethod(ctx context.Context, tenantID, sessionID, code string) (models.Cart, error) {
	method, err := s.payments.Lookup(code)
	if err != nil {
		return models.Cart{}, err
	}
	return s.carts.Get(tenantID, sessionID).SelectPayment(ctx, method)
}

func (s *StorefrontService) publish(ctx context.Context, eventType string, c models.Cart, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishCartEvent(ctx, eventType, c, data)
}
