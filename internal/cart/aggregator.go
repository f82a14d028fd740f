// Package cart owns the cart of one session: line merging, stock ceilings,
// coupon, shipping and payment selections, and persistence of every change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cart-service/internal/checkout"
	"cart-service/internal/models"
	"cart-service/internal/storage"
)

// CouponRequest is what the coupon service needs to price a code.
type CouponRequest struct {
	TenantID string
	Code     string
	Subtotal decimal.Decimal
}

// CouponValidator returns the discount granted by a coupon code, or an error
// matching ErrInvalidCoupon when the code is rejected.
type CouponValidator interface {
	ValidateCoupon(ctx context.Context, req CouponRequest) (decimal.Decimal, error)
}

// StorageKey is the snapshot key of a session cart.
func StorageKey(tenantID, sessionID string) string {
	return fmt.Sprintf("cart:%s:%s", tenantID, sessionID)
}

// SessionFromKey splits a snapshot key back into tenant and session.
func SessionFromKey(key string) (tenantID, sessionID string, ok bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] != "cart" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// Aggregator is the single writer of one session cart. Every mutation runs
// as read-modify-persist under one lock, so the snapshot in storage matches
// the in-memory cart once the call returns.
type Aggregator struct {
	mu      sync.Mutex
	cart    models.Cart
	loaded  bool
	key     string
	store   storage.Storage
	coupons CouponValidator
	logger  *logrus.Entry

	couponGate   RequestGate
	shippingGate RequestGate

	now func() time.Time
}

// NewAggregator creates the aggregator of a session. store and coupons may be
// nil; without a store nothing is persisted.
func NewAggregator(tenantID, sessionID string, store storage.Storage, coupons CouponValidator, logger *logrus.Entry) *Aggregator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Aggregator{
		cart:    emptyCart(tenantID, sessionID),
		key:     StorageKey(tenantID, sessionID),
		store:   store,
		coupons: coupons,
		logger: logger.WithFields(logrus.Fields{
			"component": "cart_aggregator",
			"tenant_id": tenantID,
			"session":   sessionID,
		}),
		now: time.Now,
	}
}

func emptyCart(tenantID, sessionID string) models.Cart {
	return models.Cart{
		TenantID:  tenantID,
		SessionID: sessionID,
		Lines:     []models.CartLine{},
	}
}

// Key returns the storage key of the cart.
func (a *Aggregator) Key() string { return a.key }

// Cart returns a copy of the current cart.
func (a *Aggregator) Cart(ctx context.Context) (models.Cart, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return models.Cart{}, err
	}
	return cloneCart(a.cart), nil
}

// AddItem adds a line or merges it into the line with the same identity key.
// A merged quantity above the line's stock ceiling fails with
// StockExceededError and the cart is left unchanged.
func (a *Aggregator) AddItem(ctx context.Context, line models.CartLine) (models.Cart, error) {
	if line.Quantity < 1 {
		return models.Cart{}, ErrInvalidQuantity
	}
	return a.mutate(ctx, func(c *models.Cart) error {
		if idx := c.FindLine(line.Key()); idx >= 0 {
			existing := &c.Lines[idx]
			sum := existing.Quantity + line.Quantity
			if sum > line.StockCeiling {
				return &StockExceededError{ProductID: line.ProductID, Requested: sum, Available: line.StockCeiling}
			}
			existing.Quantity = sum
			existing.StockCeiling = line.StockCeiling
			return nil
		}

		if line.Quantity > line.StockCeiling {
			return &StockExceededError{ProductID: line.ProductID, Requested: line.Quantity, Available: line.StockCeiling}
		}
		c.Lines = append(c.Lines, a.newLine(line))
		return nil
	})
}

// UpdateQuantity sets the quantity of a line. Quantities below 1 remove it.
func (a *Aggregator) UpdateQuantity(ctx context.Context, key models.LineKey, quantity int) (models.Cart, error) {
	if quantity < 1 {
		return a.RemoveItem(ctx, key)
	}
	return a.mutate(ctx, func(c *models.Cart) error {
		idx := c.FindLine(key)
		if idx < 0 {
			return ErrLineNotFound
		}
		line := &c.Lines[idx]
		if quantity > line.StockCeiling {
			return &StockExceededError{ProductID: line.ProductID, Requested: quantity, Available: line.StockCeiling}
		}
		line.Quantity = quantity
		return nil
	})
}

// RemoveItem removes the line with the given key.
func (a *Aggregator) RemoveItem(ctx context.Context, key models.LineKey) (models.Cart, error) {
	return a.mutate(ctx, func(c *models.Cart) error {
		idx := c.FindLine(key)
		if idx < 0 {
			return ErrLineNotFound
		}
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		return nil
	})
}

// Merge folds lines from another cart (a guest cart at login, for instance)
// into this one. Quantities above a ceiling are clamped rather than rejected.
// The keys of clamped lines are returned.
func (a *Aggregator) Merge(ctx context.Context, lines []models.CartLine) (models.Cart, []models.LineKey, error) {
	var clamped []models.LineKey
	c, err := a.mutate(ctx, func(c *models.Cart) error {
		clamped = clamped[:0]
		for _, line := range lines {
			if line.Quantity < 1 || line.StockCeiling < 1 {
				continue
			}
			if idx := c.FindLine(line.Key()); idx >= 0 {
				existing := &c.Lines[idx]
				sum := existing.Quantity + line.Quantity
				if sum > line.StockCeiling {
					sum = line.StockCeiling
					clamped = append(clamped, line.Key())
				}
				existing.Quantity = sum
				existing.StockCeiling = line.StockCeiling
				continue
			}
			if line.Quantity > line.StockCeiling {
				line.Quantity = line.StockCeiling
				clamped = append(clamped, line.Key())
			}
			c.Lines = append(c.Lines, a.newLine(line))
		}
		return nil
	})
	return c, clamped, err
}

// ApplyCoupon validates the code with the coupon service and stores the
// discount. A rejected code leaves the current discount in place. When a newer
// coupon request starts before this one returns, this one fails with
// ErrStaleResponse and changes nothing.
func (a *Aggregator) ApplyCoupon(ctx context.Context, code string) (models.Cart, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.Cart{}, &InvalidCouponError{Code: code, Reason: "code is required"}
	}
	if a.coupons == nil {
		return models.Cart{}, errors.New("coupon validation is not configured")
	}

	a.mu.Lock()
	if err := a.ensureLoaded(ctx); err != nil {
		a.mu.Unlock()
		return models.Cart{}, err
	}
	req := CouponRequest{TenantID: a.cart.TenantID, Code: code, Subtotal: a.cart.Subtotal}
	reqCtx, ticket := a.couponGate.Begin(ctx)
	a.mu.Unlock()
	defer ticket.Release()

	amount, err := a.coupons.ValidateCoupon(reqCtx, req)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.couponGate.Current(ticket) {
		a.logger.WithField("code", code).Debug("Dropping superseded coupon response")
		return cloneCart(a.cart), ErrStaleResponse
	}
	if err != nil {
		return cloneCart(a.cart), err
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return a.commitLocked(ctx, func(c *models.Cart) error {
		c.CouponCode = code
		c.CouponAmount = amount
		return nil
	})
}

// RemoveCoupon drops the coupon and its discount.
func (a *Aggregator) RemoveCoupon(ctx context.Context) (models.Cart, error) {
	a.couponGate.Invalidate()
	return a.mutate(ctx, func(c *models.Cart) error {
		c.CouponCode = ""
		c.CouponAmount = decimal.Zero
		return nil
	})
}

// BeginShippingQuote starts a quote request for the current cart. Only the
// latest started request may be applied.
func (a *Aggregator) BeginShippingQuote(ctx context.Context) (context.Context, Ticket, models.Cart, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return ctx, Ticket{}, models.Cart{}, err
	}
	reqCtx, ticket := a.shippingGate.Begin(ctx)
	return reqCtx, ticket, cloneCart(a.cart), nil
}

// ApplyShippingQuote stores a quote and preselects its cheapest option.
func (a *Aggregator) ApplyShippingQuote(ctx context.Context, ticket Ticket, quote models.ShippingQuote) (models.Cart, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.shippingGate.Current(ticket) {
		return cloneCart(a.cart), ErrStaleResponse
	}
	return a.commitLocked(ctx, func(c *models.Cart) error {
		q := quote
		q.Options = append([]models.ShippingOption(nil), quote.Options...)
		if _, ok := q.SelectedOption(); !ok {
			q.Selected = ""
			if cheapest, ok := q.Cheapest(); ok {
				q.Selected = cheapest.Name
			}
		}
		c.ShippingQuote = &q
		return nil
	})
}

// SelectShipping switches the shipping option of the stored quote.
func (a *Aggregator) SelectShipping(ctx context.Context, option string) (models.Cart, error) {
	return a.mutate(ctx, func(c *models.Cart) error {
		return checkout.SelectShipping(c, option)
	})
}

// SelectPayment switches the payment method.
func (a *Aggregator) SelectPayment(ctx context.Context, method models.PaymentMethod) (models.Cart, error) {
	return a.mutate(ctx, func(c *models.Cart) error {
		checkout.SelectPayment(c, method)
		return nil
	})
}

// Update applies fn to the cart as one mutation. fn works on a copy; if it
// returns an error the cart is left unchanged.
func (a *Aggregator) Update(ctx context.Context, fn func(c *models.Cart) error) (models.Cart, error) {
	return a.mutate(ctx, fn)
}

// Clear empties the cart and removes its snapshot from storage.
func (a *Aggregator) Clear(ctx context.Context) models.Cart {
	a.couponGate.Invalidate()
	a.shippingGate.Invalidate()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cart = emptyCart(a.cart.TenantID, a.cart.SessionID)
	a.cart.UpdatedAt = a.now()
	checkout.Compute(&a.cart)
	a.loaded = true

	if a.store != nil {
		if err := a.store.Remove(ctx, a.key); err != nil {
			a.logger.WithError(err).Warn("Failed to remove cart snapshot")
		}
	}
	return cloneCart(a.cart)
}

func (a *Aggregator) mutate(ctx context.Context, fn func(c *models.Cart) error) (models.Cart, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return models.Cart{}, err
	}
	return a.commitLocked(ctx, fn)
}

// commitLocked runs fn on a copy, recomputes totals, swaps the copy in and
// persists it. A shipping quote is dropped when the subtotal or weight it was
// priced for changes. Callers hold a.mu.
func (a *Aggregator) commitLocked(ctx context.Context, fn func(c *models.Cart) error) (models.Cart, error) {
	next := cloneCart(a.cart)
	if err := fn(&next); err != nil {
		return cloneCart(a.cart), err
	}
	next.UpdatedAt = a.now()
	checkout.Compute(&next)
	if next.ShippingQuote != nil && quoteStale(&a.cart, &next) {
		// Quotes are priced on value and weight; a changed cart needs a new one.
		a.shippingGate.Invalidate()
		next.ShippingQuote = nil
		checkout.Compute(&next)
	}
	a.cart = next
	a.persist(ctx)
	return cloneCart(a.cart), nil
}

func quoteStale(prev, next *models.Cart) bool {
	return !prev.Subtotal.Equal(next.Subtotal) || !prev.TotalWeight().Equal(next.TotalWeight())
}

func (a *Aggregator) persist(ctx context.Context) {
	if a.store == nil {
		return
	}
	data, err := json.Marshal(a.cart)
	if err != nil {
		a.logger.WithError(err).Error("Failed to encode cart snapshot")
		return
	}
	if err := a.store.Set(ctx, a.key, data); err != nil {
		a.logger.WithError(err).Warn("Failed to persist cart snapshot")
	}
}

// ensureLoaded reads the persisted snapshot the first time the cart is used.
// Callers hold a.mu.
func (a *Aggregator) ensureLoaded(ctx context.Context) error {
	if a.loaded || a.store == nil {
		a.loaded = true
		return nil
	}
	data, err := a.store.Get(ctx, a.key)
	if errors.Is(err, storage.ErrNotFound) {
		a.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	var snapshot models.Cart
	if err := json.Unmarshal(data, &snapshot); err != nil {
		a.logger.WithError(err).Warn("Discarding unreadable cart snapshot")
		a.loaded = true
		return nil
	}
	tenantID, sessionID := a.cart.TenantID, a.cart.SessionID
	a.cart = snapshot
	a.cart.TenantID, a.cart.SessionID = tenantID, sessionID
	if a.cart.Lines == nil {
		a.cart.Lines = []models.CartLine{}
	}
	checkout.Compute(&a.cart)
	a.loaded = true
	return nil
}

func (a *Aggregator) newLine(line models.CartLine) models.CartLine {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	if line.AddedAt.IsZero() {
		line.AddedAt = a.now()
	}
	if line.Status == "" {
		line.Status = models.LineStatusAvailable
	}
	return line
}

func cloneCart(c models.Cart) models.Cart {
	out := c
	out.Lines = make([]models.CartLine, len(c.Lines))
	copy(out.Lines, c.Lines)
	if c.ShippingQuote != nil {
		q := *c.ShippingQuote
		q.Options = append([]models.ShippingOption(nil), c.ShippingQuote.Options...)
		out.ShippingQuote = &q
	}
	if c.PaymentMethod != nil {
		pm := *c.PaymentMethod
		out.PaymentMethod = &pm
	}
	return out
}
