// Package checkout computes cart totals from lines, the chosen shipping option,
// the coupon discount and the payment method discount.
package checkout

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"cart-service/internal/models"
)

// Currency precision of all stored amounts.
const Places = 2

var (
	ErrUnknownShippingOption = errors.New("shipping option not in quote")
	ErrNoShippingQuote       = errors.New("no shipping quote")
	ErrUnknownPaymentMethod  = errors.New("unknown payment method")
)

var hundred = decimal.NewFromInt(100)

// PaymentDiscount is subtotal x percent / 100, rounded to cents. Shipping is
// never discounted.
func PaymentDiscount(subtotal decimal.Decimal, method *models.PaymentMethod) decimal.Decimal {
	if method == nil || !method.DiscountPercent.IsPositive() {
		return decimal.Zero
	}
	return subtotal.Mul(method.DiscountPercent).Div(hundred).Round(Places)
}

// ShippingCost returns the cost of the selected option, zero when none.
func ShippingCost(quote *models.ShippingQuote) decimal.Decimal {
	opt, ok := quote.SelectedOption()
	if !ok {
		return decimal.Zero
	}
	return opt.Cost()
}

// Compute refreshes every derived amount of the cart. It touches nothing but
// the cart and can be called any number of times. Discounts together never
// exceed the subtotal.
func Compute(c *models.Cart) {
	subtotal := decimal.Zero
	count := 0
	for _, line := range c.Lines {
		subtotal = subtotal.Add(line.LineTotal())
		count += line.Quantity
	}
	c.Subtotal = subtotal.Round(Places)
	c.ItemCount = count

	discount := c.CouponAmount.Round(Places)
	if discount.GreaterThan(c.Subtotal) {
		discount = c.Subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	c.Discount = discount

	c.Shipping = ShippingCost(c.ShippingQuote).Round(Places)
	payment := PaymentDiscount(c.Subtotal, c.PaymentMethod)
	if remaining := c.Subtotal.Sub(c.Discount); payment.GreaterThan(remaining) {
		payment = remaining
	}
	c.PaymentDiscount = payment
	c.Total = c.Subtotal.Add(c.Shipping).Sub(c.Discount).Sub(c.PaymentDiscount)
}

// SelectShipping picks a quoted option by name and recomputes the totals.
func SelectShipping(c *models.Cart, option string) error {
	if c.ShippingQuote == nil {
		return ErrNoShippingQuote
	}
	for _, opt := range c.ShippingQuote.Options {
		if opt.Name == option {
			c.ShippingQuote.Selected = opt.Name
			Compute(c)
			return nil
		}
	}
	return ErrUnknownShippingOption
}

// SelectPayment sets the payment method and recomputes the totals.
func SelectPayment(c *models.Cart, method models.PaymentMethod) {
	c.PaymentMethod = &method
	Compute(c)
}

// PaymentMethods maps method codes to their merchant discount percent.
type PaymentMethods map[string]decimal.Decimal

// DefaultPaymentMethods offers pix with the given discount plus card and boleto.
func DefaultPaymentMethods(pixPercent decimal.Decimal) PaymentMethods {
	return PaymentMethods{
		"pix":    pixPercent,
		"card":   decimal.Zero,
		"boleto": decimal.Zero,
	}
}

// Lookup returns the payment method for a code, case-insensitive.
func (m PaymentMethods) Lookup(code string) (models.PaymentMethod, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	pct, ok := m[code]
	if !ok {
		return models.PaymentMethod{}, ErrUnknownPaymentMethod
	}
	return models.PaymentMethod{Code: code, DiscountPercent: pct}, nil
}
