package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind identifies who fulfils a cart line.
type SourceKind string

const (
	SourceAdmin    SourceKind = "admin"
	SourceDropship SourceKind = "dropship"
	SourceSeller   SourceKind = "seller"
)

// LineSource is a tagged union: SupplierID is set only for dropship lines,
// SellerID and SellerCEP only for seller lines.
type LineSource struct {
	Kind       SourceKind `json:"kind"`
	SupplierID string     `json:"supplierId,omitempty"`
	SellerID   string     `json:"sellerId,omitempty"`
	SellerCEP  string     `json:"sellerCep,omitempty"`
}

func AdminSource() LineSource {
	return LineSource{Kind: SourceAdmin}
}

func DropshipSource(supplierID string) LineSource {
	return LineSource{Kind: SourceDropship, SupplierID: supplierID}
}

func SellerSource(sellerID, sellerCEP string) LineSource {
	return LineSource{Kind: SourceSeller, SellerID: sellerID, SellerCEP: sellerCEP}
}

// LineStatus represents the availability status of a cart line after revalidation
type LineStatus string

const (
	LineStatusAvailable    LineStatus = "AVAILABLE"
	LineStatusLowStock     LineStatus = "LOW_STOCK"     // Ceiling was lowered and quantity clamped
	LineStatusPriceChanged LineStatus = "PRICE_CHANGED" // CurrentPrice differs from UnitPrice
)

// LineKey is the identity of a cart line. Empty Size/Color mean "no selection".
type LineKey struct {
	ProductID string `json:"productId"`
	Size      string `json:"selectedSize,omitempty"`
	Color     string `json:"selectedColor,omitempty"`
}

// CartLine is one distinct product+size+color entry in the cart.
type CartLine struct {
	ID           string           `json:"id"`
	ProductID    string           `json:"productId"`
	Size         string           `json:"selectedSize,omitempty"`
	Color        string           `json:"selectedColor,omitempty"`
	Quantity     int              `json:"quantity"`
	UnitPrice    decimal.Decimal  `json:"unitPrice"`
	StockCeiling int              `json:"stockCeiling"`
	Name         string           `json:"name"`
	Image        string           `json:"image,omitempty"`
	Slug         string           `json:"slug,omitempty"`
	Weight       decimal.Decimal  `json:"weight"`
	Source       LineSource       `json:"source"`
	Status       LineStatus       `json:"status,omitempty"`
	CurrentPrice *decimal.Decimal `json:"currentPrice,omitempty"` // Set while a price change is pending
	AddedAt      time.Time        `json:"addedAt"`
}

// Key returns the identity key of the line.
func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// LineTotal returns unit price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ShippingOption is one carrier option of a quote.
type ShippingOption struct {
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Days   int             `json:"days"`
	IsFree bool            `json:"isFree"`
}

// Cost is what the buyer pays for the option.
func (o ShippingOption) Cost() decimal.Decimal {
	if o.IsFree {
		return decimal.Zero
	}
	return o.Price
}

// ShippingRequest is sent to the shipping quote service.
type ShippingRequest struct {
	DestinationZip string          `json:"destinationZip"`
	CartValue      decimal.Decimal `json:"cartValue"`
	Weight         decimal.Decimal `json:"weight"`
}

// ShippingQuote is the set of options returned for a destination.
type ShippingQuote struct {
	DestinationZip string           `json:"destinationZip"`
	Options        []ShippingOption `json:"options"`
	PromoMessage   string           `json:"promoMessage,omitempty"`
	Selected       string           `json:"selected,omitempty"`
	Fallback       bool             `json:"fallback"`
}

// SelectedOption returns the option referenced by Selected.
func (q *ShippingQuote) SelectedOption() (ShippingOption, bool) {
	if q == nil || q.Selected == "" {
		return ShippingOption{}, false
	}
	for _, opt := range q.Options {
		if opt.Name == q.Selected {
			return opt, true
		}
	}
	return ShippingOption{}, false
}

// Cheapest returns the option with the lowest cost, first one on ties.
func (q *ShippingQuote) Cheapest() (ShippingOption, bool) {
	if q == nil || len(q.Options) == 0 {
		return ShippingOption{}, false
	}
	best := q.Options[0]
	for _, opt := range q.Options[1:] {
		if opt.Cost().LessThan(best.Cost()) {
			best = opt
		}
	}
	return best, true
}

// PaymentMethod carries the merchant-configured discount for a payment method.
type PaymentMethod struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// Cart is the priced cart of one session.
// Total always equals Subtotal + Shipping - Discount - PaymentDiscount.
type Cart struct {
	TenantID        string          `json:"tenantId"`
	SessionID       string          `json:"sessionId"`
	Lines           []CartLine      `json:"lines"`
	ItemCount       int             `json:"itemCount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Discount        decimal.Decimal `json:"discount"`
	PaymentDiscount decimal.Decimal `json:"paymentDiscount"`
	Total           decimal.Decimal `json:"total"`
	CouponCode      string          `json:"couponCode,omitempty"`
	CouponAmount    decimal.Decimal `json:"couponAmount"` // Amount granted by the coupon service, before capping
	ShippingQuote   *ShippingQuote  `json:"shippingQuote,omitempty"`
	PaymentMethod   *PaymentMethod  `json:"paymentMethod,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// FindLine returns the index of the line with the given key, or -1.
func (c *Cart) FindLine(key LineKey) int {
	for i := range c.Lines {
		if c.Lines[i].Key() == key {
			return i
		}
	}
	return -1
}

// LineByID returns the line with the given id.
func (c *Cart) LineByID(id string) (CartLine, bool) {
	for _, line := range c.Lines {
		if line.ID == id {
			return line, true
		}
	}
	return CartLine{}, false
}

// TotalWeight sums line weight times quantity.
func (c *Cart) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Weight.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// ProductIDs returns the distinct product ids in the cart, in line order.
func (c *Cart) ProductIDs() []string {
	seen := make(map[string]bool, len(c.Lines))
	ids := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}
