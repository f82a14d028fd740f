package cart_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"cart-service/internal/cart"
	"cart-service/internal/models"
	"cart-service/internal/selection"
	"cart-service/internal/storage"
)

type fixedCoupons map[string]decimal.Decimal

func (f fixedCoupons) ValidateCoupon(_ context.Context, req cart.CouponRequest) (decimal.Decimal, error) {
	amount, ok := f[req.Code]
	if !ok {
		return decimal.Zero, &cart.InvalidCouponError{Code: req.Code}
	}
	return amount, nil
}

type cartTestContext struct {
	product  *models.Product
	resolver *selection.Resolver
	coupons  fixedCoupons
	agg      *cart.Aggregator
	current  models.Cart
	err      error
}

func (c *cartTestContext) reset() {
	c.product = nil
	c.resolver = nil
	c.coupons = fixedCoupons{}
	c.agg = cart.NewAggregator("tenant", "session", storage.NewMemoryStorage(), c.coupons, nil)
	c.current = models.Cart{}
	c.err = nil
}

func (c *cartTestContext) aProductPricedWithVariants(price string, doc *godog.DocString) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.product = &models.Product{ID: "p", Name: "Produto", Price: p, Variants: json.RawMessage(doc.Content)}
	c.resolver = selection.New(c.product, nil)
	return nil
}

func (c *cartTestContext) theVariantsArriveEncodedAsAJSONString(times int) error {
	payload := string(c.product.Variants)
	for i := 0; i < times; i++ {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	c.product.Variants = json.RawMessage(payload)
	c.resolver = selection.New(c.product, nil)
	return nil
}

func (c *cartTestContext) theSellerConfiguredSkuWithCustomPrice(skuID, price string) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.product.SelectedSkus = append(c.product.SelectedSkus, models.SelectedSku{SkuID: skuID, Enabled: true, CustomPrice: &p})
	c.resolver = selection.New(c.product, nil)
	return nil
}

func (c *cartTestContext) theSizesWithStockAre(list string) error {
	got := strings.Join(c.resolver.Sizes(), ",")
	if got != list {
		return fmt.Errorf("expected sizes %q, got %q", list, got)
	}
	return nil
}

func (c *cartTestContext) sizeIsSelectedAutomatically(size string) error {
	if c.resolver.Size() != size {
		return fmt.Errorf("expected size %q selected, got %q", size, c.resolver.Size())
	}
	return nil
}

func (c *cartTestContext) theColorsForSizeAre(size, list string) error {
	opts := c.resolver.Catalog().ColorsForSize(size)
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, fmt.Sprintf("%s:%d", o.Name, o.Stock))
	}
	if got := strings.Join(parts, ","); got != list {
		return fmt.Errorf("expected colors %q, got %q", list, got)
	}
	return nil
}

func (c *cartTestContext) choosingColorIsRejected(color string) error {
	if c.resolver.SelectColor(color) {
		return fmt.Errorf("color %q was accepted", color)
	}
	return nil
}

func (c *cartTestContext) iSelectSizeAndColor(size, color string) error {
	if c.resolver.Size() != size && !c.resolver.SelectSize(size) {
		return fmt.Errorf("size %q rejected", size)
	}
	if !c.resolver.SelectColor(color) {
		return fmt.Errorf("color %q rejected", color)
	}
	return nil
}

func (c *cartTestContext) theResolvedPriceIs(price string) error {
	line, err := cart.LineFromSelection(c.resolver, 1)
	if err != nil {
		return err
	}
	want := decimal.RequireFromString(price)
	if !line.UnitPrice.Equal(want) {
		return fmt.Errorf("expected price %s, got %s", want, line.UnitPrice)
	}
	return nil
}

func (c *cartTestContext) theCartHolds(qty int, productID, size, color, price string, stock int) error {
	c.current, c.err = c.agg.AddItem(context.Background(), models.CartLine{
		ProductID:    productID,
		Size:         size,
		Color:        color,
		Quantity:     qty,
		UnitPrice:    decimal.RequireFromString(price),
		StockCeiling: stock,
		Source:       models.AdminSource(),
	})
	return c.err
}

func (c *cartTestContext) iSetTheQuantityTo(productID, size, color string, qty int) error {
	key := models.LineKey{ProductID: productID, Size: size, Color: color}
	c.current, c.err = c.agg.UpdateQuantity(context.Background(), key, qty)
	return nil
}

func (c *cartTestContext) theUpdateSucceeds() error {
	return c.err
}

func (c *cartTestContext) theUpdateFailsWithStockExceeded() error {
	if !errors.Is(c.err, cart.ErrStockExceeded) {
		return fmt.Errorf("expected stock exceeded, got %v", c.err)
	}
	return nil
}

func (c *cartTestContext) theLineQuantityIs(qty int) error {
	if len(c.current.Lines) != 1 {
		return fmt.Errorf("expected one line, got %d", len(c.current.Lines))
	}
	if c.current.Lines[0].Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, c.current.Lines[0].Quantity)
	}
	return nil
}

func (c *cartTestContext) theCouponServiceGrantsFor(amount, code string) error {
	c.coupons[code] = decimal.RequireFromString(amount)
	return nil
}

func (c *cartTestContext) theShippingQuoteOffersAt(option, price string) error {
	ctx := context.Background()
	_, ticket, _, err := c.agg.BeginShippingQuote(ctx)
	if err != nil {
		return err
	}
	defer ticket.Release()
	c.current, c.err = c.agg.ApplyShippingQuote(ctx, ticket, models.ShippingQuote{
		DestinationZip: "01001-000",
		Options:        []models.ShippingOption{{Name: option, Price: decimal.RequireFromString(price), Days: 5}},
	})
	return c.err
}

func (c *cartTestContext) iApplyCoupon(code string) error {
	c.current, c.err = c.agg.ApplyCoupon(context.Background(), code)
	return c.err
}

func (c *cartTestContext) iPayWithAtPercentDiscount(method string, pct int) error {
	c.current, c.err = c.agg.SelectPayment(context.Background(), models.PaymentMethod{Code: method, DiscountPercent: decimal.NewFromInt(int64(pct))})
	return c.err
}

func amountIs(name string, got decimal.Decimal, want string) error {
	if !got.Equal(decimal.RequireFromString(want)) {
		return fmt.Errorf("expected %s %s, got %s", name, want, got)
	}
	return nil
}

func (c *cartTestContext) theSubtotalIs(v string) error {
	return amountIs("subtotal", c.current.Subtotal, v)
}

func (c *cartTestContext) thePaymentDiscountIs(v string) error {
	return amountIs("payment discount", c.current.PaymentDiscount, v)
}

func (c *cartTestContext) theTotalIs(v string) error {
	return amountIs("total", c.current.Total, v)
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a product priced (\d+\.\d+) with variants:$`, tc.aProductPricedWithVariants)
	ctx.Step(`^the seller configured sku "([^"]*)" with custom price (\d+\.\d+)$`, tc.theSellerConfiguredSkuWithCustomPrice)
	ctx.Step(`^the cart holds (\d+) of product "([^"]*)" size "([^"]*)" color "([^"]*)" at (\d+\.\d+) with stock (\d+)$`, tc.theCartHolds)
	ctx.Step(`^the coupon service grants (\d+\.\d+) for "([^"]*)"$`, tc.theCouponServiceGrantsFor)
	ctx.Step(`^the shipping quote offers "([^"]*)" at (\d+\.\d+)$`, tc.theShippingQuoteOffersAt)

	// When steps
	ctx.Step(`^the variants arrive encoded as a JSON string (\d+) times$`, tc.theVariantsArriveEncodedAsAJSONString)
	ctx.Step(`^I select size "([^"]*)" and color "([^"]*)"$`, tc.iSelectSizeAndColor)
	ctx.Step(`^I set the quantity of product "([^"]*)" size "([^"]*)" color "([^"]*)" to (\d+)$`, tc.iSetTheQuantityTo)
	ctx.Step(`^I apply coupon "([^"]*)"$`, tc.iApplyCoupon)
	ctx.Step(`^I pay with "([^"]*)" at (\d+) percent discount$`, tc.iPayWithAtPercentDiscount)

	// Then steps
	ctx.Step(`^the sizes with stock are "([^"]*)"$`, tc.theSizesWithStockAre)
	ctx.Step(`^size "([^"]*)" is selected automatically$`, tc.sizeIsSelectedAutomatically)
	ctx.Step(`^the colors for size "([^"]*)" are "([^"]*)"$`, tc.theColorsForSizeAre)
	ctx.Step(`^choosing color "([^"]*)" is rejected$`, tc.choosingColorIsRejected)
	ctx.Step(`^the resolved price is (\d+\.\d+)$`, tc.theResolvedPriceIs)
	ctx.Step(`^the update succeeds$`, tc.theUpdateSucceeds)
	ctx.Step(`^the update fails with stock exceeded$`, tc.theUpdateFailsWithStockExceeded)
	ctx.Step(`^the line quantity is (\d+)$`, tc.theLineQuantityIs)
	ctx.Step(`^the subtotal is (\d+\.\d+)$`, tc.theSubtotalIs)
	ctx.Step(`^the payment discount is (\d+\.\d+)$`, tc.thePaymentDiscountIs)
	ctx.Step(`^the total is (\d+\.\d+)$`, tc.theTotalIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/cart.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
