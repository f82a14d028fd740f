package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/internal/cart"
	"cart-service/internal/catalog"
	"cart-service/internal/models"
)

func TestProductsClient_GetProduct(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "tenant-1", r.Header.Get("X-Tenant-ID"))
		assert.Equal(t, "true", r.URL.Query().Get("includeVariants"))

		switch r.URL.Path {
		case "/api/v1/products/p1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p1","name":"Camiseta","price":59.9,"stock":3,` +
				`"variants":"[{\"size\":\"M\",\"color\":\"Azul\",\"stock\":3}]"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewProductsClient(server.URL, nil, 0, nil)

	p, err := client.GetProduct(context.Background(), "tenant-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Camiseta", p.Name)
	assert.True(t, decimal.RequireFromString("59.9").Equal(p.Price))
	assert.Equal(t, []string{"M"}, catalog.FromProduct(p).SizesWithStock(), "string encoded variants survive the client")

	_, err = client.GetProduct(context.Background(), "tenant-1", "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestProductsClient_ConcurrentLookupsShareRequest(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p1","name":"Camiseta","price":"10.00","stock":1}}`))
	}))
	defer server.Close()

	client := NewProductsClient(server.URL, nil, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GetProduct(context.Background(), "t", "p1")
			assert.NoError(t, err)
		}()
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) > 0 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestProductsClient_CanceledCallerDoesNotFailSharedLookup(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p1","name":"Camiseta","price":"10.00","stock":1}}`))
	}))
	defer server.Close()

	client := NewProductsClient(server.URL, nil, 0, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.GetProduct(firstCtx, "t", "p1")
		firstErr <- err
	}()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	type result struct {
		product *models.Product
		err     error
	}
	second := make(chan result, 1)
	go func() {
		p, err := client.GetProduct(context.Background(), "t", "p1")
		second <- result{p, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "Camiseta", got.product.Name)
}

func TestCouponsClient_ValidateCoupon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/coupons/validate", r.URL.Path)
		var body validateCouponRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		switch body.Code {
		case "SAVE10":
			assert.InDelta(t, 150.0, body.OrderValue, 0.001)
			_, _ = w.Write([]byte(`{"success":true,"valid":true,"discountAmount":15}`))
		case "DOWN":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"success":true,"valid":false,"message":"Coupon has expired","reasonCode":"EXPIRED"}`))
		}
	}))
	defer server.Close()

	client := NewCouponsClient(server.URL, 100, nil)
	ctx := context.Background()

	amount, err := client.ValidateCoupon(ctx, cart.CouponRequest{TenantID: "t", Code: "SAVE10", Subtotal: decimal.RequireFromString("150.00")})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(amount))

	_, err = client.ValidateCoupon(ctx, cart.CouponRequest{TenantID: "t", Code: "OLD", Subtotal: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, cart.ErrInvalidCoupon)
	var couponErr *cart.InvalidCouponError
	require.ErrorAs(t, err, &couponErr)
	assert.Equal(t, "Coupon has expired", couponErr.Reason)

	_, err = client.ValidateCoupon(ctx, cart.CouponRequest{TenantID: "t", Code: "DOWN", Subtotal: decimal.NewFromInt(10)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, cart.ErrInvalidCoupon)
}

func TestShippingClient_Quote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body shippingQuoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "01001-000", body.DestinationZip)
		assert.InDelta(t, 1.5, body.Weight, 0.001)

		_, _ = w.Write([]byte(`{"options":[{"name":"PAC","price":18.5,"days":7,"isFree":false},` +
			`{"name":"SEDEX","price":"32.00","days":2}],"promoMessage":"Frete grátis acima de R$ 199"}`))
	}))
	defer server.Close()

	client := NewShippingClient(server.URL, 100)
	quote, err := client.Quote(context.Background(), "t", models.ShippingRequest{
		DestinationZip: "01001-000",
		CartValue:      decimal.NewFromInt(150),
		Weight:         decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)
	require.Len(t, quote.Options, 2)
	assert.Equal(t, "PAC", quote.Options[0].Name)
	assert.True(t, decimal.RequireFromString("18.5").Equal(quote.Options[0].Price))
	assert.Equal(t, "Frete grátis acima de R$ 199", quote.PromoMessage)
}

func TestShippingClient_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewShippingClient(server.URL, 100).Quote(context.Background(), "t", models.ShippingRequest{DestinationZip: "01001-000"})
	assert.Error(t, err)
}
