package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"cart-service/internal/models"
)

type shippingQuoteRequest struct {
	DestinationZip string  `json:"destinationZip"`
	CartValue      float64 `json:"cartValue"`
	Weight         float64 `json:"weight"`
}

type shippingQuoteResponse struct {
	Options []struct {
		Name   string          `json:"name"`
		Price  decimal.Decimal `json:"price"`
		Days   int             `json:"days"`
		IsFree bool            `json:"isFree"`
	} `json:"options"`
	PromoMessage string `json:"promoMessage,omitempty"`
}

// ShippingClient requests shipping quotes for a destination zip.
type ShippingClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewShippingClient(baseURL string, rps float64) *ShippingClient {
	if rps <= 0 {
		rps = 20
	}
	return &ShippingClient{
		baseURL:     baseURL,
		httpClient:  newHTTPClient(8 * time.Second),
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Quote asks the shipping service for the options of a request.
func (c *ShippingClient) Quote(ctx context.Context, tenantID string, in models.ShippingRequest) (*models.ShippingQuote, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(shippingQuoteRequest{
		DestinationZip: in.DestinationZip,
		CartValue:      in.CartValue.InexactFloat64(),
		Weight:         in.Weight.InexactFloat64(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/shipping/quote", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setServiceHeaders(req, tenantID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shipping quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shipping API returned status %d", resp.StatusCode)
	}

	var result shippingQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	quote := &models.ShippingQuote{
		DestinationZip: in.DestinationZip,
		Options:        make([]models.ShippingOption, 0, len(result.Options)),
		PromoMessage:   result.PromoMessage,
	}
	for _, opt := range result.Options {
		quote.Options = append(quote.Options, models.ShippingOption{
			Name:   opt.Name,
			Price:  opt.Price,
			Days:   opt.Days,
			IsFree: opt.IsFree,
		})
	}
	return quote, nil
}
