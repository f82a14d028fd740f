package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"cart-service/internal/cart"
)

// validateCouponRequest is the body of POST /api/v1/coupons/validate.
type validateCouponRequest struct {
	Code       string  `json:"code"`
	OrderValue float64 `json:"orderValue"`
}

// couponValidationResponse mirrors the coupon service reply.
type couponValidationResponse struct {
	Success        bool     `json:"success"`
	Valid          bool     `json:"valid"`
	DiscountAmount *float64 `json:"discountAmount,omitempty"`
	Message        *string  `json:"message,omitempty"`
	ReasonCode     *string  `json:"reasonCode,omitempty"`
}

// CouponsClient validates coupon codes against the coupons service.
type CouponsClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *logrus.Entry
}

var _ cart.CouponValidator = (*CouponsClient)(nil)

// NewCouponsClient creates a coupons client limited to rps requests per second.
func NewCouponsClient(baseURL string, rps float64, logger *logrus.Entry) *CouponsClient {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if rps <= 0 {
		rps = 20
	}
	return &CouponsClient{
		baseURL:     baseURL,
		httpClient:  newHTTPClient(5 * time.Second),
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:      logger.WithField("component", "coupons_client"),
	}
}

// ValidateCoupon returns the discount for the code on the given subtotal. A
// rejected code yields *cart.InvalidCouponError.
func (c *CouponsClient) ValidateCoupon(ctx context.Context, in cart.CouponRequest) (decimal.Decimal, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	body, err := json.Marshal(validateCouponRequest{
		Code:       in.Code,
		OrderValue: in.Subtotal.InexactFloat64(),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/coupons/validate", bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	setServiceHeaders(req, in.TenantID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to validate coupon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return decimal.Zero, fmt.Errorf("coupons API returned status %d", resp.StatusCode)
	}

	var result couponValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse response: %w", err)
	}

	if !result.Valid || result.DiscountAmount == nil {
		reason := ""
		if result.Message != nil {
			reason = *result.Message
		} else if result.ReasonCode != nil {
			reason = *result.ReasonCode
		}
		c.logger.WithFields(logrus.Fields{
			"tenant_id": in.TenantID,
			"code":      in.Code,
			"reason":    reason,
		}).Info("Coupon rejected")
		return decimal.Zero, &cart.InvalidCouponError{Code: in.Code, Reason: reason}
	}

	return decimal.NewFromFloat(*result.DiscountAmount).Round(2), nil
}
