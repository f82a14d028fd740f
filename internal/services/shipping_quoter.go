package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cart-service/internal/models"
)

var (
	// ErrShippingUnavailable wraps failures of the shipping service.
	ErrShippingUnavailable = errors.New("shipping service unavailable")
	// ErrInvalidZip is returned for destinations that are not an 8 digit CEP.
	ErrInvalidZip = errors.New("destination zip must have 8 digits")
)

// QuoteProvider fetches live quotes from the shipping service.
type QuoteProvider interface {
	Quote(ctx context.Context, tenantID string, req models.ShippingRequest) (*models.ShippingQuote, error)
}

// FallbackPolicy is the merchant-configured quote used when the shipping
// service cannot answer.
type FallbackPolicy struct {
	FreeShippingMinimum decimal.Decimal
	FallbackPrice       decimal.Decimal
	FallbackDays        int
}

const (
	fallbackStandardName = "Frete Padrão"
	fallbackFreeName     = "Frete Grátis"
)

// Quote returns the fallback quote for a request: free shipping from the
// minimum cart value up, otherwise the fixed estimate.
func (p FallbackPolicy) Quote(req models.ShippingRequest) models.ShippingQuote {
	quote := models.ShippingQuote{
		DestinationZip: req.DestinationZip,
		Fallback:       true,
	}
	if p.FreeShippingMinimum.IsPositive() && req.CartValue.GreaterThanOrEqual(p.FreeShippingMinimum) {
		quote.Options = []models.ShippingOption{{Name: fallbackFreeName, Price: decimal.Zero, Days: p.FallbackDays, IsFree: true}}
	} else {
		quote.Options = []models.ShippingOption{{Name: fallbackStandardName, Price: p.FallbackPrice, Days: p.FallbackDays}}
		if p.FreeShippingMinimum.IsPositive() {
			missing := p.FreeShippingMinimum.Sub(req.CartValue)
			quote.PromoMessage = fmt.Sprintf("Faltam R$ %s para frete grátis", missing.StringFixed(2))
		}
	}
	quote.Selected = quote.Options[0].Name
	return quote
}

// ShippingQuoter asks the shipping service for quotes and falls back to the
// merchant policy when it fails.
type ShippingQuoter struct {
	provider QuoteProvider
	policy   FallbackPolicy
	logger   *logrus.Entry
}

func NewShippingQuoter(provider QuoteProvider, policy FallbackPolicy, logger *logrus.Entry) *ShippingQuoter {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ShippingQuoter{
		provider: provider,
		policy:   policy,
		logger:   logger.WithField("component", "shipping_quoter"),
	}
}

// NormalizeZip strips formatting from a CEP and checks its length.
func NormalizeZip(zip string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, zip)
	if len(digits) != 8 {
		return "", ErrInvalidZip
	}
	return digits, nil
}

// Quote returns live options, or the fallback quote when the service fails or
// offers nothing. A canceled context is returned as is, without fallback.
func (q *ShippingQuoter) Quote(ctx context.Context, tenantID string, req models.ShippingRequest) (models.ShippingQuote, error) {
	zip, err := NormalizeZip(req.DestinationZip)
	if err != nil {
		return models.ShippingQuote{}, err
	}
	req.DestinationZip = zip

	var live *models.ShippingQuote
	if q.provider != nil {
		live, err = q.provider.Quote(ctx, tenantID, req)
	} else {
		err = errors.New("no shipping provider configured")
	}
	if err == nil && live != nil && len(live.Options) > 0 {
		live.DestinationZip = zip
		live.Fallback = false
		return *live, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.ShippingQuote{}, ctxErr
	}

	if err == nil {
		err = errors.New("no shipping options returned")
	}
	q.logger.WithError(fmt.Errorf("%w: %v", ErrShippingUnavailable, err)).WithFields(logrus.Fields{
		"tenant_id":       tenantID,
		"destination_zip": zip,
	}).Warn("Using fallback shipping quote")

	return q.policy.Quote(req), nil
}
