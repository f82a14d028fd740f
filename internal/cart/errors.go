package cart

import (
	"errors"
	"fmt"
)

var (
	ErrStockExceeded   = errors.New("requested quantity exceeds available stock")
	ErrInvalidCoupon   = errors.New("invalid coupon")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrStaleResponse is returned when a newer request superseded this one.
	ErrStaleResponse = errors.New("superseded by a newer request")
)

// StockExceededError reports a quantity above the stock ceiling of a line.
type StockExceededError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("requested %d of product %s but only %d available", e.Requested, e.ProductID, e.Available)
}

func (e *StockExceededError) Is(target error) bool {
	return target == ErrStockExceeded
}

// InvalidCouponError is returned when the coupon service rejects a code.
type InvalidCouponError struct {
	Code   string
	Reason string
}

func (e *InvalidCouponError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("coupon %q is not valid", e.Code)
	}
	return fmt.Sprintf("coupon %q is not valid: %s", e.Code, e.Reason)
}

func (e *InvalidCouponError) Is(target error) bool {
	return target == ErrInvalidCoupon
}
