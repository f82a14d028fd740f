package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cart-service/internal/cart"
	"cart-service/internal/checkout"
	"cart-service/internal/clients"
	"cart-service/internal/models"
	"cart-service/internal/selection"
	"cart-service/internal/services"
)

func errorResponse(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func invalidRequest(c *gin.Context, err error) {
	errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
}

// respondError maps cart engine errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	var stockErr *cart.StockExceededError
	var couponErr *cart.InvalidCouponError

	switch {
	case errors.As(err, &stockErr):
		errorResponse(c, http.StatusConflict, "STOCK_EXCEEDED", err.Error(), gin.H{
			"productId": stockErr.ProductID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.As(err, &couponErr):
		errorResponse(c, http.StatusUnprocessableEntity, "INVALID_COUPON", err.Error(), gin.H{
			"code":   couponErr.Code,
			"reason": couponErr.Reason,
		})
	case errors.Is(err, cart.ErrInvalidCoupon):
		errorResponse(c, http.StatusUnprocessableEntity, "INVALID_COUPON", err.Error(), nil)
	case errors.Is(err, selection.ErrSelectionIncomplete):
		errorResponse(c, http.StatusBadRequest, "SELECTION_INCOMPLETE", err.Error(), nil)
	case errors.Is(err, cart.ErrInvalidQuantity):
		errorResponse(c, http.StatusBadRequest, "INVALID_QUANTITY", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidZip):
		errorResponse(c, http.StatusBadRequest, "INVALID_ZIP", err.Error(), nil)
	case errors.Is(err, checkout.ErrUnknownPaymentMethod):
		errorResponse(c, http.StatusBadRequest, "INVALID_PAYMENT_METHOD", err.Error(), nil)
	case errors.Is(err, checkout.ErrUnknownShippingOption), errors.Is(err, checkout.ErrNoShippingQuote):
		errorResponse(c, http.StatusBadRequest, "INVALID_SHIPPING_OPTION", err.Error(), nil)
	case errors.Is(err, cart.ErrLineNotFound):
		errorResponse(c, http.StatusNotFound, "LINE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, clients.ErrProductNotFound):
		errorResponse(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, cart.ErrStaleResponse):
		errorResponse(c, http.StatusConflict, "STALE_REQUEST", err.Error(), nil)
	case errors.Is(err, services.ErrShippingUnavailable):
		errorResponse(c, http.StatusBadGateway, "SHIPPING_UNAVAILABLE", err.Error(), nil)
	default:
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process cart request", gin.H{"error": err.Error()})
	}
}
