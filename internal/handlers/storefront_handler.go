package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cart-service/internal/models"
	"cart-service/internal/services"
)

// UpdateQuantityRequest sets the quantity of a cart line. Zero removes it.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// MergeCartRequest carries lines kept by a client, e.g. a guest cart.
type MergeCartRequest struct {
	Lines []services.AddItemInput `json:"lines" binding:"dive"`
}

type ShippingQuoteRequest struct {
	DestinationZip string           `json:"destinationZip" binding:"required"`
	Weight         *decimal.Decimal `json:"weight"`
}

type SelectShippingRequest struct {
	Option string `json:"option" binding:"required"`
}

type PaymentMethodRequest struct {
	Method string `json:"method" binding:"required"`
}

// StorefrontHandler serves the cart and checkout API of the storefront.
type StorefrontHandler struct {
	storefront *services.StorefrontService
	validator  *services.CartValidator
}

func NewStorefrontHandler(storefront *services.StorefrontService, validator *services.CartValidator) *StorefrontHandler {
	return &StorefrontHandler{
		storefront: storefront,
		validator:  validator,
	}
}

func session(c *gin.Context) (tenantID, sessionID string) {
	return c.GetString("tenant_id"), c.GetString("session_id")
}

func cartOK(c *gin.Context, status int, cart models.Cart) {
	c.JSON(status, models.CartResponse{Success: true, Data: &cart})
}

// GetCart returns the session cart
// @Summary Get cart
// @Description Returns the session cart with its totals
// @Tags cart
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param X-Session-ID header string false "Session ID"
// @Success 200 {object} models.CartResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /storefront/cart [get]
func (h *StorefrontHandler) GetCart(c *gin.Context) {
	tenantID, sessionID := session(c)

	cart, err := h.storefront.Cart(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// AddItem adds a product selection to the cart
// @Summary Add item to cart
// @Description Resolves the size/color selection and price of a product and adds it to the cart
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param item body services.AddItemInput true "Selection"
// @Success 201 {object} models.CartResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /storefront/cart/items [post]
func (h *StorefrontHandler) AddItem(c *gin.Context) {
	tenantID, sessionID := session(c)

	var req services.AddItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	cart, err := h.storefront.AddItem(c.Request.Context(), tenantID, sessionID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusCreated, cart)
}

// UpdateItem sets the quantity of a line
// @Summary Update cart line quantity
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param lineId path string true "Line ID"
// @Param body body UpdateQuantityRequest true "Quantity"
// @Success 200 {object} models.CartResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /storefront/cart/items/{lineId} [put]
func (h *StorefrontHandler) UpdateItem(c *gin.Context) {
	tenantID, sessionID := session(c)

	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	cart, err := h.storefront.UpdateLine(c.Request.Context(), tenantID, sessionID, c.Param("lineId"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// RemoveItem removes a line
// @Summary Remove cart line
// @Tags cart
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param lineId path string true "Line ID"
// @Success 200 {object} models.CartResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /storefront/cart/items/{lineId} [delete]
func (h *StorefrontHandler) RemoveItem(c *gin.Context) {
	tenantID, sessionID := session(c)

	cart, err := h.storefront.RemoveLine(c.Request.Context(), tenantID, sessionID, c.Param("lineId"))
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// ClearCart empties the cart
// @Summary Clear cart
// @Tags cart
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Success 200 {object} models.CartResponse
// @Router /storefront/cart [delete]
func (h *StorefrontHandler) ClearCart(c *gin.Context) {
	tenantID, sessionID := session(c)
	cartOK(c, http.StatusOK, h.storefront.Clear(c.Request.Context(), tenantID, sessionID))
}

// ApplyCoupon validates and applies a coupon code
// @Summary Apply coupon
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param body body ApplyCouponRequest true "Coupon"
// @Success 200 {object} models.CartResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /storefront/cart/coupon [post]
func (h *StorefrontHandler) ApplyCoupon(c *gin.Context) {
	tenantID, sessionID := session(c)

	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	cart, err := h.storefront.ApplyCoupon(c.Request.Context(), tenantID, sessionID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// RemoveCoupon drops the applied coupon
// @Summary Remove coupon
// @Tags cart
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Success 200 {object} models.CartResponse
// @Router /storefront/cart/coupon [delete]
func (h *StorefrontHandler) RemoveCoupon(c *gin.Context) {
	tenantID, sessionID := session(c)

	cart, err := h.storefront.RemoveCoupon(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// MergeCart folds client-held lines into the session cart
// @Summary Merge cart
// @Description Lines are re-resolved against the catalog; quantities above stock are clamped
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param body body MergeCartRequest true "Lines"
// @Success 200 {object} services.MergeResult
// @Failure 400 {object} models.ErrorResponse
// @Router /storefront/cart/merge [post]
func (h *StorefrontHandler) MergeCart(c *gin.Context) {
	tenantID, sessionID := session(c)

	var req MergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	result, err := h.storefront.Merge(c.Request.Context(), tenantID, sessionID, req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// ValidateCart re-checks every line against the catalog
// @Summary Validate cart
// @Tags cart
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Success 200 {object} services.CartValidationResult
// @Failure 502 {object} models.ErrorResponse
// @Router /storefront/cart/validate [post]
func (h *StorefrontHandler) ValidateCart(c *gin.Context) {
	tenantID, sessionID := session(c)

	result, err := h.validator.ValidateCart(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// AcceptPriceChanges adopts the current prices of flagged lines
// @Summary Accept price changes
// @Tags cart
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Success 200 {object} models.CartResponse
// @Router /storefront/cart/accept-prices [post]
func (h *StorefrontHandler) AcceptPriceChanges(c *gin.Context) {
	tenantID, sessionID := session(c)

	cart, err := h.validator.AcceptPriceChanges(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// QuoteShipping quotes the cart for a destination
// @Summary Quote shipping
// @Description Stores the quote on the cart and selects its cheapest option
// @Tags checkout
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param body body ShippingQuoteRequest true "Destination"
// @Success 200 {object} models.CartResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /storefront/cart/shipping/quote [post]
func (h *StorefrontHandler) QuoteShipping(c *gin.Context) {
	tenantID, sessionID := session(c)

	var req ShippingQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	cart, err := h.storefront.QuoteShipping(c.Request.Context(), tenantID, sessionID, req.DestinationZip, req.Weight)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// SelectShipping selects a quoted option
// @Summary Select shipping option
// @Tags checkout
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param body body SelectShippingRequest true "Option"
// @Success 200 {object} models.CartResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /storefront/cart/shipping [put]
func (h *StorefrontHandler) SelectShipping(c *gin.Context) {
	tenantID, sessionID := session(c)

	var req SelectShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	cart, err := h.storefront.SelectShipping(c.Request.Context(), tenantID, sessionID, req.Option)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// SelectPaymentMethod sets the payment method
// @Summary Select payment method
// @Tags checkout
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param body body PaymentMethodRequest true "Method (pix, card, boleto)"
// @Success 200 {object} models.CartResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /storefront/cart/payment-method [put]
func (h *StorefrontHandler) SelectPaymentMethod(c *gin.Context) {
	tenantID, sessionID := session(c)

	var req PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	cart, err := h.storefront.SelectPaymentMethod(c.Request.Context(), tenantID, sessionID, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	cartOK(c, http.StatusOK, cart)
}

// ResolveSelection reports the picker state of a product for a selection
// @Summary Resolve product selection
// @Tags products
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param id path string true "Product ID"
// @Param body body services.SelectionInput false "Selection"
// @Success 200 {object} services.SelectionView
// @Failure 404 {object} models.ErrorResponse
// @Router /storefront/products/{id}/selection [post]
func (h *StorefrontHandler) ResolveSelection(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req services.SelectionInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
	}

	view, err := h.storefront.ResolveSelection(c.Request.Context(), tenantID, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// RegisterRoutes mounts the storefront routes on rg.
func (h *StorefrontHandler) RegisterRoutes(rg *gin.RouterGroup) {
	cart := rg.Group("/cart")
	{
		cart.GET("", h.GetCart)
		cart.DELETE("", h.ClearCart)
		cart.POST("/items", h.AddItem)
		cart.PUT("/items/:lineId", h.UpdateItem)
		cart.DELETE("/items/:lineId", h.RemoveItem)
		cart.POST("/coupon", h.ApplyCoupon)
		cart.DELETE("/coupon", h.RemoveCoupon)
		cart.POST("/merge", h.MergeCart)
		cart.POST("/validate", h.ValidateCart)
		cart.POST("/accept-prices", h.AcceptPriceChanges)
		cart.POST("/shipping/quote", h.QuoteShipping)
		cart.PUT("/shipping", h.SelectShipping)
		cart.PUT("/payment-method", h.SelectPaymentMethod)
	}
	rg.POST("/products/:id/selection", h.ResolveSelection)
}
