package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"cart-service/internal/models"
)

// ErrProductNotFound is returned when the catalog has no such product.
var ErrProductNotFound = errors.New("product not found")

// ProductsClient fetches products with their raw variants payload. Concurrent
// lookups of one product share a single request, and results are cached in
// Redis for a short TTL when a client is configured.
type ProductsClient struct {
	baseURL    string
	httpClient *http.Client
	redis      *redis.Client
	cacheTTL   time.Duration
	group      singleflight.Group
	logger     *logrus.Entry
}

// NewProductsClient creates a products client. redisClient may be nil.
func NewProductsClient(baseURL string, redisClient *redis.Client, cacheTTL time.Duration, logger *logrus.Entry) *ProductsClient {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ProductsClient{
		baseURL:    baseURL,
		httpClient: newHTTPClient(10 * time.Second),
		redis:      redisClient,
		cacheTTL:   cacheTTL, // Short TTL for price/stock accuracy
		logger:     logger.WithField("component", "products_client"),
	}
}

func productCacheKey(tenantID, productID string) string {
	return fmt.Sprintf("product:%s:%s", tenantID, productID)
}

// GetProduct returns the product, from cache when fresh.
func (c *ProductsClient) GetProduct(ctx context.Context, tenantID, productID string) (*models.Product, error) {
	if p := c.cached(ctx, tenantID, productID); p != nil {
		return p, nil
	}

	// The fetch is shared by every waiter, so it must not die with the first one.
	ch := c.group.DoChan(productCacheKey(tenantID, productID), func() (interface{}, error) {
		return c.fetchProduct(context.WithoutCancel(ctx), tenantID, productID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	p := res.Val.(*models.Product)
	c.store(ctx, tenantID, p)

	out := *p
	return &out, nil
}

// Invalidate drops the cached copy of a product.
func (c *ProductsClient) Invalidate(ctx context.Context, tenantID, productID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, productCacheKey(tenantID, productID)).Err(); err != nil {
		c.logger.WithError(err).WithField("product_id", productID).Warn("Failed to invalidate product cache")
	}
}

func (c *ProductsClient) cached(ctx context.Context, tenantID, productID string) *models.Product {
	if c.redis == nil || c.cacheTTL <= 0 {
		return nil
	}
	data, err := c.redis.Get(ctx, productCacheKey(tenantID, productID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Debug("Product cache read failed")
		}
		return nil
	}
	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}

func (c *ProductsClient) store(ctx context.Context, tenantID string, p *models.Product) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, productCacheKey(tenantID, p.ID), data, c.cacheTTL).Err(); err != nil {
		c.logger.WithError(err).Debug("Product cache write failed")
	}
}

func (c *ProductsClient) fetchProduct(ctx context.Context, tenantID, productID string) (*models.Product, error) {
	endpoint := fmt.Sprintf("%s/api/v1/products/%s?includeVariants=true", c.baseURL, url.PathEscape(productID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setServiceHeaders(req, tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("products API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope models.ProductResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if envelope.Data.ID == "" {
		envelope.Data.ID = productID
	}
	return envelope.Data, nil
}
