package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Storage backends for cart snapshots.
const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	NATSURL     string

	CartStorage     string
	CartTTL         time.Duration
	SessionIdle     time.Duration
	CleanupInterval time.Duration

	ProductsServiceURL string
	CouponsServiceURL  string
	ShippingServiceURL string
	ProductCacheTTL    time.Duration
	UpstreamRPS        float64

	FreeShippingMinimum   decimal.Decimal
	FallbackShippingPrice decimal.Decimal
	FallbackShippingDays  int
	PixDiscountPercent    decimal.Decimal
}

// New creates a new configuration from environment variables
// It automatically fetches secrets from GCP Secret Manager when USE_GCP_SECRET_MANAGER=true
func New() *Config {
	cartStorage := getEnv("CART_STORAGE", StorageRedis)

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		RedisURL:    getEnv("REDIS_URL", ""),
		NATSURL:     getEnv("NATS_URL", ""),

		CartStorage:     cartStorage,
		CartTTL:         time.Duration(getEnvInt("CART_TTL_DAYS", 90)) * 24 * time.Hour,
		SessionIdle:     getEnvDuration("CART_SESSION_IDLE", 30*time.Minute),
		CleanupInterval: getEnvDuration("CART_CLEANUP_INTERVAL", 15*time.Minute),

		ProductsServiceURL: getEnv("PRODUCTS_SERVICE_URL", "http://products-service:8080"),
		CouponsServiceURL:  getEnv("COUPONS_SERVICE_URL", "http://coupons-service:8080"),
		ShippingServiceURL: getEnv("SHIPPING_SERVICE_URL", "http://shipping-service:8080"),
		ProductCacheTTL:    getEnvDuration("PRODUCT_CACHE_TTL", 2*time.Minute),
		UpstreamRPS:        getEnvFloat("UPSTREAM_RPS", 20),

		FreeShippingMinimum:   getEnvDecimal("FREE_SHIPPING_MINIMUM", decimal.NewFromInt(299)),
		FallbackShippingPrice: getEnvDecimal("FALLBACK_SHIPPING_PRICE", decimal.RequireFromString("19.90")),
		FallbackShippingDays:  getEnvInt("FALLBACK_SHIPPING_DAYS", 7),
		PixDiscountPercent:    getEnvDecimal("PIX_DISCOUNT_PERCENT", decimal.NewFromInt(5)),
	}

	// The database is only needed when carts are stored in Postgres
	if cartStorage == StoragePostgres {
		cfg.DatabaseURL = buildDatabaseURL()
	}
	return cfg
}

// buildDatabaseURL constructs the database URL from individual components
// Password is fetched from GCP Secret Manager if enabled
func buildDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	dbname := getEnv("DB_NAME", "tesseract_hub")
	sslmode := getEnv("DB_SSLMODE", "disable")

	password := getPasswordFromGCPOrEnv()

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, dbname, sslmode)
}

// getPasswordFromGCPOrEnv fetches the database password from GCP Secret Manager
// or falls back to environment variable
func getPasswordFromGCPOrEnv() string {
	if os.Getenv("USE_GCP_SECRET_MANAGER") != "true" {
		return getEnv("DB_PASSWORD", "password")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	secretFetcher, err := secrets.NewEnvSecretFetcher(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to initialize GCP Secret Manager (using env var)")
		return getEnv("DB_PASSWORD", "password")
	}
	defer secretFetcher.Close()

	password := secrets.LoadDatabasePassword(ctx, secretFetcher)
	if password == "" || password == "password" {
		logrus.Warn("Got empty/default password from GCP Secret Manager, using env var")
		return getEnv("DB_PASSWORD", "password")
	}

	logrus.Info("Database password loaded from GCP Secret Manager")
	return password
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		logrus.WithField("key", key).Warn("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		logrus.WithField("key", key).Warn("Invalid number in environment, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		logrus.WithField("key", key).Warn("Invalid duration in environment, using default")
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
		logrus.WithField("key", key).Warn("Invalid amount in environment, using default")
	}
	return defaultValue
}
