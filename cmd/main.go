package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cart-service/internal/cart"
	"cart-service/internal/checkout"
	"cart-service/internal/clients"
	"cart-service/internal/config"
	"cart-service/internal/events"
	"cart-service/internal/handlers"
	"cart-service/internal/middleware"
	"cart-service/internal/services"
	"cart-service/internal/storage"
	"cart-service/internal/workers"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Storefront Cart API
// @version 1.0.0
// @description Variant selection, pricing, cart and checkout totals for the storefront.
// @host localhost:8080
// @BasePath /api/v1

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	cfg := config.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	log := logrus.NewEntry(logger).WithField("service", "cart-service")

	// Initialize Redis client (optional - graceful degradation if Redis unavailable)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Failed to parse Redis URL, continuing without Redis")
		} else {
			redisClient = redis.NewClient(opt)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.WithError(err).Warn("Failed to connect to Redis, continuing without Redis")
				redisClient = nil
			} else {
				log.Info("✓ Connected to Redis")
			}
			cancel()
		}
	}

	// Cart snapshot storage
	var db *gorm.DB
	var store storage.Storage
	switch cfg.CartStorage {
	case config.StoragePostgres:
		var err error
		db, err = initDatabase(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize database")
		}
		pgStore := storage.NewPostgresStorage(db, cfg.CartTTL)
		if err := pgStore.AutoMigrate(); err != nil {
			log.WithError(err).Fatal("Failed to migrate database")
		}
		store = pgStore
		log.Info("✓ Cart snapshots stored in Postgres")
	case config.StorageRedis:
		if redisClient != nil {
			store = storage.NewRedisStorage(redisClient, cfg.CartTTL)
			log.Info("✓ Cart snapshots stored in Redis")
			break
		}
		log.Warn("Redis unavailable, cart snapshots kept in memory")
		store = storage.NewMemoryStorage()
	default:
		log.Warn("Cart snapshots kept in memory (development only)")
		store = storage.NewMemoryStorage()
	}

	// Upstream clients
	productsClient := clients.NewProductsClient(cfg.ProductsServiceURL, redisClient, cfg.ProductCacheTTL, log)
	couponsClient := clients.NewCouponsClient(cfg.CouponsServiceURL, cfg.UpstreamRPS, log)
	shippingClient := clients.NewShippingClient(cfg.ShippingServiceURL, cfg.UpstreamRPS)

	// Events (optional)
	var natsConn *nats.Conn
	var publisher services.CartEventPublisher
	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, "cart-service", log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, cart events disabled")
		} else {
			natsConn = nc
			if p, err := events.NewPublisher(nc, log); err != nil {
				log.WithError(err).Warn("Failed to initialize cart events publisher")
			} else {
				publisher = p
				log.Info("✓ Cart events publisher initialized")
			}
		}
	}

	// Services
	manager := cart.NewManager(store, couponsClient, log)
	quoter := services.NewShippingQuoter(shippingClient, services.FallbackPolicy{
		FreeShippingMinimum: cfg.FreeShippingMinimum,
		FallbackPrice:       cfg.FallbackShippingPrice,
		FallbackDays:        cfg.FallbackShippingDays,
	}, log)
	storefront := services.NewStorefrontService(manager, productsClient, quoter,
		checkout.DefaultPaymentMethods(cfg.PixDiscountPercent), publisher, log)
	validator := services.NewCartValidator(manager, productsClient, log)

	// Background work
	expirationWorker := workers.NewCartExpirationWorker(store, manager, cfg.CleanupInterval, cfg.SessionIdle, log)

	subscriberCtx, stopSubscriber := context.WithCancel(context.Background())
	defer stopSubscriber()
	if natsConn != nil {
		productSubscriber, err := events.NewProductEventSubscriber(natsConn, validator, log)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize product event subscriber")
		} else if err := productSubscriber.Start(subscriberCtx); err != nil {
			log.WithError(err).Warn("Failed to start product event subscriber")
		}
	}

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	var tracerErr error
	if cfg.Environment == "production" {
		tracerProvider, tracerErr = tracing.InitTracer(tracing.ProductionConfig("cart-service"))
	} else {
		tracerProvider, tracerErr = tracing.InitTracer(tracing.DefaultConfig("cart-service"))
	}
	if tracerErr != nil {
		log.WithError(tracerErr).Warn("Failed to initialize tracing (continuing without tracing)")
	}

	metrics := gosharedmw.InitGlobalMetrics("tesseract", "cart_service")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gosharedmw.SecurityHeaders())

	if redisClient != nil {
		router.Use(gosharedmw.RedisRateLimitMiddlewareWithProfile(redisClient, "standard"))
	} else {
		router.Use(gosharedmw.RateLimit())
	}

	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("cart-service"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Tenant-ID", middleware.SessionHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := handlers.NewHealthHandler(db, redisClient)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/metrics", gosharedmw.Handler())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	storefrontHandler := handlers.NewStorefrontHandler(storefront, validator)
	api := router.Group("/api/v1/storefront")
	api.Use(middleware.TenantMiddleware(), middleware.RequireTenant(), middleware.SessionMiddleware())
	storefrontHandler.RegisterRoutes(api)

	expirationWorker.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Starting cart-service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down cart-service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stopSubscriber()
	expirationWorker.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			log.WithError(err).Warn("Failed to drain NATS connection")
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Error shutting down tracer provider")
		}
	}

	log.Info("Cart service stopped")
}

func initDatabase(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
