package main

import (
	"log"
	"strings"
	"time"

	"order-payment-service/cache"
	"order-payment-service/controllers"
	"order-payment-service/database"
	"order-payment-service/kafka"
	"order-payment-service/repository"
	"order-payment-service/retry"
	"order-payment-service/routes"
	"order-payment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	db, err := database.Connect(
		cfg.PostgresHost, cfg.PostgresUser, cfg.PostgresPassword,
		cfg.PostgresDB, cfg.PostgresPort, cfg.PostgresSSLMode, cfg.PostgresTimeZone,
	)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	var orderCache *cache.Cache
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Redis connection failed", zap.Error(err))
		}
		orderCache = cache.New(redisClient, cfg.CacheTTL, logger)
	} else {
		logger.Warn("REDIS_URL not set, order read cache disabled")
	}

	var publisher kafka.EventPublisher
	if cfg.KafkaBrokers != "" {
		producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, logger)
		defer producer.Close()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, payment event publishing disabled")
	}

	orderRepo := repository.NewGormOrderRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	orderService := services.NewOrderService(orderRepo, orderCache, logger)
	paymentService := services.NewPaymentService(
		paymentRepo, orderRepo, orderCache, publisher,
		retry.Config{MaxAttempts: 3, InitialBackoff: 200 * time.Millisecond, IsRetryable: retry.IsTransient},
		cfg.WebhookSecret, cfg.UnitPriceMinor, cfg.RedirectBaseURL, logger,
	)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, logger)

	r := gin.New()
	r.Use(gin.Recovery())

	routes.Register(r,
		cfg.JWTSecret,
		controllers.NewAuthController(authService),
		controllers.NewOrderController(orderService),
		controllers.NewPaymentController(paymentService),
	)

	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
