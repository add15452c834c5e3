package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	JWTSecret        string
	WebhookSecret    string
	UnitPriceMinor   int
	RedirectBaseURL  string
	RedisURL         string
	CacheTTL         time.Duration
	KafkaBrokers     string
	KafkaTopic       string
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "4000"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		WebhookSecret:    getEnv("PAYMENT_WEBHOOK_SECRET", "default-webhook-secret"),
		UnitPriceMinor:   getEnvInt("UNIT_PRICE_MINOR", 100),
		RedirectBaseURL:  getEnv("PAYMENT_REDIRECT_BASE_URL", "https://payments.example.com"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CacheTTL:         time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:       getEnv("PAYMENT_EVENTS_TOPIC", "payment.events"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
