// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MongoDB
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// PostgreSQL (agents, commission tiers)
	PostgresURI string

	// Redis (booking locks). Empty address selects in-process locks.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// Engine
	Currency               string
	DuplicatePaymentWindow time.Duration
	LargeDealThreshold     decimal.Decimal

	// Payment gateway. Empty URL selects the simulated gateway.
	PaymentGatewayURL           string
	PaymentGatewayToken         string
	PaymentSimulatedSuccessRate float64

	// WhatsApp
	WhatsAppEndpoint string
	WhatsAppToken    string
	CompanyID        string
	AgentID          string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// Background work
	ReconcileInterval   time.Duration
	StalePaymentTimeout time.Duration
	EventQueueSize      int

	// HTTP rate limiting per actor
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	threshold, err := decimal.NewFromString(getEnv("LARGE_DEAL_THRESHOLD", "10000"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "tripdesk"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		PostgresURI: getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=tripdesk port=5432 sslmode=disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LockTTL:       time.Duration(getEnvAsInt("LOCK_TTL_SECONDS", 15)) * time.Second,

		Currency:               getEnv("CURRENCY", "USD"),
		DuplicatePaymentWindow: time.Duration(getEnvAsInt("DUPLICATE_PAYMENT_WINDOW_MINUTES", 5)) * time.Minute,
		LargeDealThreshold:     threshold,

		PaymentGatewayURL:           getEnv("PAYMENT_GATEWAY_URL", ""),
		PaymentGatewayToken:         getEnv("PAYMENT_GATEWAY_TOKEN", ""),
		PaymentSimulatedSuccessRate: getEnvAsFloat("PAYMENT_SIMULATED_SUCCESS_RATE", 0.95),

		WhatsAppEndpoint: getEnv("WHATSAPP_SERVICE_URL", ""),
		WhatsAppToken:    getEnv("WHATSAPP_TOKEN", ""),
		CompanyID:        getEnv("COMPANY_ID", ""),
		AgentID:          getEnv("AGENT_ID", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@tripdesk.local"),

		ReconcileInterval:   time.Duration(getEnvAsInt("RECONCILE_INTERVAL", 300)) * time.Second,
		StalePaymentTimeout: time.Duration(getEnvAsInt("STALE_PAYMENT_MINUTES", 15)) * time.Minute,
		EventQueueSize:      getEnvAsInt("EVENT_QUEUE_SIZE", 256),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
