package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Payment providers understood by the gateway factory.
const (
	ProviderMock     = "mock"
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database
	DatabaseURL    string
	DatabaseDriver string
	SQLitePath     string
	LocalMode      bool

	// Redis
	RedisURL string

	// RabbitMQ
	RabbitMQURL string

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	// Billing scheduler
	BillingEnabled     bool
	BillingInterval    time.Duration
	BillingConcurrency int
	BillingBatchLimit  int
	BillingLockTTL     time.Duration
	BillingCurrency    string

	// Payment gateway
	PaymentProvider         string
	RazorpayKeyID           string
	RazorpayKeySecret       string
	RazorpayBaseURL         string
	StripeAPIKey            string
	GatewayTimeout          time.Duration
	GatewayBreakerThreshold int
	GatewayBreakerTimeout   time.Duration
	GatewayRatePerSecond    float64

	// Admin API
	APIAddr          string
	APIAdminToken    string
	APIRatePerSecond float64
	APIRateBurst     int

	// Worker
	WorkerHealthAddr string

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// Load loads configuration from the environment, after reading a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	databaseURL := getEnv("DATABASE_URL", "")
	driver := "postgres"
	if databaseURL == "" || strings.HasSuffix(databaseURL, ".db") || strings.HasPrefix(databaseURL, "file:") {
		driver = "sqlite"
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:    databaseURL,
		DatabaseDriver: getEnv("DATABASE_DRIVER", driver),
		SQLitePath:     getEnv("SQLITE_PATH", defaultSQLitePath()),
		RedisURL:       getEnv("REDIS_URL", ""),
		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		BillingEnabled:     getBoolEnv("BILLING_ENABLED", true),
		BillingInterval:    getDurationEnv("BILLING_INTERVAL", time.Hour),
		BillingConcurrency: getIntEnv("BILLING_CONCURRENCY", 1),
		BillingBatchLimit:  getIntEnv("BILLING_BATCH_LIMIT", 500),
		BillingLockTTL:     getDurationEnv("BILLING_LOCK_TTL", 2*time.Minute),
		BillingCurrency:    strings.ToUpper(getEnv("BILLING_CURRENCY", "INR")),

		PaymentProvider:         strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderMock)),
		RazorpayKeyID:           getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:       getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayBaseURL:         getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		StripeAPIKey:            getEnv("STRIPE_API_KEY", ""),
		GatewayTimeout:          getDurationEnv("GATEWAY_TIMEOUT", 15*time.Second),
		GatewayBreakerThreshold: getIntEnv("GATEWAY_BREAKER_THRESHOLD", 5),
		GatewayBreakerTimeout:   getDurationEnv("GATEWAY_BREAKER_TIMEOUT", 30*time.Second),
		GatewayRatePerSecond:    getFloatEnv("GATEWAY_RATE_PER_SECOND", 10),

		APIAddr:          getEnv("API_ADDR", "0.0.0.0:8080"),
		APIAdminToken:    getEnv("API_ADMIN_TOKEN", ""),
		APIRatePerSecond: getFloatEnv("API_RATE_PER_SECOND", 5),
		APIRateBurst:     getIntEnv("API_RATE_BURST", 10),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		MCPAddr:      getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),
	}
	cfg.LocalMode = cfg.DatabaseDriver == "sqlite"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error

	switch c.PaymentProvider {
	case ProviderMock:
		if c.IsProduction() {
			errs = append(errs, errors.New("PAYMENT_PROVIDER=mock is not allowed in production"))
		}
	case ProviderRazorpay:
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
			errs = append(errs, errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required"))
		}
	case ProviderStripe:
		if c.StripeAPIKey == "" {
			errs = append(errs, errors.New("STRIPE_API_KEY is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider))
	}

	if c.BillingConcurrency < 1 {
		errs = append(errs, errors.New("BILLING_CONCURRENCY must be at least 1"))
	}
	if len(c.BillingCurrency) != 3 {
		errs = append(errs, fmt.Errorf("BILLING_CURRENCY %q is not an ISO 4217 code", c.BillingCurrency))
	}

	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".subpro", "subpro.db")
	}
	return filepath.Join(home, ".subpro", "subpro.db")
}
