package config // package config loads application configuration from environment variables

import (
	"errors"
	"io/fs"
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations use Go duration syntax ("5m", "3s").
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	LogLevel        string        // zap level override (debug, info, warn, error)
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	DBMaxOpenConns  int           // connection pool size
	AutoMigrate     bool          // apply embedded migrations at startup
	JWTSecret       string        // secret used to verify bearer tokens
	ShutdownTimeout time.Duration // grace period for in-flight requests

	Hold     HoldConfig
	Pricing  PricingConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
	AMQPURL  string // RabbitMQ URL for booking.confirmed events; empty disables publishing

	BookingLogDir string // where the booking.confirmed consumer appends its log
}

// HoldConfig tunes the temporary hold ledger.
type HoldConfig struct {
	Backend       string        // "redis", "mysql" or "memory"
	TTL           time.Duration // lifetime of a published selection
	PollInterval  time.Duration // cadence advertised to polling clients
	SweepInterval time.Duration // how often expired holds are purged in the background
	RedisPrefix   string        // key namespace for the redis backend
}

// PricingConfig tunes the pricing engine.
type PricingConfig struct {
	AccessibilityMarker string          // name fragment of the accessibility discount
	Tolerance           decimal.Decimal // accepted client/server total gap
}

// PaymentConfig selects and configures the payment provider.
type PaymentConfig struct {
	Provider        string // "stripe" or "mock"
	StripeSecretKey string
	Currency        string // ISO currency, lower case
	VerifyIntent    bool   // require a succeeded intent before booking
}

// CheckoutConfig tunes checkout session storage.
type CheckoutConfig struct {
	SessionTTL  time.Duration
	RedisPrefix string
}

// LoadDotEnv reads a .env file into the process environment when one is
// present.  Variables already set are left untouched.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:             must("APP_ENV"),  // environment (dev/test/prod)
		Port:            must("APP_PORT"), // port to bind the HTTP server
		LogLevel:        os.Getenv("LOG_LEVEL"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		DBMaxOpenConns:  envInt("DB_MAX_OPEN_CONNS", 25),
		AutoMigrate:     envBool("DB_AUTO_MIGRATE", true),
		JWTSecret:       must("JWT_SECRET"),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
		Hold: HoldConfig{
			Backend:       strings.ToLower(envStr("HOLD_BACKEND", "redis")),
			TTL:           envDur("HOLD_TTL", 5*time.Minute),
			PollInterval:  envDur("HOLD_POLL_INTERVAL", 3*time.Second),
			SweepInterval: envDur("HOLD_SWEEP_INTERVAL", time.Minute),
			RedisPrefix:   envStr("HOLD_REDIS_PREFIX", "seats"),
		},
		Pricing: PricingConfig{
			AccessibilityMarker: envStr("ACCESSIBILITY_DISCOUNT_MARKER", "PMR"),
			Tolerance:           envDecimal("PRICE_TOLERANCE", decimal.NewFromFloat(0.01)),
		},
		Payment: PaymentConfig{
			Provider:        strings.ToLower(envStr("PAYMENT_PROVIDER", "stripe")),
			StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
			Currency:        strings.ToLower(envStr("PAYMENT_CURRENCY", "eur")),
			VerifyIntent:    envBool("PAYMENT_VERIFY_INTENT", true),
		},
		Checkout: CheckoutConfig{
			SessionTTL:  envDur("CHECKOUT_SESSION_TTL", 30*time.Minute),
			RedisPrefix: envStr("CHECKOUT_REDIS_PREFIX", "checkout"),
		},
		AMQPURL:       amqpURL(),
		BookingLogDir: envStr("BOOKING_LOG_DIR", "logs"),
	}
	if cfg.Payment.Provider == "stripe" && cfg.Payment.StripeSecretKey == "" {
		log.Fatalf("missing required env var: STRIPE_SECRET_KEY (PAYMENT_PROVIDER=stripe)")
	}
	return cfg
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envDecimal(k string, d decimal.Decimal) decimal.Decimal {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := decimal.NewFromString(v); err == nil {
		return n
	}
	return d
}

// amqpURL honours RABBITMQ_URL first and AMQP_URL second.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}
