// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	envconfig "github.com/exchange/reconciler/pkg/config"
	"github.com/shopspring/decimal"
)

// Config holds all reconciler settings. Everything is fixed at startup;
// there are no runtime parameters.
type Config struct {
	ServiceName string
	HTTPPort    int

	// Exchange API
	APIBaseURL  string
	APIKey      string
	HTTPTimeout time.Duration

	// Local persistence
	OrdersFile string

	// Redis (optional; empty addr disables events and the run lock)
	RedisAddr     string
	RedisPassword string
	EventStream   string
	LockKey       string
	LockTTL       time.Duration

	// Reconciliation
	ReconcileInterval time.Duration // 0 = single pass, then exit
	RepriceRate       decimal.Decimal
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	defaultRate := decimal.RequireFromString("0.01")
	return &Config{
		ServiceName: envconfig.GetEnv("SERVICE_NAME", "exchange-reconciler"),
		HTTPPort:    envconfig.GetEnvInt("HTTP_PORT", 8086),

		APIBaseURL:  envconfig.GetEnv("API_BASE_URL", "https://api.ataix.kz"),
		APIKey:      envconfig.GetEnv("API_KEY", ""),
		HTTPTimeout: envconfig.GetEnvDuration("HTTP_TIMEOUT", 5*time.Second),

		OrdersFile: envconfig.GetEnv("ORDERS_FILE", "orders.json"),

		RedisAddr:     envconfig.GetEnv("REDIS_ADDR", ""),
		RedisPassword: envconfig.GetEnv("REDIS_PASSWORD", ""),
		EventStream:   envconfig.GetEnv("EVENT_STREAM", "reconciler:events"),
		LockKey:       envconfig.GetEnv("LOCK_KEY", "reconciler:run:lock"),
		LockTTL:       envconfig.GetEnvDuration("LOCK_TTL", 5*time.Minute),

		ReconcileInterval: envconfig.GetEnvDuration("RECONCILE_INTERVAL", 0),
		RepriceRate:       getEnvDecimal("REPRICE_RATE", defaultRate),
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" || !strings.HasPrefix(c.APIBaseURL, "http") {
		return fmt.Errorf("invalid API base URL: %q", c.APIBaseURL)
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.OrdersFile == "" {
		return fmt.Errorf("ORDERS_FILE is required")
	}
	if c.RepriceRate.Cmp(decimal.NewFromInt(-1)) <= 0 {
		return fmt.Errorf("reprice rate must be greater than -1, got %s", c.RepriceRate)
	}
	return nil
}

// RedisEnabled reports whether Redis-backed features are configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := envconfig.GetEnv(key, ""); value != "" {
		if v, err := decimal.NewFromString(value); err == nil && v.Cmp(decimal.NewFromInt(-1)) > 0 {
			return v
		}
	}
	return defaultValue
}
