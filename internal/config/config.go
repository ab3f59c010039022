package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/fodouopn/gsa-manager/internal/core"

	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL      string
	Port             string
	AllowedOrigins   string
	RedisAddress     string
	LogLevel         string
	TaxRateBeer      decimal.Decimal
	TaxRateJuice     decimal.Decimal
	TokenTTL         time.Duration
	ReminderDays     int
	SnapshotInterval time.Duration
	BalanceCacheTTL  time.Duration
}

// Load reads configuration from the environment with defaults.
// Callers load .env themselves (godotenv.Load in main).
func Load() Config {
	return Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		Port:             getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", ""),
		RedisAddress:     getEnv("REDIS_ADDRESS", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TaxRateBeer:      parseDecimal("TAX_RATE_BEER", decimal.RequireFromString("20.00")),
		TaxRateJuice:     parseDecimal("TAX_RATE_JUICE", decimal.RequireFromString("5.50")),
		TokenTTL:         parseDuration("ACCEPTANCE_TOKEN_TTL", 14*24*time.Hour),
		ReminderDays:     parseInt("REMINDER_DAYS", 30),
		SnapshotInterval: parseDuration("SNAPSHOT_INTERVAL", 10*time.Minute),
		BalanceCacheTTL:  parseDuration("BALANCE_CACHE_TTL", 5*time.Minute),
	}
}

// TaxRates returns the per-category rates used for invoice totals.
func (c Config) TaxRates() core.TaxRates {
	return core.TaxRates{
		core.CategoryBeer:  c.TaxRateBeer,
		core.CategoryJuice: c.TaxRateJuice,
	}
}

// EngineOptions returns the invoice engine settings derived from the config.
func (c Config) EngineOptions() core.InvoiceOptions {
	return core.InvoiceOptions{
		TaxRates:     c.TaxRates(),
		TokenTTL:     c.TokenTTL,
		ReminderDays: c.ReminderDays,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDecimal(key string, def decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			log.Printf("invalid decimal for %s: %s", key, v)
			return def
		}
		return d
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Printf("invalid duration for %s: %s", key, v)
			return def
		}
		return d
	}
	return def
}

func parseInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid integer for %s: %s", key, v)
			return def
		}
		return n
	}
	return def
}
