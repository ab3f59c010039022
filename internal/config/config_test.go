package config

import (
	"testing"
	"time"

	"github.com/fodouopn/gsa-manager/internal/core"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "REDIS_ADDRESS", "TAX_RATE_BEER", "TAX_RATE_JUICE",
		"ACCEPTANCE_TOKEN_TTL", "REMINDER_DAYS", "SNAPSHOT_INTERVAL", "BALANCE_CACHE_TTL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.RedisAddress)
	assert.True(t, cfg.TaxRateBeer.Equal(decimal.RequireFromString("20")))
	assert.True(t, cfg.TaxRateJuice.Equal(decimal.RequireFromString("5.5")))
	assert.Equal(t, 14*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30, cfg.ReminderDays)
	assert.Equal(t, 10*time.Minute, cfg.SnapshotInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TAX_RATE_BEER", "21")
	t.Setenv("ACCEPTANCE_TOKEN_TTL", "48h")
	t.Setenv("REMINDER_DAYS", "45")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.TaxRateBeer.Equal(decimal.RequireFromString("21")))
	assert.Equal(t, 48*time.Hour, cfg.TokenTTL)

	opts := cfg.EngineOptions()
	assert.Equal(t, 45, opts.ReminderDays)
	assert.Equal(t, 48*time.Hour, opts.TokenTTL)
	assert.True(t, opts.TaxRates[core.CategoryBeer].Equal(decimal.RequireFromString("21")))
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TAX_RATE_JUICE", "-1")
	t.Setenv("SNAPSHOT_INTERVAL", "soon")
	t.Setenv("REMINDER_DAYS", "thirty")

	cfg := Load()
	assert.True(t, cfg.TaxRateJuice.Equal(decimal.RequireFromString("5.50")))
	assert.Equal(t, 10*time.Minute, cfg.SnapshotInterval)
	assert.Equal(t, 30, cfg.ReminderDays)
}

func TestNewLogger_Level(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("loud").GetLevel())
}
