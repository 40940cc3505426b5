package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, PriceSourceScrape, cfg.PriceSource)
	assert.Equal(t, 5*time.Second, cfg.PriceTimeout)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval)
	assert.Equal(t, 8, cfg.ValuationWorkers)
	assert.True(t, cfg.InitialCash.Equal(decimal.NewFromInt(10_000_000)))
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/stocksim")
	t.Setenv("PRICE_TIMEOUT", "2s")
	t.Setenv("INITIAL_CASH", "5000000.50")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("VALUATION_WORKERS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.PriceTimeout)
	assert.True(t, cfg.InitialCash.Equal(decimal.RequireFromString("5000000.5")))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 3, cfg.ValuationWorkers)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE": "postgres", "DATABASE_URL": ""}},
		{"unknown store", map[string]string{"STORE": "sqlite"}},
		{"unknown price source", map[string]string{"STORE": "memory", "PRICE_SOURCE": "dice"}},
		{"stream without alpaca", map[string]string{"STORE": "memory", "PRICE_SOURCE": "stream"}},
		{"zero cash", map[string]string{"STORE": "memory", "INITIAL_CASH": "0"}},
		{"zero workers", map[string]string{"STORE": "memory", "VALUATION_WORKERS": "0"}},
		{"bad duration", map[string]string{"STORE": "memory", "SWEEP_INTERVAL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAlpacaEnabled(t *testing.T) {
	assert.False(t, Config{}.AlpacaEnabled())
	assert.False(t, Config{AlpacaAPIKey: "k"}.AlpacaEnabled())
	assert.True(t, Config{AlpacaAPIKey: "k", AlpacaAPISecret: "s"}.AlpacaEnabled())
}
