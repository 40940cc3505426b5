package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	PriceSourceScrape = "scrape"
	PriceSourceStream = "stream"
)

type Config struct {
	DatabaseURL string   `env:"DATABASE_URL"`
	RedisURL    string   `env:"REDIS_URL"`
	JWTSecret   string   `env:"JWT_SECRET"`
	Port        string   `env:"PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*"`
	Store       string   `env:"STORE" envDefault:"postgres"`

	PriceSource   string        `env:"PRICE_SOURCE" envDefault:"scrape"`
	QuoteBaseURL  string        `env:"QUOTE_BASE_URL" envDefault:"https://finance.naver.com"`
	PriceTimeout  time.Duration `env:"PRICE_TIMEOUT" envDefault:"5s"`
	PriceCacheTTL time.Duration `env:"PRICE_CACHE_TTL" envDefault:"0s"`

	SweepInterval    time.Duration   `env:"SWEEP_INTERVAL" envDefault:"60s"`
	ValuationWorkers int             `env:"VALUATION_WORKERS" envDefault:"8"`
	InitialCash      decimal.Decimal `env:"INITIAL_CASH" envDefault:"10000000"`
	OrderRatePerMin  int             `env:"ORDER_RATE_PER_MIN" envDefault:"60"`

	AlpacaAPIKey    string   `env:"ALPACA_API_KEY"`
	AlpacaAPISecret string   `env:"ALPACA_API_SECRET"`
	AlpacaSymbols   []string `env:"ALPACA_SYMBOLS" envDefault:"AAPL,MSFT,TSLA"`

	MigrationsPath string     `env:"MIGRATIONS_PATH" envDefault:"migrations"`
	LogLevel       slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}

	switch c.PriceSource {
	case PriceSourceScrape:
	case PriceSourceStream:
		if !c.AlpacaEnabled() {
			return fmt.Errorf("PRICE_SOURCE=%s needs ALPACA_API_KEY and ALPACA_API_SECRET", PriceSourceStream)
		}
	default:
		return fmt.Errorf("unknown PRICE_SOURCE %q", c.PriceSource)
	}

	if !c.InitialCash.IsPositive() {
		return fmt.Errorf("INITIAL_CASH must be positive, got %s", c.InitialCash)
	}
	if c.ValuationWorkers <= 0 {
		return fmt.Errorf("VALUATION_WORKERS must be positive, got %d", c.ValuationWorkers)
	}
	return nil
}

// AlpacaEnabled reports whether live trade ingestion should run.
func (c Config) AlpacaEnabled() bool {
	return c.AlpacaAPIKey != "" && c.AlpacaAPISecret != ""
}
