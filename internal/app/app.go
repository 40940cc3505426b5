// Package app assembles the trading core from configuration. Both binaries
// build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/stocksim/internal/config"
	"github.com/yourorg/stocksim/internal/execution"
	"github.com/yourorg/stocksim/internal/gateway"
	"github.com/yourorg/stocksim/internal/ingestion"
	"github.com/yourorg/stocksim/internal/ledger"
	"github.com/yourorg/stocksim/internal/pricing"
	"github.com/yourorg/stocksim/internal/repository/memory"
	pgRepo "github.com/yourorg/stocksim/internal/repository/postgres"
	redisRepo "github.com/yourorg/stocksim/internal/repository/redis"
	"github.com/yourorg/stocksim/internal/valuation"
)

// PriceRepo is where observed ticks are kept and fanned out.
type PriceRepo interface {
	pricing.TickStore
	gateway.PriceFeed
}

type App struct {
	Store     ledger.Store
	Users     ledger.Users
	Prices    PriceRepo
	Oracle    pricing.Oracle
	Engine    *execution.Engine
	Orders    *execution.OrderService
	Sweeper   *execution.Sweeper
	Valuation *valuation.Service

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	if err := a.openStore(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openPrices(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	switch cfg.PriceSource {
	case config.PriceSourceStream:
		// Stream already reads the tick store; caching it would republish
		// old ticks as fresh ones.
		a.Oracle = pricing.WithTimeout(pricing.Stream(a.Prices, retainFor(cfg)), cfg.PriceTimeout)
	default:
		scraper := ingestion.NewQuoteScraper(cfg.QuoteBaseURL, &http.Client{Timeout: cfg.PriceTimeout})
		a.Oracle = pricing.WithTimeout(pricing.Cached(scraper, a.Prices, cfg.PriceCacheTTL, logger), cfg.PriceTimeout)
	}

	a.Engine = execution.NewEngine(a.Store, logger)
	a.Orders = execution.NewOrderService(a.Store, a.Engine, a.Oracle, logger)
	a.Sweeper = execution.NewSweeper(a.Store, a.Engine, a.Oracle, cfg.SweepInterval, logger)
	a.Valuation = valuation.NewService(a.Store, a.Oracle, cfg.ValuationWorkers, logger)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	switch cfg.Store {
	case config.StoreMemory:
		s := memory.NewStore()
		a.Store, a.Users = s, s
		logger.Warn("using in-memory store, state is lost on exit")
		return nil
	default:
		db, err := pgRepo.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		logger.Info("database connected")
		a.Store = pgRepo.NewStore(db)
		a.Users = pgRepo.NewUserRepo(db)
		return nil
	}
}

func (a *App) openPrices(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.RedisURL == "" {
		a.Prices = memory.NewPriceRepo()
		return nil
	}
	client, err := redisRepo.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	logger.Info("redis connected")
	a.Prices = redisRepo.NewPriceRepo(client, retainFor(cfg))
	return nil
}

// Ticks must outlive the cache window, or a cached read would always miss.
func retainFor(cfg config.Config) time.Duration {
	return max(cfg.PriceCacheTTL*2, time.Minute)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
