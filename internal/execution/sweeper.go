package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/ledger"
	"github.com/yourorg/stocksim/internal/pricing"
)

type SweepSummary struct {
	Total    int `json:"total"`
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Sweeper periodically tries every PENDING limit order against the current
// market price.
type Sweeper struct {
	orders   ledger.Reader
	engine   *Engine
	oracle   pricing.Oracle
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(orders ledger.Reader, engine *Engine, oracle pricing.Oracle, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		orders:   orders,
		engine:   engine,
		oracle:   oracle,
		interval: interval,
		logger:   logger.With("component", "limit_sweeper"),
	}
}

// Eligible reports whether a limit order may fill at observed: a buy when the
// market is at or below its limit, a sell when at or above.
func Eligible(side domain.OrderSide, limit, observed decimal.Decimal) bool {
	switch side {
	case domain.SideBuy:
		return observed.LessThanOrEqual(limit)
	case domain.SideSell:
		return observed.GreaterThanOrEqual(limit)
	default:
		return false
	}
}

type observation struct {
	price decimal.Decimal
	err   error
}

// SweepOnce makes one pass over the pending limit orders, oldest first. Only
// failing to list the orders aborts the pass; problems with a single order
// are logged and counted as skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary

	orders, err := s.orders.ListPendingLimitOrders(ctx)
	if err != nil {
		return summary, fmt.Errorf("list pending limit orders: %w", err)
	}

	// One quote per symbol per pass.
	seen := make(map[string]observation)

	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Total++

		limit, ok := o.Kind.(domain.Limit)
		if !ok {
			summary.Skipped++
			continue
		}

		obs, ok := seen[o.Symbol]
		if !ok {
			obs.price, obs.err = s.oracle.GetPrice(ctx, o.Symbol)
			seen[o.Symbol] = obs
		}
		if obs.err != nil {
			s.logger.Warn("price unavailable, order left pending",
				"order_id", o.ID, "symbol", o.Symbol, "err", obs.err)
			summary.Skipped++
			continue
		}
		if !Eligible(o.Side, limit.Price, obs.price) {
			summary.Skipped++
			continue
		}

		res, err := s.engine.Execute(ctx, o.ID, obs.price)
		if err != nil {
			s.logger.Error("execute limit order", "order_id", o.ID, "err", err)
			summary.Skipped++
			continue
		}
		switch res.Outcome {
		case OutcomeCompleted:
			summary.Executed++
		case OutcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

// Run sweeps every interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("starting limit order sweeper", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down limit order sweeper")
			return
		case <-ticker.C:
			summary, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("sweep failed", "err", err)
				continue
			}
			s.logger.Info("sweep finished",
				"total", summary.Total, "executed", summary.Executed,
				"failed", summary.Failed, "skipped", summary.Skipped)
		}
	}
}
