// Package valuation marks a user's holdings to market. It never takes the
// user lock; the figures are a snapshot.
package valuation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/ledger"
	"github.com/yourorg/stocksim/internal/pricing"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 8

var hundred = decimal.NewFromInt(100)

// Position is a holding with its market figures. The pointer fields are nil
// when no price could be obtained for the symbol.
type Position struct {
	Symbol        string           `json:"symbol"`
	Quantity      int64            `json:"quantity"`
	AverageCost   decimal.Decimal  `json:"average_cost"`
	CurrentPrice  *decimal.Decimal `json:"current_price"`
	CurrentValue  *decimal.Decimal `json:"current_value"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl"`
	PnLPercent    *decimal.Decimal `json:"pnl_percent"`
}

type Portfolio struct {
	CashBalance   decimal.Decimal `json:"cash_balance"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	TotalValue    decimal.Decimal `json:"total_value"`
	// Incomplete is set when at least one holding could not be priced; the
	// totals then only cover the priced ones.
	Incomplete bool       `json:"incomplete"`
	Holdings   []Position `json:"holdings"`
}

type Service struct {
	store   ledger.Reader
	oracle  pricing.Oracle
	workers int
	logger  *slog.Logger
}

func NewService(store ledger.Reader, oracle pricing.Oracle, workers int, logger *slog.Logger) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{store: store, oracle: oracle, workers: workers, logger: logger}
}

func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (*Portfolio, error) {
	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}

	prices := make([]*decimal.Decimal, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			p, err := s.oracle.GetPrice(gctx, h.Symbol)
			if err != nil {
				s.logger.Warn("valuation price unavailable", "symbol", h.Symbol, "err", err)
				return nil
			}
			prices[i] = &p
			return nil
		})
	}
	// Workers never return an error; a missing price only leaves a gap.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Portfolio{
		CashBalance:   acct.CashBalance,
		HoldingsValue: decimal.Zero,
		Holdings:      make([]Position, len(holdings)),
	}
	for i, h := range holdings {
		pos := Position{
			Symbol:      h.Symbol,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
		}
		if prices[i] == nil {
			out.Incomplete = true
			out.Holdings[i] = pos
			continue
		}
		fillPosition(&pos, *prices[i])
		out.HoldingsValue = out.HoldingsValue.Add(*pos.CurrentValue)
		out.Holdings[i] = pos
	}
	out.TotalValue = out.CashBalance.Add(out.HoldingsValue)
	return out, nil
}

func fillPosition(pos *Position, price decimal.Decimal) {
	qty := decimal.NewFromInt(pos.Quantity)
	value := price.Mul(qty).Round(domain.MoneyScale)
	pnl := price.Sub(pos.AverageCost).Mul(qty).Round(domain.MoneyScale)
	pct := decimal.Zero
	if basis := pos.AverageCost.Mul(qty); !basis.IsZero() {
		pct = pnl.Div(basis).Mul(hundred).Round(domain.MoneyScale)
	}
	pos.CurrentPrice = &price
	pos.CurrentValue = &value
	pos.UnrealizedPnL = &pnl
	pos.PnLPercent = &pct
}
