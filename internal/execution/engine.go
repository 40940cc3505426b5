package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/ledger"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped means the order was no longer PENDING when the lock was
	// acquired; another execution or a cancel got there first.
	OutcomeSkipped Outcome = "skipped"
)

type Result struct {
	Outcome Outcome
	Order   domain.Order
	Fill    *domain.Fill
	Reason  string
}

// Engine moves a PENDING order to COMPLETED or FAILED, one order at a time,
// under the owning user's lock.
type Engine struct {
	store  ledger.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store ledger.Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger, now: time.Now}
}

// Execute fills the order against observed. Market orders fill at observed,
// limit orders at their own limit price; observed is then only informational.
// Business failures are reported through Result; the error is reserved for
// the store.
func (e *Engine) Execute(ctx context.Context, orderID uuid.UUID, observed decimal.Decimal) (Result, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status != domain.StatusPending {
		return Result{Outcome: OutcomeSkipped, Order: *order}, nil
	}

	var res Result
	err = e.store.WithUserLock(ctx, order.UserID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		res, err = e.executeLocked(ctx, tx, orderID, observed)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("execute order %s: %w", orderID, err)
	}

	switch res.Outcome {
	case OutcomeCompleted:
		e.logger.Info("order completed",
			"order_id", orderID, "user_id", res.Order.UserID, "symbol", res.Order.Symbol,
			"side", res.Order.Side, "quantity", res.Order.Quantity, "price", res.Fill.ExecutedPrice)
	case OutcomeFailed:
		e.logger.Warn("order failed", "order_id", orderID, "reason", res.Reason)
	}
	return res, nil
}

func (e *Engine) executeLocked(ctx context.Context, tx ledger.Tx, orderID uuid.UUID, observed decimal.Decimal) (Result, error) {
	order, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	if order.Status != domain.StatusPending {
		return Result{Outcome: OutcomeSkipped, Order: *order}, nil
	}

	price, err := executionPrice(order.Kind, observed)
	if err != nil {
		return e.failLocked(ctx, tx, order, err.Error())
	}
	amount := domain.Notional(price, order.Quantity)

	acct := tx.Account()
	holding, err := tx.GetHolding(ctx, order.Symbol)
	if err != nil {
		return Result{}, fmt.Errorf("get holding: %w", err)
	}

	var (
		balance   decimal.Decimal
		entryType domain.EntryType
		signed    decimal.Decimal
	)
	switch order.Side {
	case domain.SideBuy:
		if acct.CashBalance.LessThan(amount) {
			return e.failLocked(ctx, tx, order,
				fmt.Sprintf("insufficient funds at execution: need %s, have %s", amount, acct.CashBalance))
		}
		base := domain.Holding{Symbol: order.Symbol}
		if holding != nil {
			base = *holding
		}
		if err := tx.PutHolding(ctx, base.Bought(order.Quantity, price)); err != nil {
			return Result{}, err
		}
		balance = acct.CashBalance.Sub(amount)
		entryType = domain.EntryTradeBuy
		signed = amount.Neg()

	case domain.SideSell:
		var held int64
		if holding != nil {
			held = holding.Quantity
		}
		if held < order.Quantity {
			return e.failLocked(ctx, tx, order,
				fmt.Sprintf("insufficient shares at execution: hold %d, selling %d", held, order.Quantity))
		}
		next, err := holding.Sold(order.Quantity)
		if err != nil {
			return Result{}, err
		}
		if next.Quantity == 0 {
			err = tx.DeleteHolding(ctx, order.Symbol)
		} else {
			err = tx.PutHolding(ctx, next)
		}
		if err != nil {
			return Result{}, err
		}
		balance = acct.CashBalance.Add(amount)
		entryType = domain.EntryTradeSell
		signed = amount

	default:
		return Result{}, fmt.Errorf("unknown order side %q", order.Side)
	}

	if err := tx.SetCashBalance(ctx, balance); err != nil {
		return Result{}, err
	}
	fill := &domain.Fill{
		UserID:        order.UserID,
		OrderID:       &order.ID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Quantity:      order.Quantity,
		ExecutedPrice: price,
		ExecutedAt:    e.now().UTC(),
	}
	if err := tx.InsertFill(ctx, fill); err != nil {
		return Result{}, err
	}
	if err := tx.AppendCashEntry(ctx, &domain.CashEntry{
		OrderID:      &order.ID,
		EntryType:    entryType,
		Amount:       signed,
		BalanceAfter: balance,
	}); err != nil {
		return Result{}, err
	}
	if err := tx.SetOrderStatus(ctx, order.ID, domain.StatusCompleted); err != nil {
		return Result{}, err
	}
	order.Status = domain.StatusCompleted
	return Result{Outcome: OutcomeCompleted, Order: *order, Fill: fill}, nil
}

// Fail moves a PENDING order to FAILED without touching the ledger. It is a
// no-op, reported as OutcomeSkipped, when the order already left PENDING.
func (e *Engine) Fail(ctx context.Context, orderID uuid.UUID, reason string) (Result, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("get order: %w", err)
	}
	var res Result
	err = e.store.WithUserLock(ctx, order.UserID, func(ctx context.Context, tx ledger.Tx) error {
		cur, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.Status != domain.StatusPending {
			res = Result{Outcome: OutcomeSkipped, Order: *cur}
			return nil
		}
		res, err = e.failLocked(ctx, tx, cur, reason)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("fail order %s: %w", orderID, err)
	}
	if res.Outcome == OutcomeFailed {
		e.logger.Warn("order failed", "order_id", orderID, "reason", reason)
	}
	return res, nil
}

func (e *Engine) failLocked(ctx context.Context, tx ledger.Tx, order *domain.Order, reason string) (Result, error) {
	if err := tx.SetOrderStatus(ctx, order.ID, domain.StatusFailed); err != nil {
		return Result{}, err
	}
	order.Status = domain.StatusFailed
	return Result{Outcome: OutcomeFailed, Order: *order, Reason: reason}, nil
}

func executionPrice(kind domain.OrderKind, observed decimal.Decimal) (decimal.Decimal, error) {
	switch k := kind.(type) {
	case domain.Market:
		p := observed.Round(domain.MoneyScale)
		if !p.IsPositive() {
			return decimal.Zero, fmt.Errorf("invalid observed price %s", observed)
		}
		return p, nil
	case domain.Limit:
		return k.Price, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown order kind %T", kind)
	}
}
