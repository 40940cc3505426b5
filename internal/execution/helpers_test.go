package execution

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/ledger"
	"github.com/yourorg/stocksim/internal/repository/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decFromCents(c int64) decimal.Decimal {
	return decimal.New(c, -domain.MoneyScale)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// quotes is a settable price oracle that counts calls per symbol.
type quotes struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  map[string]int
}

func newQuotes() *quotes {
	return &quotes{
		prices: make(map[string]decimal.Decimal),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (q *quotes) set(symbol, price string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[symbol] = dec(price)
	delete(q.errs, symbol)
}

func (q *quotes) fail(symbol string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs[symbol] = err
}

func (q *quotes) callCount(symbol string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls[symbol]
}

func (q *quotes) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls[symbol]++
	if err, ok := q.errs[symbol]; ok {
		return decimal.Zero, domain.PriceUnavailable(symbol, err)
	}
	p, ok := q.prices[symbol]
	if !ok {
		return decimal.Zero, domain.PriceUnavailable(symbol, errNoQuote)
	}
	return p, nil
}

var errNoQuote = errors.New("no quote")

type fixture struct {
	store   *memory.Store
	quotes  *quotes
	engine  *Engine
	orders  *OrderService
	sweeper *Sweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	q := newQuotes()
	logger := discardLogger()
	engine := NewEngine(store, logger)
	return &fixture{
		store:   store,
		quotes:  q,
		engine:  engine,
		orders:  NewOrderService(store, engine, q, logger),
		sweeper: NewSweeper(store, engine, q, 0, logger),
	}
}

func (f *fixture) newUser(t *testing.T, cash string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := f.store.CreateAccount(context.Background(), id, dec(cash))
	require.NoError(t, err)
	return id
}

// giveShares puts a holding in place directly, bypassing order flow.
func (f *fixture) giveShares(t *testing.T, userID uuid.UUID, symbol string, qty int64, avg string) {
	t.Helper()
	err := f.store.WithUserLock(context.Background(), userID, func(ctx context.Context, tx ledger.Tx) error {
		return tx.PutHolding(ctx, domain.Holding{Symbol: symbol, Quantity: qty, AverageCost: dec(avg)})
	})
	require.NoError(t, err)
}

func (f *fixture) cash(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	acct, err := f.store.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return acct.CashBalance
}

func (f *fixture) holding(t *testing.T, userID uuid.UUID, symbol string) *domain.Holding {
	t.Helper()
	h, err := f.store.GetHolding(context.Background(), userID, symbol)
	require.NoError(t, err)
	return h
}

func (f *fixture) order(t *testing.T, id uuid.UUID) domain.Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return *o
}

// placeLimit persists a PENDING limit order without going through Submit.
func (f *fixture) placeLimit(t *testing.T, userID uuid.UUID, side domain.OrderSide, symbol string, qty int64, limit string) domain.Order {
	t.Helper()
	o := domain.Order{
		UserID:   userID,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Kind:     domain.Limit{Price: dec(limit)},
		Status:   domain.StatusPending,
	}
	require.NoError(t, f.store.CreateOrder(context.Background(), &o))
	return o
}

func (f *fixture) placeMarket(t *testing.T, userID uuid.UUID, side domain.OrderSide, symbol string, qty int64) domain.Order {
	t.Helper()
	o := domain.Order{
		UserID:   userID,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Kind:     domain.Market{},
		Status:   domain.StatusPending,
	}
	require.NoError(t, f.store.CreateOrder(context.Background(), &o))
	return o
}
