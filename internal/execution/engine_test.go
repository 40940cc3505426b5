package execution

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/stocksim/internal/domain"
	"pgregory.net/rapid"
)

func TestExecuteMarketBuy(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "10000000")
	o := f.placeMarket(t, userID, domain.SideBuy, "X", 10)

	res, err := f.engine.Execute(context.Background(), o.ID, dec("150000"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	require.NotNil(t, res.Fill)
	assert.True(t, res.Fill.ExecutedPrice.Equal(dec("150000")))

	assert.True(t, f.cash(t, userID).Equal(dec("8500000")))
	h := f.holding(t, userID, "X")
	require.NotNil(t, h)
	assert.Equal(t, int64(10), h.Quantity)
	assert.True(t, h.AverageCost.Equal(dec("150000")))
	assert.Equal(t, domain.StatusCompleted, f.order(t, o.ID).Status)

	entries, err := f.store.ListCashEntries(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EntryTradeBuy, entries[0].EntryType)
	assert.True(t, entries[0].Amount.Equal(dec("-1500000")))
	assert.True(t, entries[0].BalanceAfter.Equal(dec("8500000")))
}

func TestExecuteLimitFillsAtLimitPrice(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "1000000")
	o := f.placeLimit(t, userID, domain.SideBuy, "005930", 10, "75000")

	res, err := f.engine.Execute(context.Background(), o.ID, dec("74000"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, res.Outcome)
	assert.True(t, res.Fill.ExecutedPrice.Equal(dec("75000")))
	assert.True(t, f.cash(t, userID).Equal(dec("250000")))
}

func TestExecuteSellKeepsCostBasis(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "0")
	f.giveShares(t, userID, "005930", 10, "70000")
	o := f.placeMarket(t, userID, domain.SideSell, "005930", 5)

	res, err := f.engine.Execute(context.Background(), o.ID, dec("80000"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, res.Outcome)

	h := f.holding(t, userID, "005930")
	require.NotNil(t, h)
	assert.Equal(t, int64(5), h.Quantity)
	assert.True(t, h.AverageCost.Equal(dec("70000")))
	assert.True(t, f.cash(t, userID).Equal(dec("400000")))
}

func TestExecuteSellAllRemovesHolding(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "0")
	f.giveShares(t, userID, "005930", 10, "70000")
	o := f.placeMarket(t, userID, domain.SideSell, "005930", 10)

	res, err := f.engine.Execute(context.Background(), o.ID, dec("70000"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Nil(t, f.holding(t, userID, "005930"))

	holdings, err := f.store.ListHoldings(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestExecuteInsufficientFundsFails(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "100000")
	o := f.placeMarket(t, userID, domain.SideBuy, "X", 10)

	res, err := f.engine.Execute(context.Background(), o.ID, dec("150000"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.Reason)

	assert.Equal(t, domain.StatusFailed, f.order(t, o.ID).Status)
	assert.True(t, f.cash(t, userID).Equal(dec("100000")))
	assert.Nil(t, f.holding(t, userID, "X"))
	fills, _ := f.store.ListFills(context.Background(), userID)
	assert.Empty(t, fills)
}

func TestExecuteInsufficientSharesFails(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "0")
	f.giveShares(t, userID, "X", 2, "100")
	o := f.placeLimit(t, userID, domain.SideSell, "X", 3, "100")

	res, err := f.engine.Execute(context.Background(), o.ID, dec("120"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, int64(2), f.holding(t, userID, "X").Quantity)
}

func TestExecuteMarketRejectsNonPositivePrice(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "1000")
	o := f.placeMarket(t, userID, domain.SideBuy, "X", 1)

	res, err := f.engine.Execute(context.Background(), o.ID, dec("0"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, f.cash(t, userID).Equal(dec("1000")))
}

func TestExecuteTerminalOrderIsSkipped(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "1000000")
	o := f.placeMarket(t, userID, domain.SideBuy, "X", 1)
	ctx := context.Background()

	_, err := f.engine.Execute(ctx, o.ID, dec("100"))
	require.NoError(t, err)

	res, err := f.engine.Execute(ctx, o.ID, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.True(t, f.cash(t, userID).Equal(dec("999900")))
}

func TestExecuteUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Execute(context.Background(), uuid.New(), dec("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFail(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "1000")
	o := f.placeMarket(t, userID, domain.SideBuy, "X", 1)
	ctx := context.Background()

	res, err := f.engine.Fail(ctx, o.ID, "price unavailable")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, domain.StatusFailed, f.order(t, o.ID).Status)

	res, err = f.engine.Fail(ctx, o.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
}

// Cash moves by exactly price*qty for every fill and the sum over the journal
// always equals the balance.
func TestExecuteConservesCash(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		userID := f.newUser(t, "100000000")
		ctx := context.Background()

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			side := rapid.SampledFrom([]domain.OrderSide{domain.SideBuy, domain.SideSell}).Draw(rt, "side")
			qty := rapid.Int64Range(1, 50).Draw(rt, "qty")
			cents := rapid.Int64Range(1, 10_000_000).Draw(rt, "price")
			price := decimal.New(cents, -domain.MoneyScale)

			before := f.cash(t, userID)
			o := f.placeMarket(t, userID, side, "X", qty)
			res, err := f.engine.Execute(ctx, o.ID, price)
			if err != nil {
				rt.Fatalf("execute: %v", err)
			}
			after := f.cash(t, userID)

			switch res.Outcome {
			case OutcomeCompleted:
				want := domain.Notional(price, qty)
				if side == domain.SideBuy {
					want = want.Neg()
				}
				if !after.Sub(before).Equal(want) {
					rt.Fatalf("cash moved %s, want %s", after.Sub(before), want)
				}
			default:
				if !after.Equal(before) {
					rt.Fatalf("cash moved on %s order", res.Outcome)
				}
			}
			if after.IsNegative() {
				rt.Fatalf("negative cash %s", after)
			}
			if h := f.holding(t, userID, "X"); h != nil && h.Quantity <= 0 {
				rt.Fatalf("persisted holding with quantity %d", h.Quantity)
			}
		}

		entries, err := f.store.ListCashEntries(ctx, userID)
		if err != nil {
			rt.Fatal(err)
		}
		sum := decimal.Zero
		for _, e := range entries {
			sum = sum.Add(e.Amount)
		}
		if !sum.Equal(f.cash(t, userID)) {
			rt.Fatalf("journal sums to %s, balance is %s", sum, f.cash(t, userID))
		}
	})
}
