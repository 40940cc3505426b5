package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/stocksim/internal/domain"
	"pgregory.net/rapid"
)

func TestEligible(t *testing.T) {
	limit := dec("75000")
	assert.True(t, Eligible(domain.SideBuy, limit, dec("74000")))
	assert.True(t, Eligible(domain.SideBuy, limit, dec("75000")))
	assert.False(t, Eligible(domain.SideBuy, limit, dec("75001")))

	assert.False(t, Eligible(domain.SideSell, limit, dec("74999")))
	assert.True(t, Eligible(domain.SideSell, limit, dec("75000")))
	assert.True(t, Eligible(domain.SideSell, limit, dec("76000")))

	assert.False(t, Eligible("HOLD", limit, limit))
}

func TestEligibleIsMonotone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.Int64Range(1, 1_000_000).Draw(t, "limit")
		observed := rapid.Int64Range(1, 1_000_000).Draw(t, "observed")
		l, o := decFromCents(limit), decFromCents(observed)

		if Eligible(domain.SideBuy, l, o) != (observed <= limit) {
			t.Fatalf("buy limit %d observed %d", limit, observed)
		}
		if Eligible(domain.SideSell, l, o) != (observed >= limit) {
			t.Fatalf("sell limit %d observed %d", limit, observed)
		}
	})
}

func TestSweepBuyBoundary(t *testing.T) {
	tests := []struct {
		observed string
		executed bool
	}{
		{"74000", true},
		{"75000", true},
		{"75001", false},
	}
	for _, tt := range tests {
		t.Run(tt.observed, func(t *testing.T) {
			f := newFixture(t)
			userID := f.newUser(t, "1000000")
			o := f.placeLimit(t, userID, domain.SideBuy, "005930", 10, "75000")
			f.quotes.set("005930", tt.observed)

			summary, err := f.sweeper.SweepOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Total)

			if !tt.executed {
				assert.Equal(t, SweepSummary{Total: 1, Skipped: 1}, summary)
				assert.Equal(t, domain.StatusPending, f.order(t, o.ID).Status)
				return
			}
			assert.Equal(t, SweepSummary{Total: 1, Executed: 1}, summary)
			assert.Equal(t, domain.StatusCompleted, f.order(t, o.ID).Status)
			fills, err := f.store.GetFillsByOrderIDs(context.Background(), []uuid.UUID{o.ID})
			require.NoError(t, err)
			assert.True(t, fills[o.ID].ExecutedPrice.Equal(dec("75000")))
			assert.True(t, f.cash(t, userID).Equal(dec("250000")))
		})
	}
}

func TestSweepSellLimit(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "0")
	f.giveShares(t, userID, "X", 10, "100")
	o := f.placeLimit(t, userID, domain.SideSell, "X", 4, "120")
	f.quotes.set("X", "130")

	summary, err := f.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Executed)
	assert.Equal(t, domain.StatusCompleted, f.order(t, o.ID).Status)
	assert.True(t, f.cash(t, userID).Equal(dec("480")))
	assert.Equal(t, int64(6), f.holding(t, userID, "X").Quantity)
}

func TestSweepPriceUnavailableLeavesPending(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "1000000")
	a := f.placeLimit(t, userID, domain.SideBuy, "X", 1, "100")
	b := f.placeLimit(t, userID, domain.SideBuy, "X", 1, "100")
	c := f.placeLimit(t, userID, domain.SideBuy, "Y", 1, "100")
	f.quotes.fail("X", errors.New("timeout"))
	f.quotes.set("Y", "90")

	summary, err := f.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{Total: 3, Executed: 1, Skipped: 2}, summary)
	assert.Equal(t, domain.StatusPending, f.order(t, a.ID).Status)
	assert.Equal(t, domain.StatusPending, f.order(t, b.ID).Status)
	assert.Equal(t, domain.StatusCompleted, f.order(t, c.ID).Status)
	assert.Equal(t, 1, f.quotes.callCount("X"), "one quote per symbol per sweep")
}

func TestSweepExecutionFailureContinues(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "1000")
	// Both pass validation on their own; only one can be paid for.
	first := f.placeLimit(t, userID, domain.SideBuy, "X", 10, "100")
	second := f.placeLimit(t, userID, domain.SideBuy, "X", 1, "100")
	third := f.placeLimit(t, userID, domain.SideBuy, "X", 1, "100")
	f.quotes.set("X", "100")

	summary, err := f.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{Total: 3, Executed: 1, Failed: 2}, summary)
	assert.Equal(t, domain.StatusCompleted, f.order(t, first.ID).Status)
	assert.Equal(t, domain.StatusFailed, f.order(t, second.ID).Status)
	assert.Equal(t, domain.StatusFailed, f.order(t, third.ID).Status)
	assert.True(t, f.cash(t, userID).IsZero())
}

func TestSweepIgnoresMarketAndTerminalOrders(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "1000")
	f.placeMarket(t, userID, domain.SideBuy, "X", 1)
	o := f.placeLimit(t, userID, domain.SideBuy, "X", 1, "100")
	_, err := f.orders.Cancel(context.Background(), userID, o.ID)
	require.NoError(t, err)
	f.quotes.set("X", "1")

	summary, err := f.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{}, summary)
}

func TestSweepStopsOnCanceledContext(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "1000")
	f.placeLimit(t, userID, domain.SideBuy, "X", 1, "100")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sweeper.SweepOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
