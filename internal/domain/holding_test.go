package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestHoldingBoughtAveragesCost(t *testing.T) {
	h := Holding{Symbol: "005930"}.Bought(10, d("70000"))
	assert.Equal(t, int64(10), h.Quantity)
	assert.True(t, h.AverageCost.Equal(d("70000")))

	h = h.Bought(10, d("60000"))
	assert.Equal(t, int64(20), h.Quantity)
	assert.True(t, h.AverageCost.Equal(d("65000")), "got %s", h.AverageCost)
}

func TestHoldingBoughtRoundsToMoneyScale(t *testing.T) {
	h := Holding{}.Bought(1, d("10")).Bought(2, d("10.01"))
	// (10 + 20.02) / 3 = 10.00666...
	assert.True(t, h.AverageCost.Equal(d("10.01")), "got %s", h.AverageCost)
}

func TestHoldingSoldKeepsAverageCost(t *testing.T) {
	h := Holding{Symbol: "005930", Quantity: 20, AverageCost: d("65000")}

	next, err := h.Sold(5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), next.Quantity)
	assert.True(t, next.AverageCost.Equal(d("65000")))

	next, err = next.Sold(15)
	require.NoError(t, err)
	assert.Zero(t, next.Quantity)
}

func TestHoldingSoldRejectsOversell(t *testing.T) {
	h := Holding{Symbol: "005930", Quantity: 3, AverageCost: d("100")}
	_, err := h.Sold(4)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestHoldingBoughtAverageWithinPriceRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q1 := rapid.Int64Range(1, 10_000).Draw(t, "q1")
		q2 := rapid.Int64Range(1, 10_000).Draw(t, "q2")
		p1 := decimal.New(rapid.Int64Range(1, 100_000_000).Draw(t, "p1"), -MoneyScale)
		p2 := decimal.New(rapid.Int64Range(1, 100_000_000).Draw(t, "p2"), -MoneyScale)

		h := Holding{}.Bought(q1, p1).Bought(q2, p2)

		if h.Quantity != q1+q2 {
			t.Fatalf("quantity %d, want %d", h.Quantity, q1+q2)
		}
		lo, hi := decimal.Min(p1, p2), decimal.Max(p1, p2)
		if h.AverageCost.LessThan(lo) || h.AverageCost.GreaterThan(hi) {
			t.Fatalf("average %s outside [%s, %s]", h.AverageCost, lo, hi)
		}
		if !h.AverageCost.Equal(h.AverageCost.Round(MoneyScale)) {
			t.Fatalf("average %s not at money scale", h.AverageCost)
		}
	})
}
