package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFromColumns(t *testing.T) {
	k, err := KindFromColumns(KindMarket, nil)
	require.NoError(t, err)
	assert.Equal(t, Market{}, k)

	price := d("75000")
	k, err = KindFromColumns(KindLimit, &price)
	require.NoError(t, err)
	assert.Equal(t, Limit{Price: price}, k)

	_, err = KindFromColumns(KindLimit, nil)
	assert.Error(t, err)

	_, err = KindFromColumns("STOP", nil)
	assert.Error(t, err)
}

func TestLimitPrice(t *testing.T) {
	assert.Nil(t, LimitPrice(Market{}))
	p := LimitPrice(Limit{Price: d("12.50")})
	require.NotNil(t, p)
	assert.True(t, p.Equal(d("12.5")))
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	for _, s := range []OrderStatus{StatusCompleted, StatusFailed, StatusCanceled} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestNotionalRoundsToMoneyScale(t *testing.T) {
	assert.True(t, Notional(d("75000"), 10).Equal(d("750000")))
	assert.True(t, Notional(d("189.125"), 1).Equal(d("189.13")))
}

func TestOrderViewJSON(t *testing.T) {
	id := uuid.New()
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	order := Order{
		ID:       id,
		UserID:   uuid.New(),
		Symbol:   "005930",
		Side:     SideBuy,
		Quantity: 10,
		Kind:     Limit{Price: d("75000")},
		Status:   StatusCompleted,
	}

	t.Run("with fill", func(t *testing.T) {
		fill := &Fill{OrderID: &id, Quantity: 10, ExecutedPrice: d("75000"), ExecutedAt: at}
		data, err := json.Marshal(NewOrderView(order, fill))
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "LIMIT", got["order_kind"])
		assert.Equal(t, "75000", got["limit_price"])
		assert.Equal(t, "75000", got["executed_price"])
		assert.Equal(t, "750000", got["total_amount"])
		assert.Equal(t, "2024-03-01T09:30:00Z", got["executed_at"])
	})

	t.Run("pending market order", func(t *testing.T) {
		order := order
		order.Kind = Market{}
		order.Status = StatusPending
		data, err := json.Marshal(NewOrderView(order, nil))
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "MARKET", got["order_kind"])
		assert.Nil(t, got["limit_price"])
		assert.Nil(t, got["executed_price"])
		assert.Nil(t, got["total_amount"])
		assert.Nil(t, got["executed_at"])
	})
}

func TestValidationErrorMatchesSentinels(t *testing.T) {
	err := Invalid(CodeInsufficientFunds, "need %s", "100")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.NotErrorIs(t, err, ErrInsufficientShares)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeInsufficientFunds, verr.Code)
	assert.Equal(t, "need 100", verr.Message)
}

func TestPriceUnavailableWraps(t *testing.T) {
	err := PriceUnavailable("AAPL", assert.AnError)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Contains(t, err.Error(), "AAPL")
}
