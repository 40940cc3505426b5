package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderView is an order with the details of its fill, if any, inlined.
type OrderView struct {
	Order
	Fill *Fill
}

func NewOrderView(o Order, f *Fill) OrderView {
	return OrderView{Order: o, Fill: f}
}

func (v OrderView) MarshalJSON() ([]byte, error) {
	out := struct {
		orderJSON
		ExecutedPrice *decimal.Decimal `json:"executed_price"`
		TotalAmount   *decimal.Decimal `json:"total_amount"`
		ExecutedAt    *time.Time       `json:"executed_at"`
	}{
		orderJSON: orderJSON{
			ID:         v.ID,
			UserID:     v.UserID,
			Symbol:     v.Symbol,
			Side:       v.Side,
			Quantity:   v.Quantity,
			OrderKind:  v.Kind.Name(),
			LimitPrice: LimitPrice(v.Kind),
			Status:     v.Status,
			CreatedAt:  v.CreatedAt,
			UpdatedAt:  v.UpdatedAt,
		},
	}
	if v.Fill != nil {
		price := v.Fill.ExecutedPrice
		total := Notional(price, v.Fill.Quantity)
		at := v.Fill.ExecutedAt
		out.ExecutedPrice = &price
		out.TotalAmount = &total
		out.ExecutedAt = &at
	}
	return json.Marshal(out)
}
