package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bought returns h after buying qty shares at price. The average cost is the
// volume-weighted cost of old and new shares. A zero Holding is a valid
// starting point, in which case the average cost becomes price.
func (h Holding) Bought(qty int64, price decimal.Decimal) Holding {
	newQty := h.Quantity + qty
	total := h.AverageCost.Mul(decimal.NewFromInt(h.Quantity)).
		Add(price.Mul(decimal.NewFromInt(qty)))
	h.AverageCost = total.Div(decimal.NewFromInt(newQty)).Round(MoneyScale)
	h.Quantity = newQty
	return h
}

// Sold returns h after selling qty shares. The average cost is untouched.
// A result with Quantity 0 means the holding must be removed.
func (h Holding) Sold(qty int64) (Holding, error) {
	if qty > h.Quantity {
		return h, fmt.Errorf("%w: hold %d, selling %d", ErrInsufficientShares, h.Quantity, qty)
	}
	h.Quantity -= qty
	return h, nil
}
