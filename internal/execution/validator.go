package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/ledger"
)

// OrderRequest is an order intent as submitted by a client.
type OrderRequest struct {
	Symbol     string
	Side       domain.OrderSide
	OrderKind  domain.KindName
	Quantity   int64
	LimitPrice *decimal.Decimal
}

// Validate checks req against a non-locking snapshot of the user's ledger and
// returns the PENDING order to persist. Funds and shares are checked again by
// the engine under the user lock; this pass only rejects what is already
// known to be impossible. BUY MARKET orders have no funds check here since
// their price is not known yet.
func Validate(ctx context.Context, r ledger.Reader, userID uuid.UUID, req OrderRequest) (domain.Order, error) {
	if req.Quantity <= 0 {
		return domain.Order{}, domain.Invalid(domain.CodeInvalidQuantity, "quantity must be greater than zero")
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return domain.Order{}, domain.Invalid(domain.CodeInvalidSymbol, "symbol is required")
	}
	switch req.Side {
	case domain.SideBuy, domain.SideSell:
	default:
		return domain.Order{}, domain.Invalid(domain.CodeInvalidSide, "invalid order side: %q", req.Side)
	}

	var kind domain.OrderKind
	switch req.OrderKind {
	case domain.KindMarket:
		kind = domain.Market{}
	case domain.KindLimit:
		if req.LimitPrice == nil || !req.LimitPrice.IsPositive() {
			return domain.Order{}, domain.Invalid(domain.CodeInvalidLimitPrice, "limit orders need a positive limit_price")
		}
		if !req.LimitPrice.Equal(req.LimitPrice.Round(domain.MoneyScale)) {
			return domain.Order{}, domain.Invalid(domain.CodeInvalidLimitPrice,
				"limit_price has more than %d decimal places", domain.MoneyScale)
		}
		kind = domain.Limit{Price: *req.LimitPrice}
	default:
		return domain.Order{}, domain.Invalid(domain.CodeInvalidOrderKind, "invalid order kind: %q", req.OrderKind)
	}

	order := domain.Order{
		UserID:   userID,
		Symbol:   symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Kind:     kind,
		Status:   domain.StatusPending,
	}

	switch order.Side {
	case domain.SideBuy:
		if limit, ok := kind.(domain.Limit); ok {
			acct, err := r.GetAccount(ctx, userID)
			if err != nil {
				return domain.Order{}, fmt.Errorf("get account: %w", err)
			}
			cost := domain.Notional(limit.Price, order.Quantity)
			if acct.CashBalance.LessThan(cost) {
				return domain.Order{}, domain.Invalid(domain.CodeInsufficientFunds,
					"need %s, have %s", cost, acct.CashBalance)
			}
		}
	case domain.SideSell:
		h, err := r.GetHolding(ctx, userID, symbol)
		if err != nil {
			return domain.Order{}, fmt.Errorf("get holding: %w", err)
		}
		var held int64
		if h != nil {
			held = h.Quantity
		}
		if held < order.Quantity {
			return domain.Order{}, domain.Invalid(domain.CodeInsufficientShares,
				"hold %d %s, selling %d", held, symbol, order.Quantity)
		}
	}
	return order, nil
}
