package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places every persisted amount carries.
const MoneyScale = 2

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type KindName string

const (
	KindMarket KindName = "MARKET"
	KindLimit  KindName = "LIMIT"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusFailed    OrderStatus = "FAILED"
	StatusCanceled  OrderStatus = "CANCELED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

type EntryType string

const (
	EntryDeposit   EntryType = "deposit"
	EntryTradeBuy  EntryType = "trade_buy"
	EntryTradeSell EntryType = "trade_sell"
)

// OrderKind is either Market or Limit. The interface is sealed so a market
// order can never carry a limit price.
type OrderKind interface {
	Name() KindName
	sealed()
}

type Market struct{}

func (Market) Name() KindName { return KindMarket }
func (Market) sealed()        {}

type Limit struct {
	Price decimal.Decimal
}

func (Limit) Name() KindName { return KindLimit }
func (Limit) sealed()        {}

// LimitPrice returns the limit price of k, or nil for market orders.
func LimitPrice(k OrderKind) *decimal.Decimal {
	switch k := k.(type) {
	case Limit:
		p := k.Price
		return &p
	case Market:
		return nil
	default:
		panic(fmt.Sprintf("unknown order kind %T", k))
	}
}

// KindFromColumns rebuilds an OrderKind from its persisted representation.
func KindFromColumns(name KindName, limit *decimal.Decimal) (OrderKind, error) {
	switch name {
	case KindMarket:
		return Market{}, nil
	case KindLimit:
		if limit == nil {
			return nil, fmt.Errorf("limit order without limit price")
		}
		return Limit{Price: *limit}, nil
	default:
		return nil, fmt.Errorf("unknown order kind: %s", name)
	}
}

type User struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	Email        string    `db:"email"         json:"email"`
	Nickname     string    `db:"nickname"      json:"nickname"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}

type Account struct {
	UserID      uuid.UUID       `db:"user_id"      json:"user_id"`
	CashBalance decimal.Decimal `db:"cash_balance" json:"cash_balance"`
	CreatedAt   time.Time       `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}

type Holding struct {
	UserID      uuid.UUID       `db:"user_id"      json:"-"`
	Symbol      string          `db:"symbol"       json:"symbol"`
	Quantity    int64           `db:"quantity"     json:"quantity"`
	AverageCost decimal.Decimal `db:"average_cost" json:"average_cost"`
	CreatedAt   time.Time       `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}

// CostBasis is the amount paid for the remaining shares.
func (h Holding) CostBasis() decimal.Decimal {
	return h.AverageCost.Mul(decimal.NewFromInt(h.Quantity))
}

type Order struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Symbol    string
	Side      OrderSide
	Quantity  int64
	Kind      OrderKind
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type orderJSON struct {
	ID         uuid.UUID        `json:"id"`
	UserID     uuid.UUID        `json:"user_id"`
	Symbol     string           `json:"symbol"`
	Side       OrderSide        `json:"side"`
	Quantity   int64            `json:"quantity"`
	OrderKind  KindName         `json:"order_kind"`
	LimitPrice *decimal.Decimal `json:"limit_price"`
	Status     OrderStatus      `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ID:         o.ID,
		UserID:     o.UserID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   o.Quantity,
		OrderKind:  o.Kind.Name(),
		LimitPrice: LimitPrice(o.Kind),
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	})
}

// Notional is price * quantity at the money scale.
func Notional(price decimal.Decimal, qty int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty)).Round(MoneyScale)
}

type Fill struct {
	ID            uuid.UUID       `db:"id"             json:"id"`
	UserID        uuid.UUID       `db:"user_id"        json:"user_id"`
	OrderID       *uuid.UUID      `db:"order_id"       json:"order_id"`
	Symbol        string          `db:"symbol"         json:"symbol"`
	Side          OrderSide       `db:"side"           json:"side"`
	Quantity      int64           `db:"quantity"       json:"quantity"`
	ExecutedPrice decimal.Decimal `db:"executed_price" json:"executed_price"`
	ExecutedAt    time.Time       `db:"executed_at"    json:"executed_at"`
}

type CashEntry struct {
	ID           int64           `db:"id"            json:"id"`
	UserID       uuid.UUID       `db:"user_id"       json:"user_id"`
	OrderID      *uuid.UUID      `db:"order_id"      json:"order_id,omitempty"`
	EntryType    EntryType       `db:"entry_type"    json:"entry_type"`
	Amount       decimal.Decimal `db:"amount"        json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
}

type PriceTick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Size      float64         `json:"size,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
