// Package ledger defines the durable store the execution engine works
// against: accounts, holdings, orders, fills and the cash journal.
//
// Account and Holding rows are only mutated inside WithUserLock. Reads outside
// the lock are snapshots and may be stale by the time they are used.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
)

// Reader is the non-locking read side of the store.
type Reader interface {
	// GetAccount returns domain.ErrAccountNotFound when the user has no account.
	GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	// GetHolding returns nil, nil when the user holds no shares of symbol.
	GetHolding(ctx context.Context, userID uuid.UUID, symbol string) (*domain.Holding, error)
	ListHoldings(ctx context.Context, userID uuid.UUID) ([]domain.Holding, error)

	// GetOrder returns domain.ErrNotFound for an unknown id.
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
	ListPendingOrders(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
	// ListPendingLimitOrders returns every resting limit order, oldest first.
	ListPendingLimitOrders(ctx context.Context) ([]domain.Order, error)

	GetFillsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]domain.Fill, error)
	ListFills(ctx context.Context, userID uuid.UUID) ([]domain.Fill, error)
	ListCashEntries(ctx context.Context, userID uuid.UUID) ([]domain.CashEntry, error)
}

type Store interface {
	Reader

	// CreateAccount opens the user's account with an initial deposit.
	CreateAccount(ctx context.Context, userID uuid.UUID, initialCash decimal.Decimal) (*domain.Account, error)
	// CreateOrder persists o, assigning ID and timestamps when unset.
	CreateOrder(ctx context.Context, o *domain.Order) error

	// WithUserLock runs fn while holding the exclusive lock on the user's
	// account. Everything fn writes through tx commits atomically when fn
	// returns nil and is discarded otherwise, including when fn panics.
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the locked view of one user's ledger.
type Tx interface {
	// Account is the locked account row, reflecting writes made through tx.
	Account() domain.Account
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetHolding(ctx context.Context, symbol string) (*domain.Holding, error)

	SetCashBalance(ctx context.Context, balance decimal.Decimal) error
	PutHolding(ctx context.Context, h domain.Holding) error
	DeleteHolding(ctx context.Context, symbol string) error
	InsertFill(ctx context.Context, f *domain.Fill) error
	SetOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	AppendCashEntry(ctx context.Context, e *domain.CashEntry) error
}

// Users is the credential store used by registration and login.
type Users interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}
