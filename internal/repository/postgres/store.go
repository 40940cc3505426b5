package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store implements ledger.Store on top of the individual repos. The user lock
// is a SELECT ... FOR UPDATE on the account row held for one transaction.
type Store struct {
	db       *sqlx.DB
	accounts *AccountRepo
	holdings *HoldingRepo
	orders   *OrderRepo
	fills    *FillRepo
	entries  *LedgerRepo
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		accounts: NewAccountRepo(db),
		holdings: NewHoldingRepo(db),
		orders:   NewOrderRepo(db),
		fills:    NewFillRepo(db),
		entries:  NewLedgerRepo(db),
	}
}

func (s *Store) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return s.accounts.GetByUserID(ctx, userID)
}

func (s *Store) GetHolding(ctx context.Context, userID uuid.UUID, symbol string) (*domain.Holding, error) {
	return s.holdings.GetBySymbol(ctx, userID, symbol)
}

func (s *Store) ListHoldings(ctx context.Context, userID uuid.UUID) ([]domain.Holding, error) {
	return s.holdings.GetByUserID(ctx, userID)
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return s.orders.GetByUserID(ctx, userID)
}

func (s *Store) ListPendingOrders(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return s.orders.GetPendingByUserID(ctx, userID)
}

func (s *Store) ListPendingLimitOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.GetPendingLimit(ctx)
}

func (s *Store) GetFillsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]domain.Fill, error) {
	return s.fills.GetByOrderIDs(ctx, orderIDs)
}

func (s *Store) ListFills(ctx context.Context, userID uuid.UUID) ([]domain.Fill, error) {
	return s.fills.GetByUserID(ctx, userID)
}

func (s *Store) ListCashEntries(ctx context.Context, userID uuid.UUID) ([]domain.CashEntry, error) {
	return s.entries.GetByUserID(ctx, userID)
}

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	return s.orders.Create(ctx, o)
}

func (s *Store) CreateAccount(ctx context.Context, userID uuid.UUID, initialCash decimal.Decimal) (*domain.Account, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	acct := &domain.Account{UserID: userID, CashBalance: initialCash}
	if err := s.accounts.CreateTx(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	entry := domain.CashEntry{
		UserID:       userID,
		EntryType:    domain.EntryDeposit,
		Amount:       initialCash,
		BalanceAfter: initialCash,
	}
	if err := s.entries.InsertTx(ctx, tx, &entry); err != nil {
		return nil, fmt.Errorf("insert deposit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return acct, nil
}

func (s *Store) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, tx ledger.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op; this also covers a panicking fn.
	defer sqlTx.Rollback()

	acct, err := s.accounts.GetForUpdateTx(ctx, sqlTx, userID)
	if err != nil {
		return err
	}
	tx := &pgTx{store: s, tx: sqlTx, account: *acct}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	store   *Store
	tx      *sqlx.Tx
	account domain.Account
}

func (t *pgTx) Account() domain.Account {
	return t.account
}

func (t *pgTx) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := t.store.orders.GetByIDTx(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != t.account.UserID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (t *pgTx) GetHolding(ctx context.Context, symbol string) (*domain.Holding, error) {
	return t.store.holdings.GetBySymbolTx(ctx, t.tx, t.account.UserID, symbol)
}

func (t *pgTx) SetCashBalance(ctx context.Context, balance decimal.Decimal) error {
	if err := t.store.accounts.UpdateCashBalanceTx(ctx, t.tx, t.account.UserID, balance); err != nil {
		return fmt.Errorf("update cash balance: %w", err)
	}
	t.account.CashBalance = balance
	return nil
}

func (t *pgTx) PutHolding(ctx context.Context, h domain.Holding) error {
	h.UserID = t.account.UserID
	if err := t.store.holdings.UpsertTx(ctx, t.tx, h); err != nil {
		return fmt.Errorf("upsert holding: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteHolding(ctx context.Context, symbol string) error {
	if err := t.store.holdings.DeleteTx(ctx, t.tx, t.account.UserID, symbol); err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	return nil
}

func (t *pgTx) InsertFill(ctx context.Context, f *domain.Fill) error {
	if err := t.store.fills.InsertTx(ctx, t.tx, f); err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	if err := t.store.orders.UpdateStatusTx(ctx, t.tx, id, status); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (t *pgTx) AppendCashEntry(ctx context.Context, e *domain.CashEntry) error {
	e.UserID = t.account.UserID
	if err := t.store.entries.InsertTx(ctx, t.tx, e); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}
