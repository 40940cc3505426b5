// Package memory is an in-process implementation of ledger.Store and
// ledger.Users. Each user has a mutex standing in for the account row lock,
// and writes made under it are staged and applied only when the locked
// function succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/ledger"
)

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Users = (*Store)(nil)
)

type orderRecord struct {
	seq   int64
	order domain.Order
}

type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]domain.User
	emails   map[string]uuid.UUID
	accounts map[uuid.UUID]domain.Account
	holdings map[uuid.UUID]map[string]domain.Holding
	orders   map[uuid.UUID]*orderRecord
	fills    map[uuid.UUID]domain.Fill // keyed by order id
	entries  []domain.CashEntry
	seq      int64

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:    make(map[uuid.UUID]domain.User),
		emails:   make(map[string]uuid.UUID),
		accounts: make(map[uuid.UUID]domain.Account),
		holdings: make(map[uuid.UUID]map[string]domain.Holding),
		orders:   make(map[uuid.UUID]*orderRecord),
		fills:    make(map[uuid.UUID]domain.Fill),
		locks:    make(map[uuid.UUID]*sync.Mutex),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for row timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.emails[key]; ok {
		return fmt.Errorf("%w: %s", domain.ErrEmailTaken, u.Email)
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	s.emails[key] = u.ID
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) CreateAccount(_ context.Context, userID uuid.UUID, initialCash decimal.Decimal) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; ok {
		return nil, fmt.Errorf("account already exists for user %s", userID)
	}
	if initialCash.IsNegative() {
		return nil, fmt.Errorf("negative initial cash")
	}
	now := s.now().UTC()
	acct := domain.Account{UserID: userID, CashBalance: initialCash, CreatedAt: now, UpdatedAt: now}
	s.accounts[userID] = acct
	s.appendEntryLocked(domain.CashEntry{
		UserID:       userID,
		EntryType:    domain.EntryDeposit,
		Amount:       initialCash,
		BalanceAfter: initialCash,
	})
	return &acct, nil
}

func (s *Store) GetAccount(_ context.Context, userID uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acct, nil
}

func (s *Store) GetHolding(_ context.Context, userID uuid.UUID, symbol string) (*domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holdings[userID][symbol]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Store) ListHoldings(_ context.Context, userID uuid.UUID) ([]domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Holding, 0, len(s.holdings[userID]))
	for _, h := range s.holdings[userID] {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *Store) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[o.UserID]; !ok {
		return domain.ErrAccountNotFound
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("duplicate order id %s", o.ID)
	}
	now := s.now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	s.seq++
	s.orders[o.ID] = &orderRecord{seq: s.seq, order: *o}
	return nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o := rec.order
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return s.selectOrders(func(o domain.Order) bool { return o.UserID == userID }, true), nil
}

func (s *Store) ListPendingOrders(_ context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return s.selectOrders(func(o domain.Order) bool {
		return o.UserID == userID && o.Status == domain.StatusPending
	}, true), nil
}

func (s *Store) ListPendingLimitOrders(_ context.Context) ([]domain.Order, error) {
	return s.selectOrders(func(o domain.Order) bool {
		return o.Status == domain.StatusPending && o.Kind.Name() == domain.KindLimit
	}, false), nil
}

func (s *Store) selectOrders(keep func(domain.Order) bool, newestFirst bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*orderRecord, 0)
	for _, rec := range s.orders {
		if keep(rec.order) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if newestFirst {
			return recs[i].seq > recs[j].seq
		}
		return recs[i].seq < recs[j].seq
	})
	out := make([]domain.Order, len(recs))
	for i, rec := range recs {
		out[i] = rec.order
	}
	return out
}

func (s *Store) GetFillsByOrderIDs(_ context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]domain.Fill, len(orderIDs))
	for _, id := range orderIDs {
		if f, ok := s.fills[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

func (s *Store) ListFills(_ context.Context, userID uuid.UUID) ([]domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Fill{}
	for _, f := range s.fills {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return out, nil
}

func (s *Store) ListCashEntries(_ context.Context, userID uuid.UUID) ([]domain.CashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.CashEntry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].UserID == userID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *Store) appendEntryLocked(e domain.CashEntry) domain.CashEntry {
	e.ID = int64(len(s.entries) + 1)
	e.CreatedAt = s.now().UTC()
	s.entries = append(s.entries, e)
	return e
}

func (s *Store) userLock(userID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *Store) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	acct, err := s.GetAccount(ctx, userID)
	if err != nil {
		return err
	}
	tx := &memTx{
		store:    s,
		account:  *acct,
		holdings: make(map[string]*domain.Holding),
		statuses: make(map[uuid.UUID]domain.OrderStatus),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

// commit checks every constraint the SQL schema enforces before applying
// anything, so a rejected transaction leaves no trace.
func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := tx.account.UserID
	if tx.account.CashBalance.IsNegative() {
		return fmt.Errorf("cash balance would become negative: %s", tx.account.CashBalance)
	}
	for symbol, h := range tx.holdings {
		if h != nil && h.Quantity <= 0 {
			return fmt.Errorf("holding %s would have quantity %d", symbol, h.Quantity)
		}
	}
	for id := range tx.statuses {
		rec, ok := s.orders[id]
		if !ok || rec.order.Status != domain.StatusPending {
			return fmt.Errorf("order %s is no longer pending", id)
		}
	}
	seen := make(map[uuid.UUID]bool)
	for _, f := range tx.fills {
		if f.OrderID == nil {
			continue
		}
		if _, dup := s.fills[*f.OrderID]; dup || seen[*f.OrderID] {
			return fmt.Errorf("order %s already has a fill", *f.OrderID)
		}
		seen[*f.OrderID] = true
	}

	now := s.now().UTC()
	if tx.cashChanged {
		tx.account.UpdatedAt = now
		s.accounts[userID] = tx.account
	}
	for symbol, h := range tx.holdings {
		if h == nil {
			delete(s.holdings[userID], symbol)
			continue
		}
		if s.holdings[userID] == nil {
			s.holdings[userID] = make(map[string]domain.Holding)
		}
		prev, existed := s.holdings[userID][symbol]
		if existed {
			h.CreatedAt = prev.CreatedAt
		} else {
			h.CreatedAt = now
		}
		h.UpdatedAt = now
		s.holdings[userID][symbol] = *h
	}
	for id, status := range tx.statuses {
		rec := s.orders[id]
		rec.order.Status = status
		rec.order.UpdatedAt = now
	}
	for _, f := range tx.fills {
		if f.OrderID != nil {
			s.fills[*f.OrderID] = f
		} else {
			s.fills[f.ID] = f
		}
	}
	for _, e := range tx.entries {
		s.appendEntryLocked(e)
	}
	return nil
}

type memTx struct {
	store       *Store
	account     domain.Account
	cashChanged bool
	holdings    map[string]*domain.Holding // nil value marks a deletion
	statuses    map[uuid.UUID]domain.OrderStatus
	fills       []domain.Fill
	entries     []domain.CashEntry
}

func (t *memTx) Account() domain.Account {
	return t.account
}

func (t *memTx) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := t.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != t.account.UserID {
		return nil, domain.ErrNotFound
	}
	if status, ok := t.statuses[id]; ok {
		o.Status = status
	}
	return o, nil
}

func (t *memTx) GetHolding(ctx context.Context, symbol string) (*domain.Holding, error) {
	if h, ok := t.holdings[symbol]; ok {
		if h == nil {
			return nil, nil
		}
		cp := *h
		return &cp, nil
	}
	return t.store.GetHolding(ctx, t.account.UserID, symbol)
}

func (t *memTx) SetCashBalance(_ context.Context, balance decimal.Decimal) error {
	t.account.CashBalance = balance
	t.cashChanged = true
	return nil
}

func (t *memTx) PutHolding(_ context.Context, h domain.Holding) error {
	h.UserID = t.account.UserID
	t.holdings[h.Symbol] = &h
	return nil
}

func (t *memTx) DeleteHolding(_ context.Context, symbol string) error {
	t.holdings[symbol] = nil
	return nil
}

func (t *memTx) InsertFill(_ context.Context, f *domain.Fill) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	t.fills = append(t.fills, *f)
	return nil
}

func (t *memTx) SetOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	o, err := t.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != domain.StatusPending {
		return fmt.Errorf("order %s is no longer pending", id)
	}
	t.statuses[id] = status
	return nil
}

func (t *memTx) AppendCashEntry(_ context.Context, e *domain.CashEntry) error {
	e.UserID = t.account.UserID
	t.entries = append(t.entries, *e)
	return nil
}
