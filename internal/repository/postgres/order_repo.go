package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
)

type OrderRepo struct {
	db *sqlx.DB
}

func NewOrderRepo(db *sqlx.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

type orderRow struct {
	ID         uuid.UUID           `db:"id"`
	UserID     uuid.UUID           `db:"user_id"`
	Symbol     string              `db:"symbol"`
	Side       domain.OrderSide    `db:"side"`
	Quantity   int64               `db:"quantity"`
	OrderKind  domain.KindName     `db:"order_kind"`
	LimitPrice decimal.NullDecimal `db:"limit_price"`
	Status     domain.OrderStatus  `db:"status"`
	CreatedAt  time.Time           `db:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at"`
}

func (row orderRow) toDomain() (domain.Order, error) {
	var limit *decimal.Decimal
	if row.LimitPrice.Valid {
		limit = &row.LimitPrice.Decimal
	}
	kind, err := domain.KindFromColumns(row.OrderKind, limit)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", row.ID, err)
	}
	return domain.Order{
		ID:        row.ID,
		UserID:    row.UserID,
		Symbol:    row.Symbol,
		Side:      row.Side,
		Quantity:  row.Quantity,
		Kind:      kind,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func toOrders(rows []orderRow) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	query := `
		INSERT INTO orders (id, user_id, symbol, side, quantity, order_kind, limit_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	var limit decimal.NullDecimal
	if p := domain.LimitPrice(o.Kind); p != nil {
		limit = decimal.NewNullDecimal(*p)
	}
	return r.db.QueryRowContext(ctx, query,
		o.ID, o.UserID, o.Symbol, o.Side, o.Quantity, o.Kind.Name(), limit, o.Status).
		Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, r.db, `SELECT * FROM orders WHERE id = $1`, id)
}

func (r *OrderRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, tx, `SELECT * FROM orders WHERE id = $1`, id)
}

func getOrder(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*domain.Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		status, id, domain.StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s is no longer pending", id)
	}
	return nil
}

func (r *OrderRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return r.list(ctx, `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *OrderRepo) GetPendingByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return r.list(ctx,
		`SELECT * FROM orders WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`,
		userID, domain.StatusPending)
}

func (r *OrderRepo) GetPendingLimit(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx,
		`SELECT * FROM orders WHERE status = $1 AND order_kind = $2 ORDER BY created_at`,
		domain.StatusPending, domain.KindLimit)
}

func (r *OrderRepo) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return toOrders(rows)
}
