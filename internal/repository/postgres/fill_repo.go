package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/yourorg/stocksim/internal/domain"
)

type FillRepo struct {
	db *sqlx.DB
}

func NewFillRepo(db *sqlx.DB) *FillRepo {
	return &FillRepo{db: db}
}

// InsertTx relies on the unique index on fills.order_id to reject a second
// fill for the same order.
func (r *FillRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, f *domain.Fill) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	query := `
		INSERT INTO fills (id, user_id, order_id, symbol, side, quantity, executed_price, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := tx.ExecContext(ctx, query,
		f.ID, f.UserID, f.OrderID, f.Symbol, f.Side, f.Quantity, f.ExecutedPrice, f.ExecutedAt)
	return err
}

func (r *FillRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Fill, error) {
	fills := []domain.Fill{}
	err := r.db.SelectContext(ctx, &fills,
		`SELECT * FROM fills WHERE user_id = $1 ORDER BY executed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return fills, nil
}

func (r *FillRepo) GetByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]domain.Fill, error) {
	out := make(map[uuid.UUID]domain.Fill, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		ids[i] = id.String()
	}
	var fills []domain.Fill
	err := r.db.SelectContext(ctx, &fills,
		`SELECT * FROM fills WHERE order_id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, f := range fills {
		if f.OrderID != nil {
			out[*f.OrderID] = f
		}
	}
	return out, nil
}
