package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/yourorg/stocksim/internal/domain"
)

type HoldingRepo struct {
	db *sqlx.DB
}

func NewHoldingRepo(db *sqlx.DB) *HoldingRepo {
	return &HoldingRepo{db: db}
}

func (r *HoldingRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Holding, error) {
	holdings := []domain.Holding{}
	err := r.db.SelectContext(ctx, &holdings,
		`SELECT * FROM holdings WHERE user_id = $1 ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

func (r *HoldingRepo) GetBySymbol(ctx context.Context, userID uuid.UUID, symbol string) (*domain.Holding, error) {
	return getHolding(ctx, r.db, userID, symbol)
}

func (r *HoldingRepo) GetBySymbolTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, symbol string) (*domain.Holding, error) {
	return getHolding(ctx, tx, userID, symbol)
}

func getHolding(ctx context.Context, q sqlx.QueryerContext, userID uuid.UUID, symbol string) (*domain.Holding, error) {
	var h domain.Holding
	err := sqlx.GetContext(ctx, q, &h,
		`SELECT * FROM holdings WHERE user_id = $1 AND symbol = $2`, userID, symbol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// UpsertTx writes the already computed quantity and average cost.
func (r *HoldingRepo) UpsertTx(ctx context.Context, tx *sqlx.Tx, h domain.Holding) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO holdings (user_id, symbol, quantity, average_cost)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			quantity     = EXCLUDED.quantity,
			average_cost = EXCLUDED.average_cost,
			updated_at   = NOW()`,
		h.UserID, h.Symbol, h.Quantity, h.AverageCost)
	return err
}

func (r *HoldingRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, symbol string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM holdings WHERE user_id = $1 AND symbol = $2`,
		userID, symbol)
	return err
}
