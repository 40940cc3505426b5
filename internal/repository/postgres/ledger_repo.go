package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/yourorg/stocksim/internal/domain"
)

// LedgerRepo stores the cash journal: one entry per balance change.
type LedgerRepo struct {
	db *sqlx.DB
}

func NewLedgerRepo(db *sqlx.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, entry *domain.CashEntry) error {
	query := `
		INSERT INTO ledger (user_id, order_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return tx.QueryRowContext(ctx, query,
		entry.UserID, entry.OrderID, entry.EntryType, entry.Amount, entry.BalanceAfter).
		Scan(&entry.ID, &entry.CreatedAt)
}

func (r *LedgerRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.CashEntry, error) {
	entries := []domain.CashEntry{}
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM ledger WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
