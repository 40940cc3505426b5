package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
)

type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, a *domain.Account) error {
	query := `
		INSERT INTO accounts (user_id, cash_balance)
		VALUES ($1, $2)
		RETURNING created_at, updated_at`
	return tx.QueryRowContext(ctx, query, a.UserID, a.CashBalance).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	var a domain.Account
	err := r.db.GetContext(ctx, &a, `SELECT * FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// GetForUpdateTx locks the account row until tx ends. Every writer of the
// user's holdings takes this lock first, so it covers those rows as well.
func (r *AccountRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*domain.Account, error) {
	var a domain.Account
	err := tx.GetContext(ctx, &a, `SELECT * FROM accounts WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) UpdateCashBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE accounts SET cash_balance = $1, updated_at = NOW() WHERE user_id = $2`,
		balance, userID)
	return err
}
