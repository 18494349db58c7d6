package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sealedbid/internal/models"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrWalletExists      = errors.New("wallet already exists")
)

type WalletRepo struct {
	q         DBTX
	forUpdate string
}

func (r *WalletRepo) FindByUser(ctx context.Context, userID int64) (*models.Wallet, error) {
	return r.find(ctx, userID, "")
}

// FindByUserForUpdate locks the wallet row for a read-modify-write.
func (r *WalletRepo) FindByUserForUpdate(ctx context.Context, userID int64) (*models.Wallet, error) {
	return r.find(ctx, userID, r.forUpdate)
}

func (r *WalletRepo) find(ctx context.Context, userID int64, suffix string) (*models.Wallet, error) {
	q := `SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1` + suffix
	w := &models.Wallet{}
	err := r.q.QueryRowContext(ctx, q, userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select wallet of user %d: %w", userID, err)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

// Create returns ErrWalletExists when the user already owns a wallet.
func (r *WalletRepo) Create(ctx context.Context, w *models.Wallet) error {
	const q = `
	  INSERT INTO wallets (user_id, balance, created_at, updated_at)
	       VALUES ($1, $2, $3, $4)
	  ON CONFLICT (user_id) DO NOTHING
	    RETURNING id`
	err := r.q.QueryRowContext(ctx, q, w.UserID, w.Balance, w.CreatedAt.UTC(), w.UpdatedAt.UTC()).Scan(&w.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrWalletExists
	}
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func (r *WalletRepo) Save(ctx context.Context, w *models.Wallet) error {
	const q = `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`
	res, err := r.q.ExecContext(ctx, q, w.Balance, w.UpdatedAt.UTC(), w.ID)
	if err != nil {
		return fmt.Errorf("update wallet %d: %w", w.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recharge credits amount to the user's wallet and returns the new balance.
func (r *WalletRepo) Recharge(ctx context.Context, userID int64, amount decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	w, err := r.FindByUserForUpdate(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = at
	if err := r.Save(ctx, w); err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}
