package wallet

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealedbid/internal/apperr"
	"sealedbid/internal/store"
	"sealedbid/internal/store/storetest"
)

func TestOpenGrantsInitialBalance(t *testing.T) {
	svc := NewWalletService(storetest.New(t), decimal.NewFromInt(1000))
	ctx := context.Background()

	w, err := svc.Open(ctx, 42)
	require.NoError(t, err)
	assert.NotZero(t, w.ID)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(1000)))

	_, err = svc.Open(ctx, 42)
	assert.True(t, apperr.IsKind(err, apperr.InvalidState))

	got, err := svc.Get(ctx, 42)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)))
}

func TestRecharge(t *testing.T) {
	svc := NewWalletService(storetest.New(t), decimal.NewFromInt(100))
	ctx := context.Background()
	_, err := svc.Open(ctx, 1)
	require.NoError(t, err)

	balance, err := svc.Recharge(ctx, 1, decimal.RequireFromString("25.5"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("125.5")), balance.String())

	w, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(balance))
}

func TestRechargeErrors(t *testing.T) {
	svc := NewWalletService(storetest.New(t), decimal.NewFromInt(100))
	ctx := context.Background()

	_, err := svc.Recharge(ctx, 99, decimal.NewFromInt(10))
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	_, err = svc.Open(ctx, 5)
	require.NoError(t, err)
	_, err = svc.Recharge(ctx, 5, decimal.NewFromInt(-1))
	assert.True(t, apperr.IsKind(err, apperr.Validation))
	_, err = svc.Recharge(ctx, 5, decimal.RequireFromString("0.00001"))
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	_, err = svc.Get(ctx, 6)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	_, err = svc.Open(ctx, 0)
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestOpenLosingInsertRaceIsInvalidState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewWalletService(store.New(db, store.Postgres), decimal.NewFromInt(100))

	// The existence check misses the wallet a concurrent Open is inserting.
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM wallets WHERE user_id`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}))
	mock.ExpectQuery(`ON CONFLICT \(user_id\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err = svc.Open(context.Background(), 8)
	assert.True(t, apperr.IsKind(err, apperr.InvalidState), "%v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
