package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealedbid/internal/models"
)

func newMock(t *testing.T, dialect Dialect, matcher ...sqlmock.QueryMatcher) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	m := sqlmock.QueryMatcherRegexp
	if len(matcher) > 0 {
		m = matcher[0]
	}
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(m))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, dialect), mock
}

var walletCols = []string{"id", "user_id", "balance", "created_at", "updated_at"}

func TestWalletRechargeLocksAndSaves(t *testing.T) {
	s, mock := newMock(t, Postgres)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM wallets WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow(int64(1), int64(7), "100", now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs("150", now, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var balance decimal.Decimal
	err := s.InTx(context.Background(), func(l *Ledgers) error {
		var err error
		balance, err = l.Wallets.Recharge(context.Background(), 7, decimal.NewFromInt(50), now)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "150", balance.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRechargeUnknownUser(t *testing.T) {
	s, mock := newMock(t, Postgres)

	mock.ExpectQuery(`FROM wallets WHERE user_id`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(walletCols))

	_, err := s.Read().Wallets.Recharge(context.Background(), 9, decimal.NewFromInt(10), time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRechargeRejectsNonPositive(t *testing.T) {
	s, mock := newMock(t, Postgres)

	_, err := s.Read().Wallets.Recharge(context.Background(), 1, decimal.Zero, time.Now())
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	_, err = s.Read().Wallets.Recharge(context.Background(), 1, decimal.NewFromInt(-5), time.Now())
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, mock := newMock(t, Postgres)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE participations SET is_valid = FALSE`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(l *Ledgers) error {
		n, err := l.Participations.InvalidateByAuction(context.Background(), 4, time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteDialectSkipsRowLocks(t *testing.T) {
	noLock := sqlmock.QueryMatcherFunc(func(expectedSQL, actualSQL string) error {
		if strings.Contains(actualSQL, "FOR UPDATE") {
			return fmt.Errorf("unexpected row lock in %q", actualSQL)
		}
		if !strings.Contains(actualSQL, expectedSQL) {
			return fmt.Errorf("%q does not contain %q", actualSQL, expectedSQL)
		}
		return nil
	})
	s, mock := newMock(t, SQLite, noLock)

	mock.ExpectQuery(`FROM auctions WHERE id = $1`).
		WithArgs(int64(3)).
		WillReturnError(errors.New("stop here"))

	_, err := s.Read().Auctions.FindByIDForUpdate(context.Background(), 3)
	assert.ErrorContains(t, err, "stop here")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuctionNotFound(t *testing.T) {
	s, mock := newMock(t, Postgres)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM auctions WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Read().Auctions.FindByIDForUpdate(context.Background(), 11)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBidTopOrdersByAmountThenEarliest(t *testing.T) {
	s, mock := newMock(t, Postgres)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY amount DESC, created_at ASC, id ASC LIMIT 1`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "auction_id", "amount", "created_at"}).
			AddRow(int64(5), int64(40), int64(2), "80", at))

	b, err := s.Read().Bids.FindTop(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(40), b.UserID)
	assert.True(t, b.Amount.Equal(decimal.NewFromInt(80)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBidLastEmpty(t *testing.T) {
	s, mock := newMock(t, Postgres)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id DESC LIMIT 1`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "auction_id", "amount", "created_at"}))

	_, err := s.Read().Bids.FindLast(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuctionSaveReportsMissingRow(t *testing.T) {
	s, mock := newMock(t, Postgres)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE auctions`).
		WithArgs("bidding", sqlmock.AnyArg(), sqlmock.AnyArg(), 0, sqlmock.AnyArg(), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Read().Auctions.Save(context.Background(), &models.Auction{
		ID: 8, Status: models.StatusBidding, StartTime: now, EndTime: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
