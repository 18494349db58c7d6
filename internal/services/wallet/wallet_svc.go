package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sealedbid/internal/apperr"
	"sealedbid/internal/models"
	"sealedbid/internal/store"
)

type IWalletService interface {
	// Open creates the user's wallet with the configured initial grant.
	Open(ctx context.Context, userID int64) (*models.Wallet, error)
	Get(ctx context.Context, userID int64) (*models.Wallet, error)
	Recharge(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

type walletService struct {
	store        *store.Store
	initialGrant decimal.Decimal
	clock        func() time.Time
}

func NewWalletService(st *store.Store, initialGrant decimal.Decimal) IWalletService {
	return &walletService{store: st, initialGrant: initialGrant, clock: time.Now}
}

func (svc *walletService) Open(ctx context.Context, userID int64) (*models.Wallet, error) {
	if userID <= 0 {
		return nil, apperr.Validationf("invalid user id %d", userID)
	}
	var w *models.Wallet
	err := svc.store.InTx(ctx, func(l *store.Ledgers) error {
		_, err := l.Wallets.FindByUser(ctx, userID)
		switch {
		case err == nil:
			return apperr.InvalidStatef("user %d already has a wallet", userID)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		now := svc.clock().UTC()
		w = &models.Wallet{UserID: userID, Balance: svc.initialGrant, CreatedAt: now, UpdatedAt: now}
		if err := l.Wallets.Create(ctx, w); errors.Is(err, store.ErrWalletExists) {
			// lost a race with a concurrent Open
			return apperr.InvalidStatef("user %d already has a wallet", userID)
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fail("wallet.open", userID, err)
	}
	zap.L().Info("wallet.opened", zap.Int64("user_id", userID), zap.String("balance", w.Balance.String()))
	return w, nil
}

func (svc *walletService) Get(ctx context.Context, userID int64) (*models.Wallet, error) {
	w, err := svc.store.Read().Wallets.FindByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFoundf("wallet of user %d not found", userID)
	}
	if err != nil {
		return nil, fail("wallet.get", userID, err)
	}
	return w, nil
}

func (svc *walletService) Recharge(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !models.FitsMoneyScale(amount) {
		return decimal.Zero, apperr.Validationf("recharge amount may have at most %d decimal places", models.MoneyScale)
	}
	var balance decimal.Decimal
	err := svc.store.InTx(ctx, func(l *store.Ledgers) error {
		var err error
		balance, err = l.Wallets.Recharge(ctx, userID, amount, svc.clock().UTC())
		switch {
		case errors.Is(err, store.ErrNotFound):
			return apperr.NotFoundf("wallet of user %d not found", userID)
		case errors.Is(err, store.ErrNonPositiveAmount):
			return apperr.Validationf("recharge amount must be positive")
		}
		return err
	})
	if err != nil {
		return decimal.Zero, fail("wallet.recharge", userID, err)
	}
	zap.L().Info("wallet.recharged",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("balance", balance.String()),
	)
	return balance, nil
}

func fail(op string, userID int64, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	zap.L().Error(op+"_failed", zap.Int64("user_id", userID), zap.Error(err))
	return apperr.Wrap(apperr.Internal, err, op)
}
