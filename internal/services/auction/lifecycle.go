package auction

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sealedbid/internal/apperr"
	"sealedbid/internal/models"
	"sealedbid/internal/notify"
	"sealedbid/internal/store"
)

// Every transition below runs in one transaction whose first statement locks
// the auction row. Joins, bids, starts and closes on the same auction are
// therefore serialised by the store, and the scheduler goes through exactly
// the same functions as requests do.

func lockAuction(ctx context.Context, l *store.Ledgers, id int64) (*models.Auction, error) {
	a, err := l.Auctions.FindByIDForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFoundf("auction %d not found", id)
	}
	return a, err
}

func lockWallet(ctx context.Context, l *store.Ledgers, userID int64) (*models.Wallet, error) {
	w, err := l.Wallets.FindByUserForUpdate(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFoundf("wallet of user %d not found", userID)
	}
	return w, err
}

func credit(ctx context.Context, l *store.Ledgers, userID int64, amount decimal.Decimal, at time.Time) error {
	if amount.IsZero() {
		return nil
	}
	w, err := lockWallet(ctx, l, userID)
	if err != nil {
		return err
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = at
	return l.Wallets.Save(ctx, w)
}

func (svc *auctionService) UpdateStatus(ctx context.Context, auctionID int64, status models.Status) (*models.Auction, error) {
	if status != models.StatusOpen {
		return nil, apperr.Validationf("status can only be updated to %q", models.StatusOpen)
	}
	var a *models.Auction
	err := svc.store.InTx(ctx, func(l *store.Ledgers) error {
		var err error
		if a, err = lockAuction(ctx, l, auctionID); err != nil {
			return err
		}
		if a.Status != models.StatusCreated {
			return apperr.InvalidStatef("auction %d is %s, only created auctions can be opened", a.ID, a.Status)
		}
		a.Status = models.StatusOpen
		a.UpdatedAt = svc.now()
		return l.Auctions.Save(ctx, a)
	})
	if err != nil {
		return nil, svc.fail("auction.update_status", auctionID, err)
	}
	zap.L().Info("auction.opened", zap.Int64("auction_id", auctionID))
	return a, nil
}

// Join reserves entryFee+maxPrice from the wallet so the participant can
// always pay a winning bid up to the ceiling.
func (svc *auctionService) Join(ctx context.Context, userID, auctionID int64) (*models.Participation, error) {
	var p *models.Participation
	err := svc.store.InTx(ctx, func(l *store.Ledgers) error {
		a, err := lockAuction(ctx, l, auctionID)
		if err != nil {
			return err
		}
		if a.Status != models.StatusOpen {
			return apperr.InvalidStatef("auction %d is %s, joining requires open", a.ID, a.Status)
		}

		_, err = l.Participations.Find(ctx, userID, a.ID)
		switch {
		case err == nil:
			return apperr.New(apperr.DuplicateParticipation, "already joined this auction")
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		n, err := l.Participations.CountByAuction(ctx, a.ID)
		if err != nil {
			return err
		}
		if n >= a.MaxParticipants {
			return apperr.Newf(apperr.CapacityExceeded, "auction %d is full (%d participants)", a.ID, a.MaxParticipants)
		}

		w, err := lockWallet(ctx, l, userID)
		if err != nil {
			return err
		}
		cost := a.Escrow()
		if !w.Covers(cost) {
			return apperr.Newf(apperr.InsufficientBalance, "balance %s does not cover %s", w.Balance, cost)
		}

		now := svc.now()
		w.Balance = w.Balance.Sub(cost)
		w.UpdatedAt = now
		if err := l.Wallets.Save(ctx, w); err != nil {
			return err
		}

		p = &models.Participation{
			UserID:    userID,
			AuctionID: a.ID,
			Fee:       a.EntryFee,
			IsValid:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return l.Participations.Create(ctx, p)
	})
	if err != nil {
		return nil, svc.fail("auction.join", auctionID, err)
	}
	zap.L().Info("auction.joined", zap.Int64("auction_id", auctionID), zap.Int64("user_id", userID))
	return p, nil
}

func (svc *auctionService) PlaceBid(ctx context.Context, auctionID, userID int64, amount decimal.Decimal) (*BidResult, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validationf("bid amount must be positive")
	}
	if !models.FitsMoneyScale(amount) {
		return nil, apperr.Validationf("bid amount may have at most %d decimal places", models.MoneyScale)
	}
	var (
		res     *BidResult
		auction *models.Auction
	)
	err := svc.store.InTx(ctx, func(l *store.Ledgers) error {
		a, err := lockAuction(ctx, l, auctionID)
		if err != nil {
			return err
		}
		if a.Status != models.StatusBidding {
			return apperr.InvalidStatef("auction %d is %s, bids are accepted only while bidding", a.ID, a.Status)
		}
		now := svc.now()
		if now.After(a.EndTime) {
			return apperr.InvalidStatef("bidding window of auction %d has ended", a.ID)
		}

		p, err := l.Participations.Find(ctx, userID, a.ID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.Forbidden, "not a participant of this auction")
		}
		if err != nil {
			return err
		}
		if !p.IsValid {
			return apperr.New(apperr.Forbidden, "participation is no longer valid")
		}

		n, err := l.Bids.CountByAuctionAndUser(ctx, a.ID, userID)
		if err != nil {
			return err
		}
		if n >= a.BidsPerParticipant {
			return apperr.Newf(apperr.CapacityExceeded, "bid limit of %d reached", a.BidsPerParticipant)
		}

		last := decimal.Zero
		lb, err := l.Bids.FindLast(ctx, a.ID)
		switch {
		case err == nil:
			last = lb.Amount
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if floor := last.Add(a.MinIncrement); amount.LessThan(floor) {
			return apperr.Validationf("bid must be at least %s", floor)
		}
		if amount.GreaterThan(a.MaxPrice) {
			return apperr.Validationf("bid must not exceed max price %s", a.MaxPrice)
		}

		b := &models.Bid{UserID: userID, AuctionID: a.ID, Amount: amount, CreatedAt: now}
		if err := l.Bids.Create(ctx, b); err != nil {
			return err
		}
		res = &BidResult{Bid: *b, EndTime: a.EndTime}

		if svc.shouldExtend(a, now) {
			a.EndTime = now.Add(a.RelaunchWindow())
			a.ExtensionCount++
			a.UpdatedAt = now
			if err := l.Auctions.Save(ctx, a); err != nil {
				return err
			}
			res.Extended = true
			res.EndTime = a.EndTime
		}
		auction = a
		return nil
	})
	if err != nil {
		return nil, svc.fail("auction.bid", auctionID, err)
	}

	events := []notify.Event{notify.NewEvent(notify.NewBid, auctionID, res.Bid.CreatedAt, map[string]any{
		"bid_id":  res.Bid.ID,
		"user_id": userID,
		"amount":  res.Bid.Amount,
	})}
	if res.Extended {
		events = append(events, notify.NewEvent(notify.Extended, auctionID, res.Bid.CreatedAt, map[string]any{
			"end_time":        res.EndTime,
			"extension_count": auction.ExtensionCount,
		}))
		zap.L().Info("auction.extended",
			zap.Int64("auction_id", auctionID),
			zap.Time("end_time", res.EndTime),
			zap.Int("extension_count", auction.ExtensionCount),
		)
	}
	svc.emit(ctx, events...)
	return res, nil
}

// shouldExtend implements anti-sniping: a bid landing within relaunchTime of
// the end pushes the end to now+relaunchTime.
func (svc *auctionService) shouldExtend(a *models.Auction, now time.Time) bool {
	if a.RelaunchTime <= 0 {
		return false
	}
	if svc.maxExtensions > 0 && a.ExtensionCount >= svc.maxExtensions {
		return false
	}
	return a.EndTime.Sub(now) <= a.RelaunchWindow()
}

// Start moves an open auction to bidding, or cancels it when too few valid
// participants joined.
func (svc *auctionService) Start(ctx context.Context, auctionID int64) (*StartResult, error) {
	return svc.start(ctx, auctionID, false)
}

// AutoStart is the scheduler's entry: created auctions qualify too, but only
// once their start time has passed.
func (svc *auctionService) AutoStart(ctx context.Context, auctionID int64) (*StartResult, error) {
	return svc.start(ctx, auctionID, true)
}

func (svc *auctionService) start(ctx context.Context, auctionID int64, scheduled bool) (*StartResult, error) {
	var res *StartResult
	err := svc.store.InTx(ctx, func(l *store.Ledgers) error {
		a, err := lockAuction(ctx, l, auctionID)
		if err != nil {
			return err
		}
		now := svc.now()
		if scheduled {
			if !a.Status.In(models.StatusCreated, models.StatusOpen) {
				return apperr.InvalidStatef("auction %d is %s", a.ID, a.Status)
			}
			if now.Before(a.StartTime) {
				return apperr.InvalidStatef("auction %d starts at %s", a.ID, a.StartTime.Format(time.RFC3339))
			}
		} else if a.Status != models.StatusOpen {
			return apperr.InvalidStatef("auction %d is %s, starting requires open", a.ID, a.Status)
		}

		valid, err := l.Participations.CountValidByAuction(ctx, a.ID)
		if err != nil {
			return err
		}
		res = &StartResult{AuctionID: a.ID, Participants: valid, EndTime: a.EndTime}
		if valid < a.MinParticipants {
			if err := svc.cancelLocked(ctx, l, a, now); err != nil {
				return err
			}
			res.Status = a.Status
			return nil
		}

		a.Status = models.StatusBidding
		a.UpdatedAt = now
		res.Status = a.Status
		return l.Auctions.Save(ctx, a)
	})
	if err != nil {
		return nil, svc.fail("auction.start", auctionID, err)
	}

	now := svc.now()
	if res.Status == models.StatusCancelled {
		zap.L().Info("auction.cancelled",
			zap.Int64("auction_id", auctionID),
			zap.Int("participants", res.Participants),
		)
		svc.emit(ctx, notify.NewEvent(notify.AuctionCancelled, auctionID, now, map[string]any{
			"reason":       "not_enough_participants",
			"participants": res.Participants,
		}))
		return res, nil
	}
	zap.L().Info("auction.started", zap.Int64("auction_id", auctionID), zap.Int("participants", res.Participants))
	svc.emit(ctx, notify.NewEvent(notify.AuctionStarted, auctionID, now, map[string]any{
		"participants": res.Participants,
		"end_time":     res.EndTime,
	}))
	return res, nil
}

// cancelLocked returns the full escrow to every valid participant,
// invalidates their participations and marks the auction cancelled.
func (svc *auctionService) cancelLocked(ctx context.Context, l *store.Ledgers, a *models.Auction, now time.Time) error {
	if !a.Status.CanTransitionTo(models.StatusCancelled) {
		return apperr.InvalidStatef("auction %d is %s and cannot be cancelled", a.ID, a.Status)
	}
	participants, err := l.Participations.FindValidParticipants(ctx, a.ID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if err := credit(ctx, l, p.UserID, a.MaxPrice.Add(p.Fee), now); err != nil {
			return err
		}
	}
	if _, err := l.Participations.InvalidateByAuction(ctx, a.ID, now); err != nil {
		return err
	}
	a.Status = models.StatusCancelled
	a.UpdatedAt = now
	return l.Auctions.Save(ctx, a)
}

// Close settles a bidding auction: the top bidder keeps paying their bid and
// gets maxPrice-bid back, everybody else gets their whole escrow back.
func (svc *auctionService) Close(ctx context.Context, auctionID int64) (*CloseResult, error) {
	return svc.settle(ctx, auctionID, false)
}

// AutoClose is the scheduler's entry. It re-checks the end time under the
// lock, since a late bid may have extended the auction after it was selected,
// and cancels with full refunds when nobody bid at all.
func (svc *auctionService) AutoClose(ctx context.Context, auctionID int64) (*CloseResult, error) {
	return svc.settle(ctx, auctionID, true)
}

func (svc *auctionService) settle(ctx context.Context, auctionID int64, scheduled bool) (*CloseResult, error) {
	var res *CloseResult
	err := svc.store.InTx(ctx, func(l *store.Ledgers) error {
		a, err := lockAuction(ctx, l, auctionID)
		if err != nil {
			return err
		}
		if a.Status != models.StatusBidding {
			return apperr.InvalidStatef("auction %d is %s, closing requires bidding", a.ID, a.Status)
		}
		now := svc.now()
		if scheduled && now.Before(a.EndTime) {
			return apperr.InvalidStatef("auction %d runs until %s", a.ID, a.EndTime.Format(time.RFC3339))
		}

		top, err := l.Bids.FindTop(ctx, a.ID)
		if errors.Is(err, store.ErrNotFound) {
			if !scheduled {
				return apperr.New(apperr.NoValidBid, "auction has no valid bid")
			}
			res = &CloseResult{AuctionID: a.ID, FinalAmount: decimal.Zero}
			if err := svc.cancelLocked(ctx, l, a, now); err != nil {
				return err
			}
			res.Status = a.Status
			return nil
		}
		if err != nil {
			return err
		}

		participants, err := l.Participations.FindValidParticipants(ctx, a.ID)
		if err != nil {
			return err
		}
		winnerFound := false
		for i := range participants {
			p := &participants[i]
			refund := a.MaxPrice.Add(p.Fee)
			if p.UserID == top.UserID {
				winnerFound = true
				refund = a.MaxPrice.Sub(top.Amount)
				p.IsWinner = true
				p.UpdatedAt = now
				if err := l.Participations.Save(ctx, p); err != nil {
					return err
				}
			}
			if err := credit(ctx, l, p.UserID, refund, now); err != nil {
				return err
			}
		}
		if !winnerFound {
			return errors.New("top bidder holds no valid participation")
		}

		a.Status = models.StatusClosed
		a.UpdatedAt = now
		if err := l.Auctions.Save(ctx, a); err != nil {
			return err
		}
		res = &CloseResult{
			AuctionID:   a.ID,
			Status:      a.Status,
			WinnerID:    top.UserID,
			FinalAmount: top.Amount,
		}
		return nil
	})
	if err != nil {
		return nil, svc.fail("auction.close", auctionID, err)
	}

	now := svc.now()
	if res.Status == models.StatusCancelled {
		zap.L().Info("auction.cancelled", zap.Int64("auction_id", auctionID), zap.String("reason", "no_bids"))
		svc.emit(ctx, notify.NewEvent(notify.AuctionCancelled, auctionID, now, map[string]any{
			"reason": "no_bids",
		}))
		return res, nil
	}
	zap.L().Info("auction.closed",
		zap.Int64("auction_id", auctionID),
		zap.Int64("winner_id", res.WinnerID),
		zap.String("final_amount", res.FinalAmount.String()),
	)
	svc.emit(ctx, notify.NewEvent(notify.AuctionClosed, auctionID, now, map[string]any{
		"winner_id":    res.WinnerID,
		"final_amount": res.FinalAmount,
	}))
	return res, nil
}
