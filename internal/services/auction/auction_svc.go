package auction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sealedbid/internal/apperr"
	"sealedbid/internal/models"
	"sealedbid/internal/notify"
	"sealedbid/internal/store"
)

type AuctionDTO struct {
	models.Auction
	Participants int             `json:"participants"`
	HighBid      decimal.Decimal `json:"high_bid"`
	HighBidder   int64           `json:"high_bidder,omitempty"`
}

type CreateAuctionParams struct {
	Title              string          `json:"title"                validate:"required,max=200"`
	MinParticipants    int             `json:"min_participants"     validate:"min=1"`
	MaxParticipants    int             `json:"max_participants"     validate:"gtefield=MinParticipants"`
	EntryFee           decimal.Decimal `json:"entry_fee"`
	MaxPrice           decimal.Decimal `json:"max_price"`
	MinIncrement       decimal.Decimal `json:"min_increment"`
	BidsPerParticipant int             `json:"bids_per_participant" validate:"min=1"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            time.Time       `json:"end_time"`
	RelaunchTime       int64           `json:"relaunch_time"        validate:"min=0"`
	Open               bool            `json:"open"`
}

type BidResult struct {
	Bid      models.Bid `json:"bid"`
	Extended bool       `json:"extended"`
	EndTime  time.Time  `json:"end_time"`
}

type StartResult struct {
	AuctionID    int64         `json:"auction_id"`
	Status       models.Status `json:"status"`
	Participants int           `json:"participants"`
	EndTime      time.Time     `json:"end_time"`
}

type CloseResult struct {
	AuctionID   int64           `json:"auction_id"`
	Status      models.Status   `json:"status"`
	WinnerID    int64           `json:"winner_id,omitempty"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

type IAuctionService interface {
	CreateAuction(ctx context.Context, creatorID int64, p CreateAuctionParams) (*models.Auction, error)
	GetAuction(ctx context.Context, id int64) (*AuctionDTO, error)
	ListAuctions(ctx context.Context, status string, limit, offset int) ([]models.Auction, error)
	BidHistory(ctx context.Context, auctionID int64) ([]models.Bid, error)
	UserHistory(ctx context.Context, userID int64, from, to time.Time) ([]models.Participation, error)

	UpdateStatus(ctx context.Context, auctionID int64, status models.Status) (*models.Auction, error)
	Join(ctx context.Context, userID, auctionID int64) (*models.Participation, error)
	PlaceBid(ctx context.Context, auctionID, userID int64, amount decimal.Decimal) (*BidResult, error)
	Start(ctx context.Context, auctionID int64) (*StartResult, error)
	Close(ctx context.Context, auctionID int64) (*CloseResult, error)

	DueForStart(ctx context.Context, now time.Time) ([]int64, error)
	DueForClose(ctx context.Context, now time.Time) ([]int64, error)
	AutoStart(ctx context.Context, auctionID int64) (*StartResult, error)
	AutoClose(ctx context.Context, auctionID int64) (*CloseResult, error)
}

type Option func(*auctionService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(svc *auctionService) { svc.clock = now }
}

// WithMaxExtensions caps how many times anti-sniping may push an auction's
// end time. Zero means unlimited.
func WithMaxExtensions(n int) Option {
	return func(svc *auctionService) { svc.maxExtensions = n }
}

type auctionService struct {
	store         *store.Store
	sink          notify.Sink
	validate      *validator.Validate
	clock         func() time.Time
	maxExtensions int
}

var _ IAuctionService = (*auctionService)(nil)

func NewAuctionService(st *store.Store, sink notify.Sink, opts ...Option) IAuctionService {
	if sink == nil {
		sink = notify.LogSink{}
	}
	svc := &auctionService{
		store:    st,
		sink:     sink,
		validate: validator.New(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *auctionService) now() time.Time { return svc.clock().UTC() }

func (svc *auctionService) CreateAuction(ctx context.Context, creatorID int64, p CreateAuctionParams) (*models.Auction, error) {
	if err := svc.checkParams(p); err != nil {
		return nil, err
	}
	now := svc.now()
	a := &models.Auction{
		CreatorID:          creatorID,
		Title:              strings.TrimSpace(p.Title),
		MinParticipants:    p.MinParticipants,
		MaxParticipants:    p.MaxParticipants,
		EntryFee:           p.EntryFee,
		MaxPrice:           p.MaxPrice,
		MinIncrement:       p.MinIncrement,
		BidsPerParticipant: p.BidsPerParticipant,
		Status:             models.StatusCreated,
		StartTime:          p.StartTime.UTC(),
		EndTime:            p.EndTime.UTC(),
		RelaunchTime:       p.RelaunchTime,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if p.Open {
		a.Status = models.StatusOpen
	}
	if err := svc.store.Read().Auctions.Create(ctx, a); err != nil {
		return nil, svc.fail("auction.create", 0, err)
	}
	zap.L().Info("auction.created",
		zap.Int64("auction_id", a.ID),
		zap.Int64("creator_id", creatorID),
		zap.String("status", string(a.Status)),
	)
	return a, nil
}

func (svc *auctionService) checkParams(p CreateAuctionParams) error {
	if err := svc.validate.Struct(p); err != nil {
		return apperr.Wrap(apperr.Validation, err, "invalid auction parameters")
	}
	switch {
	case p.StartTime.IsZero() || p.EndTime.IsZero():
		return apperr.Validationf("start_time and end_time are required")
	case p.EndTime.Before(p.StartTime):
		return apperr.Validationf("end_time must not be before start_time")
	case p.EntryFee.IsNegative():
		return apperr.Validationf("entry_fee must not be negative")
	case !p.MaxPrice.IsPositive():
		return apperr.Validationf("max_price must be positive")
	case !p.MinIncrement.IsPositive():
		return apperr.Validationf("min_increment must be positive")
	case p.MinIncrement.GreaterThan(p.MaxPrice):
		return apperr.Validationf("min_increment must not exceed max_price")
	case !models.FitsMoneyScale(p.EntryFee) || !models.FitsMoneyScale(p.MaxPrice) || !models.FitsMoneyScale(p.MinIncrement):
		return apperr.Validationf("amounts may have at most %d decimal places", models.MoneyScale)
	}
	return nil
}

func (svc *auctionService) GetAuction(ctx context.Context, id int64) (*AuctionDTO, error) {
	l := svc.store.Read()
	a, err := l.Auctions.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFoundf("auction %d not found", id)
	}
	if err != nil {
		return nil, svc.fail("auction.get", id, err)
	}
	dto := &AuctionDTO{Auction: *a, HighBid: decimal.Zero}
	if dto.Participants, err = l.Participations.CountValidByAuction(ctx, id); err != nil {
		return nil, svc.fail("auction.get", id, err)
	}
	top, err := l.Bids.FindTop(ctx, id)
	switch {
	case err == nil:
		dto.HighBid = top.Amount
		dto.HighBidder = top.UserID
	case !errors.Is(err, store.ErrNotFound):
		return nil, svc.fail("auction.get", id, err)
	}
	return dto, nil
}

func (svc *auctionService) ListAuctions(ctx context.Context, status string, limit, offset int) ([]models.Auction, error) {
	st := models.Status(status)
	if status != "" && !st.Valid() {
		return nil, apperr.Validationf("unknown status %q", status)
	}
	list, err := svc.store.Read().Auctions.List(ctx, st, limit, offset)
	if err != nil {
		return nil, svc.fail("auction.list", 0, err)
	}
	return list, nil
}

func (svc *auctionService) BidHistory(ctx context.Context, auctionID int64) ([]models.Bid, error) {
	l := svc.store.Read()
	if _, err := l.Auctions.FindByID(ctx, auctionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFoundf("auction %d not found", auctionID)
		}
		return nil, svc.fail("auction.bids", auctionID, err)
	}
	bids, err := l.Bids.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, svc.fail("auction.bids", auctionID, err)
	}
	return bids, nil
}

func (svc *auctionService) UserHistory(ctx context.Context, userID int64, from, to time.Time) ([]models.Participation, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperr.Validationf("to must not be before from")
	}
	list, err := svc.store.Read().Participations.FindByUser(ctx, userID, from, to)
	if err != nil {
		return nil, svc.fail("auction.user_history", 0, err)
	}
	return list, nil
}

func (svc *auctionService) DueForStart(ctx context.Context, now time.Time) ([]int64, error) {
	list, err := svc.store.Read().Auctions.FindDueForStart(ctx, now)
	if err != nil {
		return nil, err
	}
	return ids(list), nil
}

func (svc *auctionService) DueForClose(ctx context.Context, now time.Time) ([]int64, error) {
	list, err := svc.store.Read().Auctions.FindDueForClose(ctx, now)
	if err != nil {
		return nil, err
	}
	return ids(list), nil
}

func ids(list []models.Auction) []int64 {
	out := make([]int64, len(list))
	for i := range list {
		out[i] = list[i].ID
	}
	return out
}

// fail passes typed errors through and turns everything else into an
// Internal error after logging it.
func (svc *auctionService) fail(op string, auctionID int64, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		zap.L().Debug(op+"_rejected",
			zap.Int64("auction_id", auctionID),
			zap.String("kind", ae.Kind.String()),
			zap.String("reason", ae.Msg),
		)
		return err
	}
	zap.L().Error(op+"_failed", zap.Int64("auction_id", auctionID), zap.Error(err))
	return apperr.Wrap(apperr.Internal, err, op)
}

// emit runs after commit. Delivery failures are logged and never reach the
// caller: the state change already happened.
func (svc *auctionService) emit(ctx context.Context, events ...notify.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, evt := range events {
		if err := svc.sink.Publish(ctx, evt); err != nil {
			zap.L().Warn("auction.notify_failed",
				zap.String("event", string(evt.Type)),
				zap.Int64("auction_id", evt.AuctionID),
				zap.Error(err),
			)
		}
	}
}
