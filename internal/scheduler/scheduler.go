package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sealedbid/internal/apperr"
	"sealedbid/internal/services/auction"
)

const DefaultInterval = time.Minute

// Driver is the slice of the auction engine the scheduler needs.
type Driver interface {
	DueForStart(ctx context.Context, now time.Time) ([]int64, error)
	DueForClose(ctx context.Context, now time.Time) ([]int64, error)
	AutoStart(ctx context.Context, auctionID int64) (*auction.StartResult, error)
	AutoClose(ctx context.Context, auctionID int64) (*auction.CloseResult, error)
}

type Scheduler struct {
	drv      Driver
	interval time.Duration
	clock    func() time.Time
}

func New(drv Driver, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{drv: drv, interval: interval, clock: time.Now}
}

// Run sweeps once right away and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	tk := time.NewTicker(s.interval)
	defer tk.Stop()

	zap.L().Info("scheduler.started", zap.Duration("interval", s.interval))
	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("scheduler.stopped")
			return
		case <-tk.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one sweep: due starts first, then due closes. A failure on one
// auction is logged and never stops the sweep; the next tick retries it.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock().UTC()

	if ids, err := s.drv.DueForStart(ctx, now); err != nil {
		zap.L().Error("scheduler.due_for_start", zap.Error(err))
	} else {
		for _, id := range ids {
			if ctx.Err() != nil {
				return
			}
			res, err := s.drv.AutoStart(ctx, id)
			if err != nil {
				logSkip("scheduler.start", id, err)
				continue
			}
			zap.L().Debug("scheduler.start", zap.Int64("auction_id", id), zap.String("status", string(res.Status)))
		}
	}

	ids, err := s.drv.DueForClose(ctx, now)
	if err != nil {
		zap.L().Error("scheduler.due_for_close", zap.Error(err))
		return
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		res, err := s.drv.AutoClose(ctx, id)
		if err != nil {
			logSkip("scheduler.close", id, err)
			continue
		}
		zap.L().Debug("scheduler.close", zap.Int64("auction_id", id), zap.String("status", string(res.Status)))
	}
}

// An InvalidState here means another actor got there first or a late bid
// moved the end time; both are expected.
func logSkip(op string, id int64, err error) {
	if apperr.IsKind(err, apperr.InvalidState) {
		zap.L().Debug(op+"_skipped", zap.Int64("auction_id", id), zap.Error(err))
		return
	}
	zap.L().Error(op+"_failed", zap.Int64("auction_id", id), zap.Error(err))
}
