// Package auctionwatcher closes auctions the moment their end time passes,
// instead of waiting for the next scheduler sweep. Each bidding auction owns
// a Redis key that expires at its end time; the expiry event triggers the
// close. The scheduler still sweeps, so a lost event only delays a close.
package auctionwatcher

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sealedbid/internal/apperr"
	"sealedbid/internal/notify"
	"sealedbid/internal/services/auction"
)

const (
	timerPrefix    = "auc_t:"
	expiredPattern = "__keyevent@*__:expired"
)

func timerKey(auctionID int64) string {
	return timerPrefix + strconv.FormatInt(auctionID, 10)
}

// Closer is the engine entry the watcher drives.
type Closer interface {
	AutoClose(ctx context.Context, auctionID int64) (*auction.CloseResult, error)
}

// Timer is a notify.Sink that (re)arms the expiry key whenever an auction
// starts bidding or gets extended.
type Timer struct {
	rdb   *redis.Client
	clock func() time.Time
}

func NewTimer(rdb *redis.Client) *Timer {
	return &Timer{rdb: rdb, clock: time.Now}
}

func (t *Timer) Publish(ctx context.Context, evt notify.Event) error {
	switch evt.Type {
	case notify.AuctionStarted, notify.Extended:
	case notify.AuctionClosed, notify.AuctionCancelled:
		return t.rdb.Del(ctx, timerKey(evt.AuctionID)).Err()
	default:
		return nil
	}
	end, ok := evt.Data["end_time"].(time.Time)
	if !ok {
		return nil
	}
	ttl := end.Sub(t.clock())
	if ttl <= 0 {
		// already due; the close path or the sweep will pick it up
		return nil
	}
	return t.rdb.Set(ctx, timerKey(evt.AuctionID), end.UTC().Format(time.RFC3339Nano), ttl).Err()
}

var _ notify.Sink = (*Timer)(nil)

// Run listens to key-expiry events and closes the matching auctions.
// Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, closer Closer) {
	if err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		zap.L().Warn("auctionwatcher.config_set", zap.Error(err))
	}
	ps := rdb.PSubscribe(ctx, expiredPattern)
	defer ps.Close()

	zap.L().Info("auctionwatcher.started")
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok {
				return
			}
			handleExpired(ctx, closer, m.Payload)
		}
	}
}

func handleExpired(ctx context.Context, closer Closer, key string) {
	if !strings.HasPrefix(key, timerPrefix) {
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, timerPrefix), 10, 64)
	if err != nil {
		zap.L().Warn("auctionwatcher.bad_key", zap.String("key", key))
		return
	}
	res, err := closer.AutoClose(ctx, id)
	switch {
	case apperr.IsKind(err, apperr.InvalidState):
		zap.L().Debug("auctionwatcher.close_skipped", zap.Int64("auction_id", id), zap.Error(err))
	case err != nil:
		zap.L().Error("auctionwatcher.close_failed", zap.Int64("auction_id", id), zap.Error(err))
	default:
		zap.L().Info("auctionwatcher.closed", zap.Int64("auction_id", id), zap.String("status", string(res.Status)))
	}
}
