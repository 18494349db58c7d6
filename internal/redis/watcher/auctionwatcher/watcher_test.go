package auctionwatcher

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealedbid/internal/apperr"
	"sealedbid/internal/models"
	"sealedbid/internal/notify"
	"sealedbid/internal/services/auction"
)

func TestTimerArmsKeyUntilEndTime(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	end := now.Add(90 * time.Second)
	tm := NewTimer(rdc)
	tm.clock = func() time.Time { return now }

	mock.ExpectSet("auc_t:12", end.Format(time.RFC3339Nano), 90*time.Second).SetVal("OK")
	err := tm.Publish(context.Background(), notify.NewEvent(notify.Extended, 12, now, map[string]any{"end_time": end}))
	require.NoError(t, err)

	mock.ExpectDel("auc_t:12").SetVal(1)
	err = tm.Publish(context.Background(), notify.NewEvent(notify.AuctionClosed, 12, now, nil))
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimerIgnoresIrrelevantEvents(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	tm := NewTimer(rdc)
	now := time.Now()

	require.NoError(t, tm.Publish(context.Background(), notify.NewEvent(notify.NewBid, 1, now, nil)))
	// past end time: nothing to arm
	require.NoError(t, tm.Publish(context.Background(),
		notify.NewEvent(notify.AuctionStarted, 1, now, map[string]any{"end_time": now.Add(-time.Second)})))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeCloser struct {
	ids []int64
	err error
}

func (f *fakeCloser) AutoClose(_ context.Context, id int64) (*auction.CloseResult, error) {
	f.ids = append(f.ids, id)
	if f.err != nil {
		return nil, f.err
	}
	return &auction.CloseResult{AuctionID: id, Status: models.StatusClosed}, nil
}

func TestHandleExpired(t *testing.T) {
	c := &fakeCloser{}
	ctx := context.Background()

	handleExpired(ctx, c, "auc_t:41")
	handleExpired(ctx, c, "session:41")
	handleExpired(ctx, c, "auc_t:abc")
	assert.Equal(t, []int64{41}, c.ids)

	c.err = apperr.InvalidStatef("auction 41 is closed")
	handleExpired(ctx, c, "auc_t:41")
	assert.Equal(t, []int64{41, 41}, c.ids)
}
