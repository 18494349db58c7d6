package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sealedbid/internal/apperr"
	"sealedbid/internal/models"
	"sealedbid/internal/services/auction"
)

type fakeDriver struct {
	mu        sync.Mutex
	dueStart  []int64
	dueClose  []int64
	startErrs map[int64]error
	closeErrs map[int64]error
	listErr   error
	started   []int64
	closed    []int64
	seenNow   time.Time
	ticks     int
}

func (f *fakeDriver) DueForStart(_ context.Context, now time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seenNow = now
	f.ticks++
	return f.dueStart, f.listErr
}

func (f *fakeDriver) DueForClose(context.Context, time.Time) ([]int64, error) {
	return f.dueClose, nil
}

func (f *fakeDriver) AutoStart(_ context.Context, id int64) (*auction.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
	if err := f.startErrs[id]; err != nil {
		return nil, err
	}
	return &auction.StartResult{AuctionID: id, Status: models.StatusBidding}, nil
}

func (f *fakeDriver) AutoClose(_ context.Context, id int64) (*auction.CloseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	if err := f.closeErrs[id]; err != nil {
		return nil, err
	}
	return &auction.CloseResult{AuctionID: id, Status: models.StatusClosed}, nil
}

func (f *fakeDriver) tickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks
}

func TestTickKeepsGoingAfterFailures(t *testing.T) {
	drv := &fakeDriver{
		dueStart:  []int64{1, 2, 3},
		dueClose:  []int64{4, 5},
		startErrs: map[int64]error{2: errors.New("db gone")},
		closeErrs: map[int64]error{4: apperr.InvalidStatef("already closed")},
	}
	s := New(drv, time.Second)
	s.clock = func() time.Time { return time.Date(2026, 1, 1, 9, 0, 0, 0, time.FixedZone("X", 3600)) }

	s.Tick(context.Background())

	assert.Equal(t, []int64{1, 2, 3}, drv.started)
	assert.Equal(t, []int64{4, 5}, drv.closed)
	assert.Equal(t, time.UTC, drv.seenNow.Location())
}

func TestTickStillClosesWhenStartListingFails(t *testing.T) {
	drv := &fakeDriver{listErr: errors.New("timeout"), dueClose: []int64{9}}
	New(drv, time.Second).Tick(context.Background())
	assert.Empty(t, drv.started)
	assert.Equal(t, []int64{9}, drv.closed)
}

func TestRunSweepsImmediatelyAndStopsOnCancel(t *testing.T) {
	drv := &fakeDriver{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(drv, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return drv.tickCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(&fakeDriver{}, 0).interval)
}
