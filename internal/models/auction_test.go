package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var lifecycleOrder = map[Status]int{
	StatusCreated:   0,
	StatusOpen:      1,
	StatusBidding:   2,
	StatusClosed:    3,
	StatusCancelled: 3,
}

func TestStatusTransitionsOnlyMoveForward(t *testing.T) {
	all := []Status{StatusCreated, StatusOpen, StatusBidding, StatusClosed, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			if from.CanTransitionTo(to) {
				assert.Greater(t, lifecycleOrder[to], lifecycleOrder[from], "%s -> %s", from, to)
			}
		}
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for _, s := range []Status{StatusClosed, StatusCancelled} {
		assert.True(t, s.Terminal())
		for _, to := range []Status{StatusCreated, StatusOpen, StatusBidding, StatusClosed, StatusCancelled} {
			assert.False(t, s.CanTransitionTo(to))
		}
	}
}

func TestStatusGraph(t *testing.T) {
	assert.True(t, StatusCreated.CanTransitionTo(StatusOpen))
	assert.True(t, StatusOpen.CanTransitionTo(StatusBidding))
	assert.True(t, StatusOpen.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusBidding.CanTransitionTo(StatusClosed))
	assert.False(t, StatusOpen.CanTransitionTo(StatusCreated))
	assert.False(t, StatusBidding.CanTransitionTo(StatusOpen))
	assert.False(t, Status("paused").Valid())
	assert.True(t, StatusOpen.In(StatusCreated, StatusOpen))
}

func TestAuctionEscrow(t *testing.T) {
	a := Auction{EntryFee: decimal.NewFromInt(50), MaxPrice: decimal.NewFromInt(1000), RelaunchTime: 30}
	assert.True(t, a.Escrow().Equal(decimal.NewFromInt(1050)))
	assert.Equal(t, 30*time.Second, a.RelaunchWindow())

	w := Wallet{Balance: decimal.NewFromInt(1000)}
	assert.False(t, w.Covers(a.Escrow()))
	w.Balance = decimal.NewFromInt(1050)
	assert.True(t, w.Covers(a.Escrow()))
}

func TestFitsMoneyScale(t *testing.T) {
	assert.True(t, FitsMoneyScale(decimal.RequireFromString("12.3456")))
	assert.True(t, FitsMoneyScale(decimal.RequireFromString("12.34560")))
	assert.True(t, FitsMoneyScale(decimal.NewFromInt(7)))
	assert.False(t, FitsMoneyScale(decimal.RequireFromString("12.34561")))
	assert.False(t, FitsMoneyScale(decimal.RequireFromString("-0.00001")))
}
