package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusOpen      Status = "open"
	StatusBidding   Status = "bidding"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// transitions is the full lifecycle graph. Anything not listed is rejected.
var transitions = map[Status][]Status{
	StatusCreated: {StatusOpen, StatusBidding, StatusCancelled},
	StatusOpen:    {StatusBidding, StatusCancelled},
	StatusBidding: {StatusClosed, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusOpen, StatusBidding, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// In reports whether s is one of the given statuses.
func (s Status) In(set ...Status) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

type Auction struct {
	ID                 int64           `json:"id"`
	CreatorID          int64           `json:"creator_id"`
	Title              string          `json:"title"`
	MinParticipants    int             `json:"min_participants"`
	MaxParticipants    int             `json:"max_participants"`
	EntryFee           decimal.Decimal `json:"entry_fee"`
	MaxPrice           decimal.Decimal `json:"max_price"`
	MinIncrement       decimal.Decimal `json:"min_increment"`
	BidsPerParticipant int             `json:"bids_per_participant"`
	Status             Status          `json:"status"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            time.Time       `json:"end_time"`
	RelaunchTime       int64           `json:"relaunch_time"` // seconds
	ExtensionCount     int             `json:"extension_count"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Escrow is what a participant has to reserve on join: the entry fee plus
// the worst-case final price.
func (a *Auction) Escrow() decimal.Decimal {
	return a.EntryFee.Add(a.MaxPrice)
}

func (a *Auction) RelaunchWindow() time.Duration {
	return time.Duration(a.RelaunchTime) * time.Second
}
