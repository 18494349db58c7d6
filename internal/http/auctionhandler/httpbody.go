package auctionhandler

import (
	"time"

	"github.com/shopspring/decimal"

	"sealedbid/internal/http/respond"
	"sealedbid/internal/services/auction"
)

type ErrorResponse = respond.ErrorResponse

type CreateAuctionBody struct {
	Title              string          `json:"title"                binding:"required"  example:"Vintage watch"`
	MinParticipants    int             `json:"min_participants"     binding:"min=1"     example:"2"`
	MaxParticipants    int             `json:"max_participants"     binding:"min=1"     example:"10"`
	EntryFee           decimal.Decimal `json:"entry_fee"                                swaggertype:"string" example:"5"`
	MaxPrice           decimal.Decimal `json:"max_price"                                swaggertype:"string" example:"500"`
	MinIncrement       decimal.Decimal `json:"min_increment"                            swaggertype:"string" example:"10"`
	BidsPerParticipant int             `json:"bids_per_participant" binding:"min=1"     example:"3"`
	StartTime          time.Time       `json:"start_time"           binding:"required"  example:"2026-07-27T16:00:00Z"`
	EndTime            time.Time       `json:"end_time"             binding:"required"  example:"2026-07-27T17:00:00Z"`
	RelaunchTime       int64           `json:"relaunch_time"        binding:"min=0"     example:"30"`
	Open               bool            `json:"open"                                     example:"true"`
} // @name CreateAuctionRequest

func (b CreateAuctionBody) params() auction.CreateAuctionParams {
	return auction.CreateAuctionParams{
		Title:              b.Title,
		MinParticipants:    b.MinParticipants,
		MaxParticipants:    b.MaxParticipants,
		EntryFee:           b.EntryFee,
		MaxPrice:           b.MaxPrice,
		MinIncrement:       b.MinIncrement,
		BidsPerParticipant: b.BidsPerParticipant,
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		RelaunchTime:       b.RelaunchTime,
		Open:               b.Open,
	}
}

type PlaceBidBody struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"25.50"`
} // @name PlaceBidRequest

type UpdateStatusBody struct {
	Status string `json:"status" binding:"required,oneof=open" example:"open"`
} // @name UpdateStatusRequest

type ListAuctionsQuery struct {
	Status string `form:"status"  binding:"omitempty,oneof=created open bidding closed cancelled"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListAuctionsQuery

type HistoryQuery struct {
	From time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to"   time_format:"2006-01-02T15:04:05Z07:00"`
} // @name HistoryQuery
