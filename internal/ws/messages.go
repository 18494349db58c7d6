package ws

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"sealedbid/internal/http/authz"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "auctions/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// ConnContext is what a handler knows about the socket it serves.
type ConnContext struct {
	AuctionID int64
	Identity  authz.Identity
	Server    *WsServer
}

// BidRequest is the body for "auctions/bid".
type BidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BidAck is returned once the bid is committed.
type BidAck struct {
	BidID    int64           `json:"bid_id"`
	Amount   decimal.Decimal `json:"amount"`
	Extended bool            `json:"extended"`
	EndTime  time.Time       `json:"end_time"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
