package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	AuctionStarted   EventType = "auction_started"
	AuctionCancelled EventType = "auction_cancelled"
	AuctionClosed    EventType = "auction_closed"
	Extended         EventType = "extended"
	NewBid           EventType = "new_bid"
)

const payloadVersion = 1

// Event is a committed lifecycle fact about one auction.
type Event struct {
	ID        string
	Type      EventType
	AuctionID int64
	At        time.Time
	Data      map[string]any
}

func NewEvent(typ EventType, auctionID int64, at time.Time, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		AuctionID: auctionID,
		At:        at.UTC(),
		Data:      data,
	}
}

// Payload flattens the event into the wire format observers receive:
//
//	{"version":1,"event":"new_bid","event_id":"…","auction_id":7,"at":"…",…data}
func (e Event) Payload() ([]byte, error) {
	m := make(map[string]any, len(e.Data)+5)
	for k, v := range e.Data {
		m[k] = v
	}
	m["version"] = payloadVersion
	m["event"] = string(e.Type)
	m["event_id"] = e.ID
	m["auction_id"] = e.AuctionID
	m["at"] = e.At.Format(time.RFC3339Nano)
	return json.Marshal(m)
}

// Channel is the pub/sub channel observers of one auction listen on.
func Channel(auctionID int64) string {
	return fmt.Sprintf("auc:%d:events", auctionID)
}

// Sink receives events after the producing transaction has committed.
type Sink interface {
	Publish(ctx context.Context, evt Event) error
}

// LogSink only logs. Used when no broker is configured.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, evt Event) error {
	zap.L().Info("notify.event",
		zap.String("event", string(evt.Type)),
		zap.Int64("auction_id", evt.AuctionID),
		zap.Any("data", evt.Data),
	)
	return nil
}

// Multi fans an event out to several sinks and returns the first error.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}
