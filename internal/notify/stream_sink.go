package notify

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	EventStream     = "auction_events"
	streamMaxLength = 100_000
)

// StreamSink appends every event to a capped Redis stream, an ordered replay
// log next to the fire-and-forget pub/sub channel.
type StreamSink struct {
	rdc    *redis.Client
	stream string
}

func NewStreamSink(rdc *redis.Client) *StreamSink {
	return &StreamSink{rdc: rdc, stream: EventStream}
}

func (s *StreamSink) Publish(ctx context.Context, evt Event) error {
	payload, err := evt.Payload()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.rdc.XAdd(ctx, s.xaddArgs(evt, payload)).Err()
}

func (s *StreamSink) xaddArgs(evt Event, payload []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLength,
		Approx: true,
		Values: []any{
			"event", string(evt.Type),
			"auction_id", strconv.FormatInt(evt.AuctionID, 10),
			"payload", string(payload),
		},
	}
}
