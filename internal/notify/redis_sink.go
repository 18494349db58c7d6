package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// RedisSink publishes events on auc:<id>:events so every instance's
// websocket hub can fan them out to the rooms it serves.
type RedisSink struct {
	rdc *redis.Client
}

func NewRedisSink(rdc *redis.Client) *RedisSink {
	return &RedisSink{rdc: rdc}
}

func (s *RedisSink) Publish(ctx context.Context, evt Event) error {
	payload, err := evt.Payload()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.rdc.Publish(ctx, Channel(evt.AuctionID), string(payload)).Err()
}
