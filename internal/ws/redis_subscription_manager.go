package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sealedbid/internal/notify"
)

// feed keeps the hub supplied with events for the auctions it has observers for.
type feed interface {
	Subscribe(auctionID int64)
	Unsubscribe(auctionID int64)
}

// localFeed is used when events reach the hub directly through Hub.Publish.
type localFeed struct{}

func (localFeed) Subscribe(int64)   {}
func (localFeed) Unsubscribe(int64) {}

// subscriptionManager guarantees exactly one Redis subscription per
// auc:<id>:events channel, however many sockets watch the same auction.
type subscriptionManager struct {
	rdb  *redis.Client
	hub  *Hub
	mu   sync.Mutex
	subs map[int64]*subEntry
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		subs: make(map[int64]*subEntry),
	}
}

// Subscribe opens the channel for the first observer; later calls only bump
// the reference count.
func (sm *subscriptionManager) Subscribe(auctionID int64) {
	sm.mu.Lock()
	if e, ok := sm.subs[auctionID]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, notify.Channel(auctionID))

	sm.subs[auctionID] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok {
					return
				}
				wrapped, err := wrapEvent([]byte(m.Payload))
				if err != nil {
					zap.L().Warn("ws.wrap_event_failed", zap.Int64("auction_id", auctionID), zap.Error(err))
					wrapped = []byte(m.Payload)
				}
				sm.hub.Broadcast(auctionID, wrapped)
			}
		}
	}()
}

// Unsubscribe tears the subscription down when the last observer leaves.
func (sm *subscriptionManager) Unsubscribe(auctionID int64) {
	sm.mu.Lock()
	e, ok := sm.subs[auctionID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, auctionID)
	sm.mu.Unlock()

	e.cancel()
}

// wrapEvent turns
//
//	{"version":1,"event":"new_bid","auction_id":7,…}
//
// into
//
//	{"event":"auctions/new_bid","body":{"version":1,"auction_id":7,…}}
func wrapEvent(payload []byte) ([]byte, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	evt, _ := raw["event"].(string)
	if evt == "" {
		evt = "unknown"
	}
	delete(raw, "event")

	return json.Marshal(map[string]any{
		"event": "auctions/" + evt,
		"body":  raw,
	})
}
