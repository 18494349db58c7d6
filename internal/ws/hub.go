package ws

import (
	"context"
	"sync"

	"sealedbid/internal/notify"
)

// Hub keeps one room of observers per auction.
type Hub struct {
	mu    sync.Mutex
	rooms map[int64]*room
}

func NewHub() *Hub { return &Hub{rooms: make(map[int64]*room)} }

func (h *Hub) room(auctionID int64) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[auctionID]
}

// Broadcast sends an already wrapped frame to every observer of the auction.
func (h *Hub) Broadcast(auctionID int64, msg []byte) {
	if r := h.room(auctionID); r != nil {
		r.broadcast(msg)
	}
}

func (h *Hub) Join(auctionID int64, c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[auctionID]
	if !ok {
		r = newRoom()
		h.rooms[auctionID] = r
	}
	r.add(c)
}

// Leave closes the socket and drops the room once it is empty.
func (h *Hub) Leave(auctionID int64, c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[auctionID]
	if !ok {
		return
	}
	r.remove(c)
	if r.size() == 0 {
		delete(h.rooms, auctionID)
	}
}

// Observers reports how many sockets watch the auction on this instance.
func (h *Hub) Observers(auctionID int64) int {
	if r := h.room(auctionID); r != nil {
		return r.size()
	}
	return 0
}

// Publish makes the hub a notify.Sink for single-instance deployments that
// run without Redis.
func (h *Hub) Publish(_ context.Context, evt notify.Event) error {
	payload, err := evt.Payload()
	if err != nil {
		return err
	}
	wrapped, err := wrapEvent(payload)
	if err != nil {
		return err
	}
	h.Broadcast(evt.AuctionID, wrapped)
	return nil
}

var _ notify.Sink = (*Hub)(nil)
