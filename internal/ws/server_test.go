package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealedbid/internal/apperr"
	"sealedbid/internal/http/authz"
	"sealedbid/internal/models"
	"sealedbid/internal/notify"
	"sealedbid/internal/services/auction"
)

type stubAuctions struct {
	auction.IAuctionService
	bids chan decimal.Decimal
}

func (s *stubAuctions) GetAuction(_ context.Context, id int64) (*auction.AuctionDTO, error) {
	if id != 7 {
		return nil, apperr.NotFoundf("auction %d not found", id)
	}
	return &auction.AuctionDTO{Auction: models.Auction{ID: 7, Status: models.StatusBidding}, Participants: 2}, nil
}

func (s *stubAuctions) PlaceBid(_ context.Context, auctionID, userID int64, amount decimal.Decimal) (*auction.BidResult, error) {
	if amount.LessThan(decimal.NewFromInt(10)) {
		return nil, apperr.Validationf("bid must be at least 10")
	}
	s.bids <- amount
	return &auction.BidResult{Bid: models.Bid{ID: 99, AuctionID: auctionID, UserID: userID, Amount: amount}}, nil
}

func serve(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	srv := NewWsServer(hub, nil, &stubAuctions{bids: make(chan decimal.Decimal, 4)}, false)
	r := gin.New()
	r.GET("/ws", authz.Identify(), srv.Handle)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, hub
}

func dial(t *testing.T, ts *httptest.Server, query, role string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	h := http.Header{}
	h.Set(authz.HeaderUserID, "3")
	h.Set(authz.HeaderRole, role)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
	return websocket.DefaultDialer.Dial(url, h)
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, c.ReadJSON(&m))
	return m
}

func TestSocketSnapshotBidAndFanOut(t *testing.T) {
	ts, hub := serve(t)
	c, _, err := dial(t, ts, "auction_id=7", "bid-participant")
	require.NoError(t, err)
	defer c.Close()

	snap := readFrame(t, c)
	assert.Equal(t, "auctions/snapshot", snap["event"])
	assert.EqualValues(t, 2, snap["body"].(map[string]any)["participants"])

	require.NoError(t, c.WriteJSON(map[string]any{"event": "auctions/bid", "body": map[string]any{"amount": "12.5"}}))
	ack := readFrame(t, c)
	assert.Equal(t, "auctions/bid-ack", ack["event"])
	assert.EqualValues(t, 99, ack["body"].(map[string]any)["bid_id"])

	require.NoError(t, c.WriteJSON(map[string]any{"event": "auctions/bid", "body": map[string]any{"amount": "1"}}))
	errFrame := readFrame(t, c)
	assert.Equal(t, "error", errFrame["event"])
	assert.Equal(t, "validation_error", errFrame["body"].(map[string]any)["kind"])

	require.Eventually(t, func() bool { return hub.Observers(7) == 1 }, time.Second, 10*time.Millisecond)
	evt := notify.NewEvent(notify.Extended, 7, time.Now(), map[string]any{"extension_count": 1})
	require.NoError(t, hub.Publish(context.Background(), evt))
	pushed := readFrame(t, c)
	assert.Equal(t, "auctions/extended", pushed["event"])
	assert.EqualValues(t, 1, pushed["body"].(map[string]any)["extension_count"])
}

func TestSocketBidRequiresParticipantRole(t *testing.T) {
	ts, _ := serve(t)
	c, _, err := dial(t, ts, "auction_id=7", "bid-creator")
	require.NoError(t, err)
	defer c.Close()
	readFrame(t, c)

	require.NoError(t, c.WriteJSON(map[string]any{"event": "auctions/bid", "body": map[string]any{"amount": "20"}}))
	errFrame := readFrame(t, c)
	assert.Equal(t, "forbidden", errFrame["body"].(map[string]any)["kind"])

	require.NoError(t, c.WriteJSON(map[string]any{"event": "auctions/unknown"}))
	assert.Equal(t, "error", readFrame(t, c)["event"])
}

func TestSocketRejectsBadRequestsBeforeUpgrade(t *testing.T) {
	ts, _ := serve(t)

	_, resp, err := dial(t, ts, "auction_id=abc", "bid-participant")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, resp, err = dial(t, ts, "auction_id=8", "bid-participant")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = dial(t, ts, "auction_id=7", "nobody")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubLeaveDropsEmptyRooms(t *testing.T) {
	ts, hub := serve(t)
	c, _, err := dial(t, ts, "auction_id=7", "bid-participant")
	require.NoError(t, err)
	readFrame(t, c)
	require.Eventually(t, func() bool { return hub.Observers(7) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return hub.Observers(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWrapEvent(t *testing.T) {
	out, err := wrapEvent([]byte(`{"version":1,"event":"new_bid","amount":"20"}`))
	require.NoError(t, err)

	var env struct {
		Event string         `json:"event"`
		Body  map[string]any `json:"body"`
	}
	require.NoError(t, json.Unmarshal(out, &env))
	assert.Equal(t, "auctions/new_bid", env.Event)
	assert.NotContains(t, env.Body, "event")
	assert.Equal(t, "20", env.Body["amount"])

	_, err = wrapEvent([]byte("not json"))
	assert.Error(t, err)
}

func TestHubPublishDoesNotWaitOnStalledSocket(t *testing.T) {
	accepted := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		accepted <- raw
	}))
	defer ts.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	// No writer drains this socket, so every frame stays queued.
	conn := newClientConn(<-accepted)
	hub := NewHub()
	hub.Join(7, conn)

	evt := notify.NewEvent(notify.Extended, 7, time.Now(), map[string]any{"extension_count": 1})
	start := time.Now()
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, hub.Publish(context.Background(), evt))
	}
	assert.Equal(t, 1, hub.Observers(7))
	assert.Len(t, conn.send, sendBuffer)

	require.NoError(t, hub.Publish(context.Background(), evt))
	assert.Less(t, time.Since(start), writeWait)
	assert.Equal(t, 0, hub.Observers(7))
	assert.False(t, conn.enqueue([]byte("{}")))
}
