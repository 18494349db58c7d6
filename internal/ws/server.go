package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sealedbid/internal/apperr"
	"sealedbid/internal/http/authz"
	"sealedbid/internal/http/respond"
	"sealedbid/internal/services/auction"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 12 * time.Second
	pingPeriod     = 3 * time.Second // must be < pongWait
	maxMessageSize = 512
	handlerTimeout = 1900 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the gateway in front of us.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsServer struct {
	hub        *Hub
	feed       feed
	router     *Router
	auctionSvc auction.IAuctionService
	expose     bool
}

// NewWsServer wires the socket endpoint. With a nil Redis client the hub must
// be fed in-process, i.e. registered as the engine's notify.Sink.
func NewWsServer(h *Hub, rdc *redis.Client, auctionSvc auction.IAuctionService, expose bool) *WsServer {
	var f feed = localFeed{}
	if rdc != nil {
		f = newSubscriptionManager(rdc, h)
	}
	srv := &WsServer{
		hub:        h,
		feed:       f,
		router:     NewRouter(),
		auctionSvc: auctionSvc,
		expose:     expose,
	}
	srv.registerHandlers()
	return srv
}

// Handle upgrades GET /ws?auction_id=<id>. It expects authz.Identify upstream.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	auctionID, err := strconv.ParseInt(ginCtx.Query("auction_id"), 10, 64)
	if err != nil || auctionID <= 0 {
		respond.Error(ginCtx, apperr.Validationf("auction_id is required"), false)
		return
	}
	identity, ok := authz.Get(ginCtx)
	if !ok {
		respond.Error(ginCtx, apperr.New(apperr.Unauthorized, "no identity"), false)
		return
	}

	snap, err := s.auctionSvc.GetAuction(ginCtx.Request.Context(), auctionID)
	if err != nil {
		respond.Error(ginCtx, err, s.expose)
		return
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)

	conn := newClientConn(rawConn)
	s.hub.Join(auctionID, conn)
	s.feed.Subscribe(auctionID)

	if err := conn.writeJSON(gin.H{"event": "auctions/snapshot", "body": snap}); err != nil {
		zap.L().Warn("ws.snapshot", zap.Int64("auction_id", auctionID), zap.Error(err))
	}

	go s.reader(auctionID, identity, conn)
	go s.writer(conn)
}

func (s *WsServer) registerHandlers() {
	Register(
		s.router,
		"auctions/bid",
		func(ctx context.Context, cc *ConnContext, req BidRequest) (BidAck, error) {
			if err := authz.AnyRole(authz.Participant)(cc.Identity); err != nil {
				return BidAck{}, err
			}
			res, err := s.auctionSvc.PlaceBid(ctx, cc.AuctionID, cc.Identity.UserID, req.Amount)
			if err != nil {
				return BidAck{}, err
			}
			return BidAck{
				BidID:    res.Bid.ID,
				Amount:   res.Bid.Amount,
				Extended: res.Extended,
				EndTime:  res.EndTime,
			}, nil
		},
	)
}

func (s *WsServer) reader(auctionID int64, identity authz.Identity, conn *clientConn) {
	defer func() {
		s.hub.Leave(auctionID, conn)
		s.feed.Unsubscribe(auctionID)
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{AuctionID: auctionID, Identity: identity, Server: s}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.Int64("auction_id", auctionID), zap.Error(err))
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body": ErrorBody{
					Error: apperr.PublicMessage(err, s.expose),
					Kind:  apperr.KindOf(err).String(),
				},
			})
			continue
		}

		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

// writer drains the broadcast queue and keeps the socket alive with pings.
func (s *WsServer) writer(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case msg := <-conn.send:
			if err := conn.write(websocket.TextMessage, msg); err != nil {
				conn.close()
				return
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				conn.close()
				return
			}
		}
	}
}
