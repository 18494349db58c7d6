package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files

	"sealedbid/internal/http/auctionhandler"
	"sealedbid/internal/http/authz"
	"sealedbid/internal/http/wallethandler"
	"sealedbid/internal/services/auction"
	"sealedbid/internal/services/wallet"
	"sealedbid/internal/ws"
)

const shutdownTimeout = 10 * time.Second

type httpServer struct {
	listenPort     uint16
	srv            *http.Server
	auctionService auction.IAuctionService
	walletService  wallet.IWalletService
	wsSrv          *ws.WsServer
	expose         bool
	ctx            context.Context
}

// NewHttpServer builds the REST and websocket surface. expose lets internal
// error causes reach clients and must be off in production.
func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer,
	auctionService auction.IAuctionService, walletService wallet.IWalletService, expose bool,
) *httpServer {
	h := &httpServer{
		listenPort:     listenPort,
		wsSrv:          wsSrv,
		auctionService: auctionService,
		walletService:  walletService,
		expose:         expose,
		ctx:            ctx,
	}
	h.srv = &http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return h
}

// Router is exposed for tests.
func (h *httpServer) Router() *gin.Engine {
	routerEngine := gin.New()
	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := routerEngine.Group("/", authz.Identify())
	if h.wsSrv != nil {
		api.GET("/ws", h.wsSrv.Handle)
	}
	auctionhandler.New(h.auctionService, h.expose).Register(api)
	wallethandler.New(h.walletService, h.expose).Register(api)

	return routerEngine
}

// Start blocks serving until Dispose is called.
func (h *httpServer) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", h.listenPort))
	if err != nil {
		return err
	}
	zap.L().Info("http.listening", zap.Uint16("port", h.listenPort))

	if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down, waiting up to 10 s for
// in-flight requests.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), shutdownTimeout)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
	}
	return nil
}
