package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sealedbid/internal/config"
	"sealedbid/internal/database/db_client"
	"sealedbid/internal/database/schema"
	"sealedbid/internal/http/http_server"
	"sealedbid/internal/notify"
	"sealedbid/internal/redis/redis_client"
	"sealedbid/internal/redis/watcher/auctionwatcher"
	"sealedbid/internal/scheduler"
	"sealedbid/internal/services/auction"
	"sealedbid/internal/services/wallet"
	"sealedbid/internal/store"
	"sealedbid/internal/ws"
)

func newLogger(production bool) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if production {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return log
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, *sql.DB, error) {
	var (
		db      *sql.DB
		dialect store.Dialect
		err     error
	)
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		db, err = db_client.OpenSQLite(cfg.SQLitePath)
		dialect = store.SQLite
	default:
		db, err = db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		dialect = store.Postgres
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBAutoMigrate {
		if err := schema.Apply(ctx, db, string(dialect)); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return store.New(db, dialect), db, nil
}

func main() {
	zap.ReplaceGlobals(newLogger(false))

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	log := newLogger(cfg.Production())
	defer log.Sync()
	zap.ReplaceGlobals(log)
	log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Database
	st, db, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("db-open", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	defer db.Close()

	// 4. Redis is optional: without it events reach the local hub directly
	hub := ws.NewHub()
	sinks := notify.Multi{notify.LogSink{}}
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis_client.NewRedisClient(ctx, cfg.RedisAuctionsHost, int(cfg.RedisAuctionsPort))
		if err != nil {
			log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		sinks = append(sinks,
			notify.NewRedisSink(redisClient),
			notify.NewStreamSink(redisClient),
			auctionwatcher.NewTimer(redisClient),
		)
	} else {
		sinks = append(sinks, hub)
	}

	// 5. Services
	auctionService := auction.NewAuctionService(st, sinks, auction.WithMaxExtensions(cfg.AuctionMaxExtensions))
	walletService := wallet.NewWalletService(st, cfg.WalletInitialGrant)

	// 6. Background: time-driven starts and closes
	go scheduler.New(auctionService, cfg.SchedulerInterval).Run(ctx)
	if redisClient != nil {
		go auctionwatcher.Run(ctx, redisClient, auctionService)
	}

	// 7. HTTP + WS server
	wsSrv := ws.NewWsServer(hub, redisClient, auctionService, !cfg.Production())
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, auctionService, walletService, !cfg.Production())
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
	log.Info("shutdown complete")
}
