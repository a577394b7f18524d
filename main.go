package main

import (
	"context"
	"matchpulsego/internal/config"
	"matchpulsego/internal/database/db_client"
	"matchpulsego/internal/http/http_server"
	"matchpulsego/internal/redis/redis_client"
	"matchpulsego/internal/redis/watcher/matchwatcher"
	"matchpulsego/internal/rooms"
	"matchpulsego/internal/services/chat"
	"matchpulsego/internal/services/match"
	"matchpulsego/internal/syncviewers"
	"matchpulsego/internal/ws"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Realtime core: connection table + room session + cross-instance bus
	conns := ws.NewConnTable()
	session := rooms.NewSession(conns)
	fanout := ws.NewFanout(redisClient, session)
	session.AttachBus(fanout)

	// 6. Application services relay through the session
	matchService := match.NewMatchService(redisClient, pgDb, session, cfg.LiveMatchTTL)
	chatService := chat.NewChatService(pgDb, session)

	// 7. Background: key-expiry watcher ➜ finish matches in DB
	go matchwatcher.Run(ctx, redisClient, matchService)

	// 8. Background: viewer-count mirror
	syncviewers.Run(ctx, redisClient, session, cfg.ViewerSyncInterval)

	// 9. Initialize the WS server
	wsSrv := ws.NewWsServer(session, conns, fanout, redisClient, chatService, matchService, cfg.WsSendBuffer)

	// 10. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, matchService, chatService, session, redisClient)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}

}
