package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/api"
	"github.com/lalith-99/streamgate/internal/auth"
	"github.com/lalith-99/streamgate/internal/config"
	"github.com/lalith-99/streamgate/internal/db"
	"github.com/lalith-99/streamgate/internal/hub"
	"github.com/lalith-99/streamgate/internal/middleware"
	"github.com/lalith-99/streamgate/internal/observ"
	"github.com/lalith-99/streamgate/internal/persistence"
	"github.com/lalith-99/streamgate/internal/repository"
	"github.com/lalith-99/streamgate/internal/repository/memory"
	pgstore "github.com/lalith-99/streamgate/internal/repository/postgres"
	"github.com/lalith-99/streamgate/internal/repository/redisstore"
	"github.com/lalith-99/streamgate/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores. Both backends are optional: without a DATABASE_URL or
	// REDIS_URL the corresponding store runs in-process, which keeps local
	// development and CI free of infrastructure. In-process state does not
	// survive a restart; production deployments set both URLs.
	var chatStore repository.ChatStore
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		chatStore = pgstore.NewChatStore(database.Pool())
	} else {
		logger.Warn("DATABASE_URL not set, chat messages are held in memory only")
		chatStore = memory.NewChatStore()
	}

	var (
		offlineStore repository.OfflineStore
		historyStore repository.HistoryStore
	)
	if cfg.RedisURL != "" {
		rdb, err := db.NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		offlineStore = redisstore.NewOfflineStore(rdb, cfg.OfflineQueueCap, cfg.OfflineRetention)
		historyStore = redisstore.NewHistoryStore(rdb, cfg.HistoryCap, cfg.HistoryRetention)
	} else {
		logger.Warn("REDIS_URL not set, offline queues and channel history are held in memory only")
		offlineStore = memory.NewOfflineStore(cfg.OfflineQueueCap)
		historyStore = memory.NewHistoryStore(cfg.HistoryCap)
	}

	svc := persistence.NewService(offlineStore, historyStore, chatStore, persistence.Retention{
		Offline: cfg.OfflineRetention,
		History: cfg.HistoryRetention,
		Chat:    cfg.ChatRetention,
	}, logger)

	broker := hub.New(hub.Config{
		MaxConnections:     cfg.MaxConnections,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		IdleTimeout:        cfg.IdleTimeout,
	}, auth.NewVerifier(cfg.JWTSecret), svc, svc, logger)

	// The client_message sink. The domain layer owns the business meaning
	// of these payloads; out of the box they are logged and dropped.
	broker.SetClientMessageHandler(func(userID, connectionID string, payload map[string]any) {
		logger.Debug("client message received",
			zap.String("user_id", userID),
			zap.String("connection_id", connectionID),
		)
	})

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery())

	// Health check is public so load balancers can probe it.
	srv.GET("/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The WebSocket endpoint is public too: connections start
	// unauthenticated and authenticate in-band.
	srv.GET("/v1/ws", ws.Handler(broker, cfg.OutboundBuffer, logger))

	chatHandler := api.NewChatHandler(svc, broker, logger)
	messageHandler := api.NewMessageHandler(svc, logger)
	channelHandler := api.NewChannelHandler(svc, broker, logger)
	statsHandler := api.NewStatsHandler(broker)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		v1.POST("/chats/:user", chatHandler.Send)
		v1.GET("/chats/:user", chatHandler.History)
		v1.POST("/chats/:user/read", chatHandler.MarkRead)

		v1.GET("/messages/offline", messageHandler.Offline)
		v1.DELETE("/messages/offline", messageHandler.ClearOffline)
		v1.GET("/messages/unread", messageHandler.Unread)

		v1.GET("/channels/:name/history", channelHandler.History)
		v1.POST("/channels/:name/broadcast", channelHandler.Broadcast)

		v1.GET("/stats", statsHandler.Get)
	}

	// Periodic sweeps: idle connections and message retention.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				broker.CleanupExpiredConnections()
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				svc.CleanupExpiredMessages(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting StreamGate",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.Int("max_connections", cfg.MaxConnections),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
