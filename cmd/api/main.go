package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	v1 "github.com/axai-kaizoku/partout-sub001/cmd/api/router/v1"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/auth"
	cacheadapter "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/cache/adapter"
	cacheport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/cache/port"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/config"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/database"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/logging"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
	queueadapter "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/queue/adapter"
	qport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/queue/port"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/task"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
	repoAdapter "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/adapter"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
	httpHandler "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/presentation/http"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/notification"
	directoryAdapter "github.com/axai-kaizoku/partout-sub001/internal/repository/adapter"
)

// chatStore is what every repository adapter provides.
type chatStore interface {
	repository.ChatRepository
	repository.DirectoryRepository
}

func main() {
	// Load .env file and the process environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the configured store on startup
	store, pool, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		redisClient *redis.Client
		cache       cacheport.Cache
	)
	if os.Getenv("REDIS_URL") != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient, err = cacheadapter.NewRedisClientFromEnv(connectCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		cache = cacheadapter.NewRedisCache(redisClient)
	}

	var directory repository.DirectoryRepository = store
	if cache != nil {
		directory = directoryAdapter.NewCachedDirectoryRepository(store, cache, 5*time.Minute, logger)
	}

	hub := realtime.NewHub(logger)
	defer hub.Close()

	var publisher usecase.EventPublisher
	switch cfg.RealtimeSource {
	case config.SourcePostgres:
		// The messages trigger feeds the hub; use cases publish nothing themselves.
		listener := realtime.NewPgListener(pool, hub, logger)
		go func() {
			if err := listener.Run(ctx); err != nil {
				logger.Error("insert listener stopped", zap.Error(err))
			}
		}()
	default:
		if cfg.RealtimeBridge {
			if redisClient == nil {
				return errors.New("REALTIME_BRIDGE requires REDIS_URL")
			}
			bridge := realtime.NewRedisBridge(redisClient, hub, logger)
			go func() {
				if err := bridge.Run(ctx); err != nil {
					logger.Error("realtime bridge stopped", zap.Error(err))
				}
			}()
			publisher = bridge
		} else {
			publisher = hub
		}
	}

	sessions := realtime.NewRouter(cfg.MaxTabsPerUser)
	defer sessions.Close()

	registry := notification.NewRegistry()
	inbox := usecase.NewNotifyRecipientUseCase(store, directory, registry, logger).Listen(hub)
	defer func() { _ = inbox.Unsubscribe() }()

	var queue qport.Client
	if redisClient != nil {
		client, err := queueadapter.NewAsynqClientFromEnv()
		if err != nil {
			return fmt.Errorf("failed to create queue client: %w", err)
		}
		defer client.Close()
		queue = client

		worker, err := queueadapter.NewAsynqServer(logger)
		if err != nil {
			return fmt.Errorf("failed to create queue server: %w", err)
		}
		task.RegisterSendMessageTask(worker, usecase.NewSendMessageUseCase(store, publisher, logger), sessions, logger)
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("queue worker stopped", zap.Error(err))
			}
		}()
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions.Count(), "subscriptions": hub.Len()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1.RegisterRoutes(r, verifier, httpHandler.Deps{
		Repo:             store,
		Directory:        directory,
		Publisher:        publisher,
		Source:           hub,
		Router:           sessions,
		Registry:         registry,
		Queue:            queue,
		Cache:            cache,
		AllowedOrigins:   cfg.AllowedOrigins,
		NotificationIcon: cfg.NotificationIcon,
		RequestTimeout:   cfg.RequestTimeout,
		Log:              logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.ChatStore),
			zap.String("realtime_source", cfg.RealtimeSource),
			zap.Bool("bridge", cfg.RealtimeBridge),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore connects the configured repository backend. pool is nil unless
// the store is Postgres.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (chatStore, *pgxpool.Pool, func(), error) {
	switch cfg.ChatStore {
	case config.StoreMemory:
		logger.Warn("using in-memory chat store; data is lost on restart")
		return repoAdapter.NewMemoryChatRepository(), nil, func() {}, nil

	case config.StoreMongo:
		m, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		repo := repoAdapter.NewMongoChatRepository(m.Database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = m.Close(context.Background())
			return nil, nil, nil, fmt.Errorf("failed to ensure mongo indexes: %w", err)
		}
		return repo, nil, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Close(closeCtx)
		}, nil

	default:
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		pool, err := database.NewPoolFromEnv(connectCtx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := repoAdapter.NewPgChatRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		if err := repo.EnsureInsertTrigger(ctx, cfg.RealtimeSource == config.SourcePostgres); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to ensure insert trigger: %w", err)
		}
		return repo, pool, pool.Close, nil
	}
}
