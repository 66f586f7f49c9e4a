package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/cycredit-chat/internal/cache"
	"github.com/weiawesome/cycredit-chat/internal/config"
	"github.com/weiawesome/cycredit-chat/internal/generator"
	"github.com/weiawesome/cycredit-chat/internal/handler"
	"github.com/weiawesome/cycredit-chat/internal/hub"
	"github.com/weiawesome/cycredit-chat/internal/relay"
	"github.com/weiawesome/cycredit-chat/internal/repository"
	"github.com/weiawesome/cycredit-chat/internal/service"
	pkglog "github.com/weiawesome/cycredit-chat/pkg/log"
	"github.com/weiawesome/cycredit-chat/pkg/database"
	"github.com/weiawesome/cycredit-chat/pkg/pubsub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	instanceID := cfg.Relay.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-server",
		InstanceID:  instanceID,
	})
	l := pkglog.L()

	if cfg.Watch(func(next *config.Config) {
		pkglog.SetLevel(next.Log.Level)
		l.Info().Str("level", next.Log.Level).Msg("log level reloaded")
	}) {
		l.Info().Msg("watching config file for changes")
	}

	messageIDs, err := generator.NewSnowflake(cfg.ID.MachineID, cfg.ID.EpochMs)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create message id generator")
	}
	connIDs, err := generator.New(generator.Options{
		Kind:        cfg.ID.ConnectionID,
		NanoIDSize:  cfg.ID.NanoIDSize,
		Cuid2Length: cfg.ID.Cuid2Length,
	})
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create connection id generator")
	}

	// The SQL database always backs the leaderboard and, with the gorm
	// store, chat messages too.
	db, err := database.New(cfg.DatabaseOptions())
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db, repository.Models()...); err != nil {
		l.Fatal().Err(err).Msg("failed to migrate database")
	}

	messages, err := newMessageRepository(cfg, db, messageIDs)
	if err != nil {
		l.Fatal().Err(err).Str("store", cfg.Store.Driver).Msg("failed to initialize message store")
	}
	defer messages.Close()
	l.Info().Str("store", cfg.Store.Driver).Msg("message store ready")

	msgCache, err := newMessageCache(cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to initialize history cache")
	}
	defer msgCache.Close()

	wsHub := hub.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var publisher service.RoomPublisher
	var roomRelay *relay.Relay
	if cfg.Relay.Driver != "" && cfg.Relay.Driver != "none" {
		ps, err := pubsub.NewPubSub(cfg.PubSubOptions(instanceID))
		if err != nil {
			l.Fatal().Err(err).Str("driver", cfg.Relay.Driver).Msg("failed to initialize relay")
		}
		defer ps.Close()

		roomRelay = relay.New(ps, wsHub, instanceID)
		if err := roomRelay.Start(ctx); err != nil {
			l.Fatal().Err(err).Msg("failed to start relay")
		}
		publisher = roomRelay
		l.Info().Str("driver", cfg.Relay.Driver).Msg("cross-instance relay started")
	}

	chatSvc := service.NewChatService(wsHub, messages, msgCache, publisher)
	historySvc := service.NewHistoryService(messages, msgCache, cfg.Cache.TTL, cfg.History.MaxLimit)
	leaderboardSvc := service.NewLeaderboardService(repository.NewGormLeaderboardRepository(db), wsHub, publisher)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(l))

	handler.NewHTTPHandler(historySvc, chatSvc, cfg.History.DefaultLimit).RegisterRoutes(router)
	handler.NewLeaderboardHandler(leaderboardSvc).RegisterRoutes(router)

	wsHandler := handler.NewWSHandler(chatSvc, leaderboardSvc, connIDs, cfg.WebSocket)
	rootRouter := handler.NewRouter(wsHandler, router, pkglog.HTTPMiddleware(l))

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     rootRouter,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		l.Info().Str("addr", server.Addr).Msg("chat server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down chat server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}
	wsHub.Shutdown()
	if roomRelay != nil {
		roomRelay.Stop()
	}

	l.Info().Msg("chat server stopped")
}

func newMessageRepository(cfg *config.Config, db *gorm.DB, ids repository.IDGenerator) (repository.MessageRepository, error) {
	switch cfg.Store.Driver {
	case "", "gorm":
		return repository.NewGormMessageRepository(db), nil
	case "cassandra":
		return repository.NewCassandraMessageRepository(cfg.Cassandra, ids)
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
		defer cancel()
		return repository.NewMongoMessageRepository(ctx, cfg.Mongo, ids)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

func newMessageCache(cfg *config.Config) (cache.MessageCache, error) {
	switch cfg.Cache.Driver {
	case "", "none":
		return cache.NoopCache{}, nil
	case "redis":
		return cache.NewRedisMessageCache(cfg.Redis, cfg.Cache.Prefix)
	default:
		return nil, fmt.Errorf("unknown cache driver: %s", cfg.Cache.Driver)
	}
}
