package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yourorg/church-platform/services/chat-service/internal/auth"
	"github.com/yourorg/church-platform/services/chat-service/internal/cache"
	"github.com/yourorg/church-platform/services/chat-service/internal/config"
	"github.com/yourorg/church-platform/services/chat-service/internal/events"
	"github.com/yourorg/church-platform/services/chat-service/internal/handlers"
	"github.com/yourorg/church-platform/services/chat-service/internal/logger"
	"github.com/yourorg/church-platform/services/chat-service/internal/presence"
	"github.com/yourorg/church-platform/services/chat-service/internal/repository"
	"github.com/yourorg/church-platform/services/chat-service/internal/routes"
	"github.com/yourorg/church-platform/services/chat-service/internal/server"
	"github.com/yourorg/church-platform/services/chat-service/internal/service"
	"github.com/yourorg/church-platform/services/chat-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.JWT.HSSecret == "" {
		log.Fatal("jwt secret not configured (APP_JWT_HS_SECRET)")
	}
	if cfg.Chat.AdminID == "" {
		log.Fatal("admin account id not configured (APP_CHAT_ADMIN_ID)")
	}

	zlog, err := logger.New(cfg.Development)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo connect", "err", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	db := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		zlog.Warnw("ensure indexes", "err", err)
	}
	messageRepo := repository.NewMongoMessageRepository(db.Collection("messages"))
	userRepo := repository.NewMongoUserRepository(db.Collection("users"))

	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		defer func() { _ = kp.Close() }()
		pub = kp
	}

	verifier := auth.NewVerifier(cfg.JWT.HSSecret)
	tracker := presence.NewTracker()
	hub := ws.NewHub()

	svc := service.New(messageRepo, userRepo, pub, cfg.Chat.AdminID,
		cfg.Chat.DefaultPageSize, cfg.Chat.MaxPageSize, zlog)

	gateway := ws.NewGateway(hub, tracker, svc, verifier, zlog)
	gateway.SetSendLimit(cfg.Chat.SendPerSecond, cfg.Chat.SendBurst)
	gateway.SetMaxFrameBytes(cfg.Chat.MaxMessageBytes)

	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		relay := cache.NewRelay(rdb, cfg.Redis.Prefix, zlog)
		gateway.SetPresenceMirror(relay)
		hub.Publish = relay.PublishRoom
		go relay.Subscribe(ctx, hub.DeliverLocal)
		zlog.Infow("cross-instance relay enabled", "addr", cfg.Redis.Addr)
	}

	app := server.New(cfg, zlog)
	handler := handlers.NewChatHandler(svc, tracker, cfg.Development, zlog)
	routes.Register(app, handler, gateway, verifier)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		zlog.Infow("chat service listening", "addr", addr)
		errs <- app.Listen(addr)
	}()

	select {
	case err := <-errs:
		zlog.Fatalw("server error", "err", err)
	case <-ctx.Done():
		zlog.Info("shutdown signal received")
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Warnw("fiber shutdown", "err", err)
	}
	zlog.Info("chat service stopped")
}
