package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/mbartos/pension-reservations/internal/adapters/mongo"
	"github.com/mbartos/pension-reservations/internal/adapters/pg"
	"github.com/mbartos/pension-reservations/internal/adapters/rabbit"
	redisadapter "github.com/mbartos/pension-reservations/internal/adapters/redis"
	"github.com/mbartos/pension-reservations/internal/availability"
	"github.com/mbartos/pension-reservations/internal/config"
	httphandler "github.com/mbartos/pension-reservations/internal/http"
	"github.com/mbartos/pension-reservations/internal/idempotency"
	"github.com/mbartos/pension-reservations/internal/observability"
	"github.com/mbartos/pension-reservations/internal/outbox"
	"github.com/mbartos/pension-reservations/internal/rateLimit"
	"github.com/mbartos/pension-reservations/internal/reservation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("pension")
	settings := mongoadapter.NewSettingsRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	engine := availability.NewEngine(repo)
	holds := reservation.NewHoldManager(repo, engine, cfg.HoldTTL, time.Now)
	svc := reservation.NewService(repo, settings, engine, holds, logger)

	handlers := httphandler.NewHandlers(cfg, svc, holds, engine, settings, repo, redisCache, idemp, audit)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go outbox.NewPublisher(repo, rabbitPub, logger).Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
