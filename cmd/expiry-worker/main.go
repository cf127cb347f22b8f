package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"

	"github.com/mbartos/pension-reservations/internal/adapters/pg"
	"github.com/mbartos/pension-reservations/internal/adapters/rabbit"
	redisadapter "github.com/mbartos/pension-reservations/internal/adapters/redis"
	"github.com/mbartos/pension-reservations/internal/config"
	"github.com/mbartos/pension-reservations/internal/domain"
	"github.com/mbartos/pension-reservations/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	worker := NewExpiryWorker(repo, redisCache, rabbitPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.SweepEvery)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

// ExpiryWorker reclaims holds that outlived their TTL. Readers already treat
// expired holds as gone; this sweep only frees storage and night locks and
// tells the broker.
type ExpiryWorker struct {
	repo      *pg.Repository
	redis     *redisadapter.Cache
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewExpiryWorker(repo *pg.Repository, redis *redisadapter.Cache, rabbitPub *rabbit.Publisher, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{repo: repo, redis: redis, rabbitPub: rabbitPub, logger: logger}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			holds, err := w.repo.DeleteExpiredHolds(ctx, now)
			if err != nil {
				w.logger.Error("failed to sweep expired holds: ", err)
				continue
			}
			for _, hold := range holds {
				if err := w.releaseWithRetry(ctx, hold); err != nil {
					w.logger.Error("failed to release expired hold after retries: ", err)
				}
			}
			if len(holds) > 0 {
				observability.HoldsExpired.Add(float64(len(holds)))
			}
		}
	}
}

func (w *ExpiryWorker) releaseWithRetry(ctx context.Context, hold domain.Hold) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		if err := w.redis.ReleaseNightLocks(ctx, hold.Rooms, hold.Range()); err != nil {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"proposal_id": hold.ProposalID,
			"session_id":  hold.SessionID,
			"rooms":       hold.Rooms,
		})
		msg := amqp.Publishing{
			MessageId:   uuid.New().String(),
			ContentType: "application/json",
			Body:        payload,
		}
		return w.rabbitPub.Publish(ctx, rabbit.KeyHoldExpired, msg)
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}
