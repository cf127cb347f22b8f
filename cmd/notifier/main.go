package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/mbartos/pension-reservations/internal/adapters/mongo"
	"github.com/mbartos/pension-reservations/internal/adapters/rabbit"
	"github.com/mbartos/pension-reservations/internal/config"
	"github.com/mbartos/pension-reservations/internal/observability"
)

// The notifier is where guest email would go out. For now it records every
// booking event to the audit trail so the office has a durable feed.
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

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("pension"), logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "pension.notifier",
		rabbit.KeyBookingConfirmed, rabbit.KeyBookingCancelled, rabbit.KeyHoldExpired)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			if err := handle(ctx, audit, d); err != nil {
				logger.Error("failed to handle event: ", err)
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}

func handle(ctx context.Context, audit *mongoadapter.AuditLogger, d amqp.Delivery) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		return err
	}
	sessionID, _ := payload["session_id"].(string)
	return audit.LogEvent(ctx, "event."+d.RoutingKey, sessionID, payload)
}
