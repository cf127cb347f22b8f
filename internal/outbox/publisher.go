package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mbartos/pension-reservations/internal/adapters/pg"
	"github.com/mbartos/pension-reservations/internal/adapters/rabbit"
	"github.com/mbartos/pension-reservations/internal/observability"
)

// Publisher drains the outbox table to the broker. Messages are published at
// least once; consumers dedupe on the message id.
type Publisher struct {
	repo      *pg.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *pg.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			records, err := p.repo.GetUnpublishedOutbox(ctx, 10)
			if err != nil {
				p.logger.Error("outbox read failed: ", err)
				continue
			}
			for _, rec := range records {
				msg := amqp.Publishing{
					MessageId:   rec.DedupeKey,
					ContentType: "application/json",
					Body:        rec.Payload,
				}
				if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
					p.logger.Error("outbox publish failed: ", err)
					continue
				}
				if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
					p.logger.Error("outbox mark failed: ", err)
				}
			}
		}
	}
}
