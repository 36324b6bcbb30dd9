package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stagedoor/seat-inventory/internal/adapters/crdb"
	"github.com/stagedoor/seat-inventory/internal/adapters/rabbit"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

// Publisher drains the transactional outbox and pushes records to the
// events exchange. Consumers (ticket issuance, notifications) are
// fire-and-forget from the service's point of view: state changes commit
// first, publication happens after, and a crash in between is recovered
// by re-draining the NEW records.
type Publisher struct {
	repo      *crdb.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *crdb.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.DrainOnce(ctx); err != nil {
				p.logger.Error("outbox drain failed: ", err)
			}
		}
	}
}

func (p *Publisher) DrainOnce(ctx context.Context) error {
	records, err := p.repo.GetUnpublishedOutbox(ctx, 50)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, rec := range records {
		observability.OutboxLag.Set(now.Sub(rec.CreatedAt).Seconds())
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.Error("failed to publish outbox record: ", err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now().UTC()); err != nil {
			p.logger.Error("failed to mark outbox record published: ", err)
		}
	}
	return nil
}
