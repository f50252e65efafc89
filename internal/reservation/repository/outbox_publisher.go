package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/ridebook/internal/reservation/domain"
)

// OutboxPublisher satisfies domain.EventPublisher by appending rows to the
// outbox table instead of talking to the broker directly. The outbox worker
// picks the rows up and publishes them to NATS.
type OutboxPublisher struct {
	db    *sql.DB
	topic string
}

// NewOutboxPublisher constructs the publisher.
func NewOutboxPublisher(db *sql.DB, topic string) *OutboxPublisher {
	return &OutboxPublisher{db: db, topic: topic}
}

// Publish stores the event durably for asynchronous dispatch.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.ReservationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	const query = `INSERT INTO outbox (topic, payload, published) VALUES ($1, $2, false)`
	if _, err := p.db.ExecContext(ctx, query, p.topic, payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}
