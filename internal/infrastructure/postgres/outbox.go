package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/contracts/event"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/context"
	"github.com/google/uuid"
)

// OutboxNotifier queues organizer notifications in the outbox table. The
// outbox worker publishes them to RabbitMQ with retries, so Send only fails
// when the row cannot be written.
type OutboxNotifier struct {
	repo       *Repository
	routingKey string
}

func NewOutboxNotifier(repo *Repository) *OutboxNotifier {
	return &OutboxNotifier{repo: repo, routingKey: event.RKBookingEmail}
}

func (n *OutboxNotifier) Send(ctx context.Context, msg domain.Message) error {
	messageID := uuid.New()
	traceID := appCtx.GetTraceID(ctx)

	body, err := json.Marshal(event.DomainEventEnvelope[event.EmailPayload]{
		Version:    event.EnvelopeVersion,
		Producer:   event.Producer,
		TraceID:    traceID,
		MessageID:  messageID.String(),
		OccurredAt: time.Now().UTC(),
		Payload: event.EmailPayload{
			To:      msg.To,
			Subject: msg.Subject,
			Body:    msg.Body,
		},
	})
	if err != nil {
		return err
	}

	_, err = n.repo.pool.Exec(ctx, `
		INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		VALUES ($1, $2, $3, $4, NOW(), 'pending')
	`, messageID, traceID, n.routingKey, body)
	return err
}
