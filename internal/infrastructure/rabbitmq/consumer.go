package rabbitmq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/contracts/event"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/metrics"
	appCtx "github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/logger"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	supportedVersion = 1
	queueName        = "webinar-service.webinar-snapshots"
	handlerName      = "webinar_snapshots"
)

// inboxTx is implemented by stores that can fence deliveries and apply the
// snapshot in one transaction.
type inboxTx interface {
	ProcessOnce(ctx context.Context, messageID, handlerName string, fn func(tx pgx.Tx) error) (bool, error)
	UpsertWebinarTx(ctx context.Context, tx pgx.Tx, w domain.Webinar) error
}

type Option func(*Consumer)

// WithSoldOutCache clears the sold-out marker whenever a snapshot lands,
// since capacity may have grown.
func WithSoldOutCache(c domain.SoldOutCache) Option {
	return func(s *Consumer) { s.soldOut = c }
}

func WithAudit(a *audit.Logger) Option {
	return func(s *Consumer) { s.audit = a }
}

// Consumer keeps the local webinar directory in sync with the webinar
// publisher's snapshot events.
type Consumer struct {
	rabbitURL string
	exchange  string
	store     domain.WebinarStore
	soldOut   domain.SoldOutCache
	audit     *audit.Logger
}

func NewConsumer(rabbitURL, exchange string, store domain.WebinarStore, opts ...Option) *Consumer {
	c := &Consumer{
		rabbitURL: strings.TrimSpace(rabbitURL),
		exchange:  strings.TrimSpace(exchange),
		store:     store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) Start(ctx context.Context) error {
	log := logger.Logger.With().Str("component", "rabbitmq_consumer").Logger()

	conn, err := amqp.Dial(c.rabbitURL)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	closeAll := func() {
		_ = ch.Close()
		_ = conn.Close()
	}

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		closeAll()
		return err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		closeAll()
		return err
	}

	for _, rk := range []string{event.RKWebinarPublished, event.RKWebinarUpdated} {
		if err := ch.QueueBind(q.Name, rk, c.exchange, false, nil); err != nil {
			closeAll()
			return err
		}
	}

	if err := ch.Qos(10, 0, false); err != nil {
		closeAll()
		return err
	}

	deliveries, err := ch.Consume(q.Name, event.Producer, false, false, false, false, nil)
	if err != nil {
		closeAll()
		return err
	}

	go func() {
		defer closeAll()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn().Msg("delivery channel closed")
					return
				}

				if err := c.handleDelivery(ctx, d); err != nil {
					_ = d.Nack(false, true) // transient => requeue
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	log.Info().Str("queue", q.Name).Msg("consumer started")
	return nil
}

// handleDelivery returns an error only for failures worth a redelivery.
// Malformed messages are logged and dropped.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	baseLog := logger.Logger.With().
		Str("component", "rabbitmq_consumer").
		Str("routing_key", d.RoutingKey).
		Logger()

	var env event.DomainEventEnvelope[json.RawMessage]
	if err := json.Unmarshal(d.Body, &env); err != nil {
		baseLog.Warn().Err(err).Msg("invalid envelope json; dropping")
		metrics.RecordSnapshot("dropped")
		return nil
	}

	if env.Version != supportedVersion {
		baseLog.Warn().Int("version", env.Version).Msg("unsupported envelope version; dropping")
		metrics.RecordSnapshot("dropped")
		return nil
	}

	msgID := messageID(env.MessageID, d)
	traceID := strings.TrimSpace(env.TraceID)
	if traceID != "" {
		ctx = appCtx.WithTraceID(ctx, traceID)
	}

	log := baseLog.With().
		Str("message_id", msgID).
		Str("trace_id", traceID).
		Logger()

	w, ok := decodeSnapshot(d.RoutingKey, env.Payload, log)
	if !ok {
		metrics.RecordSnapshot("dropped")
		return nil
	}

	if r, ok := any(c.store).(inboxTx); ok {
		processed, err := r.ProcessOnce(ctx, msgID, handlerName, func(tx pgx.Tx) error {
			return r.UpsertWebinarTx(ctx, tx, w)
		})
		if err != nil {
			log.Error().Err(err).Msg("processing failed (requeue)")
			metrics.RecordSnapshot("error")
			return err
		}
		if !processed {
			log.Info().Msg("duplicate delivery ignored")
			metrics.RecordSnapshot("duplicate")
			return nil
		}
	} else {
		// Snapshots are full replacements, so reapplying a duplicate is harmless.
		if err := c.store.UpsertWebinar(ctx, w); err != nil {
			log.Error().Err(err).Msg("upsert failed (requeue)")
			metrics.RecordSnapshot("error")
			return err
		}
	}

	c.afterApply(ctx, w, log)
	return nil
}

func (c *Consumer) afterApply(ctx context.Context, w domain.Webinar, log zerolog.Logger) {
	if c.soldOut != nil {
		if err := c.soldOut.ClearSoldOut(ctx, w.ID, w.SeatCapacity); err != nil {
			log.Warn().Err(err).Str("webinar_id", w.ID).Msg("failed to clear sold-out marker")
		}
	}
	if c.audit != nil {
		c.audit.WebinarSynced(ctx, w)
	}
	metrics.RecordSnapshot("applied")
}

// messageID prefers envelope.message_id, then the AMQP MessageId, else a
// content hash so redeliveries of the same body still dedupe.
func messageID(envelopeID string, d amqp.Delivery) string {
	id := strings.TrimSpace(envelopeID)
	if id == "" {
		id = strings.TrimSpace(d.MessageId)
	}
	if id == "" {
		h := sha256.Sum256(append([]byte(d.RoutingKey+"\n"), d.Body...))
		id = "hash:" + hex.EncodeToString(h[:])
	}
	return id
}

func decodeSnapshot(routingKey string, raw json.RawMessage, log zerolog.Logger) (domain.Webinar, bool) {
	switch routingKey {
	case event.RKWebinarPublished, event.RKWebinarUpdated:
	default:
		log.Warn().Msg("unknown routing key; ignoring")
		return domain.Webinar{}, false
	}

	var p event.WebinarPublishedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Msg("invalid payload json; dropping")
		return domain.Webinar{}, false
	}

	// tolerate legacy field
	id := strings.TrimSpace(p.WebinarID)
	if id == "" {
		id = strings.TrimSpace(p.ID)
	}
	if p.SeatCapacity == nil {
		log.Warn().Str("webinar_id", id).Msg("missing seat_capacity; dropping")
		return domain.Webinar{}, false
	}

	w := domain.Webinar{
		ID:           id,
		OrganizerID:  strings.TrimSpace(p.OrganizerID),
		Title:        p.Title,
		SeatCapacity: *p.SeatCapacity,
	}
	if !domain.ValidWebinar(w) {
		log.Warn().Str("webinar_id", id).Int("seat_capacity", w.SeatCapacity).Msg("invalid snapshot; dropping")
		return domain.Webinar{}, false
	}
	return w, true
}
