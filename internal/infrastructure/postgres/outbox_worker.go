package postgres

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/contracts/event"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/logger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	outboxBatchSize   = 20
	outboxMaxAttempts = 12 // ~ up to hours with exponential backoff
	confirmWait       = 600 * time.Millisecond
	inFlightLease     = 15 * time.Second
)

type outboxMsg struct {
	ID         uuid.UUID
	MessageID  uuid.UUID
	TraceID    string
	RoutingKey string
	Payload    []byte
	Attempt    int
}

// computeNextRetry: exponential with +/-20% jitter, between 5s and 30m
func computeNextRetry(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	sec := math.Pow(2, float64(attempt))
	if sec < 5 {
		sec = 5
	}
	if sec > 1800 {
		sec = 1800
	}

	d := time.Duration(sec) * time.Second
	j := time.Duration(rand.Int63n(int64(d/5))) - d/10
	return d + j
}

// OutboxWorker publishes pending outbox rows with publisher confirms and
// mandatory routing. Unroutable, nacked or unconfirmed messages are retried
// until outboxMaxAttempts, then marked dead.
type OutboxWorker struct {
	repo     *Repository
	url      string
	exchange string
	audit    *audit.Logger
}

func NewOutboxWorker(repo *Repository, rabbitURL, exchange string, a *audit.Logger) *OutboxWorker {
	return &OutboxWorker{repo: repo, url: rabbitURL, exchange: exchange, audit: a}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	go func() {
		log := logger.Logger.With().Str("component", "outbox_worker").Logger()

		conn, err := amqp.Dial(w.url)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect rabbitmq for outbox publishing")
			return
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			log.Error().Err(err).Msg("failed to open rabbitmq channel for outbox publishing")
			return
		}
		defer ch.Close()

		if err := ch.ExchangeDeclare(w.exchange, "topic", true, false, false, false, nil); err != nil {
			log.Error().Err(err).Str("exchange", w.exchange).Msg("exchange declare failed")
			return
		}

		if err := ch.Confirm(false); err != nil {
			log.Error().Err(err).Msg("publisher confirm enable failed")
			return
		}
		confirmCh := ch.NotifyPublish(make(chan amqp.Confirmation, 100))
		returnCh := ch.NotifyReturn(make(chan amqp.Return, 100))

		// next_retry_at gates load, so polling can be coarse
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		var lastErr string
		var lastAt time.Time

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				if err := w.processBatch(ctx, ch, confirmCh, returnCh); err != nil {
					if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
						log.Warn().Err(err).Msg("outbox batch failed")
						lastErr = err.Error()
						lastAt = time.Now()
					}
				} else {
					lastErr = ""
				}
			}
		}
	}()
}

// claimBatch selects due rows and pushes their next_retry_at forward so a
// second worker does not pick them up while they are being published.
func (w *OutboxWorker) claimBatch(ctx context.Context) ([]outboxMsg, error) {
	tx, err := w.repo.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, message_id, trace_id, routing_key, payload, attempt
		FROM outbox
		WHERE status = 'pending'
		  AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC, occurred_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, outboxBatchSize)
	if err != nil {
		return nil, err
	}

	var messages []outboxMsg
	for rows.Next() {
		var m outboxMsg
		if err := rows.Scan(&m.ID, &m.MessageID, &m.TraceID, &m.RoutingKey, &m.Payload, &m.Attempt); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(messages) > 0 {
		ids := make([]string, 0, len(messages))
		for _, m := range messages {
			ids = append(ids, m.ID.String())
		}
		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET next_retry_at = $2 WHERE id = ANY($1::uuid[])
		`, ids, time.Now().Add(inFlightLease)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

func (w *OutboxWorker) processBatch(
	ctx context.Context,
	ch *amqp.Channel,
	confirmCh <-chan amqp.Confirmation,
	returnCh <-chan amqp.Return,
) error {
	messages, err := w.claimBatch(ctx)
	if err != nil {
		return err
	}

	log := logger.Logger.With().Str("component", "outbox_worker").Logger()

	for _, m := range messages {
		drain(confirmCh, returnCh)

		pub := amqp.Publishing{
			ContentType:   "application/json",
			Body:          m.Payload,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now().UTC(),
			MessageId:     m.MessageID.String(),
			CorrelationId: m.TraceID,
			AppId:         event.Producer,
		}

		if err := ch.PublishWithContext(ctx, w.exchange, m.RoutingKey, true, false, pub); err != nil {
			w.fail(ctx, m, fmt.Sprintf("publish error: %v", err))
			continue
		}

		if err := awaitConfirm(confirmCh, returnCh, confirmWait); err != nil {
			w.fail(ctx, m, err.Error())
			continue
		}

		_, _ = w.repo.pool.Exec(ctx, `
			UPDATE outbox
			SET status = 'sent',
			    last_error = NULL
			WHERE id = $1
		`, m.ID)
		metrics.RecordOutboxPublish("sent")

		log.Info().
			Str("outbox_id", m.ID.String()).
			Str("message_id", m.MessageID.String()).
			Str("routing_key", m.RoutingKey).
			Msg("published")
	}

	return nil
}

// drain discards stale notifications left by a previous timeout.
func drain(confirmCh <-chan amqp.Confirmation, returnCh <-chan amqp.Return) {
	for {
		select {
		case <-returnCh:
		case <-confirmCh:
		default:
			return
		}
	}
}

// awaitConfirm waits for the broker's verdict on one mandatory publish.
// A Return usually arrives before the Confirm and wins.
func awaitConfirm(confirmCh <-chan amqp.Confirmation, returnCh <-chan amqp.Return, wait time.Duration) error {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	var returned *amqp.Return
	for {
		select {
		case ret := <-returnCh:
			r := ret
			returned = &r
		case c, ok := <-confirmCh:
			if !ok {
				return fmt.Errorf("confirm channel closed")
			}
			if returned != nil {
				return fmt.Errorf("NO_ROUTE: code=%d text=%s exchange=%s rk=%s",
					returned.ReplyCode, returned.ReplyText, returned.Exchange, returned.RoutingKey)
			}
			if !c.Ack {
				return fmt.Errorf("NACK: delivery_tag=%d", c.DeliveryTag)
			}
			return nil
		case <-deadline.C:
			return fmt.Errorf("confirm/return timeout")
		}
	}
}

func (w *OutboxWorker) fail(ctx context.Context, m outboxMsg, errMsg string) {
	log := logger.Logger.With().Str("component", "outbox_worker").Logger()

	nextAttempt := m.Attempt + 1
	if nextAttempt >= outboxMaxAttempts {
		_, _ = w.repo.pool.Exec(ctx, `
			UPDATE outbox
			SET status = 'dead',
			    attempt = $2,
			    last_error = $3
			WHERE id = $1
		`, m.ID, nextAttempt, errMsg)

		metrics.RecordOutboxPublish("dead")
		if w.audit != nil {
			w.audit.OutboxMessageDead(ctx, m.MessageID.String(), m.RoutingKey, nextAttempt)
		}
		return
	}

	delay := computeNextRetry(nextAttempt)
	_, _ = w.repo.pool.Exec(ctx, `
		UPDATE outbox
		SET attempt = $2,
		    next_retry_at = NOW() + $3::interval,
		    last_error = $4
		WHERE id = $1
	`, m.ID, nextAttempt, fmt.Sprintf("%f seconds", delay.Seconds()), errMsg)
	metrics.RecordOutboxPublish("retry")

	log.Warn().
		Str("outbox_id", m.ID.String()).
		Str("message_id", m.MessageID.String()).
		Str("routing_key", m.RoutingKey).
		Int("attempt", nextAttempt).
		Dur("retry_in", delay).
		Str("error", errMsg).
		Msg("outbox publish failed; scheduled retry")
}
