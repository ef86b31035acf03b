package audit

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/context"
	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for business events
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// SeatBooked logs a committed booking.
func (l *Logger) SeatBooked(ctx context.Context, webinarID, userID string, seatsLeft int) {
	l.log.Info().
		Str("action", "seat_booked").
		Str("webinar_id", webinarID).
		Str("user_id", userID).
		Int("seats_left", seatsLeft).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Seat booked")
}

// BookingRejected logs a booking refused by a business rule.
func (l *Logger) BookingRejected(ctx context.Context, webinarID, userID string, outcome domain.Outcome) {
	l.log.Info().
		Str("action", "booking_rejected").
		Str("webinar_id", webinarID).
		Str("user_id", userID).
		Str("outcome", string(outcome)).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Booking rejected")
}

func (l *Logger) NotificationFailed(ctx context.Context, webinarID, to string, err error) {
	l.log.Error().
		Err(err).
		Str("action", "notification_failed").
		Str("webinar_id", webinarID).
		Str("to", to).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Organizer notification failed")
}

// WebinarSynced logs a snapshot applied from the message bus.
func (l *Logger) WebinarSynced(ctx context.Context, w domain.Webinar) {
	l.log.Info().
		Str("action", "webinar_synced").
		Str("webinar_id", w.ID).
		Str("organizer_id", w.OrganizerID).
		Int("seat_capacity", w.SeatCapacity).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Webinar snapshot applied")
}

func (l *Logger) OutboxMessageDead(ctx context.Context, messageID, routingKey string, retries int) {
	l.log.Error().
		Str("action", "outbox_dead").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Int("retries", retries).
		Msg("Outbox message moved to dead status")
}
