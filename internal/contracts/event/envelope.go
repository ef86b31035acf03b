package event

import "time"

// DomainEventEnvelope is the canonical envelope exchanged across services.
// message_id is optional for backward compatibility.
type DomainEventEnvelope[T any] struct {
	Version    int       `json:"version"`
	Producer   string    `json:"producer"`
	TraceID    string    `json:"trace_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    T         `json:"payload"`
}

const (
	EnvelopeVersion = 1
	Producer        = "webinar-service"

	RKWebinarPublished = "webinar.published"
	RKWebinarUpdated   = "webinar.updated"
	RKBookingEmail     = "email.booking_created"
)

// WebinarPublishedPayload is a full snapshot; extra producer fields are ignored.
// Accept both webinar_id and legacy id.
type WebinarPublishedPayload struct {
	WebinarID    string `json:"webinar_id,omitempty"`
	ID           string `json:"id,omitempty"`
	OrganizerID  string `json:"organizer_id"`
	Title        string `json:"title"`
	SeatCapacity *int   `json:"seat_capacity,omitempty"` // pointer so we can detect missing
}

type WebinarUpdatedPayload = WebinarPublishedPayload

// EmailPayload is what the outbox publishes for the mail workers.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
