package domain

import (
	"context"
	"time"
)

// Webinar is the read-only view of a scheduled event the booking core consults.
// SeatCapacity > 0 is enforced by whoever creates webinars.
type Webinar struct {
	ID           string
	OrganizerID  string
	Title        string
	SeatCapacity int
}

type Participant struct {
	UserID string
}

type WebinarDetails struct {
	Webinar
	Participants []Participant
}

func (d WebinarDetails) SeatsTaken() int { return len(d.Participants) }

func (d WebinarDetails) SeatsLeft() int {
	left := d.SeatCapacity - len(d.Participants)
	if left < 0 {
		return 0
	}
	return left
}

func (d WebinarDetails) IsFull() bool { return len(d.Participants) >= d.SeatCapacity }

// Participation is one successful booking. (WebinarID, UserID) is unique.
type Participation struct {
	WebinarID string
	UserID    string
	CreatedAt time.Time
}

type User struct {
	ID string
}

// Message is what the Notifier delivers. To is a user id; adapters resolve addresses.
type Message struct {
	To      string
	Subject string
	Body    string
}

// WebinarDirectory resolves webinar ids. GetDetails returns ErrWebinarNotFound when absent.
type WebinarDirectory interface {
	GetDetails(ctx context.Context, webinarID string) (WebinarDetails, error)
}

// ParticipationLedger stores bookings.
//
// AddParticipant may perform a conditional commit; when the condition fails it
// returns ErrNoSeatsAvailable or ErrAlreadyParticipating, the same errors the
// pre-checks would have produced.
type ParticipationLedger interface {
	IsRegistered(ctx context.Context, webinarID, userID string) (bool, error)
	AddParticipant(ctx context.Context, p Participation) error
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// WebinarStore is the write side used by snapshot ingestion.
type WebinarStore interface {
	UpsertWebinar(ctx context.Context, w Webinar) error
}

// SoldOutCache short-circuits bookings for webinars already known to be full.
// Implementations are advisory: errors are ignored by callers.
//
// Marks and clears carry the seat capacity they were computed from. Once
// ClearSoldOut has recorded a capacity, a MarkSoldOut for any other capacity
// is a no-op, so a mark computed from a pre-snapshot read cannot stick.
type SoldOutCache interface {
	IsSoldOut(ctx context.Context, webinarID string) (bool, error)
	MarkSoldOut(ctx context.Context, webinarID string, capacity int) error
	ClearSoldOut(ctx context.Context, webinarID string, capacity int) error
}

type RateLimiter interface {
	AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
