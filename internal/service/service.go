package service

import (
	"context"
	"errors"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/keylock"
	"github.com/rs/zerolog"
)

const (
	defaultLockTimeout   = 5 * time.Second
	defaultNotifyTimeout = 15 * time.Second
)

type BookingService struct {
	directory domain.WebinarDirectory
	ledger    domain.ParticipationLedger
	notifier  domain.Notifier

	locks   *keylock.Locker
	soldOut domain.SoldOutCache // nil => disabled
	clock   domain.Clock
	audit   *audit.Logger
	lg      zerolog.Logger

	lockTimeout   time.Duration
	notifyTimeout time.Duration
}

type Option func(*BookingService)

func WithSoldOutCache(c domain.SoldOutCache) Option {
	return func(s *BookingService) { s.soldOut = c }
}

func WithClock(c domain.Clock) Option {
	return func(s *BookingService) { s.clock = c }
}

func WithAudit(a *audit.Logger) Option {
	return func(s *BookingService) { s.audit = a }
}

func WithLogger(lg zerolog.Logger) Option {
	return func(s *BookingService) { s.lg = lg.With().Str("component", "booking_service").Logger() }
}

// WithLockTimeout bounds the wait for the per-webinar critical section.
func WithLockTimeout(d time.Duration) Option {
	return func(s *BookingService) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *BookingService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func NewBookingService(directory domain.WebinarDirectory, ledger domain.ParticipationLedger, notifier domain.Notifier, opts ...Option) *BookingService {
	s := &BookingService{
		directory:     directory,
		ledger:        ledger,
		notifier:      notifier,
		locks:         keylock.New(),
		clock:         domain.SystemClock{},
		audit:         audit.New(zerolog.Nop()),
		lg:            zerolog.Nop(),
		lockTimeout:   defaultLockTimeout,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BookSeat reserves one seat in webinarID for user and notifies the organizer.
//
// The returned error is nil or one of ErrWebinarNotFound, ErrNoSeatsAvailable,
// ErrAlreadyParticipating or a *domain.StorageError, checked in that order.
// Notification failures are never returned.
func (s *BookingService) BookSeat(ctx context.Context, webinarID string, user domain.User) error {
	start := time.Now()

	w, seatsLeft, err := s.reserve(ctx, webinarID, user)
	outcome := domain.OutcomeOf(err)
	metrics.RecordBooking(string(outcome), time.Since(start))

	if err != nil {
		if outcome == domain.OutcomeStorageError {
			s.lg.Warn().Err(err).Str("webinar_id", webinarID).Str("user_id", user.ID).Msg("booking failed")
		} else {
			s.audit.BookingRejected(ctx, webinarID, user.ID, outcome)
		}
		return err
	}

	s.audit.SeatBooked(ctx, webinarID, user.ID, seatsLeft)
	s.notifyOrganizer(ctx, w)
	return nil
}

// reserve runs the decision steps inside the per-webinar critical section and
// returns the booked webinar with the seats left after the commit.
func (s *BookingService) reserve(ctx context.Context, webinarID string, user domain.User) (domain.Webinar, int, error) {
	if s.soldOut != nil {
		if full, err := s.soldOut.IsSoldOut(ctx, webinarID); err == nil && full {
			metrics.RecordSoldOutHit()
			return domain.Webinar{}, 0, domain.ErrNoSeatsAvailable
		}
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	unlock, err := s.locks.Lock(lockCtx, webinarID)
	if err != nil {
		return domain.Webinar{}, 0, domain.NewStorageError("acquire_lock", err)
	}
	defer unlock()

	details, err := s.directory.GetDetails(ctx, webinarID)
	if err != nil {
		return domain.Webinar{}, 0, domain.NewStorageError("get_details", err)
	}

	if details.IsFull() {
		s.markSoldOut(ctx, webinarID, details.SeatCapacity)
		return domain.Webinar{}, 0, domain.ErrNoSeatsAvailable
	}

	registered, err := s.ledger.IsRegistered(ctx, webinarID, user.ID)
	if err != nil {
		return domain.Webinar{}, 0, domain.NewStorageError("is_registered", err)
	}
	if registered {
		return domain.Webinar{}, 0, domain.ErrAlreadyParticipating
	}

	err = s.ledger.AddParticipant(ctx, domain.Participation{
		WebinarID: webinarID,
		UserID:    user.ID,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		// a conditional commit lost the race to another replica
		if errors.Is(err, domain.ErrNoSeatsAvailable) {
			s.markSoldOut(ctx, webinarID, details.SeatCapacity)
		}
		return domain.Webinar{}, 0, domain.NewStorageError("add_participant", err)
	}

	left := details.SeatsLeft() - 1
	if left <= 0 {
		s.markSoldOut(ctx, webinarID, details.SeatCapacity)
	}
	return details.Webinar, left, nil
}

// notifyOrganizer runs after the critical section. The booking is already
// committed, so the caller's cancellation does not abort delivery.
func (s *BookingService) notifyOrganizer(ctx context.Context, w domain.Webinar) {
	msg := domain.NewParticipantMessage(w)

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Send(nctx, msg); err != nil {
		derr := &domain.DeliveryError{To: msg.To, Err: err}
		metrics.RecordNotificationFailed(classifyDeliveryError(err))
		s.audit.NotificationFailed(ctx, w.ID, msg.To, derr)
		return
	}
	metrics.RecordNotificationSent()
}

func (s *BookingService) markSoldOut(ctx context.Context, webinarID string, capacity int) {
	if s.soldOut == nil {
		return
	}
	if err := s.soldOut.MarkSoldOut(ctx, webinarID, capacity); err != nil {
		s.lg.Debug().Err(err).Str("webinar_id", webinarID).Msg("sold-out mark failed")
	}
}

type temporaryMarker interface{ Temporary() bool }
type permanentMarker interface{ Permanent() bool }

func classifyDeliveryError(err error) string {
	var p permanentMarker
	if errors.As(err, &p) && p.Permanent() {
		return "permanent"
	}
	var t temporaryMarker
	if errors.As(err, &t) && t.Temporary() {
		return "temporary"
	}
	return "unknown"
}

// Reads

func (s *BookingService) GetDetails(ctx context.Context, webinarID string) (domain.WebinarDetails, error) {
	d, err := s.directory.GetDetails(ctx, webinarID)
	if err != nil {
		return domain.WebinarDetails{}, domain.NewStorageError("get_details", err)
	}
	return d, nil
}

// ListParticipants is restricted to the webinar's organizer and privileged roles.
func (s *BookingService) ListParticipants(ctx context.Context, webinarID, requesterID, role string) ([]domain.Participant, error) {
	d, err := s.GetDetails(ctx, webinarID)
	if err != nil {
		return nil, err
	}
	if !domain.IsPrivileged(role) && d.OrganizerID != requesterID {
		return nil, domain.ErrForbidden
	}
	return d.Participants, nil
}

func (s *BookingService) IsRegistered(ctx context.Context, webinarID, userID string) (bool, error) {
	if _, err := s.GetDetails(ctx, webinarID); err != nil {
		return false, err
	}
	ok, err := s.ledger.IsRegistered(ctx, webinarID, userID)
	if err != nil {
		return false, domain.NewStorageError("is_registered", err)
	}
	return ok, nil
}
