package memory

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
)

// ParticipationRepository is an in-process ParticipationLedger.
// Uniqueness of (webinar, user) is enforced on write; capacity is not, callers
// serialize per webinar.
type ParticipationRepository struct {
	mu        sync.RWMutex
	byWebinar map[string][]domain.Participation
}

func NewParticipationRepository() *ParticipationRepository {
	return &ParticipationRepository{byWebinar: make(map[string][]domain.Participation)}
}

func (r *ParticipationRepository) IsRegistered(ctx context.Context, webinarID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(webinarID, userID) >= 0, nil
}

func (r *ParticipationRepository) AddParticipant(ctx context.Context, p domain.Participation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(p.WebinarID, p.UserID) >= 0 {
		return domain.ErrAlreadyParticipating
	}
	r.byWebinar[p.WebinarID] = append(r.byWebinar[p.WebinarID], p)
	return nil
}

// FindByWebinarID returns bookings in insertion order.
func (r *ParticipationRepository) FindByWebinarID(ctx context.Context, webinarID string) ([]domain.Participation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.byWebinar[webinarID]
	out := make([]domain.Participation, len(src))
	copy(out, src)
	return out, nil
}

func (r *ParticipationRepository) indexOf(webinarID, userID string) int {
	for i, p := range r.byWebinar[webinarID] {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}
