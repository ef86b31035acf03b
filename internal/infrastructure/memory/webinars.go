package memory

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
)

type participationFinder interface {
	FindByWebinarID(ctx context.Context, webinarID string) ([]domain.Participation, error)
}

// WebinarRepository is an in-process WebinarDirectory. Participants are read
// from the ledger on every call so a committed booking is visible immediately.
type WebinarRepository struct {
	mu       sync.RWMutex
	webinars map[string]domain.Webinar

	participations participationFinder
}

func NewWebinarRepository(participations participationFinder) *WebinarRepository {
	return &WebinarRepository{
		webinars:       make(map[string]domain.Webinar),
		participations: participations,
	}
}

func (r *WebinarRepository) UpsertWebinar(ctx context.Context, w domain.Webinar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webinars[w.ID] = w
	return nil
}

func (r *WebinarRepository) GetDetails(ctx context.Context, webinarID string) (domain.WebinarDetails, error) {
	r.mu.RLock()
	w, ok := r.webinars[webinarID]
	r.mu.RUnlock()
	if !ok {
		return domain.WebinarDetails{}, domain.ErrWebinarNotFound
	}

	ps, err := r.participations.FindByWebinarID(ctx, webinarID)
	if err != nil {
		return domain.WebinarDetails{}, err
	}

	details := domain.WebinarDetails{Webinar: w, Participants: make([]domain.Participant, 0, len(ps))}
	for _, p := range ps {
		details.Participants = append(details.Participants, domain.Participant{UserID: p.UserID})
	}
	return details, nil
}
