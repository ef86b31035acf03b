package memory

import (
	"context"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebinarRepository_GetDetails(t *testing.T) {
	ctx := context.Background()
	parts := NewParticipationRepository()
	webinars := NewWebinarRepository(parts)

	_, err := webinars.GetDetails(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrWebinarNotFound)

	require.NoError(t, webinars.UpsertWebinar(ctx, domain.Webinar{
		ID: "id-1", OrganizerID: "user-organizer-id", Title: "Test Webinar", SeatCapacity: 100,
	}))

	d, err := webinars.GetDetails(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Webinar", d.Title)
	assert.Empty(t, d.Participants)

	require.NoError(t, parts.AddParticipant(ctx, domain.Participation{WebinarID: "id-1", UserID: "user-alice-id", CreatedAt: time.Now()}))
	require.NoError(t, parts.AddParticipant(ctx, domain.Participation{WebinarID: "id-1", UserID: "user-bob-id", CreatedAt: time.Now()}))

	d, err = webinars.GetDetails(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Participant{{UserID: "user-alice-id"}, {UserID: "user-bob-id"}}, d.Participants)
}

func TestWebinarRepository_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	webinars := NewWebinarRepository(NewParticipationRepository())

	require.NoError(t, webinars.UpsertWebinar(ctx, domain.Webinar{ID: "id-2", OrganizerID: "o", Title: "Limited Webinar", SeatCapacity: 1}))
	require.NoError(t, webinars.UpsertWebinar(ctx, domain.Webinar{ID: "id-2", OrganizerID: "o", Title: "Limited Webinar", SeatCapacity: 5}))

	d, err := webinars.GetDetails(ctx, "id-2")
	require.NoError(t, err)
	assert.Equal(t, 5, d.SeatCapacity)
}

func TestParticipationRepository(t *testing.T) {
	ctx := context.Background()
	parts := NewParticipationRepository()

	ok, err := parts.IsRegistered(ctx, "id-1", "user-alice-id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, parts.AddParticipant(ctx, domain.Participation{WebinarID: "id-1", UserID: "user-alice-id"}))

	ok, err = parts.IsRegistered(ctx, "id-1", "user-alice-id")
	require.NoError(t, err)
	assert.True(t, ok)

	// same user, other webinar is independent
	ok, err = parts.IsRegistered(ctx, "id-2", "user-alice-id")
	require.NoError(t, err)
	assert.False(t, ok)

	err = parts.AddParticipant(ctx, domain.Participation{WebinarID: "id-1", UserID: "user-alice-id"})
	assert.ErrorIs(t, err, domain.ErrAlreadyParticipating)

	all, err := parts.FindByWebinarID(ctx, "id-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestParticipationRepository_FindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	parts := NewParticipationRepository()
	require.NoError(t, parts.AddParticipant(ctx, domain.Participation{WebinarID: "id-1", UserID: "a"}))

	got, _ := parts.FindByWebinarID(ctx, "id-1")
	got[0].UserID = "mutated"

	again, _ := parts.FindByWebinarID(ctx, "id-1")
	assert.Equal(t, "a", again[0].UserID)
}
