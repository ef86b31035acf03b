package domain_test

import (
	"testing"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewParticipantMessage(t *testing.T) {
	msg := domain.NewParticipantMessage(domain.Webinar{
		ID:           "id-1",
		OrganizerID:  "user-organizer-id",
		Title:        "Test Webinar",
		SeatCapacity: 100,
	})

	assert.Equal(t, "user-organizer-id", msg.To)
	assert.Equal(t, "New participant for Test Webinar", msg.Subject)
	assert.Equal(t, `A new participant has registered for your webinar "Test Webinar"`, msg.Body)
}

func TestNewParticipantMessage_TitleIsVerbatim(t *testing.T) {
	msg := domain.NewParticipantMessage(domain.Webinar{OrganizerID: "o", Title: `Go "fast" & <safe>`})
	assert.Equal(t, `New participant for Go "fast" & <safe>`, msg.Subject)
	assert.Equal(t, `A new participant has registered for your webinar "Go "fast" & <safe>"`, msg.Body)
}

func TestIsPrivileged(t *testing.T) {
	tests := []struct {
		role     string
		expected bool
	}{
		{"admin", true},
		{" Moderator ", true},
		{"user", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			assert.Equal(t, tt.expected, domain.IsPrivileged(tt.role))
		})
	}
}

func TestValidWebinar(t *testing.T) {
	ok := domain.Webinar{ID: "id-1", OrganizerID: "o", Title: "T", SeatCapacity: 1}
	assert.True(t, domain.ValidWebinar(ok))

	noSeats := ok
	noSeats.SeatCapacity = 0
	assert.False(t, domain.ValidWebinar(noSeats))

	noTitle := ok
	noTitle.Title = "  "
	assert.False(t, domain.ValidWebinar(noTitle))

	noOrganizer := ok
	noOrganizer.OrganizerID = ""
	assert.False(t, domain.ValidWebinar(noOrganizer))
}
