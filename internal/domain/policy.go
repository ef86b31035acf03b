package domain

import (
	"fmt"
	"strings"
)

// NewParticipantMessage is the organizer notification sent after each booking.
// The title is used verbatim.
func NewParticipantMessage(w Webinar) Message {
	return Message{
		To:      w.OrganizerID,
		Subject: fmt.Sprintf("New participant for %s", w.Title),
		Body:    fmt.Sprintf("A new participant has registered for your webinar \"%s\"", w.Title),
	}
}

// IsPrivileged reports whether a role may read any webinar's participant list.
func IsPrivileged(role string) bool {
	r := strings.ToLower(strings.TrimSpace(role))
	return r == "admin" || r == "moderator"
}

// ValidWebinar is the acceptance rule for ingested snapshots.
func ValidWebinar(w Webinar) bool {
	return strings.TrimSpace(w.ID) != "" &&
		strings.TrimSpace(w.OrganizerID) != "" &&
		strings.TrimSpace(w.Title) != "" &&
		w.SeatCapacity > 0
}
