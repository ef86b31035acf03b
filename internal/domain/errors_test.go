package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil is success", nil, OutcomeSuccess},
		{"not found", ErrWebinarNotFound, OutcomeNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", ErrWebinarNotFound), OutcomeNotFound},
		{"capacity", ErrNoSeatsAvailable, OutcomeCapacityExceeded},
		{"duplicate", ErrAlreadyParticipating, OutcomeDuplicateParticipation},
		{"storage", &StorageError{Op: "get_details", Err: errors.New("conn reset")}, OutcomeStorageError},
		{"unknown", errors.New("boom"), OutcomeStorageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeOf(tt.err))
		})
	}
}

func TestNewStorageError(t *testing.T) {
	assert.Nil(t, NewStorageError("op", nil))

	// decisions pass through untouched
	assert.Same(t, ErrNoSeatsAvailable, NewStorageError("add", ErrNoSeatsAvailable))
	assert.ErrorIs(t, NewStorageError("add", fmt.Errorf("tx: %w", ErrAlreadyParticipating)), ErrAlreadyParticipating)

	base := errors.New("timeout")
	err := NewStorageError("is_registered", base)
	var se *StorageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "is_registered", se.Op)
	assert.ErrorIs(t, err, base)
	assert.True(t, se.Temporary())

	// no double wrapping
	assert.Same(t, err, NewStorageError("outer", err))
}

func TestDeliveryError(t *testing.T) {
	base := errors.New("smtp 421")
	err := &DeliveryError{To: "user-organizer-id", Err: base}
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "user-organizer-id")
}

func TestWebinarDetails_Seats(t *testing.T) {
	d := WebinarDetails{
		Webinar:      Webinar{ID: "id-2", SeatCapacity: 1},
		Participants: nil,
	}
	assert.Equal(t, 1, d.SeatsLeft())
	assert.False(t, d.IsFull())

	d.Participants = []Participant{{UserID: "user-alice-id"}}
	assert.Equal(t, 0, d.SeatsLeft())
	assert.Equal(t, 1, d.SeatsTaken())
	assert.True(t, d.IsFull())
}
