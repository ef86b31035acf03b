package domain

import (
	"errors"
	"fmt"
)

var (
	ErrWebinarNotFound      = errors.New("webinar not found")
	ErrNoSeatsAvailable     = errors.New("no seats available")
	ErrAlreadyParticipating = errors.New("user already participating in this webinar")

	// ErrForbidden guards participant lists; booking itself never returns it.
	ErrForbidden = errors.New("forbidden")
)

// StorageError wraps a failure of the directory or the ledger. It is transient:
// the caller may retry the whole booking.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return "storage: " + e.Op
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Temporary() bool { return true }

// NewStorageError leaves booking outcomes untouched so a conditional commit
// failure keeps its meaning.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDecision(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// DeliveryError is a notification failure after the booking committed.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %q failed: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func isDecision(err error) bool {
	return errors.Is(err, ErrWebinarNotFound) ||
		errors.Is(err, ErrNoSeatsAvailable) ||
		errors.Is(err, ErrAlreadyParticipating)
}

type Outcome string

const (
	OutcomeSuccess                Outcome = "success"
	OutcomeNotFound               Outcome = "not_found"
	OutcomeCapacityExceeded       Outcome = "capacity_exceeded"
	OutcomeDuplicateParticipation Outcome = "duplicate_participation"
	OutcomeStorageError           Outcome = "storage_error"
)

// OutcomeOf maps a BookSeat result onto the closed set of outcomes.
// Anything unrecognised counts as a storage error.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrWebinarNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrNoSeatsAvailable):
		return OutcomeCapacityExceeded
	case errors.Is(err, ErrAlreadyParticipating):
		return OutcomeDuplicateParticipation
	default:
		return OutcomeStorageError
	}
}
