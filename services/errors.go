package services

import (
	"errors"
	"fmt"

	"eventhub/models"
)

// Error kinds surfaced to callers. Each maps to a distinct API response.
var (
	ErrValidation            = errors.New("validation failed")
	ErrUnauthorized          = errors.New("invalid credentials")
	ErrForbidden             = errors.New("admin capability required")
	ErrNotFound              = errors.New("not found")
	ErrEmailTaken            = errors.New("email already in use")
	ErrDuplicateRegistration = errors.New("already registered for this event")
	ErrEventFull             = errors.New("event is full")
	ErrNotRegistered         = errors.New("not registered for this event")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrConflict              = errors.New("concurrent registration conflict, try again")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound translates a storage miss into ErrNotFound naming what was missing.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return err
}
