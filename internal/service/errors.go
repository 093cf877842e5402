package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/travel-booking/internal/repository"
)

// Errors returned by the services.  Handlers map them to HTTP status codes;
// callers should compare with errors.Is because most are wrapped with detail.
var (
	ErrNotFound            = repository.ErrNotFound
	ErrConflict            = repository.ErrConflict
	ErrCapacityExceeded    = repository.ErrCapacityExceeded
	ErrInsufficientBalance = repository.ErrInsufficientBalance

	ErrValidation       = errors.New("validation failed")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrAlreadyTerminal  = errors.New("booking is already cancelled or closed")
	ErrUnauthorized     = errors.New("not allowed")
	ErrTourNotBookable  = errors.New("tour is not open for booking")
	ErrDepartureTooSoon = errors.New("tour has already departed")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
