package domain

import (
	"errors"
	"fmt"
)

var (
	ErrGeolocationPermissionDenied = errors.New("geolocation: permission denied")
	ErrGeolocationUnavailable      = errors.New("geolocation: position unavailable")
	ErrGeolocationTimeout          = errors.New("geolocation: timeout")
	ErrRouteComputationFailed      = errors.New("route computation failed")
	ErrStorageMalformed            = errors.New("storage: malformed value")

	// Precondition causes.
	ErrNoFix        = errors.New("user position not yet known")
	ErrNoSavedCar   = errors.New("no car location saved")
	ErrUnknownStand = errors.New("unknown stand")
)

// PreconditionError is returned when an action is rejected by a guard clause
// before any state is touched. Message is the text shown to the user.
type PreconditionError struct {
	Op      string
	Cause   error
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition not met: %v", e.Op, e.Cause)
}

func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

func NewPreconditionError(op string, cause error, message string) *PreconditionError {
	return &PreconditionError{Op: op, Cause: cause, Message: message}
}
