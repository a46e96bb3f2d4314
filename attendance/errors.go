package attendance

import (
	"fmt"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// ERROR TYPES
// =============================================================================
// Every domain-rule violation names the dates and sessions involved so the
// operator sees why the action was refused.

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return generic.ErrValidation }

// InvalidTimeRangeError is returned by manual correction when check-out is
// not strictly after check-in. It is also a validation error.
type InvalidTimeRangeError struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func (e *InvalidTimeRangeError) Error() string {
	return fmt.Sprintf("check-out %s must be after check-in %s",
		e.CheckOut.Format(time.RFC3339), e.CheckIn.Format(time.RFC3339))
}

func (e *InvalidTimeRangeError) Unwrap() []error {
	return []error{generic.ErrInvalidTimeRange, generic.ErrValidation}
}

// DuplicateSessionError is returned when (worker, date) already has a session.
type DuplicateSessionError struct {
	WorkerID   generic.WorkerID
	Date       generic.Date
	ExistingID generic.SessionID // empty when detected by the storage constraint
}

func (e *DuplicateSessionError) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("worker %s already checked in on %s", e.WorkerID, e.Date)
	}
	return fmt.Sprintf("worker %s already checked in on %s (session %s)", e.WorkerID, e.Date, e.ExistingID)
}

func (e *DuplicateSessionError) Unwrap() error { return generic.ErrDuplicateSession }

// OpenSessionConflictError is returned when the worker must close out an
// earlier session before opening a new one.
type OpenSessionConflictError struct {
	WorkerID      generic.WorkerID
	OpenSessionID generic.SessionID
	OpenDate      generic.Date
	RequestedDate generic.Date
}

func (e *OpenSessionConflictError) Error() string {
	return fmt.Sprintf("worker %s has not checked out of %s (session %s); cannot check in on %s",
		e.WorkerID, e.OpenDate, e.OpenSessionID, e.RequestedDate)
}

func (e *OpenSessionConflictError) Unwrap() error { return generic.ErrOpenSessionConflict }

// CrossDayCheckoutError is returned when check-out is attempted on a
// different calendar date than the session.
type CrossDayCheckoutError struct {
	SessionID    generic.SessionID
	SessionDate  generic.Date
	CheckoutDate generic.Date
}

func (e *CrossDayCheckoutError) Error() string {
	return fmt.Sprintf("session %s was opened on %s and cannot be checked out on %s",
		e.SessionID, e.SessionDate, e.CheckoutDate)
}

func (e *CrossDayCheckoutError) Unwrap() error { return generic.ErrCrossDayCheckout }

type SessionNotFoundError struct {
	SessionID generic.SessionID
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("attendance session %s not found", e.SessionID)
}

func (e *SessionNotFoundError) Unwrap() error { return generic.ErrSessionNotFound }

type SessionClosedError struct {
	SessionID    generic.SessionID
	Date         generic.Date
	CheckOutTime time.Time
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("session %s on %s was already checked out at %s",
		e.SessionID, e.Date, e.CheckOutTime.Format("15:04"))
}

func (e *SessionClosedError) Unwrap() error { return generic.ErrSessionClosed }

type WorkerNotFoundError struct {
	WorkerID generic.WorkerID
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("worker %s not found", e.WorkerID)
}

func (e *WorkerNotFoundError) Unwrap() error { return generic.ErrWorkerNotFound }

type NonWorkingDayError struct {
	Date generic.Date
}

func (e *NonWorkingDayError) Error() string {
	return fmt.Sprintf("%s (%s) is not a working day", e.Date, e.Date.Weekday())
}

func (e *NonWorkingDayError) Unwrap() error { return generic.ErrNonWorkingDay }

// PolicyValidationError collects every problem found in a weekday policy.
type PolicyValidationError struct {
	Weekday  time.Weekday
	Problems []string
}

func (e *PolicyValidationError) Error() string {
	return fmt.Sprintf("invalid %s policy: %v", e.Weekday, e.Problems)
}

func (e *PolicyValidationError) Unwrap() error { return generic.ErrValidation }
