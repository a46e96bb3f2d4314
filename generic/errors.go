/*
errors.go - Centralized error types for the engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  The attendance package wraps these with structured errors carrying the
  worker, session and dates involved so an operator can see why an action
  was refused.

ERROR CATEGORIES:
  1. Validation errors - Missing capture artifacts, invalid time ranges
  2. Domain-rule violations - Duplicate session, open session, cross-day checkout
  3. Lookup errors - Session, worker or policy not found
  4. Store errors - Transient database failures (the only retryable class)

USAGE:
  if errors.Is(err, generic.ErrOpenSessionConflict) {
      var conflict *attendance.OpenSessionConflictError
      errors.As(err, &conflict)
      fmt.Println("close out", conflict.OpenDate, "first")
  }

SEE ALSO:
  - attendance/errors.go: Structured domain errors
  - store/sqlite/sqlite.go: Maps driver errors onto these sentinels
*/
package generic

import (
	"errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTimeRange is returned when a check-out is not strictly after
	// its check-in.
	ErrInvalidTimeRange = errors.New("invalid time range: check-out must be after check-in")

	// ErrDuplicateSession is returned when a session already exists for the
	// (worker, date) key. Storage uniqueness violations map onto it.
	ErrDuplicateSession = errors.New("attendance session already exists for this date")

	// ErrOpenSessionConflict is returned when a worker still has a session
	// without a check-out.
	ErrOpenSessionConflict = errors.New("worker has an open attendance session")

	// ErrCrossDayCheckout is returned when a check-out happens on a different
	// calendar date than the session.
	ErrCrossDayCheckout = errors.New("check-out must happen on the session date")

	// ErrSessionClosed is returned when checking out a session twice.
	ErrSessionClosed = errors.New("attendance session already checked out")

	// ErrNonWorkingDay is returned when check-in on non-working days is disabled.
	ErrNonWorkingDay = errors.New("date is not a working day")

	ErrSessionNotFound = errors.New("attendance session not found")
	ErrWorkerNotFound  = errors.New("worker not found")
	ErrPolicyNotFound  = errors.New("weekday policy not found")
	ErrRunNotFound     = errors.New("payroll run not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrStoreUnavailable wraps transient storage failures (timeouts, busy
	// database, lost connections). Only these are safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
// Validation and domain-rule violations are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the error is a domain-rule violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSession) ||
		errors.Is(err, ErrOpenSessionConflict) ||
		errors.Is(err, ErrCrossDayCheckout) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrNonWorkingDay)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrRunNotFound)
}
