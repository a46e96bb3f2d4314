/*
session.go - Attendance session state machine

PURPOSE:
  Owns the lifecycle of one worker's attendance record for one calendar
  date: open it (check-in), close it (check-out), correct it (admin), or
  delete it (admin). Every refusal is a typed error naming the dates and
  sessions involved.

STATES:
  NoSession --CheckIn--> Open --CheckOut--> Closed --CorrectTimes--> Corrected

INVARIANTS:
  1. At most one session per (worker, date). Enforced by a pre-check and,
     authoritatively, by the store's uniqueness constraint.
  2. Open-session exclusivity: a worker cannot check in while any other
     session of theirs has no check-out.
  3. Same-day checkout: check-out must happen on the session's date, as
     observed in the service's Location.
  4. Corrections require check-out strictly after check-in, and skip
     invariants 1-2 (administrative override).

TWO-PHASE CAPTURE:
  Photo and location are captured by an external collaborator first. The
  service only receives the finished Capture and checks both parts are
  present; it never waits on the camera or GPS.

RETRIES:
  The service never retries. Callers may retry when generic.IsRetryable
  reports a transient store failure, never on a rule violation.

EXAMPLE:
  svc := attendance.NewSessionService(store, generic.SystemClock{}, time.Local)
  s, err := svc.CheckIn(ctx, "w-1", generic.DateIn(time.Now(), time.Local), capture)
  var conflict *attendance.OpenSessionConflictError
  if errors.As(err, &conflict) {
      fmt.Println("check out of", conflict.OpenDate, "first")
  }

SEE ALSO:
  - classifier.go: Status derived at check-out
  - errors.go: Error types
  - store.go: Persistence contract
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// AccrualInvalidator is notified after every session mutation so derived
// payroll figures for that worker and month are recomputed.
type AccrualInvalidator interface {
	InvalidateWorkerMonth(ctx context.Context, workerID generic.WorkerID, month generic.Month) error
}

// Correction is an administrative edit of a session's times.
type Correction struct {
	CheckIn  time.Time
	CheckOut *time.Time
	Notes    *string
}

// =============================================================================
// SESSION SERVICE
// =============================================================================

type SessionService struct {
	Sessions SessionStore
	Policies PolicyReader
	Workers  WorkerReader
	Clock    generic.Clock

	// Location decides which calendar date an instant falls on.
	Location *time.Location

	// Invalidator may be nil.
	Invalidator AccrualInvalidator

	// RejectNonWorkingDays refuses check-in on days the schedule marks as
	// non-working.
	RejectNonWorkingDays bool

	locks sync.Map // generic.WorkerID -> *sync.Mutex
}

func NewSessionService(store Store, clock generic.Clock, loc *time.Location) *SessionService {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SessionService{
		Sessions: store,
		Policies: store,
		Workers:  store,
		Clock:    clock,
		Location: loc,
	}
}

// Today returns the current calendar date in the service's location.
func (s *SessionService) Today() generic.Date {
	return generic.DateIn(s.Clock.Now(), s.Location)
}

// CheckIn opens the session for (workerID, date).
func (s *SessionService) CheckIn(ctx context.Context, workerID generic.WorkerID, date generic.Date, capture Capture) (*Session, error) {
	if strings.TrimSpace(string(workerID)) == "" {
		return nil, &ValidationError{Field: "worker_id", Message: "is required"}
	}
	if date.IsZero() {
		return nil, &ValidationError{Field: "date", Message: "is required"}
	}
	if err := validateCapture(capture, "check_in"); err != nil {
		return nil, err
	}

	unlock := s.lockWorker(workerID)
	defer unlock()

	worker, err := s.Workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load worker: %w", err)
	}
	if worker == nil {
		return nil, &WorkerNotFoundError{WorkerID: workerID}
	}

	if s.RejectNonWorkingDays {
		policy, err := s.policyFor(ctx, date)
		if err != nil {
			return nil, err
		}
		if !policy.IsWorkingDay {
			return nil, &NonWorkingDayError{Date: date}
		}
	}

	existing, err := s.Sessions.FindSession(ctx, workerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing session: %w", err)
	}
	if existing != nil {
		return nil, &DuplicateSessionError{WorkerID: workerID, Date: date, ExistingID: existing.ID}
	}

	open, err := s.Sessions.FindOpenSession(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open session: %w", err)
	}
	if open != nil {
		return nil, &OpenSessionConflictError{
			WorkerID:      workerID,
			OpenSessionID: open.ID,
			OpenDate:      open.Date,
			RequestedDate: date,
		}
	}

	now := s.Clock.Now()
	session := Session{
		ID:              generic.SessionID(uuid.NewString()),
		WorkerID:        workerID,
		Date:            date,
		CheckInTime:     now,
		CheckInPhotoRef: capture.PhotoRef,
		CheckInLocation: copyLocation(capture.Location),
		Status:          StatusPresent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.Sessions.InsertSession(ctx, session); err != nil {
		// Lost a race with a concurrent check-in for the same key.
		if errors.Is(err, generic.ErrDuplicateSession) {
			return nil, &DuplicateSessionError{WorkerID: workerID, Date: date}
		}
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	s.invalidate(ctx, workerID, date)
	return &session, nil
}

// CheckOut closes an open session, computes hours and classifies it.
func (s *SessionService) CheckOut(ctx context.Context, sessionID generic.SessionID, capture Capture) (*Session, error) {
	if err := validateCapture(capture, "check_out"); err != nil {
		return nil, err
	}

	session, unlock, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !session.IsOpen() {
		return nil, &SessionClosedError{SessionID: session.ID, Date: session.Date, CheckOutTime: *session.CheckOutTime}
	}

	now := s.Clock.Now()
	today := generic.DateIn(now, s.Location)
	if today != session.Date {
		return nil, &CrossDayCheckoutError{
			SessionID:    session.ID,
			SessionDate:  session.Date,
			CheckoutDate: today,
		}
	}
	if !now.After(session.CheckInTime) {
		return nil, &InvalidTimeRangeError{CheckIn: session.CheckInTime, CheckOut: now}
	}

	policy, err := s.policyFor(ctx, session.Date)
	if err != nil {
		return nil, err
	}

	session.CheckOutTime = &now
	session.CheckOutPhotoRef = capture.PhotoRef
	session.CheckOutLocation = copyLocation(capture.Location)
	classify(session, *policy)
	session.UpdatedAt = now

	if err := s.Sessions.UpdateSession(ctx, *session); err != nil {
		return nil, s.mapMissing(err, sessionID)
	}

	s.invalidate(ctx, session.WorkerID, session.Date)
	return session, nil
}

// CorrectTimes overwrites the session's check-in (and optionally check-out)
// times. A stored check-out is kept when none is given, so a closed session
// never reopens. Duplicate and open-session checks are skipped.
func (s *SessionService) CorrectTimes(ctx context.Context, sessionID generic.SessionID, c Correction) (*Session, error) {
	if c.CheckIn.IsZero() {
		return nil, &ValidationError{Field: "check_in", Message: "is required"}
	}
	if c.CheckOut != nil && !c.CheckOut.After(c.CheckIn) {
		return nil, &InvalidTimeRangeError{CheckIn: c.CheckIn, CheckOut: *c.CheckOut}
	}

	session, unlock, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Without a new check-out the stored one, if any, still bounds the range.
	if c.CheckOut == nil && session.CheckOutTime != nil && !session.CheckOutTime.After(c.CheckIn) {
		return nil, &InvalidTimeRangeError{CheckIn: c.CheckIn, CheckOut: *session.CheckOutTime}
	}

	policy, err := s.policyFor(ctx, session.Date)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	session.CheckInTime = c.CheckIn
	if c.CheckOut != nil {
		out := *c.CheckOut
		session.CheckOutTime = &out
	}
	if c.Notes != nil {
		session.Notes = *c.Notes
	}
	classify(session, *policy)
	session.CorrectedAt = &now
	session.UpdatedAt = now

	if err := s.Sessions.UpdateSession(ctx, *session); err != nil {
		return nil, s.mapMissing(err, sessionID)
	}

	s.invalidate(ctx, session.WorkerID, session.Date)
	return session, nil
}

// DeleteSession removes a session. Other sessions are untouched.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID generic.SessionID) error {
	session, unlock, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.Sessions.DeleteSession(ctx, sessionID); err != nil {
		return s.mapMissing(err, sessionID)
	}
	s.invalidate(ctx, session.WorkerID, session.Date)
	return nil
}

// =============================================================================
// READ HELPERS
// =============================================================================

func (s *SessionService) GetSession(ctx context.Context, sessionID generic.SessionID) (*Session, error) {
	session, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &SessionNotFoundError{SessionID: sessionID}
	}
	return session, nil
}

func (s *SessionService) OpenSession(ctx context.Context, workerID generic.WorkerID) (*Session, error) {
	return s.Sessions.FindOpenSession(ctx, workerID)
}

func (s *SessionService) ListSessions(ctx context.Context, workerID generic.WorkerID, period generic.Period) ([]Session, error) {
	if period.End.Before(period.Start) {
		return nil, generic.ErrInvalidPeriod
	}
	return s.Sessions.ListSessions(ctx, workerID, period)
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *SessionService) policyFor(ctx context.Context, date generic.Date) (*WeekdayPolicy, error) {
	policy, err := s.Policies.GetWeekdayPolicy(ctx, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("failed to load %s policy: %w", date.Weekday(), err)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrPolicyNotFound, date.Weekday())
	}
	return policy, nil
}

func (s *SessionService) lockWorker(id generic.WorkerID) func() {
	m, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// loadLocked returns the session re-read under its worker's lock. The first
// read only discovers the worker; the caller must release the lock.
func (s *SessionService) loadLocked(ctx context.Context, sessionID generic.SessionID) (*Session, func(), error) {
	peek, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if peek == nil {
		return nil, nil, &SessionNotFoundError{SessionID: sessionID}
	}

	unlock := s.lockWorker(peek.WorkerID)
	session, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		unlock()
		return nil, nil, &SessionNotFoundError{SessionID: sessionID}
	}
	return session, unlock, nil
}

func (s *SessionService) invalidate(ctx context.Context, workerID generic.WorkerID, date generic.Date) {
	if s.Invalidator == nil {
		return
	}
	if err := s.Invalidator.InvalidateWorkerMonth(ctx, workerID, date.MonthOf()); err != nil {
		log.Printf("[Attendance] Failed to invalidate accruals for %s/%s: %v", workerID, date.MonthOf(), err)
	}
}

func (s *SessionService) mapMissing(err error, id generic.SessionID) error {
	if errors.Is(err, generic.ErrSessionNotFound) {
		return &SessionNotFoundError{SessionID: id}
	}
	return fmt.Errorf("failed to persist session: %w", err)
}

func validateCapture(c Capture, phase string) error {
	if strings.TrimSpace(c.PhotoRef) == "" {
		return &ValidationError{Field: phase + ".photo_ref", Message: "a captured photo is required"}
	}
	if c.Location == nil {
		return &ValidationError{Field: phase + ".location", Message: "a captured location is required"}
	}
	if strings.TrimSpace(c.Location.Address) == "" {
		return &ValidationError{Field: phase + ".location.address", Message: "is required"}
	}
	return nil
}

func copyLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func hoursWorked(in, out time.Time) decimal.Decimal {
	return generic.HoursBetween(in, out)
}
