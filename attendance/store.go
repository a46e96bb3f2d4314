/*
store.go - Persistence interfaces for sessions, policies and workers

PURPOSE:
  Defines the contract between the engine and the database. The engine
  never talks SQL; it talks to these interfaces. Implementations live in
  attendance/store (memory), store/sqlite and store/postgres.

UNIQUENESS CONTRACT:
  InsertSession MUST enforce at most one session per (worker, date). A
  violation is reported as generic.ErrDuplicateSession, regardless of
  whether it was caught by a pre-check or by the database constraint.
  This is what serializes concurrent check-ins for the same key.

NOT FOUND:
  Lookups by key return (nil, nil) when nothing matches, the same way the
  store layer of the rest of this codebase does. Updates and deletes of a
  missing session return generic.ErrSessionNotFound.

TRANSIENT FAILURES:
  Busy/locked databases and lost connections are wrapped in
  generic.ErrStoreUnavailable so callers can tell them apart from rule
  violations.

SEE ALSO:
  - session.go: The state machine that drives these calls
  - store/sqlite/sqlite.go: Production implementation
*/
package attendance

import (
	"context"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// SESSION STORE
// =============================================================================

type SessionStore interface {
	// FindSession returns the session for (worker, date) or nil.
	FindSession(ctx context.Context, workerID generic.WorkerID, date generic.Date) (*Session, error)

	// FindOpenSession returns the worker's session with no check-out, or nil.
	// When several exist (only possible through administrative correction)
	// the earliest is returned.
	FindOpenSession(ctx context.Context, workerID generic.WorkerID) (*Session, error)

	GetSession(ctx context.Context, id generic.SessionID) (*Session, error)

	InsertSession(ctx context.Context, s Session) error
	UpdateSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context, id generic.SessionID) error

	// ListSessions returns the worker's sessions with Date in period, ordered by date.
	ListSessions(ctx context.Context, workerID generic.WorkerID, period generic.Period) ([]Session, error)

	// ListSessionsInPeriod returns every worker's sessions with Date in period.
	ListSessionsInPeriod(ctx context.Context, period generic.Period) ([]Session, error)
}

// =============================================================================
// POLICY STORE
// =============================================================================

type PolicyReader interface {
	GetWeekdayPolicy(ctx context.Context, wd time.Weekday) (*WeekdayPolicy, error)
	Schedule(ctx context.Context) (Schedule, error)
	PolicyVersion(ctx context.Context) (int, error)
}

type PolicyStore interface {
	PolicyReader

	// SaveWeekdayPolicy replaces the policy for p.Weekday and bumps the
	// schedule version.
	SaveWeekdayPolicy(ctx context.Context, p WeekdayPolicy) error
}

// =============================================================================
// WORKER STORE
// =============================================================================

type WorkerReader interface {
	GetWorker(ctx context.Context, id generic.WorkerID) (*Worker, error)
	ListWorkers(ctx context.Context) ([]Worker, error)
}

type WorkerStore interface {
	WorkerReader
	SaveWorker(ctx context.Context, w Worker) error
}

// Store is everything the engine needs from persistence.
type Store interface {
	SessionStore
	PolicyStore
	WorkerStore
}
