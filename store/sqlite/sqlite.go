/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements attendance.Store (sessions, weekday policies, workers) and
  payroll.RunStore using SQLite. The PostgreSQL store in store/postgres
  follows the same schema with dialect differences only.

INTERFACES IMPLEMENTED:
  attendance.SessionStore: Attendance sessions
  attendance.PolicyStore:  Weekday policies and the schedule version
  attendance.WorkerStore:  Workers and monthly salaries
  payroll.RunStore:        Month close audit trail

KEY TABLES:
  sessions:         One row per (worker, date)
  weekday_policies: Seven rows, seeded with the default schedule
  policy_version:   Single-row counter bumped on every policy save
  workers:          Worker records
  payroll_runs:     One row per closed month

UNIQUENESS:
  idx_sessions_worker_date is the authoritative one-session-per-day rule.
  Two concurrent check-ins for the same key both pass the service's
  pre-check; the loser gets SQLITE_CONSTRAINT_UNIQUE, which is reported as
  generic.ErrDuplicateSession.

ERROR MAPPING:
  SQLITE_CONSTRAINT_UNIQUE / PRIMARYKEY -> generic.ErrDuplicateSession
  SQLITE_BUSY / SQLITE_LOCKED           -> generic.ErrStoreUnavailable

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer. ":memory:" databases are pinned to one connection,
  since every new connection would otherwise see an empty database.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - attendance/store.go: Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.HasPrefix(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.seed(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", generic.ErrStoreUnavailable, err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Attendance sessions
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in_time TEXT NOT NULL,
		check_in_photo_ref TEXT NOT NULL,
		check_in_location_json TEXT,
		check_out_time TEXT,
		check_out_photo_ref TEXT,
		check_out_location_json TEXT,
		status TEXT NOT NULL,
		actual_working_hours TEXT,
		notes TEXT,
		corrected_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: At most one session per worker per calendar date
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_worker_date
		ON sessions(worker_id, date);

	-- Open-session lookups on check-in
	CREATE INDEX IF NOT EXISTS idx_sessions_open
		ON sessions(worker_id) WHERE check_out_time IS NULL;

	-- Period scans for accruals and reports
	CREATE INDEX IF NOT EXISTS idx_sessions_date
		ON sessions(date);

	-- Working-hours policy, one row per weekday (0 = Sunday)
	CREATE TABLE IF NOT EXISTS weekday_policies (
		weekday INTEGER PRIMARY KEY CHECK (weekday BETWEEN 0 AND 6),
		is_working_day BOOLEAN NOT NULL,
		nominal_start TEXT NOT NULL,
		nominal_end TEXT NOT NULL,
		full_day_hours TEXT NOT NULL,
		half_day_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		updated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS policy_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	);

	-- Workers
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		monthly_salary TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Payroll runs (month close)
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		month TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		workers INTEGER DEFAULT 0,
		total_earned TEXT NOT NULL DEFAULT '0',
		total_budget TEXT NOT NULL DEFAULT '0',
		percentage TEXT NOT NULL DEFAULT '0',
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// seed installs the default schedule on a fresh database.
func (s *Store) seed(ctx context.Context) error {
	def := attendance.DefaultSchedule()
	for _, p := range def.Policies {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO weekday_policies
			(weekday, is_working_day, nominal_start, nominal_end, full_day_hours, half_day_hours, overtime_hours)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, int(p.Weekday), p.IsWorkingDay, p.NominalStart.String(), p.NominalEnd.String(),
			p.FullDayHours.String(), p.HalfDayHours.String(), p.OvertimeHours.String())
		if err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO policy_version (id, version) VALUES (1, ?)", def.Version)
	return err
}

// Reset wipes sessions, workers and runs and restores the default schedule.
// The policy version keeps counting up so cached accruals never survive a
// reset.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"sessions", "workers", "payroll_runs", "weekday_policies"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return mapError(err)
		}
	}
	if err := s.seed(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "UPDATE policy_version SET version = version + 1 WHERE id = 1")
	return mapError(err)
}

// =============================================================================
// SESSION STORE (attendance.SessionStore interface)
// =============================================================================

const sessionColumns = `
	id, worker_id, date, check_in_time, check_in_photo_ref, check_in_location_json,
	check_out_time, check_out_photo_ref, check_out_location_json, status,
	actual_working_hours, notes, corrected_at, created_at, updated_at`

// FindSession returns the session for (worker, date) or nil.
func (s *Store) FindSession(ctx context.Context, workerID generic.WorkerID, date generic.Date) (*attendance.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySession(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE worker_id = ? AND date = ?",
		workerID, date.String())
}

// FindOpenSession returns the worker's earliest session without check-out.
func (s *Store) FindOpenSession(ctx context.Context, workerID generic.WorkerID) (*attendance.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySession(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE worker_id = ? AND check_out_time IS NULL ORDER BY date ASC LIMIT 1",
		workerID)
}

func (s *Store) GetSession(ctx context.Context, id generic.SessionID) (*attendance.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySession(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
}

// InsertSession adds a session. A (worker, date) clash is reported as
// generic.ErrDuplicateSession.
func (s *Store) InsertSession(ctx context.Context, sess attendance.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := toRow(sess)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, row.args()...); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, sess attendance.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := toRow(sess)
	if err != nil {
		return err
	}

	query := `
		UPDATE sessions SET
			worker_id = ?, date = ?, check_in_time = ?, check_in_photo_ref = ?,
			check_in_location_json = ?, check_out_time = ?, check_out_photo_ref = ?,
			check_out_location_json = ?, status = ?, actual_working_hours = ?,
			notes = ?, corrected_at = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`
	args := append(row.args()[1:], row.id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrSessionNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id generic.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrSessionNotFound
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context, workerID generic.WorkerID, period generic.Period) ([]attendance.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE worker_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, workerID, period.Start.String(), period.End.String())
}

func (s *Store) ListSessionsInPeriod(ctx context.Context, period generic.Period) ([]attendance.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, worker_id ASC
	`, period.Start.String(), period.End.String())
}

func (s *Store) querySession(ctx context.Context, query string, args ...any) (*attendance.Session, error) {
	sessions, err := s.querySessions(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]attendance.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", mapError(err))
	}
	defer rows.Close()

	var sessions []attendance.Session
	for rows.Next() {
		var r sessionRow
		if err := rows.Scan(
			&r.id, &r.workerID, &r.date, &r.checkIn, &r.checkInPhoto, &r.checkInLoc,
			&r.checkOut, &r.checkOutPhoto, &r.checkOutLoc, &r.status,
			&r.hours, &r.notes, &r.correctedAt, &r.createdAt, &r.updatedAt,
		); err != nil {
			return nil, err
		}
		sess, err := r.toSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// sessionRow is the column-level shape of a session.
type sessionRow struct {
	id            string
	workerID      string
	date          string
	checkIn       string
	checkInPhoto  string
	checkInLoc    sql.NullString
	checkOut      sql.NullString
	checkOutPhoto sql.NullString
	checkOutLoc   sql.NullString
	status        string
	hours         sql.NullString
	notes         sql.NullString
	correctedAt   sql.NullString
	createdAt     string
	updatedAt     string
}

func (r sessionRow) args() []any {
	return []any{
		r.id, r.workerID, r.date, r.checkIn, r.checkInPhoto, r.checkInLoc,
		r.checkOut, r.checkOutPhoto, r.checkOutLoc, r.status,
		r.hours, r.notes, r.correctedAt, r.createdAt, r.updatedAt,
	}
}

func toRow(s attendance.Session) (sessionRow, error) {
	inLoc, err := locationJSON(s.CheckInLocation)
	if err != nil {
		return sessionRow{}, err
	}
	outLoc, err := locationJSON(s.CheckOutLocation)
	if err != nil {
		return sessionRow{}, err
	}
	r := sessionRow{
		id:            string(s.ID),
		workerID:      string(s.WorkerID),
		date:          s.Date.String(),
		checkIn:       formatTime(s.CheckInTime),
		checkInPhoto:  s.CheckInPhotoRef,
		checkInLoc:    inLoc,
		checkOutPhoto: nullString(s.CheckOutPhotoRef),
		checkOutLoc:   outLoc,
		status:        string(s.Status),
		notes:         nullString(s.Notes),
		createdAt:     formatTime(s.CreatedAt),
		updatedAt:     formatTime(s.UpdatedAt),
	}
	if s.CheckOutTime != nil {
		r.checkOut = nullString(formatTime(*s.CheckOutTime))
	}
	if s.ActualWorkingHours != nil {
		r.hours = nullString(s.ActualWorkingHours.String())
	}
	if s.CorrectedAt != nil {
		r.correctedAt = nullString(formatTime(*s.CorrectedAt))
	}
	return r, nil
}

func (r sessionRow) toSession() (attendance.Session, error) {
	date, err := generic.ParseDate(r.date)
	if err != nil {
		return attendance.Session{}, fmt.Errorf("session %s: %w", r.id, err)
	}
	fp := generic.FieldParser{Record: "session " + r.id}
	s := attendance.Session{
		ID:               generic.SessionID(r.id),
		WorkerID:         generic.WorkerID(r.workerID),
		Date:             date,
		CheckInTime:      fp.Time("check_in_time", r.checkIn),
		CheckInPhotoRef:  r.checkInPhoto,
		CheckOutPhotoRef: r.checkOutPhoto.String,
		Status:           attendance.Status(r.status),
		Notes:            r.notes.String,
		CreatedAt:        fp.Time("created_at", r.createdAt),
		UpdatedAt:        fp.Time("updated_at", r.updatedAt),
	}
	if s.CheckInLocation, err = parseLocation(r.checkInLoc); err != nil {
		return attendance.Session{}, err
	}
	if s.CheckOutLocation, err = parseLocation(r.checkOutLoc); err != nil {
		return attendance.Session{}, err
	}
	if r.checkOut.Valid {
		t := fp.Time("check_out_time", r.checkOut.String)
		s.CheckOutTime = &t
	}
	if r.hours.Valid {
		h := fp.Decimal("actual_working_hours", r.hours.String)
		s.ActualWorkingHours = &h
	}
	if r.correctedAt.Valid {
		t := fp.Time("corrected_at", r.correctedAt.String)
		s.CorrectedAt = &t
	}
	if fp.Err != nil {
		return attendance.Session{}, fp.Err
	}
	return s, nil
}

// =============================================================================
// POLICY STORE (attendance.PolicyStore interface)
// =============================================================================

func (s *Store) GetWeekdayPolicy(ctx context.Context, wd time.Weekday) (*attendance.WeekdayPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies, err := s.queryPolicies(ctx, "WHERE weekday = ?", int(wd))
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, nil
	}
	return &policies[0], nil
}

func (s *Store) Schedule(ctx context.Context) (attendance.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies, err := s.queryPolicies(ctx, "")
	if err != nil {
		return attendance.Schedule{}, err
	}
	version, err := s.version(ctx)
	if err != nil {
		return attendance.Schedule{}, err
	}
	return attendance.NewSchedule(policies, version), nil
}

func (s *Store) PolicyVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version(ctx)
}

// SaveWeekdayPolicy replaces one weekday and bumps the version atomically.
func (s *Store) SaveWeekdayPolicy(ctx context.Context, p attendance.WeekdayPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO weekday_policies
		(weekday, is_working_day, nominal_start, nominal_end, full_day_hours, half_day_hours, overtime_hours, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(weekday) DO UPDATE SET
			is_working_day = excluded.is_working_day,
			nominal_start = excluded.nominal_start,
			nominal_end = excluded.nominal_end,
			full_day_hours = excluded.full_day_hours,
			half_day_hours = excluded.half_day_hours,
			overtime_hours = excluded.overtime_hours,
			updated_at = excluded.updated_at
	`, int(p.Weekday), p.IsWorkingDay, p.NominalStart.String(), p.NominalEnd.String(),
		p.FullDayHours.String(), p.HalfDayHours.String(), p.OvertimeHours.String(),
		nullTime(p.UpdatedAt))
	if err != nil {
		return mapError(err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE policy_version SET version = version + 1 WHERE id = 1"); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit())
}

func (s *Store) version(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM policy_version WHERE id = 1").Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err)
	}
	return v, nil
}

func (s *Store) queryPolicies(ctx context.Context, where string, args ...any) ([]attendance.WeekdayPolicy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT weekday, is_working_day, nominal_start, nominal_end,
		       full_day_hours, half_day_hours, overtime_hours, updated_at
		FROM weekday_policies `+where+` ORDER BY weekday`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", mapError(err))
	}
	defer rows.Close()

	var policies []attendance.WeekdayPolicy
	for rows.Next() {
		var (
			wd                   int
			p                    attendance.WeekdayPolicy
			start, end           string
			full, half, overtime string
			updatedAt            sql.NullString
		)
		if err := rows.Scan(&wd, &p.IsWorkingDay, &start, &end, &full, &half, &overtime, &updatedAt); err != nil {
			return nil, err
		}
		p.Weekday = time.Weekday(wd)
		if p.NominalStart, err = attendance.ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if p.NominalEnd, err = attendance.ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		fp := generic.FieldParser{Record: fmt.Sprintf("weekday policy %d", wd)}
		p.FullDayHours = fp.Decimal("full_day_hours", full)
		p.HalfDayHours = fp.Decimal("half_day_hours", half)
		p.OvertimeHours = fp.Decimal("overtime_hours", overtime)
		if updatedAt.Valid {
			p.UpdatedAt = fp.Time("updated_at", updatedAt.String)
		}
		if fp.Err != nil {
			return nil, fp.Err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// =============================================================================
// WORKER STORE (attendance.WorkerStore interface)
// =============================================================================

// SaveWorker inserts or updates a worker. CreatedAt is kept on update.
func (s *Store) SaveWorker(ctx context.Context, w attendance.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workers (id, name, email, monthly_salary, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			monthly_salary = excluded.monthly_salary
	`
	_, err := s.db.ExecContext(ctx, query,
		w.ID, w.Name, w.Email, w.MonthlySalary.String(), formatTime(createdAt))
	return mapError(err)
}

func (s *Store) GetWorker(ctx context.Context, id generic.WorkerID) (*attendance.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers, err := s.queryWorkers(ctx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(workers) == 0 {
		return nil, nil
	}
	return &workers[0], nil
}

// ListWorkers returns all workers ordered by ID.
func (s *Store) ListWorkers(ctx context.Context) ([]attendance.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryWorkers(ctx, "")
}

func (s *Store) queryWorkers(ctx context.Context, where string, args ...any) ([]attendance.Worker, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, monthly_salary, created_at FROM workers "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var workers []attendance.Worker
	for rows.Next() {
		var w attendance.Worker
		var email sql.NullString
		var salary, createdAt string
		if err := rows.Scan(&w.ID, &w.Name, &email, &salary, &createdAt); err != nil {
			return nil, err
		}
		w.Email = email.String
		fp := generic.FieldParser{Record: "worker " + string(w.ID)}
		w.MonthlySalary = fp.Decimal("monthly_salary", salary)
		w.CreatedAt = fp.Time("created_at", createdAt)
		if fp.Err != nil {
			return nil, fp.Err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// =============================================================================
// PAYROLL RUNS (payroll.RunStore interface)
// =============================================================================

// SavePayrollRun upserts by month.
func (s *Store) SavePayrollRun(ctx context.Context, r payroll.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payroll_runs (id, month, status, workers, total_earned, total_budget,
			percentage, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET
			status = excluded.status,
			workers = excluded.workers,
			total_earned = excluded.total_earned,
			total_budget = excluded.total_budget,
			percentage = excluded.percentage,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if r.CompletedAt != nil {
		c := formatTime(*r.CompletedAt)
		completedAt = &c
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Month.String(), r.Status, r.Workers,
		r.TotalEarned.String(), r.TotalBudget.String(), r.Percentage.String(),
		nullString(r.Error), formatTime(r.StartedAt), completedAt,
	)
	return mapError(err)
}

func (s *Store) GetPayrollRun(ctx context.Context, month generic.Month) (*payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs, err := s.queryRuns(ctx, "WHERE month = ?", month.String())
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (s *Store) ListPayrollRuns(ctx context.Context) ([]payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryRuns(ctx, "")
}

func (s *Store) queryRuns(ctx context.Context, where string, args ...any) ([]payroll.PayrollRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, month, status, workers, total_earned, total_budget, percentage,
		       error, started_at, completed_at
		FROM payroll_runs `+where+` ORDER BY month`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		var r payroll.PayrollRun
		var month, earned, budget, pct, startedAt string
		var errText, completedAt sql.NullString
		if err := rows.Scan(&r.ID, &month, &r.Status, &r.Workers, &earned, &budget, &pct,
			&errText, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		if r.Month, err = generic.ParseMonth(month); err != nil {
			return nil, err
		}
		fp := generic.FieldParser{Record: "payroll run " + month}
		r.TotalEarned = fp.Decimal("total_earned", earned)
		r.TotalBudget = fp.Decimal("total_budget", budget)
		r.Percentage = fp.Decimal("percentage", pct)
		r.Error = errText.String
		r.StartedAt = fp.Time("started_at", startedAt)
		if completedAt.Valid {
			t := fp.Time("completed_at", completedAt.String)
			r.CompletedAt = &t
		}
		if fp.Err != nil {
			return nil, fp.Err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Helper functions

// mapError translates driver errors into the generic sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintUnique, se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return generic.ErrDuplicateSession
		case se.Code == sqlite3.ErrBusy, se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", generic.ErrStoreUnavailable, err)
		}
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return nullString(formatTime(t))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func locationJSON(l *attendance.Location) (sql.NullString, error) {
	if l == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode location: %w", err)
	}
	return nullString(string(b)), nil
}

func parseLocation(ns sql.NullString) (*attendance.Location, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var l attendance.Location
	if err := json.Unmarshal([]byte(ns.String), &l); err != nil {
		return nil, fmt.Errorf("failed to decode location: %w", err)
	}
	return &l, nil
}

var (
	_ attendance.Store = (*Store)(nil)
	_ payroll.RunStore = (*Store)(nil)
)
