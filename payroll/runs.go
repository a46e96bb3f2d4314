package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// PAYROLL RUNS - Month close audit trail
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// PayrollRun records the team figures at the moment a month was closed.
// Accruals themselves are never stored; a run is a snapshot for audit.
type PayrollRun struct {
	ID          generic.RunID
	Month       generic.Month
	Status      RunStatus
	Workers     int
	TotalEarned decimal.Decimal
	TotalBudget decimal.Decimal
	Percentage  decimal.Decimal
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

type RunStore interface {
	// SavePayrollRun inserts or replaces a run by ID. At most one run per
	// month may exist.
	SavePayrollRun(ctx context.Context, r PayrollRun) error
	GetPayrollRun(ctx context.Context, month generic.Month) (*PayrollRun, error)
	ListPayrollRuns(ctx context.Context) ([]PayrollRun, error)
}

// CloseMonth computes the team accruals for month and records a run.
// Closing a month that already has a completed run returns that run.
// A failed run is retried in place.
func (e *Engine) CloseMonth(ctx context.Context, runs RunStore, month generic.Month, now time.Time) (*PayrollRun, error) {
	existing, err := runs.GetPayrollRun(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load payroll run: %w", err)
	}
	if existing != nil && existing.Status == RunCompleted {
		return existing, nil
	}

	run := PayrollRun{
		ID:        generic.RunID(uuid.NewString()),
		Month:     month,
		Status:    RunRunning,
		StartedAt: now,
	}
	if existing != nil {
		run.ID = existing.ID
	}
	if err := runs.SavePayrollRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run record: %w", err)
	}

	_, summary, err := e.TeamAccruals(ctx, month)
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		if serr := runs.SavePayrollRun(ctx, run); serr != nil {
			return nil, fmt.Errorf("failed to record failed run: %v (original error: %w)", serr, err)
		}
		return &run, err
	}

	completed := now
	run.Status = RunCompleted
	run.Workers = summary.Workers
	run.TotalEarned = summary.TotalEarned.Value
	run.TotalBudget = summary.TotalBudget.Value
	run.Percentage = summary.PercentageEarned
	run.CompletedAt = &completed
	if err := runs.SavePayrollRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update run record: %w", err)
	}
	return &run, nil
}
