/*
Package report builds the dashboard projections: KPI tiles, the per-worker
chart, the monthly trend, the payroll table and the attendance summary.

CONSISTENCY:
  Every money figure here comes from payroll.Engine, which funnels through
  payroll.ComputeAccrual. The projector only sums and reshapes, so for the
  same month:

    KPI earned == sum(chart bars) == sum(table rows)

ABSENCES:
  Absent sessions are never written by the check-in flow. Absences are
  derived: working days in the period times workers, minus sessions whose
  status is not Absent, clamped at zero.
*/
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

type Projector struct {
	Engine   *payroll.Engine
	Sessions attendance.SessionStore
	Workers  attendance.WorkerReader
	Policies attendance.PolicyReader

	// Clock and Location decide which date the "today" tiles refer to.
	// With no clock the tiles are left empty.
	Clock    generic.Clock
	Location *time.Location
}

func NewProjector(engine *payroll.Engine, store attendance.Store, clock generic.Clock, loc *time.Location) *Projector {
	if loc == nil {
		loc = time.UTC
	}
	return &Projector{
		Engine:   engine,
		Sessions: store,
		Workers:  store,
		Policies: store,
		Clock:    clock,
		Location: loc,
	}
}

// =============================================================================
// KPI TILES
// =============================================================================

type KPITiles struct {
	Month            generic.Month   `json:"month"`
	Workers          int             `json:"workers"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalBudget      decimal.Decimal `json:"total_budget"`
	TotalVariance    decimal.Decimal `json:"total_variance"`
	PercentageEarned decimal.Decimal `json:"percentage_earned"`
	EarnedDays       decimal.Decimal `json:"earned_days"`
	Today            generic.Date    `json:"today"`
	PresentToday     int             `json:"present_today"`
	OpenToday        int             `json:"open_today"`
	AbsentToday      int             `json:"absent_today"`
}

func (p *Projector) KPITiles(ctx context.Context, month generic.Month) (*KPITiles, error) {
	_, summary, err := p.Engine.TeamAccruals(ctx, month)
	if err != nil {
		return nil, err
	}

	tiles := &KPITiles{
		Month:            month,
		Workers:          summary.Workers,
		TotalEarned:      summary.TotalEarned.Value,
		TotalBudget:      summary.TotalBudget.Value,
		TotalVariance:    summary.TotalVariance.Value,
		PercentageEarned: summary.PercentageEarned,
		EarnedDays:       summary.EarnedDays.Value,
	}

	if p.Clock == nil {
		return tiles, nil
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	today := generic.DateIn(p.Clock.Now(), loc)
	tiles.Today = today

	sessions, err := p.Sessions.ListSessionsInPeriod(ctx, generic.Period{Start: today, End: today})
	if err != nil {
		return nil, fmt.Errorf("failed to load today's sessions: %w", err)
	}
	for _, s := range sessions {
		if s.Status == attendance.StatusAbsent {
			continue
		}
		tiles.PresentToday++
		if s.IsOpen() {
			tiles.OpenToday++
		}
	}

	policy, err := p.Policies.GetWeekdayPolicy(ctx, today.Weekday())
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	if policy != nil && policy.IsWorkingDay {
		tiles.AbsentToday = clampZero(summary.Workers - tiles.PresentToday)
	}
	return tiles, nil
}

// =============================================================================
// WORKER CHART
// =============================================================================

type ChartBar struct {
	WorkerID   generic.WorkerID `json:"worker_id"`
	Name       string           `json:"name"`
	Earned     decimal.Decimal  `json:"earned"`
	Budget     decimal.Decimal  `json:"budget"`
	Percentage decimal.Decimal  `json:"percentage"`
}

type WorkerChart struct {
	Month generic.Month `json:"month"`
	Bars  []ChartBar    `json:"bars"`
}

func (p *Projector) WorkerChart(ctx context.Context, month generic.Month) (*WorkerChart, error) {
	accruals, _, err := p.Engine.TeamAccruals(ctx, month)
	if err != nil {
		return nil, err
	}
	names, err := p.workerNames(ctx)
	if err != nil {
		return nil, err
	}

	chart := &WorkerChart{Month: month, Bars: make([]ChartBar, 0, len(accruals))}
	for _, a := range accruals {
		chart.Bars = append(chart.Bars, ChartBar{
			WorkerID:   a.WorkerID,
			Name:       names[a.WorkerID],
			Earned:     a.EarnedSalary.Value,
			Budget:     a.MonthlySalary.Value,
			Percentage: payroll.Percentage(a.EarnedSalary.Value, a.MonthlySalary.Value),
		})
	}
	return chart, nil
}

// =============================================================================
// TREND
// =============================================================================

type TrendPoint struct {
	Month            generic.Month   `json:"month"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalBudget      decimal.Decimal `json:"total_budget"`
	PercentageEarned decimal.Decimal `json:"percentage_earned"`
}

// Trend returns n consecutive months ending with last, oldest first.
func (p *Projector) Trend(ctx context.Context, last generic.Month, n int) ([]TrendPoint, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: months must be positive", generic.ErrValidation)
	}
	points := make([]TrendPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		m := last.AddMonths(-i)
		_, summary, err := p.Engine.TeamAccruals(ctx, m)
		if err != nil {
			return nil, err
		}
		points = append(points, TrendPoint{
			Month:            m,
			TotalEarned:      summary.TotalEarned.Value,
			TotalBudget:      summary.TotalBudget.Value,
			PercentageEarned: summary.PercentageEarned,
		})
	}
	return points, nil
}

// =============================================================================
// PAYROLL TABLE
// =============================================================================

type TableRow struct {
	WorkerID      generic.WorkerID          `json:"worker_id"`
	Name          string                    `json:"name"`
	MonthlySalary decimal.Decimal           `json:"monthly_salary"`
	PerDiemRate   decimal.Decimal           `json:"per_diem_rate"`
	EarnedDays    decimal.Decimal           `json:"earned_days"`
	HoursWorked   decimal.Decimal           `json:"hours_worked"`
	EarnedSalary  decimal.Decimal           `json:"earned_salary"`
	Variance      decimal.Decimal           `json:"variance"`
	StatusCounts  map[attendance.Status]int `json:"status_counts"`
}

type PayrollTable struct {
	Month   generic.Month       `json:"month"`
	Rows    []TableRow          `json:"rows"`
	Summary payroll.TeamSummary `json:"-"`
}

func (p *Projector) PayrollTable(ctx context.Context, month generic.Month) (*PayrollTable, error) {
	accruals, summary, err := p.Engine.TeamAccruals(ctx, month)
	if err != nil {
		return nil, err
	}
	names, err := p.workerNames(ctx)
	if err != nil {
		return nil, err
	}

	table := &PayrollTable{Month: month, Rows: make([]TableRow, 0, len(accruals)), Summary: summary}
	for _, a := range accruals {
		table.Rows = append(table.Rows, TableRow{
			WorkerID:      a.WorkerID,
			Name:          names[a.WorkerID],
			MonthlySalary: a.MonthlySalary.Value,
			PerDiemRate:   a.PerDiemRate.Value.Round(2),
			EarnedDays:    a.EarnedDays.Value,
			HoursWorked:   a.HoursWorked.Value,
			EarnedSalary:  a.EarnedSalary.Value,
			Variance:      a.Variance.Value,
			StatusCounts:  a.StatusCounts,
		})
	}
	return table, nil
}

// =============================================================================
// ATTENDANCE SUMMARY
// =============================================================================

type WorkerAttendance struct {
	WorkerID generic.WorkerID          `json:"worker_id"`
	Counts   map[attendance.Status]int `json:"counts"`
	Absent   int                       `json:"absent"`
}

type AttendanceSummary struct {
	Period      generic.Period            `json:"-"`
	From        generic.Date              `json:"from"`
	To          generic.Date              `json:"to"`
	WorkingDays int                       `json:"working_days"`
	Workers     int                       `json:"workers"`
	Counts      map[attendance.Status]int `json:"counts"`
	Absent      int                       `json:"absent"`
	PerWorker   []WorkerAttendance        `json:"per_worker"`
}

func (p *Projector) AttendanceSummary(ctx context.Context, period generic.Period) (*AttendanceSummary, error) {
	if period.End.Before(period.Start) {
		return nil, generic.ErrInvalidPeriod
	}
	schedule, err := p.Policies.Schedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	workers, err := p.Workers.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	sessions, err := p.Sessions.ListSessionsInPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	workingDays := schedule.WorkingDaysIn(period)
	summary := &AttendanceSummary{
		Period:      period,
		From:        period.Start,
		To:          period.End,
		WorkingDays: workingDays,
		Workers:     len(workers),
		Counts:      make(map[attendance.Status]int),
	}

	perWorker := make(map[generic.WorkerID]*WorkerAttendance, len(workers))
	for _, w := range workers {
		perWorker[w.ID] = &WorkerAttendance{WorkerID: w.ID, Counts: make(map[attendance.Status]int)}
	}

	attended := 0
	for _, s := range sessions {
		summary.Counts[s.Status]++
		if s.Status != attendance.StatusAbsent {
			attended++
		}
		if wa, ok := perWorker[s.WorkerID]; ok {
			wa.Counts[s.Status]++
		}
	}
	summary.Absent = clampZero(workingDays*len(workers) - attended)

	for _, w := range workers {
		wa := perWorker[w.ID]
		present := 0
		for st, n := range wa.Counts {
			if st != attendance.StatusAbsent {
				present += n
			}
		}
		wa.Absent = clampZero(workingDays - present)
		summary.PerWorker = append(summary.PerWorker, *wa)
	}
	return summary, nil
}

func (p *Projector) workerNames(ctx context.Context) (map[generic.WorkerID]string, error) {
	workers, err := p.Workers.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	names := make(map[generic.WorkerID]string, len(workers))
	for _, w := range workers {
		names[w.ID] = w.Name
	}
	return names, nil
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
