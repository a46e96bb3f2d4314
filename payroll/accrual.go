/*
Package payroll converts a month of attendance into an earned salary.

PURPOSE:
  The Accrual Calculator. Given a worker's monthly salary, the number of
  days in the month and that month's attendance sessions, it produces the
  earned days, the earned salary and the variance against budget. Every
  reporting projection goes through this one function, so KPI tiles,
  charts and tables cannot disagree.

ALGORITHM:
  perDiemRate  = monthlySalary / daysInMonth          (0 when daysInMonth = 0)
  earnedDays   = sum of weight(status) over sessions
                   FullDay 1.0, Present 1.0, HalfDay 0.5, Overtime 1.5, else 0
  earnedSalary = round(earnedDays * perDiemRate)      (whole currency units)
  variance     = monthlySalary - earnedSalary         (positive = under budget)

  Team:
  percentageEarned = totalEarned / totalBudget * 100  (0 when totalBudget = 0)

EXAMPLE:
  salary 30000, 30 days -> per diem 1000
  20 FullDay + 4 HalfDay + 2 Overtime -> 20 + 2 + 3 = 25 earned days
  earned 25000, variance 5000

DETERMINISM:
  All arithmetic is decimal. Identical inputs give identical outputs, and
  the calculator is safe to call concurrently from any number of readers.

SEE ALSO:
  - engine.go: Loads inputs from storage and caches results
  - report/: Projections built on top of this package
*/
package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// EARNED-DAY WEIGHTS
// =============================================================================

var (
	weightFull     = decimal.NewFromInt(1)
	weightHalf     = decimal.NewFromFloat(0.5)
	weightOvertime = decimal.NewFromFloat(1.5)
	hundred        = decimal.NewFromInt(100)
)

// EarnedDayWeight returns how many days of pay a session with this status earns.
func EarnedDayWeight(s attendance.Status) decimal.Decimal {
	switch s {
	case attendance.StatusFullDay, attendance.StatusPresent:
		return weightFull
	case attendance.StatusHalfDay:
		return weightHalf
	case attendance.StatusOvertime:
		return weightOvertime
	default:
		return decimal.Zero
	}
}

// =============================================================================
// MONTHLY ACCRUAL
// =============================================================================

type AccrualInput struct {
	WorkerID      generic.WorkerID
	Month         generic.Month
	MonthlySalary decimal.Decimal
	DaysInMonth   int
	Sessions      []attendance.Session
}

// MonthlyAccrual is derived, never persisted.
type MonthlyAccrual struct {
	WorkerID      generic.WorkerID
	Month         generic.Month
	MonthlySalary generic.Amount
	DaysInMonth   int
	PerDiemRate   generic.Amount
	EarnedDays    generic.Amount
	EarnedSalary  generic.Amount
	Variance      generic.Amount
	HoursWorked   generic.Amount
	Sessions      int
	StatusCounts  map[attendance.Status]int
}

// ComputeAccrual is a pure, total function of its input.
func ComputeAccrual(in AccrualInput) MonthlyAccrual {
	salary := generic.NewMoney(in.MonthlySalary)

	perDiem := generic.ZeroAmount(generic.UnitCurrency)
	if in.DaysInMonth > 0 {
		perDiem = salary.Div(decimal.NewFromInt(int64(in.DaysInMonth)))
	}

	earnedDays := generic.ZeroAmount(generic.UnitDays)
	hours := generic.ZeroAmount(generic.UnitHours)
	counts := make(map[attendance.Status]int)
	for _, s := range in.Sessions {
		earnedDays.Value = earnedDays.Value.Add(EarnedDayWeight(s.Status))
		hours.Value = hours.Value.Add(s.Hours())
		counts[s.Status]++
	}

	// Multiply before dividing so half-unit results are not truncated below .5.
	earned := generic.ZeroAmount(generic.UnitCurrency)
	if in.DaysInMonth > 0 {
		earned = generic.NewMoney(earnedDays.Value.Mul(salary.Value).Div(decimal.NewFromInt(int64(in.DaysInMonth)))).Round(0)
	}

	return MonthlyAccrual{
		WorkerID:      in.WorkerID,
		Month:         in.Month,
		MonthlySalary: salary,
		DaysInMonth:   in.DaysInMonth,
		PerDiemRate:   perDiem,
		EarnedDays:    earnedDays,
		EarnedSalary:  earned,
		Variance:      salary.Sub(earned),
		HoursWorked:   hours,
		Sessions:      len(in.Sessions),
		StatusCounts:  counts,
	}
}

// =============================================================================
// TEAM SUMMARY
// =============================================================================

type TeamSummary struct {
	Month            generic.Month
	Workers          int
	TotalEarned      generic.Amount
	TotalBudget      generic.Amount
	TotalVariance    generic.Amount
	EarnedDays       generic.Amount
	PercentageEarned decimal.Decimal // 2 decimal places
}

// Summarize aggregates per-worker accruals. An empty team (or one whose
// budget is zero) reports 0% rather than dividing by zero.
func Summarize(month generic.Month, accruals []MonthlyAccrual) TeamSummary {
	sum := TeamSummary{
		Month:         month,
		Workers:       len(accruals),
		TotalEarned:   generic.ZeroAmount(generic.UnitCurrency),
		TotalBudget:   generic.ZeroAmount(generic.UnitCurrency),
		TotalVariance: generic.ZeroAmount(generic.UnitCurrency),
		EarnedDays:    generic.ZeroAmount(generic.UnitDays),
	}
	for _, a := range accruals {
		sum.TotalEarned = sum.TotalEarned.Add(a.EarnedSalary)
		sum.TotalBudget = sum.TotalBudget.Add(a.MonthlySalary)
		sum.TotalVariance = sum.TotalVariance.Add(a.Variance)
		sum.EarnedDays = sum.EarnedDays.Add(a.EarnedDays)
	}
	sum.PercentageEarned = Percentage(sum.TotalEarned.Value, sum.TotalBudget.Value)
	return sum
}

// Percentage returns part/whole*100 rounded to two places, 0 when whole is 0.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
