package payroll_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

func sessionsWith(counts map[attendance.Status]int) []attendance.Session {
	var out []attendance.Session
	day := 1
	for _, st := range attendance.AllStatuses {
		for i := 0; i < counts[st]; i++ {
			out = append(out, attendance.Session{
				WorkerID: "w1",
				Date:     generic.NewDate(2024, time.April, day),
				Status:   st,
			})
			day++
		}
	}
	return out
}

func TestComputeAccrual_WorkedExample(t *testing.T) {
	// GIVEN: 30000 salary, 30-day month, 20 full + 4 half + 2 overtime
	in := payroll.AccrualInput{
		WorkerID:      "w1",
		Month:         generic.NewMonth(2024, time.April),
		MonthlySalary: decimal.NewFromInt(30000),
		DaysInMonth:   30,
		Sessions: sessionsWith(map[attendance.Status]int{
			attendance.StatusFullDay:  20,
			attendance.StatusHalfDay:  4,
			attendance.StatusOvertime: 2,
		}),
	}

	// WHEN
	a := payroll.ComputeAccrual(in)

	// THEN: 1000/day, 25 earned days, 25000 earned, 5000 under budget
	assert.Equal(t, "1000", a.PerDiemRate.Value.String())
	assert.Equal(t, "25", a.EarnedDays.Value.String())
	assert.Equal(t, "25000", a.EarnedSalary.Value.String())
	assert.Equal(t, "5000", a.Variance.Value.String())
	assert.Equal(t, 26, a.Sessions)
	assert.Equal(t, 4, a.StatusCounts[attendance.StatusHalfDay])
}

func TestComputeAccrual_IsDeterministic(t *testing.T) {
	in := payroll.AccrualInput{
		MonthlySalary: decimal.NewFromInt(3100),
		DaysInMonth:   31,
		Sessions:      sessionsWith(map[attendance.Status]int{attendance.StatusFullDay: 7, attendance.StatusPresent: 2}),
	}
	a, b := payroll.ComputeAccrual(in), payroll.ComputeAccrual(in)
	assert.True(t, a.EarnedSalary.Equal(b.EarnedSalary))
	assert.Equal(t, "900", a.EarnedSalary.Value.String())
}

func TestComputeAccrual_Weights(t *testing.T) {
	tests := []struct {
		status attendance.Status
		weight string
	}{
		{attendance.StatusFullDay, "1"},
		{attendance.StatusPresent, "1"},
		{attendance.StatusHalfDay, "0.5"},
		{attendance.StatusOvertime, "1.5"},
		{attendance.StatusAbsent, "0"},
		{attendance.Status("unknown"), "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.weight, payroll.EarnedDayWeight(tt.status).String())
		})
	}
}

func TestComputeAccrual_RoundsToWholeUnits(t *testing.T) {
	// 1000 / 31 days * 1 day = 32.258... -> 32
	a := payroll.ComputeAccrual(payroll.AccrualInput{
		MonthlySalary: decimal.NewFromInt(1000),
		DaysInMonth:   31,
		Sessions:      sessionsWith(map[attendance.Status]int{attendance.StatusFullDay: 1}),
	})
	assert.Equal(t, "32", a.EarnedSalary.Value.String())
	assert.Equal(t, "968", a.Variance.Value.String())
}

func TestComputeAccrual_HalfUnitRoundsAwayFromZero(t *testing.T) {
	// GIVEN: 30010 / 30 days * 1.5 = 1500.5 exactly
	a := payroll.ComputeAccrual(payroll.AccrualInput{
		MonthlySalary: decimal.NewFromInt(30010),
		DaysInMonth:   30,
		Sessions:      sessionsWith(map[attendance.Status]int{attendance.StatusOvertime: 1}),
	})

	// THEN: Rounded up, not truncated below .5 by an early division
	assert.Equal(t, "1501", a.EarnedSalary.Value.String())
	assert.Equal(t, "28509", a.Variance.Value.String())
}

func TestComputeAccrual_Degenerate(t *testing.T) {
	// Zero days in month: per diem 0, nothing earned.
	a := payroll.ComputeAccrual(payroll.AccrualInput{
		MonthlySalary: decimal.NewFromInt(1000),
		Sessions:      sessionsWith(map[attendance.Status]int{attendance.StatusFullDay: 3}),
	})
	assert.True(t, a.PerDiemRate.IsZero())
	assert.True(t, a.EarnedSalary.IsZero())
	assert.Equal(t, "1000", a.Variance.Value.String())

	// No sessions: everything is variance.
	b := payroll.ComputeAccrual(payroll.AccrualInput{MonthlySalary: decimal.NewFromInt(500), DaysInMonth: 30})
	assert.True(t, b.EarnedDays.IsZero())
	assert.Equal(t, "500", b.Variance.Value.String())
}

func TestComputeAccrual_OvertimeCanExceedBudget(t *testing.T) {
	a := payroll.ComputeAccrual(payroll.AccrualInput{
		MonthlySalary: decimal.NewFromInt(3000),
		DaysInMonth:   30,
		Sessions:      sessionsWith(map[attendance.Status]int{attendance.StatusOvertime: 30}),
	})
	assert.Equal(t, "4500", a.EarnedSalary.Value.String())
	assert.True(t, a.Variance.IsNegative())
}

func TestSummarize(t *testing.T) {
	month := generic.NewMonth(2024, time.April)

	// GIVEN: An empty team
	empty := payroll.Summarize(month, nil)
	assert.True(t, empty.PercentageEarned.IsZero())
	assert.Equal(t, 0, empty.Workers)

	// GIVEN: Two workers earning 2500 of 3000 and 1000 of 1000
	a := payroll.ComputeAccrual(payroll.AccrualInput{
		MonthlySalary: decimal.NewFromInt(3000), DaysInMonth: 30,
		Sessions: sessionsWith(map[attendance.Status]int{attendance.StatusFullDay: 25}),
	})
	b := payroll.ComputeAccrual(payroll.AccrualInput{
		MonthlySalary: decimal.NewFromInt(1000), DaysInMonth: 30,
		Sessions: sessionsWith(map[attendance.Status]int{attendance.StatusFullDay: 30}),
	})
	sum := payroll.Summarize(month, []payroll.MonthlyAccrual{a, b})

	// THEN: 3500 / 4000 = 87.5%
	assert.Equal(t, 2, sum.Workers)
	assert.Equal(t, "3500", sum.TotalEarned.Value.String())
	assert.Equal(t, "4000", sum.TotalBudget.Value.String())
	assert.Equal(t, "500", sum.TotalVariance.Value.String())
	assert.Equal(t, "87.5", sum.PercentageEarned.String())
}

func TestPercentage_TwoPlaces(t *testing.T) {
	assert.Equal(t, "33.33", payroll.Percentage(decimal.NewFromInt(1), decimal.NewFromInt(3)).String())
	assert.True(t, payroll.Percentage(decimal.NewFromInt(5), decimal.Zero).IsZero())
}
