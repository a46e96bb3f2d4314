// Package storetest is the shared behaviour suite every storage backend
// runs from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

// Store is what a backend must provide to run the suite.
type Store interface {
	attendance.Store
	Reset(ctx context.Context) error
}

var base = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)

func day(n int) generic.Date { return generic.NewDate(2024, time.March, n) }

func openSession(id generic.SessionID, worker generic.WorkerID, d generic.Date) attendance.Session {
	in := d.Time(time.UTC).Add(9 * time.Hour)
	return attendance.Session{
		ID:              id,
		WorkerID:        worker,
		Date:            d,
		CheckInTime:     in,
		CheckInPhotoRef: "in.jpg",
		CheckInLocation: &attendance.Location{Lat: 1.5, Lng: -2.25, Address: "Gate 3"},
		Status:          attendance.StatusPresent,
		CreatedAt:       in,
		UpdatedAt:       in,
	}
}

func closeSession(s attendance.Session, worked time.Duration, status attendance.Status) attendance.Session {
	out := s.CheckInTime.Add(worked)
	hours := generic.HoursBetween(s.CheckInTime, out)
	s.CheckOutTime = &out
	s.CheckOutPhotoRef = "out.jpg"
	s.CheckOutLocation = &attendance.Location{Address: "Gate 1"}
	s.ActualWorkingHours = &hours
	s.Status = status
	s.UpdatedAt = out
	return s
}

// Run exercises the attendance.Store contract. open must return an empty
// store.
func Run(t *testing.T, open func(t *testing.T) Store) {
	t.Run("SessionRoundTrip", func(t *testing.T) { testSessionRoundTrip(t, open(t)) })
	t.Run("DuplicateSession", func(t *testing.T) { testDuplicateSession(t, open(t)) })
	t.Run("UpdateAndOpenLookup", func(t *testing.T) { testUpdateAndOpenLookup(t, open(t)) })
	t.Run("DeleteSession", func(t *testing.T) { testDeleteSession(t, open(t)) })
	t.Run("ListByPeriod", func(t *testing.T) { testListByPeriod(t, open(t)) })
	t.Run("Policies", func(t *testing.T) { testPolicies(t, open(t)) })
	t.Run("Workers", func(t *testing.T) { testWorkers(t, open(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, open(t)) })
}

func testSessionRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	in := openSession("s1", "w1", day(11))
	require.NoError(t, s.InsertSession(ctx, in))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, generic.WorkerID("w1"), got.WorkerID)
	assert.Equal(t, day(11), got.Date)
	assert.True(t, in.CheckInTime.Equal(got.CheckInTime))
	assert.Equal(t, "in.jpg", got.CheckInPhotoRef)
	require.NotNil(t, got.CheckInLocation)
	assert.Equal(t, *in.CheckInLocation, *got.CheckInLocation)
	assert.Nil(t, got.CheckOutTime)
	assert.Nil(t, got.ActualWorkingHours)
	assert.Equal(t, attendance.StatusPresent, got.Status)

	byKey, err := s.FindSession(ctx, "w1", day(11))
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, generic.SessionID("s1"), byKey.ID)

	missing, err := s.FindSession(ctx, "w1", day(12))
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = s.GetSession(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testDuplicateSession(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertSession(ctx, openSession("s1", "w1", day(11))))

	err := s.InsertSession(ctx, openSession("s2", "w1", day(11)))
	assert.ErrorIs(t, err, generic.ErrDuplicateSession)

	// Same date, other worker is fine.
	assert.NoError(t, s.InsertSession(ctx, openSession("s3", "w2", day(11))))
}

func testUpdateAndOpenLookup(t *testing.T, s Store) {
	ctx := context.Background()
	first := openSession("s1", "w1", day(11))
	require.NoError(t, s.InsertSession(ctx, first))

	open, err := s.FindOpenSession(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, generic.SessionID("s1"), open.ID)

	closed := closeSession(first, 8*time.Hour+30*time.Minute, attendance.StatusFullDay)
	closed.Notes = "left via gate 1"
	corrected := base.Add(48 * time.Hour)
	closed.CorrectedAt = &corrected
	require.NoError(t, s.UpdateSession(ctx, closed))

	open, err = s.FindOpenSession(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, open)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.CheckOutTime)
	assert.True(t, closed.CheckOutTime.Equal(*got.CheckOutTime))
	require.NotNil(t, got.ActualWorkingHours)
	assert.True(t, got.ActualWorkingHours.Equal(decimal.RequireFromString("8.5")))
	assert.Equal(t, attendance.StatusFullDay, got.Status)
	assert.Equal(t, "left via gate 1", got.Notes)
	assert.Equal(t, "out.jpg", got.CheckOutPhotoRef)
	require.NotNil(t, got.CorrectedAt)
	assert.Equal(t, attendance.StateCorrected, got.State())

	err = s.UpdateSession(ctx, openSession("ghost", "w1", day(13)))
	assert.ErrorIs(t, err, generic.ErrSessionNotFound)
}

func testDeleteSession(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertSession(ctx, openSession("s1", "w1", day(11))))
	require.NoError(t, s.InsertSession(ctx, openSession("s2", "w1", day(12))))

	require.NoError(t, s.DeleteSession(ctx, "s1"))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
	other, err := s.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.NotNil(t, other)

	assert.ErrorIs(t, s.DeleteSession(ctx, "s1"), generic.ErrSessionNotFound)

	// The freed key can be reused.
	assert.NoError(t, s.InsertSession(ctx, openSession("s3", "w1", day(11))))
}

func testListByPeriod(t *testing.T, s Store) {
	ctx := context.Background()
	for i, d := range []int{14, 1, 31, 29} {
		sess := closeSession(openSession(generic.SessionID("a"+string(rune('0'+i))), "w1", day(d)), 8*time.Hour, attendance.StatusFullDay)
		require.NoError(t, s.InsertSession(ctx, sess))
	}
	require.NoError(t, s.InsertSession(ctx, openSession("b1", "w2", day(14))))
	require.NoError(t, s.InsertSession(ctx, openSession("b2", "w2", generic.NewDate(2024, time.April, 1))))

	march := generic.NewMonth(2024, time.March).Period()
	list, err := s.ListSessions(ctx, "w1", march)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, day(1), list[0].Date)
	assert.Equal(t, day(31), list[3].Date)

	narrow, err := s.ListSessions(ctx, "w1", generic.Period{Start: day(14), End: day(29)})
	require.NoError(t, err)
	assert.Len(t, narrow, 2)

	all, err := s.ListSessionsInPeriod(ctx, march)
	require.NoError(t, err)
	require.Len(t, all, 5)
	// Same date orders by worker.
	assert.Equal(t, generic.WorkerID("w1"), all[1].WorkerID)
	assert.Equal(t, generic.WorkerID("w2"), all[2].WorkerID)
}

func testPolicies(t *testing.T, s Store) {
	ctx := context.Background()

	schedule, err := s.Schedule(ctx)
	require.NoError(t, err)
	assert.True(t, schedule.For(time.Monday).IsWorkingDay)
	assert.False(t, schedule.For(time.Saturday).IsWorkingDay)
	assert.True(t, schedule.For(time.Monday).FullDayHours.Equal(decimal.NewFromInt(8)))

	v1, err := s.PolicyVersion(ctx)
	require.NoError(t, err)

	sat := schedule.For(time.Saturday)
	sat.IsWorkingDay = true
	sat.NominalStart = attendance.MustParseTimeOfDay("08:30")
	sat.NominalEnd = attendance.MustParseTimeOfDay("12:45")
	sat.FullDayHours = decimal.RequireFromString("4.25")
	sat.UpdatedAt = base
	require.NoError(t, s.SaveWeekdayPolicy(ctx, sat))

	got, err := s.GetWeekdayPolicy(ctx, time.Saturday)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsWorkingDay)
	assert.Equal(t, "08:30", got.NominalStart.String())
	assert.Equal(t, "12:45", got.NominalEnd.String())
	assert.True(t, got.FullDayHours.Equal(decimal.RequireFromString("4.25")))

	v2, err := s.PolicyVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, v2, v1)
}

func testWorkers(t *testing.T, s Store) {
	ctx := context.Background()

	missing, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.SaveWorker(ctx, attendance.Worker{ID: "w2", Name: "Bo", MonthlySalary: decimal.NewFromInt(1200), CreatedAt: base}))
	require.NoError(t, s.SaveWorker(ctx, attendance.Worker{ID: "w1", Name: "Al", Email: "al@example.com", MonthlySalary: decimal.RequireFromString("3000.50"), CreatedAt: base}))

	w, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "al@example.com", w.Email)
	assert.True(t, w.MonthlySalary.Equal(decimal.RequireFromString("3000.5")))

	w.MonthlySalary = decimal.NewFromInt(3500)
	require.NoError(t, s.SaveWorker(ctx, *w))
	w, err = s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, w.MonthlySalary.Equal(decimal.NewFromInt(3500)))

	list, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, generic.WorkerID("w1"), list[0].ID)
}

func testReset(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveWorker(ctx, attendance.Worker{ID: "w1", Name: "Al", MonthlySalary: decimal.NewFromInt(1), CreatedAt: base}))
	require.NoError(t, s.InsertSession(ctx, openSession("s1", "w1", day(11))))
	sat := attendance.DefaultSchedule().For(time.Saturday)
	sat.IsWorkingDay = true
	require.NoError(t, s.SaveWeekdayPolicy(ctx, sat))
	before, err := s.PolicyVersion(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	workers, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	assert.Empty(t, workers)
	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
	p, err := s.GetWeekdayPolicy(ctx, time.Saturday)
	require.NoError(t, err)
	assert.False(t, p.IsWorkingDay)

	after, err := s.PolicyVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

// RunRuns exercises the payroll.RunStore contract.
func RunRuns(t *testing.T, runs payroll.RunStore) {
	ctx := context.Background()
	feb := generic.NewMonth(2024, time.February)
	jan := feb.AddMonths(-1)

	missing, err := runs.GetPayrollRun(ctx, feb)
	require.NoError(t, err)
	assert.Nil(t, missing)

	run := payroll.PayrollRun{ID: "r-feb", Month: feb, Status: payroll.RunRunning, StartedAt: base}
	require.NoError(t, runs.SavePayrollRun(ctx, run))

	done := base.Add(time.Minute)
	run.Status = payroll.RunCompleted
	run.Workers = 3
	run.TotalEarned = decimal.NewFromInt(4200)
	run.TotalBudget = decimal.NewFromInt(6000)
	run.Percentage = decimal.RequireFromString("70")
	run.CompletedAt = &done
	require.NoError(t, runs.SavePayrollRun(ctx, run))
	require.NoError(t, runs.SavePayrollRun(ctx, payroll.PayrollRun{
		ID: "r-jan", Month: jan, Status: payroll.RunFailed, Error: "boom", StartedAt: base,
	}))

	got, err := runs.GetPayrollRun(ctx, feb)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, generic.RunID("r-feb"), got.ID)
	assert.Equal(t, payroll.RunCompleted, got.Status)
	assert.Equal(t, 3, got.Workers)
	assert.True(t, got.TotalEarned.Equal(decimal.NewFromInt(4200)))
	assert.True(t, got.Percentage.Equal(decimal.NewFromInt(70)))
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))

	list, err := runs.ListPayrollRuns(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, jan, list[0].Month)
	assert.Equal(t, "boom", list[0].Error)
}
