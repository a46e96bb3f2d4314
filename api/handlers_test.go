/*
handlers_test.go - HTTP tests for the attendance and payroll API

Tests for:
- Check-in / check-out lifecycle and the rule violations (409 with dates)
- Request validation (400 with field)
- Corrections, policies, payroll close
- Report agreement and XLSX export
- Health and metrics endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/store/sqlite"
	"github.com/xuri/excelize/v2"
)

// Friday 15 March 2024, mid-morning.
var testNow = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	router  *chi.Mux
	clock   *generic.FixedClock
	store   *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := generic.NewFixedClock(testNow)
	engine := payroll.NewEngine(store, payroll.NewMemoryCache(clock, 24*time.Hour))
	sessions := attendance.NewSessionService(store, clock, time.UTC)
	sessions.Invalidator = engine
	policies := attendance.NewPolicyService(store, clock)

	h := NewHandler(store, sessions, policies, engine)
	return &testServer{
		handler: h,
		router:  NewRouter(h, []string{"http://localhost:3000"}),
		clock:   clock,
		store:   store,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createWorker(t *testing.T, id string, salary int64) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/workers", map[string]any{
		"id":             id,
		"name":           "Worker " + id,
		"monthly_salary": salary,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func capture(photo string) map[string]any {
	return map[string]any{
		"photo_ref": photo,
		"location":  map[string]any{"lat": 48.85, "lng": 2.35, "address": "Main office"},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// CHECK-IN / CHECK-OUT
// =============================================================================

func TestCheckInCheckOut_FullDay(t *testing.T) {
	// GIVEN: A worker on a standard Friday
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 30000)

	// WHEN: Checking in at 09:00 and out at 17:30
	rec := ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	opened := decode[SessionDTO](t, rec)
	assert.Equal(t, "open", opened.State)
	assert.Equal(t, "present", opened.Status)
	assert.Equal(t, "2024-03-15", opened.Date.String())

	ts.clock.Set(time.Date(2024, time.March, 15, 17, 30, 0, 0, time.UTC))
	rec = ts.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/check-out", capture("out.jpg"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The session is closed, 8.5 hours, full day
	closed := decode[SessionDTO](t, rec)
	assert.Equal(t, "closed", closed.State)
	assert.Equal(t, "full_day", closed.Status)
	require.NotNil(t, closed.ActualWorkingHours)
	assert.True(t, closed.ActualWorkingHours.Equal(decimal.RequireFromString("8.5")))
}

func TestCheckIn_DuplicateSameDay(t *testing.T) {
	// GIVEN: A worker who already checked in and out today
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 30000)
	rec := ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg"))
	require.Equal(t, http.StatusCreated, rec.Code)
	s := decode[SessionDTO](t, rec)
	ts.clock.Advance(4 * time.Hour)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/check-out", capture("out.jpg")).Code)

	// WHEN: Checking in again the same day
	rec = ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in2.jpg"))

	// THEN: 409 naming today
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, []string{"2024-03-15"}, resp.Dates)
}

func TestCheckIn_OpenSessionFromYesterday(t *testing.T) {
	// GIVEN: A worker who checked in yesterday and never checked out
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 30000)
	ts.clock.Set(testNow.AddDate(0, 0, -1))
	rec := ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg"))
	require.Equal(t, http.StatusCreated, rec.Code)
	yesterday := decode[SessionDTO](t, rec)

	// WHEN: Checking in today
	ts.clock.Set(testNow)
	rec = ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg"))

	// THEN: 409 naming the open date and the requested date
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, []string{"2024-03-14", "2024-03-15"}, resp.Dates)

	// AND: Yesterday's session cannot be checked out today either
	rec = ts.do(t, http.MethodPost, "/api/sessions/"+yesterday.ID+"/check-out", capture("out.jpg"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp = decode[ErrorResponse](t, rec)
	assert.Equal(t, []string{"2024-03-14", "2024-03-15"}, resp.Dates)
}

func TestCheckIn_OpenSessionResolvedByCorrection(t *testing.T) {
	// GIVEN: Yesterday's session left open
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 30000)
	ts.clock.Set(testNow.AddDate(0, 0, -1))
	rec := ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg"))
	require.Equal(t, http.StatusCreated, rec.Code)
	yesterday := decode[SessionDTO](t, rec)
	ts.clock.Set(testNow)

	// WHEN: An administrator corrects it with a check-out time
	out := time.Date(2024, time.March, 14, 13, 30, 0, 0, time.UTC)
	rec = ts.do(t, http.MethodPut, "/api/sessions/"+yesterday.ID+"/times", map[string]any{
		"check_in":  time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC),
		"check_out": out,
		"notes":     "forgot to check out",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	corrected := decode[SessionDTO](t, rec)

	// THEN: The session is corrected and classified, and today's check-in works
	assert.Equal(t, "corrected", corrected.State)
	assert.Equal(t, "half_day", corrected.Status)
	assert.Equal(t, "forgot to check out", corrected.Notes)

	rec = ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg"))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCheckIn_Validation(t *testing.T) {
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 30000)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{
			name:  "missing photo",
			body:  map[string]any{"location": map[string]any{"lat": 1, "lng": 1, "address": "x"}},
			field: "photo_ref",
		},
		{
			name:  "missing location",
			body:  map[string]any{"photo_ref": "p.jpg"},
			field: "location",
		},
		{
			name:  "missing address",
			body:  map[string]any{"photo_ref": "p.jpg", "location": map[string]any{"lat": 1, "lng": 1}},
			field: "location.address",
		},
		{
			name:  "latitude out of range",
			body:  map[string]any{"photo_ref": "p.jpg", "location": map[string]any{"lat": 91, "lng": 1, "address": "x"}},
			field: "location.lat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.field, decode[ErrorResponse](t, rec).Field)
		})
	}

	// No session was opened by any of them.
	open, err := ts.store.FindOpenSession(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestCheckIn_UnknownWorker(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/workers/nobody/check-in", capture("in.jpg"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCorrectTimes_InvalidRange(t *testing.T) {
	// GIVEN: An open session
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 30000)
	s := decode[SessionDTO](t, ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg")))

	// WHEN: Correcting with check-out equal to check-in
	at := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	rec := ts.do(t, http.MethodPut, "/api/sessions/"+s.ID+"/times", map[string]any{"check_in": at, "check_out": at})

	// THEN: 400 and the session is unchanged
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/sessions/"+s.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "open", decode[SessionDTO](t, rec).State)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 30000)
	s := decode[SessionDTO](t, ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg")))

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/sessions/"+s.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/sessions/"+s.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/sessions/"+s.ID, nil).Code)
}

// =============================================================================
// ACCRUAL AND SALARY
// =============================================================================

func TestAccrual_ReflectsCheckOutAndSalaryChange(t *testing.T) {
	// GIVEN: A worker with one full day in March (31 days)
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 31000)
	s := decode[SessionDTO](t, ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg")))

	// Open sessions count as Present (1.0 earned day).
	rec := ts.do(t, http.MethodGet, "/api/workers/w-1/accrual?month=2024-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[AccrualDTO](t, rec)
	assert.True(t, a.EarnedSalary.Equal(decimal.NewFromInt(1000)), a.EarnedSalary.String())

	// WHEN: The session becomes overtime
	ts.clock.Set(time.Date(2024, time.March, 15, 20, 0, 0, 0, time.UTC))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/check-out", capture("out.jpg")).Code)

	// THEN: The accrual is recomputed, not served stale from the cache
	a = decode[AccrualDTO](t, ts.do(t, http.MethodGet, "/api/workers/w-1/accrual?month=2024-03", nil))
	assert.True(t, a.EarnedDays.Equal(decimal.RequireFromString("1.5")), a.EarnedDays.String())
	assert.True(t, a.EarnedSalary.Equal(decimal.NewFromInt(1500)), a.EarnedSalary.String())

	// WHEN: The salary doubles
	rec = ts.do(t, http.MethodPut, "/api/workers/w-1/salary", map[string]any{"monthly_salary": 62000})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: The cached month is dropped
	a = decode[AccrualDTO](t, ts.do(t, http.MethodGet, "/api/workers/w-1/accrual?month=2024-03", nil))
	assert.True(t, a.EarnedSalary.Equal(decimal.NewFromInt(3000)), a.EarnedSalary.String())
}

func TestAccrual_InvalidMonth(t *testing.T) {
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 31000)
	rec := ts.do(t, http.MethodGet, "/api/workers/w-1/accrual?month=March", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "month", decode[ErrorResponse](t, rec).Field)
}

func TestCreateWorker_Validation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/workers", map[string]any{"monthly_salary": 1000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", decode[ErrorResponse](t, rec).Field)

	rec = ts.do(t, http.MethodPost, "/api/workers", map[string]any{"name": "Neg", "monthly_salary": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "monthly_salary", decode[ErrorResponse](t, rec).Field)

	ts.createWorker(t, "w-1", 1000)
	rec = ts.do(t, http.MethodPost, "/api/workers", map[string]any{"id": "w-1", "name": "Again", "monthly_salary": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicies_UpdateAndValidate(t *testing.T) {
	ts := newTestServer(t)

	// GIVEN: The default week
	rec := ts.do(t, http.MethodGet, "/api/policies/weekdays", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"weekday":"monday"`)

	// WHEN: Saturday becomes a short working day
	rec = ts.do(t, http.MethodPut, "/api/policies/weekdays/saturday", map[string]any{
		"is_working_day": true,
		"nominal_start":  "09:00",
		"nominal_end":    "13:00",
		"full_day_hours": 4,
		"half_day_hours": 2,
		"overtime_hours": 6,
	})

	// THEN: It is saved
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"is_working_day":true`)

	// WHEN: A working day ends before it starts
	bad := map[string]any{
		"weekday":        "sunday",
		"is_working_day": true,
		"nominal_start":  "17:00",
		"nominal_end":    "09:00",
		"full_day_hours": 8,
		"half_day_hours": 4,
		"overtime_hours": 10,
	}
	rec = ts.do(t, http.MethodPut, "/api/policies/weekdays/sunday", bad)

	// THEN: It is rejected, and the dry run explains why
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/policies/validate", bad)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[PolicyValidationDTO](t, rec)
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Problems)
}

func TestPolicies_WeekdayMismatch(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPut, "/api/policies/weekdays/monday", map[string]any{"weekday": "tuesday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "weekday", decode[ErrorResponse](t, rec).Field)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReports_FiguresAgree(t *testing.T) {
	// GIVEN: The standard month scenario
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "standard_month"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Reading the KPI tiles, chart and table for February
	kpi := decode[report.KPITiles](t, ts.do(t, http.MethodGet, "/api/reports/kpi?month=2024-02", nil))
	chart := decode[report.WorkerChart](t, ts.do(t, http.MethodGet, "/api/reports/chart?month=2024-02", nil))
	table := decode[report.PayrollTable](t, ts.do(t, http.MethodGet, "/api/reports/table?month=2024-02", nil))

	// THEN: All three report the same earned total
	chartSum, tableSum := decimal.Zero, decimal.Zero
	for _, b := range chart.Bars {
		chartSum = chartSum.Add(b.Earned)
	}
	for _, row := range table.Rows {
		tableSum = tableSum.Add(row.EarnedSalary)
	}
	assert.Equal(t, 3, kpi.Workers)
	assert.True(t, kpi.TotalEarned.IsPositive())
	assert.True(t, kpi.TotalEarned.Equal(chartSum), "kpi %s chart %s", kpi.TotalEarned, chartSum)
	assert.True(t, kpi.TotalEarned.Equal(tableSum), "kpi %s table %s", kpi.TotalEarned, tableSum)
}

func TestReports_TrendAndAttendance(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "standard_month"}).Code)

	rec := ts.do(t, http.MethodGet, "/api/reports/trend?month=2024-03&months=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	points := decode[[]report.TrendPoint](t, rec)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-01", points[0].Month.String())
	assert.True(t, points[0].TotalEarned.IsZero())
	assert.True(t, points[1].TotalEarned.IsPositive())

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/reports/trend?months=0", nil).Code)

	// Bruno misses every Monday of February (4 of them).
	rec = ts.do(t, http.MethodGet, "/api/reports/attendance?from=2024-02-01&to=2024-02-29", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[report.AttendanceSummary](t, rec)
	assert.Equal(t, 21, summary.WorkingDays)
	assert.Equal(t, 4, summary.Absent)

	rec = ts.do(t, http.MethodGet, "/api/reports/attendance?from=2024-02-10&to=2024-02-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReports_XLSXExport(t *testing.T) {
	// GIVEN: A loaded month
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "standard_month"}).Code)

	// WHEN: Exporting the payroll table
	rec := ts.do(t, http.MethodGet, "/api/reports/table.xlsx?month=2024-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payroll-2024-02.xlsx")

	// THEN: The workbook has a header, one row per worker and a totals row
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Payroll")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Worker ID", rows[0][0])
	assert.Equal(t, "TOTAL", rows[4][0])
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

func TestPayrollClose_Idempotent(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "standard_month"}).Code)

	// WHEN: Closing February twice
	first := decode[PayrollRunDTO](t, ts.do(t, http.MethodPost, "/api/payroll/close?month=2024-02", nil))
	second := decode[PayrollRunDTO](t, ts.do(t, http.MethodPost, "/api/payroll/close?month=2024-02", nil))

	// THEN: One completed run
	assert.Equal(t, "completed", first.Status)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, first.Workers)

	runs := decode[[]PayrollRunDTO](t, ts.do(t, http.MethodGet, "/api/payroll/runs", nil))
	assert.Len(t, runs, 1)

	// AND: The running month cannot be closed
	rec := ts.do(t, http.MethodPost, "/api/payroll/close?month=2024-03", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayrollScheduler_ClosesPreviousMonth(t *testing.T) {
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 29000)
	scheduler := NewPayrollScheduler(ts.handler)

	run := scheduler.CheckAndClose(context.Background())
	require.NotNil(t, run)
	assert.Equal(t, "2024-02", run.Month.String())
	assert.Equal(t, payroll.RunCompleted, run.Status)

	again := scheduler.CheckAndClose(context.Background())
	require.NotNil(t, again)
	assert.Equal(t, run.ID, again.ID)
}

func TestPayrollScheduler_RestartsAfterStop(t *testing.T) {
	// GIVEN: A scheduler started and stopped in March
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 29000)
	scheduler := NewPayrollScheduler(ts.handler)
	scheduler.CheckInterval = 5 * time.Millisecond
	ctx := context.Background()

	closed := func(month string) func() bool {
		m, err := generic.ParseMonth(month)
		require.NoError(t, err)
		return func() bool {
			run, err := ts.store.GetPayrollRun(ctx, m)
			return err == nil && run != nil && run.Status == payroll.RunCompleted
		}
	}

	scheduler.Start()
	require.Eventually(t, closed("2024-02"), time.Second, 5*time.Millisecond)
	scheduler.Stop()
	assert.False(t, scheduler.Running())

	// WHEN: Started again a month later
	ts.clock.Set(testNow.AddDate(0, 1, 0))
	scheduler.Start()
	defer scheduler.Stop()

	// THEN: The loop is live and closes March
	assert.True(t, scheduler.Running())
	require.Eventually(t, closed("2024-03"), time.Second, 5*time.Millisecond)
}

// =============================================================================
// HEALTH AND METRICS
// =============================================================================

func TestHealthzAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.createWorker(t, "w-1", 30000)
	ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg"))
	ts.do(t, http.MethodPost, "/api/workers/w-1/check-in", capture("in.jpg"))

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"ok"`)

	rec = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "attendance_check_ins_total 1")
	assert.True(t, strings.Contains(body, `attendance_rejections_total{operation="check_in",reason="duplicate_session"} 1`), body)
}
