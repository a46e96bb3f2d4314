/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	attendance for demos. Each scenario sets the working week, creates
	workers and replays their check-ins and check-outs through the normal
	session service, so every session is classified exactly as a live one.

AVAILABLE SCENARIOS:

	standard_month:        Three workers, Monday-Friday week, the previous
	                       month and the current month to date fully recorded
	open_session_conflict: One worker who forgot to check out yesterday;
	                       checking in today is refused
	six_day_week:          Short Saturdays added to the standard week

HOW SCENARIOS WORK:
 1. Reset database (clear all data, bump the policy version)
 2. Apply a working week via the schedule factory
 3. Create workers
 4. Replay sessions on a fixed clock

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "standard_month"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - factory/schedule.go: Working week presets
*/
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard_month",
		Name:        "Standard Month",
		Description: "Three workers on a Monday-Friday week with a mix of full, half and overtime days",
	},
	{
		ID:          "open_session_conflict",
		Name:        "Open Session Conflict",
		Description: "A worker left yesterday's session open; today's check-in is refused until it is corrected",
	},
	{
		ID:          "six_day_week",
		Name:        "Six-Day Week",
		Description: "Standard week plus short Saturdays (09:00-13:00)",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "standard_month":
		load = h.loadStandardMonthScenario
	case "open_session_conflict":
		load = h.loadOpenSessionConflictScenario
	case "six_day_week":
		load = h.loadSixDayWeekScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	log.Printf("[API] Loaded scenario %s", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// shift is one replayed day: check-in and check-out wall times. A zero out
// leaves the session open.
type shift struct {
	in, out attendance.TimeOfDay
}

var (
	fullShift     = shift{attendance.MustParseTimeOfDay("09:00"), attendance.MustParseTimeOfDay("17:30")}
	halfShift     = shift{attendance.MustParseTimeOfDay("09:00"), attendance.MustParseTimeOfDay("13:30")}
	overtimeShift = shift{attendance.MustParseTimeOfDay("08:00"), attendance.MustParseTimeOfDay("19:00")}
	shortShift    = shift{attendance.MustParseTimeOfDay("09:00"), attendance.MustParseTimeOfDay("11:00")}
)

func (h *Handler) loadStandardMonthScenario(ctx context.Context) error {
	if err := h.applySchedule(ctx, factory.StandardWeekJSON()); err != nil {
		return err
	}
	workers := []attendance.Worker{
		{ID: "w-alice", Name: "Alice Martin", Email: "alice@example.com", MonthlySalary: decimal.NewFromInt(30000)},
		{ID: "w-bruno", Name: "Bruno Diaz", Email: "bruno@example.com", MonthlySalary: decimal.NewFromInt(24000)},
		{ID: "w-chen", Name: "Chen Wei", Email: "chen@example.com", MonthlySalary: decimal.NewFromInt(36000)},
	}
	if err := h.createWorkers(ctx, workers); err != nil {
		return err
	}

	// Alice works every day. Bruno takes a half day every fifth working day
	// and misses Mondays. Chen does overtime on Fridays.
	plans := map[generic.WorkerID]func(d generic.Date, n int) *shift{
		"w-alice": func(generic.Date, int) *shift { return &fullShift },
		"w-bruno": func(d generic.Date, n int) *shift {
			if d.Weekday() == time.Monday {
				return nil
			}
			if n%5 == 4 {
				return &halfShift
			}
			return &fullShift
		},
		"w-chen": func(d generic.Date, n int) *shift {
			if d.Weekday() == time.Friday {
				return &overtimeShift
			}
			return &fullShift
		},
	}
	return h.replayWorkingDays(ctx, workers, plans)
}

func (h *Handler) loadOpenSessionConflictScenario(ctx context.Context) error {
	if err := h.applySchedule(ctx, factory.StandardWeekJSON()); err != nil {
		return err
	}
	dana := attendance.Worker{ID: "w-dana", Name: "Dana Okafor", Email: "dana@example.com", MonthlySalary: decimal.NewFromInt(27000)}
	if err := h.createWorkers(ctx, []attendance.Worker{dana}); err != nil {
		return err
	}

	// Checked in yesterday morning, never checked out.
	yesterday := h.today().AddDays(-1)
	open := shift{in: attendance.MustParseTimeOfDay("09:05")}
	return h.replay(ctx, dana.ID, yesterday, open)
}

func (h *Handler) loadSixDayWeekScenario(ctx context.Context) error {
	if err := h.applySchedule(ctx, factory.SixDayWeekJSON()); err != nil {
		return err
	}
	workers := []attendance.Worker{
		{ID: "w-emma", Name: "Emma Rossi", Email: "emma@example.com", MonthlySalary: decimal.NewFromInt(31000)},
		{ID: "w-farid", Name: "Farid Haddad", Email: "farid@example.com", MonthlySalary: decimal.NewFromInt(31000)},
	}
	if err := h.createWorkers(ctx, workers); err != nil {
		return err
	}

	saturday := shift{attendance.MustParseTimeOfDay("09:00"), attendance.MustParseTimeOfDay("13:15")}
	plans := map[generic.WorkerID]func(d generic.Date, n int) *shift{
		"w-emma": func(d generic.Date, _ int) *shift {
			if d.Weekday() == time.Saturday {
				return &saturday
			}
			return &fullShift
		},
		// Farid skips Saturdays and leaves early on Wednesdays.
		"w-farid": func(d generic.Date, _ int) *shift {
			switch d.Weekday() {
			case time.Saturday:
				return nil
			case time.Wednesday:
				return &shortShift
			}
			return &fullShift
		},
	}
	return h.replayWorkingDays(ctx, workers, plans)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) applySchedule(ctx context.Context, scheduleJSON string) error {
	policies, err := h.Schedules.ParseSchedule(scheduleJSON)
	if err != nil {
		return err
	}
	return h.Schedules.Apply(ctx, h.Policies, policies)
}

func (h *Handler) createWorkers(ctx context.Context, workers []attendance.Worker) error {
	now := h.Clock.Now()
	for _, w := range workers {
		w.CreatedAt = now
		if err := h.Store.SaveWorker(ctx, w); err != nil {
			return fmt.Errorf("failed to create worker %s: %w", w.ID, err)
		}
	}
	return nil
}

// replayWorkingDays walks every working day from the start of the previous
// month up to yesterday and replays each worker's plan for it.
func (h *Handler) replayWorkingDays(ctx context.Context, workers []attendance.Worker, plans map[generic.WorkerID]func(generic.Date, int) *shift) error {
	schedule, err := h.Policies.Schedule(ctx)
	if err != nil {
		return err
	}
	today := h.today()
	start := today.MonthOf().AddMonths(-1).First()

	n := 0
	for d := start; d.Before(today); d = d.AddDays(1) {
		if !schedule.IsWorkingDay(d) {
			continue
		}
		for _, w := range workers {
			s := plans[w.ID](d, n)
			if s == nil {
				continue
			}
			if err := h.replay(ctx, w.ID, d, *s); err != nil {
				return err
			}
		}
		n++
	}
	return nil
}

// replay runs one day through a session service whose clock is pinned to
// the shift's wall times.
func (h *Handler) replay(ctx context.Context, workerID generic.WorkerID, date generic.Date, s shift) error {
	clock := generic.NewFixedClock(s.in.On(date, h.Location))
	svc := attendance.NewSessionService(h.Store, clock, h.Location)
	svc.Invalidator = h.Engine

	capture := attendance.Capture{
		PhotoRef: fmt.Sprintf("demo/%s/%s-in.jpg", workerID, date),
		Location: &attendance.Location{Lat: 48.8566, Lng: 2.3522, Address: "1 Rue de Rivoli, Paris"},
	}
	session, err := svc.CheckIn(ctx, workerID, date, capture)
	if err != nil {
		return fmt.Errorf("check-in %s on %s: %w", workerID, date, err)
	}
	if s.out == (attendance.TimeOfDay{}) {
		return nil
	}

	clock.Set(s.out.On(date, h.Location))
	capture.PhotoRef = fmt.Sprintf("demo/%s/%s-out.jpg", workerID, date)
	if _, err := svc.CheckOut(ctx, session.ID, capture); err != nil {
		return fmt.Errorf("check-out %s on %s: %w", workerID, date, err)
	}
	return nil
}
