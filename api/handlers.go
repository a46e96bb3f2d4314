/*
handlers.go - HTTP API handlers for attendance and payroll accrual

PURPOSE:
  Exposes the attendance state machine, the working-hours policy store and
  the payroll projections via REST API. Handles HTTP request/response, JSON
  serialization and validation, and delegates to the domain services.

ENDPOINTS:
  Workers:
    GET    /api/workers                      List all workers
    POST   /api/workers                      Create worker
    GET    /api/workers/{id}                 Get worker details
    PUT    /api/workers/{id}/salary          Change monthly salary
    POST   /api/workers/{id}/check-in        Open today's session
    GET    /api/workers/{id}/sessions        Sessions in a date range
    GET    /api/workers/{id}/accrual         Monthly accrual

  Sessions:
    GET    /api/sessions/{id}                Get session
    POST   /api/sessions/{id}/check-out      Close session
    PUT    /api/sessions/{id}/times          Administrative correction
    DELETE /api/sessions/{id}                Remove session

  Policies:
    GET    /api/policies/weekdays            Current working week
    PUT    /api/policies/weekdays/{weekday}  Replace one weekday's policy
    POST   /api/policies/validate            Dry-run validation

  Reports and payroll: see reports.go.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Persistence (sessions, policies, workers, payroll runs)
  - Sessions/Policies: Domain services enforcing the attendance rules
  - Engine/Projector: Accrual computation and reporting projections
  - Metrics: Prometheus collectors

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator tags, then domain rules)
  3. Call domain service
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (field names the input)
  - 404: Worker or session not found
  - 409: Attendance rule violation (dates names the days involved)
  - 503: Store unavailable, safe to retry
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - reports.go: Reporting and payroll endpoints
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs. The sqlite and postgres stores
// implement it directly.
type Store interface {
	attendance.Store
	payroll.RunStore
	Reset(ctx context.Context) error
}

// Pinger is a dependency /healthz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Sessions  *attendance.SessionService
	Policies  *attendance.PolicyService
	Engine    *payroll.Engine
	Projector *report.Projector
	Schedules *factory.ScheduleFactory
	Metrics   *Metrics
	Clock     generic.Clock
	Location  *time.Location

	// Probes are pinged by /healthz, keyed by component name.
	Probes map[string]Pinger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the handler around the domain services. The projector
// and metrics are derived from them; the engine reports cache lookups to
// the metrics.
func NewHandler(store Store, sessions *attendance.SessionService, policies *attendance.PolicyService, engine *payroll.Engine) *Handler {
	h := &Handler{
		Store:     store,
		Sessions:  sessions,
		Policies:  policies,
		Engine:    engine,
		Projector: report.NewProjector(engine, store, sessions.Clock, sessions.Location),
		Schedules: factory.NewScheduleFactory(),
		Metrics:   NewMetrics(),
		Clock:     sessions.Clock,
		Location:  sessions.Location,
		Probes:    map[string]Pinger{},
		validate:  newValidator(),
	}
	engine.Observe = h.Metrics.ObserveAccrual
	if p, ok := store.(Pinger); ok {
		h.Probes["store"] = p
	}
	return h
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list workers", err)
		return
	}

	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = toWorkerDTO(wk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateWorker creates a new worker.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.MonthlySalary.IsNegative() {
		writeDomainError(w, "Invalid worker", &attendance.ValidationError{Field: "monthly_salary", Message: "must not be negative"})
		return
	}

	ctx := r.Context()
	id := generic.WorkerID(req.ID)
	if id == "" {
		id = generic.WorkerID(uuid.NewString())
	}
	existing, err := h.Store.GetWorker(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to create worker", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Worker already exists", fmt.Errorf("worker %s already exists", id))
		return
	}

	worker := attendance.Worker{
		ID:            id,
		Name:          req.Name,
		Email:         req.Email,
		MonthlySalary: req.MonthlySalary,
		CreatedAt:     h.Clock.Now(),
	}
	if err := h.Store.SaveWorker(ctx, worker); err != nil {
		writeDomainError(w, "Failed to create worker", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerDTO(worker))
}

// GetWorker returns a single worker.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.loadWorker(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get worker", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

// UpdateSalary changes a worker's monthly salary. Every cached month of the
// worker is dropped since the per-diem rate changes with it.
func (h *Handler) UpdateSalary(w http.ResponseWriter, r *http.Request) {
	var req UpdateSalaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.MonthlySalary.IsNegative() {
		writeDomainError(w, "Invalid salary", &attendance.ValidationError{Field: "monthly_salary", Message: "must not be negative"})
		return
	}

	ctx := r.Context()
	worker, err := h.loadWorker(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to update salary", err)
		return
	}
	worker.MonthlySalary = req.MonthlySalary
	if err := h.Store.SaveWorker(ctx, *worker); err != nil {
		writeDomainError(w, "Failed to update salary", err)
		return
	}
	if err := h.Engine.InvalidateWorker(ctx, worker.ID); err != nil {
		log.Printf("[API] Failed to invalidate accruals for %s: %v", worker.ID, err)
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

// CheckIn opens today's session for the worker.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if !h.decode(w, r, &req) {
		h.Metrics.Rejections.WithLabelValues("check_in", "validation").Inc()
		return
	}

	workerID := generic.WorkerID(chi.URLParam(r, "id"))
	session, err := h.Sessions.CheckIn(r.Context(), workerID, h.Sessions.Today(), req.toCapture())
	if err != nil {
		h.Metrics.Reject("check_in", err)
		writeDomainError(w, "Check-in refused", err)
		return
	}
	h.Metrics.CheckIns.Inc()
	writeJSON(w, http.StatusCreated, toSessionDTO(*session))
}

// ListWorkerSessions returns the worker's sessions between from and to
// (inclusive, YYYY-MM-DD). Both default to the current month's bounds.
func (h *Handler) ListWorkerSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	worker, err := h.loadWorker(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to list sessions", err)
		return
	}
	period, err := h.periodParam(r)
	if err != nil {
		writeDomainError(w, "Invalid period", err)
		return
	}

	sessions, err := h.Sessions.ListSessions(ctx, worker.ID, period)
	if err != nil {
		writeDomainError(w, "Failed to list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// GetWorkerAccrual returns the worker's accrual for ?month=YYYY-MM
// (default: current month).
func (h *Handler) GetWorkerAccrual(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthParam(r)
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}
	a, err := h.Engine.WorkerAccrual(r.Context(), generic.WorkerID(chi.URLParam(r, "id")), month)
	if err != nil {
		writeDomainError(w, "Failed to compute accrual", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccrualDTO(a))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// GetSession returns a single session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.GetSession(r.Context(), generic.SessionID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*session))
}

// CheckOut closes an open session.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if !h.decode(w, r, &req) {
		h.Metrics.Rejections.WithLabelValues("check_out", "validation").Inc()
		return
	}

	session, err := h.Sessions.CheckOut(r.Context(), generic.SessionID(chi.URLParam(r, "id")), req.toCapture())
	if err != nil {
		h.Metrics.Reject("check_out", err)
		writeDomainError(w, "Check-out refused", err)
		return
	}
	h.Metrics.CheckOuts.Inc()
	writeJSON(w, http.StatusOK, toSessionDTO(*session))
}

// CorrectTimes applies an administrative correction.
func (h *Handler) CorrectTimes(w http.ResponseWriter, r *http.Request) {
	var req CorrectTimesRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.Sessions.CorrectTimes(r.Context(), generic.SessionID(chi.URLParam(r, "id")), attendance.Correction{
		CheckIn:  req.CheckIn,
		CheckOut: req.CheckOut,
		Notes:    req.Notes,
	})
	if err != nil {
		h.Metrics.Reject("correct", err)
		writeDomainError(w, "Correction refused", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*session))
}

// DeleteSession removes a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := generic.SessionID(chi.URLParam(r, "id"))
	if err := h.Sessions.DeleteSession(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListWeekdayPolicies returns the whole working week, Monday first.
func (h *Handler) ListWeekdayPolicies(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.Policies.Schedule(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load policies", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Schedules.ToJSON("current", schedule))
}

// UpdateWeekdayPolicy replaces the policy of the weekday in the URL.
func (h *Handler) UpdateWeekdayPolicy(w http.ResponseWriter, r *http.Request) {
	var req factory.WeekdayPolicyJSON
	if !h.decode(w, r, &req) {
		return
	}
	weekday := chi.URLParam(r, "weekday")
	if req.Weekday != "" && !strings.EqualFold(req.Weekday, weekday) {
		writeDomainError(w, "Invalid policy", &attendance.ValidationError{
			Field:   "weekday",
			Message: fmt.Sprintf("body names %s but URL names %s", req.Weekday, weekday),
		})
		return
	}
	req.Weekday = weekday

	policy, err := h.Schedules.PolicyFromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}
	saved, err := h.Policies.Update(r.Context(), policy)
	if err != nil {
		writeDomainError(w, "Policy rejected", err)
		return
	}
	log.Printf("[API] Updated %s policy", saved.Weekday)
	writeJSON(w, http.StatusOK, factory.PolicyToJSON(*saved))
}

// ValidatePolicy checks a policy without saving it.
func (h *Handler) ValidatePolicy(w http.ResponseWriter, r *http.Request) {
	var req factory.WeekdayPolicyJSON
	if !h.decode(w, r, &req) {
		return
	}
	policy, err := h.Schedules.PolicyFromJSON(req)
	if err != nil {
		writeJSON(w, http.StatusOK, PolicyValidationDTO{Valid: false, Problems: []string{err.Error()}})
		return
	}

	err = h.Policies.Validate(policy)
	var perr *attendance.PolicyValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, PolicyValidationDTO{Valid: true})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusOK, PolicyValidationDTO{Valid: false, Problems: perr.Problems})
	default:
		writeJSON(w, http.StatusOK, PolicyValidationDTO{Valid: false, Problems: []string{err.Error()}})
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz pings every probe. Any failure turns the response into a 503.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Probes))
	for name, p := range h.Probes {
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's sentinel and copies the
// field and dates out of the structured attendance errors.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}

	status := http.StatusInternalServerError
	switch {
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	case generic.IsConflict(err):
		status = http.StatusConflict
	case generic.IsRetryable(err):
		status = http.StatusServiceUnavailable
	}

	var (
		verr   *attendance.ValidationError
		perr   *attendance.PolicyValidationError
		dup    *attendance.DuplicateSessionError
		open   *attendance.OpenSessionConflictError
		cross  *attendance.CrossDayCheckoutError
		closed *attendance.SessionClosedError
		nwd    *attendance.NonWorkingDayError
	)
	switch {
	case errors.As(err, &verr):
		resp.Field = verr.Field
	case errors.As(err, &perr):
		resp.Field = strings.ToLower(perr.Weekday.String())
	case errors.As(err, &dup):
		resp.Dates = []string{dup.Date.String()}
	case errors.As(err, &open):
		resp.Dates = []string{open.OpenDate.String(), open.RequestedDate.String()}
	case errors.As(err, &cross):
		resp.Dates = []string{cross.SessionDate.String(), cross.CheckoutDate.String()}
	case errors.As(err, &closed):
		resp.Dates = []string{closed.Date.String()}
	case errors.As(err, &nwd):
		resp.Dates = []string{nwd.Date.String()}
	}

	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s: %v", message, err)
	}
	writeJSON(w, status, resp)
}

// decode reads the JSON body into dst and runs the validator tags. It
// writes the 400 itself and reports whether the handler should go on.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeDomainError(w, "Invalid request", &attendance.ValidationError{
				Field:   fieldPath(fe.Namespace()),
				Message: fmt.Sprintf("failed %q check", fe.Tag()),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

// fieldPath strips the struct name from a validator namespace:
// CaptureRequest.location.address -> location.address.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func (h *Handler) loadWorker(ctx context.Context, id string) (*attendance.Worker, error) {
	worker, err := h.Store.GetWorker(ctx, generic.WorkerID(id))
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, &attendance.WorkerNotFoundError{WorkerID: generic.WorkerID(id)}
	}
	return worker, nil
}

func (h *Handler) today() generic.Date {
	return generic.DateIn(h.Clock.Now(), h.Location)
}

// monthParam reads ?month=YYYY-MM, defaulting to the current month.
func (h *Handler) monthParam(r *http.Request) (generic.Month, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return h.today().MonthOf(), nil
	}
	m, err := generic.ParseMonth(raw)
	if err != nil {
		return generic.Month{}, &attendance.ValidationError{Field: "month", Message: "must be YYYY-MM"}
	}
	return m, nil
}

// periodParam reads ?from=&to= (YYYY-MM-DD), defaulting to the current
// month's bounds.
func (h *Handler) periodParam(r *http.Request) (generic.Period, error) {
	current := h.today().MonthOf().Period()
	from, to := current.Start, current.End

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		d, err := generic.ParseDate(raw)
		if err != nil {
			return generic.Period{}, &attendance.ValidationError{Field: "from", Message: "must be YYYY-MM-DD"}
		}
		from = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := generic.ParseDate(raw)
		if err != nil {
			return generic.Period{}, &attendance.ValidationError{Field: "to", Message: "must be YYYY-MM-DD"}
		}
		to = d
	}
	return generic.NewPeriod(from, to)
}
