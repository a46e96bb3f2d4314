/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Instrument: Prometheus latency per route pattern
  5. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /healthz              Store and cache connectivity
  /metrics              Prometheus scrape endpoint
  /api/workers/*        Workers, check-in, accruals
  /api/sessions/*       Check-out, corrections
  /api/policies/*       Working-hours policy per weekday
  /api/reports/*        KPI tiles, chart, trend, payroll table
  /api/payroll/*        Month close runs
  /api/scenarios/*      Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. origins lists
// the dashboards allowed to call the API from a browser.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.Metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Method("GET", "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)
			r.Get("/{id}", h.GetWorker)
			r.Put("/{id}/salary", h.UpdateSalary)
			r.Post("/{id}/check-in", h.CheckIn)
			r.Get("/{id}/sessions", h.ListWorkerSessions)
			r.Get("/{id}/accrual", h.GetWorkerAccrual)
		})

		// Session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/{id}", h.GetSession)
			r.Post("/{id}/check-out", h.CheckOut)
			r.Put("/{id}/times", h.CorrectTimes)
			r.Delete("/{id}", h.DeleteSession)
		})

		// Policy routes
		r.Route("/policies", func(r chi.Router) {
			r.Get("/weekdays", h.ListWeekdayPolicies)
			r.Put("/weekdays/{weekday}", h.UpdateWeekdayPolicy)
			r.Post("/validate", h.ValidatePolicy)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/kpi", h.GetKPITiles)
			r.Get("/chart", h.GetWorkerChart)
			r.Get("/trend", h.GetTrend)
			r.Get("/table", h.GetPayrollTable)
			r.Get("/table.xlsx", h.ExportPayrollTable)
			r.Get("/attendance", h.GetAttendanceSummary)
		})

		// Payroll routes
		r.Route("/payroll", func(r chi.Router) {
			r.Get("/runs", h.ListPayrollRuns)
			r.Post("/close", h.ClosePayrollMonth)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
