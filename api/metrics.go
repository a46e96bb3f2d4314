package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/attendance-engine/generic"
)

// Metrics holds the Prometheus collectors. Each instance has its own
// registry so tests can build as many routers as they like.
type Metrics struct {
	Registry *prometheus.Registry

	CheckIns            prometheus.Counter
	CheckOuts           prometheus.Counter
	Rejections          *prometheus.CounterVec
	AccrualComputations prometheus.Counter
	CacheLookups        *prometheus.CounterVec
	PayrollRuns         *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CheckIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_check_ins_total",
			Help: "Successful check-ins.",
		}),
		CheckOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_check_outs_total",
			Help: "Successful check-outs.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_rejections_total",
			Help: "Attendance actions refused, by operation and reason.",
		}, []string{"operation", "reason"}),
		AccrualComputations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payroll_accrual_computations_total",
			Help: "Monthly accruals computed from sessions.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_accrual_cache_lookups_total",
			Help: "Accrual cache lookups by result.",
		}, []string{"result"}),
		PayrollRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_runs_total",
			Help: "Payroll month closes by final status.",
		}, []string{"status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.Registry.MustRegister(
		m.CheckIns,
		m.CheckOuts,
		m.Rejections,
		m.AccrualComputations,
		m.CacheLookups,
		m.PayrollRuns,
		m.RequestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveAccrual is wired into payroll.Engine.Observe.
func (m *Metrics) ObserveAccrual(cached bool) {
	if cached {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
	m.AccrualComputations.Inc()
}

// Reject counts a refused attendance action under its reason.
func (m *Metrics) Reject(operation string, err error) {
	m.Rejections.WithLabelValues(operation, rejectionReason(err)).Inc()
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, generic.ErrDuplicateSession):
		return "duplicate_session"
	case errors.Is(err, generic.ErrOpenSessionConflict):
		return "open_session"
	case errors.Is(err, generic.ErrCrossDayCheckout):
		return "cross_day_checkout"
	case errors.Is(err, generic.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, generic.ErrNonWorkingDay):
		return "non_working_day"
	case errors.Is(err, generic.ErrInvalidTimeRange):
		return "invalid_time_range"
	case errors.Is(err, generic.ErrValidation):
		return "validation"
	case generic.IsNotFound(err):
		return "not_found"
	case generic.IsRetryable(err):
		return "store_unavailable"
	default:
		return "internal"
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Instrument records request latency under the matched chi route pattern,
// so /api/workers/{id} is one series rather than one per worker.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
