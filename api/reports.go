package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/report"
)

// =============================================================================
// REPORT HANDLERS
// =============================================================================
//   GET  /api/reports/kpi?month=              KPI tiles
//   GET  /api/reports/chart?month=            Per-worker earned vs budget
//   GET  /api/reports/trend?month=&months=    Team totals for the last n months
//   GET  /api/reports/table?month=            Payroll table
//   GET  /api/reports/table.xlsx?month=       Payroll table as a spreadsheet
//   GET  /api/reports/attendance?from=&to=    Status counts and derived absences
//
// Every figure comes from the same Projector, so the tiles, the chart and
// the table always agree for a month.

const maxTrendMonths = 36

func (h *Handler) GetKPITiles(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthParam(r)
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}
	tiles, err := h.Projector.KPITiles(r.Context(), month)
	if err != nil {
		writeDomainError(w, "Failed to compute KPIs", err)
		return
	}
	writeJSON(w, http.StatusOK, tiles)
}

func (h *Handler) GetWorkerChart(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthParam(r)
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}
	chart, err := h.Projector.WorkerChart(r.Context(), month)
	if err != nil {
		writeDomainError(w, "Failed to compute chart", err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

// GetTrend returns ?months= (default 6) points ending at ?month=.
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthParam(r)
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}
	n := 6
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTrendMonths {
			writeDomainError(w, "Invalid months", &attendance.ValidationError{
				Field:   "months",
				Message: fmt.Sprintf("must be between 1 and %d", maxTrendMonths),
			})
			return
		}
	}
	points, err := h.Projector.Trend(r.Context(), month, n)
	if err != nil {
		writeDomainError(w, "Failed to compute trend", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *Handler) GetPayrollTable(w http.ResponseWriter, r *http.Request) {
	table, ok := h.payrollTable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// ExportPayrollTable streams the payroll table as an XLSX workbook.
func (h *Handler) ExportPayrollTable(w http.ResponseWriter, r *http.Request) {
	table, ok := h.payrollTable(w, r)
	if !ok {
		return
	}

	// Render fully before writing headers so a failure can still be a 500.
	var buf bytes.Buffer
	if err := report.WriteTableXLSX(&buf, table); err != nil {
		writeDomainError(w, "Failed to render spreadsheet", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payroll-%s.xlsx"`, table.Month))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) GetAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodParam(r)
	if err != nil {
		writeDomainError(w, "Invalid period", err)
		return
	}
	summary, err := h.Projector.AttendanceSummary(r.Context(), period)
	if err != nil {
		writeDomainError(w, "Failed to summarize attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) payrollTable(w http.ResponseWriter, r *http.Request) (*report.PayrollTable, bool) {
	month, err := h.monthParam(r)
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return nil, false
	}
	table, err := h.Projector.PayrollTable(r.Context(), month)
	if err != nil {
		writeDomainError(w, "Failed to compute payroll table", err)
		return nil, false
	}
	return table, true
}

// =============================================================================
// PAYROLL RUN HANDLERS
// =============================================================================

// ListPayrollRuns returns every recorded month close, oldest first.
func (h *Handler) ListPayrollRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListPayrollRuns(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list payroll runs", err)
		return
	}
	dtos := make([]PayrollRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toPayrollRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClosePayrollMonth closes ?month= (default: the previous month). Only
// finished months can be closed; closing one twice returns the first run.
func (h *Handler) ClosePayrollMonth(w http.ResponseWriter, r *http.Request) {
	current := h.today().MonthOf()
	month := current.AddMonths(-1)
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := h.monthParam(r)
		if err != nil {
			writeDomainError(w, "Invalid month", err)
			return
		}
		month = m
	}
	if !month.Before(current) {
		writeDomainError(w, "Month not finished", &attendance.ValidationError{
			Field:   "month",
			Message: fmt.Sprintf("%s has not ended yet", month),
		})
		return
	}

	run, err := h.closeMonth(r.Context(), month)
	if err != nil {
		writeDomainError(w, "Failed to close payroll month", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollRunDTO(*run))
}

func (h *Handler) closeMonth(ctx context.Context, month generic.Month) (*payroll.PayrollRun, error) {
	run, err := h.Engine.CloseMonth(ctx, h.Store, month, h.Clock.Now())
	if run != nil {
		h.Metrics.PayrollRuns.WithLabelValues(string(run.Status)).Inc()
	}
	return run, err
}
