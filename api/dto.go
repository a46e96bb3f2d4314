/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the attendance and payroll model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry `validate` tags checked by go-playground/validator
  before the handler calls into the domain. The domain repeats the checks
  that matter for correctness (capture artifacts, time ranges), so a
  request that slips past the tags is still rejected there.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schedule.go: WeekdayPolicyJSON, reused for policy bodies
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

// =============================================================================
// WORKERS
// =============================================================================

type WorkerDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CreateWorkerRequest struct {
	ID            string          `json:"id,omitempty" validate:"omitempty,max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Email         string          `json:"email,omitempty" validate:"omitempty,email"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
}

type UpdateSalaryRequest struct {
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
}

func toWorkerDTO(w attendance.Worker) WorkerDTO {
	return WorkerDTO{
		ID:            string(w.ID),
		Name:          w.Name,
		Email:         w.Email,
		MonthlySalary: w.MonthlySalary,
		CreatedAt:     w.CreatedAt,
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

type LocationDTO struct {
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng     float64 `json:"lng" validate:"gte=-180,lte=180"`
	Address string  `json:"address" validate:"required"`
}

// CaptureRequest is the body of check-in and check-out. Both artifacts come
// from the capture step that happens on the client before the call.
type CaptureRequest struct {
	PhotoRef string       `json:"photo_ref" validate:"required"`
	Location *LocationDTO `json:"location" validate:"required"`
}

func (c CaptureRequest) toCapture() attendance.Capture {
	capture := attendance.Capture{PhotoRef: c.PhotoRef}
	if c.Location != nil {
		capture.Location = &attendance.Location{
			Lat:     c.Location.Lat,
			Lng:     c.Location.Lng,
			Address: c.Location.Address,
		}
	}
	return capture
}

// CorrectTimesRequest is an administrative correction. Omitting check_out
// keeps the stored one.
type CorrectTimesRequest struct {
	CheckIn  time.Time  `json:"check_in"`
	CheckOut *time.Time `json:"check_out,omitempty"`
	Notes    *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type SessionDTO struct {
	ID                 string               `json:"id"`
	WorkerID           string               `json:"worker_id"`
	Date               generic.Date         `json:"date"`
	State              string               `json:"state"`
	Status             string               `json:"status"`
	CheckInTime        time.Time            `json:"check_in_time"`
	CheckInPhotoRef    string               `json:"check_in_photo_ref"`
	CheckInLocation    *attendance.Location `json:"check_in_location,omitempty"`
	CheckOutTime       *time.Time           `json:"check_out_time,omitempty"`
	CheckOutPhotoRef   string               `json:"check_out_photo_ref,omitempty"`
	CheckOutLocation   *attendance.Location `json:"check_out_location,omitempty"`
	ActualWorkingHours *decimal.Decimal     `json:"actual_working_hours,omitempty"`
	Notes              string               `json:"notes,omitempty"`
	CorrectedAt        *time.Time           `json:"corrected_at,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

func toSessionDTO(s attendance.Session) SessionDTO {
	return SessionDTO{
		ID:                 string(s.ID),
		WorkerID:           string(s.WorkerID),
		Date:               s.Date,
		State:              string(s.State()),
		Status:             string(s.Status),
		CheckInTime:        s.CheckInTime,
		CheckInPhotoRef:    s.CheckInPhotoRef,
		CheckInLocation:    s.CheckInLocation,
		CheckOutTime:       s.CheckOutTime,
		CheckOutPhotoRef:   s.CheckOutPhotoRef,
		CheckOutLocation:   s.CheckOutLocation,
		ActualWorkingHours: s.ActualWorkingHours,
		Notes:              s.Notes,
		CorrectedAt:        s.CorrectedAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toSessionDTOs(ss []attendance.Session) []SessionDTO {
	dtos := make([]SessionDTO, len(ss))
	for i, s := range ss {
		dtos[i] = toSessionDTO(s)
	}
	return dtos
}

// =============================================================================
// ACCRUAL
// =============================================================================

type AccrualDTO struct {
	WorkerID      string          `json:"worker_id"`
	Month         generic.Month   `json:"month"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	DaysInMonth   int             `json:"days_in_month"`
	PerDiemRate   decimal.Decimal `json:"per_diem_rate"`
	EarnedDays    decimal.Decimal `json:"earned_days"`
	EarnedSalary  decimal.Decimal `json:"earned_salary"`
	Variance      decimal.Decimal `json:"variance"`
	HoursWorked   decimal.Decimal `json:"hours_worked"`
	Sessions      int             `json:"sessions"`
	StatusCounts  map[string]int  `json:"status_counts"`
}

func toAccrualDTO(a payroll.MonthlyAccrual) AccrualDTO {
	counts := make(map[string]int, len(a.StatusCounts))
	for s, n := range a.StatusCounts {
		counts[string(s)] = n
	}
	return AccrualDTO{
		WorkerID:      string(a.WorkerID),
		Month:         a.Month,
		MonthlySalary: a.MonthlySalary.Value,
		DaysInMonth:   a.DaysInMonth,
		PerDiemRate:   a.PerDiemRate.Value.Round(2),
		EarnedDays:    a.EarnedDays.Value,
		EarnedSalary:  a.EarnedSalary.Value,
		Variance:      a.Variance.Value,
		HoursWorked:   a.HoursWorked.Value,
		Sessions:      a.Sessions,
		StatusCounts:  counts,
	}
}

// =============================================================================
// POLICIES
// =============================================================================

type PolicyValidationDTO struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

type PayrollRunDTO struct {
	ID          string          `json:"id"`
	Month       generic.Month   `json:"month"`
	Status      string          `json:"status"`
	Workers     int             `json:"workers"`
	TotalEarned decimal.Decimal `json:"total_earned"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	Percentage  decimal.Decimal `json:"percentage"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func toPayrollRunDTO(r payroll.PayrollRun) PayrollRunDTO {
	return PayrollRunDTO{
		ID:          string(r.ID),
		Month:       r.Month,
		Status:      string(r.Status),
		Workers:     r.Workers,
		TotalEarned: r.TotalEarned,
		TotalBudget: r.TotalBudget,
		Percentage:  r.Percentage,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response. Field names the
// offending input on validation errors; Dates lists the calendar dates a
// rule violation is about (the open session date, the requested date).
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Field   string   `json:"field,omitempty"`
	Dates   []string `json:"dates,omitempty"`
}
