// Package attendance implements the attendance session lifecycle, the
// per-weekday working-hours policy and the status classifier.
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPresent  Status = "present"
	StatusAbsent   Status = "absent"
	StatusFullDay  Status = "full_day"
	StatusHalfDay  Status = "half_day"
	StatusOvertime Status = "overtime"
)

// AllStatuses lists statuses in classification order, lowest first.
var AllStatuses = []Status{StatusAbsent, StatusPresent, StatusHalfDay, StatusFullDay, StatusOvertime}

// Rank orders statuses Present < HalfDay < FullDay < Overtime. Absent and
// unknown labels rank below everything.
func (s Status) Rank() int {
	switch s {
	case StatusPresent:
		return 0
	case StatusHalfDay:
		return 1
	case StatusFullDay:
		return 2
	case StatusOvertime:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusFullDay, StatusHalfDay, StatusOvertime:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown attendance status %q", s)
	}
	return st, nil
}

// =============================================================================
// CAPTURE - Artifact handed over by the camera/geolocation collaborator
// =============================================================================

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Capture is the immutable result of the external capture phase. The engine
// only checks that both parts are present; it never inspects the photo or
// geocodes the address.
type Capture struct {
	PhotoRef string
	Location *Location
}

// =============================================================================
// SESSION - One worker, one calendar date
// =============================================================================

type SessionState string

const (
	StateOpen      SessionState = "open"
	StateClosed    SessionState = "closed"
	StateCorrected SessionState = "corrected"
)

type Session struct {
	ID       generic.SessionID
	WorkerID generic.WorkerID
	Date     generic.Date

	CheckInTime     time.Time
	CheckInPhotoRef string
	CheckInLocation *Location

	CheckOutTime     *time.Time
	CheckOutPhotoRef string
	CheckOutLocation *Location

	Status             Status
	ActualWorkingHours *decimal.Decimal
	Notes              string

	CorrectedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s Session) IsOpen() bool { return s.CheckOutTime == nil }

// State derives the lifecycle state from the stored fields.
func (s Session) State() SessionState {
	switch {
	case s.CheckOutTime == nil:
		return StateOpen
	case s.CorrectedAt != nil:
		return StateCorrected
	default:
		return StateClosed
	}
}

// Hours returns the actual working hours, zero for open sessions.
func (s Session) Hours() decimal.Decimal {
	if s.ActualWorkingHours == nil {
		return decimal.Zero
	}
	return *s.ActualWorkingHours
}

// =============================================================================
// WORKER
// =============================================================================

type Worker struct {
	ID            generic.WorkerID
	Name          string
	Email         string
	MonthlySalary decimal.Decimal
	CreatedAt     time.Time
}
