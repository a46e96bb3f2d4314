package attendance

import "github.com/shopspring/decimal"

// ClassifyStatus maps actual working hours onto a status under the weekday
// policy. Thresholds are evaluated highest first and the first match wins:
//
//	hours >= overtime  -> Overtime
//	hours >= full day  -> FullDay
//	hours >= half day  -> HalfDay
//	otherwise          -> Present
//
// Open sessions are never passed through here; they stay Present.
func ClassifyStatus(hours decimal.Decimal, p WeekdayPolicy) Status {
	switch {
	case hours.GreaterThanOrEqual(p.OvertimeHours):
		return StatusOvertime
	case hours.GreaterThanOrEqual(p.FullDayHours):
		return StatusFullDay
	case hours.GreaterThanOrEqual(p.HalfDayHours):
		return StatusHalfDay
	default:
		return StatusPresent
	}
}

// classify fills hours and status for a closed session.
func classify(s *Session, p WeekdayPolicy) {
	if s.CheckOutTime == nil {
		s.ActualWorkingHours = nil
		s.Status = StatusPresent
		return
	}
	hours := hoursWorked(s.CheckInTime, *s.CheckOutTime)
	s.ActualWorkingHours = &hours
	s.Status = ClassifyStatus(hours, p)
}
