/*
policy.go - Per-weekday working-hours policy

PURPOSE:
  One WeekdayPolicy per weekday decides whether the day is a working day,
  its nominal start/end time, and the three thresholds the classifier
  compares actual hours against. The seven policies form a Schedule.

THRESHOLDS:
  halfDayHours <= fullDayHours <= overtimeHours is the expected ordering.
  The classifier assumes it but the store does not enforce it; the
  ValidateThresholdOrdering hook lets a caller opt into enforcing it.

VERSIONING:
  Every saved change bumps Schedule.Version. Accrual caches key on the
  version so a policy edit never serves figures computed under the old
  thresholds.

EXAMPLE:
  p := attendance.WeekdayPolicy{
      Weekday:       time.Monday,
      IsWorkingDay:  true,
      NominalStart:  attendance.MustParseTimeOfDay("09:00"),
      NominalEnd:    attendance.MustParseTimeOfDay("17:00"),
      FullDayHours:  decimal.NewFromInt(8),
      HalfDayHours:  decimal.NewFromInt(4),
      OvertimeHours: decimal.NewFromInt(10),
  }
  p.NominalWorkingHours() // 8

SEE ALSO:
  - classifier.go: Uses the thresholds
  - policy_service.go: Update path and validation hooks
  - factory/schedule.go: JSON form of a schedule
*/
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// TIME OF DAY
// =============================================================================

type TimeOfDay struct {
	Hour   int
	Minute int
}

const timeOfDayLayout = "15:04"

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(timeOfDayLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (use HH:MM): %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On returns the instant this time of day falls on the given date in loc.
func (t TimeOfDay) On(d generic.Date, loc *time.Location) time.Time {
	return d.Time(loc).Add(time.Duration(t.Minutes()) * time.Minute)
}

// =============================================================================
// WEEKDAY POLICY
// =============================================================================

type WeekdayPolicy struct {
	Weekday       time.Weekday
	IsWorkingDay  bool
	NominalStart  TimeOfDay
	NominalEnd    TimeOfDay
	FullDayHours  decimal.Decimal
	HalfDayHours  decimal.Decimal
	OvertimeHours decimal.Decimal
	UpdatedAt     time.Time
}

var sixty = decimal.NewFromInt(60)

// NominalWorkingHours is end - start in hours; zero on non-working days.
func (p WeekdayPolicy) NominalWorkingHours() decimal.Decimal {
	if !p.IsWorkingDay {
		return decimal.Zero
	}
	mins := p.NominalEnd.Minutes() - p.NominalStart.Minutes()
	if mins <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(mins)).Div(sixty)
}

// =============================================================================
// SCHEDULE - The seven weekday policies
// =============================================================================

type Schedule struct {
	Policies [7]WeekdayPolicy // indexed by time.Weekday
	Version  int
}

func NewSchedule(policies []WeekdayPolicy, version int) Schedule {
	s := Schedule{Version: version}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		s.Policies[wd] = WeekdayPolicy{Weekday: wd}
	}
	for _, p := range policies {
		s.Policies[p.Weekday] = p
	}
	return s
}

func (s Schedule) For(wd time.Weekday) WeekdayPolicy { return s.Policies[wd] }

func (s Schedule) ForDate(d generic.Date) WeekdayPolicy { return s.Policies[d.Weekday()] }

func (s Schedule) IsWorkingDay(d generic.Date) bool { return s.ForDate(d).IsWorkingDay }

// WorkingDaysIn counts the working days in period.
func (s Schedule) WorkingDaysIn(period generic.Period) int {
	n := 0
	for _, d := range period.Days() {
		if s.IsWorkingDay(d) {
			n++
		}
	}
	return n
}

// List returns the policies Monday first.
func (s Schedule) List() []WeekdayPolicy {
	out := make([]WeekdayPolicy, 0, 7)
	for _, wd := range MondayFirst {
		out = append(out, s.Policies[wd])
	}
	return out
}

var MondayFirst = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// DefaultSchedule is what a fresh store is seeded with: Monday to Friday,
// 09:00-17:00, full day 8h, half day 4h, overtime 10h.
func DefaultSchedule() Schedule {
	policies := make([]WeekdayPolicy, 0, 7)
	for _, wd := range MondayFirst {
		policies = append(policies, WeekdayPolicy{
			Weekday:       wd,
			IsWorkingDay:  wd != time.Saturday && wd != time.Sunday,
			NominalStart:  TimeOfDay{Hour: 9},
			NominalEnd:    TimeOfDay{Hour: 17},
			FullDayHours:  decimal.NewFromInt(8),
			HalfDayHours:  decimal.NewFromInt(4),
			OvertimeHours: decimal.NewFromInt(10),
		})
	}
	return NewSchedule(policies, 1)
}

// ParseWeekday accepts English weekday names ("monday", "Mon") or 0-6.
func ParseWeekday(s string) (time.Weekday, error) {
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return time.Weekday(s[0] - '0'), nil
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := wd.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
