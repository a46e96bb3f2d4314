/*
Package factory provides JSON to Go working-hours schedule conversion.

PURPOSE:
  Converts JSON schedule definitions into attendance.WeekdayPolicy values
  and back. HR can keep the working week in a file, load it at startup or
  push it through the settings screen, without code changes.

JSON SCHEMA:
  {
    "name": "standard",
    "weekdays": [
      {
        "weekday": "monday",
        "is_working_day": true,
        "nominal_start": "09:00",
        "nominal_end": "17:00",
        "full_day_hours": 8,
        "half_day_hours": 4,
        "overtime_hours": 10
      }
    ]
  }

DEFAULTS:
  Weekdays missing from the document are non-working with zero thresholds.
  Times default to 09:00-17:00 when omitted.

USAGE:
  f := factory.NewScheduleFactory()
  policies, err := f.ParseSchedule(factory.StandardWeekJSON())
  err = f.Apply(ctx, policyService, policies)

SEE ALSO:
  - attendance/policy.go: WeekdayPolicy and Schedule
  - attendance/policy_service.go: Validation on save
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a working week.
type ScheduleJSON struct {
	Name     string              `json:"name,omitempty"`
	Version  int                 `json:"version,omitempty"`
	Weekdays []WeekdayPolicyJSON `json:"weekdays"`
}

// WeekdayPolicyJSON is one weekday's policy. Hours are decimals, so both
// 7.5 and "7.5" are accepted.
type WeekdayPolicyJSON struct {
	Weekday       string          `json:"weekday"`
	IsWorkingDay  bool            `json:"is_working_day"`
	NominalStart  string          `json:"nominal_start,omitempty"`
	NominalEnd    string          `json:"nominal_end,omitempty"`
	FullDayHours  decimal.Decimal `json:"full_day_hours"`
	HalfDayHours  decimal.Decimal `json:"half_day_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts JSON schedules to Go structs.
type ScheduleFactory struct{}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseSchedule parses a JSON document into seven weekday policies, Monday
// first.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) ([]attendance.WeekdayPolicy, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse schedule JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts ScheduleJSON into a full week of policies.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) ([]attendance.WeekdayPolicy, error) {
	seen := make(map[time.Weekday]bool)
	var policies []attendance.WeekdayPolicy
	for _, wj := range sj.Weekdays {
		p, err := f.PolicyFromJSON(wj)
		if err != nil {
			return nil, err
		}
		if seen[p.Weekday] {
			return nil, fmt.Errorf("weekday %s listed twice", p.Weekday)
		}
		seen[p.Weekday] = true
		policies = append(policies, p)
	}
	return attendance.NewSchedule(policies, sj.Version).List(), nil
}

// PolicyFromJSON converts a single weekday entry.
func (f *ScheduleFactory) PolicyFromJSON(wj WeekdayPolicyJSON) (attendance.WeekdayPolicy, error) {
	wd, err := attendance.ParseWeekday(wj.Weekday)
	if err != nil {
		return attendance.WeekdayPolicy{}, err
	}
	start, err := parseTimeOr(wj.NominalStart, "09:00")
	if err != nil {
		return attendance.WeekdayPolicy{}, fmt.Errorf("%s nominal_start: %w", wd, err)
	}
	end, err := parseTimeOr(wj.NominalEnd, "17:00")
	if err != nil {
		return attendance.WeekdayPolicy{}, fmt.Errorf("%s nominal_end: %w", wd, err)
	}
	return attendance.WeekdayPolicy{
		Weekday:       wd,
		IsWorkingDay:  wj.IsWorkingDay,
		NominalStart:  start,
		NominalEnd:    end,
		FullDayHours:  wj.FullDayHours,
		HalfDayHours:  wj.HalfDayHours,
		OvertimeHours: wj.OvertimeHours,
	}, nil
}

// ToJSON converts a Schedule to ScheduleJSON, Monday first.
func (f *ScheduleFactory) ToJSON(name string, s attendance.Schedule) ScheduleJSON {
	sj := ScheduleJSON{Name: name, Version: s.Version}
	for _, p := range s.List() {
		sj.Weekdays = append(sj.Weekdays, PolicyToJSON(p))
	}
	return sj
}

// PolicyToJSON converts one weekday policy.
func PolicyToJSON(p attendance.WeekdayPolicy) WeekdayPolicyJSON {
	wj := WeekdayPolicyJSON{
		Weekday:       strings.ToLower(p.Weekday.String()),
		IsWorkingDay:  p.IsWorkingDay,
		NominalStart:  p.NominalStart.String(),
		NominalEnd:    p.NominalEnd.String(),
		FullDayHours:  p.FullDayHours,
		HalfDayHours:  p.HalfDayHours,
		OvertimeHours: p.OvertimeHours,
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		wj.UpdatedAt = &t
	}
	return wj
}

// PolicyUpdater is the save path a parsed schedule is pushed through.
type PolicyUpdater interface {
	Update(ctx context.Context, p attendance.WeekdayPolicy) (*attendance.WeekdayPolicy, error)
}

// Apply saves every policy through the updater, so the usual validation
// runs. It stops at the first rejected weekday.
func (f *ScheduleFactory) Apply(ctx context.Context, u PolicyUpdater, policies []attendance.WeekdayPolicy) error {
	for _, p := range policies {
		if _, err := u.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// PRESET SCHEDULES
// =============================================================================

// StandardWeekJSON is Monday to Friday, 09:00-17:00, 8/4/10 hours.
func StandardWeekJSON() string {
	return weekJSON("standard", []string{"monday", "tuesday", "wednesday", "thursday", "friday"}, nil)
}

// SixDayWeekJSON adds a short Saturday (09:00-13:00, 4/2/6 hours) to the
// standard week.
func SixDayWeekJSON() string {
	saturday := map[string]interface{}{
		"weekday":        "saturday",
		"is_working_day": true,
		"nominal_start":  "09:00",
		"nominal_end":    "13:00",
		"full_day_hours": 4,
		"half_day_hours": 2,
		"overtime_hours": 6,
	}
	return weekJSON("six_day", []string{"monday", "tuesday", "wednesday", "thursday", "friday"}, saturday)
}

func weekJSON(name string, working []string, extra map[string]interface{}) string {
	var weekdays []map[string]interface{}
	for _, wd := range working {
		weekdays = append(weekdays, map[string]interface{}{
			"weekday":        wd,
			"is_working_day": true,
			"nominal_start":  "09:00",
			"nominal_end":    "17:00",
			"full_day_hours": 8,
			"half_day_hours": 4,
			"overtime_hours": 10,
		})
	}
	if extra != nil {
		weekdays = append(weekdays, extra)
	}
	b, _ := json.MarshalIndent(map[string]interface{}{
		"name":     name,
		"weekdays": weekdays,
	}, "", "  ")
	return string(b)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseTimeOr(s, def string) (attendance.TimeOfDay, error) {
	if s == "" {
		s = def
	}
	return attendance.ParseTimeOfDay(s)
}
