package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// PolicyValidator inspects a weekday policy before it is saved and returns
// the problems it finds. Validators are pluggable so the settings screen can
// opt into stricter rules.
type PolicyValidator func(p WeekdayPolicy) []string

// ValidateThresholdOrdering requires half day <= full day <= overtime.
// The classifier evaluates thresholds highest first and silently
// misclassifies out-of-order configurations.
func ValidateThresholdOrdering(p WeekdayPolicy) []string {
	var problems []string
	if p.HalfDayHours.GreaterThan(p.FullDayHours) {
		problems = append(problems, fmt.Sprintf("half_day_hours (%s) exceeds full_day_hours (%s)", p.HalfDayHours, p.FullDayHours))
	}
	if p.FullDayHours.GreaterThan(p.OvertimeHours) {
		problems = append(problems, fmt.Sprintf("full_day_hours (%s) exceeds overtime_hours (%s)", p.FullDayHours, p.OvertimeHours))
	}
	return problems
}

// validateFormat holds the checks that are always applied.
func validateFormat(p WeekdayPolicy) []string {
	var problems []string
	if p.Weekday < time.Sunday || p.Weekday > time.Saturday {
		problems = append(problems, fmt.Sprintf("weekday %d out of range", p.Weekday))
	}
	if p.FullDayHours.IsNegative() {
		problems = append(problems, "full_day_hours must not be negative")
	}
	if p.HalfDayHours.IsNegative() {
		problems = append(problems, "half_day_hours must not be negative")
	}
	if p.OvertimeHours.IsNegative() {
		problems = append(problems, "overtime_hours must not be negative")
	}
	for _, t := range []TimeOfDay{p.NominalStart, p.NominalEnd} {
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			problems = append(problems, fmt.Sprintf("invalid time of day %s", t))
		}
	}
	if p.IsWorkingDay && p.NominalEnd.Minutes() <= p.NominalStart.Minutes() {
		problems = append(problems, fmt.Sprintf("nominal_end (%s) must be after nominal_start (%s)", p.NominalEnd, p.NominalStart))
	}
	return problems
}

// =============================================================================
// POLICY SERVICE
// =============================================================================

// PolicyService is the settings update path for the working-hours policy.
type PolicyService struct {
	Store      PolicyStore
	Validators []PolicyValidator
	Clock      generic.Clock
}

func NewPolicyService(store PolicyStore, clock generic.Clock, validators ...PolicyValidator) *PolicyService {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &PolicyService{Store: store, Validators: validators, Clock: clock}
}

// Validate runs every check without saving.
func (s *PolicyService) Validate(p WeekdayPolicy) error {
	problems := validateFormat(p)
	for _, v := range s.Validators {
		problems = append(problems, v(p)...)
	}
	if len(problems) > 0 {
		return &PolicyValidationError{Weekday: p.Weekday, Problems: problems}
	}
	return nil
}

// Update validates and saves the policy, bumping the schedule version.
func (s *PolicyService) Update(ctx context.Context, p WeekdayPolicy) (*WeekdayPolicy, error) {
	if err := s.Validate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.Clock.Now()
	if err := s.Store.SaveWeekdayPolicy(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save %s policy: %w", p.Weekday, err)
	}
	return &p, nil
}

func (s *PolicyService) Schedule(ctx context.Context) (Schedule, error) {
	return s.Store.Schedule(ctx)
}

func (s *PolicyService) Get(ctx context.Context, wd time.Weekday) (*WeekdayPolicy, error) {
	p, err := s.Store.GetWeekdayPolicy(ctx, wd)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrPolicyNotFound, wd)
	}
	return p, nil
}
