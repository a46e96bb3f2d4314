package factory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

func TestParseSchedule_StandardWeek(t *testing.T) {
	f := NewScheduleFactory()

	policies, err := f.ParseSchedule(StandardWeekJSON())
	require.NoError(t, err)
	require.Len(t, policies, 7)

	assert.Equal(t, time.Monday, policies[0].Weekday)
	assert.True(t, policies[0].IsWorkingDay)
	assert.Equal(t, "8", policies[0].FullDayHours.String())
	assert.Equal(t, "17:00", policies[0].NominalEnd.String())

	// Weekdays absent from the document are non-working.
	assert.Equal(t, time.Sunday, policies[6].Weekday)
	assert.False(t, policies[6].IsWorkingDay)
}

func TestParseSchedule_SixDayWeek(t *testing.T) {
	policies, err := NewScheduleFactory().ParseSchedule(SixDayWeekJSON())
	require.NoError(t, err)

	sat := policies[5]
	assert.Equal(t, time.Saturday, sat.Weekday)
	assert.True(t, sat.IsWorkingDay)
	assert.Equal(t, "4", sat.NominalWorkingHours().String())
	assert.Equal(t, "2", sat.HalfDayHours.String())
}

func TestParseSchedule_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"weekdays": [`},
		{"unknown weekday", `{"weekdays": [{"weekday": "funday"}]}`},
		{"bad time", `{"weekdays": [{"weekday": "monday", "nominal_start": "9am"}]}`},
		{"duplicate", `{"weekdays": [{"weekday": "monday"}, {"weekday": "Mon"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduleFactory().ParseSchedule(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestPolicyFromJSON_AcceptsStringHours(t *testing.T) {
	var wj WeekdayPolicyJSON
	require.NoError(t, json.Unmarshal([]byte(`{"weekday":"friday","is_working_day":true,"full_day_hours":"7.5","half_day_hours":3.75,"overtime_hours":9}`), &wj))

	p, err := NewScheduleFactory().PolicyFromJSON(wj)
	require.NoError(t, err)
	assert.Equal(t, time.Friday, p.Weekday)
	assert.Equal(t, "7.5", p.FullDayHours.String())
	assert.Equal(t, "3.75", p.HalfDayHours.String())
	assert.Equal(t, "09:00", p.NominalStart.String())
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewScheduleFactory()
	sj := f.ToJSON("default", attendance.DefaultSchedule())

	require.Len(t, sj.Weekdays, 7)
	assert.Equal(t, "monday", sj.Weekdays[0].Weekday)
	assert.Equal(t, 1, sj.Version)

	policies, err := f.FromJSON(sj)
	require.NoError(t, err)
	assert.Equal(t, attendance.DefaultSchedule().List(), policies)
}

func TestApply_SavesThroughPolicyService(t *testing.T) {
	// GIVEN: A fresh store and the six-day week
	mem := store.NewMemory()
	svc := attendance.NewPolicyService(mem, nil)
	f := NewScheduleFactory()
	policies, err := f.ParseSchedule(SixDayWeekJSON())
	require.NoError(t, err)

	// WHEN
	require.NoError(t, f.Apply(context.Background(), svc, policies))

	// THEN: Saturday is now a working day
	sat, err := svc.Get(context.Background(), time.Saturday)
	require.NoError(t, err)
	assert.True(t, sat.IsWorkingDay)
}

func TestApply_StopsAtRejectedWeekday(t *testing.T) {
	mem := store.NewMemory()
	svc := attendance.NewPolicyService(mem, nil, attendance.ValidateThresholdOrdering)
	f := NewScheduleFactory()

	policies, err := f.ParseSchedule(`{"weekdays": [{"weekday": "monday", "is_working_day": true, "full_day_hours": 8, "half_day_hours": 9, "overtime_hours": 10}]}`)
	require.NoError(t, err)

	err = f.Apply(context.Background(), svc, policies)
	var pve *attendance.PolicyValidationError
	require.ErrorAs(t, err, &pve)
	assert.Equal(t, time.Monday, pve.Weekday)
}
