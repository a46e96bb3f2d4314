package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Calendar date with no time-of-day
// =============================================================================

// Date is a civil calendar date. Attendance sessions are keyed by
// (worker, Date); the date a timestamp falls on depends on the location
// used to observe it, so conversions always take an explicit *time.Location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// DateIn returns the calendar date of t as observed in loc.
func DateIn(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(t.In(loc))
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight of the date in loc (UTC when loc is nil).
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) t() time.Time { return d.Time(time.UTC) }

// Comparison
func (d Date) Before(o Date) bool        { return d.t().Before(o.t()) }
func (d Date) After(o Date) bool         { return d.t().After(o.t()) }
func (d Date) Equal(o Date) bool         { return d == o }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date { return DateOf(d.t().AddDate(0, 0, n)) }

// Properties
func (d Date) Weekday() time.Weekday { return d.t().Weekday() }
func (d Date) IsZero() bool          { return d == Date{} }
func (d Date) MonthOf() Month        { return Month{Year: d.Year, Month: d.Month} }

func (d Date) String() string {
	return d.t().Format(DateLayout)
}

// MarshalText renders the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to Date) int { return int(to.t().Sub(from.t()).Hours() / 24) }

var secondsPerHour = decimal.NewFromInt(3600)

// HoursBetween returns the elapsed hours between two instants, truncated to
// four decimal places. Truncation never promotes a value across a threshold.
func HoursBetween(from, to time.Time) decimal.Decimal {
	secs := decimal.NewFromInt(int64(to.Sub(from) / time.Second))
	return secs.Div(secondsPerHour).Truncate(4)
}
