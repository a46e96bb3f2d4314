/*
Package generic provides the domain-agnostic building blocks of the engine.

PURPOSE:
  This package contains the small vocabulary every other package shares:
  quantities with units, identifiers, calendar dates, month periods, the
  clock abstraction, a TTL cache, and the error taxonomy. Nothing in here
  knows what a check-in or a salary is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 7.5 hours, 25 days, 30000 currency)
  - WorkerID / SessionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so payroll figures never drift
  2. Type Safety: Strong typing for IDs prevents mixing worker/session IDs
  3. Determinism: Same inputs always produce the same decimal outputs

USAGE:
  earned := generic.NewAmount(25, generic.UnitDays)
  salary := generic.NewMoney(decimal.NewFromInt(30000))

SEE ALSO:
  - time.go: Calendar dates and time points
  - period.go: Month periods and day counting
  - errors.go: Sentinel errors and helpers
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays     Unit = "days"
	UnitHours    Unit = "hours"
	UnitCurrency Unit = "currency"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func NewMoney(value decimal.Decimal) Amount {
	return Amount{Value: value, Unit: UnitCurrency}
}

func ZeroAmount(unit Unit) Amount {
	return Amount{Value: decimal.Zero, Unit: unit}
}

// FieldParser decodes stored text columns and keeps the first failure, so a
// scan loop can parse every field and check Err once.
type FieldParser struct {
	Record string
	Err    error
}

func (p *FieldParser) Decimal(field, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.fail(field, s, err)
		return decimal.Zero
	}
	return d
}

// Time parses an RFC 3339 timestamp.
func (p *FieldParser) Time(field, s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		p.fail(field, s, err)
	}
	return t
}

func (p *FieldParser) fail(field, s string, err error) {
	if p.Err == nil {
		p.Err = fmt.Errorf("%s: corrupt %s %q: %w", p.Record, field, s, err)
	}
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Unit == b.Unit && a.Value.Equal(b.Value) }

// Div divides by s, yielding zero instead of panicking when s is zero.
func (a Amount) Div(s decimal.Decimal) Amount {
	if s.IsZero() {
		return a.Zero()
	}
	return Amount{Value: a.Value.Div(s), Unit: a.Unit}
}

// Round rounds half away from zero to the given number of places.
func (a Amount) Round(places int32) Amount {
	return Amount{Value: a.Value.Round(places), Unit: a.Unit}
}

// Float returns the value as float64 for JSON/DTO rendering only.
func (a Amount) Float() float64 {
	f, _ := a.Value.Float64()
	return f
}

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Unit)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type SessionID string
type RunID string
