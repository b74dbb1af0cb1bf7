/*
Package generic provides the primitives shared by the hours engine and its
storage and transport adapters.

PURPOSE:
  Quantities, identifiers, calendar weeks and periods are used by every
  layer. Keeping them here lets the engine (hours/), the stores (store/*)
  and the HTTP adapter (api/) agree on one representation without importing
  each other.

KEY CONCEPTS IN THIS FILE (types.go):
  - Unit: What a reported value counts (hours or days)
  - Minutes: Integer duration used for slot arithmetic
  - EmployeeID and friends: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every hour figure, never float64
  2. Reproducibility: slot durations accumulate as integer minutes and are
     converted to hours only when a figure leaves the engine
  3. Type Safety: typed IDs prevent mixing employee and slot references

USAGE:
  worked := generic.Minutes(480).Hours() // 8 hours

SEE ALSO:
  - time.go: TimePoint, DayOfWeek, TimeOfDay
  - week.go: ISO calendar weeks and week ranges
  - period.go: Inclusive date periods
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// UNITS
// =============================================================================

// Unit names what a reported value counts.
type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

// MustParseDecimal parses s, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// MINUTES - Fixed-point duration
// =============================================================================

// Minutes is a whole-minute duration. Slot lengths are always whole minutes,
// so sums of Minutes are exact regardless of how many bookings are added.
type Minutes int64

var sixty = decimal.NewFromInt(60)

// Hours converts to decimal hours. This is the only place minutes become hours.
func (m Minutes) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(sixty)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ContractID string
type SlotID string
type BookingID string
type ExtraHoursID string
type CustomExtraHoursID string
type SpecialDayID string
type BillingPeriodID string

// AllEmployees selects every employee in collaborator queries that accept
// an employee-or-all argument.
const AllEmployees EmployeeID = ""
