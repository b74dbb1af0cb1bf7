/*
Package hours computes balance hours and carryover for employees.

PURPOSE:
  Merges four independently evolving sources (work contracts, slot based
  bookings, categorized extra hours and calendar overrides) into per-day
  figures, then answers "how far above or below the contract is this
  employee" for any period, seeded by the previous year's carryover.

COMPONENTS (leaves first):
  contract.go   Contract Resolver
  expected.go   Expected-Hours Calculator
  actual.go     Actual-Hours Aggregator
  extra.go      Extra-Hours Aggregator
  balance.go    Balance Calculator (value types in valuetype.go)
  carryover.go  Carryover Manager
  billing.go    Billing-Period Snapshot Builder
  engine.go     Entry points and transaction scoping

KEY CONCEPTS IN THIS FILE (model.go):
  - Contract: weekly expected hours over a window of ISO weeks
  - Slot / Booking: realized work, duration taken from the slot
  - ExtraHours / CustomExtraHours: categorized adjustments and absences
  - SpecialDay: holiday or short day override for one date
  - Carryover: ending balance of a year
  - BillingPeriod / SnapshotRow: frozen per-employee figures

SOFT DELETES:
  Every source row carries a Deleted timestamp. Stores filter deleted rows
  out of list queries and the aggregators skip any that slip through.

SEE ALSO:
  - store.go: Collaborator interfaces
  - generic/week.go: Week arithmetic
*/
package hours

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// CONTRACT
// =============================================================================

// Contract is an employee's work detail record. The window is inclusive on
// both ends and bounded at day level by FromDay and ToDay.
type Contract struct {
	ID         generic.ContractID
	EmployeeID generic.EmployeeID

	FromYear int
	FromWeek int
	FromDay  generic.DayOfWeek
	ToYear   int
	ToWeek   int
	ToDay    generic.DayOfWeek

	ExpectedHours   decimal.Decimal
	WorkdaysPerWeek int

	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool

	VacationDays int

	CreatedAt time.Time
	Deleted   *time.Time
}

func (c Contract) IsDeleted() bool { return c.Deleted != nil }

func (c Contract) FromWeekValue() generic.Week { return generic.NewWeek(c.FromYear, c.FromWeek) }
func (c Contract) ToWeekValue() generic.Week   { return generic.NewWeek(c.ToYear, c.ToWeek) }

// Weeks returns the validity window as a week range.
func (c Contract) Weeks() generic.WeekRange {
	return generic.WeekRange{From: c.FromWeekValue(), To: c.ToWeekValue()}
}

func (c Contract) firstDay() generic.DayOfWeek {
	if c.FromDay.Valid() {
		return c.FromDay
	}
	return generic.Monday
}

func (c Contract) lastDay() generic.DayOfWeek {
	if c.ToDay.Valid() {
		return c.ToDay
	}
	return generic.Sunday
}

// StartDate is the first day the contract applies.
func (c Contract) StartDate() generic.TimePoint { return c.FromWeekValue().Day(c.firstDay()) }

// EndDate is the last day the contract applies.
func (c Contract) EndDate() generic.TimePoint { return c.ToWeekValue().Day(c.lastDay()) }

// CoversWeek uses the linearized week key.
func (c Contract) CoversWeek(w generic.Week) bool { return c.Weeks().Contains(w) }

// CoversDay applies the day-level boundaries of the first and last week.
func (c Contract) CoversDay(d generic.TimePoint) bool {
	return d.AfterOrEqual(c.StartDate()) && d.BeforeOrEqual(c.EndDate())
}

// Active reports the weekday flag.
func (c Contract) Active(d generic.DayOfWeek) bool {
	switch d {
	case generic.Monday:
		return c.Monday
	case generic.Tuesday:
		return c.Tuesday
	case generic.Wednesday:
		return c.Wednesday
	case generic.Thursday:
		return c.Thursday
	case generic.Friday:
		return c.Friday
	case generic.Saturday:
		return c.Saturday
	case generic.Sunday:
		return c.Sunday
	}
	return false
}

// ActiveDays counts the weekday flags.
func (c Contract) ActiveDays() int {
	n := 0
	for _, d := range generic.AllDays {
		if c.Active(d) {
			n++
		}
	}
	return n
}

// DailyShare is the part of the weekly target owed on one active weekday.
func (c Contract) DailyShare() decimal.Decimal {
	n := c.ActiveDays()
	if n == 0 || c.ExpectedHours.IsNegative() {
		return decimal.Zero
	}
	return c.ExpectedHours.Div(decimal.NewFromInt(int64(n)))
}

// HoursPerDay converts vacation hours into vacation days.
func (c Contract) HoursPerDay() decimal.Decimal {
	workdays := c.WorkdaysPerWeek
	if workdays <= 0 {
		workdays = c.ActiveDays()
	}
	if workdays == 0 {
		return decimal.Zero
	}
	return c.ExpectedHours.Div(decimal.NewFromInt(int64(workdays)))
}

// Validate checks a contract before it is stored.
func (c Contract) Validate() error {
	switch {
	case c.EmployeeID == "":
		return invalid("contract requires an employee")
	case !c.FromWeekValue().Valid() || !c.ToWeekValue().Valid():
		return invalid("contract weeks out of range")
	case c.ToWeekValue().Before(c.FromWeekValue()):
		return invalid("contract ends before it starts")
	case c.ExpectedHours.IsNegative():
		return invalid("expected hours must not be negative")
	case c.EndDate().Before(c.StartDate()):
		return invalid("contract ends before it starts")
	}
	return nil
}

// =============================================================================
// SLOTS AND BOOKINGS
// =============================================================================

// Slot is a canonical weekday time window.
type Slot struct {
	ID        generic.SlotID
	DayOfWeek generic.DayOfWeek
	From      generic.TimeOfDay
	To        generic.TimeOfDay
	ValidFrom generic.TimePoint
	ValidTo   *generic.TimePoint
	Deleted   *time.Time
}

// Duration is To - From in whole minutes, never negative.
func (s Slot) Duration() generic.Minutes {
	if s.To <= s.From {
		return 0
	}
	return s.To.Minutes() - s.From.Minutes()
}

// ValidOn reports whether date lies inside the slot's validity window. An
// unset ValidFrom or ValidTo leaves that side open.
func (s Slot) ValidOn(date generic.TimePoint) bool {
	if !s.ValidFrom.IsZero() && date.Before(s.ValidFrom) {
		return false
	}
	return s.ValidTo == nil || !date.After(*s.ValidTo)
}

func (s Slot) Validate() error {
	if !s.DayOfWeek.Valid() {
		return invalid("slot day of week out of range")
	}
	if s.To <= s.From {
		return invalid("slot must end after it starts")
	}
	return nil
}

// Booking is a realized slot assignment for one week.
type Booking struct {
	ID         generic.BookingID
	EmployeeID generic.EmployeeID
	SlotID     generic.SlotID
	Year       int
	Week       int
	CreatedAt  time.Time
	Deleted    *time.Time
}

func (b Booking) IsDeleted() bool         { return b.Deleted != nil }
func (b Booking) WeekValue() generic.Week { return generic.NewWeek(b.Year, b.Week) }

// =============================================================================
// EXTRA HOURS
// =============================================================================

type Category string

const (
	CategoryExtraWork   Category = "extra_work"
	CategoryVacation    Category = "vacation"
	CategorySickLeave   Category = "sick_leave"
	CategoryHoliday     Category = "holiday"
	CategoryUnavailable Category = "unavailable"
	CategoryCustom      Category = "custom"
)

// Categories lists every built-in category.
var Categories = []Category{
	CategoryExtraWork, CategoryVacation, CategorySickLeave,
	CategoryHoliday, CategoryUnavailable, CategoryCustom,
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", invalid("unknown extra hours category " + s)
}

// IsAbsence marks categories credited as absence instead of work.
func (c Category) IsAbsence() bool {
	return c == CategoryVacation || c == CategorySickLeave || c == CategoryHoliday
}

// ExtraHours is a signed adjustment in hours.
type ExtraHours struct {
	ID           generic.ExtraHoursID
	EmployeeID   generic.EmployeeID
	Amount       decimal.Decimal
	Category     Category
	CustomTypeID generic.CustomExtraHoursID
	Description  string
	At           time.Time
	CreatedAt    time.Time
	Deleted      *time.Time
}

func (e ExtraHours) IsDeleted() bool        { return e.Deleted != nil }
func (e ExtraHours) Day() generic.TimePoint { return generic.DayOf(e.At) }

func (e ExtraHours) Validate() error {
	if e.EmployeeID == "" {
		return invalid("extra hours require an employee")
	}
	if e.Category == CategoryCustom && e.CustomTypeID == "" {
		return invalid("custom extra hours require a custom type")
	}
	if e.At.IsZero() {
		return invalid("extra hours require a timestamp")
	}
	return nil
}

// CustomExtraHours defines a user-named category.
type CustomExtraHours struct {
	ID              generic.CustomExtraHoursID
	Name            string
	Description     string
	ModifiesBalance bool
	CreatedAt       time.Time
	Deleted         *time.Time
}

// CustomExtraHoursLink ties a custom type to an employee. Inactive links are
// kept so entries recorded while the link was active stay attributable.
type CustomExtraHoursLink struct {
	EmployeeID generic.EmployeeID
	Type       CustomExtraHours
	Active     bool
}

// =============================================================================
// SPECIAL DAYS
// =============================================================================

type SpecialDayType string

const (
	SpecialDayHoliday  SpecialDayType = "holiday"
	SpecialDayShortDay SpecialDayType = "short_day"
)

// SpecialDay overrides expected hours for one date. For short days TimeOfDay
// is the time the working day ends.
type SpecialDay struct {
	ID        generic.SpecialDayID
	Year      int
	Week      int
	DayOfWeek generic.DayOfWeek
	Type      SpecialDayType
	TimeOfDay *generic.TimeOfDay
	Deleted   *time.Time
}

func (s SpecialDay) Date() generic.TimePoint {
	return generic.NewWeek(s.Year, s.Week).Day(s.DayOfWeek)
}

func (s SpecialDay) Validate() error {
	if !generic.NewWeek(s.Year, s.Week).Valid() || !s.DayOfWeek.Valid() {
		return invalid("special day out of range")
	}
	if s.Type != SpecialDayHoliday && s.Type != SpecialDayShortDay {
		return invalid("unknown special day type " + string(s.Type))
	}
	return nil
}

// =============================================================================
// CARRYOVER
// =============================================================================

// Carryover is the ending balance of Year. A non-nil Deleted marks the row
// as invalidated by a retroactive edit.
//
// Rows the engine derives from contracts carry a Version starting with
// ComputedVersionPrefix. Any other row is an imported opening balance: it is
// never recomputed and does not depend on the year before it.
type Carryover struct {
	EmployeeID   generic.EmployeeID
	Year         int
	Hours        decimal.Decimal
	VacationDays decimal.Decimal
	Version      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Deleted      *time.Time
}

// ComputedVersionPrefix marks carryover rows written by the engine.
const ComputedVersionPrefix = "computed-"

func (c Carryover) IsDeleted() bool { return c.Deleted != nil }

// IsComputed reports whether the engine derived the row from contracts.
func (c Carryover) IsComputed() bool { return strings.HasPrefix(c.Version, ComputedVersionPrefix) }

// =============================================================================
// BILLING PERIODS
// =============================================================================

// BillingPeriod is a finalized window. Rows are immutable once written.
type BillingPeriod struct {
	ID        generic.BillingPeriodID
	Period    generic.Period
	CreatedAt time.Time
	CreatedBy string
	Deleted   *time.Time
	Rows      []SnapshotRow
}

// SnapshotRow freezes one value for one employee.
type SnapshotRow struct {
	ID              string
	BillingPeriodID generic.BillingPeriodID
	EmployeeID      generic.EmployeeID
	ValueType       ValueType
	Delta           decimal.Decimal
	YTDFrom         decimal.Decimal
	YTDTo           decimal.Decimal
	FullYear        decimal.Decimal
	CreatedAt       time.Time
}

func invalid(msg string) error {
	return &InputError{Message: msg}
}

// InputError describes a rejected source record.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }
func (e *InputError) Unwrap() error { return generic.ErrInvalidInput }
