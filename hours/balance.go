/*
balance.go - Balance calculation over periods

PURPOSE:
  Combines expected hours, realized bookings and extra hours into per-day
  figures (the Ledger) and derives every value type from them for a period.

KEY INSIGHT:
  All figures are additive per day. A period total is the sum of its days,
  so splitting a period in two and adding the parts gives exactly the
  whole, and the year-to-date figures are sums over neighbouring ranges of
  the same Ledger.

PERIOD FIGURES:
  delta      = value(period)
  ytd_from   = seed + value(Jan 1 of start year .. start-1)
  ytd_to     = ytd_from + delta
  full_year  = ytd_to + value(end+1 .. Dec 31 of end year)

  The seed is the carryover of the previous year for "balance" and the
  carried vacation days for "vacation_entitlement". Other types start at 0.

BALANCE:
  overall = actual + extra_work + balance-affecting custom hours
  balance = overall + credited absences - expected
          = actual + balance-affecting extra hours - expected

  Absences (vacation, sick leave, holiday) are credited only on days whose
  contract expects hours at all.

ROUNDING:
  Each range is rounded to the configured precision before composition, so
  ytd_to - ytd_from == delta and full_year - ytd_to == rest hold exactly.

SEE ALSO:
  - valuetype.go: Value type names
  - carryover.go: Supplies the seed
*/
package hours

import (
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// VALUE - Output of the balance calculator
// =============================================================================

type Value struct {
	Type     ValueType
	Unit     generic.Unit
	Delta    decimal.Decimal
	YTDFrom  decimal.Decimal
	YTDTo    decimal.Decimal
	FullYear decimal.Decimal
}

// Seeds are the figures carried into the first year of a computation.
type Seeds struct {
	Hours        decimal.Decimal
	VacationDays decimal.Decimal
}

// =============================================================================
// TOTALS - Additive figures for a range of days
// =============================================================================

type Totals struct {
	Expected        decimal.Decimal
	Actual          generic.Minutes
	ExtraWork       decimal.Decimal
	Vacation        decimal.Decimal
	SickLeave       decimal.Decimal
	Holiday         decimal.Decimal
	Unavailable     decimal.Decimal
	AbsenceCredit   decimal.Decimal
	CustomAffecting decimal.Decimal
	Custom          map[string]decimal.Decimal
	VacationDays    decimal.Decimal
	Entitlement     decimal.Decimal
}

func (t *Totals) add(o Totals) {
	t.Expected = t.Expected.Add(o.Expected)
	t.Actual += o.Actual
	t.ExtraWork = t.ExtraWork.Add(o.ExtraWork)
	t.Vacation = t.Vacation.Add(o.Vacation)
	t.SickLeave = t.SickLeave.Add(o.SickLeave)
	t.Holiday = t.Holiday.Add(o.Holiday)
	t.Unavailable = t.Unavailable.Add(o.Unavailable)
	t.AbsenceCredit = t.AbsenceCredit.Add(o.AbsenceCredit)
	t.CustomAffecting = t.CustomAffecting.Add(o.CustomAffecting)
	t.VacationDays = t.VacationDays.Add(o.VacationDays)
	t.Entitlement = t.Entitlement.Add(o.Entitlement)
	for name, v := range o.Custom {
		if t.Custom == nil {
			t.Custom = make(map[string]decimal.Decimal)
		}
		t.Custom[name] = t.Custom[name].Add(v)
	}
}

// Overall is worked time: bookings, extra work and balance-affecting custom hours.
func (t Totals) Overall() decimal.Decimal {
	return t.Actual.Hours().Add(t.ExtraWork).Add(t.CustomAffecting)
}

// Balance is the surplus (positive) or deficit (negative) of the range.
func (t Totals) Balance() decimal.Decimal {
	return t.Overall().Add(t.AbsenceCredit).Sub(t.Expected)
}

// Value returns the unrounded figure for vt.
func (t Totals) Value(vt ValueType) decimal.Decimal {
	switch vt.Kind {
	case ValueOverall:
		return t.Overall()
	case ValueBalance:
		return t.Balance()
	case ValueExpectedHours:
		return t.Expected
	case ValueExtraWork:
		return t.ExtraWork
	case ValueVacationHours:
		return t.Vacation
	case ValueSickLeave:
		return t.SickLeave
	case ValueHoliday:
		return t.Holiday
	case ValueUnavailable:
		return t.Unavailable
	case ValueVacationDays:
		return t.VacationDays
	case ValueVacationEntitlement:
		return t.Entitlement
	case ValueCustomExtraHours:
		return t.Custom[vt.Name]
	}
	return decimal.Zero
}

// =============================================================================
// LEDGER - Per-day figures of one employee
// =============================================================================

// Ledger holds one Totals per day of Span.
type Ledger struct {
	EmployeeID generic.EmployeeID
	Span       generic.Period
	days       []Totals
}

// Sum adds the days of p that fall inside the span.
func (l *Ledger) Sum(p generic.Period) Totals {
	var out Totals
	p = p.Intersect(l.Span)
	if p.IsEmpty() {
		return out
	}
	from := generic.DaysBetween(l.Span.Start, p.Start)
	for i := from; i < from+p.Len(); i++ {
		out.add(l.days[i])
	}
	return out
}

// Day returns the figures of one day.
func (l *Ledger) Day(d generic.TimePoint) Totals {
	return l.Sum(generic.Period{Start: d, End: d})
}

// WeekSummary is one row of the weekly report.
type WeekSummary struct {
	Week          generic.Week
	Period        generic.Period
	Expected      decimal.Decimal
	Actual        decimal.Decimal
	ExtraWork     decimal.Decimal
	AbsenceCredit decimal.Decimal
	Balance       decimal.Decimal
}

// Weeks splits p by ISO week.
func (l *Ledger) Weeks(p generic.Period, precision int32) []WeekSummary {
	var out []WeekSummary
	for _, w := range generic.WeekRangeOf(p).Weeks() {
		part := w.Period().Intersect(p)
		t := l.Sum(part)
		out = append(out, WeekSummary{
			Week:          w,
			Period:        part,
			Expected:      t.Expected.Round(precision),
			Actual:        t.Actual.Hours().Round(precision),
			ExtraWork:     t.ExtraWork.Round(precision),
			AbsenceCredit: t.AbsenceCredit.Round(precision),
			Balance:       t.Balance().Round(precision),
		})
	}
	return out
}

// =============================================================================
// BALANCE CALCULATOR
// =============================================================================

// Inputs are the source rows loaded for one employee and span.
type Inputs struct {
	Contracts   []Contract
	Bookings    []Booking
	Slots       []Slot
	ExtraHours  []ExtraHours
	SpecialDays []SpecialDay
	Links       []CustomExtraHoursLink
}

type BalanceCalculator struct {
	expected  *ExpectedHoursCalculator
	actual    ActualHoursAggregator
	extra     *ExtraHoursAggregator
	precision int32
}

func NewBalanceCalculator(expected *ExpectedHoursCalculator, extra *ExtraHoursAggregator, precision int32) *BalanceCalculator {
	return &BalanceCalculator{expected: expected, extra: extra, precision: precision}
}

// BuildLedger computes the per-day figures of employee over span.
func (bc *BalanceCalculator) BuildLedger(employee generic.EmployeeID, span generic.Period, in Inputs) (*Ledger, error) {
	series, err := bc.expected.Compute(employee, span, in.Contracts, in.SpecialDays)
	if err != nil {
		return nil, err
	}

	var own []Booking
	for _, b := range in.Bookings {
		if b.EmployeeID == employee {
			own = append(own, b)
		}
	}
	actual, err := bc.actual.ForRange(own, in.Slots, generic.WeekRangeOf(span))
	if err != nil {
		return nil, err
	}

	contracts := make(map[generic.ContractID]Contract, len(in.Contracts))
	for _, c := range in.Contracts {
		contracts[c.ID] = c
	}

	extras := bc.extra.ByDay(employee, in.ExtraHours, NewCustomTypes(in.Links), span)

	l := &Ledger{EmployeeID: employee, Span: span, days: make([]Totals, len(series.Days))}
	for i, d := range series.Days {
		day := &l.days[i]
		day.Expected = d.Hours
		day.Actual = actual.Day(employee, d.Date)

		x := extras[i]
		day.ExtraWork = x.Category(CategoryExtraWork)
		day.Vacation = x.Category(CategoryVacation)
		day.SickLeave = x.Category(CategorySickLeave)
		day.Holiday = x.Category(CategoryHoliday)
		day.Unavailable = x.Category(CategoryUnavailable)
		day.Custom = x.Custom
		day.CustomAffecting = x.CustomAffecting

		c, ok := contracts[d.ContractID]
		if !ok || d.ContractID == "" {
			continue
		}
		day.Entitlement = decimal.NewFromInt(int64(c.VacationDays)).Div(decimal.NewFromInt(int64(generic.DaysInYear(d.Date.Year()))))
		if perDay := c.HoursPerDay(); perDay.IsPositive() {
			day.VacationDays = day.Vacation.Div(perDay)
		}
		// Absences are credited only under a contract that expects hours.
		if c.ExpectedHours.IsPositive() {
			day.AbsenceCredit = x.Absence
		}
	}
	return l, nil
}

// LedgerSpan is the span a computation for period needs: whole calendar
// years from the start year to the end year.
func LedgerSpan(period generic.Period) generic.Period {
	return generic.Period{Start: generic.StartOfYear(period.Start.Year()), End: generic.EndOfYear(period.End.Year())}
}

// Values derives the period figures for each requested type.
func (bc *BalanceCalculator) Values(l *Ledger, period generic.Period, seeds Seeds, types []ValueType) []Value {
	inPeriod := l.Sum(period)
	before := l.Sum(period.YearToStart())
	after := l.Sum(period.RestOfYear())

	out := make([]Value, 0, len(types))
	for _, vt := range types {
		seed := decimal.Zero
		switch vt.Kind {
		case ValueBalance:
			seed = seeds.Hours
		case ValueVacationEntitlement:
			seed = seeds.VacationDays
		}
		delta := inPeriod.Value(vt).Round(bc.precision)
		from := seed.Add(before.Value(vt)).Round(bc.precision)
		to := from.Add(delta)
		full := to.Add(after.Value(vt).Round(bc.precision))
		out = append(out, Value{Type: vt, Unit: vt.Unit(), Delta: delta, YTDFrom: from, YTDTo: to, FullYear: full})
	}
	return out
}
