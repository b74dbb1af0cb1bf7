package hours

import (
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// EXPECTED-HOURS CALCULATOR
// =============================================================================

// ExpectedDay is the expectation for one calendar day.
type ExpectedDay struct {
	Date       generic.TimePoint
	ContractID generic.ContractID
	Hours      decimal.Decimal
	Override   SpecialDayType
}

// WeekSubtotal sums the days of one ISO week that fall inside the series.
type WeekSubtotal struct {
	Week  generic.Week
	Hours decimal.Decimal
}

// ExpectedSeries is day- and week-granular. Weeks are in order and only cover
// days of the requested period, so partial first and last weeks are pro-rated.
type ExpectedSeries struct {
	Days  []ExpectedDay
	Weeks []WeekSubtotal
}

// ExpectedHoursCalculator distributes weekly contract targets over days.
type ExpectedHoursCalculator struct {
	resolver     *ContractResolver
	workdayStart generic.TimeOfDay
}

func NewExpectedHoursCalculator(resolver *ContractResolver, workdayStart generic.TimeOfDay) *ExpectedHoursCalculator {
	return &ExpectedHoursCalculator{resolver: resolver, workdayStart: workdayStart}
}

var two = decimal.NewFromInt(2)

// Compute builds the expected series of employee over period.
func (c *ExpectedHoursCalculator) Compute(employee generic.EmployeeID, period generic.Period, contracts []Contract, specialDays []SpecialDay) (ExpectedSeries, error) {
	overrides := indexSpecialDays(specialDays)

	var series ExpectedSeries
	for _, day := range period.Days() {
		contract, err := c.resolver.ResolveDay(contracts, employee, day)
		if err != nil {
			return ExpectedSeries{}, err
		}

		entry := ExpectedDay{Date: day, Hours: decimal.Zero}
		if contract != nil {
			entry.ContractID = contract.ID
		}
		sd, hasOverride := overrides[day.String()]
		if hasOverride {
			entry.Override = sd.Type
		}
		entry.Hours = c.dayHours(contract, day, sd, hasOverride)
		series.Days = append(series.Days, entry)

		week := day.Week()
		if n := len(series.Weeks); n == 0 || series.Weeks[n-1].Week != week {
			series.Weeks = append(series.Weeks, WeekSubtotal{Week: week, Hours: decimal.Zero})
		}
		last := &series.Weeks[len(series.Weeks)-1]
		last.Hours = last.Hours.Add(entry.Hours)
	}
	return series, nil
}

func (c *ExpectedHoursCalculator) dayHours(contract *Contract, day generic.TimePoint, sd SpecialDay, hasOverride bool) decimal.Decimal {
	if contract == nil || !contract.Active(day.DayOfWeek()) {
		return decimal.Zero
	}
	share := contract.DailyShare()
	if !hasOverride {
		return share
	}

	switch sd.Type {
	case SpecialDayHoliday:
		return decimal.Zero
	case SpecialDayShortDay:
		if sd.TimeOfDay == nil {
			return share.Div(two)
		}
		limit := (sd.TimeOfDay.Minutes() - c.workdayStart.Minutes()).Hours()
		if limit.IsNegative() {
			return decimal.Zero
		}
		return decimal.Min(share, limit)
	}
	return share
}

// indexSpecialDays keys live special days by date. A holiday wins over a
// short day on the same date.
func indexSpecialDays(days []SpecialDay) map[string]SpecialDay {
	out := make(map[string]SpecialDay, len(days))
	for _, sd := range days {
		if sd.Deleted != nil {
			continue
		}
		key := sd.Date().String()
		if existing, ok := out[key]; ok && existing.Type == SpecialDayHoliday {
			continue
		}
		out[key] = sd
	}
	return out
}
