package generic

// =============================================================================
// PERIOD - Inclusive range of days
// =============================================================================

// Period is an inclusive range of calendar days [Start, End]. A period whose
// End is before its Start is empty; the balance formulas produce such periods
// for "year start up to the day before start" when start is January 1.
//
// Examples:
//   - Calendar year 2024: Jan 1 - Dec 31
//   - A billing month: Mar 1 - Mar 31
//   - ISO week 2024-W03: Jan 15 - Jan 21
type Period struct {
	Start TimePoint
	End   TimePoint
}

func NewPeriod(start, end TimePoint) Period { return Period{Start: start, End: end} }

// YearPeriod returns Jan 1 - Dec 31 of year.
func YearPeriod(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

// Validate rejects periods that end before they start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) IsEmpty() bool { return p.End.Before(p.Start) }

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Len returns the number of days in the period.
func (p Period) Len() int {
	if p.IsEmpty() {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Intersect returns the overlap of two periods. The result may be empty.
func (p Period) Intersect(o Period) Period {
	out := p
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	return out
}

// YearToStart returns the days of the start year that precede the period.
func (p Period) YearToStart() Period {
	return Period{Start: StartOfYear(p.Start.Year()), End: p.Start.AddDays(-1)}
}

// RestOfYear returns the days after the period up to the end of End's year.
func (p Period) RestOfYear() Period {
	return Period{Start: p.End.AddDays(1), End: EndOfYear(p.End.Year())}
}

// Years returns the calendar years touched by the period.
func (p Period) Years() []int {
	var years []int
	for y := p.Start.Year(); y <= p.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
