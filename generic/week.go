package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// WEEK - ISO 8601 calendar week
// =============================================================================

// Week is an ISO calendar week. Contracts, bookings and special days are all
// addressed by week, and weeks are compared through their linearized Key so
// that 2020-W53 sorts before 2021-W01.
type Week struct {
	Year   int
	Number int
}

func NewWeek(year, number int) Week { return Week{Year: year, Number: number} }

// WeekOf returns the ISO week containing tp. Early January days may belong
// to the last week of the previous year and late December days to week 1 of
// the next.
func WeekOf(tp TimePoint) Week {
	y, w := tp.Time.ISOWeek()
	return Week{Year: y, Number: w}
}

// WeeksInYear returns 52 or 53. December 28 is always in the last ISO week.
func WeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// WeekFromKey reverses Key.
func WeekFromKey(key int) Week { return Week{Year: key / 100, Number: key % 100} }

// Key linearizes the week as year*100+week.
func (w Week) Key() int { return w.Year*100 + w.Number }

func (w Week) Valid() bool { return w.Number >= 1 && w.Number <= WeeksInYear(w.Year) }

// Normalize rolls week numbers past the end of the year into the following
// year and non-positive ones into the previous year.
func (w Week) Normalize() Week {
	for w.Number > WeeksInYear(w.Year) {
		w.Number -= WeeksInYear(w.Year)
		w.Year++
	}
	for w.Number < 1 {
		w.Year--
		w.Number += WeeksInYear(w.Year)
	}
	return w
}

func (w Week) Next() Week { return Week{Year: w.Year, Number: w.Number + 1}.Normalize() }
func (w Week) Prev() Week { return Week{Year: w.Year, Number: w.Number - 1}.Normalize() }

func (w Week) Before(o Week) bool { return w.Key() < o.Key() }
func (w Week) After(o Week) bool  { return w.Key() > o.Key() }

// Monday returns the first day of the week.
func (w Week) Monday() TimePoint {
	jan4 := NewTimePoint(w.Year, time.January, 4)
	week1 := jan4.AddDays(-(int(jan4.DayOfWeek()) - 1))
	return week1.AddDays((w.Number - 1) * 7)
}

// Day returns the date of d in this week.
func (w Week) Day(d DayOfWeek) TimePoint { return w.Monday().AddDays(int(d) - 1) }

// Sunday returns the last day of the week.
func (w Week) Sunday() TimePoint { return w.Day(Sunday) }

// Period spans Monday to Sunday of the week.
func (w Week) Period() Period { return Period{Start: w.Monday(), End: w.Sunday()} }

func (w Week) String() string { return fmt.Sprintf("%04d-W%02d", w.Year, w.Number) }

// =============================================================================
// WEEK RANGE - Inclusive span of weeks
// =============================================================================

type WeekRange struct {
	From Week
	To   Week
}

// WeekRangeOf returns the weeks touched by p.
func WeekRangeOf(p Period) WeekRange {
	return WeekRange{From: WeekOf(p.Start), To: WeekOf(p.End)}
}

// SingleWeek is the range covering only w.
func SingleWeek(w Week) WeekRange { return WeekRange{From: w, To: w} }

func (r WeekRange) Contains(w Week) bool {
	return w.Key() >= r.From.Key() && w.Key() <= r.To.Key()
}

// Overlaps returns true if the ranges share at least one week.
func (r WeekRange) Overlaps(o WeekRange) bool {
	return r.From.Key() <= o.To.Key() && o.From.Key() <= r.To.Key()
}

// Weeks enumerates the range in order.
func (r WeekRange) Weeks() []Week {
	var weeks []Week
	for w := r.From; w.Key() <= r.To.Key(); w = w.Next() {
		weeks = append(weeks, w)
	}
	return weeks
}

// Period returns the days spanned by the range, Monday of From to Sunday of To.
func (r WeekRange) Period() Period {
	return Period{Start: r.From.Monday(), End: r.To.Sunday()}
}

func (r WeekRange) String() string { return r.From.String() + ".." + r.To.String() }
