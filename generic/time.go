package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - A calendar day
// =============================================================================

// TimePoint is a calendar day in UTC. Every aggregate in the engine is keyed
// by day, so the time-of-day part is always zero.
type TimePoint struct {
	Time time.Time
}

const DateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar day in t's own location.
func DayOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int            { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month    { return tp.Time.Month() }
func (tp TimePoint) Day() int             { return tp.Time.Day() }
func (tp TimePoint) YearDay() int         { return tp.Time.YearDay() }
func (tp TimePoint) DayOfWeek() DayOfWeek { return DayOfWeekFrom(tp.Time.Weekday()) }
func (tp TimePoint) Week() Week           { return WeekOf(tp) }
func (tp TimePoint) IsZero() bool         { return tp.Time.IsZero() }
func (tp TimePoint) String() string       { return tp.Time.Format(DateLayout) }

// =============================================================================
// DAY OF WEEK - ISO numbering, Monday = 1
// =============================================================================

type DayOfWeek int

const (
	Monday DayOfWeek = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = [...]string{"", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// AllDays lists the week in ISO order.
var AllDays = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func DayOfWeekFrom(wd time.Weekday) DayOfWeek {
	if wd == time.Sunday {
		return Sunday
	}
	return DayOfWeek(wd)
}

func ParseDayOfWeek(s string) (DayOfWeek, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i := 1; i < len(dayNames); i++ {
		if dayNames[i] == name {
			return DayOfWeek(i), nil
		}
	}
	return 0, fmt.Errorf("invalid day of week %q", s)
}

func (d DayOfWeek) Valid() bool { return d >= Monday && d <= Sunday }

func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DayOfWeek(%d)", int(d))
	}
	return dayNames[d]
}

// =============================================================================
// TIME OF DAY - Minutes since midnight
// =============================================================================

type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// ParseTimeOfDay parses HH:MM.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Minutes() Minutes { return Minutes(t) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }
func StartOfYear(year int) TimePoint     { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint       { return NewTimePoint(year, time.December, 31) }
func DaysInYear(year int) int            { return EndOfYear(year).YearDay() }
