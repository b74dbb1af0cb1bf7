package hours

import (
	"fmt"

	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// ACTUAL-HOURS AGGREGATOR
// =============================================================================

// DayKey addresses realized work of one employee on one weekday of a week.
type DayKey struct {
	EmployeeID generic.EmployeeID
	Year       int
	Week       int
	Day        generic.DayOfWeek
}

func (k DayKey) Date() generic.TimePoint { return generic.NewWeek(k.Year, k.Week).Day(k.Day) }

// ActualHours holds realized minutes per DayKey. Minutes are integers, so the
// totals do not depend on the order bookings are added in.
type ActualHours struct {
	byDay map[DayKey]generic.Minutes
}

func (a ActualHours) Day(employee generic.EmployeeID, date generic.TimePoint) generic.Minutes {
	w := date.Week()
	return a.byDay[DayKey{EmployeeID: employee, Year: w.Year, Week: w.Number, Day: date.DayOfWeek()}]
}

// ActualHoursAggregator joins bookings to slots.
type ActualHoursAggregator struct{}

// ForRange aggregates bookings whose week key lies inside weeks, inclusive.
// A booking dated outside its slot's validity window counts nothing.
func (ActualHoursAggregator) ForRange(bookings []Booking, slots []Slot, weeks generic.WeekRange) (ActualHours, error) {
	bySlot := make(map[generic.SlotID]Slot, len(slots))
	for _, s := range slots {
		bySlot[s.ID] = s
	}

	out := ActualHours{byDay: make(map[DayKey]generic.Minutes)}
	for _, b := range bookings {
		if b.IsDeleted() || !weeks.Contains(b.WeekValue()) {
			continue
		}
		slot, ok := bySlot[b.SlotID]
		if !ok {
			return ActualHours{}, fmt.Errorf("booking %s references slot %s: %w", b.ID, b.SlotID, generic.ErrNotFound)
		}
		key := DayKey{EmployeeID: b.EmployeeID, Year: b.Year, Week: b.Week, Day: slot.DayOfWeek}
		if !slot.ValidOn(key.Date()) {
			continue
		}
		out.byDay[key] += slot.Duration()
	}
	return out, nil
}
