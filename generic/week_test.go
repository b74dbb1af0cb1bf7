package generic_test

import (
	"testing"
	"time"

	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// ISO WEEK TESTS
// =============================================================================

func TestWeeksInYear(t *testing.T) {
	tests := []struct {
		year int
		want int
	}{
		{2019, 52},
		{2020, 53},
		{2021, 52},
		{2024, 52},
		{2026, 53},
	}
	for _, tt := range tests {
		if got := generic.WeeksInYear(tt.year); got != tt.want {
			t.Errorf("WeeksInYear(%d) = %d, want %d", tt.year, got, tt.want)
		}
	}
}

func TestWeekOf_YearBoundaries(t *testing.T) {
	// GIVEN: Days whose ISO year differs from their calendar year
	tests := []struct {
		day  generic.TimePoint
		want generic.Week
	}{
		{generic.NewTimePoint(2021, time.January, 1), generic.NewWeek(2020, 53)},
		{generic.NewTimePoint(2021, time.January, 3), generic.NewWeek(2020, 53)},
		{generic.NewTimePoint(2021, time.January, 4), generic.NewWeek(2021, 1)},
		{generic.NewTimePoint(2024, time.December, 30), generic.NewWeek(2025, 1)},
		{generic.NewTimePoint(2026, time.December, 31), generic.NewWeek(2026, 53)},
	}
	for _, tt := range tests {
		// WHEN/THEN: The ISO week is used, not the calendar year
		if got := generic.WeekOf(tt.day); got != tt.want {
			t.Errorf("WeekOf(%s) = %s, want %s", tt.day, got, tt.want)
		}
	}
}

func TestWeek_Monday(t *testing.T) {
	tests := []struct {
		week generic.Week
		want generic.TimePoint
	}{
		{generic.NewWeek(2020, 53), generic.NewTimePoint(2020, time.December, 28)},
		{generic.NewWeek(2021, 1), generic.NewTimePoint(2021, time.January, 4)},
		{generic.NewWeek(2024, 1), generic.NewTimePoint(2024, time.January, 1)},
		{generic.NewWeek(2025, 1), generic.NewTimePoint(2024, time.December, 30)},
		{generic.NewWeek(2026, 1), generic.NewTimePoint(2025, time.December, 29)},
	}
	for _, tt := range tests {
		if got := tt.week.Monday(); !got.Equal(tt.want) {
			t.Errorf("%s.Monday() = %s, want %s", tt.week, got, tt.want)
		}
		if got := tt.week.Sunday(); !got.Equal(tt.want.AddDays(6)) {
			t.Errorf("%s.Sunday() = %s, want %s", tt.week, got, tt.want.AddDays(6))
		}
	}
}

func TestWeek_Period(t *testing.T) {
	w := generic.NewWeek(2025, 1)

	p := w.Period()

	if !p.Start.Equal(generic.NewTimePoint(2024, time.December, 30)) || !p.End.Equal(generic.NewTimePoint(2025, time.January, 5)) {
		t.Errorf("%s.Period() = %s", w, p)
	}
	if p.Len() != 7 {
		t.Errorf("%s.Period() has %d days, want 7", w, p.Len())
	}
	if got := generic.SingleWeek(w).Period(); got != p {
		t.Errorf("SingleWeek(%s).Period() = %s, want %s", w, got, p)
	}
}

func TestWeek_Normalize(t *testing.T) {
	tests := []struct {
		in   generic.Week
		want generic.Week
	}{
		{generic.NewWeek(2020, 53), generic.NewWeek(2020, 53)},
		{generic.NewWeek(2020, 54), generic.NewWeek(2021, 1)},
		{generic.NewWeek(2021, 53), generic.NewWeek(2022, 1)},
		{generic.NewWeek(2021, 0), generic.NewWeek(2020, 53)},
		{generic.NewWeek(2022, -1), generic.NewWeek(2021, 51)},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("%v.Normalize() = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestWeek_KeyOrdering(t *testing.T) {
	// GIVEN: The last week of 2020 and the first of 2021
	last := generic.NewWeek(2020, 53)
	first := generic.NewWeek(2021, 1)

	// THEN: The linear key orders them and Next/Prev step across the boundary
	if !last.Before(first) {
		t.Errorf("expected %s before %s", last, first)
	}
	if last.Next() != first {
		t.Errorf("%s.Next() = %s, want %s", last, last.Next(), first)
	}
	if first.Prev() != last {
		t.Errorf("%s.Prev() = %s, want %s", first, first.Prev(), last)
	}
	if generic.WeekFromKey(last.Key()) != last {
		t.Errorf("WeekFromKey(%d) did not round trip", last.Key())
	}
}

func TestWeek_Valid(t *testing.T) {
	if !generic.NewWeek(2020, 53).Valid() {
		t.Error("2020-W53 should be valid")
	}
	if generic.NewWeek(2021, 53).Valid() {
		t.Error("2021-W53 should not be valid")
	}
	if generic.NewWeek(2021, 0).Valid() {
		t.Error("week 0 should not be valid")
	}
}

// =============================================================================
// WEEK RANGE TESTS
// =============================================================================

func TestWeekRange_CrossesYear(t *testing.T) {
	r := generic.WeekRange{From: generic.NewWeek(2020, 52), To: generic.NewWeek(2021, 2)}

	weeks := r.Weeks()
	if len(weeks) != 4 {
		t.Fatalf("expected 4 weeks, got %d: %v", len(weeks), weeks)
	}
	if weeks[1] != generic.NewWeek(2020, 53) {
		t.Errorf("expected 2020-W53 second, got %s", weeks[1])
	}
	if !r.Contains(generic.NewWeek(2021, 1)) {
		t.Error("range should contain 2021-W01")
	}
	if r.Contains(generic.NewWeek(2021, 3)) {
		t.Error("range should not contain 2021-W03")
	}
}

func TestWeekRangeOf(t *testing.T) {
	p := generic.NewPeriod(
		generic.NewTimePoint(2024, time.December, 25),
		generic.NewTimePoint(2025, time.January, 8),
	)

	r := generic.WeekRangeOf(p)

	if r.From != generic.NewWeek(2024, 52) || r.To != generic.NewWeek(2025, 2) {
		t.Errorf("WeekRangeOf(%s) = %s", p, r)
	}
	if got := r.Period(); !got.Start.Equal(generic.NewTimePoint(2024, time.December, 23)) {
		t.Errorf("range starts on %s, want 2024-12-23", got.Start)
	}
}
