package hours_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
)

// =============================================================================
// EXTRA-HOURS AGGREGATOR TESTS
// =============================================================================

func customLinks() hours.CustomTypes {
	deleted := time.Now()
	return hours.NewCustomTypes([]hours.CustomExtraHoursLink{
		{EmployeeID: "emp-1", Active: true, Type: hours.CustomExtraHours{ID: "ct-train", Name: "Training", ModifiesBalance: true}},
		{EmployeeID: "emp-1", Active: false, Type: hours.CustomExtraHours{ID: "ct-old", Name: "Old", ModifiesBalance: true}},
		{EmployeeID: "emp-1", Active: true, Type: hours.CustomExtraHours{ID: "ct-info", Name: "Commute"}},
		{EmployeeID: "emp-1", Active: true, Type: hours.CustomExtraHours{ID: "ct-gone", Name: "Gone", Deleted: &deleted}},
	})
}

func TestClassify(t *testing.T) {
	ag := hours.NewExtraHoursAggregator(discard)
	types := customLinks()

	tests := []struct {
		name     string
		category hours.Category
		custom   generic.CustomExtraHoursID
		want     hours.Classification
	}{
		{"extra work", hours.CategoryExtraWork, "", hours.Classification{Affects: true}},
		{"vacation", hours.CategoryVacation, "", hours.Classification{Affects: true, Absence: true}},
		{"sick leave", hours.CategorySickLeave, "", hours.Classification{Affects: true, Absence: true}},
		{"holiday", hours.CategoryHoliday, "", hours.Classification{Affects: true, Absence: true}},
		{"unavailable", hours.CategoryUnavailable, "", hours.Classification{}},
		{"linked custom", hours.CategoryCustom, "ct-train", hours.Classification{Affects: true, CustomName: "Training"}},
		{"unlinked custom", hours.CategoryCustom, "ct-old", hours.Classification{Affects: true, CustomName: "Old", Unlinked: true}},
		{"informational custom", hours.CategoryCustom, "ct-info", hours.Classification{CustomName: "Commute"}},
		{"unknown custom", hours.CategoryCustom, "ct-missing", hours.Classification{Unknown: true}},
		{"unknown category", hours.Category("overtime"), "", hours.Classification{Unknown: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := extra("e", "emp-1", tt.category, "1", date(2024, time.January, 15))
			e.CustomTypeID = tt.custom
			assert.Equal(t, tt.want, ag.Classify(e, types))
		})
	}
}

func TestCustomTypes_ActiveNames(t *testing.T) {
	assert.ElementsMatch(t, []string{"Training", "Commute"}, customLinks().ActiveNames())
}

func TestExtraHoursByDay(t *testing.T) {
	// GIVEN: Entries inside and outside the period, one deleted, one of another employee
	deleted := time.Now()
	in := date(2024, time.January, 16)
	gone := extra("e-4", "emp-1", hours.CategoryExtraWork, "100", in)
	gone.Deleted = &deleted
	train := extra("e-5", "emp-1", hours.CategoryCustom, "1.5", in)
	train.CustomTypeID = "ct-train"
	commute := extra("e-6", "emp-1", hours.CategoryCustom, "0.5", in)
	commute.CustomTypeID = "ct-info"
	entries := []hours.ExtraHours{
		extra("e-1", "emp-1", hours.CategoryExtraWork, "2", in),
		extra("e-2", "emp-1", hours.CategoryVacation, "8", in),
		extra("e-3", "emp-1", hours.CategoryExtraWork, "5", date(2024, time.February, 1)),
		extra("e-7", "emp-2", hours.CategorySickLeave, "8", in),
		gone, train, commute,
	}

	// WHEN: Week 3 is split by day
	days := hours.NewExtraHoursAggregator(discard).ByDay("emp-1", entries, customLinks(), weekPeriod(2024, 3))

	// THEN: Only live entries of the employee land on their day
	require.Len(t, days, 7)
	s := days[1]
	requireDecimal(t, "2", s.Category(hours.CategoryExtraWork))
	requireDecimal(t, "8", s.Category(hours.CategoryVacation))
	requireDecimal(t, "2", s.Category(hours.CategoryCustom))
	requireDecimal(t, "1.5", s.Custom["Training"])
	requireDecimal(t, "0.5", s.Custom["Commute"])
	requireDecimal(t, "1.5", s.CustomAffecting)
	requireDecimal(t, "8", s.Absence)
	assert.True(t, s.Category(hours.CategorySickLeave).IsZero())
	for i, other := range days {
		if i != 1 {
			assert.Empty(t, other.ByCategory, "day %d", i)
		}
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range hours.Categories {
		got, err := hours.ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := hours.ParseCategory("overtime")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	assert.True(t, hours.CategorySickLeave.IsAbsence())
	assert.False(t, hours.CategoryUnavailable.IsAbsence())
}
