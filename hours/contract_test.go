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
// CONTRACT RESOLVER TESTS
// =============================================================================

func created(c hours.Contract, month time.Month) hours.Contract {
	c.CreatedAt = time.Date(2024, month, 1, 0, 0, 0, 0, time.UTC)
	return c
}

func TestResolve_NoneOneMany(t *testing.T) {
	a := created(fullTime("c-a", "emp-1", 2024, 1, 2024, 10), time.January)
	b := created(fullTime("c-b", "emp-1", 2024, 5, 2024, 20), time.March)
	other := fullTime("c-o", "emp-2", 2024, 1, 2024, 52)
	contracts := []hours.Contract{a, b, other}

	r := hours.NewContractResolver(hours.OverlapFail, discard)

	// No contract
	got, err := r.Resolve(contracts, "emp-1", generic.NewWeek(2024, 30))
	require.NoError(t, err)
	assert.Nil(t, got)

	// Exactly one
	got, err = r.Resolve(contracts, "emp-1", generic.NewWeek(2024, 2))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, generic.ContractID("c-a"), got.ID)

	// Overlap fails with both IDs, newest first
	_, err = r.Resolve(contracts, "emp-1", generic.NewWeek(2024, 7))
	var overlap *generic.AmbiguousContractOverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, []generic.ContractID{"c-b", "c-a"}, overlap.Contracts)
	assert.Equal(t, generic.NewWeek(2024, 7), overlap.Week)
}

func TestResolve_LatestPolicy(t *testing.T) {
	a := created(fullTime("c-a", "emp-1", 2024, 1, 2024, 10), time.January)
	b := created(fullTime("c-b", "emp-1", 2024, 5, 2024, 20), time.March)
	r := hours.NewContractResolver(hours.OverlapLatest, discard)

	got, err := r.Resolve([]hours.Contract{b, a}, "emp-1", generic.NewWeek(2024, 7))
	require.NoError(t, err)
	assert.Equal(t, generic.ContractID("c-b"), got.ID)

	// Same creation time: the higher ID wins, whatever the input order
	tie := created(fullTime("c-c", "emp-1", 2024, 5, 2024, 20), time.March)
	for _, order := range [][]hours.Contract{{b, tie}, {tie, b}} {
		got, err := r.Resolve(order, "emp-1", generic.NewWeek(2024, 7))
		require.NoError(t, err)
		assert.Equal(t, generic.ContractID("c-c"), got.ID)
	}
}

func TestResolve_IgnoresDeleted(t *testing.T) {
	deleted := time.Now()
	a := fullTime("c-a", "emp-1", 2024, 1, 2024, 10)
	b := fullTime("c-b", "emp-1", 2024, 1, 2024, 10)
	b.Deleted = &deleted

	got, err := hours.NewContractResolver(hours.OverlapFail, discard).Resolve([]hours.Contract{a, b}, "emp-1", generic.NewWeek(2024, 3))
	require.NoError(t, err)
	assert.Equal(t, generic.ContractID("c-a"), got.ID)
}

func TestResolveDay_SplitWeek(t *testing.T) {
	// GIVEN: One contract ends on Wednesday of week 3, the next starts Thursday
	first := fullTime("c-1", "emp-1", 2024, 1, 2024, 3)
	first.ToDay = generic.Wednesday
	second := fullTime("c-2", "emp-1", 2024, 3, 2024, 10)
	second.FromDay = generic.Thursday
	contracts := []hours.Contract{first, second}
	r := hours.NewContractResolver(hours.OverlapFail, discard)

	// THEN: Day resolution separates them
	tue, err := r.ResolveDay(contracts, "emp-1", date(2024, time.January, 16))
	require.NoError(t, err)
	assert.Equal(t, generic.ContractID("c-1"), tue.ID)

	fri, err := r.ResolveDay(contracts, "emp-1", date(2024, time.January, 19))
	require.NoError(t, err)
	assert.Equal(t, generic.ContractID("c-2"), fri.ID)

	// AND: Both still claim the week as a whole
	_, err = r.Resolve(contracts, "emp-1", generic.NewWeek(2024, 3))
	assert.ErrorIs(t, err, generic.ErrAmbiguousContractOverlap)

	// AND: They do not overlap at write time
	assert.NoError(t, hours.ValidateNoOverlap([]hours.Contract{first}, second))
}

func TestValidateNoOverlap(t *testing.T) {
	existing := []hours.Contract{fullTime("c-1", "emp-1", 2024, 1, 2024, 10)}

	tests := []struct {
		name    string
		c       hours.Contract
		wantErr error
	}{
		{"adjacent week", fullTime("c-2", "emp-1", 2024, 11, 2024, 20), nil},
		{"overlapping", fullTime("c-2", "emp-1", 2024, 10, 2024, 20), generic.ErrContractOverlap},
		{"other employee", fullTime("c-2", "emp-2", 2024, 1, 2024, 10), nil},
		{"update of itself", fullTime("c-1", "emp-1", 2024, 1, 2024, 12), nil},
		{"reversed window", fullTime("c-2", "emp-1", 2024, 20, 2024, 11), generic.ErrInvalidInput},
		{"week out of range", fullTime("c-2", "emp-1", 2023, 53, 2024, 1), generic.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hours.ValidateNoOverlap(existing, tt.c)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseOverlapPolicy(t *testing.T) {
	p, err := hours.ParseOverlapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, hours.OverlapFail, p)

	p, err = hours.ParseOverlapPolicy("latest")
	require.NoError(t, err)
	assert.Equal(t, hours.OverlapLatest, p)

	_, err = hours.ParseOverlapPolicy("first")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestEmployeesAndBaseYear(t *testing.T) {
	contracts := []hours.Contract{
		fullTime("c-3", "emp-b", 2024, 1, 2024, 10),
		fullTime("c-1", "emp-a", 2023, 40, 2024, 10),
		fullTime("c-2", "emp-b", 2024, 11, 2024, 20),
	}

	assert.Equal(t, []generic.EmployeeID{"emp-a", "emp-b"}, hours.EmployeesWithContracts(contracts))

	year, ok := hours.EarliestContractYear(contracts)
	assert.True(t, ok)
	assert.Equal(t, 2023, year)

	_, ok = hours.EarliestContractYear(nil)
	assert.False(t, ok)
}

func TestContract_Shares(t *testing.T) {
	c := fullTime("c-1", "emp-1", 2024, 1, 2024, 10)
	requireDecimal(t, "8", c.DailyShare())
	requireDecimal(t, "8", c.HoursPerDay())

	// Without WorkdaysPerWeek the active weekdays are used
	c.WorkdaysPerWeek = 0
	c.Friday = false
	requireDecimal(t, "10", c.DailyShare())
	requireDecimal(t, "10", c.HoursPerDay())

	assert.Equal(t, "2024-01-01", c.StartDate().String())
	assert.Equal(t, "2024-03-10", c.EndDate().String())
}
