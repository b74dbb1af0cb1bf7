package sqlite_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
	"github.com/warp/hours-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seed stores a 40h Monday-Friday contract over 2024-W01..W10 and one
// 08:00-16:00 slot per weekday.
func seed(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveContract(ctx, hours.Contract{
		ID: "c-1", EmployeeID: "emp-1",
		FromYear: 2024, FromWeek: 1, ToYear: 2024, ToWeek: 10,
		ExpectedHours: decimal.NewFromInt(40), WorkdaysPerWeek: 5,
		Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
		VacationDays: 25,
	}))
	for _, d := range generic.AllDays {
		require.NoError(t, s.SaveSlot(ctx, hours.Slot{
			ID: generic.SlotID("slot-" + d.String()), DayOfWeek: d,
			From: generic.NewTimeOfDay(8, 0), To: generic.NewTimeOfDay(16, 0),
		}))
	}
}

func bookWeek(t *testing.T, s *sqlite.Store, year, week int) {
	t.Helper()
	for _, d := range []generic.DayOfWeek{generic.Monday, generic.Tuesday, generic.Wednesday, generic.Thursday, generic.Friday} {
		require.NoError(t, s.SaveBooking(context.Background(), hours.Booking{
			ID:         generic.BookingID("b-" + d.String()),
			EmployeeID: "emp-1",
			SlotID:     generic.SlotID("slot-" + d.String()),
			Year:       year,
			Week:       week,
		}))
	}
}

func week(year, w int) generic.Period {
	return generic.SingleWeek(generic.NewWeek(year, w)).Period()
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestContracts_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)

	list, err := s.ListActiveContracts(ctx, "emp-1", generic.SingleWeek(generic.NewWeek(2024, 5)))
	require.NoError(t, err)
	require.Len(t, list, 1)
	c := list[0]
	assert.Equal(t, generic.ContractID("c-1"), c.ID)
	assert.True(t, c.ExpectedHours.Equal(decimal.NewFromInt(40)))
	assert.True(t, c.Friday)
	assert.False(t, c.Saturday)
	assert.Equal(t, 25, c.VacationDays)
	assert.False(t, c.CreatedAt.IsZero())

	none, err := s.ListActiveContracts(ctx, "emp-1", generic.SingleWeek(generic.NewWeek(2024, 11)))
	require.NoError(t, err)
	assert.Empty(t, none)

	overlap := c
	overlap.ID = "c-2"
	assert.ErrorIs(t, s.SaveContract(ctx, overlap), generic.ErrContractOverlap)
}

func TestExtraHoursAndSpecialDays_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)

	at := time.Date(2024, time.January, 16, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.SaveExtraHours(ctx, hours.ExtraHours{
		ID: "x-1", EmployeeID: "emp-1", Amount: decimal.RequireFromString("1.25"),
		Category: hours.CategoryExtraWork, Description: "release", At: at,
	}))
	noon := generic.NewTimeOfDay(12, 0)
	require.NoError(t, s.SaveSpecialDay(ctx, hours.SpecialDay{
		ID: "sd-1", Year: 2024, Week: 3, DayOfWeek: generic.Tuesday, Type: hours.SpecialDayShortDay, TimeOfDay: &noon,
	}))

	extra, err := s.ListExtraHours(ctx, "emp-1", week(2024, 3))
	require.NoError(t, err)
	require.Len(t, extra, 1)
	assert.True(t, extra[0].Amount.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, extra[0].At.Equal(at))
	assert.Equal(t, "release", extra[0].Description)

	days, err := s.ListSpecialDays(ctx, generic.SingleWeek(generic.NewWeek(2024, 3)))
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.NotNil(t, days[0].TimeOfDay)
	assert.Equal(t, noon, *days[0].TimeOfDay)

	require.NoError(t, s.DeleteExtraHours(ctx, "x-1"))
	assert.ErrorIs(t, s.DeleteExtraHours(ctx, "x-1"), generic.ErrNotFound)
	extra, err = s.ListExtraHours(ctx, "emp-1", week(2024, 3))
	require.NoError(t, err)
	assert.Empty(t, extra)
}

func TestCustomExtraHoursLinks(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	assert.ErrorIs(t, s.SetCustomExtraHoursLink(ctx, "emp-1", "ct-1", true), generic.ErrNotFound)

	require.NoError(t, s.SaveCustomExtraHours(ctx, hours.CustomExtraHours{ID: "ct-1", Name: "Training", ModifiesBalance: true}))
	require.NoError(t, s.SetCustomExtraHoursLink(ctx, "emp-1", "ct-1", true))
	require.NoError(t, s.SetCustomExtraHoursLink(ctx, "emp-1", "ct-1", false))

	links, err := s.ListCustomExtraHoursLinks(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.False(t, links[0].Active)
	assert.Equal(t, "Training", links[0].Type.Name)
	assert.True(t, links[0].Type.ModifiesBalance)
}

// =============================================================================
// CARRYOVER
// =============================================================================

func TestCarryover_PutInvalidatePut(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.PutCarryover(ctx, hours.Carryover{
		EmployeeID: "emp-1", Year: 2024, Hours: decimal.RequireFromString("-12.5"),
		VacationDays: decimal.NewFromInt(3), Version: "v1",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.InvalidateCarryover(ctx, generic.AllEmployees, 2024))

	c, err := s.GetCarryover(ctx, "emp-1", 2024)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.IsDeleted())
	assert.True(t, c.Hours.Equal(decimal.RequireFromString("-12.5")))

	require.NoError(t, s.PutCarryover(ctx, hours.Carryover{EmployeeID: "emp-1", Year: 2024, Hours: decimal.NewFromInt(1), Version: "v2"}))
	c, err = s.GetCarryover(ctx, "emp-1", 2024)
	require.NoError(t, err)
	assert.False(t, c.IsDeleted())
	assert.Equal(t, "v2", c.Version)

	missing, err := s.GetCarryover(ctx, "emp-1", 2030)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSourceWrites_InvalidateCarryover(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)
	require.NoError(t, s.PutCarryover(ctx, hours.Carryover{EmployeeID: "emp-1", Year: 2024, Hours: decimal.Zero}))

	bookWeek(t, s, 2024, 3)

	c, err := s.GetCarryover(ctx, "emp-1", 2024)
	require.NoError(t, err)
	assert.True(t, c.IsDeleted())
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestEngine_BalanceAndFinalize(t *testing.T) {
	// GIVEN: Scenario with one fully booked week
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)
	bookWeek(t, s, 2024, 3)
	engine := hours.New(s, hours.DefaultConfig(), hours.WithLogger(slog.New(slog.DiscardHandler)))

	// WHEN: Week 3 is computed
	values, err := engine.ComputeBalance(ctx, "emp-1", week(2024, 3), []hours.ValueType{hours.Balance, hours.ExpectedHours})
	require.NoError(t, err)

	// THEN: The week is balanced
	assert.True(t, values[0].Delta.IsZero(), "balance %s", values[0].Delta)
	assert.True(t, values[1].Delta.Equal(decimal.NewFromInt(40)))

	// AND: The carryover is persisted by the database
	c, err := engine.Carryover(ctx, "emp-1", 2024)
	require.NoError(t, err)
	assert.True(t, c.Hours.Equal(decimal.NewFromInt(-360)), "carryover %s", c.Hours)

	// WHEN: January is finalized twice
	period := generic.NewPeriod(generic.NewTimePoint(2024, time.January, 1), generic.NewTimePoint(2024, time.January, 31))
	bp, err := engine.FinalizeBillingPeriod(ctx, period)
	require.NoError(t, err)
	_, err = engine.FinalizeBillingPeriod(ctx, period)

	// THEN: The unique index rejects the second one
	assert.ErrorIs(t, err, generic.ErrConflictAlreadyFinalized)

	stored, err := engine.BillingPeriod(ctx, bp.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Rows, len(hours.StandardValueTypes))
	assert.Equal(t, "2024-01-31", stored.Period.End.String())

	// AND: Clearing frees the bounds
	require.NoError(t, engine.ClearBillingPeriod(ctx, bp.ID))
	_, err = engine.FinalizeBillingPeriod(ctx, period)
	require.NoError(t, err)

	periods, err := engine.BillingPeriods(ctx)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}
