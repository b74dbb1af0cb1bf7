/*
engine_test.go - Behavior of the engine entry points

ORGANIZATION:
  1. Reference scenarios (weekly balance, holidays, carryover seed, finalize)
  2. Algebraic properties (YTD identity, additivity, neutral edits)
  3. Extra hours and special days through the full pipeline
  4. Batches, overlap policies and transaction scoping
*/
package hours_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
	"github.com/warp/hours-engine/hours/store"
)

// =============================================================================
// REFERENCE SCENARIOS
// =============================================================================

func TestScenarioA_FullWeekBooked_BalanceZero(t *testing.T) {
	// GIVEN: 40h contract, five 8h bookings in week 3
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 3, weekdays...)

	// WHEN: Week 3 is computed
	values, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 3), []hours.ValueType{hours.Balance, hours.ExpectedHours, hours.Overall})
	require.NoError(t, err)

	// THEN: Worked equals expected
	requireDecimal(t, "0", valueOf(t, values, hours.Balance).Delta)
	requireDecimal(t, "40", valueOf(t, values, hours.ExpectedHours).Delta)
	requireDecimal(t, "40", valueOf(t, values, hours.Overall).Delta)
}

func TestScenarioB_HolidayOnWednesday_BalancePlusEight(t *testing.T) {
	// GIVEN: Scenario A plus a holiday on Wednesday of week 3
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 3, weekdays...)
	require.NoError(t, repo.SaveSpecialDay(ctx, hours.SpecialDay{
		ID: "sd-1", Year: 2024, Week: 3, DayOfWeek: generic.Wednesday, Type: hours.SpecialDayHoliday,
	}))

	// WHEN: Week 3 is computed
	values, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 3), []hours.ValueType{hours.Balance, hours.ExpectedHours})
	require.NoError(t, err)

	// THEN: Four days are expected and the fifth is surplus
	requireDecimal(t, "32", valueOf(t, values, hours.ExpectedHours).Delta)
	requireDecimal(t, "8", valueOf(t, values, hours.Balance).Delta)
}

func TestScenarioC_CarryoverSeedsYearToDate(t *testing.T) {
	// GIVEN: A stored carryover of +5.5 for 2023
	ctx := context.Background()
	repo, engine := scenarioA(t)
	require.NoError(t, repo.PutCarryover(ctx, hours.Carryover{EmployeeID: "emp-1", Year: 2023, Hours: dec("5.5")}))

	// WHEN: Week 1 of 2024 is computed without activity
	values, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 1), []hours.ValueType{hours.Balance})
	require.NoError(t, err)

	// THEN: The year starts from the carryover
	balance := valueOf(t, values, hours.Balance)
	requireDecimal(t, "5.5", balance.YTDFrom)
	requireDecimal(t, "-40", balance.Delta)
	requireDecimal(t, "-34.5", balance.YTDTo)
}

func TestScenarioD_FinalizeTwice_Conflict(t *testing.T) {
	// GIVEN: A finalized period
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 3, weekdays...)
	period := generic.NewPeriod(date(2024, time.January, 1), date(2024, time.January, 31))

	first, err := engine.FinalizeBillingPeriod(ctx, period)
	require.NoError(t, err)

	// WHEN: The same bounds are finalized again
	_, err = engine.FinalizeBillingPeriod(ctx, period)

	// THEN: The second call is rejected and one set of rows exists
	require.ErrorIs(t, err, generic.ErrConflictAlreadyFinalized)

	periods, err := engine.BillingPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 1)

	stored, err := engine.BillingPeriod(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Rows, len(hours.StandardValueTypes))
	for _, row := range stored.Rows {
		assert.Equal(t, first.ID, row.BillingPeriodID)
		assert.Equal(t, generic.EmployeeID("emp-1"), row.EmployeeID)
	}
}

func TestFinalize_ConcurrentCallsOnlyOneSucceeds(t *testing.T) {
	// GIVEN: Many callers racing to finalize the same window
	ctx := context.Background()
	_, engine := scenarioA(t)
	period := weekPeriod(2024, 2)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.FinalizeBillingPeriod(ctx, period)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, generic.ErrConflictAlreadyFinalized):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// THEN: Exactly one wins
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)
}

func TestFinalize_ClearedPeriodCanBeFinalizedAgain(t *testing.T) {
	ctx := context.Background()
	_, engine := scenarioA(t)
	period := weekPeriod(2024, 2)

	first, err := engine.FinalizeBillingPeriod(ctx, period)
	require.NoError(t, err)
	require.NoError(t, engine.ClearBillingPeriod(ctx, first.ID))

	second, err := engine.FinalizeBillingPeriod(ctx, period)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	assert.ErrorIs(t, engine.ClearBillingPeriod(ctx, first.ID), generic.ErrNotFound)
}

func TestFinalizeNext_StartsAfterLatest(t *testing.T) {
	ctx := context.Background()
	_, engine := scenarioA(t)

	first, err := engine.FinalizeNextBillingPeriod(ctx, date(2024, time.January, 14))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", first.Period.Start.String())

	second, err := engine.FinalizeNextBillingPeriod(ctx, date(2024, time.January, 28))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", second.Period.Start.String())
}

func TestFinalize_IncludesActiveCustomTypes(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	require.NoError(t, repo.SaveCustomExtraHours(ctx, hours.CustomExtraHours{ID: "ct-1", Name: "Training", ModifiesBalance: true}))
	require.NoError(t, repo.SetCustomExtraHoursLink(ctx, "emp-1", "ct-1", true))

	bp, err := engine.FinalizeBillingPeriod(ctx, weekPeriod(2024, 2))
	require.NoError(t, err)

	assert.Len(t, bp.Rows, len(hours.StandardValueTypes)+1)
	assert.Equal(t, hours.CustomExtraHoursValue("Training"), bp.Rows[len(bp.Rows)-1].ValueType)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestProperty_YearToDateIdentity(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 2, generic.Monday, generic.Tuesday)
	book(t, repo, "emp-1", 2024, 4, weekdays...)
	require.NoError(t, repo.SaveExtraHours(ctx, extra("x-1", "emp-1", hours.CategoryVacation, "8", date(2024, time.January, 26))))

	periods := []generic.Period{
		weekPeriod(2024, 1),
		weekPeriod(2024, 4),
		generic.NewPeriod(date(2024, time.January, 10), date(2024, time.February, 20)),
	}
	for _, p := range periods {
		values, err := engine.ComputeBalance(ctx, "emp-1", p, hours.StandardValueTypes)
		require.NoError(t, err)
		for _, v := range values {
			assert.True(t, v.YTDTo.Sub(v.YTDFrom).Equal(v.Delta), "%s over %s: to-from != delta", v.Type, p)
			assert.True(t, v.FullYear.GreaterThanOrEqual(v.YTDTo) || v.Type.Kind == hours.ValueBalance,
				"%s over %s: full year below ytd", v.Type, p)
		}
	}
}

func TestProperty_Additivity(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 1, generic.Monday, generic.Wednesday)
	book(t, repo, "emp-1", 2024, 3, weekdays...)
	book(t, repo, "emp-1", 2024, 5, generic.Friday)
	require.NoError(t, repo.SaveExtraHours(ctx, extra("x-1", "emp-1", hours.CategoryExtraWork, "1.25", date(2024, time.January, 23))))
	require.NoError(t, repo.SaveExtraHours(ctx, extra("x-2", "emp-1", hours.CategorySickLeave, "8", date(2024, time.February, 1))))

	whole := generic.NewPeriod(weekPeriod(2024, 1).Start, weekPeriod(2024, 6).End)
	left := generic.NewPeriod(weekPeriod(2024, 1).Start, weekPeriod(2024, 3).End)
	right := generic.NewPeriod(weekPeriod(2024, 4).Start, weekPeriod(2024, 6).End)

	// Entitlement accrues fractions of a day and is rounded per range, so
	// only the hour figures are compared.
	types := []hours.ValueType{
		hours.Balance, hours.Overall, hours.ExpectedHours,
		hours.ExtraWork, hours.SickLeave, hours.VacationHours,
	}
	w, err := engine.ComputeBalance(ctx, "emp-1", whole, types)
	require.NoError(t, err)
	l, err := engine.ComputeBalance(ctx, "emp-1", left, types)
	require.NoError(t, err)
	r, err := engine.ComputeBalance(ctx, "emp-1", right, types)
	require.NoError(t, err)

	for i := range w {
		sum := l[i].Delta.Add(r[i].Delta)
		assert.True(t, w[i].Delta.Equal(sum), "%s: %s != %s + %s", w[i].Type, w[i].Delta, l[i].Delta, r[i].Delta)
	}
	// 64h booked + 1.25 extra work + 8 sick leave - 240 expected
	requireDecimal(t, "-166.75", valueOf(t, w, hours.Balance).Delta)
}

func TestProperty_CreateThenDeleteIsNeutral(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 3, generic.Monday)
	period := generic.NewPeriod(weekPeriod(2024, 2).Start, weekPeriod(2024, 4).End)

	before, err := engine.ComputeBalance(ctx, "emp-1", period, hours.StandardValueTypes)
	require.NoError(t, err)

	// WHEN: A booking and an extra hours entry are created then soft-deleted
	ids := book(t, repo, "emp-1", 2024, 3, generic.Tuesday)
	require.NoError(t, repo.SaveExtraHours(ctx, extra("x-1", "emp-1", hours.CategoryExtraWork, "3", date(2024, time.January, 17))))
	require.NoError(t, repo.DeleteBooking(ctx, ids[0]))
	require.NoError(t, repo.DeleteExtraHours(ctx, "x-1"))

	after, err := engine.ComputeBalance(ctx, "emp-1", period, hours.StandardValueTypes)
	require.NoError(t, err)

	// THEN: Nothing changed
	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, before[i].Delta.Equal(after[i].Delta), "%s delta changed", before[i].Type)
		assert.True(t, before[i].YTDTo.Equal(after[i].YTDTo), "%s ytd changed", before[i].Type)
		assert.True(t, before[i].FullYear.Equal(after[i].FullYear), "%s full year changed", before[i].Type)
	}
}

func TestProperty_CarryoverEqualsFullYear(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 3, weekdays...)

	values, err := engine.ComputeBalance(ctx, "emp-1", generic.YearPeriod(2024), []hours.ValueType{hours.Balance})
	require.NoError(t, err)
	c, err := engine.Carryover(ctx, "emp-1", 2024)
	require.NoError(t, err)

	requireDecimal(t, "-360", c.Hours)
	assert.True(t, c.Hours.Equal(valueOf(t, values, hours.Balance).YTDTo))
}

func TestProperty_SpecialDayOverridesThatDayOnly(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	// Saturday is not an active weekday, the holiday must not create hours
	require.NoError(t, repo.SaveSpecialDay(ctx, hours.SpecialDay{
		ID: "sd-sat", Year: 2024, Week: 3, DayOfWeek: generic.Saturday, Type: hours.SpecialDayHoliday,
	}))
	require.NoError(t, repo.SaveSpecialDay(ctx, hours.SpecialDay{
		ID: "sd-mon", Year: 2024, Week: 3, DayOfWeek: generic.Monday, Type: hours.SpecialDayHoliday,
	}))

	monday, err := engine.ComputeBalance(ctx, "emp-1", generic.NewPeriod(date(2024, time.January, 15), date(2024, time.January, 15)), []hours.ValueType{hours.ExpectedHours})
	require.NoError(t, err)
	tuesday, err := engine.ComputeBalance(ctx, "emp-1", generic.NewPeriod(date(2024, time.January, 16), date(2024, time.January, 16)), []hours.ValueType{hours.ExpectedHours})
	require.NoError(t, err)
	week, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 3), []hours.ValueType{hours.ExpectedHours})
	require.NoError(t, err)

	requireDecimal(t, "0", monday[0].Delta)
	requireDecimal(t, "8", tuesday[0].Delta)
	requireDecimal(t, "32", week[0].Delta)
}

// =============================================================================
// SPECIAL DAYS AND EXTRA HOURS
// =============================================================================

func TestShortDay(t *testing.T) {
	noon := generic.NewTimeOfDay(12, 0)
	tests := []struct {
		name string
		days []hours.SpecialDay
		want string
	}{
		{
			name: "ends at noon",
			days: []hours.SpecialDay{{ID: "s", Year: 2024, Week: 3, DayOfWeek: generic.Tuesday, Type: hours.SpecialDayShortDay, TimeOfDay: &noon}},
			want: "36",
		},
		{
			name: "no time halves the day",
			days: []hours.SpecialDay{{ID: "s", Year: 2024, Week: 3, DayOfWeek: generic.Tuesday, Type: hours.SpecialDayShortDay}},
			want: "36",
		},
		{
			name: "holiday wins over short day",
			days: []hours.SpecialDay{
				{ID: "a", Year: 2024, Week: 3, DayOfWeek: generic.Tuesday, Type: hours.SpecialDayShortDay, TimeOfDay: &noon},
				{ID: "b", Year: 2024, Week: 3, DayOfWeek: generic.Tuesday, Type: hours.SpecialDayHoliday},
			},
			want: "32",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo, engine := scenarioA(t)
			for _, sd := range tt.days {
				require.NoError(t, repo.SaveSpecialDay(ctx, sd))
			}

			values, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 3), []hours.ValueType{hours.ExpectedHours})
			require.NoError(t, err)
			requireDecimal(t, tt.want, values[0].Delta)
		})
	}
}

func TestAbsence_CreditedOnlyUnderContract(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 3, generic.Monday, generic.Tuesday, generic.Wednesday, generic.Thursday)
	require.NoError(t, repo.SaveExtraHours(ctx, extra("v-1", "emp-1", hours.CategoryVacation, "8", date(2024, time.January, 19))))
	// Week 12 is after the contract ended
	require.NoError(t, repo.SaveExtraHours(ctx, extra("v-2", "emp-1", hours.CategoryVacation, "8", date(2024, time.March, 18))))

	types := []hours.ValueType{hours.Balance, hours.VacationHours, hours.VacationDays}

	// WHEN: A week with four bookings and one vacation day is computed
	w3, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 3), types)
	require.NoError(t, err)

	// THEN: The vacation fills the gap
	requireDecimal(t, "0", valueOf(t, w3, hours.Balance).Delta)
	requireDecimal(t, "8", valueOf(t, w3, hours.VacationHours).Delta)
	requireDecimal(t, "1", valueOf(t, w3, hours.VacationDays).Delta)

	// WHEN: Vacation is recorded without a contract
	w12, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 12), types)
	require.NoError(t, err)

	// THEN: It is reported but not credited
	requireDecimal(t, "0", valueOf(t, w12, hours.Balance).Delta)
	requireDecimal(t, "8", valueOf(t, w12, hours.VacationHours).Delta)
}

func TestExpiredSlot_CountsNothing(t *testing.T) {
	// GIVEN: A Monday slot that expired at the end of 2023, booked in 2024-W03
	ctx := context.Background()
	repo, engine := scenarioA(t)
	expiry := date(2023, time.December, 31)
	require.NoError(t, repo.SaveSlot(ctx, hours.Slot{
		ID: "slot-old", DayOfWeek: generic.Monday,
		From: generic.NewTimeOfDay(8, 0), To: generic.NewTimeOfDay(16, 0), ValidTo: &expiry,
	}))
	require.NoError(t, repo.SaveBooking(ctx, hours.Booking{ID: "b-old", EmployeeID: "emp-1", SlotID: "slot-old", Year: 2024, Week: 3}))

	// WHEN: The week is computed
	values, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 3), []hours.ValueType{hours.Overall, hours.Balance})
	require.NoError(t, err)

	// THEN: The booking adds no worked time
	requireDecimal(t, "0", valueOf(t, values, hours.Overall).Delta)
	requireDecimal(t, "-40", valueOf(t, values, hours.Balance).Delta)
}

func TestExtraHours_Categories(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	at := date(2024, time.January, 16)
	require.NoError(t, repo.SaveExtraHours(ctx, extra("e-1", "emp-1", hours.CategoryExtraWork, "2", at)))
	require.NoError(t, repo.SaveExtraHours(ctx, extra("e-2", "emp-1", hours.CategorySickLeave, "8", at)))
	require.NoError(t, repo.SaveExtraHours(ctx, extra("e-3", "emp-1", hours.CategoryHoliday, "4", at)))
	require.NoError(t, repo.SaveExtraHours(ctx, extra("e-4", "emp-1", hours.CategoryUnavailable, "5", at)))

	values, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 3), hours.StandardValueTypes)
	require.NoError(t, err)

	requireDecimal(t, "2", valueOf(t, values, hours.ExtraWork).Delta)
	requireDecimal(t, "8", valueOf(t, values, hours.SickLeave).Delta)
	requireDecimal(t, "4", valueOf(t, values, hours.Holiday).Delta)
	requireDecimal(t, "5", valueOf(t, values, hours.Unavailable).Delta)
	requireDecimal(t, "2", valueOf(t, values, hours.Overall).Delta)
	// -40 + 2 extra work + 8 sick + 4 holiday; unavailable is informational
	requireDecimal(t, "-26", valueOf(t, values, hours.Balance).Delta)
}

func TestCustomExtraHours_LinkedUnlinkedAndUnknown(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	require.NoError(t, repo.SaveCustomExtraHours(ctx, hours.CustomExtraHours{ID: "ct-train", Name: "Training", ModifiesBalance: true}))
	require.NoError(t, repo.SaveCustomExtraHours(ctx, hours.CustomExtraHours{ID: "ct-info", Name: "Commute", ModifiesBalance: false}))
	require.NoError(t, repo.SetCustomExtraHoursLink(ctx, "emp-1", "ct-train", true))
	require.NoError(t, repo.SetCustomExtraHoursLink(ctx, "emp-1", "ct-info", true))

	at := date(2024, time.January, 17)
	train := extra("c-1", "emp-1", hours.CategoryCustom, "3", at)
	train.CustomTypeID = "ct-train"
	commute := extra("c-2", "emp-1", hours.CategoryCustom, "2", at)
	commute.CustomTypeID = "ct-info"
	unknown := extra("c-3", "emp-1", hours.CategoryCustom, "7", at)
	unknown.CustomTypeID = "ct-missing"
	for _, e := range []hours.ExtraHours{train, commute, unknown} {
		require.NoError(t, repo.SaveExtraHours(ctx, e))
	}

	types := []hours.ValueType{
		hours.Balance, hours.Overall,
		hours.CustomExtraHoursValue("Training"), hours.CustomExtraHoursValue("Commute"),
	}
	compute := func() []hours.Value {
		values, err := engine.ComputeBalance(ctx, "emp-1", weekPeriod(2024, 3), types)
		require.NoError(t, err)
		return values
	}

	// THEN: Only the balance-affecting type moves the balance
	values := compute()
	requireDecimal(t, "3", valueOf(t, values, hours.CustomExtraHoursValue("Training")).Delta)
	requireDecimal(t, "2", valueOf(t, values, hours.CustomExtraHoursValue("Commute")).Delta)
	requireDecimal(t, "3", valueOf(t, values, hours.Overall).Delta)
	requireDecimal(t, "-37", valueOf(t, values, hours.Balance).Delta)

	// WHEN: The balance-affecting type is unlinked
	require.NoError(t, repo.SetCustomExtraHoursLink(ctx, "emp-1", "ct-train", false))

	// THEN: Entries recorded against it still count
	values = compute()
	requireDecimal(t, "3", valueOf(t, values, hours.CustomExtraHoursValue("Training")).Delta)
	requireDecimal(t, "-37", valueOf(t, values, hours.Balance).Delta)
}

// =============================================================================
// BATCHES, OVERLAPS AND SCOPING
// =============================================================================

// overlapStore adds a contract to every contract listing, bypassing the
// write-time overlap check of the repository.
type overlapStore struct {
	*store.Memory
	extra hours.Contract
}

type overlapScope struct {
	hours.Store
	extra hours.Contract
}

func inject(list []hours.Contract, extra hours.Contract, employee generic.EmployeeID, weeks generic.WeekRange) []hours.Contract {
	if (employee == generic.AllEmployees || employee == extra.EmployeeID) && extra.Weeks().Overlaps(weeks) {
		list = append(list, extra)
	}
	return list
}

func (o overlapStore) ListActiveContracts(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Contract, error) {
	list, err := o.Memory.ListActiveContracts(ctx, employee, weeks)
	return inject(list, o.extra, employee, weeks), err
}

func (o overlapStore) WithTx(ctx context.Context, fn func(hours.Store) error) error {
	return o.Memory.WithTx(ctx, func(s hours.Store) error {
		return fn(overlapScope{Store: s, extra: o.extra})
	})
}

func (o overlapScope) ListActiveContracts(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Contract, error) {
	list, err := o.Store.ListActiveContracts(ctx, employee, weeks)
	return inject(list, o.extra, employee, weeks), err
}

func newOverlapStore(t *testing.T) overlapStore {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) }
	repo := store.NewMemoryWithClock(clock)
	ctx := context.Background()
	require.NoError(t, repo.SaveContract(ctx, fullTime("c-good", "emp-good", 2024, 1, 2024, 10)))
	require.NoError(t, repo.SaveContract(ctx, fullTime("c-bad", "emp-bad", 2024, 1, 2024, 10)))
	workdaySlots(t, repo)

	dup := fullTime("c-bad-2", "emp-bad", 2024, 2, 2024, 6)
	dup.ExpectedHours = decimal.NewFromInt(20)
	dup.CreatedAt = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	return overlapStore{Memory: repo, extra: dup}
}

func TestComputeBalanceAll_IsolatesFailures(t *testing.T) {
	// GIVEN: One employee with overlapping contracts and one without
	ctx := context.Background()
	engine := newEngine(t, newOverlapStore(t))

	// WHEN: Everyone is computed
	results, err := engine.ComputeBalanceAll(ctx, weekPeriod(2024, 3), []hours.ValueType{hours.ExpectedHours})
	require.NoError(t, err)

	// THEN: The bad employee reports the overlap and the good one is unaffected
	require.Len(t, results, 2)
	assert.ErrorIs(t, results["emp-bad"].Err, generic.ErrAmbiguousContractOverlap)
	require.NoError(t, results["emp-good"].Err)
	requireDecimal(t, "40", results["emp-good"].Values[0].Delta)
}

func TestOverlapLatest_PicksMostRecentContract(t *testing.T) {
	ctx := context.Background()
	repo := newOverlapStore(t)
	engine := hours.New(repo, hours.Config{Precision: 2, OverlapPolicy: hours.OverlapLatest}, hours.WithLogger(discard))

	values, err := engine.ComputeBalance(ctx, "emp-bad", weekPeriod(2024, 3), []hours.ValueType{hours.ExpectedHours})
	require.NoError(t, err)
	requireDecimal(t, "20", values[0].Delta)

	c, err := engine.ResolveContract(ctx, "emp-bad", generic.NewWeek(2024, 8))
	require.NoError(t, err)
	assert.Equal(t, generic.ContractID("c-bad"), c.ID)
}

func TestFinalize_EmployeeFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, newOverlapStore(t))

	_, err := engine.FinalizeBillingPeriod(ctx, weekPeriod(2024, 3))

	var batch *generic.BatchError
	require.ErrorAs(t, err, &batch)
	assert.ErrorIs(t, batch.Errors["emp-bad"], generic.ErrAmbiguousContractOverlap)
	assert.NotContains(t, batch.Errors, generic.EmployeeID("emp-good"))

	periods, err := engine.BillingPeriods(ctx)
	require.NoError(t, err)
	assert.Empty(t, periods, "no header may survive a failed finalize")
}

func TestCancelledContext_LeavesNoCarryover(t *testing.T) {
	_, engine := scenarioA(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Carryover(ctx, "emp-1", 2024)
	require.ErrorIs(t, err, context.Canceled)

	stored, err := engine.StoredCarryover(context.Background(), "emp-1", 2024)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestWeeklyReport(t *testing.T) {
	ctx := context.Background()
	repo, engine := scenarioA(t)
	book(t, repo, "emp-1", 2024, 3, weekdays...)

	weeks, err := engine.WeeklyReport(ctx, "emp-1", generic.NewPeriod(weekPeriod(2024, 3).Start, weekPeriod(2024, 4).End))
	require.NoError(t, err)

	require.Len(t, weeks, 2)
	assert.Equal(t, generic.NewWeek(2024, 3), weeks[0].Week)
	requireDecimal(t, "40", weeks[0].Actual)
	requireDecimal(t, "0", weeks[0].Balance)
	requireDecimal(t, "-40", weeks[1].Balance)
}

func TestComputeBalance_RejectsInvalidPeriod(t *testing.T) {
	_, engine := scenarioA(t)
	_, err := engine.ComputeBalance(context.Background(), "emp-1",
		generic.NewPeriod(date(2024, time.February, 1), date(2024, time.January, 1)), nil)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
	assert.True(t, generic.IsClientError(err))
}

func TestComputeBalance_NoContractIsZero(t *testing.T) {
	_, engine := scenarioA(t)
	values, err := engine.ComputeBalance(context.Background(), "nobody", weekPeriod(2024, 3), nil)
	require.NoError(t, err)
	for _, v := range values {
		assert.True(t, v.Delta.IsZero(), "%s should be zero", v.Type)
	}
}
