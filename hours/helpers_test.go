package hours_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
	"github.com/warp/hours-engine/hours/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var discard = slog.New(slog.DiscardHandler)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func weekPeriod(year, week int) generic.Period {
	return generic.SingleWeek(generic.NewWeek(year, week)).Period()
}

func newEngine(t *testing.T, repo hours.TxStore, opts ...hours.Option) *hours.Engine {
	t.Helper()
	return hours.New(repo, hours.DefaultConfig(), append([]hours.Option{hours.WithLogger(discard)}, opts...)...)
}

// fullTime is 40h over Monday-Friday.
func fullTime(id, employee string, fromYear, fromWeek, toYear, toWeek int) hours.Contract {
	return hours.Contract{
		ID:              generic.ContractID(id),
		EmployeeID:      generic.EmployeeID(employee),
		FromYear:        fromYear,
		FromWeek:        fromWeek,
		ToYear:          toYear,
		ToWeek:          toWeek,
		ExpectedHours:   decimal.NewFromInt(40),
		WorkdaysPerWeek: 5,
		Monday:          true,
		Tuesday:         true,
		Wednesday:       true,
		Thursday:        true,
		Friday:          true,
		VacationDays:    25,
	}
}

// workdaySlots stores one 08:00-16:00 slot per weekday, IDs "slot-monday"...
func workdaySlots(t *testing.T, repo hours.SourceWriter) {
	t.Helper()
	for _, d := range generic.AllDays {
		require.NoError(t, repo.SaveSlot(context.Background(), hours.Slot{
			ID:        slotID(d),
			DayOfWeek: d,
			From:      generic.NewTimeOfDay(8, 0),
			To:        generic.NewTimeOfDay(16, 0),
		}))
	}
}

func slotID(d generic.DayOfWeek) generic.SlotID { return generic.SlotID("slot-" + d.String()) }

// book stores one 8h booking per given weekday.
func book(t *testing.T, repo hours.SourceWriter, employee string, year, week int, days ...generic.DayOfWeek) []generic.BookingID {
	t.Helper()
	var ids []generic.BookingID
	for _, d := range days {
		id := generic.BookingID(fmt.Sprintf("b-%s-%d-%d-%d", employee, year, week, d))
		require.NoError(t, repo.SaveBooking(context.Background(), hours.Booking{
			ID:         id,
			EmployeeID: generic.EmployeeID(employee),
			SlotID:     slotID(d),
			Year:       year,
			Week:       week,
		}))
		ids = append(ids, id)
	}
	return ids
}

var weekdays = []generic.DayOfWeek{generic.Monday, generic.Tuesday, generic.Wednesday, generic.Thursday, generic.Friday}

func extra(id, employee string, category hours.Category, amount string, at generic.TimePoint) hours.ExtraHours {
	return hours.ExtraHours{
		ID:         generic.ExtraHoursID(id),
		EmployeeID: generic.EmployeeID(employee),
		Amount:     dec(amount),
		Category:   category,
		At:         at.Time.Add(10 * time.Hour),
	}
}

func valueOf(t *testing.T, values []hours.Value, vt hours.ValueType) hours.Value {
	t.Helper()
	for _, v := range values {
		if v.Type == vt {
			return v
		}
	}
	t.Fatalf("value %s missing", vt)
	return hours.Value{}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

// scenarioA is a 40h Monday-Friday contract over 2024-W01..W10 with slots
// for every weekday.
func scenarioA(t *testing.T) (*store.Memory, *hours.Engine) {
	t.Helper()
	repo := store.NewMemory()
	require.NoError(t, repo.SaveContract(context.Background(), fullTime("c-1", "emp-1", 2024, 1, 2024, 10)))
	workdaySlots(t, repo)
	return repo, newEngine(t, repo)
}
