/*
store.go - Collaborator interfaces between the engine and persistence

PURPOSE:
  The engine never talks to a database directly. It reads source data and
  writes its two durable outputs (carryover and billing-period snapshots)
  through these interfaces. Storage adapters implement them:

    - hours/store/memory.go: In-memory, for tests and local runs
    - store/sqlite/sqlite.go: SQLite
    - store/postgres/postgres.go: PostgreSQL via pgx

KEY INTERFACES:
  Reader:       Source queries and stored outputs
  Writer:       Carryover and snapshot writes
  Store:        Reader + Writer, the capability handed to engine internals
  TxStore:      Store plus WithTx; opened only by top-level engine calls
  SourceWriter: Mutations of source data that must invalidate carryover

TRANSACTION SCOPE:
  TxStore.WithTx hands fn a Store bound to one transaction. Functions that
  receive a Store never commit; the caller that opened the scope commits
  when fn returns nil and rolls back otherwise.

INVALIDATION:
  Every SourceWriter mutation soft-deletes the carryover rows of the
  affected employee (or all employees, for calendar-wide changes) from the
  year of the change onward, inside the same transaction.

SEE ALSO:
  - engine.go: Opens transaction scopes
  - carryover.go: Consumes GetCarryover / PutCarryover
*/
package hours

import (
	"context"

	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// READ COLLABORATORS
// =============================================================================

type Reader interface {
	// ListActiveContracts returns live contracts overlapping weeks.
	// generic.AllEmployees selects every employee.
	ListActiveContracts(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]Contract, error)

	// ListBookings returns live bookings in weeks.
	ListBookings(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]Booking, error)

	// ListSlots returns every slot, deleted ones included, so historical
	// bookings keep their duration.
	ListSlots(ctx context.Context) ([]Slot, error)

	// ListExtraHours returns live entries whose day is inside period. An empty
	// categories list selects all categories.
	ListExtraHours(ctx context.Context, employee generic.EmployeeID, period generic.Period, categories ...Category) ([]ExtraHours, error)

	// ListSpecialDays returns live special days in weeks.
	ListSpecialDays(ctx context.Context, weeks generic.WeekRange) ([]SpecialDay, error)

	// GetCarryover returns the row for the key, invalidated or not, or nil.
	GetCarryover(ctx context.Context, employee generic.EmployeeID, year int) (*Carryover, error)

	// ListCustomExtraHoursLinks returns active and inactive links.
	ListCustomExtraHoursLinks(ctx context.Context, employee generic.EmployeeID) ([]CustomExtraHoursLink, error)

	// ListBillingPeriods returns live period headers ordered by start.
	ListBillingPeriods(ctx context.Context) ([]BillingPeriod, error)

	// GetBillingPeriod returns a period with its rows.
	GetBillingPeriod(ctx context.Context, id generic.BillingPeriodID) (*BillingPeriod, error)
}

// =============================================================================
// WRITE COLLABORATORS
// =============================================================================

type Writer interface {
	// PutCarryover replaces the row for (EmployeeID, Year).
	PutCarryover(ctx context.Context, c Carryover) error

	// InvalidateCarryover soft-deletes rows with year >= fromYear.
	// generic.AllEmployees invalidates every employee.
	InvalidateCarryover(ctx context.Context, employee generic.EmployeeID, fromYear int) error

	// InsertBillingPeriod writes a header. A live period with the same bounds
	// yields generic.ErrConflictAlreadyFinalized.
	InsertBillingPeriod(ctx context.Context, p BillingPeriod) error

	// InsertBillingPeriodSnapshot writes one frozen value.
	InsertBillingPeriodSnapshot(ctx context.Context, row SnapshotRow) error

	// DeleteBillingPeriod soft-deletes a period header.
	DeleteBillingPeriod(ctx context.Context, id generic.BillingPeriodID) error
}

type Store interface {
	Reader
	Writer
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// SOURCE MUTATIONS
// =============================================================================

// SourceWriter changes engine inputs. Implementations invalidate carryover
// in the same transaction as the change.
type SourceWriter interface {
	SaveContract(ctx context.Context, c Contract) error
	DeleteContract(ctx context.Context, id generic.ContractID) error
	SaveSlot(ctx context.Context, s Slot) error
	SaveBooking(ctx context.Context, b Booking) error
	DeleteBooking(ctx context.Context, id generic.BookingID) error
	SaveExtraHours(ctx context.Context, e ExtraHours) error
	DeleteExtraHours(ctx context.Context, id generic.ExtraHoursID) error
	SaveSpecialDay(ctx context.Context, s SpecialDay) error
	DeleteSpecialDay(ctx context.Context, id generic.SpecialDayID) error
	SaveCustomExtraHours(ctx context.Context, c CustomExtraHours) error
	SetCustomExtraHoursLink(ctx context.Context, employee generic.EmployeeID, id generic.CustomExtraHoursID, active bool) error
}

// Repository is what a full storage adapter provides.
type Repository interface {
	TxStore
	SourceWriter
}

// =============================================================================
// INVALIDATION HELPERS - Shared by storage adapters
// =============================================================================

// InvalidationYear returns the first calendar year a week can affect. A week
// that starts in December belongs partly to the earlier year.
func InvalidationYear(w generic.Week) int {
	return w.Monday().Year()
}

// ContractInvalidationYear is the first year a contract contributes to.
func ContractInvalidationYear(c Contract) int {
	return c.StartDate().Year()
}

// SlotInvalidationYear is the first year a slot can count in. A slot without
// ValidFrom counts in every year.
func SlotInvalidationYear(s Slot) int {
	if s.ValidFrom.IsZero() {
		return 1
	}
	return s.ValidFrom.Year()
}
