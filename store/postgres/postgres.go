/*
Package postgres provides a PostgreSQL-backed implementation of the hours
repository on pgx.

PURPOSE:
  Same contract as store/sqlite with database-level concurrency control.
  Every statement lives in sql_queries.go as an exported constant so the
  repository tests can match them with pgxmock.

TRANSACTIONS:
  WithTx begins a SERIALIZABLE pgx transaction, rolls back on error or panic
  and commits otherwise. Source writes open their own transaction so carryover
  invalidation commits together with the edit. A computation that read rows a
  concurrent edit changed cannot commit its carryover: one of the two fails
  with serialization_failure (40001) and is run again from the start, up to
  maxTxAttempts times.

CONCURRENT FINALIZATION:
  idx_billing_periods_live is a partial unique index over live periods.
  A second finalize of the same window fails with unique_violation (23505),
  mapped to generic.ErrConflictAlreadyFinalized.

SEE ALSO:
  - database.go: Pool construction and migration
  - store/sqlite: SQLite implementation of the same schema
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// maxTxAttempts bounds how often a transaction is run after serialization
// failures. Attempt n waits n*retryBackoff first.
const maxTxAttempts = 5

var retryBackoff = 10 * time.Millisecond

var serializable = pgx.TxOptions{IsoLevel: pgx.Serializable}

// querier is satisfied by Database and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements hours.Repository on PostgreSQL.
type Store struct {
	db  Database
	now func() time.Time
}

// NewStore wraps an open pool.
func NewStore(db Database) *Store {
	return &Store{db: db, now: time.Now}
}

// NewStoreWithClock uses now for timestamps.
func NewStoreWithClock(db Database, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

// txStore runs every statement on q.
type txStore struct {
	q   querier
	now func() time.Time
}

func (s *Store) reader() *txStore { return &txStore{q: s.db, now: s.now} }

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) WithTx(ctx context.Context, fn func(hours.Store) error) error {
	return s.withTx(ctx, func(ts *txStore) error { return fn(ts) })
}

func (s *Store) withTx(ctx context.Context, fn func(ts *txStore) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			case <-time.After(time.Duration(attempt-1) * retryBackoff):
			}
		}
		err = s.runTx(ctx, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxAttempts, err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
}

func (s *Store) runTx(ctx context.Context, fn func(ts *txStore) error) error {
	tx, err := s.db.BeginTx(ctx, serializable)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&txStore{q: tx, now: s.now}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) ListActiveContracts(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Contract, error) {
	return s.reader().ListActiveContracts(ctx, employee, weeks)
}

func (s *Store) ListBookings(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Booking, error) {
	return s.reader().ListBookings(ctx, employee, weeks)
}

func (s *Store) ListSlots(ctx context.Context) ([]hours.Slot, error) {
	return s.reader().ListSlots(ctx)
}

func (s *Store) ListExtraHours(ctx context.Context, employee generic.EmployeeID, period generic.Period, categories ...hours.Category) ([]hours.ExtraHours, error) {
	return s.reader().ListExtraHours(ctx, employee, period, categories...)
}

func (s *Store) ListSpecialDays(ctx context.Context, weeks generic.WeekRange) ([]hours.SpecialDay, error) {
	return s.reader().ListSpecialDays(ctx, weeks)
}

func (s *Store) GetCarryover(ctx context.Context, employee generic.EmployeeID, year int) (*hours.Carryover, error) {
	return s.reader().GetCarryover(ctx, employee, year)
}

func (s *Store) ListCustomExtraHoursLinks(ctx context.Context, employee generic.EmployeeID) ([]hours.CustomExtraHoursLink, error) {
	return s.reader().ListCustomExtraHoursLinks(ctx, employee)
}

func (s *Store) ListBillingPeriods(ctx context.Context) ([]hours.BillingPeriod, error) {
	return s.reader().ListBillingPeriods(ctx)
}

func (s *Store) GetBillingPeriod(ctx context.Context, id generic.BillingPeriodID) (*hours.BillingPeriod, error) {
	return s.reader().GetBillingPeriod(ctx, id)
}

func (ts *txStore) ListActiveContracts(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Contract, error) {
	return ts.queryContracts(ctx, ListActiveContractsSQL, string(employee), weeks.To.Key(), weeks.From.Key())
}

func (ts *txStore) queryContracts(ctx context.Context, query string, args ...any) ([]hours.Contract, error) {
	rows, err := ts.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying contracts: %w", err)
	}
	defer rows.Close()

	var out []hours.Contract
	for rows.Next() {
		var (
			c                 hours.Contract
			id, employee, exp string
			fromDay, toDay    int
		)
		err := rows.Scan(&id, &employee, &c.FromYear, &c.FromWeek, &fromDay, &c.ToYear, &c.ToWeek, &toDay,
			&exp, &c.WorkdaysPerWeek, &c.Monday, &c.Tuesday, &c.Wednesday, &c.Thursday, &c.Friday,
			&c.Saturday, &c.Sunday, &c.VacationDays, &c.CreatedAt, &c.Deleted)
		if err != nil {
			return nil, fmt.Errorf("error scanning contract row: %w", err)
		}
		c.ID = generic.ContractID(id)
		c.EmployeeID = generic.EmployeeID(employee)
		c.FromDay = generic.DayOfWeek(fromDay)
		c.ToDay = generic.DayOfWeek(toDay)
		if c.ExpectedHours, err = decimal.NewFromString(exp); err != nil {
			return nil, fmt.Errorf("error parsing expected hours: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read contract rows: %w", err)
	}
	return out, nil
}

func (ts *txStore) getContract(ctx context.Context, id generic.ContractID) (*hours.Contract, error) {
	list, err := ts.queryContracts(ctx, GetContractSQL, string(id))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (ts *txStore) ListBookings(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Booking, error) {
	return ts.queryBookings(ctx, ListBookingsSQL, string(employee), weeks.From.Key(), weeks.To.Key())
}

func (ts *txStore) queryBookings(ctx context.Context, query string, args ...any) ([]hours.Booking, error) {
	rows, err := ts.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying bookings: %w", err)
	}
	defer rows.Close()

	var out []hours.Booking
	for rows.Next() {
		var (
			b                  hours.Booking
			id, employee, slot string
		)
		if err := rows.Scan(&id, &employee, &slot, &b.Year, &b.Week, &b.CreatedAt, &b.Deleted); err != nil {
			return nil, fmt.Errorf("error scanning booking row: %w", err)
		}
		b.ID = generic.BookingID(id)
		b.EmployeeID = generic.EmployeeID(employee)
		b.SlotID = generic.SlotID(slot)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read booking rows: %w", err)
	}
	return out, nil
}

func (ts *txStore) ListSlots(ctx context.Context) ([]hours.Slot, error) {
	rows, err := ts.q.Query(ctx, ListSlotsSQL)
	if err != nil {
		return nil, fmt.Errorf("error querying slots: %w", err)
	}
	defer rows.Close()

	var out []hours.Slot
	for rows.Next() {
		var (
			sl            hours.Slot
			id            string
			day, from, to int
			validFrom     time.Time
			validTo       *time.Time
		)
		if err := rows.Scan(&id, &day, &from, &to, &validFrom, &validTo, &sl.Deleted); err != nil {
			return nil, fmt.Errorf("error scanning slot row: %w", err)
		}
		sl.ID = generic.SlotID(id)
		sl.DayOfWeek = generic.DayOfWeek(day)
		sl.From = generic.TimeOfDay(from)
		sl.To = generic.TimeOfDay(to)
		sl.ValidFrom = generic.DayOf(validFrom)
		if validTo != nil {
			d := generic.DayOf(*validTo)
			sl.ValidTo = &d
		}
		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read slot rows: %w", err)
	}
	return out, nil
}

func (ts *txStore) ListExtraHours(ctx context.Context, employee generic.EmployeeID, period generic.Period, categories ...hours.Category) ([]hours.ExtraHours, error) {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, string(c))
	}
	return ts.queryExtraHours(ctx, ListExtraHoursSQL, string(employee), period.Start.Time, period.End.Time, names)
}

func (ts *txStore) getExtraHours(ctx context.Context, id generic.ExtraHoursID) (*hours.ExtraHours, error) {
	list, err := ts.queryExtraHours(ctx, GetExtraHoursSQL, string(id))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (ts *txStore) queryExtraHours(ctx context.Context, query string, args ...any) ([]hours.ExtraHours, error) {
	rows, err := ts.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying extra hours: %w", err)
	}
	defer rows.Close()

	var out []hours.ExtraHours
	for rows.Next() {
		var (
			e                                   hours.ExtraHours
			id, employee, amount, category, cid string
		)
		err := rows.Scan(&id, &employee, &amount, &category, &cid, &e.Description, &e.At, &e.CreatedAt, &e.Deleted)
		if err != nil {
			return nil, fmt.Errorf("error scanning extra hours row: %w", err)
		}
		e.ID = generic.ExtraHoursID(id)
		e.EmployeeID = generic.EmployeeID(employee)
		e.Category = hours.Category(category)
		e.CustomTypeID = generic.CustomExtraHoursID(cid)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("error parsing extra hours amount: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read extra hours rows: %w", err)
	}
	return out, nil
}

func (ts *txStore) ListSpecialDays(ctx context.Context, weeks generic.WeekRange) ([]hours.SpecialDay, error) {
	return ts.querySpecialDays(ctx, ListSpecialDaysSQL, weeks.From.Key(), weeks.To.Key())
}

func (ts *txStore) getSpecialDay(ctx context.Context, id generic.SpecialDayID) (*hours.SpecialDay, error) {
	list, err := ts.querySpecialDays(ctx, GetSpecialDaySQL, string(id))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (ts *txStore) querySpecialDays(ctx context.Context, query string, args ...any) ([]hours.SpecialDay, error) {
	rows, err := ts.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying special days: %w", err)
	}
	defer rows.Close()

	var out []hours.SpecialDay
	for rows.Next() {
		var (
			sd        hours.SpecialDay
			id, kind  string
			day       int
			timeOfDay *int
		)
		if err := rows.Scan(&id, &sd.Year, &sd.Week, &day, &kind, &timeOfDay, &sd.Deleted); err != nil {
			return nil, fmt.Errorf("error scanning special day row: %w", err)
		}
		sd.ID = generic.SpecialDayID(id)
		sd.DayOfWeek = generic.DayOfWeek(day)
		sd.Type = hours.SpecialDayType(kind)
		if timeOfDay != nil {
			t := generic.TimeOfDay(*timeOfDay)
			sd.TimeOfDay = &t
		}
		out = append(out, sd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read special day rows: %w", err)
	}
	return out, nil
}

func (ts *txStore) GetCarryover(ctx context.Context, employee generic.EmployeeID, year int) (*hours.Carryover, error) {
	var (
		c                 hours.Carryover
		id, hrs, vacation string
	)
	err := ts.q.QueryRow(ctx, GetCarryoverSQL, string(employee), year).
		Scan(&id, &c.Year, &hrs, &vacation, &c.Version, &c.CreatedAt, &c.UpdatedAt, &c.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying carryover: %w", err)
	}
	c.EmployeeID = generic.EmployeeID(id)
	if c.Hours, err = decimal.NewFromString(hrs); err != nil {
		return nil, fmt.Errorf("error parsing carryover hours: %w", err)
	}
	if c.VacationDays, err = decimal.NewFromString(vacation); err != nil {
		return nil, fmt.Errorf("error parsing carryover vacation days: %w", err)
	}
	return &c, nil
}

func (ts *txStore) ListCustomExtraHoursLinks(ctx context.Context, employee generic.EmployeeID) ([]hours.CustomExtraHoursLink, error) {
	rows, err := ts.q.Query(ctx, ListCustomExtraHoursLinksSQL, string(employee))
	if err != nil {
		return nil, fmt.Errorf("error querying custom extra hours links: %w", err)
	}
	defer rows.Close()

	var out []hours.CustomExtraHoursLink
	for rows.Next() {
		var (
			l       hours.CustomExtraHoursLink
			emp, id string
		)
		err := rows.Scan(&emp, &l.Active, &id, &l.Type.Name, &l.Type.Description,
			&l.Type.ModifiesBalance, &l.Type.CreatedAt, &l.Type.Deleted)
		if err != nil {
			return nil, fmt.Errorf("error scanning custom extra hours link row: %w", err)
		}
		l.EmployeeID = generic.EmployeeID(emp)
		l.Type.ID = generic.CustomExtraHoursID(id)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read custom extra hours link rows: %w", err)
	}
	return out, nil
}

func (ts *txStore) ListBillingPeriods(ctx context.Context) ([]hours.BillingPeriod, error) {
	rows, err := ts.q.Query(ctx, ListBillingPeriodsSQL)
	if err != nil {
		return nil, fmt.Errorf("error querying billing periods: %w", err)
	}
	defer rows.Close()

	var out []hours.BillingPeriod
	for rows.Next() {
		bp, err := scanBillingPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read billing period rows: %w", err)
	}
	return out, nil
}

func (ts *txStore) GetBillingPeriod(ctx context.Context, id generic.BillingPeriodID) (*hours.BillingPeriod, error) {
	bp, err := scanBillingPeriod(ts.q.QueryRow(ctx, GetBillingPeriodSQL, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := ts.q.Query(ctx, ListBillingPeriodRowsSQL, string(id))
	if err != nil {
		return nil, fmt.Errorf("error querying billing period rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                               hours.SnapshotRow
			periodID, employee, valueType   string
			delta, ytdFrom, ytdTo, fullYear string
		)
		err := rows.Scan(&r.ID, &periodID, &employee, &valueType, &delta, &ytdFrom, &ytdTo, &fullYear, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning billing period row: %w", err)
		}
		r.BillingPeriodID = generic.BillingPeriodID(periodID)
		r.EmployeeID = generic.EmployeeID(employee)
		if r.ValueType, err = hours.ParseValueType(valueType); err != nil {
			return nil, err
		}
		r.Delta = generic.MustParseDecimal(delta)
		r.YTDFrom = generic.MustParseDecimal(ytdFrom)
		r.YTDTo = generic.MustParseDecimal(ytdTo)
		r.FullYear = generic.MustParseDecimal(fullYear)
		bp.Rows = append(bp.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read billing period rows: %w", err)
	}
	return &bp, nil
}

func scanBillingPeriod(row pgx.Row) (hours.BillingPeriod, error) {
	var (
		bp         hours.BillingPeriod
		id         string
		start, end time.Time
	)
	if err := row.Scan(&id, &start, &end, &bp.CreatedAt, &bp.CreatedBy, &bp.Deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bp, err
		}
		return bp, fmt.Errorf("error scanning billing period: %w", err)
	}
	bp.ID = generic.BillingPeriodID(id)
	bp.Period = generic.NewPeriod(generic.DayOf(start), generic.DayOf(end))
	return bp, nil
}

// =============================================================================
// ENGINE WRITES
// =============================================================================

func (s *Store) PutCarryover(ctx context.Context, c hours.Carryover) error {
	return s.reader().PutCarryover(ctx, c)
}

func (s *Store) InvalidateCarryover(ctx context.Context, employee generic.EmployeeID, fromYear int) error {
	return s.reader().InvalidateCarryover(ctx, employee, fromYear)
}

func (s *Store) InsertBillingPeriod(ctx context.Context, p hours.BillingPeriod) error {
	return s.reader().InsertBillingPeriod(ctx, p)
}

func (s *Store) InsertBillingPeriodSnapshot(ctx context.Context, row hours.SnapshotRow) error {
	return s.reader().InsertBillingPeriodSnapshot(ctx, row)
}

func (s *Store) DeleteBillingPeriod(ctx context.Context, id generic.BillingPeriodID) error {
	return s.reader().DeleteBillingPeriod(ctx, id)
}

func (ts *txStore) PutCarryover(ctx context.Context, c hours.Carryover) error {
	now := ts.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	_, err := ts.q.Exec(ctx, PutCarryoverSQL, string(c.EmployeeID), c.Year, c.Hours.String(),
		c.VacationDays.String(), c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put carryover: %w", err)
	}
	return nil
}

func (ts *txStore) InvalidateCarryover(ctx context.Context, employee generic.EmployeeID, fromYear int) error {
	if _, err := ts.q.Exec(ctx, InvalidateCarryoverSQL, string(employee), fromYear, ts.now().UTC()); err != nil {
		return fmt.Errorf("failed to invalidate carryover: %w", err)
	}
	return nil
}

func (ts *txStore) InsertBillingPeriod(ctx context.Context, p hours.BillingPeriod) error {
	_, err := ts.q.Exec(ctx, InsertBillingPeriodSQL, string(p.ID), p.Period.Start.Time, p.Period.End.Time,
		p.CreatedAt, p.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return generic.ErrConflictAlreadyFinalized
		}
		return fmt.Errorf("failed to insert billing period: %w", err)
	}
	return nil
}

func (ts *txStore) InsertBillingPeriodSnapshot(ctx context.Context, r hours.SnapshotRow) error {
	_, err := ts.q.Exec(ctx, InsertBillingPeriodRowSQL, r.ID, string(r.BillingPeriodID), string(r.EmployeeID),
		r.ValueType.String(), r.Delta.String(), r.YTDFrom.String(), r.YTDTo.String(), r.FullYear.String(), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert billing period row: %w", err)
	}
	return nil
}

func (ts *txStore) DeleteBillingPeriod(ctx context.Context, id generic.BillingPeriodID) error {
	tag, err := ts.q.Exec(ctx, DeleteBillingPeriodSQL, string(id), ts.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to delete billing period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrNotFound
	}
	return nil
}

// =============================================================================
// SOURCE WRITES
// =============================================================================

func (s *Store) SaveContract(ctx context.Context, c hours.Contract) error {
	return s.withTx(ctx, func(ts *txStore) error {
		existing, err := ts.queryContracts(ctx, ListEmployeeContractsSQL, string(c.EmployeeID))
		if err != nil {
			return err
		}
		if err := hours.ValidateNoOverlap(existing, c); err != nil {
			return err
		}
		from := hours.ContractInvalidationYear(c)
		old, err := ts.getContract(ctx, c.ID)
		if err != nil {
			return err
		}
		if old != nil {
			from = min(from, hours.ContractInvalidationYear(*old))
			if old.EmployeeID != c.EmployeeID {
				if err := ts.InvalidateCarryover(ctx, old.EmployeeID, hours.ContractInvalidationYear(*old)); err != nil {
					return err
				}
			}
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = ts.now().UTC()
		}
		_, err = ts.q.Exec(ctx, UpsertContractSQL,
			string(c.ID), string(c.EmployeeID), c.FromYear, c.FromWeek, int(c.FromDay), c.ToYear, c.ToWeek, int(c.ToDay),
			c.ExpectedHours.String(), c.WorkdaysPerWeek, c.Monday, c.Tuesday, c.Wednesday, c.Thursday, c.Friday,
			c.Saturday, c.Sunday, c.VacationDays, c.CreatedAt, c.FromWeekValue().Key(), c.ToWeekValue().Key())
		if err != nil {
			return fmt.Errorf("failed to save contract: %w", err)
		}
		return ts.InvalidateCarryover(ctx, c.EmployeeID, from)
	})
}

func (s *Store) DeleteContract(ctx context.Context, id generic.ContractID) error {
	return s.withTx(ctx, func(ts *txStore) error {
		c, err := ts.getContract(ctx, id)
		if err != nil {
			return err
		}
		if c == nil || c.IsDeleted() {
			return generic.ErrNotFound
		}
		if _, err := ts.q.Exec(ctx, DeleteContractSQL, string(id), ts.now().UTC()); err != nil {
			return fmt.Errorf("failed to delete contract: %w", err)
		}
		return ts.InvalidateCarryover(ctx, c.EmployeeID, hours.ContractInvalidationYear(*c))
	})
}

func (s *Store) SaveSlot(ctx context.Context, sl hours.Slot) error {
	if err := sl.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(ts *txStore) error {
		var oldValidFrom time.Time
		err := ts.q.QueryRow(ctx, SlotValidFromSQL, string(sl.ID)).Scan(&oldValidFrom)
		existed := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check slot: %w", err)
		}
		var validTo *time.Time
		if sl.ValidTo != nil {
			validTo = &sl.ValidTo.Time
		}
		_, err = ts.q.Exec(ctx, UpsertSlotSQL, string(sl.ID), int(sl.DayOfWeek), int(sl.From), int(sl.To),
			sl.ValidFrom.Time, validTo, sl.Deleted)
		if err != nil {
			return fmt.Errorf("failed to save slot: %w", err)
		}
		if !existed {
			return nil
		}
		from := min(hours.SlotInvalidationYear(sl), hours.SlotInvalidationYear(hours.Slot{ValidFrom: generic.DayOf(oldValidFrom)}))
		return ts.InvalidateCarryover(ctx, generic.AllEmployees, from)
	})
}

func (s *Store) SaveBooking(ctx context.Context, b hours.Booking) error {
	if !b.WeekValue().Valid() {
		return &hours.InputError{Message: "booking week out of range"}
	}
	return s.withTx(ctx, func(ts *txStore) error {
		var slotExists bool
		if err := ts.q.QueryRow(ctx, SlotExistsSQL, string(b.SlotID)).Scan(&slotExists); err != nil {
			return fmt.Errorf("failed to check slot: %w", err)
		}
		if !slotExists {
			return generic.ErrNotFound
		}
		old, err := ts.queryBookings(ctx, GetBookingSQL, string(b.ID))
		if err != nil {
			return err
		}
		for _, o := range old {
			if err := ts.InvalidateCarryover(ctx, o.EmployeeID, hours.InvalidationYear(o.WeekValue())); err != nil {
				return err
			}
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = ts.now().UTC()
		}
		_, err = ts.q.Exec(ctx, UpsertBookingSQL, string(b.ID), string(b.EmployeeID), string(b.SlotID),
			b.Year, b.Week, b.WeekValue().Key(), b.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save booking: %w", err)
		}
		return ts.InvalidateCarryover(ctx, b.EmployeeID, hours.InvalidationYear(b.WeekValue()))
	})
}

func (s *Store) DeleteBooking(ctx context.Context, id generic.BookingID) error {
	return s.withTx(ctx, func(ts *txStore) error {
		list, err := ts.queryBookings(ctx, GetBookingSQL, string(id))
		if err != nil {
			return err
		}
		if len(list) == 0 || list[0].IsDeleted() {
			return generic.ErrNotFound
		}
		if _, err := ts.q.Exec(ctx, DeleteBookingSQL, string(id), ts.now().UTC()); err != nil {
			return fmt.Errorf("failed to delete booking: %w", err)
		}
		return ts.InvalidateCarryover(ctx, list[0].EmployeeID, hours.InvalidationYear(list[0].WeekValue()))
	})
}

func (s *Store) SaveExtraHours(ctx context.Context, e hours.ExtraHours) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(ts *txStore) error {
		old, err := ts.getExtraHours(ctx, e.ID)
		if err != nil {
			return err
		}
		if old != nil {
			if err := ts.InvalidateCarryover(ctx, old.EmployeeID, old.Day().Year()); err != nil {
				return err
			}
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = ts.now().UTC()
		}
		_, err = ts.q.Exec(ctx, UpsertExtraHoursSQL, string(e.ID), string(e.EmployeeID), e.Amount.String(),
			string(e.Category), string(e.CustomTypeID), e.Description, e.At, e.Day().Time, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save extra hours: %w", err)
		}
		return ts.InvalidateCarryover(ctx, e.EmployeeID, e.Day().Year())
	})
}

func (s *Store) DeleteExtraHours(ctx context.Context, id generic.ExtraHoursID) error {
	return s.withTx(ctx, func(ts *txStore) error {
		e, err := ts.getExtraHours(ctx, id)
		if err != nil {
			return err
		}
		if e == nil || e.IsDeleted() {
			return generic.ErrNotFound
		}
		if _, err := ts.q.Exec(ctx, DeleteExtraHoursSQL, string(id), ts.now().UTC()); err != nil {
			return fmt.Errorf("failed to delete extra hours: %w", err)
		}
		return ts.InvalidateCarryover(ctx, e.EmployeeID, e.Day().Year())
	})
}

func (s *Store) SaveSpecialDay(ctx context.Context, sd hours.SpecialDay) error {
	if err := sd.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(ts *txStore) error {
		week := generic.NewWeek(sd.Year, sd.Week)
		from := hours.InvalidationYear(week)
		old, err := ts.getSpecialDay(ctx, sd.ID)
		if err != nil {
			return err
		}
		if old != nil {
			from = min(from, hours.InvalidationYear(generic.NewWeek(old.Year, old.Week)))
		}
		var timeOfDay *int
		if sd.TimeOfDay != nil {
			t := int(*sd.TimeOfDay)
			timeOfDay = &t
		}
		_, err = ts.q.Exec(ctx, UpsertSpecialDaySQL, string(sd.ID), sd.Year, sd.Week, week.Key(),
			int(sd.DayOfWeek), string(sd.Type), timeOfDay)
		if err != nil {
			return fmt.Errorf("failed to save special day: %w", err)
		}
		return ts.InvalidateCarryover(ctx, generic.AllEmployees, from)
	})
}

func (s *Store) DeleteSpecialDay(ctx context.Context, id generic.SpecialDayID) error {
	return s.withTx(ctx, func(ts *txStore) error {
		sd, err := ts.getSpecialDay(ctx, id)
		if err != nil {
			return err
		}
		if sd == nil || sd.Deleted != nil {
			return generic.ErrNotFound
		}
		if _, err := ts.q.Exec(ctx, DeleteSpecialDaySQL, string(id), ts.now().UTC()); err != nil {
			return fmt.Errorf("failed to delete special day: %w", err)
		}
		return ts.InvalidateCarryover(ctx, generic.AllEmployees, hours.InvalidationYear(generic.NewWeek(sd.Year, sd.Week)))
	})
}

func (s *Store) SaveCustomExtraHours(ctx context.Context, c hours.CustomExtraHours) error {
	if c.Name == "" {
		return &hours.InputError{Message: "custom extra hours require a name"}
	}
	return s.withTx(ctx, func(ts *txStore) error {
		var (
			name      string
			modifies  bool
			createdAt time.Time
		)
		err := ts.q.QueryRow(ctx, GetCustomExtraHoursSQL, string(c.ID)).Scan(&name, &modifies, &createdAt)
		existed := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check custom extra hours: %w", err)
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = ts.now().UTC()
			if existed {
				c.CreatedAt = createdAt
			}
		}
		_, err = ts.q.Exec(ctx, UpsertCustomExtraHoursSQL, string(c.ID), c.Name, c.Description,
			c.ModifiesBalance, c.CreatedAt, c.Deleted)
		if err != nil {
			return fmt.Errorf("failed to save custom extra hours: %w", err)
		}
		if existed && (name != c.Name || modifies != c.ModifiesBalance) {
			return ts.InvalidateCarryover(ctx, generic.AllEmployees, 1)
		}
		return nil
	})
}

func (s *Store) SetCustomExtraHoursLink(ctx context.Context, employee generic.EmployeeID, id generic.CustomExtraHoursID, active bool) error {
	return s.withTx(ctx, func(ts *txStore) error {
		var exists bool
		if err := ts.q.QueryRow(ctx, CustomExtraHoursExistsSQL, string(id)).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check custom extra hours: %w", err)
		}
		if !exists {
			return generic.ErrNotFound
		}
		if _, err := ts.q.Exec(ctx, SetCustomExtraHoursLinkSQL, string(employee), string(id), active); err != nil {
			return fmt.Errorf("failed to set custom extra hours link: %w", err)
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var (
	_ hours.Repository = (*Store)(nil)
	_ hours.Store      = (*txStore)(nil)
)
