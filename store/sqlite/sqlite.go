/*
Package sqlite provides a SQLite-backed implementation of the hours repository.

PURPOSE:
  Implements hours.Repository (engine reads and writes plus the source
  writers) using SQLite. The postgres package carries the same schema in
  the PostgreSQL dialect.

INTERFACES IMPLEMENTED:
  hours.Store:        Source reads, carryover and billing period writes
  hours.TxStore:      Transaction scoping for the engine
  hours.SourceWriter: Contract, booking, slot, extra hours and calendar edits

SOFT DELETES:
  Source rows are never removed. Deletes stamp the deleted column and list
  queries filter on deleted IS NULL. Every source write invalidates the
  affected carryover rows inside the same database transaction.

KEY TABLES:
  contracts:                Weekly work details with week keys for range scans
  slots / bookings:         Realized work
  extra_hours:              Categorized adjustments, indexed by day
  special_days:             Holiday and short day overrides
  custom_extra_hours(_links): User-named categories and per-employee links
  employee_yearly_carryover: Ending balance per (employee, year)
  billing_periods / billing_period_rows: Finalized snapshots

INDEXES:
  - idx_billing_periods_live: At most one live period per (start, end).
    This is what makes concurrent finalization of the same window safe.
  - idx_bookings_employee_week / idx_extra_hours_employee_day: Hot path

CONCURRENCY:
  The pool is capped at one connection and WithTx holds a mutex for the
  duration of the transaction, so transactions are serialized.

USAGE:
  store, err := sqlite.New("./data/hours.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := hours.New(store, hours.DefaultConfig())

SEE ALSO:
  - hours/store.go: Interface definitions
  - hours/store/memory.go: In-memory implementation for testing
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
)

// Store implements hours.Repository using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		from_year INTEGER NOT NULL,
		from_week INTEGER NOT NULL,
		from_day INTEGER NOT NULL,
		to_year INTEGER NOT NULL,
		to_week INTEGER NOT NULL,
		to_day INTEGER NOT NULL,
		from_key INTEGER NOT NULL,
		to_key INTEGER NOT NULL,
		expected_hours TEXT NOT NULL,
		workdays_per_week INTEGER NOT NULL DEFAULT 0,
		monday INTEGER NOT NULL,
		tuesday INTEGER NOT NULL,
		wednesday INTEGER NOT NULL,
		thursday INTEGER NOT NULL,
		friday INTEGER NOT NULL,
		saturday INTEGER NOT NULL,
		sunday INTEGER NOT NULL,
		vacation_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		deleted TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_employee_weeks
		ON contracts(employee_id, from_key, to_key);

	CREATE TABLE IF NOT EXISTS slots (
		id TEXT PRIMARY KEY,
		day_of_week INTEGER NOT NULL,
		time_from INTEGER NOT NULL,
		time_to INTEGER NOT NULL,
		valid_from TEXT NOT NULL,
		valid_to TEXT,
		deleted TEXT
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		slot_id TEXT NOT NULL REFERENCES slots(id),
		year INTEGER NOT NULL,
		week INTEGER NOT NULL,
		week_key INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		deleted TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_employee_week
		ON bookings(employee_id, week_key);

	CREATE TABLE IF NOT EXISTS custom_extra_hours (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		modifies_balance INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		deleted TEXT
	);

	CREATE TABLE IF NOT EXISTS custom_extra_hours_links (
		employee_id TEXT NOT NULL,
		custom_extra_hours_id TEXT NOT NULL REFERENCES custom_extra_hours(id),
		active INTEGER NOT NULL,
		PRIMARY KEY (employee_id, custom_extra_hours_id)
	);

	CREATE TABLE IF NOT EXISTS extra_hours (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL,
		custom_extra_hours_id TEXT,
		description TEXT,
		date_time TEXT NOT NULL,
		day TEXT NOT NULL,
		created_at TEXT NOT NULL,
		deleted TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_extra_hours_employee_day
		ON extra_hours(employee_id, day);

	CREATE TABLE IF NOT EXISTS special_days (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		week INTEGER NOT NULL,
		week_key INTEGER NOT NULL,
		day_of_week INTEGER NOT NULL,
		day_type TEXT NOT NULL,
		time_of_day INTEGER,
		deleted TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_special_days_week
		ON special_days(week_key);

	CREATE TABLE IF NOT EXISTS employee_yearly_carryover (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		carryover_hours TEXT NOT NULL,
		vacation_days TEXT NOT NULL,
		version TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted TEXT,
		PRIMARY KEY (employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS billing_periods (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		created_by TEXT NOT NULL,
		deleted TEXT
	);

	-- CRITICAL: one live billing period per window
	CREATE UNIQUE INDEX IF NOT EXISTS idx_billing_periods_live
		ON billing_periods(start_date, end_date)
		WHERE deleted IS NULL;

	CREATE TABLE IF NOT EXISTS billing_period_rows (
		id TEXT PRIMARY KEY,
		billing_period_id TEXT NOT NULL REFERENCES billing_periods(id),
		employee_id TEXT NOT NULL,
		value_type TEXT NOT NULL,
		value_delta TEXT NOT NULL,
		value_ytd_from TEXT NOT NULL,
		value_ytd_to TEXT NOT NULL,
		value_full_year TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_billing_period_rows_period
		ON billing_period_rows(billing_period_id, employee_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (hours.TxStore interface)
// =============================================================================

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txStore runs every statement on one queryer.
type txStore struct {
	q   queryer
	now func() time.Time
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store hours.Store) error) error {
	return s.withTx(ctx, func(ts *txStore) error { return fn(ts) })
}

func (s *Store) withTx(ctx context.Context, fn func(ts *txStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx, now: s.now}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

func (s *Store) reader() *txStore {
	return &txStore{q: s.db, now: s.now}
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

const contractColumns = `id, employee_id, from_year, from_week, from_day, to_year, to_week, to_day,
	expected_hours, workdays_per_week, monday, tuesday, wednesday, thursday, friday, saturday, sunday,
	vacation_days, created_at, deleted`

func (ts *txStore) ListActiveContracts(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Contract, error) {
	query := `SELECT ` + contractColumns + `
		FROM contracts
		WHERE deleted IS NULL
		  AND (? = '' OR employee_id = ?)
		  AND from_key <= ? AND to_key >= ?
		ORDER BY from_key ASC, id ASC`
	return ts.queryContracts(ctx, query, employee, employee, weeks.To.Key(), weeks.From.Key())
}

func (ts *txStore) listEmployeeContracts(ctx context.Context, employee generic.EmployeeID) ([]hours.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE employee_id = ? AND deleted IS NULL`
	return ts.queryContracts(ctx, query, employee)
}

func (ts *txStore) getContract(ctx context.Context, id generic.ContractID) (*hours.Contract, error) {
	list, err := ts.queryContracts(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (ts *txStore) queryContracts(ctx context.Context, query string, args ...any) ([]hours.Contract, error) {
	rows, err := ts.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var out []hours.Contract
	for rows.Next() {
		var (
			c              hours.Contract
			fromDay, toDay int
			createdAt      string
			deleted        sql.NullString
		)
		err := rows.Scan(&c.ID, &c.EmployeeID, &c.FromYear, &c.FromWeek, &fromDay, &c.ToYear, &c.ToWeek, &toDay,
			&c.ExpectedHours, &c.WorkdaysPerWeek, &c.Monday, &c.Tuesday, &c.Wednesday, &c.Thursday, &c.Friday,
			&c.Saturday, &c.Sunday, &c.VacationDays, &createdAt, &deleted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		c.FromDay = generic.DayOfWeek(fromDay)
		c.ToDay = generic.DayOfWeek(toDay)
		c.CreatedAt = parseTime(createdAt)
		c.Deleted = parseNullTime(deleted)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (ts *txStore) ListBookings(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Booking, error) {
	query := `
		SELECT id, employee_id, slot_id, year, week, created_at, deleted
		FROM bookings
		WHERE deleted IS NULL
		  AND (? = '' OR employee_id = ?)
		  AND week_key >= ? AND week_key <= ?
		ORDER BY id ASC`
	return ts.queryBookings(ctx, query, employee, employee, weeks.From.Key(), weeks.To.Key())
}

func (ts *txStore) queryBookings(ctx context.Context, query string, args ...any) ([]hours.Booking, error) {
	rows, err := ts.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []hours.Booking
	for rows.Next() {
		var (
			b         hours.Booking
			createdAt string
			deleted   sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.EmployeeID, &b.SlotID, &b.Year, &b.Week, &createdAt, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.CreatedAt = parseTime(createdAt)
		b.Deleted = parseNullTime(deleted)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (ts *txStore) ListSlots(ctx context.Context) ([]hours.Slot, error) {
	rows, err := ts.q.QueryContext(ctx, `
		SELECT id, day_of_week, time_from, time_to, valid_from, valid_to, deleted
		FROM slots ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var out []hours.Slot
	for rows.Next() {
		var (
			sl               hours.Slot
			day, from, to    int
			validFrom        string
			validTo, deleted sql.NullString
		)
		if err := rows.Scan(&sl.ID, &day, &from, &to, &validFrom, &validTo, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		sl.DayOfWeek = generic.DayOfWeek(day)
		sl.From = generic.TimeOfDay(from)
		sl.To = generic.TimeOfDay(to)
		sl.ValidFrom = parseDate(validFrom)
		if validTo.Valid {
			d := parseDate(validTo.String)
			sl.ValidTo = &d
		}
		sl.Deleted = parseNullTime(deleted)
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (ts *txStore) ListExtraHours(ctx context.Context, employee generic.EmployeeID, period generic.Period, categories ...hours.Category) ([]hours.ExtraHours, error) {
	query := `
		SELECT id, employee_id, amount, category, custom_extra_hours_id, description, date_time, created_at, deleted
		FROM extra_hours
		WHERE deleted IS NULL
		  AND (? = '' OR employee_id = ?)
		  AND day >= ? AND day <= ?`
	args := []any{employee, employee, period.Start.String(), period.End.String()}
	if len(categories) > 0 {
		query += ` AND category IN (?` + strings.Repeat(", ?", len(categories)-1) + `)`
		for _, c := range categories {
			args = append(args, string(c))
		}
	}
	query += ` ORDER BY date_time ASC, id ASC`
	return ts.queryExtraHours(ctx, query, args...)
}

func (ts *txStore) getExtraHours(ctx context.Context, id generic.ExtraHoursID) (*hours.ExtraHours, error) {
	list, err := ts.queryExtraHours(ctx, `
		SELECT id, employee_id, amount, category, custom_extra_hours_id, description, date_time, created_at, deleted
		FROM extra_hours WHERE id = ?`, id)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (ts *txStore) queryExtraHours(ctx context.Context, query string, args ...any) ([]hours.ExtraHours, error) {
	rows, err := ts.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query extra hours: %w", err)
	}
	defer rows.Close()

	var out []hours.ExtraHours
	for rows.Next() {
		var (
			e                     hours.ExtraHours
			customID, description sql.NullString
			at, createdAt         string
			deleted               sql.NullString
		)
		err := rows.Scan(&e.ID, &e.EmployeeID, &e.Amount, &e.Category, &customID, &description, &at, &createdAt, &deleted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extra hours: %w", err)
		}
		e.CustomTypeID = generic.CustomExtraHoursID(customID.String)
		e.Description = description.String
		e.At = parseTime(at)
		e.CreatedAt = parseTime(createdAt)
		e.Deleted = parseNullTime(deleted)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (ts *txStore) ListSpecialDays(ctx context.Context, weeks generic.WeekRange) ([]hours.SpecialDay, error) {
	return ts.querySpecialDays(ctx, `
		SELECT id, year, week, day_of_week, day_type, time_of_day, deleted
		FROM special_days
		WHERE deleted IS NULL AND week_key >= ? AND week_key <= ?
		ORDER BY week_key ASC, day_of_week ASC`, weeks.From.Key(), weeks.To.Key())
}

func (ts *txStore) getSpecialDay(ctx context.Context, id generic.SpecialDayID) (*hours.SpecialDay, error) {
	list, err := ts.querySpecialDays(ctx, `
		SELECT id, year, week, day_of_week, day_type, time_of_day, deleted
		FROM special_days WHERE id = ?`, id)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (ts *txStore) querySpecialDays(ctx context.Context, query string, args ...any) ([]hours.SpecialDay, error) {
	rows, err := ts.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query special days: %w", err)
	}
	defer rows.Close()

	var out []hours.SpecialDay
	for rows.Next() {
		var (
			sd        hours.SpecialDay
			day       int
			timeOfDay sql.NullInt64
			deleted   sql.NullString
		)
		if err := rows.Scan(&sd.ID, &sd.Year, &sd.Week, &day, &sd.Type, &timeOfDay, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan special day: %w", err)
		}
		sd.DayOfWeek = generic.DayOfWeek(day)
		if timeOfDay.Valid {
			t := generic.TimeOfDay(timeOfDay.Int64)
			sd.TimeOfDay = &t
		}
		sd.Deleted = parseNullTime(deleted)
		out = append(out, sd)
	}
	return out, rows.Err()
}

func (ts *txStore) GetCarryover(ctx context.Context, employee generic.EmployeeID, year int) (*hours.Carryover, error) {
	var (
		c                    hours.Carryover
		createdAt, updatedAt string
		deleted              sql.NullString
	)
	err := ts.q.QueryRowContext(ctx, `
		SELECT employee_id, year, carryover_hours, vacation_days, version, created_at, updated_at, deleted
		FROM employee_yearly_carryover
		WHERE employee_id = ? AND year = ?`, employee, year,
	).Scan(&c.EmployeeID, &c.Year, &c.Hours, &c.VacationDays, &c.Version, &createdAt, &updatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get carryover: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.Deleted = parseNullTime(deleted)
	return &c, nil
}

func (ts *txStore) ListCustomExtraHoursLinks(ctx context.Context, employee generic.EmployeeID) ([]hours.CustomExtraHoursLink, error) {
	rows, err := ts.q.QueryContext(ctx, `
		SELECT l.employee_id, l.active, c.id, c.name, c.description, c.modifies_balance, c.created_at, c.deleted
		FROM custom_extra_hours_links l
		JOIN custom_extra_hours c ON c.id = l.custom_extra_hours_id
		WHERE l.employee_id = ?
		ORDER BY c.id ASC`, employee)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom extra hours links: %w", err)
	}
	defer rows.Close()

	var out []hours.CustomExtraHoursLink
	for rows.Next() {
		var (
			l           hours.CustomExtraHoursLink
			description sql.NullString
			createdAt   string
			deleted     sql.NullString
		)
		err := rows.Scan(&l.EmployeeID, &l.Active, &l.Type.ID, &l.Type.Name, &description,
			&l.Type.ModifiesBalance, &createdAt, &deleted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan custom extra hours link: %w", err)
		}
		l.Type.Description = description.String
		l.Type.CreatedAt = parseTime(createdAt)
		l.Type.Deleted = parseNullTime(deleted)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (ts *txStore) ListBillingPeriods(ctx context.Context) ([]hours.BillingPeriod, error) {
	rows, err := ts.q.QueryContext(ctx, `
		SELECT id, start_date, end_date, created_at, created_by, deleted
		FROM billing_periods
		WHERE deleted IS NULL
		ORDER BY start_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing periods: %w", err)
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
	return out, rows.Err()
}

func (ts *txStore) GetBillingPeriod(ctx context.Context, id generic.BillingPeriodID) (*hours.BillingPeriod, error) {
	row := ts.q.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, created_at, created_by, deleted
		FROM billing_periods WHERE id = ?`, id)
	bp, err := scanBillingPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := ts.q.QueryContext(ctx, `
		SELECT id, billing_period_id, employee_id, value_type, value_delta, value_ytd_from,
		       value_ytd_to, value_full_year, created_at
		FROM billing_period_rows
		WHERE billing_period_id = ?
		ORDER BY employee_id ASC, rowid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing period rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r         hours.SnapshotRow
			valueType string
			createdAt string
		)
		err := rows.Scan(&r.ID, &r.BillingPeriodID, &r.EmployeeID, &valueType, &r.Delta, &r.YTDFrom,
			&r.YTDTo, &r.FullYear, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing period row: %w", err)
		}
		if r.ValueType, err = hours.ParseValueType(valueType); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		bp.Rows = append(bp.Rows, r)
	}
	return &bp, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBillingPeriod(row scanner) (hours.BillingPeriod, error) {
	var (
		bp                  hours.BillingPeriod
		start, end, created string
		deleted             sql.NullString
	)
	if err := row.Scan(&bp.ID, &start, &end, &created, &bp.CreatedBy, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bp, err
		}
		return bp, fmt.Errorf("failed to scan billing period: %w", err)
	}
	bp.Period = generic.NewPeriod(parseDate(start), parseDate(end))
	bp.CreatedAt = parseTime(created)
	bp.Deleted = parseNullTime(deleted)
	return bp, nil
}

// =============================================================================
// ENGINE WRITES (hours.Writer interface)
// =============================================================================

func (s *Store) PutCarryover(ctx context.Context, c hours.Carryover) error {
	return s.withTx(ctx, func(ts *txStore) error { return ts.PutCarryover(ctx, c) })
}

func (s *Store) InvalidateCarryover(ctx context.Context, employee generic.EmployeeID, fromYear int) error {
	return s.withTx(ctx, func(ts *txStore) error { return ts.InvalidateCarryover(ctx, employee, fromYear) })
}

func (s *Store) InsertBillingPeriod(ctx context.Context, p hours.BillingPeriod) error {
	return s.withTx(ctx, func(ts *txStore) error { return ts.InsertBillingPeriod(ctx, p) })
}

func (s *Store) InsertBillingPeriodSnapshot(ctx context.Context, row hours.SnapshotRow) error {
	return s.withTx(ctx, func(ts *txStore) error { return ts.InsertBillingPeriodSnapshot(ctx, row) })
}

func (s *Store) DeleteBillingPeriod(ctx context.Context, id generic.BillingPeriodID) error {
	return s.withTx(ctx, func(ts *txStore) error { return ts.DeleteBillingPeriod(ctx, id) })
}

func (ts *txStore) PutCarryover(ctx context.Context, c hours.Carryover) error {
	now := ts.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO employee_yearly_carryover
		(employee_id, year, carryover_hours, vacation_days, version, created_at, updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (employee_id, year) DO UPDATE SET
			carryover_hours = excluded.carryover_hours,
			vacation_days = excluded.vacation_days,
			version = excluded.version,
			updated_at = excluded.updated_at,
			deleted = NULL`,
		c.EmployeeID, c.Year, c.Hours.String(), c.VacationDays.String(), c.Version,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to put carryover: %w", err)
	}
	return nil
}

func (ts *txStore) InvalidateCarryover(ctx context.Context, employee generic.EmployeeID, fromYear int) error {
	_, err := ts.q.ExecContext(ctx, `
		UPDATE employee_yearly_carryover
		SET deleted = ?
		WHERE (? = '' OR employee_id = ?) AND year >= ? AND deleted IS NULL`,
		formatTime(ts.now().UTC()), employee, employee, fromYear)
	if err != nil {
		return fmt.Errorf("failed to invalidate carryover: %w", err)
	}
	return nil
}

func (ts *txStore) InsertBillingPeriod(ctx context.Context, p hours.BillingPeriod) error {
	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO billing_periods (id, start_date, end_date, created_at, created_by, deleted)
		VALUES (?, ?, ?, ?, ?, NULL)`,
		p.ID, p.Period.Start.String(), p.Period.End.String(), formatTime(p.CreatedAt), p.CreatedBy)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrConflictAlreadyFinalized
		}
		return fmt.Errorf("failed to insert billing period: %w", err)
	}
	return nil
}

func (ts *txStore) InsertBillingPeriodSnapshot(ctx context.Context, r hours.SnapshotRow) error {
	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO billing_period_rows
		(id, billing_period_id, employee_id, value_type, value_delta, value_ytd_from,
		 value_ytd_to, value_full_year, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BillingPeriodID, r.EmployeeID, r.ValueType.String(), r.Delta.String(), r.YTDFrom.String(),
		r.YTDTo.String(), r.FullYear.String(), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert billing period row: %w", err)
	}
	return nil
}

func (ts *txStore) DeleteBillingPeriod(ctx context.Context, id generic.BillingPeriodID) error {
	res, err := ts.q.ExecContext(ctx,
		`UPDATE billing_periods SET deleted = ? WHERE id = ? AND deleted IS NULL`,
		formatTime(ts.now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to delete billing period: %w", err)
	}
	return requireAffected(res)
}

// =============================================================================
// SOURCE WRITES (hours.SourceWriter interface)
// =============================================================================

// SaveContract upserts a contract after checking it does not overlap another
// live contract of the same employee.
func (s *Store) SaveContract(ctx context.Context, c hours.Contract) error {
	return s.withTx(ctx, func(ts *txStore) error {
		existing, err := ts.listEmployeeContracts(ctx, c.EmployeeID)
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
			if c.CreatedAt.IsZero() {
				c.CreatedAt = old.CreatedAt
			}
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = ts.now().UTC()
		}
		_, err = ts.q.ExecContext(ctx, `
			INSERT OR REPLACE INTO contracts (`+contractColumns+`, from_key, to_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
			c.ID, c.EmployeeID, c.FromYear, c.FromWeek, int(c.FromDay), c.ToYear, c.ToWeek, int(c.ToDay),
			c.ExpectedHours.String(), c.WorkdaysPerWeek, c.Monday, c.Tuesday, c.Wednesday, c.Thursday,
			c.Friday, c.Saturday, c.Sunday, c.VacationDays, formatTime(c.CreatedAt),
			c.FromWeekValue().Key(), c.ToWeekValue().Key())
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
		if _, err := ts.q.ExecContext(ctx, `UPDATE contracts SET deleted = ? WHERE id = ?`,
			formatTime(ts.now().UTC()), id); err != nil {
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
		var oldValidFrom string
		err := ts.q.QueryRowContext(ctx, `SELECT valid_from FROM slots WHERE id = ?`, sl.ID).Scan(&oldValidFrom)
		existed := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check slot: %w", err)
		}
		var validTo any
		if sl.ValidTo != nil {
			validTo = sl.ValidTo.String()
		}
		_, err = ts.q.ExecContext(ctx, `
			INSERT INTO slots (id, day_of_week, time_from, time_to, valid_from, valid_to, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				day_of_week = excluded.day_of_week,
				time_from = excluded.time_from,
				time_to = excluded.time_to,
				valid_from = excluded.valid_from,
				valid_to = excluded.valid_to,
				deleted = excluded.deleted`,
			sl.ID, int(sl.DayOfWeek), int(sl.From), int(sl.To), sl.ValidFrom.String(), validTo, nullTime(sl.Deleted))
		if err != nil {
			return fmt.Errorf("failed to save slot: %w", err)
		}
		if !existed {
			return nil
		}
		from := min(hours.SlotInvalidationYear(sl), hours.SlotInvalidationYear(hours.Slot{ValidFrom: parseDate(oldValidFrom)}))
		return ts.InvalidateCarryover(ctx, generic.AllEmployees, from)
	})
}

func (s *Store) SaveBooking(ctx context.Context, b hours.Booking) error {
	if !b.WeekValue().Valid() {
		return &hours.InputError{Message: "booking week out of range"}
	}
	return s.withTx(ctx, func(ts *txStore) error {
		var count int
		if err := ts.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM slots WHERE id = ?`, b.SlotID).Scan(&count); err != nil {
			return fmt.Errorf("failed to check slot: %w", err)
		}
		if count == 0 {
			return generic.ErrNotFound
		}
		old, err := ts.queryBookings(ctx, `
			SELECT id, employee_id, slot_id, year, week, created_at, deleted FROM bookings WHERE id = ?`, b.ID)
		if err != nil {
			return err
		}
		for _, o := range old {
			if err := ts.InvalidateCarryover(ctx, o.EmployeeID, hours.InvalidationYear(o.WeekValue())); err != nil {
				return err
			}
			if b.CreatedAt.IsZero() {
				b.CreatedAt = o.CreatedAt
			}
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = ts.now().UTC()
		}
		_, err = ts.q.ExecContext(ctx, `
			INSERT OR REPLACE INTO bookings (id, employee_id, slot_id, year, week, week_key, created_at, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
			b.ID, b.EmployeeID, b.SlotID, b.Year, b.Week, b.WeekValue().Key(), formatTime(b.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to save booking: %w", err)
		}
		return ts.InvalidateCarryover(ctx, b.EmployeeID, hours.InvalidationYear(b.WeekValue()))
	})
}

func (s *Store) DeleteBooking(ctx context.Context, id generic.BookingID) error {
	return s.withTx(ctx, func(ts *txStore) error {
		list, err := ts.queryBookings(ctx, `
			SELECT id, employee_id, slot_id, year, week, created_at, deleted
			FROM bookings WHERE id = ? AND deleted IS NULL`, id)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return generic.ErrNotFound
		}
		if _, err := ts.q.ExecContext(ctx, `UPDATE bookings SET deleted = ? WHERE id = ?`,
			formatTime(ts.now().UTC()), id); err != nil {
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
			if e.CreatedAt.IsZero() {
				e.CreatedAt = old.CreatedAt
			}
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = ts.now().UTC()
		}
		_, err = ts.q.ExecContext(ctx, `
			INSERT OR REPLACE INTO extra_hours
			(id, employee_id, amount, category, custom_extra_hours_id, description, date_time, day, created_at, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			e.ID, e.EmployeeID, e.Amount.String(), string(e.Category), nullString(string(e.CustomTypeID)),
			nullString(e.Description), formatTime(e.At), e.Day().String(), formatTime(e.CreatedAt))
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
		if _, err := ts.q.ExecContext(ctx, `UPDATE extra_hours SET deleted = ? WHERE id = ?`,
			formatTime(ts.now().UTC()), id); err != nil {
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
		var timeOfDay any
		if sd.TimeOfDay != nil {
			timeOfDay = int(*sd.TimeOfDay)
		}
		_, err = ts.q.ExecContext(ctx, `
			INSERT OR REPLACE INTO special_days (id, year, week, week_key, day_of_week, day_type, time_of_day, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
			sd.ID, sd.Year, sd.Week, week.Key(), int(sd.DayOfWeek), string(sd.Type), timeOfDay)
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
		if _, err := ts.q.ExecContext(ctx, `UPDATE special_days SET deleted = ? WHERE id = ?`,
			formatTime(ts.now().UTC()), id); err != nil {
			return fmt.Errorf("failed to delete special day: %w", err)
		}
		return ts.InvalidateCarryover(ctx, generic.AllEmployees, hours.InvalidationYear(generic.NewWeek(sd.Year, sd.Week)))
	})
}

// SaveCustomExtraHours upserts a custom category. Changing its name or
// whether it modifies the balance invalidates every carryover row.
func (s *Store) SaveCustomExtraHours(ctx context.Context, c hours.CustomExtraHours) error {
	if c.Name == "" {
		return &hours.InputError{Message: "custom extra hours require a name"}
	}
	return s.withTx(ctx, func(ts *txStore) error {
		var (
			name      string
			modifies  bool
			createdAt string
		)
		err := ts.q.QueryRowContext(ctx,
			`SELECT name, modifies_balance, created_at FROM custom_extra_hours WHERE id = ?`, c.ID,
		).Scan(&name, &modifies, &createdAt)
		existed := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check custom extra hours: %w", err)
		}
		if c.CreatedAt.IsZero() {
			if existed {
				c.CreatedAt = parseTime(createdAt)
			} else {
				c.CreatedAt = ts.now().UTC()
			}
		}
		_, err = ts.q.ExecContext(ctx, `
			INSERT INTO custom_extra_hours (id, name, description, modifies_balance, created_at, deleted)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				modifies_balance = excluded.modifies_balance,
				deleted = excluded.deleted`,
			c.ID, c.Name, nullString(c.Description), c.ModifiesBalance, formatTime(c.CreatedAt), nullTime(c.Deleted))
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
		var count int
		if err := ts.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM custom_extra_hours WHERE id = ?`, id).Scan(&count); err != nil {
			return fmt.Errorf("failed to check custom extra hours: %w", err)
		}
		if count == 0 {
			return generic.ErrNotFound
		}
		_, err := ts.q.ExecContext(ctx, `
			INSERT INTO custom_extra_hours_links (employee_id, custom_extra_hours_id, active)
			VALUES (?, ?, ?)
			ON CONFLICT (employee_id, custom_extra_hours_id) DO UPDATE SET active = excluded.active`,
			employee, id, active)
		if err != nil {
			return fmt.Errorf("failed to set custom extra hours link: %w", err)
		}
		return nil
	})
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDate(s string) generic.TimePoint {
	d, _ := generic.ParseDate(s)
	return d
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var (
	_ hours.Repository = (*Store)(nil)
	_ hours.Store      = (*txStore)(nil)
)
