package postgres

// Schema creates every table the store needs. Quantities are NUMERIC and
// are read back as text to keep full decimal precision.
const Schema = `
CREATE TABLE IF NOT EXISTS contracts (
    id TEXT PRIMARY KEY,
    employee_id TEXT NOT NULL,
    from_year INT NOT NULL,
    from_week INT NOT NULL,
    from_day INT NOT NULL,
    to_year INT NOT NULL,
    to_week INT NOT NULL,
    to_day INT NOT NULL,
    from_key INT NOT NULL,
    to_key INT NOT NULL,
    expected_hours NUMERIC NOT NULL,
    workdays_per_week INT NOT NULL DEFAULT 0,
    monday BOOLEAN NOT NULL,
    tuesday BOOLEAN NOT NULL,
    wednesday BOOLEAN NOT NULL,
    thursday BOOLEAN NOT NULL,
    friday BOOLEAN NOT NULL,
    saturday BOOLEAN NOT NULL,
    sunday BOOLEAN NOT NULL,
    vacation_days INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    deleted TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_contracts_employee_weeks ON contracts(employee_id, from_key, to_key);

CREATE TABLE IF NOT EXISTS slots (
    id TEXT PRIMARY KEY,
    day_of_week INT NOT NULL,
    time_from INT NOT NULL,
    time_to INT NOT NULL,
    valid_from DATE NOT NULL,
    valid_to DATE,
    deleted TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS bookings (
    id TEXT PRIMARY KEY,
    employee_id TEXT NOT NULL,
    slot_id TEXT NOT NULL REFERENCES slots(id),
    year INT NOT NULL,
    week INT NOT NULL,
    week_key INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    deleted TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_bookings_employee_week ON bookings(employee_id, week_key);

CREATE TABLE IF NOT EXISTS custom_extra_hours (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    modifies_balance BOOLEAN NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    deleted TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS custom_extra_hours_links (
    employee_id TEXT NOT NULL,
    custom_extra_hours_id TEXT NOT NULL REFERENCES custom_extra_hours(id),
    active BOOLEAN NOT NULL,
    PRIMARY KEY (employee_id, custom_extra_hours_id)
);

CREATE TABLE IF NOT EXISTS extra_hours (
    id TEXT PRIMARY KEY,
    employee_id TEXT NOT NULL,
    amount NUMERIC NOT NULL,
    category TEXT NOT NULL,
    custom_extra_hours_id TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    date_time TIMESTAMPTZ NOT NULL,
    day DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    deleted TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_extra_hours_employee_day ON extra_hours(employee_id, day);

CREATE TABLE IF NOT EXISTS special_days (
    id TEXT PRIMARY KEY,
    year INT NOT NULL,
    week INT NOT NULL,
    week_key INT NOT NULL,
    day_of_week INT NOT NULL,
    day_type TEXT NOT NULL,
    time_of_day INT,
    deleted TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_special_days_week ON special_days(week_key);

CREATE TABLE IF NOT EXISTS employee_yearly_carryover (
    employee_id TEXT NOT NULL,
    year INT NOT NULL,
    carryover_hours NUMERIC NOT NULL,
    vacation_days NUMERIC NOT NULL,
    version TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    deleted TIMESTAMPTZ,
    PRIMARY KEY (employee_id, year)
);

CREATE TABLE IF NOT EXISTS billing_periods (
    id TEXT PRIMARY KEY,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    created_by TEXT NOT NULL,
    deleted TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_billing_periods_live
    ON billing_periods(start_date, end_date) WHERE deleted IS NULL;

CREATE TABLE IF NOT EXISTS billing_period_rows (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    billing_period_id TEXT NOT NULL REFERENCES billing_periods(id),
    employee_id TEXT NOT NULL,
    value_type TEXT NOT NULL,
    value_delta NUMERIC NOT NULL,
    value_ytd_from NUMERIC NOT NULL,
    value_ytd_to NUMERIC NOT NULL,
    value_full_year NUMERIC NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_billing_period_rows_period ON billing_period_rows(billing_period_id, employee_id);
`

const contractSelect = `
SELECT id, employee_id, from_year, from_week, from_day, to_year, to_week, to_day,
       expected_hours::text, workdays_per_week, monday, tuesday, wednesday, thursday,
       friday, saturday, sunday, vacation_days, created_at, deleted
FROM contracts`

const ListActiveContractsSQL = contractSelect + `
WHERE deleted IS NULL
  AND ($1 = '' OR employee_id = $1)
  AND from_key <= $2 AND to_key >= $3
ORDER BY from_key, id`

const ListEmployeeContractsSQL = contractSelect + `
WHERE employee_id = $1 AND deleted IS NULL`

const GetContractSQL = contractSelect + `
WHERE id = $1`

const UpsertContractSQL = `
INSERT INTO contracts (id, employee_id, from_year, from_week, from_day, to_year, to_week, to_day,
    expected_hours, workdays_per_week, monday, tuesday, wednesday, thursday, friday, saturday, sunday,
    vacation_days, created_at, from_key, to_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (id) DO UPDATE SET
    employee_id = EXCLUDED.employee_id,
    from_year = EXCLUDED.from_year, from_week = EXCLUDED.from_week, from_day = EXCLUDED.from_day,
    to_year = EXCLUDED.to_year, to_week = EXCLUDED.to_week, to_day = EXCLUDED.to_day,
    expected_hours = EXCLUDED.expected_hours, workdays_per_week = EXCLUDED.workdays_per_week,
    monday = EXCLUDED.monday, tuesday = EXCLUDED.tuesday, wednesday = EXCLUDED.wednesday,
    thursday = EXCLUDED.thursday, friday = EXCLUDED.friday, saturday = EXCLUDED.saturday,
    sunday = EXCLUDED.sunday, vacation_days = EXCLUDED.vacation_days,
    from_key = EXCLUDED.from_key, to_key = EXCLUDED.to_key, deleted = NULL`

const DeleteContractSQL = `UPDATE contracts SET deleted = $2 WHERE id = $1`

const bookingSelect = `
SELECT id, employee_id, slot_id, year, week, created_at, deleted
FROM bookings`

const ListBookingsSQL = bookingSelect + `
WHERE deleted IS NULL
  AND ($1 = '' OR employee_id = $1)
  AND week_key >= $2 AND week_key <= $3
ORDER BY id`

const GetBookingSQL = bookingSelect + `
WHERE id = $1`

const UpsertBookingSQL = `
INSERT INTO bookings (id, employee_id, slot_id, year, week, week_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    employee_id = EXCLUDED.employee_id, slot_id = EXCLUDED.slot_id,
    year = EXCLUDED.year, week = EXCLUDED.week, week_key = EXCLUDED.week_key, deleted = NULL`

const DeleteBookingSQL = `UPDATE bookings SET deleted = $2 WHERE id = $1`

const ListSlotsSQL = `
SELECT id, day_of_week, time_from, time_to, valid_from, valid_to, deleted
FROM slots
ORDER BY id`

const SlotExistsSQL = `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`

const SlotValidFromSQL = `SELECT valid_from FROM slots WHERE id = $1`

const UpsertSlotSQL = `
INSERT INTO slots (id, day_of_week, time_from, time_to, valid_from, valid_to, deleted)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    day_of_week = EXCLUDED.day_of_week, time_from = EXCLUDED.time_from, time_to = EXCLUDED.time_to,
    valid_from = EXCLUDED.valid_from, valid_to = EXCLUDED.valid_to, deleted = EXCLUDED.deleted`

const extraHoursSelect = `
SELECT id, employee_id, amount::text, category, custom_extra_hours_id, description, date_time, created_at, deleted
FROM extra_hours`

// ListExtraHoursSQL takes an optional category filter as a text array.
const ListExtraHoursSQL = extraHoursSelect + `
WHERE deleted IS NULL
  AND ($1 = '' OR employee_id = $1)
  AND day >= $2 AND day <= $3
  AND (cardinality($4::text[]) = 0 OR category = ANY($4::text[]))
ORDER BY date_time, id`

const GetExtraHoursSQL = extraHoursSelect + `
WHERE id = $1`

const UpsertExtraHoursSQL = `
INSERT INTO extra_hours (id, employee_id, amount, category, custom_extra_hours_id, description, date_time, day, created_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    employee_id = EXCLUDED.employee_id, amount = EXCLUDED.amount, category = EXCLUDED.category,
    custom_extra_hours_id = EXCLUDED.custom_extra_hours_id, description = EXCLUDED.description,
    date_time = EXCLUDED.date_time, day = EXCLUDED.day, deleted = NULL`

const DeleteExtraHoursSQL = `UPDATE extra_hours SET deleted = $2 WHERE id = $1`

const specialDaySelect = `
SELECT id, year, week, day_of_week, day_type, time_of_day, deleted
FROM special_days`

const ListSpecialDaysSQL = specialDaySelect + `
WHERE deleted IS NULL AND week_key >= $1 AND week_key <= $2
ORDER BY week_key, day_of_week`

const GetSpecialDaySQL = specialDaySelect + `
WHERE id = $1`

const UpsertSpecialDaySQL = `
INSERT INTO special_days (id, year, week, week_key, day_of_week, day_type, time_of_day)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    year = EXCLUDED.year, week = EXCLUDED.week, week_key = EXCLUDED.week_key,
    day_of_week = EXCLUDED.day_of_week, day_type = EXCLUDED.day_type,
    time_of_day = EXCLUDED.time_of_day, deleted = NULL`

const DeleteSpecialDaySQL = `UPDATE special_days SET deleted = $2 WHERE id = $1`

const GetCarryoverSQL = `
SELECT employee_id, year, carryover_hours::text, vacation_days::text, version, created_at, updated_at, deleted
FROM employee_yearly_carryover
WHERE employee_id = $1 AND year = $2`

const PutCarryoverSQL = `
INSERT INTO employee_yearly_carryover
    (employee_id, year, carryover_hours, vacation_days, version, created_at, updated_at, deleted)
VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, NULL)
ON CONFLICT (employee_id, year) DO UPDATE SET
    carryover_hours = EXCLUDED.carryover_hours,
    vacation_days = EXCLUDED.vacation_days,
    version = EXCLUDED.version,
    updated_at = EXCLUDED.updated_at,
    deleted = NULL`

const InvalidateCarryoverSQL = `
UPDATE employee_yearly_carryover
SET deleted = $3
WHERE ($1 = '' OR employee_id = $1) AND year >= $2 AND deleted IS NULL`

const GetCustomExtraHoursSQL = `
SELECT name, modifies_balance, created_at FROM custom_extra_hours WHERE id = $1`

const UpsertCustomExtraHoursSQL = `
INSERT INTO custom_extra_hours (id, name, description, modifies_balance, created_at, deleted)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name, description = EXCLUDED.description,
    modifies_balance = EXCLUDED.modifies_balance, deleted = EXCLUDED.deleted`

const CustomExtraHoursExistsSQL = `SELECT EXISTS (SELECT 1 FROM custom_extra_hours WHERE id = $1)`

const ListCustomExtraHoursLinksSQL = `
SELECT l.employee_id, l.active, c.id, c.name, c.description, c.modifies_balance, c.created_at, c.deleted
FROM custom_extra_hours_links l
JOIN custom_extra_hours c ON c.id = l.custom_extra_hours_id
WHERE l.employee_id = $1
ORDER BY c.id`

const SetCustomExtraHoursLinkSQL = `
INSERT INTO custom_extra_hours_links (employee_id, custom_extra_hours_id, active)
VALUES ($1, $2, $3)
ON CONFLICT (employee_id, custom_extra_hours_id) DO UPDATE SET active = EXCLUDED.active`

const ListBillingPeriodsSQL = `
SELECT id, start_date, end_date, created_at, created_by, deleted
FROM billing_periods
WHERE deleted IS NULL
ORDER BY start_date`

const GetBillingPeriodSQL = `
SELECT id, start_date, end_date, created_at, created_by, deleted
FROM billing_periods
WHERE id = $1`

const ListBillingPeriodRowsSQL = `
SELECT id, billing_period_id, employee_id, value_type, value_delta::text, value_ytd_from::text,
       value_ytd_to::text, value_full_year::text, created_at
FROM billing_period_rows
WHERE billing_period_id = $1
ORDER BY seq`

const InsertBillingPeriodSQL = `
INSERT INTO billing_periods (id, start_date, end_date, created_at, created_by)
VALUES ($1, $2, $3, $4, $5)`

const InsertBillingPeriodRowSQL = `
INSERT INTO billing_period_rows
    (id, billing_period_id, employee_id, value_type, value_delta, value_ytd_from, value_ytd_to, value_full_year, created_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9)`

const DeleteBillingPeriodSQL = `
UPDATE billing_periods SET deleted = $2 WHERE id = $1 AND deleted IS NULL`
