/*
engine.go - Entry points of the hours engine

PURPOSE:
  Wires the components together and owns transaction scoping. Every public
  method that may write (carryover recomputation, snapshots) opens exactly
  one TxStore.WithTx scope and passes the scoped Store down. The *In
  variants accept a scope opened by the caller and never commit it.

REQUEST FLOW (ComputeBalance):
  1. Open a transaction scope
  2. Seed from the Carryover Manager (may recompute earlier years)
  3. Load contracts, bookings, slots, extra hours, special days and links
     for the calendar years touched by the period
  4. Build the per-day Ledger and derive the requested values
  5. Commit (carryover rows written in step 2 become visible)

BATCHES:
  ComputeBalanceAll runs each employee in its own scope and returns a
  result or an error per employee. One employee's bad data never hides the
  results of the others.

SEE ALSO:
  - store.go: TxStore contract
  - metrics/metrics.go: Observer implementation backed by Prometheus
*/
package hours

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

type Config struct {
	// Precision is the number of decimal places of every output figure.
	Precision int32
	// OverlapPolicy decides how overlapping contracts are resolved.
	OverlapPolicy OverlapPolicy
	// WorkdayStart is subtracted from a short day's end time.
	WorkdayStart generic.TimeOfDay
}

func DefaultConfig() Config {
	return Config{
		Precision:     2,
		OverlapPolicy: OverlapFail,
		WorkdayStart:  generic.NewTimeOfDay(8, 0),
	}
}

// Observer receives engine measurements.
type Observer interface {
	ObserveComputation(operation string, duration time.Duration, err error)
	ObserveCarryover(outcome string)
	ObserveFinalize(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveComputation(string, time.Duration, error) {}
func (nopObserver) ObserveCarryover(string)                         {}
func (nopObserver) ObserveFinalize(string)                          {}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option     { return func(e *Engine) { e.logger = l } }
func WithObserver(o Observer) Option       { return func(e *Engine) { e.observer = o } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store    TxStore
	cfg      Config
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	resolver  *ContractResolver
	expected  *ExpectedHoursCalculator
	extra     *ExtraHoursAggregator
	calc      *BalanceCalculator
	carryover *CarryoverManager
	snapshots *SnapshotBuilder
}

func New(store TxStore, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		cfg:      cfg,
		logger:   slog.Default(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.OverlapPolicy == "" {
		e.cfg.OverlapPolicy = OverlapFail
	}

	e.resolver = NewContractResolver(e.cfg.OverlapPolicy, e.logger)
	e.expected = NewExpectedHoursCalculator(e.resolver, e.cfg.WorkdayStart)
	e.extra = NewExtraHoursAggregator(e.logger)
	e.calc = NewBalanceCalculator(e.expected, e.extra, e.cfg.Precision)
	e.carryover = NewCarryoverManager(e.calc, e.logger, e.observer)
	e.carryover.now = e.now
	e.snapshots = newSnapshotBuilder(e.ComputeBalanceIn, e.logger, e.observer)
	e.snapshots.now = e.now
	return e
}

func (e *Engine) observe(op string, start time.Time, err error) {
	e.observer.ObserveComputation(op, time.Since(start), err)
}

// =============================================================================
// BALANCE
// =============================================================================

// ComputeBalance returns the requested figures of employee for period. An
// empty types list selects StandardValueTypes.
func (e *Engine) ComputeBalance(ctx context.Context, employee generic.EmployeeID, period generic.Period, types []ValueType) (values []Value, err error) {
	start := time.Now()
	defer func() { e.observe("compute_balance", start, err) }()
	err = e.store.WithTx(ctx, func(s Store) error {
		var err error
		values, err = e.ComputeBalanceIn(ctx, s, employee, period, types)
		return err
	})
	return values, err
}

// ComputeBalanceIn runs inside a scope opened by the caller.
func (e *Engine) ComputeBalanceIn(ctx context.Context, s Store, employee generic.EmployeeID, period generic.Period, types []ValueType) ([]Value, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		types = StandardValueTypes
	}

	seeds, err := e.carryover.Seeds(ctx, s, employee, period.Start.Year())
	if err != nil {
		return nil, err
	}

	span := LedgerSpan(period)
	in, err := LoadInputs(ctx, s, employee, span)
	if err != nil {
		return nil, err
	}
	ledger, err := e.calc.BuildLedger(employee, span, in)
	if err != nil {
		return nil, err
	}
	return e.calc.Values(ledger, period, seeds, types), nil
}

// Result is the outcome for one employee of a batch.
type Result struct {
	Values []Value
	Err    error
}

// ComputeBalanceAll computes period for every employee with a contract in
// it. The error is non-nil only when the employee list cannot be loaded.
func (e *Engine) ComputeBalanceAll(ctx context.Context, period generic.Period, types []ValueType) (map[generic.EmployeeID]Result, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	employees, err := e.employeesIn(ctx, period)
	if err != nil {
		return nil, err
	}

	out := make(map[generic.EmployeeID]Result, len(employees))
	for _, employee := range employees {
		values, err := e.ComputeBalance(ctx, employee, period, types)
		if err != nil {
			e.logger.Warn("balance computation failed",
				slog.String("employee", string(employee)),
				slog.String("period", period.String()),
				slog.Any("error", err))
		}
		out[employee] = Result{Values: values, Err: err}
	}
	return out, nil
}

// WeeklyReport splits period by ISO week.
func (e *Engine) WeeklyReport(ctx context.Context, employee generic.EmployeeID, period generic.Period) ([]WeekSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	in, err := LoadInputs(ctx, e.store, employee, period)
	if err != nil {
		return nil, err
	}
	ledger, err := e.calc.BuildLedger(employee, period, in)
	if err != nil {
		return nil, err
	}
	return ledger.Weeks(period, e.cfg.Precision), nil
}

// ResolveContract returns the contract of employee for week, nil if none.
func (e *Engine) ResolveContract(ctx context.Context, employee generic.EmployeeID, week generic.Week) (*Contract, error) {
	contracts, err := e.store.ListActiveContracts(ctx, employee, generic.SingleWeek(week))
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return e.resolver.Resolve(contracts, employee, week)
}

func (e *Engine) employeesIn(ctx context.Context, period generic.Period) ([]generic.EmployeeID, error) {
	contracts, err := e.store.ListActiveContracts(ctx, generic.AllEmployees, generic.WeekRangeOf(period))
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	var overlapping []Contract
	for _, c := range contracts {
		if c.StartDate().BeforeOrEqual(period.End) && c.EndDate().AfterOrEqual(period.Start) {
			overlapping = append(overlapping, c)
		}
	}
	return EmployeesWithContracts(overlapping), nil
}

// =============================================================================
// CARRYOVER
// =============================================================================

// Carryover returns the ending balance of year, recomputing when stale.
func (e *Engine) Carryover(ctx context.Context, employee generic.EmployeeID, year int) (c Carryover, err error) {
	start := time.Now()
	defer func() { e.observe("carryover", start, err) }()
	err = e.store.WithTx(ctx, func(s Store) error {
		var err error
		c, err = e.carryover.GetOrCompute(ctx, s, employee, year)
		return err
	})
	return c, err
}

// StoredCarryover reads without computing. It returns ErrCarryoverStale for
// invalidated rows.
func (e *Engine) StoredCarryover(ctx context.Context, employee generic.EmployeeID, year int) (*Carryover, error) {
	return e.carryover.Get(ctx, e.store, employee, year)
}

// InvalidateCarryover marks fromYear and later years stale.
func (e *Engine) InvalidateCarryover(ctx context.Context, employee generic.EmployeeID, fromYear int) error {
	return e.store.WithTx(ctx, func(s Store) error {
		return e.carryover.Invalidate(ctx, s, employee, fromYear)
	})
}

// RefreshCarryovers recomputes the ending balance of year for every employee
// with a contract, returning how many succeeded.
func (e *Engine) RefreshCarryovers(ctx context.Context, year int) (int, error) {
	contracts, err := e.store.ListActiveContracts(ctx, generic.AllEmployees, allWeeks)
	if err != nil {
		return 0, fmt.Errorf("list contracts: %w", err)
	}
	failures := make(map[generic.EmployeeID]error)
	refreshed := 0
	for _, employee := range EmployeesWithContracts(contracts) {
		if _, err := e.Carryover(ctx, employee, year); err != nil {
			failures[employee] = err
			continue
		}
		refreshed++
	}
	if len(failures) > 0 {
		return refreshed, &generic.BatchError{Errors: failures}
	}
	return refreshed, nil
}

// =============================================================================
// BILLING PERIODS
// =============================================================================

// FinalizeBillingPeriod snapshots period. A second call with the same bounds
// returns generic.ErrConflictAlreadyFinalized.
func (e *Engine) FinalizeBillingPeriod(ctx context.Context, period generic.Period) (bp *BillingPeriod, err error) {
	start := time.Now()
	defer func() { e.observe("finalize_billing_period", start, err) }()
	err = e.store.WithTx(ctx, func(s Store) error {
		var err error
		bp, err = e.snapshots.Finalize(ctx, s, period)
		return err
	})
	e.observeFinalize(err)
	return bp, err
}

// FinalizeNextBillingPeriod snapshots from the day after the latest period
// up to end.
func (e *Engine) FinalizeNextBillingPeriod(ctx context.Context, end generic.TimePoint) (bp *BillingPeriod, err error) {
	start := time.Now()
	defer func() { e.observe("finalize_billing_period", start, err) }()
	err = e.store.WithTx(ctx, func(s Store) error {
		start, err := e.snapshots.NextStart(ctx, s)
		if err != nil {
			return err
		}
		bp, err = e.snapshots.Finalize(ctx, s, generic.NewPeriod(start, end))
		return err
	})
	e.observeFinalize(err)
	return bp, err
}

func (e *Engine) observeFinalize(err error) {
	switch {
	case err == nil:
		e.observer.ObserveFinalize("created")
	case errors.Is(err, generic.ErrConflictAlreadyFinalized):
		e.observer.ObserveFinalize("conflict")
	default:
		e.observer.ObserveFinalize("error")
	}
}

// ClearBillingPeriod soft-deletes a period so its window may be finalized
// again as a new record.
func (e *Engine) ClearBillingPeriod(ctx context.Context, id generic.BillingPeriodID) error {
	return e.store.WithTx(ctx, func(s Store) error {
		if err := s.DeleteBillingPeriod(ctx, id); err != nil {
			return err
		}
		e.logger.Info("billing period cleared", slog.String("id", string(id)))
		return nil
	})
}

func (e *Engine) BillingPeriods(ctx context.Context) ([]BillingPeriod, error) {
	return e.store.ListBillingPeriods(ctx)
}

func (e *Engine) BillingPeriod(ctx context.Context, id generic.BillingPeriodID) (*BillingPeriod, error) {
	return e.store.GetBillingPeriod(ctx, id)
}

// =============================================================================
// INPUT LOADING
// =============================================================================

// LoadInputs reads everything the ledger of employee over span depends on.
func LoadInputs(ctx context.Context, s Reader, employee generic.EmployeeID, span generic.Period) (Inputs, error) {
	weeks := generic.WeekRangeOf(span)
	var (
		in  Inputs
		err error
	)
	if in.Contracts, err = s.ListActiveContracts(ctx, employee, weeks); err != nil {
		return Inputs{}, fmt.Errorf("list contracts: %w", err)
	}
	if in.Bookings, err = s.ListBookings(ctx, employee, weeks); err != nil {
		return Inputs{}, fmt.Errorf("list bookings: %w", err)
	}
	if in.Slots, err = s.ListSlots(ctx); err != nil {
		return Inputs{}, fmt.Errorf("list slots: %w", err)
	}
	if in.ExtraHours, err = s.ListExtraHours(ctx, employee, span); err != nil {
		return Inputs{}, fmt.Errorf("list extra hours: %w", err)
	}
	if in.SpecialDays, err = s.ListSpecialDays(ctx, weeks); err != nil {
		return Inputs{}, fmt.Errorf("list special days: %w", err)
	}
	if in.Links, err = s.ListCustomExtraHoursLinks(ctx, employee); err != nil {
		return Inputs{}, fmt.Errorf("list custom extra hours links: %w", err)
	}
	return in, nil
}
