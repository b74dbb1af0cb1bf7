package hours

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// CARRYOVER MANAGER
// =============================================================================

// allWeeks spans every week a contract can reasonably cover.
var allWeeks = generic.WeekRange{From: generic.NewWeek(1, 1), To: generic.NewWeek(9999, 52)}

// CarryoverManager persists the ending balance of each year so year-to-date
// figures never rescan earlier years.
//
// Rows are keyed by (employee, year) and hold the balance at the END of that
// year. The figure carried into year Y is therefore the row of Y-1.
type CarryoverManager struct {
	calc     *BalanceCalculator
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func NewCarryoverManager(calc *BalanceCalculator, logger *slog.Logger, observer Observer) *CarryoverManager {
	return &CarryoverManager{calc: calc, logger: logger, observer: observer, now: time.Now}
}

// Get returns the live row for the key, nil when nothing was ever stored, and
// a CarryoverStaleError when the row or its predecessor was invalidated and
// has not been recomputed. Imported rows do not depend on their predecessor.
func (m *CarryoverManager) Get(ctx context.Context, s Reader, employee generic.EmployeeID, year int) (*Carryover, error) {
	row, err := s.GetCarryover(ctx, employee, year)
	if err != nil {
		return nil, fmt.Errorf("get carryover: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	if row.IsDeleted() {
		return nil, &generic.CarryoverStaleError{EmployeeID: employee, Year: year}
	}
	if !row.IsComputed() {
		return row, nil
	}
	prev, err := s.GetCarryover(ctx, employee, year-1)
	if err != nil {
		return nil, fmt.Errorf("get carryover: %w", err)
	}
	if prev != nil && prev.IsDeleted() {
		return nil, &generic.CarryoverStaleError{EmployeeID: employee, Year: year}
	}
	return row, nil
}

// GetOrCompute returns the ending balance of year, computing and persisting
// it (and any missing or stale earlier year) when needed. Years before the
// employee's first contract are resolved by opening.
func (m *CarryoverManager) GetOrCompute(ctx context.Context, s Store, employee generic.EmployeeID, year int) (Carryover, error) {
	row, err := m.Get(ctx, s, employee, year)
	switch {
	case err == nil && row != nil:
		m.observer.ObserveCarryover("hit")
		return *row, nil
	case err != nil && !errors.Is(err, generic.ErrCarryoverStale):
		return Carryover{}, err
	case err != nil:
		m.observer.ObserveCarryover("stale")
	}

	base, ok, err := m.baseYear(ctx, s, employee)
	if err != nil {
		return Carryover{}, err
	}
	if !ok || year < base {
		return m.opening(ctx, s, employee, year)
	}

	if err := ctx.Err(); err != nil {
		return Carryover{}, err
	}
	prev, err := m.GetOrCompute(ctx, s, employee, year-1)
	if err != nil {
		return Carryover{}, err
	}

	span := generic.YearPeriod(year)
	in, err := LoadInputs(ctx, s, employee, span)
	if err != nil {
		return Carryover{}, err
	}
	ledger, err := m.calc.BuildLedger(employee, span, in)
	if err != nil {
		return Carryover{}, err
	}
	t := ledger.Sum(span)

	now := m.now().UTC()
	c := Carryover{
		EmployeeID:   employee,
		Year:         year,
		Hours:        prev.Hours.Add(t.Balance().Round(m.calc.precision)),
		VacationDays: prev.VacationDays.Add(t.Entitlement.Sub(t.VacationDays).Round(m.calc.precision)),
		Version:      ComputedVersionPrefix + uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.PutCarryover(ctx, c); err != nil {
		return Carryover{}, fmt.Errorf("put carryover: %w", err)
	}
	m.observer.ObserveCarryover("computed")
	m.logger.Debug("carryover computed",
		slog.String("employee", string(employee)),
		slog.Int("year", year),
		slog.String("hours", c.Hours.String()))
	return c, nil
}

// opening resolves a year no contract covers. Without a stored row it
// carries zero and writes nothing. An imported row keeps its figures and is
// revived when an edit invalidated it. A computed row left behind by a
// removed contract adds nothing to its predecessor, so it is rewritten with
// the predecessor's figures once stale.
func (m *CarryoverManager) opening(ctx context.Context, s Store, employee generic.EmployeeID, year int) (Carryover, error) {
	row, err := s.GetCarryover(ctx, employee, year)
	if err != nil {
		return Carryover{}, fmt.Errorf("get carryover: %w", err)
	}
	if row == nil {
		return Carryover{EmployeeID: employee, Year: year, Hours: decimal.Zero, VacationDays: decimal.Zero}, nil
	}
	if !row.IsDeleted() {
		return *row, nil
	}

	c := *row
	c.Deleted = nil
	c.UpdatedAt = m.now().UTC()
	if c.IsComputed() {
		if err := ctx.Err(); err != nil {
			return Carryover{}, err
		}
		prev, err := m.opening(ctx, s, employee, year-1)
		if err != nil {
			return Carryover{}, err
		}
		c.Hours = prev.Hours
		c.VacationDays = prev.VacationDays
		c.Version = ComputedVersionPrefix + uuid.NewString()
	}
	if err := s.PutCarryover(ctx, c); err != nil {
		return Carryover{}, fmt.Errorf("put carryover: %w", err)
	}
	m.observer.ObserveCarryover("restored")
	m.logger.Debug("carryover restored",
		slog.String("employee", string(employee)),
		slog.Int("year", year),
		slog.Bool("imported", !c.IsComputed()),
		slog.String("hours", c.Hours.String()))
	return c, nil
}

// Seeds returns the figures carried into year.
func (m *CarryoverManager) Seeds(ctx context.Context, s Store, employee generic.EmployeeID, year int) (Seeds, error) {
	c, err := m.GetOrCompute(ctx, s, employee, year-1)
	if err != nil {
		return Seeds{}, err
	}
	return Seeds{Hours: c.Hours, VacationDays: c.VacationDays}, nil
}

// Invalidate marks the rows of fromYear and every later year stale.
func (m *CarryoverManager) Invalidate(ctx context.Context, s Writer, employee generic.EmployeeID, fromYear int) error {
	if err := s.InvalidateCarryover(ctx, employee, fromYear); err != nil {
		return fmt.Errorf("invalidate carryover: %w", err)
	}
	m.logger.Info("carryover invalidated",
		slog.String("employee", string(employee)),
		slog.Int("from_year", fromYear))
	return nil
}

func (m *CarryoverManager) baseYear(ctx context.Context, s Reader, employee generic.EmployeeID) (int, bool, error) {
	contracts, err := s.ListActiveContracts(ctx, employee, allWeeks)
	if err != nil {
		return 0, false, fmt.Errorf("list contracts: %w", err)
	}
	year, ok := EarliestContractYear(contracts)
	return year, ok, nil
}
