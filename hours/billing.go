package hours

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/warp/hours-engine/generic"
)

// =============================================================================
// BILLING-PERIOD SNAPSHOT BUILDER
// =============================================================================

// SnapshotCreator is recorded as CreatedBy on periods finalized by the engine.
const SnapshotCreator = "billing-period-snapshot"

// computeFunc produces values for one employee inside an open scope.
type computeFunc func(ctx context.Context, s Store, employee generic.EmployeeID, period generic.Period, types []ValueType) ([]Value, error)

// SnapshotBuilder freezes computed values into immutable billing periods.
type SnapshotBuilder struct {
	compute  computeFunc
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func newSnapshotBuilder(compute computeFunc, logger *slog.Logger, observer Observer) *SnapshotBuilder {
	return &SnapshotBuilder{compute: compute, logger: logger, observer: observer, now: time.Now}
}

// Finalize snapshots period for every employee whose contract overlaps it.
// The header is inserted first so a concurrent finalize of the same window
// fails on the uniqueness check before any rows are computed.
func (b *SnapshotBuilder) Finalize(ctx context.Context, s Store, period generic.Period) (*BillingPeriod, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.ListBillingPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list billing periods: %w", err)
	}
	for _, p := range existing {
		if p.Period.Start.Equal(period.Start) && p.Period.End.Equal(period.End) {
			return nil, generic.ErrConflictAlreadyFinalized
		}
	}

	bp := BillingPeriod{
		ID:        generic.BillingPeriodID(uuid.NewString()),
		Period:    period,
		CreatedAt: b.now().UTC(),
		CreatedBy: SnapshotCreator,
	}
	if err := s.InsertBillingPeriod(ctx, bp); err != nil {
		return nil, err
	}

	contracts, err := s.ListActiveContracts(ctx, generic.AllEmployees, generic.WeekRangeOf(period))
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	var overlapping []Contract
	for _, c := range contracts {
		if c.StartDate().BeforeOrEqual(period.End) && c.EndDate().AfterOrEqual(period.Start) {
			overlapping = append(overlapping, c)
		}
	}

	failures := make(map[generic.EmployeeID]error)
	for _, employee := range EmployeesWithContracts(overlapping) {
		rows, err := b.snapshotEmployee(ctx, s, bp, employee)
		if err != nil {
			failures[employee] = err
			continue
		}
		bp.Rows = append(bp.Rows, rows...)
	}
	if len(failures) > 0 {
		return nil, &generic.BatchError{Errors: failures}
	}

	b.logger.Info("billing period finalized",
		slog.String("id", string(bp.ID)),
		slog.String("period", period.String()),
		slog.Int("rows", len(bp.Rows)))
	return &bp, nil
}

func (b *SnapshotBuilder) snapshotEmployee(ctx context.Context, s Store, bp BillingPeriod, employee generic.EmployeeID) ([]SnapshotRow, error) {
	links, err := s.ListCustomExtraHoursLinks(ctx, employee)
	if err != nil {
		return nil, fmt.Errorf("list custom extra hours links: %w", err)
	}
	names := NewCustomTypes(links).ActiveNames()
	sort.Strings(names)

	types := append([]ValueType{}, StandardValueTypes...)
	for _, n := range names {
		types = append(types, CustomExtraHoursValue(n))
	}

	values, err := b.compute(ctx, s, employee, bp.Period, types)
	if err != nil {
		return nil, err
	}

	rows := make([]SnapshotRow, 0, len(values))
	for _, v := range values {
		row := SnapshotRow{
			ID:              uuid.NewString(),
			BillingPeriodID: bp.ID,
			EmployeeID:      employee,
			ValueType:       v.Type,
			Delta:           v.Delta,
			YTDFrom:         v.YTDFrom,
			YTDTo:           v.YTDTo,
			FullYear:        v.FullYear,
			CreatedAt:       bp.CreatedAt,
		}
		if err := s.InsertBillingPeriodSnapshot(ctx, row); err != nil {
			return nil, fmt.Errorf("insert snapshot row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// NextStart is the day after the latest live period, or the first contract
// day when nothing was finalized yet.
func (b *SnapshotBuilder) NextStart(ctx context.Context, s Reader) (generic.TimePoint, error) {
	periods, err := s.ListBillingPeriods(ctx)
	if err != nil {
		return generic.TimePoint{}, fmt.Errorf("list billing periods: %w", err)
	}
	var latest *generic.TimePoint
	for _, p := range periods {
		if latest == nil || p.Period.End.After(*latest) {
			end := p.Period.End
			latest = &end
		}
	}
	if latest != nil {
		return latest.AddDays(1), nil
	}

	contracts, err := s.ListActiveContracts(ctx, generic.AllEmployees, allWeeks)
	if err != nil {
		return generic.TimePoint{}, fmt.Errorf("list contracts: %w", err)
	}
	var first *generic.TimePoint
	for _, c := range contracts {
		if d := c.StartDate(); first == nil || d.Before(*first) {
			first = &d
		}
	}
	if first == nil {
		return generic.TimePoint{}, fmt.Errorf("no contracts to bill: %w", generic.ErrInvalidPeriod)
	}
	return *first, nil
}
