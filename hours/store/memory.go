// Package store provides an in-memory hours.Repository.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one lock. WithTx holds the
// write lock for the whole transaction, so transactions are serialized.
type Memory struct {
	mu   sync.RWMutex
	data *memoryData
}

type linkKey struct {
	EmployeeID generic.EmployeeID
	TypeID     generic.CustomExtraHoursID
}

type carryoverKey struct {
	EmployeeID generic.EmployeeID
	Year       int
}

type memoryData struct {
	now func() time.Time

	contracts   map[generic.ContractID]hours.Contract
	slots       map[generic.SlotID]hours.Slot
	bookings    map[generic.BookingID]hours.Booking
	extra       map[generic.ExtraHoursID]hours.ExtraHours
	specialDays map[generic.SpecialDayID]hours.SpecialDay
	custom      map[generic.CustomExtraHoursID]hours.CustomExtraHours
	links       map[linkKey]bool
	carryover   map[carryoverKey]hours.Carryover
	periods     map[generic.BillingPeriodID]hours.BillingPeriod
}

func NewMemory() *Memory {
	return &Memory{data: newMemoryData(time.Now)}
}

// NewMemoryWithClock uses now for soft-delete and creation timestamps.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{data: newMemoryData(now)}
}

func newMemoryData(now func() time.Time) *memoryData {
	return &memoryData{
		now:         now,
		contracts:   make(map[generic.ContractID]hours.Contract),
		slots:       make(map[generic.SlotID]hours.Slot),
		bookings:    make(map[generic.BookingID]hours.Booking),
		extra:       make(map[generic.ExtraHoursID]hours.ExtraHours),
		specialDays: make(map[generic.SpecialDayID]hours.SpecialDay),
		custom:      make(map[generic.CustomExtraHoursID]hours.CustomExtraHours),
		links:       make(map[linkKey]bool),
		carryover:   make(map[carryoverKey]hours.Carryover),
		periods:     make(map[generic.BillingPeriodID]hours.BillingPeriod),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(hours.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(m.data); err != nil {
		m.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData(d.now)
	for k, v := range d.contracts {
		c.contracts[k] = v
	}
	for k, v := range d.slots {
		c.slots[k] = v
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.extra {
		c.extra[k] = v
	}
	for k, v := range d.specialDays {
		c.specialDays[k] = v
	}
	for k, v := range d.custom {
		c.custom[k] = v
	}
	for k, v := range d.links {
		c.links[k] = v
	}
	for k, v := range d.carryover {
		c.carryover[k] = v
	}
	for k, v := range d.periods {
		v.Rows = append([]hours.SnapshotRow(nil), v.Rows...)
		c.periods[k] = v
	}
	return c
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (m *Memory) read() *memoryData {
	return m.data
}

func (m *Memory) ListActiveContracts(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListActiveContracts(ctx, employee, weeks)
}

func (m *Memory) ListBookings(ctx context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListBookings(ctx, employee, weeks)
}

func (m *Memory) ListSlots(ctx context.Context) ([]hours.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListSlots(ctx)
}

func (m *Memory) ListExtraHours(ctx context.Context, employee generic.EmployeeID, period generic.Period, categories ...hours.Category) ([]hours.ExtraHours, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListExtraHours(ctx, employee, period, categories...)
}

func (m *Memory) ListSpecialDays(ctx context.Context, weeks generic.WeekRange) ([]hours.SpecialDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListSpecialDays(ctx, weeks)
}

func (m *Memory) GetCarryover(ctx context.Context, employee generic.EmployeeID, year int) (*hours.Carryover, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetCarryover(ctx, employee, year)
}

func (m *Memory) ListCustomExtraHoursLinks(ctx context.Context, employee generic.EmployeeID) ([]hours.CustomExtraHoursLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListCustomExtraHoursLinks(ctx, employee)
}

func (m *Memory) ListBillingPeriods(ctx context.Context) ([]hours.BillingPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListBillingPeriods(ctx)
}

func (m *Memory) GetBillingPeriod(ctx context.Context, id generic.BillingPeriodID) (*hours.BillingPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetBillingPeriod(ctx, id)
}

// Writes outside WithTx run as single-statement transactions.
func (m *Memory) write(ctx context.Context, fn func(d *memoryData) error) error {
	return m.WithTx(ctx, func(hours.Store) error { return fn(m.data) })
}

func (m *Memory) PutCarryover(ctx context.Context, c hours.Carryover) error {
	return m.write(ctx, func(d *memoryData) error { return d.PutCarryover(ctx, c) })
}

func (m *Memory) InvalidateCarryover(ctx context.Context, employee generic.EmployeeID, fromYear int) error {
	return m.write(ctx, func(d *memoryData) error { return d.InvalidateCarryover(ctx, employee, fromYear) })
}

func (m *Memory) InsertBillingPeriod(ctx context.Context, p hours.BillingPeriod) error {
	return m.write(ctx, func(d *memoryData) error { return d.InsertBillingPeriod(ctx, p) })
}

func (m *Memory) InsertBillingPeriodSnapshot(ctx context.Context, row hours.SnapshotRow) error {
	return m.write(ctx, func(d *memoryData) error { return d.InsertBillingPeriodSnapshot(ctx, row) })
}

func (m *Memory) DeleteBillingPeriod(ctx context.Context, id generic.BillingPeriodID) error {
	return m.write(ctx, func(d *memoryData) error { return d.DeleteBillingPeriod(ctx, id) })
}

func (m *Memory) SaveContract(ctx context.Context, c hours.Contract) error {
	return m.write(ctx, func(d *memoryData) error { return d.saveContract(c) })
}

func (m *Memory) DeleteContract(ctx context.Context, id generic.ContractID) error {
	return m.write(ctx, func(d *memoryData) error { return d.deleteContract(id) })
}

func (m *Memory) SaveSlot(ctx context.Context, s hours.Slot) error {
	return m.write(ctx, func(d *memoryData) error { return d.saveSlot(s) })
}

func (m *Memory) SaveBooking(ctx context.Context, b hours.Booking) error {
	return m.write(ctx, func(d *memoryData) error { return d.saveBooking(b) })
}

func (m *Memory) DeleteBooking(ctx context.Context, id generic.BookingID) error {
	return m.write(ctx, func(d *memoryData) error { return d.deleteBooking(id) })
}

func (m *Memory) SaveExtraHours(ctx context.Context, e hours.ExtraHours) error {
	return m.write(ctx, func(d *memoryData) error { return d.saveExtraHours(e) })
}

func (m *Memory) DeleteExtraHours(ctx context.Context, id generic.ExtraHoursID) error {
	return m.write(ctx, func(d *memoryData) error { return d.deleteExtraHours(id) })
}

func (m *Memory) SaveSpecialDay(ctx context.Context, s hours.SpecialDay) error {
	return m.write(ctx, func(d *memoryData) error { return d.saveSpecialDay(s) })
}

func (m *Memory) DeleteSpecialDay(ctx context.Context, id generic.SpecialDayID) error {
	return m.write(ctx, func(d *memoryData) error { return d.deleteSpecialDay(id) })
}

func (m *Memory) SaveCustomExtraHours(ctx context.Context, c hours.CustomExtraHours) error {
	return m.write(ctx, func(d *memoryData) error { return d.saveCustomExtraHours(c) })
}

func (m *Memory) SetCustomExtraHoursLink(ctx context.Context, employee generic.EmployeeID, id generic.CustomExtraHoursID, active bool) error {
	return m.write(ctx, func(d *memoryData) error { return d.setLink(employee, id, active) })
}

// =============================================================================
// READS (no locking, used directly inside WithTx)
// =============================================================================

func matches(filter, employee generic.EmployeeID) bool {
	return filter == generic.AllEmployees || filter == employee
}

func (d *memoryData) ListActiveContracts(_ context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Contract, error) {
	var out []hours.Contract
	for _, c := range d.contracts {
		if c.IsDeleted() || !matches(employee, c.EmployeeID) || !c.Weeks().Overlaps(weeks) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromWeekValue() != out[j].FromWeekValue() {
			return out[i].FromWeekValue().Before(out[j].FromWeekValue())
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *memoryData) ListBookings(_ context.Context, employee generic.EmployeeID, weeks generic.WeekRange) ([]hours.Booking, error) {
	var out []hours.Booking
	for _, b := range d.bookings {
		if b.IsDeleted() || !matches(employee, b.EmployeeID) || !weeks.Contains(b.WeekValue()) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *memoryData) ListSlots(_ context.Context) ([]hours.Slot, error) {
	out := make([]hours.Slot, 0, len(d.slots))
	for _, s := range d.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *memoryData) ListExtraHours(_ context.Context, employee generic.EmployeeID, period generic.Period, categories ...hours.Category) ([]hours.ExtraHours, error) {
	wanted := make(map[hours.Category]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}
	var out []hours.ExtraHours
	for _, e := range d.extra {
		if e.IsDeleted() || !matches(employee, e.EmployeeID) || !period.Contains(e.Day()) {
			continue
		}
		if len(wanted) > 0 && !wanted[e.Category] {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *memoryData) ListSpecialDays(_ context.Context, weeks generic.WeekRange) ([]hours.SpecialDay, error) {
	var out []hours.SpecialDay
	for _, s := range d.specialDays {
		if s.Deleted != nil || !weeks.Contains(generic.NewWeek(s.Year, s.Week)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	return out, nil
}

func (d *memoryData) GetCarryover(_ context.Context, employee generic.EmployeeID, year int) (*hours.Carryover, error) {
	c, ok := d.carryover[carryoverKey{EmployeeID: employee, Year: year}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (d *memoryData) ListCustomExtraHoursLinks(_ context.Context, employee generic.EmployeeID) ([]hours.CustomExtraHoursLink, error) {
	var out []hours.CustomExtraHoursLink
	for k, active := range d.links {
		if k.EmployeeID != employee {
			continue
		}
		t, ok := d.custom[k.TypeID]
		if !ok {
			continue
		}
		out = append(out, hours.CustomExtraHoursLink{EmployeeID: employee, Type: t, Active: active})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type.ID < out[j].Type.ID })
	return out, nil
}

func (d *memoryData) ListBillingPeriods(_ context.Context) ([]hours.BillingPeriod, error) {
	var out []hours.BillingPeriod
	for _, p := range d.periods {
		if p.Deleted != nil {
			continue
		}
		p.Rows = nil
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.Before(out[j].Period.Start) })
	return out, nil
}

func (d *memoryData) GetBillingPeriod(_ context.Context, id generic.BillingPeriodID) (*hours.BillingPeriod, error) {
	p, ok := d.periods[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	p.Rows = append([]hours.SnapshotRow(nil), p.Rows...)
	return &p, nil
}

// =============================================================================
// ENGINE WRITES
// =============================================================================

func (d *memoryData) PutCarryover(_ context.Context, c hours.Carryover) error {
	key := carryoverKey{EmployeeID: c.EmployeeID, Year: c.Year}
	if existing, ok := d.carryover[key]; ok && !existing.CreatedAt.IsZero() {
		c.CreatedAt = existing.CreatedAt
	}
	c.Deleted = nil
	d.carryover[key] = c
	return nil
}

func (d *memoryData) InvalidateCarryover(_ context.Context, employee generic.EmployeeID, fromYear int) error {
	now := d.now()
	for k, c := range d.carryover {
		if !matches(employee, k.EmployeeID) || k.Year < fromYear || c.IsDeleted() {
			continue
		}
		c.Deleted = &now
		d.carryover[k] = c
	}
	return nil
}

func (d *memoryData) InsertBillingPeriod(_ context.Context, p hours.BillingPeriod) error {
	if _, ok := d.periods[p.ID]; ok {
		return generic.ErrConflictAlreadyFinalized
	}
	for _, existing := range d.periods {
		if existing.Deleted == nil &&
			existing.Period.Start.Equal(p.Period.Start) &&
			existing.Period.End.Equal(p.Period.End) {
			return generic.ErrConflictAlreadyFinalized
		}
	}
	p.Rows = nil
	d.periods[p.ID] = p
	return nil
}

func (d *memoryData) InsertBillingPeriodSnapshot(_ context.Context, row hours.SnapshotRow) error {
	p, ok := d.periods[row.BillingPeriodID]
	if !ok {
		return generic.ErrNotFound
	}
	p.Rows = append(p.Rows, row)
	d.periods[p.ID] = p
	return nil
}

func (d *memoryData) DeleteBillingPeriod(_ context.Context, id generic.BillingPeriodID) error {
	p, ok := d.periods[id]
	if !ok || p.Deleted != nil {
		return generic.ErrNotFound
	}
	now := d.now()
	p.Deleted = &now
	d.periods[id] = p
	return nil
}

// =============================================================================
// SOURCE WRITES - each invalidates carryover from the affected year
// =============================================================================

func (d *memoryData) invalidate(employee generic.EmployeeID, years ...int) error {
	from := years[0]
	for _, y := range years[1:] {
		if y < from {
			from = y
		}
	}
	return d.InvalidateCarryover(context.Background(), employee, from)
}

func (d *memoryData) saveContract(c hours.Contract) error {
	var existing []hours.Contract
	for _, e := range d.contracts {
		if e.EmployeeID == c.EmployeeID {
			existing = append(existing, e)
		}
	}
	if err := hours.ValidateNoOverlap(existing, c); err != nil {
		return err
	}
	years := []int{hours.ContractInvalidationYear(c)}
	if old, ok := d.contracts[c.ID]; ok {
		years = append(years, hours.ContractInvalidationYear(old))
		if old.EmployeeID != c.EmployeeID {
			if err := d.invalidate(old.EmployeeID, hours.ContractInvalidationYear(old)); err != nil {
				return err
			}
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = old.CreatedAt
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = d.now()
	}
	d.contracts[c.ID] = c
	return d.invalidate(c.EmployeeID, years...)
}

func (d *memoryData) deleteContract(id generic.ContractID) error {
	c, ok := d.contracts[id]
	if !ok || c.IsDeleted() {
		return generic.ErrNotFound
	}
	now := d.now()
	c.Deleted = &now
	d.contracts[id] = c
	return d.invalidate(c.EmployeeID, hours.ContractInvalidationYear(c))
}

func (d *memoryData) saveSlot(s hours.Slot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	old, existed := d.slots[s.ID]
	d.slots[s.ID] = s
	if !existed {
		return nil
	}
	return d.invalidate(generic.AllEmployees, hours.SlotInvalidationYear(s), hours.SlotInvalidationYear(old))
}

func (d *memoryData) saveBooking(b hours.Booking) error {
	if _, ok := d.slots[b.SlotID]; !ok {
		return generic.ErrNotFound
	}
	if !b.WeekValue().Valid() {
		return &hours.InputError{Message: "booking week out of range"}
	}
	years := []int{hours.InvalidationYear(b.WeekValue())}
	if old, ok := d.bookings[b.ID]; ok {
		years = append(years, hours.InvalidationYear(old.WeekValue()))
		if old.EmployeeID != b.EmployeeID {
			if err := d.invalidate(old.EmployeeID, hours.InvalidationYear(old.WeekValue())); err != nil {
				return err
			}
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = d.now()
	}
	d.bookings[b.ID] = b
	return d.invalidate(b.EmployeeID, years...)
}

func (d *memoryData) deleteBooking(id generic.BookingID) error {
	b, ok := d.bookings[id]
	if !ok || b.IsDeleted() {
		return generic.ErrNotFound
	}
	now := d.now()
	b.Deleted = &now
	d.bookings[id] = b
	return d.invalidate(b.EmployeeID, hours.InvalidationYear(b.WeekValue()))
}

func (d *memoryData) saveExtraHours(e hours.ExtraHours) error {
	if err := e.Validate(); err != nil {
		return err
	}
	years := []int{e.Day().Year()}
	if old, ok := d.extra[e.ID]; ok {
		years = append(years, old.Day().Year())
		if old.EmployeeID != e.EmployeeID {
			if err := d.invalidate(old.EmployeeID, old.Day().Year()); err != nil {
				return err
			}
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = d.now()
	}
	d.extra[e.ID] = e
	return d.invalidate(e.EmployeeID, years...)
}

func (d *memoryData) deleteExtraHours(id generic.ExtraHoursID) error {
	e, ok := d.extra[id]
	if !ok || e.IsDeleted() {
		return generic.ErrNotFound
	}
	now := d.now()
	e.Deleted = &now
	d.extra[id] = e
	return d.invalidate(e.EmployeeID, e.Day().Year())
}

func (d *memoryData) saveSpecialDay(s hours.SpecialDay) error {
	if err := s.Validate(); err != nil {
		return err
	}
	years := []int{hours.InvalidationYear(generic.NewWeek(s.Year, s.Week))}
	if old, ok := d.specialDays[s.ID]; ok {
		years = append(years, hours.InvalidationYear(generic.NewWeek(old.Year, old.Week)))
	}
	d.specialDays[s.ID] = s
	return d.invalidate(generic.AllEmployees, years...)
}

func (d *memoryData) deleteSpecialDay(id generic.SpecialDayID) error {
	s, ok := d.specialDays[id]
	if !ok || s.Deleted != nil {
		return generic.ErrNotFound
	}
	now := d.now()
	s.Deleted = &now
	d.specialDays[id] = s
	return d.invalidate(generic.AllEmployees, hours.InvalidationYear(generic.NewWeek(s.Year, s.Week)))
}

func (d *memoryData) saveCustomExtraHours(c hours.CustomExtraHours) error {
	if c.Name == "" {
		return &hours.InputError{Message: "custom extra hours require a name"}
	}
	old, existed := d.custom[c.ID]
	if c.CreatedAt.IsZero() {
		c.CreatedAt = d.now()
	}
	d.custom[c.ID] = c
	if existed && (old.ModifiesBalance != c.ModifiesBalance || old.Name != c.Name) {
		return d.invalidate(generic.AllEmployees, 1)
	}
	return nil
}

func (d *memoryData) setLink(employee generic.EmployeeID, id generic.CustomExtraHoursID, active bool) error {
	if _, ok := d.custom[id]; !ok {
		return generic.ErrNotFound
	}
	d.links[linkKey{EmployeeID: employee, TypeID: id}] = active
	return nil
}

var _ hours.Repository = (*Memory)(nil)
