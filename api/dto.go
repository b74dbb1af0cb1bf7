/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine model in hours/ from the external API contract. Dates travel
  as YYYY-MM-DD, times of day as HH:MM and decimal figures as strings so
  no precision is lost on the way to the client.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Balance:
    ValueDTO, BalanceDTO, BalancesResponse, WeekDTO

  Carryover:
    CarryoverDTO

  Billing periods:
    BillingPeriodDTO, SnapshotRowDTO, CreateBillingPeriodRequest

  Source data:
    ContractRequest, SlotRequest, BookingRequest, ExtraHoursRequest,
    SpecialDayRequest, CustomExtraHoursRequest, LinkRequest

VALIDATION:
  Syntax (dates, weekday names, times) is checked while converting a
  request to the model. Semantic checks live in hours/model.go and the
  storage adapters.

SEE ALSO:
  - handlers.go: Uses these types
  - hours/model.go: Engine model
*/
package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
)

// =============================================================================
// BALANCE
// =============================================================================

// ValueDTO is one computed figure.
type ValueDTO struct {
	Type     string          `json:"type"`
	Unit     string          `json:"unit"`
	Delta    decimal.Decimal `json:"delta"`
	YTDFrom  decimal.Decimal `json:"ytd_from"`
	YTDTo    decimal.Decimal `json:"ytd_to"`
	FullYear decimal.Decimal `json:"full_year"`
}

// BalanceDTO is the result for one employee and period. Error is set
// instead of Values when the employee could not be computed in a batch.
type BalanceDTO struct {
	EmployeeID string     `json:"employee_id"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Values     []ValueDTO `json:"values,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// BalancesResponse wraps a batch computation.
type BalancesResponse struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Balances []BalanceDTO `json:"balances"`
}

// WeekDTO is one row of the weekly report.
type WeekDTO struct {
	Week          string          `json:"week"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Expected      decimal.Decimal `json:"expected"`
	Actual        decimal.Decimal `json:"actual"`
	ExtraWork     decimal.Decimal `json:"extra_work"`
	AbsenceCredit decimal.Decimal `json:"absence_credit"`
	Balance       decimal.Decimal `json:"balance"`
}

func toValueDTOs(values []hours.Value) []ValueDTO {
	out := make([]ValueDTO, 0, len(values))
	for _, v := range values {
		out = append(out, ValueDTO{
			Type:     v.Type.String(),
			Unit:     string(v.Unit),
			Delta:    v.Delta,
			YTDFrom:  v.YTDFrom,
			YTDTo:    v.YTDTo,
			FullYear: v.FullYear,
		})
	}
	return out
}

func toBalanceDTO(employee generic.EmployeeID, period generic.Period, values []hours.Value) BalanceDTO {
	return BalanceDTO{
		EmployeeID: string(employee),
		From:       period.Start.String(),
		To:         period.End.String(),
		Values:     toValueDTOs(values),
	}
}

func toBalancesResponse(period generic.Period, results map[generic.EmployeeID]hours.Result) BalancesResponse {
	resp := BalancesResponse{
		From:     period.Start.String(),
		To:       period.End.String(),
		Balances: make([]BalanceDTO, 0, len(results)),
	}
	for employee, res := range results {
		dto := toBalanceDTO(employee, period, res.Values)
		if res.Err != nil {
			dto.Values = nil
			dto.Error = res.Err.Error()
		}
		resp.Balances = append(resp.Balances, dto)
	}
	sort.Slice(resp.Balances, func(i, j int) bool {
		return resp.Balances[i].EmployeeID < resp.Balances[j].EmployeeID
	})
	return resp
}

func toWeekDTOs(weeks []hours.WeekSummary) []WeekDTO {
	out := make([]WeekDTO, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, WeekDTO{
			Week:          w.Week.String(),
			From:          w.Period.Start.String(),
			To:            w.Period.End.String(),
			Expected:      w.Expected,
			Actual:        w.Actual,
			ExtraWork:     w.ExtraWork,
			AbsenceCredit: w.AbsenceCredit,
			Balance:       w.Balance,
		})
	}
	return out
}

// =============================================================================
// CARRYOVER
// =============================================================================

// CarryoverDTO is the ending balance of a year.
type CarryoverDTO struct {
	EmployeeID   string          `json:"employee_id"`
	Year         int             `json:"year"`
	Hours        decimal.Decimal `json:"hours"`
	VacationDays decimal.Decimal `json:"vacation_days"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toCarryoverDTO(c hours.Carryover) CarryoverDTO {
	return CarryoverDTO{
		EmployeeID:   string(c.EmployeeID),
		Year:         c.Year,
		Hours:        c.Hours,
		VacationDays: c.VacationDays,
		UpdatedAt:    c.UpdatedAt,
	}
}

// =============================================================================
// BILLING PERIODS
// =============================================================================

// CreateBillingPeriodRequest finalizes [From, To]. Without From the period
// starts the day after the latest finalized one.
type CreateBillingPeriodRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to" validate:"required"`
}

type BillingPeriodDTO struct {
	ID        string           `json:"id"`
	From      string           `json:"from"`
	To        string           `json:"to"`
	CreatedAt time.Time        `json:"created_at"`
	CreatedBy string           `json:"created_by"`
	Rows      []SnapshotRowDTO `json:"rows,omitempty"`
}

type SnapshotRowDTO struct {
	EmployeeID string          `json:"employee_id"`
	ValueType  string          `json:"value_type"`
	Delta      decimal.Decimal `json:"delta"`
	YTDFrom    decimal.Decimal `json:"ytd_from"`
	YTDTo      decimal.Decimal `json:"ytd_to"`
	FullYear   decimal.Decimal `json:"full_year"`
}

func toBillingPeriodDTO(bp hours.BillingPeriod) BillingPeriodDTO {
	dto := BillingPeriodDTO{
		ID:        string(bp.ID),
		From:      bp.Period.Start.String(),
		To:        bp.Period.End.String(),
		CreatedAt: bp.CreatedAt,
		CreatedBy: bp.CreatedBy,
	}
	for _, row := range bp.Rows {
		dto.Rows = append(dto.Rows, SnapshotRowDTO{
			EmployeeID: string(row.EmployeeID),
			ValueType:  row.ValueType.String(),
			Delta:      row.Delta,
			YTDFrom:    row.YTDFrom,
			YTDTo:      row.YTDTo,
			FullYear:   row.FullYear,
		})
	}
	return dto
}

// =============================================================================
// SOURCE DATA
// =============================================================================

// CreatedResponse returns the ID of a stored record.
type CreatedResponse struct {
	ID string `json:"id"`
}

// ContractRequest describes a work contract. Days lists the active weekday
// names; FromDay and ToDay bound the first and last week.
type ContractRequest struct {
	ID              string          `json:"id,omitempty"`
	EmployeeID      string          `json:"employee_id" validate:"required"`
	FromYear        int             `json:"from_year" validate:"min=1"`
	FromWeek        int             `json:"from_week" validate:"min=1,max=53"`
	FromDay         string          `json:"from_day,omitempty" validate:"omitempty,weekday"`
	ToYear          int             `json:"to_year" validate:"min=1"`
	ToWeek          int             `json:"to_week" validate:"min=1,max=53"`
	ToDay           string          `json:"to_day,omitempty" validate:"omitempty,weekday"`
	ExpectedHours   decimal.Decimal `json:"expected_hours"`
	WorkdaysPerWeek int             `json:"workdays_per_week" validate:"min=0,max=7"`
	Days            []string        `json:"days" validate:"dive,weekday"`
	VacationDays    int             `json:"vacation_days" validate:"min=0"`
}

func (r ContractRequest) toContract() (hours.Contract, error) {
	c := hours.Contract{
		ID:              generic.ContractID(orNewID(r.ID)),
		EmployeeID:      generic.EmployeeID(r.EmployeeID),
		FromYear:        r.FromYear,
		FromWeek:        r.FromWeek,
		ToYear:          r.ToYear,
		ToWeek:          r.ToWeek,
		ExpectedHours:   r.ExpectedHours,
		WorkdaysPerWeek: r.WorkdaysPerWeek,
		VacationDays:    r.VacationDays,
	}
	var err error
	if c.FromDay, err = optionalDay(r.FromDay); err != nil {
		return c, err
	}
	if c.ToDay, err = optionalDay(r.ToDay); err != nil {
		return c, err
	}
	for _, name := range r.Days {
		d, err := generic.ParseDayOfWeek(name)
		if err != nil {
			return c, err
		}
		switch d {
		case generic.Monday:
			c.Monday = true
		case generic.Tuesday:
			c.Tuesday = true
		case generic.Wednesday:
			c.Wednesday = true
		case generic.Thursday:
			c.Thursday = true
		case generic.Friday:
			c.Friday = true
		case generic.Saturday:
			c.Saturday = true
		case generic.Sunday:
			c.Sunday = true
		}
	}
	return c, nil
}

// SlotRequest describes a canonical weekday time window.
type SlotRequest struct {
	ID        string `json:"id,omitempty"`
	DayOfWeek string `json:"day_of_week" validate:"required,weekday"`
	From      string `json:"from" validate:"required,hhmm"`
	To        string `json:"to" validate:"required,hhmm"`
	ValidFrom string `json:"valid_from,omitempty"`
	ValidTo   string `json:"valid_to,omitempty"`
}

func (r SlotRequest) toSlot() (hours.Slot, error) {
	s := hours.Slot{ID: generic.SlotID(orNewID(r.ID))}
	var err error
	if s.DayOfWeek, err = generic.ParseDayOfWeek(r.DayOfWeek); err != nil {
		return s, err
	}
	if s.From, err = generic.ParseTimeOfDay(r.From); err != nil {
		return s, err
	}
	if s.To, err = generic.ParseTimeOfDay(r.To); err != nil {
		return s, err
	}
	if r.ValidFrom != "" {
		if s.ValidFrom, err = generic.ParseDate(r.ValidFrom); err != nil {
			return s, err
		}
	}
	if r.ValidTo != "" {
		to, err := generic.ParseDate(r.ValidTo)
		if err != nil {
			return s, err
		}
		s.ValidTo = &to
	}
	return s, nil
}

type BookingRequest struct {
	ID         string `json:"id,omitempty"`
	EmployeeID string `json:"employee_id" validate:"required"`
	SlotID     string `json:"slot_id" validate:"required"`
	Year       int    `json:"year" validate:"min=1"`
	Week       int    `json:"week" validate:"min=1,max=53"`
}

func (r BookingRequest) toBooking() hours.Booking {
	return hours.Booking{
		ID:         generic.BookingID(orNewID(r.ID)),
		EmployeeID: generic.EmployeeID(r.EmployeeID),
		SlotID:     generic.SlotID(r.SlotID),
		Year:       r.Year,
		Week:       r.Week,
	}
}

// ExtraHoursRequest records a signed adjustment at a point in time.
type ExtraHoursRequest struct {
	ID           string          `json:"id,omitempty"`
	EmployeeID   string          `json:"employee_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Category     string          `json:"category" validate:"required"`
	CustomTypeID string          `json:"custom_type_id,omitempty"`
	Description  string          `json:"description,omitempty"`
	At           time.Time       `json:"at"`
}

func (r ExtraHoursRequest) toExtraHours() (hours.ExtraHours, error) {
	category, err := hours.ParseCategory(r.Category)
	if err != nil {
		return hours.ExtraHours{}, err
	}
	return hours.ExtraHours{
		ID:           generic.ExtraHoursID(orNewID(r.ID)),
		EmployeeID:   generic.EmployeeID(r.EmployeeID),
		Amount:       r.Amount,
		Category:     category,
		CustomTypeID: generic.CustomExtraHoursID(r.CustomTypeID),
		Description:  r.Description,
		At:           r.At,
	}, nil
}

// SpecialDayRequest overrides one date. TimeOfDay is the end of a short day.
type SpecialDayRequest struct {
	ID        string `json:"id,omitempty"`
	Year      int    `json:"year" validate:"min=1"`
	Week      int    `json:"week" validate:"min=1,max=53"`
	DayOfWeek string `json:"day_of_week" validate:"required,weekday"`
	Type      string `json:"type" validate:"required"`
	TimeOfDay string `json:"time_of_day,omitempty" validate:"hhmm"`
}

func (r SpecialDayRequest) toSpecialDay() (hours.SpecialDay, error) {
	s := hours.SpecialDay{
		ID:   generic.SpecialDayID(orNewID(r.ID)),
		Year: r.Year,
		Week: r.Week,
		Type: hours.SpecialDayType(r.Type),
	}
	var err error
	if s.DayOfWeek, err = generic.ParseDayOfWeek(r.DayOfWeek); err != nil {
		return s, err
	}
	if r.TimeOfDay != "" {
		t, err := generic.ParseTimeOfDay(r.TimeOfDay)
		if err != nil {
			return s, err
		}
		s.TimeOfDay = &t
	}
	return s, nil
}

type CustomExtraHoursRequest struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description,omitempty"`
	ModifiesBalance bool   `json:"modifies_balance"`
}

func (r CustomExtraHoursRequest) toCustomExtraHours() hours.CustomExtraHours {
	return hours.CustomExtraHours{
		ID:              generic.CustomExtraHoursID(orNewID(r.ID)),
		Name:            r.Name,
		Description:     r.Description,
		ModifiesBalance: r.ModifiesBalance,
	}
}

// LinkRequest ties a custom type to an employee. Active defaults to true.
type LinkRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Active     *bool  `json:"active,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func optionalDay(name string) (generic.DayOfWeek, error) {
	if name == "" {
		return 0, nil
	}
	d, err := generic.ParseDayOfWeek(name)
	if err != nil {
		return 0, fmt.Errorf("contract bound: %w", err)
	}
	return d, nil
}
