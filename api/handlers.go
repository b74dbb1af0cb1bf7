/*
handlers.go - HTTP API handlers for the hours engine

PURPOSE:
  Exposes the hours engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to hours.Engine for computations and
  to the repository for source data changes.

ENDPOINTS:
  Balances:
    GET    /api/employees/{id}/balance         Values for one employee
    GET    /api/balances                       Values for every employee
    GET    /api/employees/{id}/weeks           Weekly report
    GET    /api/employees/{id}/carryover/{year} Ending balance of a year

  Billing periods:
    POST   /api/billing-periods                Finalize a period
    GET    /api/billing-periods                List live periods
    GET    /api/billing-periods/{id}           Period with its rows
    DELETE /api/billing-periods/{id}           Clear a period

  Source data:
    POST   /api/contracts, DELETE /api/contracts/{id}
    POST   /api/slots
    POST   /api/bookings, DELETE /api/bookings/{id}
    POST   /api/extra-hours, DELETE /api/extra-hours/{id}
    POST   /api/special-days, DELETE /api/special-days/{id}
    POST   /api/custom-extra-hours
    POST   /api/custom-extra-hours/{id}/links

  Admin:
    POST   /api/admin/carryover/refresh?year=  Recompute one year for all

QUERY PARAMETERS:
  from, to: inclusive dates, YYYY-MM-DD
  types:    comma separated value types; empty selects the standard set

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input, invalid period, unknown value type
  - 404: Resource not found
  - 409: Conflict (already finalized, overlapping contract)
  - 422: Data needs a fix (ambiguous contracts, stale carryover)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *hours.Engine
	Sources hours.SourceWriter
	Logger  *slog.Logger
}

// NewHandler creates a new handler. sources is usually the same repository
// the engine was built on.
func NewHandler(engine *hours.Engine, sources hours.SourceWriter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Engine: engine, Sources: sources, Logger: logger}
}

// =============================================================================
// BALANCE ENDPOINTS
// =============================================================================

// GetBalance handles GET /api/employees/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employee := generic.EmployeeID(chi.URLParam(r, "id"))

	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period", err)
		return
	}
	types, err := typesFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid value types", err)
		return
	}

	values, err := h.Engine.ComputeBalance(r.Context(), employee, period, types)
	if err != nil {
		h.fail(w, r, "failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(employee, period, values))
}

// ListBalances handles GET /api/balances. Employees that fail are reported
// inline and never hide the others.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period", err)
		return
	}
	types, err := typesFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid value types", err)
		return
	}

	results, err := h.Engine.ComputeBalanceAll(r.Context(), period, types)
	if err != nil {
		h.fail(w, r, "failed to compute balances", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalancesResponse(period, results))
}

// GetWeeks handles GET /api/employees/{id}/weeks
func (h *Handler) GetWeeks(w http.ResponseWriter, r *http.Request) {
	employee := generic.EmployeeID(chi.URLParam(r, "id"))

	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period", err)
		return
	}

	weeks, err := h.Engine.WeeklyReport(r.Context(), employee, period)
	if err != nil {
		h.fail(w, r, "failed to build weekly report", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTOs(weeks))
}

// GetCarryover handles GET /api/employees/{id}/carryover/{year}. With
// ?stored=true the stored row is returned without recomputation.
func (h *Handler) GetCarryover(w http.ResponseWriter, r *http.Request) {
	employee := generic.EmployeeID(chi.URLParam(r, "id"))
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}

	if r.URL.Query().Get("stored") == "true" {
		c, err := h.Engine.StoredCarryover(r.Context(), employee, year)
		if err != nil {
			h.fail(w, r, "failed to read carryover", err)
			return
		}
		if c == nil {
			writeError(w, http.StatusNotFound, "carryover not computed", nil)
			return
		}
		writeJSON(w, http.StatusOK, toCarryoverDTO(*c))
		return
	}

	c, err := h.Engine.Carryover(r.Context(), employee, year)
	if err != nil {
		h.fail(w, r, "failed to compute carryover", err)
		return
	}
	writeJSON(w, http.StatusOK, toCarryoverDTO(c))
}

// RefreshCarryover handles POST /api/admin/carryover/refresh
func (h *Handler) RefreshCarryover(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year is required", err)
		return
	}

	refreshed, err := h.Engine.RefreshCarryovers(r.Context(), year)
	resp := map[string]any{"year": year, "refreshed": refreshed}
	var batch *generic.BatchError
	if errors.As(err, &batch) {
		failures := make(map[string]string, len(batch.Errors))
		for employee, e := range batch.Errors {
			failures[string(employee)] = e.Error()
		}
		resp["failures"] = failures
	} else if err != nil {
		h.fail(w, r, "failed to refresh carryover", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// BILLING PERIOD ENDPOINTS
// =============================================================================

// CreateBillingPeriod handles POST /api/billing-periods
func (h *Handler) CreateBillingPeriod(w http.ResponseWriter, r *http.Request) {
	var req CreateBillingPeriodRequest
	if !decode(w, r, &req) {
		return
	}
	end, err := generic.ParseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date", err)
		return
	}

	var bp *hours.BillingPeriod
	if req.From == "" {
		bp, err = h.Engine.FinalizeNextBillingPeriod(r.Context(), end)
	} else {
		start, perr := generic.ParseDate(req.From)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid from date", perr)
			return
		}
		bp, err = h.Engine.FinalizeBillingPeriod(r.Context(), generic.NewPeriod(start, end))
	}
	if err != nil {
		h.fail(w, r, "failed to finalize billing period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBillingPeriodDTO(*bp))
}

// ListBillingPeriods handles GET /api/billing-periods
func (h *Handler) ListBillingPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Engine.BillingPeriods(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list billing periods", err)
		return
	}
	out := make([]BillingPeriodDTO, 0, len(periods))
	for _, bp := range periods {
		out = append(out, toBillingPeriodDTO(bp))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetBillingPeriod handles GET /api/billing-periods/{id}
func (h *Handler) GetBillingPeriod(w http.ResponseWriter, r *http.Request) {
	id := generic.BillingPeriodID(chi.URLParam(r, "id"))
	bp, err := h.Engine.BillingPeriod(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to get billing period", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingPeriodDTO(*bp))
}

// DeleteBillingPeriod handles DELETE /api/billing-periods/{id}
func (h *Handler) DeleteBillingPeriod(w http.ResponseWriter, r *http.Request) {
	id := generic.BillingPeriodID(chi.URLParam(r, "id"))
	if err := h.Engine.ClearBillingPeriod(r.Context(), id); err != nil {
		h.fail(w, r, "failed to clear billing period", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SOURCE DATA ENDPOINTS
// =============================================================================

// CreateContract handles POST /api/contracts
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req ContractRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := req.toContract()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract", err)
		return
	}
	if err := h.Sources.SaveContract(r.Context(), c); err != nil {
		h.fail(w, r, "failed to save contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(c.ID)})
}

// DeleteContract handles DELETE /api/contracts/{id}
func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	id := generic.ContractID(chi.URLParam(r, "id"))
	if err := h.Sources.DeleteContract(r.Context(), id); err != nil {
		h.fail(w, r, "failed to delete contract", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSlot handles POST /api/slots
func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var req SlotRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := req.toSlot()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot", err)
		return
	}
	if err := h.Sources.SaveSlot(r.Context(), s); err != nil {
		h.fail(w, r, "failed to save slot", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(s.ID)})
}

// CreateBooking handles POST /api/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if !decode(w, r, &req) {
		return
	}
	b := req.toBooking()
	if err := h.Sources.SaveBooking(r.Context(), b); err != nil {
		h.fail(w, r, "failed to save booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(b.ID)})
}

// DeleteBooking handles DELETE /api/bookings/{id}
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id := generic.BookingID(chi.URLParam(r, "id"))
	if err := h.Sources.DeleteBooking(r.Context(), id); err != nil {
		h.fail(w, r, "failed to delete booking", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateExtraHours handles POST /api/extra-hours
func (h *Handler) CreateExtraHours(w http.ResponseWriter, r *http.Request) {
	var req ExtraHoursRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := req.toExtraHours()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid extra hours", err)
		return
	}
	if err := h.Sources.SaveExtraHours(r.Context(), e); err != nil {
		h.fail(w, r, "failed to save extra hours", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(e.ID)})
}

// DeleteExtraHours handles DELETE /api/extra-hours/{id}
func (h *Handler) DeleteExtraHours(w http.ResponseWriter, r *http.Request) {
	id := generic.ExtraHoursID(chi.URLParam(r, "id"))
	if err := h.Sources.DeleteExtraHours(r.Context(), id); err != nil {
		h.fail(w, r, "failed to delete extra hours", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSpecialDay handles POST /api/special-days
func (h *Handler) CreateSpecialDay(w http.ResponseWriter, r *http.Request) {
	var req SpecialDayRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := req.toSpecialDay()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid special day", err)
		return
	}
	if err := h.Sources.SaveSpecialDay(r.Context(), s); err != nil {
		h.fail(w, r, "failed to save special day", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(s.ID)})
}

// DeleteSpecialDay handles DELETE /api/special-days/{id}
func (h *Handler) DeleteSpecialDay(w http.ResponseWriter, r *http.Request) {
	id := generic.SpecialDayID(chi.URLParam(r, "id"))
	if err := h.Sources.DeleteSpecialDay(r.Context(), id); err != nil {
		h.fail(w, r, "failed to delete special day", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCustomExtraHours handles POST /api/custom-extra-hours
func (h *Handler) CreateCustomExtraHours(w http.ResponseWriter, r *http.Request) {
	var req CustomExtraHoursRequest
	if !decode(w, r, &req) {
		return
	}
	c := req.toCustomExtraHours()
	if err := h.Sources.SaveCustomExtraHours(r.Context(), c); err != nil {
		h.fail(w, r, "failed to save custom extra hours", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(c.ID)})
}

// LinkCustomExtraHours handles POST /api/custom-extra-hours/{id}/links
func (h *Handler) LinkCustomExtraHours(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomExtraHoursID(chi.URLParam(r, "id"))
	var req LinkRequest
	if !decode(w, r, &req) {
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}
	active := req.Active == nil || *req.Active
	if err := h.Sources.SetCustomExtraHoursLink(r.Context(), generic.EmployeeID(req.EmployeeID), id, active); err != nil {
		h.fail(w, r, "failed to link custom extra hours", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func periodFromQuery(r *http.Request) (generic.Period, error) {
	q := r.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		return generic.Period{}, fmt.Errorf("from and to are required: %w", generic.ErrInvalidPeriod)
	}
	start, err := generic.ParseDate(q.Get("from"))
	if err != nil {
		return generic.Period{}, err
	}
	end, err := generic.ParseDate(q.Get("to"))
	if err != nil {
		return generic.Period{}, err
	}
	return generic.NewPeriod(start, end), nil
}

func typesFromQuery(r *http.Request) ([]hours.ValueType, error) {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil, nil
	}
	return hours.ParseValueTypes(strings.Split(raw, ","))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return false
	}
	return true
}

// statusFor maps the engine error taxonomy to HTTP.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case generic.IsDataIntegrity(err):
		return http.StatusUnprocessableEntity
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), message,
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
