/*
errors.go - Centralized error types for the hours engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine, the stores and the HTTP adapter all classify failures through
  the helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Data integrity - overlapping contracts, stale carryover
  2. Conflicts - a billing period finalized twice
  3. Validation - malformed periods, unknown value types
  4. Lookup - missing rows

ABSORBED CONDITIONS:
  ErrNoApplicableContract is never returned from the public engine API.
  A week without a contract simply expects zero hours. The sentinel exists
  so the resolver can report the condition to callers that care.

USAGE:
  if errors.Is(err, generic.ErrConflictAlreadyFinalized) {
      // the period already has a snapshot
  }

SEE ALSO:
  - hours/contract.go: Raises AmbiguousContractOverlapError
  - hours/carryover.go: Raises CarryoverStaleError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoApplicableContract means no contract covers the requested week.
	ErrNoApplicableContract = errors.New("no applicable contract")

	// ErrAmbiguousContractOverlap means more than one contract covers a week.
	ErrAmbiguousContractOverlap = errors.New("ambiguous contract overlap")

	// ErrContractOverlap is returned when saving a contract whose window
	// overlaps another live contract of the same employee.
	ErrContractOverlap = errors.New("contract overlaps an existing contract")

	// ErrCarryoverStale means a carryover row was invalidated and has not been
	// recomputed yet.
	ErrCarryoverStale = errors.New("carryover is stale")

	// ErrConflictAlreadyFinalized is returned when a billing period with the
	// same bounds already exists.
	ErrConflictAlreadyFinalized = errors.New("billing period already finalized")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidValueType is returned for unknown value type names.
	ErrInvalidValueType = errors.New("invalid value type")

	// ErrInvalidInput is returned for malformed source records.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a referenced row doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AmbiguousContractOverlapError lists the contracts that all claim a week.
type AmbiguousContractOverlapError struct {
	EmployeeID EmployeeID
	Week       Week
	Contracts  []ContractID
}

func (e *AmbiguousContractOverlapError) Error() string {
	ids := make([]string, len(e.Contracts))
	for i, id := range e.Contracts {
		ids[i] = string(id)
	}
	return fmt.Sprintf("ambiguous contract overlap for %s in %s: %s",
		e.EmployeeID, e.Week, strings.Join(ids, ", "))
}

func (e *AmbiguousContractOverlapError) Unwrap() error {
	return ErrAmbiguousContractOverlap
}

// ContractOverlapError is the write-time variant of the overlap condition.
type ContractOverlapError struct {
	EmployeeID EmployeeID
	Contract   ContractID
	Existing   ContractID
}

func (e *ContractOverlapError) Error() string {
	return fmt.Sprintf("contract %s for %s overlaps contract %s", e.Contract, e.EmployeeID, e.Existing)
}

func (e *ContractOverlapError) Unwrap() error {
	return ErrContractOverlap
}

// CarryoverStaleError identifies the invalidated carryover key.
type CarryoverStaleError struct {
	EmployeeID EmployeeID
	Year       int
}

func (e *CarryoverStaleError) Error() string {
	return fmt.Sprintf("carryover for %s in %d is stale", e.EmployeeID, e.Year)
}

func (e *CarryoverStaleError) Unwrap() error {
	return ErrCarryoverStale
}

// BatchError collects per-employee failures of a batch operation.
type BatchError struct {
	Errors map[EmployeeID]error
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Errors))
	for id := range e.Errors {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id + ": " + e.Errors[EmployeeID(id)].Error()
	}
	return fmt.Sprintf("%d employee(s) failed: %s", len(ids), strings.Join(parts, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		errs = append(errs, err)
	}
	return errs
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidValueType) ||
		errors.Is(err, ErrInvalidInput)
}

// IsConflict returns true if the request collides with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflictAlreadyFinalized) ||
		errors.Is(err, ErrContractOverlap)
}

// IsDataIntegrity returns true for conditions that need a data fix, not a retry.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrAmbiguousContractOverlap) ||
		errors.Is(err, ErrCarryoverStale)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
