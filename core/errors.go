/*
errors.go - Centralized error types for the engine

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  Transports (API, bot) translate these into user-facing messages; the core
  never formats user-facing text.

ERROR CATEGORIES:
  1. Lifecycle errors - Shift/entry state machine violations
  2. Settings errors  - Unit tree and schedule configuration problems
  3. Store errors     - Missing rows, constraint mapping

USAGE:
  Callers classify with errors.Is or the helpers below:

    if errors.Is(err, core.ErrShiftConflict) {
        // employee already has an active shift
    }

SEE ALSO:
  - lifecycle/: Raises the lifecycle errors
  - store/sqlite: Maps constraint violations onto these types
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrShiftConflict is returned when opening a shift for an employee who
	// already has an active one. There is no queuing; the caller decides.
	ErrShiftConflict = errors.New("employee already has an active shift")

	// ErrNotActive is returned when an operation requires an active shift
	// or an open entry and the target is already terminal.
	ErrNotActive = errors.New("not active")

	// ErrContractInactive is returned for operations against a draft or
	// terminated contract.
	ErrContractInactive = errors.New("contract not active")

	// ErrEvidenceRequired is returned when completing a task that demands
	// media evidence without supplying a reference.
	ErrEvidenceRequired = errors.New("evidence required")

	// ErrCycleDetected is returned when the unit tree walk exceeds the
	// depth cap or a move would introduce a cycle.
	ErrCycleDetected = errors.New("unit tree cycle detected")

	// ErrAmbiguousSchedule is returned when two payment schedules claim the
	// same object on the same run.
	ErrAmbiguousSchedule = errors.New("ambiguous schedule resolution")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed requests and configuration.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports the shift that blocks opening a new one.
type ConflictError struct {
	EmployeeID    EmployeeID
	ActiveShiftID ShiftID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("employee %s already has active shift %s", e.EmployeeID, e.ActiveShiftID)
}

func (e *ConflictError) Unwrap() error { return ErrShiftConflict }

// NotActiveError reports an operation against a terminal shift or entry.
type NotActiveError struct {
	Kind   string // "shift", "entry", "task", "schedule"
	ID     string
	Status string
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("%s %s is %s, not active", e.Kind, e.ID, e.Status)
}

func (e *NotActiveError) Unwrap() error { return ErrNotActive }

// ContractInactiveError reports an operation against a non-active contract.
type ContractInactiveError struct {
	ContractID ContractID
	Status     ContractStatus
}

func (e *ContractInactiveError) Error() string {
	return fmt.Sprintf("contract %s is %s", e.ContractID, e.Status)
}

func (e *ContractInactiveError) Unwrap() error { return ErrContractInactive }

// EvidenceRequiredError reports a completion attempt without evidence.
type EvidenceRequiredError struct {
	TaskID TaskID
	Text   string
}

func (e *EvidenceRequiredError) Error() string {
	return fmt.Sprintf("task %s (%q) requires media evidence to complete", e.TaskID, e.Text)
}

func (e *EvidenceRequiredError) Unwrap() error { return ErrEvidenceRequired }

// CycleDetectedError reports a unit ancestry that exceeded the walk cap.
// Write-time validation should make this unreachable; resolution still
// refuses to loop forever if the invariant is ever broken.
type CycleDetectedError struct {
	UnitID UnitID
	Depth  int
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("unit ancestry from %s exceeded depth %d", e.UnitID, e.Depth)
}

func (e *CycleDetectedError) Unwrap() error { return ErrCycleDetected }

// AmbiguousScheduleError reports two schedules claiming one object in a run.
type AmbiguousScheduleError struct {
	ObjectID ObjectID
	First    ScheduleID
	Second   ScheduleID
}

func (e *AmbiguousScheduleError) Error() string {
	return fmt.Sprintf("object %s claimed by schedules %s and %s", e.ObjectID, e.First, e.Second)
}

func (e *AmbiguousScheduleError) Unwrap() error { return ErrAmbiguousSchedule }

// NotFoundError reports a missing entity by kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports malformed input with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// RUN ERRORS - Per-unit failures collected by batch jobs
// =============================================================================

// RunError records one failed unit of work inside a batch run. Jobs append
// these and continue; a run never aborts the remaining units.
type RunError struct {
	Unit   string `json:"unit"` // e.g. "shift:abc", "schedule:xyz"
	Reason string `json:"reason"`
}

func NewRunError(unit string, err error) RunError {
	return RunError{Unit: unit, Reason: err.Error()}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input or
// state the caller can observe, as opposed to a server-side failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrShiftConflict) ||
		errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrContractInactive) ||
		errors.Is(err, ErrEvidenceRequired) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true for the already-active-shift rejection.
func IsConflict(err error) bool { return errors.Is(err, ErrShiftConflict) }
