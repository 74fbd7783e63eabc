/*
store.go - Persistence interfaces for the engine

PURPOSE:
  Defines the interface between domain logic and the database. Mutating
  operations are expressed as conditional or keyed writes so that
  concurrent or re-triggered job runs converge instead of double-applying
  money.

KEY INTERFACES:
  Store:   Composition of the per-entity interfaces below
  TxStore: Store plus WithTx for atomic multi-write operations

CONDITIONAL WRITES:
  Status transitions take the allowed "from" states and report
  NotActiveError when the row is no longer in one of them. Opening a shift
  enforces the one-active-shift-per-employee invariant inside the store
  (unique index / locked check), returning ConflictError - application
  code alone is not trusted with it.

UPSERTS:
  Automatic adjustments key on (shift, kind, task); payroll entries key on
  (employee, period_start, period_end). Upserts report whether they
  created, updated, or left the row unchanged so batch jobs can count
  precisely.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - core/store:   In-memory, for tests and as reference semantics

SEE ALSO:
  - lifecycle/: Drives the conditional transitions
  - payroll/:   Drives the upserts
*/
package core

import (
	"context"
	"time"
)

// =============================================================================
// PER-ENTITY INTERFACES
// =============================================================================

type UnitStore interface {
	CreateUnit(ctx context.Context, unit OrganizationalUnit) error
	GetUnit(ctx context.Context, id UnitID) (OrganizationalUnit, error)
	// UpdateUnit persists edits including moves. Callers validate the
	// ancestry (ValidateUnitMove) in the same transaction.
	UpdateUnit(ctx context.Context, unit OrganizationalUnit) error
	ListUnits(ctx context.Context, owner OwnerID) ([]OrganizationalUnit, error)
}

type ObjectStore interface {
	CreateObject(ctx context.Context, object WorkObject) error
	GetObject(ctx context.Context, id ObjectID) (WorkObject, error)
	UpdateObject(ctx context.Context, object WorkObject) error
	ListObjects(ctx context.Context, owner OwnerID) ([]WorkObject, error)
}

type SystemStore interface {
	CreateSystem(ctx context.Context, system PaymentSystem) error
	GetSystem(ctx context.Context, id SystemID) (PaymentSystem, error)
	ListSystems(ctx context.Context, owner OwnerID) ([]PaymentSystem, error)
}

type ScheduleStore interface {
	CreateSchedule(ctx context.Context, schedule PaymentSchedule) error
	GetSchedule(ctx context.Context, id ScheduleID) (PaymentSchedule, error)
	// UpdateSchedule persists instance advancement after a payroll run.
	UpdateSchedule(ctx context.Context, schedule PaymentSchedule) error
	ListActiveSchedules(ctx context.Context) ([]PaymentSchedule, error)
}

type ContractStore interface {
	CreateContract(ctx context.Context, contract Contract) error
	GetContract(ctx context.Context, id ContractID) (Contract, error)
	UpdateContract(ctx context.Context, contract Contract) error
	// FindContract returns the employee's contract with the owner, or
	// NotFoundError.
	FindContract(ctx context.Context, employee EmployeeID, owner OwnerID) (Contract, error)
}

type EntryStore interface {
	CreateEntry(ctx context.Context, entry ScheduleEntry) error
	GetEntry(ctx context.Context, id EntryID) (ScheduleEntry, error)
	// TransitionEntry moves the entry to the target status only when its
	// current status is one of "from"; otherwise NotActiveError.
	TransitionEntry(ctx context.Context, id EntryID, from []EntryStatus, to EntryStatus) error
	ListEntriesByEmployee(ctx context.Context, employee EmployeeID) ([]ScheduleEntry, error)
}

type ShiftStore interface {
	// OpenShift inserts an active shift. Returns ConflictError when the
	// employee already has an active shift anywhere.
	OpenShift(ctx context.Context, shift Shift) error
	GetShift(ctx context.Context, id ShiftID) (Shift, error)
	// FindActiveShift returns the employee's active shift, or nil.
	FindActiveShift(ctx context.Context, employee EmployeeID) (*Shift, error)
	// CloseShift writes end/hours/pay fields and flips active->completed.
	// NotActiveError when the shift is not active.
	CloseShift(ctx context.Context, shift Shift) error
	// CancelShift flips active->cancelled. NotActiveError otherwise.
	CancelShift(ctx context.Context, id ShiftID, at time.Time) error
	ListActiveShifts(ctx context.Context) ([]Shift, error)
	ListActiveShiftsByObject(ctx context.Context, object ObjectID) ([]Shift, error)
	// ListShiftsByEntry returns all shifts ever attached to the entry.
	ListShiftsByEntry(ctx context.Context, entry EntryID) ([]Shift, error)
	// ListCompletedShifts returns completed shifts with EndAt in [from, to).
	ListCompletedShifts(ctx context.Context, from, to time.Time) ([]Shift, error)
	// ListCompletedShiftsByObject returns completed shifts at the object
	// with StartAt in [from, to).
	ListCompletedShiftsByObject(ctx context.Context, object ObjectID, from, to time.Time) ([]Shift, error)
	ListShiftsByEmployee(ctx context.Context, employee EmployeeID, status *ShiftStatus) ([]Shift, error)
}

type TaskStore interface {
	CreateTasks(ctx context.Context, tasks []TaskAssignment) error
	GetTask(ctx context.Context, id TaskID) (TaskAssignment, error)
	// CompleteTask marks completion with a timestamp and optional
	// evidence reference. Completing a completed task refreshes both.
	CompleteTask(ctx context.Context, id TaskID, at time.Time, evidenceRef *string) error
	ListTasksByShift(ctx context.Context, shift ShiftID) ([]TaskAssignment, error)
}

// UpsertOutcome tells batch jobs what a keyed write actually did.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota
	UpsertUpdated
	UpsertUnchanged
)

type AdjustmentStore interface {
	// UpsertAutoAdjustment writes an automatic adjustment keyed on
	// (shift, kind, task): update-in-place when the key exists, insert
	// otherwise. Unchanged when the stored amount already matches.
	UpsertAutoAdjustment(ctx context.Context, adj PayrollAdjustment) (UpsertOutcome, error)
	// CreateAdjustment appends a manual adjustment (never touched by jobs).
	CreateAdjustment(ctx context.Context, adj PayrollAdjustment) error
	ListAdjustmentsByShift(ctx context.Context, shift ShiftID) ([]PayrollAdjustment, error)
}

// PayrollFilter narrows payroll-entry listings. Nil fields match all.
type PayrollFilter struct {
	EmployeeID *EmployeeID
	OwnerID    *OwnerID
	Status     *PayrollStatus
}

type PayrollStore interface {
	GetPayrollEntry(ctx context.Context, id PayrollEntryID) (PayrollEntry, error)
	// GetPayrollEntryByKey returns the entry for the natural key, or nil.
	GetPayrollEntryByKey(ctx context.Context, employee EmployeeID, start, end Date) (*PayrollEntry, error)
	// UpsertPayrollEntry writes on the natural key
	// (employee, period_start, period_end).
	UpsertPayrollEntry(ctx context.Context, entry PayrollEntry) (UpsertOutcome, error)
	// TransitionPayrollEntry moves the entry to the target status only when
	// its current status is one of "from"; otherwise NotActiveError. Once an
	// entry leaves draft, period builds skip it instead of rewriting totals.
	TransitionPayrollEntry(ctx context.Context, id PayrollEntryID, from []PayrollStatus, to PayrollStatus) error
	ListPayrollEntries(ctx context.Context, filter PayrollFilter) ([]PayrollEntry, error)
}

type EventStore interface {
	AppendEvent(ctx context.Context, event Event) error
	// ListEvents returns events with OccurredAt >= since, oldest first,
	// up to limit (0 = no limit).
	ListEvents(ctx context.Context, since time.Time, limit int) ([]Event, error)
}

// =============================================================================
// JOB RUNS - Persisted batch-run records (scheduler idempotency guard)
// =============================================================================

type JobName string

const (
	JobAutoClose   JobName = "auto_close"
	JobAdjustments JobName = "adjustments"
	JobPayroll     JobName = "payroll"
)

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobRun records one batch execution. The scheduler's daily guard is
// "does a completed run exist for (job, target_date)?"; manual replays
// bypass the guard, relying on idempotent writes.
type JobRun struct {
	ID         string
	Job        JobName
	TargetDate Date
	StartedAt  Instant
	FinishedAt *Instant
	Status     JobStatus

	Created int
	Updated int
	Skipped int
	Errors  []RunError
}

type JobRunStore interface {
	CreateJobRun(ctx context.Context, run JobRun) error
	// FinishJobRun writes final status, counters, and errors.
	FinishJobRun(ctx context.Context, run JobRun) error
	IsJobComplete(ctx context.Context, job JobName, target Date) (bool, error)
	ListJobRuns(ctx context.Context, limit int) ([]JobRun, error)
}

// =============================================================================
// STORE - Everything the engine persists
// =============================================================================

type Store interface {
	UnitStore
	ObjectStore
	SystemStore
	ScheduleStore
	ContractStore
	EntryStore
	ShiftStore
	TaskStore
	AdjustmentStore
	PayrollStore
	EventStore
	JobRunStore
}

// TxStore wraps Store with transaction support. Use it when several writes
// must land together (open shift + tasks + event).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. An error from fn rolls the
	// transaction back; nil commits it.
	WithTx(ctx context.Context, fn func(Store) error) error
}
