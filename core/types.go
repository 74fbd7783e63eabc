/*
Package core provides the shift lifecycle and payroll adjustment engine.

PURPOSE:
  This package contains the domain types and pure algorithms for hourly
  workforce scheduling: planned shifts, executed shifts, multi-level pay
  settings, payment periods, and the adjustment records that turn worked
  hours into money.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A signed decimal amount (never float)
  - OrganizationalUnit / WorkObject / Contract: The settings hierarchy
  - ScheduleEntry / Shift: Planned vs actual execution (two linked entities)
  - TaskAssignment: Per-shift tasks with bonus/penalty amounts
  - PayrollAdjustment / PayrollEntry: Derived money movements

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing unit/object/shift IDs
  3. Status machines: Entry and shift statuses only move through the
     coordinator in lifecycle/; no other component writes them
  4. Idempotency: Automatic adjustments carry a natural key (shift, kind,
     task) so periodic jobs converge instead of duplicating rows

USAGE:
  rate := core.NewMoney(15.50)
  shift := core.Shift{
      EmployeeID: "emp-123",
      ObjectID:   "obj-001",
      Status:     core.ShiftActive,
  }

SEE ALSO:
  - settings.go: Effective-settings resolution up the unit tree
  - period.go: Payment schedules and period arithmetic
  - store.go: Persistence interfaces
*/
package core

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Signed decimal amount in the owner's currency
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money          { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int) Money       { return Money{Value: decimal.NewFromInt(int64(value))} }
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{Value: d} }
func ZeroMoney() Money                      { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal string; malformed input yields zero.
func ParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s)} }
func (m Money) MulInt(n int) Money         { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) Round2() Money              { return Money{Value: m.Value.Round(2)} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) String() string             { return m.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID string
type EmployeeID string
type UnitID string
type ObjectID string
type ContractID string
type EntryID string
type ShiftID string
type TaskID string
type SystemID string
type ScheduleID string
type AdjustmentID string
type PayrollEntryID string
type EventID string

// NewID returns a fresh random identifier. All entity IDs are UUID strings.
func NewID() string { return uuid.NewString() }

// =============================================================================
// ORGANIZATIONAL UNIT - Tree node carrying inheritable pay settings
// =============================================================================

// OrganizationalUnit is a node in the owner's unit tree. Settings left nil
// are inherited from the parent chain (see settings.go).
//
// Invariant: the tree has no cycles. Create/move operations validate the
// ancestry before committing; resolution still caps its walk (MaxUnitDepth)
// and fails loudly if the invariant is ever violated.
type OrganizationalUnit struct {
	ID       UnitID
	OwnerID  OwnerID
	Name     string
	ParentID *UnitID // nil = root

	SystemID   *SystemID   // payment system override
	ScheduleID *ScheduleID // payment schedule override

	// Late-arrival policy override. LateInherit forces inheritance from
	// ancestors even when Late is set.
	Late        *LatePolicy
	LateInherit bool

	Active bool // soft deactivation; deactivated units keep their members
}

// LatePolicy is the late-arrival penalty rule: arrivals later than the
// threshold cost PenaltyPerMinute for every minute of lateness.
type LatePolicy struct {
	ThresholdMinutes int
	PenaltyPerMinute Money
}

// =============================================================================
// WORK OBJECT - Physical location where shifts happen
// =============================================================================

// WorkObject belongs to exactly one OrganizationalUnit and may override the
// unit's pay settings. Timezone is required: cutoffs and work days are
// computed in the object's local time.
type WorkObject struct {
	ID       ObjectID
	OwnerID  OwnerID
	UnitID   UnitID
	Name     string
	Timezone string   // IANA name, e.g. "Europe/Berlin"
	Closing  *DayTime // daily closing time, local; nil = open-ended

	SystemID     *SystemID
	Rate         *Money
	Late         *LatePolicy
	TaskDefaults []TaskDefinition

	Active bool
}

// =============================================================================
// CONTRACT - Binds one employee to one owner
// =============================================================================

type ContractStatus string

const (
	ContractDraft      ContractStatus = "draft"
	ContractActive     ContractStatus = "active"
	ContractTerminated ContractStatus = "terminated" // terminal
)

// Permission is a delegated-manager right carried on a contract. The set is
// persisted for the boundary collaborators; enforcement is not core logic.
type Permission string

const (
	PermManageSchedule Permission = "manage_schedule"
	PermManageTasks    Permission = "manage_tasks"
	PermCloseShifts    Permission = "close_shifts"
	PermRunPayroll     Permission = "run_payroll"
)

// Contract binds an employee to an owner with optional rate and payment
// system that take precedence over object/unit settings only when the
// matching precedence flag is set.
type Contract struct {
	ID         ContractID
	OwnerID    OwnerID
	EmployeeID EmployeeID
	Status     ContractStatus

	Rate             *Money
	RatePrecedence   bool
	SystemID         *SystemID
	SystemPrecedence bool

	// Objects the employee may work at. Empty = any object of the owner.
	AllowedObjectIDs []ObjectID

	Permissions []Permission
}

func (c Contract) IsActive() bool { return c.Status == ContractActive }

// AllowsObject reports whether the contract permits working at the object.
func (c Contract) AllowsObject(id ObjectID) bool {
	if len(c.AllowedObjectIDs) == 0 {
		return true
	}
	for _, allowed := range c.AllowedObjectIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

// =============================================================================
// SCHEDULE ENTRY - The planned shift
// =============================================================================

type EntryStatus string

const (
	EntryPlanned   EntryStatus = "planned"
	EntryConfirmed EntryStatus = "confirmed" // legacy alias of planned
	EntryCompleted EntryStatus = "completed" // terminal
	EntryCancelled EntryStatus = "cancelled" // terminal
)

// IsOpen reports whether the entry can still be executed. The legacy
// "confirmed" status is an alias of "planned" kept for old data.
func (s EntryStatus) IsOpen() bool { return s == EntryPlanned || s == EntryConfirmed }

// IsTerminal reports whether the entry can never be executed again.
func (s EntryStatus) IsTerminal() bool { return s == EntryCompleted || s == EntryCancelled }

// ScheduleEntry is the planned side of a shift. It stays open while its
// shift runs and is finalized by the coordinator together with the shift;
// a terminal entry is never reused for a second execution.
type ScheduleEntry struct {
	ID         EntryID
	EmployeeID EmployeeID
	ObjectID   ObjectID

	PlannedStart Instant
	PlannedEnd   Instant

	Status EntryStatus

	// Slot-level task list. TaskListDefined distinguishes "no list given"
	// (inherit object defaults) from "list given but empty" (suppress
	// object defaults). IncludeObjectTasks additionally merges the object
	// defaults in when a slot list is defined.
	TaskListDefined    bool
	TaskTemplates      []TaskDefinition
	IncludeObjectTasks bool
}

// =============================================================================
// SHIFT - The actual execution
// =============================================================================

type ShiftStatus string

const (
	ShiftActive    ShiftStatus = "active"
	ShiftCompleted ShiftStatus = "completed" // terminal
	ShiftCancelled ShiftStatus = "cancelled" // terminal
)

// Shift records an actual work session. EntryID is nil for spontaneous
// shifts opened without a plan.
//
// Invariants:
//   - at most one active shift per employee, system-wide (store-enforced)
//   - an active shift's entry (if any) is planned/confirmed, never terminal
type Shift struct {
	ID         ShiftID
	EntryID    *EntryID
	ObjectID   ObjectID
	EmployeeID EmployeeID

	StartAt Instant
	EndAt   *Instant // nil while active

	Status ShiftStatus

	StartLocation *string // opaque location reference from the caller
	EndLocation   *string

	// Filled at close time: worked hours and hours x effective rate.
	// The adjustment engine recomputes both; these are display values.
	Hours   Money
	BasePay Money

	AutoClosed bool
}

// =============================================================================
// TASKS - Per-shift assignments with money consequences
// =============================================================================

// TaskSource identifies which settings layer produced an assignment.
// Exactly one source supplies a shift's list unless the slot opts to merge.
type TaskSource string

const (
	TaskSourceSlot   TaskSource = "schedule_slot"
	TaskSourceObject TaskSource = "object_default"
)

// TaskDefinition is the normalized task template (see factory for the
// legacy/new JSON shapes). Amount sign encodes consequence direction:
// positive = bonus for completion, negative = penalty. A mandatory task
// with amount zero still has consequence (the engine's default penalty).
type TaskDefinition struct {
	Text          string
	Mandatory     bool
	Amount        Money
	RequiresMedia bool
}

// TaskAssignment is a task materialized onto one shift.
type TaskAssignment struct {
	ID      TaskID
	ShiftID ShiftID

	Text          string
	Mandatory     bool
	Amount        Money
	RequiresMedia bool
	Source        TaskSource

	Completed   bool
	CompletedAt *Instant
	EvidenceRef *string // opaque media reference; storage is external
}

// =============================================================================
// PAYMENT SYSTEM - Named pay policy
// =============================================================================

type PaymentSystemKind string

const (
	SystemHourly      PaymentSystemKind = "hourly"
	SystemHourlyTasks PaymentSystemKind = "hourly_tasks"
)

// TasksEnabled reports whether task bonuses/penalties apply under this kind.
// Only the designated task-aware system pays for tasks.
func (k PaymentSystemKind) TasksEnabled() bool { return k == SystemHourlyTasks }

type PaymentSystem struct {
	ID      SystemID
	OwnerID OwnerID
	Name    string
	Kind    PaymentSystemKind
}

// =============================================================================
// PAYROLL ADJUSTMENT - One signed money line per shift per kind
// =============================================================================

type AdjustmentKind string

const (
	AdjustBasePay     AdjustmentKind = "base_pay"
	AdjustLatePenalty AdjustmentKind = "late_penalty"
	AdjustTaskBonus   AdjustmentKind = "task_bonus"
	AdjustTaskPenalty AdjustmentKind = "task_penalty"
	AdjustManual      AdjustmentKind = "manual"
)

// PayrollAdjustment is a single signed money movement attached to a shift.
//
// Automatic rows carry the natural key (ShiftID, Kind, TaskID) and are
// upserted by the engine; re-runs update amounts in place. Manual rows
// (Automatic=false, Kind=manual) are appended by operators and never
// touched by jobs.
type PayrollAdjustment struct {
	ID         AdjustmentID
	ShiftID    ShiftID
	EmployeeID EmployeeID
	ObjectID   ObjectID

	Kind      AdjustmentKind
	Amount    Money
	Automatic bool
	TaskID    *TaskID // set for task_bonus/task_penalty rows
	Note      string

	CreatedAt Instant
	UpdatedAt Instant
}

// =============================================================================
// PAYROLL ENTRY - Aggregated statement per employee per period
// =============================================================================

type PayrollStatus string

const (
	PayrollDraft    PayrollStatus = "draft"
	PayrollApproved PayrollStatus = "approved"
	PayrollPaid     PayrollStatus = "paid"
)

// PayrollEntry aggregates one employee's adjustments for one payment
// period. Unique per (employee, period start, period end); the builder
// upserts drafts in place and leaves approved/paid entries untouched.
type PayrollEntry struct {
	ID         PayrollEntryID
	OwnerID    OwnerID
	EmployeeID EmployeeID
	ScheduleID ScheduleID

	PeriodStart Date
	PeriodEnd   Date

	BaseAmount      Money
	BonusAmount     Money
	DeductionAmount Money
	Total           Money

	Status PayrollStatus

	CreatedAt Instant
	UpdatedAt Instant
}
