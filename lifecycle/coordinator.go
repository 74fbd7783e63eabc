/*
Package lifecycle coordinates the two-entity shift state machine.

PURPOSE:
  A planned shift (ScheduleEntry) and its actual execution (Shift) are
  separate rows that must never drift into inconsistent combinations.
  Every status write on either entity goes through the Coordinator; no
  other component touches status fields.

THE STATE MACHINE:
  open:   creates Shift{active}. The entry (if any) STAYS planned - this
          deliberately lets a cancelled-and-reopened flow reuse the
          scheduling metadata without a spurious intermediate state.
  close:  Shift active -> completed, entry planned -> completed, hours
          and base pay computed from effective settings.
  cancel: entry -> cancelled, cascading to any still-active shift. A
          completed shift is never retroactively cancelled.
  auto_close: the periodic sweep for shifts whose implied end has passed.
          Cutoff preference: slot end, else object closing time, else
          midnight - always through the object's time zone.

INVARIANTS (store-enforced, coordinator-observed):
  - at most one active Shift per employee, system-wide
  - an active Shift's entry is planned/confirmed, never terminal
  - a terminated contract cannot open new shifts (closing stays allowed:
    whatever was opened must remain closable)

FAILURE SEMANTICS:
  open against an existing active shift  -> ConflictError
  close/cancel against a terminal target -> NotActiveError
  open against a draft/terminated contract -> ContractInactiveError
  The transport layer translates these for users; batch sweeps record
  them per shift and keep going.

SEE ALSO:
  - tasks.go: Task materialization and completion (TaskLedger)
  - payroll/: Consumes the finalized shifts this package produces
*/
package lifecycle

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	store    core.TxStore
	resolver core.SettingsResolver
	tasks    *TaskLedger
	now      func() time.Time
}

func NewCoordinator(store core.TxStore) *Coordinator {
	return &Coordinator{
		store:    store,
		resolver: core.SettingsResolver{Units: store},
		tasks:    NewTaskLedger(store),
		now:      time.Now,
	}
}

// Tasks exposes the task ledger sharing this coordinator's store.
func (c *Coordinator) Tasks() *TaskLedger { return c.tasks }

// =============================================================================
// PLANNING - Schedule entry creation (boundary for owner/manager/bot)
// =============================================================================

type PlanRequest struct {
	EmployeeID core.EmployeeID
	ObjectID   core.ObjectID
	Start      time.Time
	End        time.Time

	TaskListDefined    bool
	TaskTemplates      []core.TaskDefinition
	IncludeObjectTasks bool
}

// PlanEntry creates a planned schedule entry after validating the
// employee's contract and the object assignment.
func (c *Coordinator) PlanEntry(ctx context.Context, req PlanRequest) (core.ScheduleEntry, error) {
	if !req.End.After(req.Start) {
		return core.ScheduleEntry{}, &core.ValidationError{Field: "end", Reason: "must be after start"}
	}
	object, err := c.store.GetObject(ctx, req.ObjectID)
	if err != nil {
		return core.ScheduleEntry{}, err
	}
	contract, err := c.store.FindContract(ctx, req.EmployeeID, object.OwnerID)
	if err != nil {
		return core.ScheduleEntry{}, err
	}
	if !contract.IsActive() {
		return core.ScheduleEntry{}, &core.ContractInactiveError{ContractID: contract.ID, Status: contract.Status}
	}
	if !contract.AllowsObject(object.ID) {
		return core.ScheduleEntry{}, &core.ValidationError{Field: "object_id", Reason: "not permitted by contract"}
	}

	entry := core.ScheduleEntry{
		ID:                 core.EntryID(core.NewID()),
		EmployeeID:         req.EmployeeID,
		ObjectID:           req.ObjectID,
		PlannedStart:       req.Start.UTC(),
		PlannedEnd:         req.End.UTC(),
		Status:             core.EntryPlanned,
		TaskListDefined:    req.TaskListDefined,
		TaskTemplates:      req.TaskTemplates,
		IncludeObjectTasks: req.IncludeObjectTasks,
	}
	if err := c.store.CreateEntry(ctx, entry); err != nil {
		return core.ScheduleEntry{}, err
	}
	return entry, nil
}

// =============================================================================
// OPEN
// =============================================================================

type OpenRequest struct {
	EmployeeID core.EmployeeID
	ObjectID   core.ObjectID
	EntryID    *core.EntryID // nil = spontaneous shift
	At         time.Time
	Location   *string
}

// Open creates an active shift, materializes its tasks, and emits the
// opened event, all in one transaction. The attached entry's status stays
// planned; it is finalized together with the shift at close/cancel time.
func (c *Coordinator) Open(ctx context.Context, req OpenRequest) (core.Shift, error) {
	at := req.At
	if at.IsZero() {
		at = c.now()
	}

	object, err := c.store.GetObject(ctx, req.ObjectID)
	if err != nil {
		return core.Shift{}, err
	}
	if !object.Active {
		return core.Shift{}, &core.ValidationError{Field: "object_id", Reason: "object is deactivated"}
	}
	contract, err := c.store.FindContract(ctx, req.EmployeeID, object.OwnerID)
	if err != nil {
		return core.Shift{}, err
	}
	if !contract.IsActive() {
		return core.Shift{}, &core.ContractInactiveError{ContractID: contract.ID, Status: contract.Status}
	}
	if !contract.AllowsObject(object.ID) {
		return core.Shift{}, &core.ValidationError{Field: "object_id", Reason: "not permitted by contract"}
	}

	var entry *core.ScheduleEntry
	if req.EntryID != nil {
		found, err := c.store.GetEntry(ctx, *req.EntryID)
		if err != nil {
			return core.Shift{}, err
		}
		if found.EmployeeID != req.EmployeeID {
			return core.Shift{}, &core.ValidationError{Field: "entry_id", Reason: "entry belongs to another employee"}
		}
		if found.ObjectID != req.ObjectID {
			return core.Shift{}, &core.ValidationError{Field: "entry_id", Reason: "entry belongs to another object"}
		}
		if !found.Status.IsOpen() {
			return core.Shift{}, &core.NotActiveError{Kind: "entry", ID: string(found.ID), Status: string(found.Status)}
		}
		attached, err := c.store.ListShiftsByEntry(ctx, found.ID)
		if err != nil {
			return core.Shift{}, err
		}
		for _, s := range attached {
			if s.Status == core.ShiftActive {
				return core.Shift{}, &core.ConflictError{EmployeeID: s.EmployeeID, ActiveShiftID: s.ID}
			}
		}
		entry = &found
	}

	shift := core.Shift{
		ID:            core.ShiftID(core.NewID()),
		EntryID:       req.EntryID,
		ObjectID:      req.ObjectID,
		EmployeeID:    req.EmployeeID,
		StartAt:       at.UTC(),
		Status:        core.ShiftActive,
		StartLocation: req.Location,
	}
	assignments := c.tasks.Materialize(shift, entry, object)

	err = c.store.WithTx(ctx, func(tx core.Store) error {
		if err := tx.OpenShift(ctx, shift); err != nil {
			return err
		}
		if len(assignments) > 0 {
			if err := tx.CreateTasks(ctx, assignments); err != nil {
				return err
			}
		}
		event := core.NewEvent(core.EventShiftOpened, at).WithShift(shift)
		if req.EntryID != nil {
			event = event.WithEntry(*req.EntryID)
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return core.Shift{}, err
	}
	return shift, nil
}

// =============================================================================
// CLOSE
// =============================================================================

// Close finalizes an active shift: end time, worked hours, base pay from
// effective settings, entry completion. NotActiveError when the shift is
// already terminal - the caller turns that into an informative no-op
// message instead of a duplicate write.
func (c *Coordinator) Close(ctx context.Context, id core.ShiftID, at time.Time, location *string) (core.Shift, error) {
	return c.close(ctx, id, at, location, false)
}

func (c *Coordinator) close(ctx context.Context, id core.ShiftID, at time.Time, location *string, auto bool) (core.Shift, error) {
	shift, err := c.store.GetShift(ctx, id)
	if err != nil {
		return core.Shift{}, err
	}
	if shift.Status != core.ShiftActive {
		return core.Shift{}, &core.NotActiveError{Kind: "shift", ID: string(id), Status: string(shift.Status)}
	}
	if at.IsZero() {
		at = c.now()
	}
	end := at.UTC()
	if end.Before(shift.StartAt) {
		return core.Shift{}, &core.ValidationError{Field: "at", Reason: "end before shift start"}
	}

	object, err := c.store.GetObject(ctx, shift.ObjectID)
	if err != nil {
		return core.Shift{}, err
	}
	contract, err := c.store.FindContract(ctx, shift.EmployeeID, object.OwnerID)
	if err != nil {
		return core.Shift{}, err
	}
	eff, err := c.resolver.Resolve(ctx, contract, object)
	if err != nil {
		return core.Shift{}, err
	}

	hours := HoursBetween(shift.StartAt, end)
	shift.EndAt = &end
	shift.EndLocation = location
	shift.Status = core.ShiftCompleted
	shift.AutoClosed = auto
	shift.Hours = core.MoneyFromDecimal(hours).Round2()
	shift.BasePay = eff.Rate.Mul(hours).Round2()

	err = c.store.WithTx(ctx, func(tx core.Store) error {
		if err := tx.CloseShift(ctx, shift); err != nil {
			return err
		}
		if shift.EntryID != nil {
			err := tx.TransitionEntry(ctx, *shift.EntryID,
				[]core.EntryStatus{core.EntryPlanned, core.EntryConfirmed}, core.EntryCompleted)
			if err != nil {
				return err
			}
		}
		kind := core.EventShiftClosed
		if auto {
			kind = core.EventShiftAutoClosed
		}
		event := core.NewEvent(kind, end).WithShift(shift).
			With("hours", shift.Hours.String()).
			With("base_pay", shift.BasePay.String())
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return core.Shift{}, err
	}
	return shift, nil
}

// HoursBetween returns worked hours at whole-minute precision.
func HoursBetween(start, end time.Time) decimal.Decimal {
	minutes := int64(end.Sub(start) / time.Minute)
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60))
}

// =============================================================================
// CLOSE OBJECT - Container action
// =============================================================================

type ObjectCloseResult struct {
	ObjectID     core.ObjectID
	ClosedShifts []core.ShiftID
	Errors       []core.RunError
	ObjectClosed bool
}

// CloseObject closes every active shift at the object, then performs the
// object-level side effect. The side effect never runs while a shift at
// the object is still active: a failed shift close suppresses it and the
// failure is reported on the result.
func (c *Coordinator) CloseObject(ctx context.Context, id core.ObjectID, at time.Time) (ObjectCloseResult, error) {
	result := ObjectCloseResult{ObjectID: id}

	object, err := c.store.GetObject(ctx, id)
	if err != nil {
		return result, err
	}
	shifts, err := c.store.ListActiveShiftsByObject(ctx, id)
	if err != nil {
		return result, err
	}
	for _, shift := range shifts {
		if _, err := c.Close(ctx, shift.ID, at, nil); err != nil {
			result.Errors = append(result.Errors, core.NewRunError("shift:"+string(shift.ID), err))
			continue
		}
		result.ClosedShifts = append(result.ClosedShifts, shift.ID)
	}
	if len(result.Errors) > 0 {
		log.Printf("[Lifecycle] close object %s: %d shift(s) failed to close, skipping object side effect", id, len(result.Errors))
		return result, nil
	}

	objRef := object.ID
	event := core.NewEvent(core.EventObjectClosed, at)
	event.ObjectID = &objRef
	event = event.With("closed_shifts", strconv.Itoa(len(result.ClosedShifts)))
	if err := c.store.AppendEvent(ctx, event); err != nil {
		return result, err
	}
	result.ObjectClosed = true
	return result, nil
}

// =============================================================================
// CANCEL
// =============================================================================

type CancelResult struct {
	EntryID         core.EntryID
	CancelledShifts []core.ShiftID
}

// CancelEntry cancels a planned entry, cascading to any still-active
// shift attached to it. Completed shifts are never touched; a completed
// or already-cancelled entry yields NotActiveError.
func (c *Coordinator) CancelEntry(ctx context.Context, id core.EntryID) (CancelResult, error) {
	result := CancelResult{EntryID: id}
	at := c.now()

	err := c.store.WithTx(ctx, func(tx core.Store) error {
		err := tx.TransitionEntry(ctx, id,
			[]core.EntryStatus{core.EntryPlanned, core.EntryConfirmed}, core.EntryCancelled)
		if err != nil {
			return err
		}
		shifts, err := tx.ListShiftsByEntry(ctx, id)
		if err != nil {
			return err
		}
		for _, shift := range shifts {
			if shift.Status != core.ShiftActive {
				continue
			}
			if err := tx.CancelShift(ctx, shift.ID, at); err != nil {
				return err
			}
			result.CancelledShifts = append(result.CancelledShifts, shift.ID)
			event := core.NewEvent(core.EventShiftCancelled, at).WithShift(shift).WithEntry(id)
			if err := tx.AppendEvent(ctx, event); err != nil {
				return err
			}
		}
		entry, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		event := core.NewEvent(core.EventEntryCancelled, at).WithEntry(id)
		emp := entry.EmployeeID
		obj := entry.ObjectID
		event.EmployeeID = &emp
		event.ObjectID = &obj
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return CancelResult{EntryID: id}, err
	}
	return result, nil
}

// =============================================================================
// AUTO-CLOSE - Periodic sweep for overdue shifts
// =============================================================================

type AutoCloseResult struct {
	Closed  []core.ShiftID
	Skipped int // active shifts whose cutoff has not passed yet
	Errors  []core.RunError
}

// AutoClose closes every active shift whose cutoff has passed as of the
// given instant. Cutoff preference: entry's planned end (when it is still
// ahead of the shift's start), else the object closing time on the
// shift's start day, else the midnight ending that day - all computed in
// the object's time zone. Per-shift failures are recorded and never
// abort the sweep.
func (c *Coordinator) AutoClose(ctx context.Context, asOf time.Time) (AutoCloseResult, error) {
	var result AutoCloseResult

	shifts, err := c.store.ListActiveShifts(ctx)
	if err != nil {
		return result, err
	}
	objects := map[core.ObjectID]core.WorkObject{}
	for _, shift := range shifts {
		cutoff, err := c.cutoffFor(ctx, shift, objects)
		if err != nil {
			result.Errors = append(result.Errors, core.NewRunError("shift:"+string(shift.ID), err))
			continue
		}
		if cutoff.After(asOf) {
			result.Skipped++
			continue
		}
		if _, err := c.close(ctx, shift.ID, cutoff, nil, true); err != nil {
			result.Errors = append(result.Errors, core.NewRunError("shift:"+string(shift.ID), err))
			continue
		}
		result.Closed = append(result.Closed, shift.ID)
	}
	if len(result.Closed) > 0 || len(result.Errors) > 0 {
		log.Printf("[Lifecycle] auto-close: %d closed, %d not due, %d errors",
			len(result.Closed), result.Skipped, len(result.Errors))
	}
	return result, nil
}

// cutoffFor computes the auto-close instant for one shift.
func (c *Coordinator) cutoffFor(ctx context.Context, shift core.Shift, cache map[core.ObjectID]core.WorkObject) (time.Time, error) {
	if shift.EntryID != nil {
		entry, err := c.store.GetEntry(ctx, *shift.EntryID)
		if err != nil {
			return time.Time{}, err
		}
		// A shift opened after its planned end has no usable plan left;
		// fall through to the object fallbacks or the close would be
		// rejected as ending before the start.
		if !entry.PlannedEnd.IsZero() && entry.PlannedEnd.After(shift.StartAt) {
			return entry.PlannedEnd, nil
		}
	}

	object, ok := cache[shift.ObjectID]
	if !ok {
		loaded, err := c.store.GetObject(ctx, shift.ObjectID)
		if err != nil {
			return time.Time{}, err
		}
		object = loaded
		cache[shift.ObjectID] = object
	}
	loc, err := core.LoadLocation(object.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	startDay := core.WorkDate(shift.StartAt, loc)

	if object.Closing != nil {
		cutoff := object.Closing.On(startDay, loc)
		// Overnight shifts past closing roll to the next day's closing.
		if !cutoff.After(shift.StartAt) {
			cutoff = object.Closing.On(startDay.AddDays(1), loc)
		}
		return cutoff.UTC(), nil
	}
	return startDay.NextMidnightIn(loc).UTC(), nil
}
