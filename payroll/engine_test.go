package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/payroll"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	payOwner = core.OwnerID("owner-1")
	payEmp   = core.EmployeeID("emp-1")
)

func newTestEngine(t *testing.T) (*payroll.AdjustmentEngine, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return payroll.NewAdjustmentEngine(store, payroll.DefaultConfig()), store
}

// seedPayWorld creates two Berlin objects on one unit: the cafe under a
// task-aware payment system with a 10-minute / 0.50-per-minute late
// policy, and a plain hourly depot. One active contract for emp-1.
func seedPayWorld(t *testing.T, store *sqlite.Store) {
	ctx := context.Background()

	require.NoError(t, store.CreateUnit(ctx, core.OrganizationalUnit{
		ID: "unit-1", OwnerID: payOwner, Name: "HQ", Active: true,
	}))
	require.NoError(t, store.CreateSystem(ctx, core.PaymentSystem{
		ID: "sys-tasks", OwnerID: payOwner, Name: "Hourly with tasks", Kind: core.SystemHourlyTasks,
	}))
	require.NoError(t, store.CreateSystem(ctx, core.PaymentSystem{
		ID: "sys-plain", OwnerID: payOwner, Name: "Plain hourly", Kind: core.SystemHourly,
	}))

	rate := core.NewMoney(20.00)
	tasksID := core.SystemID("sys-tasks")
	plainID := core.SystemID("sys-plain")
	require.NoError(t, store.CreateObject(ctx, core.WorkObject{
		ID: "obj-cafe", OwnerID: payOwner, UnitID: "unit-1", Name: "Cafe",
		Timezone: "Europe/Berlin", Rate: &rate, SystemID: &tasksID,
		Late:   &core.LatePolicy{ThresholdMinutes: 10, PenaltyPerMinute: core.NewMoney(0.50)},
		Active: true,
	}))
	require.NoError(t, store.CreateObject(ctx, core.WorkObject{
		ID: "obj-depot", OwnerID: payOwner, UnitID: "unit-1", Name: "Depot",
		Timezone: "Europe/Berlin", Rate: &rate, SystemID: &plainID,
		Active: true,
	}))

	require.NoError(t, store.CreateContract(ctx, core.Contract{
		ID: "con-1", OwnerID: payOwner, EmployeeID: payEmp, Status: core.ContractActive,
	}))
}

func payUTC(day, hour, minute int) time.Time {
	return time.Date(2025, time.November, day, hour, minute, 0, 0, time.UTC)
}

// workShift opens and immediately closes a shift, returning the
// completed row the engine will consume.
func workShift(t *testing.T, store *sqlite.Store, shift core.Shift, end time.Time) core.Shift {
	ctx := context.Background()
	require.NoError(t, store.OpenShift(ctx, shift))
	shift.EndAt = &end
	require.NoError(t, store.CloseShift(ctx, shift))
	shift.Status = core.ShiftCompleted
	return shift
}

func adjustmentsByKind(t *testing.T, store *sqlite.Store, shift core.ShiftID) map[core.AdjustmentKind][]core.PayrollAdjustment {
	adjustments, err := store.ListAdjustmentsByShift(context.Background(), shift)
	require.NoError(t, err)
	byKind := map[core.AdjustmentKind][]core.PayrollAdjustment{}
	for _, adj := range adjustments {
		byKind[adj.Kind] = append(byKind[adj.Kind], adj)
	}
	return byKind
}

// =============================================================================
// BASE PAY AND LATENESS
// =============================================================================

func TestProcessShifts_BasePayAndLatePenalty(t *testing.T) {
	// GIVEN: A shift planned for 09:00 and started 09:22, closed 17:22
	// WHEN: The engine processes it
	// THEN: Base pay covers the worked 8h; the penalty charges all 22
	//       late minutes, not just the 12 past the threshold

	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	entry := core.ScheduleEntry{
		ID: "entry-1", EmployeeID: payEmp, ObjectID: "obj-cafe",
		PlannedStart: payUTC(12, 9, 0), PlannedEnd: payUTC(12, 17, 0),
		Status: core.EntryPlanned,
	}
	require.NoError(t, store.CreateEntry(ctx, entry))

	shift := workShift(t, store, core.Shift{
		ID: "shift-1", EntryID: &entry.ID, ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 22),
	}, payUTC(12, 17, 22))

	result := engine.ProcessShifts(ctx, []core.Shift{shift})
	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 2, result.Created)

	byKind := adjustmentsByKind(t, store, shift.ID)

	base := byKind[core.AdjustBasePay]
	require.Len(t, base, 1)
	assert.True(t, base[0].Amount.Equal(core.NewMoney(160.00)), "8h x 20.00, got %s", base[0].Amount)
	assert.True(t, base[0].Automatic)
	assert.Nil(t, base[0].TaskID)

	late := byKind[core.AdjustLatePenalty]
	require.Len(t, late, 1)
	assert.True(t, late[0].Amount.Equal(core.NewMoney(-11.00)), "22min x 0.50, got %s", late[0].Amount)
}

func TestProcessShifts_LatenessAtThresholdTolerated(t *testing.T) {
	// Exactly on the threshold is still on time.

	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	entry := core.ScheduleEntry{
		ID: "entry-1", EmployeeID: payEmp, ObjectID: "obj-cafe",
		PlannedStart: payUTC(12, 9, 0), PlannedEnd: payUTC(12, 17, 0),
		Status: core.EntryPlanned,
	}
	require.NoError(t, store.CreateEntry(ctx, entry))

	shift := workShift(t, store, core.Shift{
		ID: "shift-1", EntryID: &entry.ID, ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 10),
	}, payUTC(12, 17, 10))

	result := engine.ProcessShifts(ctx, []core.Shift{shift})
	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, adjustmentsByKind(t, store, shift.ID)[core.AdjustLatePenalty])
}

func TestProcessShifts_SpontaneousShiftNeverLate(t *testing.T) {
	// No plan, no lateness - whatever the start time.

	engine, store := newTestEngine(t)
	seedPayWorld(t, store)

	shift := workShift(t, store, core.Shift{
		ID: "shift-1", ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 14, 45),
	}, payUTC(12, 20, 45))

	result := engine.ProcessShifts(context.Background(), []core.Shift{shift})
	require.Empty(t, result.Errors)
	assert.Empty(t, adjustmentsByKind(t, store, shift.ID)[core.AdjustLatePenalty])
}

// =============================================================================
// TASK CONSEQUENCES
// =============================================================================

func TestProcessShifts_TaskRowsUnderTaskAwareSystem(t *testing.T) {
	// GIVEN: Six tasks in every completion/amount combination
	// THEN: Incomplete mandatory work is charged (default when the
	//       configured amount is zero), completed optional work with a
	//       price is paid, everything else is silent

	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	shift := workShift(t, store, core.Shift{
		ID: "shift-1", ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 0),
	}, payUTC(12, 17, 0))

	require.NoError(t, store.CreateTasks(ctx, []core.TaskAssignment{
		{ID: "t-register", ShiftID: shift.ID, Text: "Close out the register", Mandatory: true, Source: core.TaskSourceObject},
		{ID: "t-safe", ShiftID: shift.ID, Text: "Count the safe", Mandatory: true, Amount: core.NewMoney(25.50), Source: core.TaskSourceObject},
		{ID: "t-fridge", ShiftID: shift.ID, Text: "Restock the fridge", Amount: core.NewMoney(7.50), Source: core.TaskSourceObject},
		{ID: "t-bins", ShiftID: shift.ID, Text: "Take out the bins", Mandatory: true, Source: core.TaskSourceObject},
		{ID: "t-sweep", ShiftID: shift.ID, Text: "Sweep the terrace", Amount: core.NewMoney(5.00), Source: core.TaskSourceObject},
		{ID: "t-greet", ShiftID: shift.ID, Text: "Greet the regulars", Source: core.TaskSourceObject},
	}))
	for _, id := range []core.TaskID{"t-fridge", "t-bins", "t-greet"} {
		require.NoError(t, store.CompleteTask(ctx, id, payUTC(12, 16, 0), nil))
	}

	result := engine.ProcessShifts(ctx, []core.Shift{shift})
	require.Empty(t, result.Errors)
	assert.Equal(t, 4, result.Created, "base pay + two penalties + one bonus")

	byKind := adjustmentsByKind(t, store, shift.ID)

	penalties := byKind[core.AdjustTaskPenalty]
	require.Len(t, penalties, 2)
	amounts := map[core.TaskID]core.Money{}
	for _, p := range penalties {
		require.NotNil(t, p.TaskID)
		amounts[*p.TaskID] = p.Amount
	}
	assert.True(t, amounts["t-register"].Equal(core.NewMoney(-50.00)), "zero-amount mandatory falls back to the default penalty")
	assert.True(t, amounts["t-safe"].Equal(core.NewMoney(-25.50)))

	bonuses := byKind[core.AdjustTaskBonus]
	require.Len(t, bonuses, 1)
	require.NotNil(t, bonuses[0].TaskID)
	assert.Equal(t, core.TaskID("t-fridge"), *bonuses[0].TaskID)
	assert.True(t, bonuses[0].Amount.Equal(core.NewMoney(7.50)))
}

func TestProcessShifts_PlainHourlyIgnoresTasks(t *testing.T) {
	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	shift := workShift(t, store, core.Shift{
		ID: "shift-1", ObjectID: "obj-depot", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 0),
	}, payUTC(12, 17, 0))

	require.NoError(t, store.CreateTasks(ctx, []core.TaskAssignment{
		{ID: "t-register", ShiftID: shift.ID, Text: "Close out the register", Mandatory: true, Source: core.TaskSourceObject},
	}))

	result := engine.ProcessShifts(ctx, []core.Shift{shift})
	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Created, "base pay only")
	assert.Empty(t, adjustmentsByKind(t, store, shift.ID)[core.AdjustTaskPenalty])
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestProcessShifts_SecondRunWritesNothing(t *testing.T) {
	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	shift := workShift(t, store, core.Shift{
		ID: "shift-1", ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 0),
	}, payUTC(12, 17, 0))

	first := engine.ProcessShifts(ctx, []core.Shift{shift})
	require.Empty(t, first.Errors)
	require.Equal(t, 1, first.Created)

	second := engine.ProcessShifts(ctx, []core.Shift{shift})
	require.Empty(t, second.Errors)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 1, second.SkippedDuplicate)

	adjustments, err := store.ListAdjustmentsByShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Len(t, adjustments, 1)

	// Only the first run announced anything.
	events, err := store.ListEvents(ctx, time.Time{}, 0)
	require.NoError(t, err)
	count := 0
	for _, e := range events {
		if e.Kind == core.EventAdjustmentApplied {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestProcessShifts_RateChangeUpdatesInPlace(t *testing.T) {
	// A corrected rate flows into the existing base-pay row; the row is
	// updated, never duplicated.

	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	shift := workShift(t, store, core.Shift{
		ID: "shift-1", ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 0),
	}, payUTC(12, 17, 0))
	require.Equal(t, 1, engine.ProcessShifts(ctx, []core.Shift{shift}).Created)

	object, err := store.GetObject(ctx, "obj-cafe")
	require.NoError(t, err)
	raised := core.NewMoney(22.00)
	object.Rate = &raised
	require.NoError(t, store.UpdateObject(ctx, object))

	result := engine.ProcessShifts(ctx, []core.Shift{shift})
	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Created)

	base := adjustmentsByKind(t, store, shift.ID)[core.AdjustBasePay]
	require.Len(t, base, 1)
	assert.True(t, base[0].Amount.Equal(core.NewMoney(176.00)), "8h x 22.00, got %s", base[0].Amount)
}

func TestProcessShifts_ActiveShiftRecorded(t *testing.T) {
	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	shift := core.Shift{
		ID: "shift-1", ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 0), Status: core.ShiftActive,
	}
	require.NoError(t, store.OpenShift(ctx, shift))

	result := engine.ProcessShifts(ctx, []core.Shift{shift})
	assert.Zero(t, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Unit, string(shift.ID))
}

// =============================================================================
// WORK-DATE WINDOW
// =============================================================================

func TestProcessWindow_FiltersOnObjectLocalWorkDate(t *testing.T) {
	// GIVEN: A shift starting Nov 15 23:30 UTC, which is already Nov 16
	//        in Berlin
	// THEN: The Nov 15 run skips it; the Nov 16 run picks it up

	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	workShift(t, store, core.Shift{
		ID: "shift-1", ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(15, 23, 30),
	}, payUTC(16, 7, 30))

	before, err := engine.ProcessWindow(ctx, core.NewDate(2025, time.November, 15), core.NewDate(2025, time.November, 15))
	require.NoError(t, err)
	assert.Zero(t, before.Processed)

	after, err := engine.ProcessWindow(ctx, core.NewDate(2025, time.November, 16), core.NewDate(2025, time.November, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, after.Processed)
}

// =============================================================================
// MANUAL ADJUSTMENTS
// =============================================================================

func TestAddManual_AppendOnlyNextToAutomaticRows(t *testing.T) {
	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	shift := workShift(t, store, core.Shift{
		ID: "shift-1", ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 0),
	}, payUTC(12, 17, 0))
	require.Equal(t, 1, engine.ProcessShifts(ctx, []core.Shift{shift}).Created)

	manual, err := engine.AddManual(ctx, shift.ID, core.NewMoney(15.00), "weekend rush bonus")
	require.NoError(t, err)
	assert.Equal(t, core.AdjustManual, manual.Kind)
	assert.False(t, manual.Automatic)

	// A re-run converges on the automatic rows and never touches the
	// manual one.
	rerun := engine.ProcessShifts(ctx, []core.Shift{shift})
	require.Empty(t, rerun.Errors)
	assert.Equal(t, 1, rerun.SkippedDuplicate)

	adjustments, err := store.ListAdjustmentsByShift(ctx, shift.ID)
	require.NoError(t, err)
	require.Len(t, adjustments, 2)
	kept := false
	for _, adj := range adjustments {
		if adj.Kind == core.AdjustManual {
			kept = adj.Amount.Equal(core.NewMoney(15.00))
		}
	}
	assert.True(t, kept)
}

func TestAddManual_RejectedOnCancelledShift(t *testing.T) {
	engine, store := newTestEngine(t)
	seedPayWorld(t, store)
	ctx := context.Background()

	shift := core.Shift{
		ID: "shift-1", ObjectID: "obj-cafe", EmployeeID: payEmp,
		StartAt: payUTC(12, 9, 0), Status: core.ShiftActive,
	}
	require.NoError(t, store.OpenShift(ctx, shift))
	require.NoError(t, store.CancelShift(ctx, shift.ID, payUTC(12, 10, 0)))

	_, err := engine.AddManual(ctx, shift.ID, core.NewMoney(5.00), "should not land")
	assert.ErrorIs(t, err, core.ErrNotActive)
}

// =============================================================================
// LATENESS ARITHMETIC
// =============================================================================

func TestLatenessMinutes(t *testing.T) {
	planned := payUTC(12, 9, 0)

	assert.Zero(t, payroll.LatenessMinutes(planned, planned.Add(-10*time.Minute)), "early")
	assert.Zero(t, payroll.LatenessMinutes(planned, planned), "on time")
	assert.Zero(t, payroll.LatenessMinutes(planned, planned.Add(59*time.Second)), "sub-minute")
	assert.Equal(t, 22, payroll.LatenessMinutes(planned, planned.Add(22*time.Minute+30*time.Second)), "whole minutes only")
}
