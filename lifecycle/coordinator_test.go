package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/lifecycle"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	testOwner = core.OwnerID("owner-1")
	testEmp   = core.EmployeeID("emp-1")
)

func newTestCoordinator(t *testing.T) (*lifecycle.Coordinator, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return lifecycle.NewCoordinator(store), store
}

// seedWorkplace creates the standard fixture: one unit, the cafe object
// in Berlin (closes 22:00 local, rate 20.00, two default tasks), and an
// active contract for emp-1.
func seedWorkplace(t *testing.T, store *sqlite.Store) core.WorkObject {
	ctx := context.Background()

	require.NoError(t, store.CreateUnit(ctx, core.OrganizationalUnit{
		ID: "unit-1", OwnerID: testOwner, Name: "HQ", Active: true,
	}))

	rate := core.NewMoney(20.00)
	object := core.WorkObject{
		ID:       "obj-cafe",
		OwnerID:  testOwner,
		UnitID:   "unit-1",
		Name:     "Cafe",
		Timezone: "Europe/Berlin",
		Closing:  &core.DayTime{Hour: 22},
		Rate:     &rate,
		TaskDefaults: []core.TaskDefinition{
			{Text: "Close out the register", Mandatory: true},
			{Text: "Restock the display fridge", Amount: core.NewMoney(7.50), RequiresMedia: true},
		},
		Active: true,
	}
	require.NoError(t, store.CreateObject(ctx, object))

	require.NoError(t, store.CreateContract(ctx, core.Contract{
		ID: "con-1", OwnerID: testOwner, EmployeeID: testEmp, Status: core.ContractActive,
	}))
	return object
}

func seedEmployee(t *testing.T, store *sqlite.Store, emp core.EmployeeID) {
	require.NoError(t, store.CreateContract(context.Background(), core.Contract{
		ID: core.ContractID("con-" + string(emp)), OwnerID: testOwner, EmployeeID: emp,
		Status: core.ContractActive,
	}))
}

func utc(day, hour, minute int) time.Time {
	return time.Date(2025, time.November, day, hour, minute, 0, 0, time.UTC)
}

func eventKinds(t *testing.T, store *sqlite.Store) map[core.EventKind]int {
	events, err := store.ListEvents(context.Background(), time.Time{}, 0)
	require.NoError(t, err)
	kinds := map[core.EventKind]int{}
	for _, e := range events {
		kinds[e.Kind]++
	}
	return kinds
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpen_CreatesActiveShiftWithObjectTasks(t *testing.T) {
	// GIVEN: The cafe with two default tasks
	// WHEN: An employee opens a spontaneous shift
	// THEN: The shift is active, the defaults are materialized onto it,
	//       and the opened event is on the feed

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	location := "52.5200,13.4050"
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0), Location: &location,
	})
	require.NoError(t, err)

	assert.Equal(t, core.ShiftActive, shift.Status)
	assert.True(t, shift.StartAt.Equal(utc(15, 8, 0)))
	assert.Nil(t, shift.EntryID)

	active, err := store.FindActiveShift(ctx, testEmp)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, shift.ID, active.ID)

	tasks, err := store.ListTasksByShift(ctx, shift.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, core.TaskSourceObject, task.Source)
		assert.False(t, task.Completed)
	}

	assert.Equal(t, 1, eventKinds(t, store)[core.EventShiftOpened])
}

func TestOpen_SecondActiveShiftRejected(t *testing.T) {
	// GIVEN: An employee with a shift already running
	// WHEN: Opening another one
	// THEN: ConflictError naming the blocking shift

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	first, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0),
	})
	require.NoError(t, err)

	_, err = coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 9, 0),
	})
	require.Error(t, err)

	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ActiveShiftID)
}

func TestOpen_TerminatedContractRejected(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	contract, err := store.GetContract(ctx, "con-1")
	require.NoError(t, err)
	contract.Status = core.ContractTerminated
	require.NoError(t, store.UpdateContract(ctx, contract))

	_, err = coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0),
	})
	assert.ErrorIs(t, err, core.ErrContractInactive)
}

func TestOpen_DeactivatedObjectRejected(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	object := seedWorkplace(t, store)
	ctx := context.Background()

	object.Active = false
	require.NoError(t, store.UpdateObject(ctx, object))

	_, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0),
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestOpen_ObjectOutsideContractRejected(t *testing.T) {
	// GIVEN: A contract restricted to a different object
	// THEN: Opening at the cafe is a validation error, not a conflict

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	contract, err := store.GetContract(ctx, "con-1")
	require.NoError(t, err)
	contract.AllowedObjectIDs = []core.ObjectID{"obj-elsewhere"}
	require.NoError(t, store.UpdateContract(ctx, contract))

	_, err = coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0),
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestOpen_WithEntry_EntryStaysPlanned(t *testing.T) {
	// The entry is finalized at close/cancel time, never at open - a
	// cancelled shift can reopen against the same plan.

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 9, 0), End: utc(15, 17, 0),
	})
	require.NoError(t, err)

	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 9, 22),
	})
	require.NoError(t, err)
	require.NotNil(t, shift.EntryID)
	assert.Equal(t, entry.ID, *shift.EntryID)

	reloaded, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EntryPlanned, reloaded.Status)
}

func TestOpen_ReopenAfterCancelledShift(t *testing.T) {
	// GIVEN: A shift on an entry that was cancelled (shift only, not the
	//        plan)
	// WHEN: Opening against the same entry again
	// THEN: It works - the planned entry is still open

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 9, 0), End: utc(15, 17, 0),
	})
	require.NoError(t, err)

	first, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 9, 0),
	})
	require.NoError(t, err)
	require.NoError(t, store.CancelShift(ctx, first.ID, utc(15, 9, 30)))

	second, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 10, 0),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestOpen_EntryChecks(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	// Someone else's entry.
	foreign := core.ScheduleEntry{
		ID: "entry-foreign", EmployeeID: "emp-other", ObjectID: "obj-cafe",
		PlannedStart: utc(15, 9, 0), PlannedEnd: utc(15, 17, 0), Status: core.EntryPlanned,
	}
	require.NoError(t, store.CreateEntry(ctx, foreign))
	_, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &foreign.ID, At: utc(15, 9, 0),
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput, "foreign entry")

	// Cancelled entry.
	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(16, 9, 0), End: utc(16, 17, 0),
	})
	require.NoError(t, err)
	_, err = coordinator.CancelEntry(ctx, entry.ID)
	require.NoError(t, err)
	_, err = coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(16, 9, 0),
	})
	assert.ErrorIs(t, err, core.ErrNotActive, "cancelled entry")
}

func TestPlanEntry_EndMustFollowStart(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)

	_, err := coordinator.PlanEntry(context.Background(), lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 17, 0), End: utc(15, 9, 0),
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

// =============================================================================
// CLOSE
// =============================================================================

func TestClose_ComputesHoursAndBasePay(t *testing.T) {
	// GIVEN: A planned 09:00 shift at the 20.00/h cafe
	// WHEN: Closing at 17:30
	// THEN: 8.5 worked hours, 170.00 base pay, and the entry is completed

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 9, 0), End: utc(15, 17, 0),
	})
	require.NoError(t, err)
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 9, 0),
	})
	require.NoError(t, err)

	closed, err := coordinator.Close(ctx, shift.ID, utc(15, 17, 30), nil)
	require.NoError(t, err)

	assert.Equal(t, core.ShiftCompleted, closed.Status)
	require.NotNil(t, closed.EndAt)
	assert.True(t, closed.EndAt.Equal(utc(15, 17, 30)))
	assert.True(t, closed.Hours.Equal(core.NewMoney(8.5)), "hours = %s", closed.Hours)
	assert.True(t, closed.BasePay.Equal(core.NewMoney(170.00)), "base pay = %s", closed.BasePay)
	assert.False(t, closed.AutoClosed)

	reloaded, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EntryCompleted, reloaded.Status)

	assert.Equal(t, 1, eventKinds(t, store)[core.EventShiftClosed])
}

func TestClose_SubMinuteRemainderDropped(t *testing.T) {
	// Worked time is whole-minute precision: 30 seconds is zero hours.

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 9, 0),
	})
	require.NoError(t, err)

	closed, err := coordinator.Close(ctx, shift.ID, utc(15, 9, 0).Add(30*time.Second), nil)
	require.NoError(t, err)
	assert.True(t, closed.Hours.IsZero())
	assert.True(t, closed.BasePay.IsZero())
}

func TestClose_AlreadyClosedIsNotActive(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 9, 0),
	})
	require.NoError(t, err)
	_, err = coordinator.Close(ctx, shift.ID, utc(15, 17, 0), nil)
	require.NoError(t, err)

	_, err = coordinator.Close(ctx, shift.ID, utc(15, 18, 0), nil)
	require.Error(t, err)
	var notActive *core.NotActiveError
	require.ErrorAs(t, err, &notActive)
	assert.Equal(t, string(core.ShiftCompleted), notActive.Status)
}

func TestClose_EndBeforeStartRejected(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 9, 0),
	})
	require.NoError(t, err)

	_, err = coordinator.Close(ctx, shift.ID, utc(15, 8, 0), nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancelEntry_CascadesToActiveShift(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 9, 0), End: utc(15, 17, 0),
	})
	require.NoError(t, err)
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 9, 0),
	})
	require.NoError(t, err)

	result, err := coordinator.CancelEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []core.ShiftID{shift.ID}, result.CancelledShifts)

	reloadedEntry, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EntryCancelled, reloadedEntry.Status)

	reloadedShift, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ShiftCancelled, reloadedShift.Status)
	assert.NotNil(t, reloadedShift.EndAt)

	kinds := eventKinds(t, store)
	assert.Equal(t, 1, kinds[core.EventShiftCancelled])
	assert.Equal(t, 1, kinds[core.EventEntryCancelled])
}

func TestCancelEntry_NeverTouchesCompletedShift(t *testing.T) {
	// GIVEN: A worked and closed shift
	// WHEN: Cancelling its entry afterwards
	// THEN: The cancel is refused (the entry is terminal) and the shift
	//       keeps its completed state and pay

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 9, 0), End: utc(15, 17, 0),
	})
	require.NoError(t, err)
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 9, 0),
	})
	require.NoError(t, err)
	_, err = coordinator.Close(ctx, shift.ID, utc(15, 17, 0), nil)
	require.NoError(t, err)

	_, err = coordinator.CancelEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, core.ErrNotActive)

	reloaded, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ShiftCompleted, reloaded.Status)
}

func TestCancelEntry_PlannedWithoutShift(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(20, 9, 0), End: utc(20, 17, 0),
	})
	require.NoError(t, err)

	result, err := coordinator.CancelEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Empty(t, result.CancelledShifts)
}

// =============================================================================
// CLOSE OBJECT
// =============================================================================

func TestCloseObject_SweepsActiveShifts(t *testing.T) {
	// GIVEN: Two running shifts at the cafe and one at the depot
	// WHEN: Closing the cafe
	// THEN: Both cafe shifts complete; the depot shift keeps running

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	seedEmployee(t, store, "emp-2")
	seedEmployee(t, store, "emp-3")
	ctx := context.Background()

	require.NoError(t, store.CreateObject(ctx, core.WorkObject{
		ID: "obj-depot", OwnerID: testOwner, UnitID: "unit-1", Name: "Depot",
		Timezone: "Europe/Berlin", Active: true,
	}))

	cafe1, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0),
	})
	require.NoError(t, err)
	cafe2, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: "emp-2", ObjectID: "obj-cafe", At: utc(15, 9, 0),
	})
	require.NoError(t, err)
	depot, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: "emp-3", ObjectID: "obj-depot", At: utc(15, 9, 0),
	})
	require.NoError(t, err)

	result, err := coordinator.CloseObject(ctx, "obj-cafe", utc(15, 21, 0))
	require.NoError(t, err)
	assert.True(t, result.ObjectClosed)
	assert.ElementsMatch(t, []core.ShiftID{cafe1.ID, cafe2.ID}, result.ClosedShifts)
	assert.Empty(t, result.Errors)

	still, err := store.GetShift(ctx, depot.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ShiftActive, still.Status)

	assert.Equal(t, 1, eventKinds(t, store)[core.EventObjectClosed])
}

func TestCloseObject_NothingRunning(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)

	result, err := coordinator.CloseObject(context.Background(), "obj-cafe", utc(15, 22, 0))
	require.NoError(t, err)
	assert.True(t, result.ObjectClosed)
	assert.Empty(t, result.ClosedShifts)
}

// =============================================================================
// AUTO-CLOSE
// =============================================================================

func TestAutoClose_PrefersPlannedEnd(t *testing.T) {
	// GIVEN: A shift on an entry planned to end 17:00
	// WHEN: Sweeping before and after that instant
	// THEN: Not due before; closed exactly AT the planned end after

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 9, 0), End: utc(15, 17, 0),
	})
	require.NoError(t, err)
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 9, 0),
	})
	require.NoError(t, err)

	early, err := coordinator.AutoClose(ctx, utc(15, 16, 0))
	require.NoError(t, err)
	assert.Empty(t, early.Closed)
	assert.Equal(t, 1, early.Skipped)

	late, err := coordinator.AutoClose(ctx, utc(15, 18, 0))
	require.NoError(t, err)
	assert.Equal(t, []core.ShiftID{shift.ID}, late.Closed)

	closed, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.EndAt)
	assert.True(t, closed.EndAt.Equal(utc(15, 17, 0)), "closed at the planned end, not the sweep instant")
	assert.True(t, closed.AutoClosed)
	assert.True(t, closed.BasePay.Equal(core.NewMoney(160.00)), "8h x 20.00")

	assert.Equal(t, 1, eventKinds(t, store)[core.EventShiftAutoClosed])
}

func TestAutoClose_OpenAfterPlannedEndUsesObjectClosing(t *testing.T) {
	// GIVEN: An entry planned 09:00-17:00 whose shift only opens at 18:00
	// WHEN: Sweeping after the cafe's closing time
	// THEN: The elapsed plan is ignored and the shift closes at 22:00
	//       Berlin instead of failing with an end before its start

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 9, 0), End: utc(15, 17, 0),
	})
	require.NoError(t, err)
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 18, 0),
	})
	require.NoError(t, err)

	result, err := coordinator.AutoClose(ctx, utc(16, 12, 0))
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Equal(t, []core.ShiftID{shift.ID}, result.Closed)

	closed, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ShiftCompleted, closed.Status)
	assert.True(t, closed.AutoClosed)
	require.NotNil(t, closed.EndAt)
	assert.True(t, closed.EndAt.Equal(utc(15, 21, 0)), "22:00 Berlin closing, end = %s", closed.EndAt)
	assert.True(t, closed.BasePay.Equal(core.NewMoney(60.00)), "3h x 20.00")

	// The sweep must not wedge: a second pass finds nothing active.
	again, err := coordinator.AutoClose(ctx, utc(16, 12, 0))
	require.NoError(t, err)
	assert.Empty(t, again.Errors)
	assert.Empty(t, again.Closed)
}

func TestAutoClose_ObjectClosingFallback(t *testing.T) {
	// GIVEN: A spontaneous shift (no plan) at the cafe closing 22:00 Berlin
	// THEN: The cutoff is 21:00 UTC (CET is +01:00 in November)

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0),
	})
	require.NoError(t, err)

	early, err := coordinator.AutoClose(ctx, utc(15, 20, 59))
	require.NoError(t, err)
	assert.Equal(t, 1, early.Skipped)

	due, err := coordinator.AutoClose(ctx, utc(15, 21, 0))
	require.NoError(t, err)
	require.Equal(t, []core.ShiftID{shift.ID}, due.Closed)

	closed, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.EndAt)
	assert.True(t, closed.EndAt.Equal(utc(15, 21, 0)))
}

func TestAutoClose_OvernightRollsToNextClosing(t *testing.T) {
	// GIVEN: A shift opened 23:30 local, after the 22:00 closing
	// WHEN: Sweeping the same night and then the next evening
	// THEN: The cutoff is the NEXT day's closing, never an instant before
	//       the shift started

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	// 22:30 UTC = 23:30 Berlin on Nov 15.
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 22, 30),
	})
	require.NoError(t, err)

	sameNight, err := coordinator.AutoClose(ctx, utc(15, 23, 59))
	require.NoError(t, err)
	assert.Equal(t, 1, sameNight.Skipped)

	nextEvening, err := coordinator.AutoClose(ctx, utc(16, 21, 30))
	require.NoError(t, err)
	require.Equal(t, []core.ShiftID{shift.ID}, nextEvening.Closed)

	closed, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.EndAt)
	assert.True(t, closed.EndAt.Equal(utc(16, 21, 0)), "next day's closing in UTC")
}

func TestAutoClose_MidnightFallbackWithoutClosingTime(t *testing.T) {
	// GIVEN: An open-ended object (no closing time) in UTC
	// THEN: The cutoff is the midnight ending the start day

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	require.NoError(t, store.CreateObject(ctx, core.WorkObject{
		ID: "obj-open", OwnerID: testOwner, UnitID: "unit-1", Name: "Open-ended",
		Timezone: "UTC", Active: true,
	}))

	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-open", At: utc(15, 14, 0),
	})
	require.NoError(t, err)

	result, err := coordinator.AutoClose(ctx, utc(16, 0, 0))
	require.NoError(t, err)
	require.Equal(t, []core.ShiftID{shift.ID}, result.Closed)

	closed, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.EndAt)
	assert.True(t, closed.EndAt.Equal(utc(16, 0, 0)))
}
