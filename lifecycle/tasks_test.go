package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/lifecycle"
)

// =============================================================================
// MATERIALIZATION
// =============================================================================

func TestMaterialize_ObjectDefaultsWhenNoEntry(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	object := seedWorkplace(t, store)

	tasks := coordinator.Tasks().Materialize(core.Shift{ID: "shift-1"}, nil, object)

	require.Len(t, tasks, 2)
	assert.Equal(t, "Close out the register", tasks[0].Text)
	assert.True(t, tasks[0].Mandatory)
	assert.Equal(t, core.TaskSourceObject, tasks[0].Source)
	assert.Equal(t, "Restock the display fridge", tasks[1].Text)
	assert.True(t, tasks[1].RequiresMedia)
	assert.Equal(t, core.ShiftID("shift-1"), tasks[1].ShiftID)
}

func TestMaterialize_SlotListReplacesDefaults(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	object := seedWorkplace(t, store)

	entry := &core.ScheduleEntry{
		TaskListDefined: true,
		TaskTemplates:   []core.TaskDefinition{{Text: "Deep-clean the espresso machine", Mandatory: true}},
	}
	tasks := coordinator.Tasks().Materialize(core.Shift{ID: "shift-1"}, entry, object)

	require.Len(t, tasks, 1)
	assert.Equal(t, "Deep-clean the espresso machine", tasks[0].Text)
	assert.Equal(t, core.TaskSourceSlot, tasks[0].Source)
}

func TestMaterialize_EmptySlotListSuppressesDefaults(t *testing.T) {
	// An explicitly empty list is a decision, not an omission: the shift
	// gets no tasks even though the object defines defaults.

	coordinator, store := newTestCoordinator(t)
	object := seedWorkplace(t, store)

	entry := &core.ScheduleEntry{TaskListDefined: true}
	tasks := coordinator.Tasks().Materialize(core.Shift{ID: "shift-1"}, entry, object)
	assert.Empty(t, tasks)
}

func TestMaterialize_IncludeFlagMergesDefaultsBack(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	object := seedWorkplace(t, store)

	entry := &core.ScheduleEntry{
		TaskListDefined:    true,
		TaskTemplates:      []core.TaskDefinition{{Text: "Set up the terrace"}},
		IncludeObjectTasks: true,
	}
	tasks := coordinator.Tasks().Materialize(core.Shift{ID: "shift-1"}, entry, object)

	require.Len(t, tasks, 3)
	assert.Equal(t, core.TaskSourceSlot, tasks[0].Source)
	assert.Equal(t, "Set up the terrace", tasks[0].Text)
	assert.Equal(t, core.TaskSourceObject, tasks[1].Source)
	assert.Equal(t, core.TaskSourceObject, tasks[2].Source)
}

func TestMaterialize_UndefinedListFallsBackToDefaults(t *testing.T) {
	// Templates without the defined flag are leftovers, not a list.

	coordinator, store := newTestCoordinator(t)
	object := seedWorkplace(t, store)

	entry := &core.ScheduleEntry{
		TaskTemplates: []core.TaskDefinition{{Text: "Should not appear"}},
	}
	tasks := coordinator.Tasks().Materialize(core.Shift{ID: "shift-1"}, entry, object)

	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, core.TaskSourceObject, task.Source)
	}
}

func TestOpen_PersistsSlotAndObjectTasks(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe",
		Start: utc(15, 9, 0), End: utc(15, 17, 0),
		TaskListDefined:    true,
		TaskTemplates:      []core.TaskDefinition{{Text: "Count the float", Mandatory: true}},
		IncludeObjectTasks: true,
	})
	require.NoError(t, err)

	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", EntryID: &entry.ID, At: utc(15, 9, 0),
	})
	require.NoError(t, err)

	tasks, err := store.ListTasksByShift(ctx, shift.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	texts := make([]string, 0, len(tasks))
	for _, task := range tasks {
		texts = append(texts, task.Text)
	}
	assert.ElementsMatch(t, []string{
		"Count the float", "Close out the register", "Restock the display fridge",
	}, texts)
}

// =============================================================================
// COMPLETION
// =============================================================================

func openWithDefaultTasks(t *testing.T, coordinator *lifecycle.Coordinator) (core.Shift, []core.TaskAssignment) {
	ctx := context.Background()
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0),
	})
	require.NoError(t, err)

	// seedWorkplace defines two defaults; pick them out by media flag.
	tasks, err := coordinator.Tasks().OutstandingMandatory(ctx, shift.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	return shift, tasks
}

func TestComplete_MediaTaskNeedsEvidence(t *testing.T) {
	// GIVEN: The fridge task, which requires a photo
	// WHEN: Completing without, with an empty, and with a real reference
	// THEN: Only the real reference goes through

	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: testEmp, ObjectID: "obj-cafe", At: utc(15, 8, 0),
	})
	require.NoError(t, err)

	all, err := store.ListTasksByShift(ctx, shift.ID)
	require.NoError(t, err)
	var fridge core.TaskAssignment
	for _, task := range all {
		if task.RequiresMedia {
			fridge = task
		}
	}
	require.NotEmpty(t, fridge.ID)

	_, err = coordinator.Tasks().Complete(ctx, fridge.ID, nil)
	var evidence *core.EvidenceRequiredError
	require.ErrorAs(t, err, &evidence)
	assert.Equal(t, fridge.ID, evidence.TaskID)
	assert.Equal(t, fridge.Text, evidence.Text)

	empty := ""
	_, err = coordinator.Tasks().Complete(ctx, fridge.ID, &empty)
	assert.ErrorIs(t, err, core.ErrEvidenceRequired)

	ref := "media/2025/fridge-42.jpg"
	done, err := coordinator.Tasks().Complete(ctx, fridge.ID, &ref)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	stored, err := store.GetTask(ctx, fridge.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EvidenceRef)
	assert.Equal(t, ref, *stored.EvidenceRef)
	require.NotNil(t, stored.CompletedAt)

	assert.Equal(t, 1, eventKinds(t, store)[core.EventTaskCompleted])
}

func TestComplete_SecondCallIsNoOp(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	_, tasks := openWithDefaultTasks(t, coordinator)
	register := tasks[0]

	first, err := coordinator.Tasks().Complete(ctx, register.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)

	second, err := coordinator.Tasks().Complete(ctx, register.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, second.CompletedAt)
	assert.WithinDuration(t, *first.CompletedAt, *second.CompletedAt, time.Second)

	// No second completion event.
	assert.Equal(t, 1, eventKinds(t, store)[core.EventTaskCompleted])
}

func TestComplete_RejectedOnCancelledShift(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	shift, tasks := openWithDefaultTasks(t, coordinator)
	require.NoError(t, store.CancelShift(ctx, shift.ID, utc(15, 9, 0)))

	_, err := coordinator.Tasks().Complete(ctx, tasks[0].ID, nil)
	var notActive *core.NotActiveError
	require.ErrorAs(t, err, &notActive)
	assert.Equal(t, "shift", notActive.Kind)
}

func TestComplete_UnknownTask(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)

	_, err := coordinator.Tasks().Complete(context.Background(), "task-missing", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestOutstandingMandatory_ShrinksAsTasksComplete(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	seedWorkplace(t, store)
	ctx := context.Background()

	shift, tasks := openWithDefaultTasks(t, coordinator)
	require.Equal(t, "Close out the register", tasks[0].Text)

	_, err := coordinator.Tasks().Complete(ctx, tasks[0].ID, nil)
	require.NoError(t, err)

	outstanding, err := coordinator.Tasks().OutstandingMandatory(ctx, shift.ID)
	require.NoError(t, err)
	assert.Empty(t, outstanding)
}
