package lifecycle

import (
	"context"
	"time"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// TASK LEDGER
// =============================================================================

// TaskLedger materializes task assignments when a shift opens and gates
// their completion on evidence. Task rows are immutable snapshots: later
// edits to slot templates or object defaults never rewrite an open
// shift's checklist.
type TaskLedger struct {
	store core.TxStore
	now   func() time.Time
}

func NewTaskLedger(store core.TxStore) *TaskLedger {
	return &TaskLedger{store: store, now: time.Now}
}

// Materialize builds the task set for a freshly opened shift.
//
// Source precedence:
//   - entry with a defined task list: the slot templates verbatim. An
//     explicitly empty list means "no tasks" and suppresses object
//     defaults; only the include flag merges them back in.
//   - otherwise: the object's default tasks, if any.
func (l *TaskLedger) Materialize(shift core.Shift, entry *core.ScheduleEntry, object core.WorkObject) []core.TaskAssignment {
	var assignments []core.TaskAssignment

	appendDefs := func(defs []core.TaskDefinition, source core.TaskSource) {
		for _, def := range defs {
			assignments = append(assignments, core.TaskAssignment{
				ID:            core.TaskID(core.NewID()),
				ShiftID:       shift.ID,
				Text:          def.Text,
				Mandatory:     def.Mandatory,
				Amount:        def.Amount,
				RequiresMedia: def.RequiresMedia,
				Source:        source,
			})
		}
	}

	if entry != nil && entry.TaskListDefined {
		appendDefs(entry.TaskTemplates, core.TaskSourceSlot)
		if entry.IncludeObjectTasks {
			appendDefs(object.TaskDefaults, core.TaskSourceObject)
		}
		return assignments
	}
	appendDefs(object.TaskDefaults, core.TaskSourceObject)
	return assignments
}

// Complete marks a task done. Tasks requiring media are rejected without
// an evidence reference; tasks on a cancelled shift are rejected
// outright. Completing an already-completed task is a no-op returning
// the current row.
func (l *TaskLedger) Complete(ctx context.Context, id core.TaskID, evidenceRef *string) (core.TaskAssignment, error) {
	task, err := l.store.GetTask(ctx, id)
	if err != nil {
		return core.TaskAssignment{}, err
	}
	if task.Completed {
		return task, nil
	}
	shift, err := l.store.GetShift(ctx, task.ShiftID)
	if err != nil {
		return core.TaskAssignment{}, err
	}
	if shift.Status == core.ShiftCancelled {
		return core.TaskAssignment{}, &core.NotActiveError{Kind: "shift", ID: string(shift.ID), Status: string(shift.Status)}
	}
	if task.RequiresMedia && (evidenceRef == nil || *evidenceRef == "") {
		return core.TaskAssignment{}, &core.EvidenceRequiredError{TaskID: task.ID, Text: task.Text}
	}

	at := l.now().UTC()
	err = l.store.WithTx(ctx, func(tx core.Store) error {
		if err := tx.CompleteTask(ctx, id, at, evidenceRef); err != nil {
			return err
		}
		event := core.NewEvent(core.EventTaskCompleted, at).WithShift(shift)
		event = event.With("task_id", string(task.ID)).With("task", task.Text)
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return core.TaskAssignment{}, err
	}

	task.Completed = true
	task.CompletedAt = &at
	task.EvidenceRef = evidenceRef
	return task, nil
}

// OutstandingMandatory reports the incomplete mandatory tasks of a
// shift, newest materialization order preserved. Used by transports to
// warn at close time; closing itself is never blocked on tasks.
func (l *TaskLedger) OutstandingMandatory(ctx context.Context, shiftID core.ShiftID) ([]core.TaskAssignment, error) {
	tasks, err := l.store.ListTasksByShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	var outstanding []core.TaskAssignment
	for _, task := range tasks {
		if task.Mandatory && !task.Completed {
			outstanding = append(outstanding, task)
		}
	}
	return outstanding, nil
}
