/*
Package payroll derives money movements from finalized shifts.

PURPOSE:
  Two periodic jobs live here. The AdjustmentEngine turns each completed
  shift into signed adjustment rows (base pay, late penalty, task
  bonus/penalty). The PeriodBuilder aggregates those rows into one
  payroll entry per employee per payment period.

IDEMPOTENCY:
  Both jobs are safe to re-run. Automatic adjustments are upserted on the
  natural key (shift, kind, task); payroll entries on (employee,
  period_start, period_end). A second identical run reports the rows as
  unchanged and writes nothing.

ADJUSTMENT RULES (per completed shift):
  base_pay      = worked hours x effective rate, recomputed at process
                  time from the stored instants. The engine's numbers are
                  authoritative; Shift.BasePay is a display value.
  late_penalty  = -lateness_minutes x per-minute amount, only when the
                  shift has a plan and lateness exceeds the effective
                  threshold. The full lateness is charged, not the excess.
  task_penalty  = one row per mandatory task left incomplete. A zero
                  configured amount falls back to Config.DefaultTaskPenalty:
                  a mandatory task always has consequence.
  task_bonus    = one row per optional task completed with a non-zero
                  amount. Completing mandatory work earns nothing extra.
  Task rows exist only under a payment system with task pay enabled.

ORDERING:
  Adjustments are computed strictly after close: the engine only ever
  reads completed shifts, so end instants and task states are final.

SEE ALSO:
  - builder.go: Aggregation into payroll entries
  - lifecycle/: Produces the completed shifts consumed here
*/
package payroll

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config carries the engine's policy parameters.
type Config struct {
	// DefaultTaskPenalty is the positive magnitude charged for an
	// incomplete mandatory task whose configured amount is zero.
	DefaultTaskPenalty core.Money
}

func DefaultConfig() Config {
	return Config{DefaultTaskPenalty: core.NewMoney(50.00)}
}

// =============================================================================
// ADJUSTMENT ENGINE
// =============================================================================

type AdjustmentEngine struct {
	store    core.TxStore
	resolver core.SettingsResolver
	config   Config
	now      func() time.Time
}

func NewAdjustmentEngine(store core.TxStore, config Config) *AdjustmentEngine {
	return &AdjustmentEngine{
		store:    store,
		resolver: core.SettingsResolver{Units: store},
		config:   config,
		now:      time.Now,
	}
}

// AdjustmentResult summarizes one engine run.
type AdjustmentResult struct {
	Processed        int             `json:"processed"`
	Created          int             `json:"created"`
	Updated          int             `json:"updated"`
	SkippedDuplicate int             `json:"skipped_duplicate"`
	Errors           []core.RunError `json:"errors,omitempty"`
}

// ProcessWindow processes every completed shift whose work date falls in
// [from, to]. The work date is the shift's start instant seen in the
// object's time zone, so the query window is widened before filtering.
func (e *AdjustmentEngine) ProcessWindow(ctx context.Context, from, to core.Date) (AdjustmentResult, error) {
	// Widen by a day each way to cover every offset from UTC-12 to
	// UTC+14 plus overnight shifts, then filter precisely per object.
	queryFrom := from.AddDays(-1).StartOfDayIn(time.UTC)
	queryTo := to.AddDays(2).StartOfDayIn(time.UTC)

	shifts, err := e.store.ListCompletedShifts(ctx, queryFrom, queryTo)
	if err != nil {
		return AdjustmentResult{}, err
	}

	objects := map[core.ObjectID]core.WorkObject{}
	var inWindow []core.Shift
	var result AdjustmentResult
	for _, shift := range shifts {
		object, err := e.objectFor(ctx, shift.ObjectID, objects)
		if err != nil {
			result.Errors = append(result.Errors, core.NewRunError("shift:"+string(shift.ID), err))
			continue
		}
		loc, err := core.LoadLocation(object.Timezone)
		if err != nil {
			result.Errors = append(result.Errors, core.NewRunError("shift:"+string(shift.ID), err))
			continue
		}
		workDate := core.WorkDate(shift.StartAt, loc)
		if workDate.Before(from) || workDate.After(to) {
			continue
		}
		inWindow = append(inWindow, shift)
	}

	run := e.ProcessShifts(ctx, inWindow)
	run.Errors = append(result.Errors, run.Errors...)
	return run, nil
}

// ProcessShifts applies the adjustment rules to each shift. Per-shift
// failures are recorded and never abort the batch.
func (e *AdjustmentEngine) ProcessShifts(ctx context.Context, shifts []core.Shift) AdjustmentResult {
	var result AdjustmentResult
	for _, shift := range shifts {
		outcome, err := e.processShift(ctx, shift)
		if err != nil {
			result.Errors = append(result.Errors, core.NewRunError("shift:"+string(shift.ID), err))
			continue
		}
		result.Processed++
		result.Created += outcome.created
		result.Updated += outcome.updated
		result.SkippedDuplicate += outcome.unchanged
	}
	if result.Created > 0 || result.Updated > 0 || len(result.Errors) > 0 {
		log.Printf("[Payroll] adjustments: %d shifts, %d created, %d updated, %d unchanged, %d errors",
			result.Processed, result.Created, result.Updated, result.SkippedDuplicate, len(result.Errors))
	}
	return result
}

type shiftOutcome struct {
	created   int
	updated   int
	unchanged int
}

func (e *AdjustmentEngine) processShift(ctx context.Context, shift core.Shift) (shiftOutcome, error) {
	var outcome shiftOutcome

	if shift.Status != core.ShiftCompleted || shift.EndAt == nil {
		return outcome, &core.NotActiveError{Kind: "shift", ID: string(shift.ID), Status: string(shift.Status)}
	}

	object, err := e.store.GetObject(ctx, shift.ObjectID)
	if err != nil {
		return outcome, err
	}
	contract, err := e.store.FindContract(ctx, shift.EmployeeID, object.OwnerID)
	if err != nil {
		return outcome, err
	}
	eff, err := e.resolver.Resolve(ctx, contract, object)
	if err != nil {
		return outcome, err
	}

	var adjustments []core.PayrollAdjustment

	// Base pay, recomputed from the stored instants.
	hours := core.MoneyFromDecimal(hoursBetween(shift.StartAt, *shift.EndAt))
	basePay := eff.Rate.Mul(hours.Value).Round2()
	adjustments = append(adjustments, e.autoAdjustment(shift, core.AdjustBasePay, basePay, nil, "hours x effective rate"))

	// Late penalty when the shift had a plan.
	if shift.EntryID != nil {
		entry, err := e.store.GetEntry(ctx, *shift.EntryID)
		if err != nil {
			return outcome, err
		}
		lateness := LatenessMinutes(entry.PlannedStart, shift.StartAt)
		if lateness > eff.Late.ThresholdMinutes {
			penalty := eff.Late.PenaltyPerMinute.MulInt(lateness).Round2()
			if !penalty.IsZero() {
				adjustments = append(adjustments, e.autoAdjustment(shift, core.AdjustLatePenalty, penalty.Neg(), nil, "late arrival"))
			}
		}
	}

	// Task consequences only under a task-aware payment system.
	tasksEnabled, err := e.tasksEnabled(ctx, eff)
	if err != nil {
		return outcome, err
	}
	if tasksEnabled {
		tasks, err := e.store.ListTasksByShift(ctx, shift.ID)
		if err != nil {
			return outcome, err
		}
		for _, task := range tasks {
			taskAdj, ok := e.taskAdjustment(shift, task)
			if ok {
				adjustments = append(adjustments, taskAdj)
			}
		}
	}

	err = e.store.WithTx(ctx, func(tx core.Store) error {
		for _, adj := range adjustments {
			written, err := tx.UpsertAutoAdjustment(ctx, adj)
			if err != nil {
				return err
			}
			switch written {
			case core.UpsertCreated:
				outcome.created++
			case core.UpsertUpdated:
				outcome.updated++
			case core.UpsertUnchanged:
				outcome.unchanged++
			}
			if written != core.UpsertUnchanged {
				event := core.NewEvent(core.EventAdjustmentApplied, e.now()).WithShift(shift).
					With("kind", string(adj.Kind)).
					With("amount", adj.Amount.String())
				if err := tx.AppendEvent(ctx, event); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return shiftOutcome{}, err
	}
	return outcome, nil
}

// taskAdjustment maps one task's final state to its adjustment, if any.
//
//   - mandatory, incomplete: penalty of the configured magnitude, or the
//     default penalty when configured zero
//   - optional, completed, non-zero amount: bonus of the configured amount
//   - everything else: no row
func (e *AdjustmentEngine) taskAdjustment(shift core.Shift, task core.TaskAssignment) (core.PayrollAdjustment, bool) {
	taskID := task.ID
	switch {
	case task.Mandatory && !task.Completed:
		magnitude := task.Amount
		if magnitude.IsNegative() {
			magnitude = magnitude.Neg()
		}
		if magnitude.IsZero() {
			magnitude = e.config.DefaultTaskPenalty
		}
		adj := e.autoAdjustment(shift, core.AdjustTaskPenalty, magnitude.Neg(), &taskID, "mandatory task incomplete: "+task.Text)
		return adj, true

	case !task.Mandatory && task.Completed && !task.Amount.IsZero():
		adj := e.autoAdjustment(shift, core.AdjustTaskBonus, task.Amount, &taskID, "task completed: "+task.Text)
		return adj, true
	}
	return core.PayrollAdjustment{}, false
}

func (e *AdjustmentEngine) autoAdjustment(shift core.Shift, kind core.AdjustmentKind, amount core.Money, taskID *core.TaskID, note string) core.PayrollAdjustment {
	now := e.now().UTC()
	return core.PayrollAdjustment{
		ID:         core.AdjustmentID(core.NewID()),
		ShiftID:    shift.ID,
		EmployeeID: shift.EmployeeID,
		ObjectID:   shift.ObjectID,
		Kind:       kind,
		Amount:     amount,
		Automatic:  true,
		TaskID:     taskID,
		Note:       note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// tasksEnabled resolves the effective payment system's kind. No system
// configured means plain hourly: no task pay.
func (e *AdjustmentEngine) tasksEnabled(ctx context.Context, eff core.EffectiveSettings) (bool, error) {
	if eff.SystemID == nil {
		return false, nil
	}
	system, err := e.store.GetSystem(ctx, *eff.SystemID)
	if err != nil {
		return false, err
	}
	return system.Kind.TasksEnabled(), nil
}

// =============================================================================
// MANUAL ADJUSTMENTS
// =============================================================================

// AddManual appends an operator-entered adjustment to a shift. Manual
// rows are append-only and never touched by the periodic jobs.
func (e *AdjustmentEngine) AddManual(ctx context.Context, shiftID core.ShiftID, amount core.Money, note string) (core.PayrollAdjustment, error) {
	shift, err := e.store.GetShift(ctx, shiftID)
	if err != nil {
		return core.PayrollAdjustment{}, err
	}
	if shift.Status == core.ShiftCancelled {
		return core.PayrollAdjustment{}, &core.NotActiveError{Kind: "shift", ID: string(shiftID), Status: string(shift.Status)}
	}

	now := e.now().UTC()
	adj := core.PayrollAdjustment{
		ID:         core.AdjustmentID(core.NewID()),
		ShiftID:    shift.ID,
		EmployeeID: shift.EmployeeID,
		ObjectID:   shift.ObjectID,
		Kind:       core.AdjustManual,
		Amount:     amount,
		Automatic:  false,
		Note:       note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = e.store.WithTx(ctx, func(tx core.Store) error {
		if err := tx.CreateAdjustment(ctx, adj); err != nil {
			return err
		}
		event := core.NewEvent(core.EventAdjustmentApplied, now).WithShift(shift).
			With("kind", string(core.AdjustManual)).
			With("amount", amount.String())
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return core.PayrollAdjustment{}, err
	}
	return adj, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// LatenessMinutes returns whole minutes of late arrival, zero for early
// or on-time starts.
func LatenessMinutes(plannedStart, actualStart time.Time) int {
	late := actualStart.Sub(plannedStart)
	if late <= 0 {
		return 0
	}
	return int(late / time.Minute)
}

// hoursBetween returns worked hours at whole-minute precision.
func hoursBetween(start, end time.Time) decimal.Decimal {
	minutes := int64(end.Sub(start) / time.Minute)
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60))
}

func (e *AdjustmentEngine) objectFor(ctx context.Context, id core.ObjectID, cache map[core.ObjectID]core.WorkObject) (core.WorkObject, error) {
	if object, ok := cache[id]; ok {
		return object, nil
	}
	object, err := e.store.GetObject(ctx, id)
	if err != nil {
		return core.WorkObject{}, err
	}
	cache[id] = object
	return object, nil
}
