/*
builder.go - Daily payroll-entry aggregation

PURPOSE:
  For every active payment schedule due on the target date, aggregates
  the period's adjustments into one payroll entry per employee and
  advances consumed monthly instances.

GOVERNED OBJECT SET:
  A schedule governs the objects whose unit chain resolves to it via
  EffectiveScheduleForUnit. This is deliberately NOT "all objects of the
  schedule's owner": a child unit overridden to another schedule takes
  its objects out of the parent schedule's runs. Object-to-schedule
  resolution happens exactly once per object per run; a second schedule
  claiming an already-claimed object is logged and skipped.

FREEZE RULE:
  Draft entries are updated in place on re-runs. Approved and paid
  entries are never touched; the run records a skip reason instead.

SEE ALSO:
  - engine.go: Produces the adjustments aggregated here
  - core/period.go: Payday matching and instance advancement
*/
package payroll

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// PERIOD BUILDER
// =============================================================================

type PeriodBuilder struct {
	store    core.TxStore
	resolver core.SettingsResolver
	now      func() time.Time
}

func NewPeriodBuilder(store core.TxStore) *PeriodBuilder {
	return &PeriodBuilder{
		store:    store,
		resolver: core.SettingsResolver{Units: store},
		now:      time.Now,
	}
}

// BuildResult summarizes one builder run.
type BuildResult struct {
	Date             core.Date       `json:"date"`
	SchedulesMatched int             `json:"schedules_matched"`
	EntriesCreated   int             `json:"entries_created"`
	EntriesUpdated   int             `json:"entries_updated"`
	EntriesUnchanged int             `json:"entries_unchanged"`
	SkippedObjects   []core.RunError `json:"skipped_objects,omitempty"`
	SkippedEntries   []core.RunError `json:"skipped_entries,omitempty"`
	Errors           []core.RunError `json:"errors,omitempty"`
}

type scheduleMatch struct {
	schedule core.PaymentSchedule
	period   core.Period
}

// BuildForDate runs the builder for one payday. Failures on individual
// schedules, objects, or employees are recorded on the result and never
// abort the remaining work.
func (b *PeriodBuilder) BuildForDate(ctx context.Context, date core.Date) (BuildResult, error) {
	result := BuildResult{Date: date}

	schedules, err := b.store.ListActiveSchedules(ctx)
	if err != nil {
		return result, err
	}

	var matches []scheduleMatch
	for _, schedule := range schedules {
		period, ok, ambiguous := schedule.PeriodFor(date)
		if ambiguous {
			log.Printf("[Payroll] schedule %s matches %s more than once, using first instance", schedule.ID, date)
		}
		if !ok {
			continue
		}
		matches = append(matches, scheduleMatch{schedule: schedule, period: period})
	}
	result.SchedulesMatched = len(matches)
	if len(matches) == 0 {
		return result, nil
	}

	// Object-to-schedule resolution happens once per run. A second
	// schedule claiming a claimed object indicates misconfiguration.
	claims := map[core.ObjectID]core.ScheduleID{}

	for _, match := range matches {
		b.buildSchedule(ctx, match, claims, &result)
	}

	log.Printf("[Payroll] build %s: %d schedules due, %d entries created, %d updated, %d unchanged, %d errors",
		date, result.SchedulesMatched, result.EntriesCreated, result.EntriesUpdated, result.EntriesUnchanged, len(result.Errors))
	return result, nil
}

func (b *PeriodBuilder) buildSchedule(ctx context.Context, match scheduleMatch, claims map[core.ObjectID]core.ScheduleID, result *BuildResult) {
	schedule := match.schedule
	period := match.period

	objects, err := b.store.ListObjects(ctx, schedule.OwnerID)
	if err != nil {
		result.Errors = append(result.Errors, core.NewRunError("schedule:"+string(schedule.ID), err))
		return
	}

	var governed []core.WorkObject
	for _, object := range objects {
		if !object.Active {
			continue
		}
		effective, err := b.resolver.EffectiveScheduleForUnit(ctx, object.UnitID)
		if err != nil {
			result.Errors = append(result.Errors, core.NewRunError("object:"+string(object.ID), err))
			continue
		}
		if effective == nil || *effective != schedule.ID {
			continue
		}
		if prior, claimed := claims[object.ID]; claimed && prior != schedule.ID {
			ambiguous := &core.AmbiguousScheduleError{ObjectID: object.ID, First: prior, Second: schedule.ID}
			log.Printf("[Payroll] %v", ambiguous)
			result.SkippedObjects = append(result.SkippedObjects, core.NewRunError("object:"+string(object.ID), ambiguous))
			continue
		}
		claims[object.ID] = schedule.ID
		governed = append(governed, object)
	}

	totals := map[core.EmployeeID]*entryTotals{}
	for _, object := range governed {
		b.accumulateObject(ctx, object, period, totals, result)
	}

	// Deterministic employee order keeps re-runs and logs comparable.
	employees := make([]core.EmployeeID, 0, len(totals))
	for employee := range totals {
		employees = append(employees, employee)
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i] < employees[j] })

	for _, employee := range employees {
		b.upsertEntry(ctx, schedule, period, employee, totals[employee], result)
	}

	// A consumed monthly instance advances even when nobody worked the
	// period: its payday equality match would otherwise never fire again.
	if schedule.Frequency == core.FrequencyMonthly && len(schedule.Instances) > 0 {
		if advanced := schedule.ConsumePayday(result.Date); advanced > 0 {
			if err := b.store.UpdateSchedule(ctx, schedule); err != nil {
				result.Errors = append(result.Errors, core.NewRunError("schedule:"+string(schedule.ID), err))
			}
		}
	}
}

type entryTotals struct {
	base      core.Money
	bonus     core.Money
	deduction core.Money
}

func (b *PeriodBuilder) accumulateObject(ctx context.Context, object core.WorkObject, period core.Period, totals map[core.EmployeeID]*entryTotals, result *BuildResult) {
	loc, err := core.LoadLocation(object.Timezone)
	if err != nil {
		result.Errors = append(result.Errors, core.NewRunError("object:"+string(object.ID), err))
		return
	}
	queryFrom := period.Start.AddDays(-1).StartOfDayIn(time.UTC)
	queryTo := period.End.AddDays(2).StartOfDayIn(time.UTC)

	shifts, err := b.store.ListCompletedShiftsByObject(ctx, object.ID, queryFrom, queryTo)
	if err != nil {
		result.Errors = append(result.Errors, core.NewRunError("object:"+string(object.ID), err))
		return
	}
	for _, shift := range shifts {
		if !period.Contains(core.WorkDate(shift.StartAt, loc)) {
			continue
		}
		adjustments, err := b.store.ListAdjustmentsByShift(ctx, shift.ID)
		if err != nil {
			result.Errors = append(result.Errors, core.NewRunError("shift:"+string(shift.ID), err))
			continue
		}
		acc := totals[shift.EmployeeID]
		if acc == nil {
			acc = &entryTotals{base: core.ZeroMoney(), bonus: core.ZeroMoney(), deduction: core.ZeroMoney()}
			totals[shift.EmployeeID] = acc
		}
		for _, adj := range adjustments {
			switch {
			case adj.Kind == core.AdjustBasePay:
				acc.base = acc.base.Add(adj.Amount)
			case adj.Amount.IsPositive():
				acc.bonus = acc.bonus.Add(adj.Amount)
			case adj.Amount.IsNegative():
				acc.deduction = acc.deduction.Add(adj.Amount.Neg())
			}
		}
	}
}

func (b *PeriodBuilder) upsertEntry(ctx context.Context, schedule core.PaymentSchedule, period core.Period, employee core.EmployeeID, acc *entryTotals, result *BuildResult) {
	existing, err := b.store.GetPayrollEntryByKey(ctx, employee, period.Start, period.End)
	if err != nil {
		result.Errors = append(result.Errors, core.NewRunError("payroll:"+string(employee), err))
		return
	}
	if existing != nil && existing.Status != core.PayrollDraft {
		reason := "entry is " + string(existing.Status) + ", not rebuilt"
		result.SkippedEntries = append(result.SkippedEntries, core.RunError{Unit: "payroll:" + string(employee), Reason: reason})
		return
	}

	now := b.now().UTC()
	entry := core.PayrollEntry{
		ID:              core.PayrollEntryID(core.NewID()),
		OwnerID:         schedule.OwnerID,
		EmployeeID:      employee,
		ScheduleID:      schedule.ID,
		PeriodStart:     period.Start,
		PeriodEnd:       period.End,
		BaseAmount:      acc.base.Round2(),
		BonusAmount:     acc.bonus.Round2(),
		DeductionAmount: acc.deduction.Round2(),
		Total:           acc.base.Add(acc.bonus).Sub(acc.deduction).Round2(),
		Status:          core.PayrollDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = b.store.WithTx(ctx, func(tx core.Store) error {
		outcome, err := tx.UpsertPayrollEntry(ctx, entry)
		if err != nil {
			return err
		}
		switch outcome {
		case core.UpsertCreated:
			result.EntriesCreated++
		case core.UpsertUpdated:
			result.EntriesUpdated++
		case core.UpsertUnchanged:
			result.EntriesUnchanged++
			return nil
		}
		kind := core.EventPayrollEntryCreated
		if outcome == core.UpsertUpdated {
			kind = core.EventPayrollEntryUpdated
		}
		event := core.NewEvent(kind, now)
		emp := employee
		event.EmployeeID = &emp
		event = event.With("period", period.String()).With("total", entry.Total.String())
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		result.Errors = append(result.Errors, core.NewRunError("payroll:"+string(employee), err))
	}
}
