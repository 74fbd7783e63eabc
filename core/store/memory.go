// Package store provides core.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements core.TxStore with maps under an RWMutex. Copies are
// shallow below the top level; it is a test/dev store, reference semantics
// for the SQLite implementation.
type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes WithTx blocks

	units       map[core.UnitID]core.OrganizationalUnit
	objects     map[core.ObjectID]core.WorkObject
	systems     map[core.SystemID]core.PaymentSystem
	schedules   map[core.ScheduleID]core.PaymentSchedule
	contracts   map[core.ContractID]core.Contract
	entries     map[core.EntryID]core.ScheduleEntry
	shifts      map[core.ShiftID]core.Shift
	tasks       map[core.TaskID]core.TaskAssignment
	adjustments map[core.AdjustmentID]core.PayrollAdjustment
	payroll     map[core.PayrollEntryID]core.PayrollEntry
	events      []core.Event
	jobRuns     []core.JobRun
}

func NewMemory() *Memory {
	return &Memory{
		units:       make(map[core.UnitID]core.OrganizationalUnit),
		objects:     make(map[core.ObjectID]core.WorkObject),
		systems:     make(map[core.SystemID]core.PaymentSystem),
		schedules:   make(map[core.ScheduleID]core.PaymentSchedule),
		contracts:   make(map[core.ContractID]core.Contract),
		entries:     make(map[core.EntryID]core.ScheduleEntry),
		shifts:      make(map[core.ShiftID]core.Shift),
		tasks:       make(map[core.TaskID]core.TaskAssignment),
		adjustments: make(map[core.AdjustmentID]core.PayrollAdjustment),
		payroll:     make(map[core.PayrollEntryID]core.PayrollEntry),
	}
}

var _ core.TxStore = (*Memory)(nil)

// =============================================================================
// UNITS
// =============================================================================

func (m *Memory) CreateUnit(_ context.Context, unit core.OrganizationalUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[unit.ID]; ok {
		return &core.ValidationError{Field: "unit.id", Reason: "already exists"}
	}
	m.units[unit.ID] = unit
	return nil
}

func (m *Memory) GetUnit(_ context.Context, id core.UnitID) (core.OrganizationalUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	unit, ok := m.units[id]
	if !ok {
		return core.OrganizationalUnit{}, &core.NotFoundError{Kind: "unit", ID: string(id)}
	}
	return unit, nil
}

func (m *Memory) UpdateUnit(_ context.Context, unit core.OrganizationalUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[unit.ID]; !ok {
		return &core.NotFoundError{Kind: "unit", ID: string(unit.ID)}
	}
	m.units[unit.ID] = unit
	return nil
}

func (m *Memory) ListUnits(_ context.Context, owner core.OwnerID) ([]core.OrganizationalUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.OrganizationalUnit
	for _, unit := range m.units {
		if unit.OwnerID == owner {
			result = append(result, unit)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// OBJECTS
// =============================================================================

func (m *Memory) CreateObject(_ context.Context, object core.WorkObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[object.ID]; ok {
		return &core.ValidationError{Field: "object.id", Reason: "already exists"}
	}
	m.objects[object.ID] = object
	return nil
}

func (m *Memory) GetObject(_ context.Context, id core.ObjectID) (core.WorkObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	object, ok := m.objects[id]
	if !ok {
		return core.WorkObject{}, &core.NotFoundError{Kind: "object", ID: string(id)}
	}
	return object, nil
}

func (m *Memory) UpdateObject(_ context.Context, object core.WorkObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[object.ID]; !ok {
		return &core.NotFoundError{Kind: "object", ID: string(object.ID)}
	}
	m.objects[object.ID] = object
	return nil
}

func (m *Memory) ListObjects(_ context.Context, owner core.OwnerID) ([]core.WorkObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.WorkObject
	for _, object := range m.objects {
		if object.OwnerID == owner {
			result = append(result, object)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// PAYMENT SYSTEMS
// =============================================================================

func (m *Memory) CreateSystem(_ context.Context, system core.PaymentSystem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.systems[system.ID]; ok {
		return &core.ValidationError{Field: "system.id", Reason: "already exists"}
	}
	m.systems[system.ID] = system
	return nil
}

func (m *Memory) GetSystem(_ context.Context, id core.SystemID) (core.PaymentSystem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	system, ok := m.systems[id]
	if !ok {
		return core.PaymentSystem{}, &core.NotFoundError{Kind: "payment system", ID: string(id)}
	}
	return system, nil
}

func (m *Memory) ListSystems(_ context.Context, owner core.OwnerID) ([]core.PaymentSystem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.PaymentSystem
	for _, system := range m.systems {
		if system.OwnerID == owner {
			result = append(result, system)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// PAYMENT SCHEDULES
// =============================================================================

func (m *Memory) CreateSchedule(_ context.Context, schedule core.PaymentSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[schedule.ID]; ok {
		return &core.ValidationError{Field: "schedule.id", Reason: "already exists"}
	}
	m.schedules[schedule.ID] = schedule
	return nil
}

func (m *Memory) GetSchedule(_ context.Context, id core.ScheduleID) (core.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schedule, ok := m.schedules[id]
	if !ok {
		return core.PaymentSchedule{}, &core.NotFoundError{Kind: "schedule", ID: string(id)}
	}
	return schedule, nil
}

func (m *Memory) UpdateSchedule(_ context.Context, schedule core.PaymentSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[schedule.ID]; !ok {
		return &core.NotFoundError{Kind: "schedule", ID: string(schedule.ID)}
	}
	m.schedules[schedule.ID] = schedule
	return nil
}

func (m *Memory) ListActiveSchedules(_ context.Context) ([]core.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.PaymentSchedule
	for _, schedule := range m.schedules {
		if schedule.Active {
			result = append(result, schedule)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (m *Memory) CreateContract(_ context.Context, contract core.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[contract.ID]; ok {
		return &core.ValidationError{Field: "contract.id", Reason: "already exists"}
	}
	m.contracts[contract.ID] = contract
	return nil
}

func (m *Memory) GetContract(_ context.Context, id core.ContractID) (core.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	contract, ok := m.contracts[id]
	if !ok {
		return core.Contract{}, &core.NotFoundError{Kind: "contract", ID: string(id)}
	}
	return contract, nil
}

func (m *Memory) UpdateContract(_ context.Context, contract core.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[contract.ID]; !ok {
		return &core.NotFoundError{Kind: "contract", ID: string(contract.ID)}
	}
	m.contracts[contract.ID] = contract
	return nil
}

func (m *Memory) FindContract(_ context.Context, employee core.EmployeeID, owner core.OwnerID) (core.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, contract := range m.contracts {
		if contract.EmployeeID == employee && contract.OwnerID == owner {
			return contract, nil
		}
	}
	return core.Contract{}, &core.NotFoundError{Kind: "contract", ID: string(employee) + "@" + string(owner)}
}

// =============================================================================
// SCHEDULE ENTRIES
// =============================================================================

func (m *Memory) CreateEntry(_ context.Context, entry core.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.ID]; ok {
		return &core.ValidationError{Field: "entry.id", Reason: "already exists"}
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id core.EntryID) (core.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return core.ScheduleEntry{}, &core.NotFoundError{Kind: "entry", ID: string(id)}
	}
	return entry, nil
}

func (m *Memory) TransitionEntry(_ context.Context, id core.EntryID, from []core.EntryStatus, to core.EntryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return &core.NotFoundError{Kind: "entry", ID: string(id)}
	}
	for _, status := range from {
		if entry.Status == status {
			entry.Status = to
			m.entries[id] = entry
			return nil
		}
	}
	return &core.NotActiveError{Kind: "entry", ID: string(id), Status: string(entry.Status)}
}

func (m *Memory) ListEntriesByEmployee(_ context.Context, employee core.EmployeeID) ([]core.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.ScheduleEntry
	for _, entry := range m.entries {
		if entry.EmployeeID == employee {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PlannedStart.Before(result[j].PlannedStart) })
	return result, nil
}

// =============================================================================
// SHIFTS
// =============================================================================

func (m *Memory) OpenShift(_ context.Context, shift core.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shifts {
		if existing.EmployeeID == shift.EmployeeID && existing.Status == core.ShiftActive {
			return &core.ConflictError{EmployeeID: shift.EmployeeID, ActiveShiftID: existing.ID}
		}
	}
	if _, ok := m.shifts[shift.ID]; ok {
		return &core.ValidationError{Field: "shift.id", Reason: "already exists"}
	}
	shift.Status = core.ShiftActive
	m.shifts[shift.ID] = shift
	return nil
}

func (m *Memory) GetShift(_ context.Context, id core.ShiftID) (core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	shift, ok := m.shifts[id]
	if !ok {
		return core.Shift{}, &core.NotFoundError{Kind: "shift", ID: string(id)}
	}
	return shift, nil
}

func (m *Memory) FindActiveShift(_ context.Context, employee core.EmployeeID) (*core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, shift := range m.shifts {
		if shift.EmployeeID == employee && shift.Status == core.ShiftActive {
			found := shift
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) CloseShift(_ context.Context, shift core.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.shifts[shift.ID]
	if !ok {
		return &core.NotFoundError{Kind: "shift", ID: string(shift.ID)}
	}
	if current.Status != core.ShiftActive {
		return &core.NotActiveError{Kind: "shift", ID: string(shift.ID), Status: string(current.Status)}
	}
	shift.Status = core.ShiftCompleted
	m.shifts[shift.ID] = shift
	return nil
}

func (m *Memory) CancelShift(_ context.Context, id core.ShiftID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shift, ok := m.shifts[id]
	if !ok {
		return &core.NotFoundError{Kind: "shift", ID: string(id)}
	}
	if shift.Status != core.ShiftActive {
		return &core.NotActiveError{Kind: "shift", ID: string(id), Status: string(shift.Status)}
	}
	end := at.UTC()
	shift.Status = core.ShiftCancelled
	shift.EndAt = &end
	m.shifts[id] = shift
	return nil
}

func (m *Memory) ListActiveShifts(_ context.Context) ([]core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.Shift
	for _, shift := range m.shifts {
		if shift.Status == core.ShiftActive {
			result = append(result, shift)
		}
	}
	sortShiftsByStart(result)
	return result, nil
}

func (m *Memory) ListActiveShiftsByObject(_ context.Context, object core.ObjectID) ([]core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.Shift
	for _, shift := range m.shifts {
		if shift.ObjectID == object && shift.Status == core.ShiftActive {
			result = append(result, shift)
		}
	}
	sortShiftsByStart(result)
	return result, nil
}

func (m *Memory) ListShiftsByEntry(_ context.Context, entry core.EntryID) ([]core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.Shift
	for _, shift := range m.shifts {
		if shift.EntryID != nil && *shift.EntryID == entry {
			result = append(result, shift)
		}
	}
	sortShiftsByStart(result)
	return result, nil
}

func (m *Memory) ListCompletedShifts(_ context.Context, from, to time.Time) ([]core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.Shift
	for _, shift := range m.shifts {
		if shift.Status != core.ShiftCompleted || shift.EndAt == nil {
			continue
		}
		if !shift.EndAt.Before(from) && shift.EndAt.Before(to) {
			result = append(result, shift)
		}
	}
	sortShiftsByStart(result)
	return result, nil
}

func (m *Memory) ListCompletedShiftsByObject(_ context.Context, object core.ObjectID, from, to time.Time) ([]core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.Shift
	for _, shift := range m.shifts {
		if shift.ObjectID != object || shift.Status != core.ShiftCompleted {
			continue
		}
		if !shift.StartAt.Before(from) && shift.StartAt.Before(to) {
			result = append(result, shift)
		}
	}
	sortShiftsByStart(result)
	return result, nil
}

func (m *Memory) ListShiftsByEmployee(_ context.Context, employee core.EmployeeID, status *core.ShiftStatus) ([]core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.Shift
	for _, shift := range m.shifts {
		if shift.EmployeeID != employee {
			continue
		}
		if status != nil && shift.Status != *status {
			continue
		}
		result = append(result, shift)
	}
	// Newest first for listings.
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.After(result[j].StartAt) })
	return result, nil
}

func sortShiftsByStart(shifts []core.Shift) {
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].StartAt.Equal(shifts[j].StartAt) {
			return shifts[i].ID < shifts[j].ID
		}
		return shifts[i].StartAt.Before(shifts[j].StartAt)
	})
}

// =============================================================================
// TASKS
// =============================================================================

func (m *Memory) CreateTasks(_ context.Context, tasks []core.TaskAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range tasks {
		if _, ok := m.tasks[task.ID]; ok {
			return &core.ValidationError{Field: "task.id", Reason: "already exists"}
		}
	}
	for _, task := range tasks {
		m.tasks[task.ID] = task
	}
	return nil
}

func (m *Memory) GetTask(_ context.Context, id core.TaskID) (core.TaskAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return core.TaskAssignment{}, &core.NotFoundError{Kind: "task", ID: string(id)}
	}
	return task, nil
}

func (m *Memory) CompleteTask(_ context.Context, id core.TaskID, at time.Time, evidenceRef *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return &core.NotFoundError{Kind: "task", ID: string(id)}
	}
	completedAt := at.UTC()
	task.Completed = true
	task.CompletedAt = &completedAt
	task.EvidenceRef = evidenceRef
	m.tasks[id] = task
	return nil
}

func (m *Memory) ListTasksByShift(_ context.Context, shift core.ShiftID) ([]core.TaskAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.TaskAssignment
	for _, task := range m.tasks {
		if task.ShiftID == shift {
			result = append(result, task)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Text == result[j].Text {
			return result[i].ID < result[j].ID
		}
		return result[i].Text < result[j].Text
	})
	return result, nil
}

// =============================================================================
// PAYROLL ADJUSTMENTS
// =============================================================================

func (m *Memory) UpsertAutoAdjustment(_ context.Context, adj core.PayrollAdjustment) (core.UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	adj.Automatic = true
	for id, existing := range m.adjustments {
		if !existing.Automatic || existing.ShiftID != adj.ShiftID || existing.Kind != adj.Kind {
			continue
		}
		if !sameTaskRef(existing.TaskID, adj.TaskID) {
			continue
		}
		if existing.Amount.Equal(adj.Amount) {
			return core.UpsertUnchanged, nil
		}
		existing.Amount = adj.Amount
		existing.Note = adj.Note
		existing.UpdatedAt = adj.UpdatedAt
		m.adjustments[id] = existing
		return core.UpsertUpdated, nil
	}
	m.adjustments[adj.ID] = adj
	return core.UpsertCreated, nil
}

func (m *Memory) CreateAdjustment(_ context.Context, adj core.PayrollAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.adjustments[adj.ID]; ok {
		return &core.ValidationError{Field: "adjustment.id", Reason: "already exists"}
	}
	m.adjustments[adj.ID] = adj
	return nil
}

func (m *Memory) ListAdjustmentsByShift(_ context.Context, shift core.ShiftID) ([]core.PayrollAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.PayrollAdjustment
	for _, adj := range m.adjustments {
		if adj.ShiftID == shift {
			result = append(result, adj)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Kind == result[j].Kind {
			return result[i].ID < result[j].ID
		}
		return result[i].Kind < result[j].Kind
	})
	return result, nil
}

func sameTaskRef(a, b *core.TaskID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// =============================================================================
// PAYROLL ENTRIES
// =============================================================================

func (m *Memory) GetPayrollEntry(_ context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.payroll[id]
	if !ok {
		return core.PayrollEntry{}, &core.NotFoundError{Kind: "payroll entry", ID: string(id)}
	}
	return entry, nil
}

func (m *Memory) GetPayrollEntryByKey(_ context.Context, employee core.EmployeeID, start, end core.Date) (*core.PayrollEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, entry := range m.payroll {
		if entry.EmployeeID == employee && entry.PeriodStart.Equal(start) && entry.PeriodEnd.Equal(end) {
			found := entry
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpsertPayrollEntry(_ context.Context, entry core.PayrollEntry) (core.UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.payroll {
		if existing.EmployeeID != entry.EmployeeID ||
			!existing.PeriodStart.Equal(entry.PeriodStart) ||
			!existing.PeriodEnd.Equal(entry.PeriodEnd) {
			continue
		}
		if existing.BaseAmount.Equal(entry.BaseAmount) &&
			existing.BonusAmount.Equal(entry.BonusAmount) &&
			existing.DeductionAmount.Equal(entry.DeductionAmount) &&
			existing.Total.Equal(entry.Total) {
			return core.UpsertUnchanged, nil
		}
		existing.BaseAmount = entry.BaseAmount
		existing.BonusAmount = entry.BonusAmount
		existing.DeductionAmount = entry.DeductionAmount
		existing.Total = entry.Total
		existing.ScheduleID = entry.ScheduleID
		existing.UpdatedAt = entry.UpdatedAt
		m.payroll[id] = existing
		return core.UpsertUpdated, nil
	}
	m.payroll[entry.ID] = entry
	return core.UpsertCreated, nil
}

func (m *Memory) TransitionPayrollEntry(_ context.Context, id core.PayrollEntryID, from []core.PayrollStatus, to core.PayrollStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.payroll[id]
	if !ok {
		return &core.NotFoundError{Kind: "payroll entry", ID: string(id)}
	}
	for _, status := range from {
		if entry.Status == status {
			entry.Status = to
			m.payroll[id] = entry
			return nil
		}
	}
	return &core.NotActiveError{Kind: "payroll entry", ID: string(id), Status: string(entry.Status)}
}

func (m *Memory) ListPayrollEntries(_ context.Context, filter core.PayrollFilter) ([]core.PayrollEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.PayrollEntry
	for _, entry := range m.payroll {
		if filter.EmployeeID != nil && entry.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.OwnerID != nil && entry.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != nil && entry.Status != *filter.Status {
			continue
		}
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PeriodStart.Equal(result[j].PeriodStart) {
			return result[i].EmployeeID < result[j].EmployeeID
		}
		return result[i].PeriodStart.Before(result[j].PeriodStart)
	})
	return result, nil
}

// =============================================================================
// EVENTS
// =============================================================================

func (m *Memory) AppendEvent(_ context.Context, event core.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *Memory) ListEvents(_ context.Context, since time.Time, limit int) ([]core.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []core.Event
	for _, event := range m.events {
		if event.OccurredAt.Before(since) {
			continue
		}
		result = append(result, event)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// =============================================================================
// JOB RUNS
// =============================================================================

func (m *Memory) CreateJobRun(_ context.Context, run core.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobRuns = append(m.jobRuns, run)
	return nil
}

func (m *Memory) FinishJobRun(_ context.Context, run core.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobRuns {
		if m.jobRuns[i].ID == run.ID {
			m.jobRuns[i] = run
			return nil
		}
	}
	return &core.NotFoundError{Kind: "job run", ID: run.ID}
}

func (m *Memory) IsJobComplete(_ context.Context, job core.JobName, target core.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, run := range m.jobRuns {
		if run.Job == job && run.TargetDate.Equal(target) && run.Status == core.JobCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListJobRuns(_ context.Context, limit int) ([]core.JobRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]core.JobRun, len(m.jobRuns))
	copy(result, m.jobRuns)
	// Newest first.
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot plus rollback
// =============================================================================

// WithTx executes fn against the store, rolling back to a snapshot when fn
// fails. Transactions are serialized; individual operations stay guarded
// by the inner mutex.
func (m *Memory) WithTx(_ context.Context, fn func(core.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snapshot := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	units       map[core.UnitID]core.OrganizationalUnit
	objects     map[core.ObjectID]core.WorkObject
	systems     map[core.SystemID]core.PaymentSystem
	schedules   map[core.ScheduleID]core.PaymentSchedule
	contracts   map[core.ContractID]core.Contract
	entries     map[core.EntryID]core.ScheduleEntry
	shifts      map[core.ShiftID]core.Shift
	tasks       map[core.TaskID]core.TaskAssignment
	adjustments map[core.AdjustmentID]core.PayrollAdjustment
	payroll     map[core.PayrollEntryID]core.PayrollEntry
	events      []core.Event
	jobRuns     []core.JobRun
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memorySnapshot{
		units:       cloneMap(m.units),
		objects:     cloneMap(m.objects),
		systems:     cloneMap(m.systems),
		schedules:   cloneMap(m.schedules),
		contracts:   cloneMap(m.contracts),
		entries:     cloneMap(m.entries),
		shifts:      cloneMap(m.shifts),
		tasks:       cloneMap(m.tasks),
		adjustments: cloneMap(m.adjustments),
		payroll:     cloneMap(m.payroll),
		events:      append([]core.Event{}, m.events...),
		jobRuns:     append([]core.JobRun{}, m.jobRuns...),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units = s.units
	m.objects = s.objects
	m.systems = s.systems
	m.schedules = s.schedules
	m.contracts = s.contracts
	m.entries = s.entries
	m.shifts = s.shifts
	m.tasks = s.tasks
	m.adjustments = s.adjustments
	m.payroll = s.payroll
	m.events = s.events
	m.jobRuns = s.jobRuns
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
