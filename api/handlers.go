/*
handlers.go - HTTP API handlers for the shift engine

PURPOSE:
  Exposes the shift lifecycle and payroll engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Configuration:
    GET/POST /v1/units            Organizational tree
    POST     /v1/units/{id}/move  Re-parent (cycle-checked)
    GET/POST /v1/objects          Work objects
    POST     /v1/objects/{id}/close  End-of-day close with shift sweep
    GET/POST /v1/systems          Payment systems
    GET/POST /v1/schedules        Payment schedules
    GET      /v1/schedules/{id}/period  Period lookup for a date
    POST     /v1/contracts        Contracts
    GET      /v1/contracts/settings  Resolved effective settings

  Lifecycle:
    POST /v1/entries              Plan a shift
    POST /v1/entries/{id}/cancel  Cancel with cascade
    POST /v1/shifts/open          Open (one active per employee)
    POST /v1/shifts/{id}/close    Close and price
    POST /v1/tasks/{id}/complete  Complete a task (evidence gating)

  Payroll:
    POST /v1/adjustments          Manual adjustment
    GET  /v1/payroll/entries      Statements
    POST /v1/payroll/entries/{id}/approve  Freeze a draft statement
    POST /v1/payroll/entries/{id}/pay      Mark an approved statement paid
    POST /v1/payroll/build        Build statements for a date
    POST /v1/payroll/adjustments/run  Process a closed-shift window
    POST /v1/jobs/run             Full daily chain

ERROR HANDLING:
  Domain errors map to HTTP status by sentinel:
  - 400: validation, malformed input
  - 404: missing entity
  - 409: conflict (active shift exists, wrong state, evidence missing,
         inactive contract, ambiguous schedule)
  - 500: everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/lifecycle"
	"github.com/warp/shift-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       core.TxStore
	Factory     *factory.Factory
	Coordinator *lifecycle.Coordinator
	Engine      *payroll.AdjustmentEngine
	Builder     *payroll.PeriodBuilder

	// Scheduler is set by the caller that owns the ticker; /v1/jobs/run
	// needs it for forced re-runs.
	Scheduler *JobScheduler

	resolver core.SettingsResolver
}

// NewHandler creates a new handler with the given store.
func NewHandler(store core.TxStore, config payroll.Config) *Handler {
	return &Handler{
		Store:       store,
		Factory:     factory.NewFactory(),
		Coordinator: lifecycle.NewCoordinator(store),
		Engine:      payroll.NewAdjustmentEngine(store, config),
		Builder:     payroll.NewPeriodBuilder(store),
		resolver:    core.SettingsResolver{Units: store},
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

// CreateUnit creates an organizational unit.
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OwnerID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "owner_id and name are required", nil)
		return
	}

	unit := core.OrganizationalUnit{
		ID:          unitIDOrNew(req.ID),
		OwnerID:     core.OwnerID(req.OwnerID),
		Name:        req.Name,
		ParentID:    unitIDPtr(req.ParentID),
		SystemID:    systemIDPtr(req.SystemID),
		ScheduleID:  scheduleIDPtr(req.ScheduleID),
		Late:        latePolicyFromDTO(req.LatePolicy),
		LateInherit: req.LateInherit,
		Active:      true,
	}

	ctx := r.Context()
	if unit.ParentID != nil {
		if err := core.ValidateUnitMove(ctx, h.Store, unit.ID, unit.ParentID); err != nil {
			writeError(w, statusFor(err), "Invalid parent", err)
			return
		}
	}
	if err := h.Store.CreateUnit(ctx, unit); err != nil {
		writeError(w, statusFor(err), "Failed to create unit", err)
		return
	}

	writeJSON(w, http.StatusCreated, toUnitDTO(unit))
}

// GetUnit returns a single unit.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.Store.GetUnit(r.Context(), core.UnitID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get unit", err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitDTO(unit))
}

// ListUnits returns all units for an owner.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_id")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner_id query parameter is required", nil)
		return
	}

	units, err := h.Store.ListUnits(r.Context(), core.OwnerID(owner))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list units", err)
		return
	}

	dtos := make([]UnitDTO, len(units))
	for i, unit := range units {
		dtos[i] = toUnitDTO(unit)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MoveUnit re-parents a unit after a cycle check.
func (h *Handler) MoveUnit(w http.ResponseWriter, r *http.Request) {
	id := core.UnitID(chi.URLParam(r, "id"))

	var req MoveUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	newParent := unitIDPtr(req.NewParentID)

	err := h.Store.WithTx(ctx, func(s core.Store) error {
		unit, err := s.GetUnit(ctx, id)
		if err != nil {
			return err
		}
		if err := core.ValidateUnitMove(ctx, s, id, newParent); err != nil {
			return err
		}
		unit.ParentID = newParent
		return s.UpdateUnit(ctx, unit)
	})
	if err != nil {
		writeError(w, statusFor(err), "Failed to move unit", err)
		return
	}

	unit, err := h.Store.GetUnit(ctx, id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get unit", err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitDTO(unit))
}

// GetUnitSchedule returns the payment schedule governing a unit, walking
// ancestors until one is found.
func (h *Handler) GetUnitSchedule(w http.ResponseWriter, r *http.Request) {
	id := core.UnitID(chi.URLParam(r, "id"))

	scheduleID, err := h.resolver.EffectiveScheduleForUnit(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to resolve schedule", err)
		return
	}

	resp := map[string]any{"unit_id": string(id), "schedule_id": nil}
	if scheduleID != nil {
		resp["schedule_id"] = string(*scheduleID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// OBJECT HANDLERS
// =============================================================================

// CreateObject creates a work object.
func (h *Handler) CreateObject(w http.ResponseWriter, r *http.Request) {
	var req CreateObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OwnerID == "" || req.UnitID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "owner_id, unit_id, and name are required", nil)
		return
	}
	if _, err := core.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "Unknown timezone", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Store.GetUnit(ctx, core.UnitID(req.UnitID)); err != nil {
		writeError(w, statusFor(err), "Unit lookup failed", err)
		return
	}

	object := core.WorkObject{
		ID:       objectIDOrNew(req.ID),
		OwnerID:  core.OwnerID(req.OwnerID),
		UnitID:   core.UnitID(req.UnitID),
		Name:     req.Name,
		Timezone: req.Timezone,
		SystemID: systemIDPtr(req.SystemID),
		Rate:     moneyPtr(req.Rate),
		Late:     latePolicyFromDTO(req.LatePolicy),
		Active:   true,
	}
	if req.Closing != nil {
		closing, err := core.ParseDayTime(*req.Closing)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid closing time (use HH:MM)", err)
			return
		}
		object.Closing = &closing
	}
	if len(req.Tasks) > 0 {
		defs, err := h.Factory.FromTaskJSON(req.Tasks)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid task defaults", err)
			return
		}
		object.TaskDefaults = defs
	}

	if err := h.Store.CreateObject(ctx, object); err != nil {
		writeError(w, statusFor(err), "Failed to create object", err)
		return
	}
	writeJSON(w, http.StatusCreated, toObjectDTO(object, h.Factory))
}

// GetObject returns a single object.
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	object, err := h.Store.GetObject(r.Context(), core.ObjectID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get object", err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectDTO(object, h.Factory))
}

// ListObjects returns all objects for an owner.
func (h *Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_id")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner_id query parameter is required", nil)
		return
	}

	objects, err := h.Store.ListObjects(r.Context(), core.OwnerID(owner))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list objects", err)
		return
	}

	dtos := make([]ObjectDTO, len(objects))
	for i, object := range objects {
		dtos[i] = toObjectDTO(object, h.Factory)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CloseObject performs the end-of-day close, sweeping active shifts first.
func (h *Handler) CloseObject(w http.ResponseWriter, r *http.Request) {
	id := core.ObjectID(chi.URLParam(r, "id"))

	var req CloseObjectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	at, err := parseOptionalTime(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid at timestamp (use RFC3339)", err)
		return
	}

	result, err := h.Coordinator.CloseObject(r.Context(), id, at)
	if err != nil {
		writeError(w, statusFor(err), "Failed to close object", err)
		return
	}

	resp := CloseObjectResponse{
		ObjectID:     string(result.ObjectID),
		ObjectClosed: result.ObjectClosed,
		ClosedShifts: make([]string, len(result.ClosedShifts)),
		Errors:       result.Errors,
	}
	for i, shiftID := range result.ClosedShifts {
		resp.ClosedShifts[i] = string(shiftID)
	}

	status := http.StatusOK
	if !result.ObjectClosed {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// SYSTEM HANDLERS
// =============================================================================

// CreateSystem creates a payment system.
func (h *Handler) CreateSystem(w http.ResponseWriter, r *http.Request) {
	var req CreateSystemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OwnerID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "owner_id and name are required", nil)
		return
	}

	var kind core.PaymentSystemKind
	switch req.Kind {
	case string(core.SystemHourly):
		kind = core.SystemHourly
	case string(core.SystemHourlyTasks):
		kind = core.SystemHourlyTasks
	default:
		writeError(w, http.StatusBadRequest, "kind must be hourly or hourly_tasks", nil)
		return
	}

	system := core.PaymentSystem{
		ID:      systemIDOrNew(req.ID),
		OwnerID: core.OwnerID(req.OwnerID),
		Name:    req.Name,
		Kind:    kind,
	}
	if err := h.Store.CreateSystem(r.Context(), system); err != nil {
		writeError(w, statusFor(err), "Failed to create system", err)
		return
	}

	writeJSON(w, http.StatusCreated, SystemDTO{
		ID:      string(system.ID),
		OwnerID: string(system.OwnerID),
		Name:    system.Name,
		Kind:    string(system.Kind),
	})
}

// ListSystems returns all payment systems for an owner.
func (h *Handler) ListSystems(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_id")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner_id query parameter is required", nil)
		return
	}

	systems, err := h.Store.ListSystems(r.Context(), core.OwnerID(owner))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list systems", err)
		return
	}

	dtos := make([]SystemDTO, len(systems))
	for i, system := range systems {
		dtos[i] = SystemDTO{
			ID:      string(system.ID),
			OwnerID: string(system.OwnerID),
			Name:    system.Name,
			Kind:    string(system.Kind),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// CreateSchedule creates a payment schedule from its wire shape.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	schedule, err := h.Factory.FromScheduleJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schedule configuration", err)
		return
	}
	if err := h.Store.CreateSchedule(r.Context(), schedule); err != nil {
		writeError(w, statusFor(err), "Failed to create schedule", err)
		return
	}

	writeJSON(w, http.StatusCreated, toScheduleDTO(schedule, h.Factory))
}

// GetSchedule returns a single schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.Store.GetSchedule(r.Context(), core.ScheduleID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(schedule, h.Factory))
}

// ListSchedules returns all active schedules.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Store.ListActiveSchedules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schedules", err)
		return
	}

	dtos := make([]ScheduleDTO, len(schedules))
	for i, schedule := range schedules {
		dtos[i] = toScheduleDTO(schedule, h.Factory)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSchedulePeriod returns the working period a schedule produces for a
// date, if the date is one of its paydays.
func (h *Handler) GetSchedulePeriod(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.Store.GetSchedule(r.Context(), core.ScheduleID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get schedule", err)
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required", nil)
		return
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	period, ok, ambiguous := schedule.PeriodFor(date)
	dto := PeriodDTO{Matched: ok, Ambiguous: ambiguous}
	if ok {
		dto.Start = period.Start.String()
		dto.End = period.End.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// CreateContract creates an active contract.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OwnerID == "" || req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "owner_id and employee_id are required", nil)
		return
	}

	contract := core.Contract{
		ID:               contractIDOrNew(req.ID),
		OwnerID:          core.OwnerID(req.OwnerID),
		EmployeeID:       core.EmployeeID(req.EmployeeID),
		Status:           core.ContractActive,
		Rate:             moneyPtr(req.Rate),
		RatePrecedence:   req.RatePrecedence,
		SystemID:         systemIDPtr(req.SystemID),
		SystemPrecedence: req.SystemPrecedence,
	}
	for _, id := range req.AllowedObjectIDs {
		contract.AllowedObjectIDs = append(contract.AllowedObjectIDs, core.ObjectID(id))
	}
	for _, p := range req.Permissions {
		contract.Permissions = append(contract.Permissions, core.Permission(p))
	}

	if err := h.Store.CreateContract(r.Context(), contract); err != nil {
		writeError(w, statusFor(err), "Failed to create contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(contract))
}

// GetContract returns a single contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	contract, err := h.Store.GetContract(r.Context(), core.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(contract))
}

// TerminateContract transitions a contract to terminated. Open shifts can
// still be closed afterwards; new ones cannot be opened.
func (h *Handler) TerminateContract(w http.ResponseWriter, r *http.Request) {
	id := core.ContractID(chi.URLParam(r, "id"))
	ctx := r.Context()

	contract, err := h.Store.GetContract(ctx, id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get contract", err)
		return
	}

	contract.Status = core.ContractTerminated
	if err := h.Store.UpdateContract(ctx, contract); err != nil {
		writeError(w, statusFor(err), "Failed to terminate contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(contract))
}

// GetEffectiveSettings resolves the pay configuration for one
// (employee, object) pair and reports where each field came from.
func (h *Handler) GetEffectiveSettings(w http.ResponseWriter, r *http.Request) {
	employee := r.URL.Query().Get("employee_id")
	objectID := r.URL.Query().Get("object_id")
	if employee == "" || objectID == "" {
		writeError(w, http.StatusBadRequest, "employee_id and object_id query parameters are required", nil)
		return
	}

	ctx := r.Context()
	object, err := h.Store.GetObject(ctx, core.ObjectID(objectID))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get object", err)
		return
	}
	contract, err := h.Store.FindContract(ctx, core.EmployeeID(employee), object.OwnerID)
	if err != nil {
		writeError(w, statusFor(err), "Failed to find contract", err)
		return
	}

	eff, err := h.resolver.Resolve(ctx, contract, object)
	if err != nil {
		writeError(w, statusFor(err), "Failed to resolve settings", err)
		return
	}

	dto := SettingsDTO{
		Rate:                 eff.Rate.String(),
		RateSource:           string(eff.RateSource),
		SystemSource:         string(eff.SystemSource),
		ScheduleSource:       string(eff.ScheduleSource),
		LateThresholdMinutes: eff.Late.ThresholdMinutes,
		LatePenaltyPerMinute: eff.Late.PenaltyPerMinute.String(),
		LateSource:           string(eff.LateSource),
	}
	if eff.SystemID != nil {
		s := string(*eff.SystemID)
		dto.SystemID = &s
	}
	if eff.ScheduleID != nil {
		s := string(*eff.ScheduleID)
		dto.ScheduleID = &s
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// PlanEntry plans a shift.
func (h *Handler) PlanEntry(w http.ResponseWriter, r *http.Request) {
	var req PlanEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use RFC3339)", err)
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use RFC3339)", err)
		return
	}

	plan := lifecycle.PlanRequest{
		EmployeeID:         core.EmployeeID(req.EmployeeID),
		ObjectID:           core.ObjectID(req.ObjectID),
		Start:              start,
		End:                end,
		IncludeObjectTasks: req.IncludeObjectTasks,
	}
	if req.Tasks != nil {
		plan.TaskListDefined = true
		defs, err := h.Factory.FromTaskJSON(*req.Tasks)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tasks", err)
			return
		}
		plan.TaskTemplates = defs
	}

	entry, err := h.Coordinator.PlanEntry(r.Context(), plan)
	if err != nil {
		writeError(w, statusFor(err), "Failed to plan entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry, h.Factory))
}

// ListEntries returns planned shifts for an employee.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	employee := r.URL.Query().Get("employee_id")
	if employee == "" {
		writeError(w, http.StatusBadRequest, "employee_id query parameter is required", nil)
		return
	}

	entries, err := h.Store.ListEntriesByEmployee(r.Context(), core.EmployeeID(employee))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, entry := range entries {
		dtos[i] = toEntryDTO(entry, h.Factory)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CancelEntry cancels a planned entry, cascading to attached active shifts.
func (h *Handler) CancelEntry(w http.ResponseWriter, r *http.Request) {
	result, err := h.Coordinator.CancelEntry(r.Context(), core.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to cancel entry", err)
		return
	}

	resp := CancelEntryResponse{
		EntryID:         string(result.EntryID),
		CancelledShifts: make([]string, len(result.CancelledShifts)),
	}
	for i, shiftID := range result.CancelledShifts {
		resp.CancelledShifts[i] = string(shiftID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// OpenShift opens a shift for an employee at an object.
func (h *Handler) OpenShift(w http.ResponseWriter, r *http.Request) {
	var req OpenShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at, err := parseOptionalTime(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid at timestamp (use RFC3339)", err)
		return
	}

	open := lifecycle.OpenRequest{
		EmployeeID: core.EmployeeID(req.EmployeeID),
		ObjectID:   core.ObjectID(req.ObjectID),
		At:         at,
		Location:   req.Location,
	}
	if req.EntryID != nil {
		id := core.EntryID(*req.EntryID)
		open.EntryID = &id
	}

	shift, err := h.Coordinator.Open(r.Context(), open)
	if err != nil {
		writeError(w, statusFor(err), "Failed to open shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(shift))
}

// GetShift returns a single shift.
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Store.GetShift(r.Context(), core.ShiftID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// CloseShift closes a shift, computing hours and base pay.
func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	id := core.ShiftID(chi.URLParam(r, "id"))

	var req CloseShiftRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	at, err := parseOptionalTime(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid at timestamp (use RFC3339)", err)
		return
	}

	shift, err := h.Coordinator.Close(r.Context(), id, at, req.Location)
	if err != nil {
		writeError(w, statusFor(err), "Failed to close shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// ListShifts returns shifts for an employee, optionally filtered by status.
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	employee := r.URL.Query().Get("employee_id")
	if employee == "" {
		writeError(w, http.StatusBadRequest, "employee_id query parameter is required", nil)
		return
	}

	var status *core.ShiftStatus
	if s := r.URL.Query().Get("status"); s != "" {
		switch core.ShiftStatus(s) {
		case core.ShiftActive, core.ShiftCompleted, core.ShiftCancelled:
			st := core.ShiftStatus(s)
			status = &st
		default:
			writeError(w, http.StatusBadRequest, "status must be active, completed, or cancelled", nil)
			return
		}
	}

	shifts, err := h.Store.ListShiftsByEmployee(r.Context(), core.EmployeeID(employee), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(shifts))
}

// ListShiftTasks returns the task assignments of a shift.
func (h *Handler) ListShiftTasks(w http.ResponseWriter, r *http.Request) {
	id := core.ShiftID(chi.URLParam(r, "id"))
	ctx := r.Context()

	if _, err := h.Store.GetShift(ctx, id); err != nil {
		writeError(w, statusFor(err), "Failed to get shift", err)
		return
	}
	tasks, err := h.Store.ListTasksByShift(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}

	dtos := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		dtos[i] = toTaskDTO(task)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListShiftAdjustments returns the adjustment lines of a shift.
func (h *Handler) ListShiftAdjustments(w http.ResponseWriter, r *http.Request) {
	id := core.ShiftID(chi.URLParam(r, "id"))
	ctx := r.Context()

	if _, err := h.Store.GetShift(ctx, id); err != nil {
		writeError(w, statusFor(err), "Failed to get shift", err)
		return
	}
	adjustments, err := h.Store.ListAdjustmentsByShift(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list adjustments", err)
		return
	}

	dtos := make([]AdjustmentDTO, len(adjustments))
	for i, adj := range adjustments {
		dtos[i] = toAdjustmentDTO(adj)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// CompleteTask marks a task done, enforcing evidence requirements.
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "id"))

	var req CompleteTaskRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	task, err := h.Coordinator.Tasks().Complete(r.Context(), id, req.EvidenceRef)
	if err != nil {
		writeError(w, statusFor(err), "Failed to complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CreateManualAdjustment adds a signed manual adjustment to a shift.
func (h *Handler) CreateManualAdjustment(w http.ResponseWriter, r *http.Request) {
	var req ManualAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ShiftID == "" || req.Amount == "" {
		writeError(w, http.StatusBadRequest, "shift_id and amount are required", nil)
		return
	}

	adj, err := h.Engine.AddManual(r.Context(), core.ShiftID(req.ShiftID), core.ParseMoney(req.Amount), req.Note)
	if err != nil {
		writeError(w, statusFor(err), "Failed to create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// ListPayrollEntries returns payroll statements matching the filters.
func (h *Handler) ListPayrollEntries(w http.ResponseWriter, r *http.Request) {
	var filter core.PayrollFilter
	if s := r.URL.Query().Get("employee_id"); s != "" {
		id := core.EmployeeID(s)
		filter.EmployeeID = &id
	}
	if s := r.URL.Query().Get("owner_id"); s != "" {
		id := core.OwnerID(s)
		filter.OwnerID = &id
	}
	if s := r.URL.Query().Get("status"); s != "" {
		switch core.PayrollStatus(s) {
		case core.PayrollDraft, core.PayrollApproved, core.PayrollPaid:
			st := core.PayrollStatus(s)
			filter.Status = &st
		default:
			writeError(w, http.StatusBadRequest, "status must be draft, approved, or paid", nil)
			return
		}
	}

	entries, err := h.Store.ListPayrollEntries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payroll entries", err)
		return
	}

	dtos := make([]PayrollEntryDTO, len(entries))
	for i, entry := range entries {
		dtos[i] = toPayrollEntryDTO(entry)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApprovePayrollEntry moves a draft statement to approved. Approved
// entries are frozen: period builds report them as skipped instead of
// rewriting totals.
func (h *Handler) ApprovePayrollEntry(w http.ResponseWriter, r *http.Request) {
	h.movePayrollEntry(w, r, []core.PayrollStatus{core.PayrollDraft}, core.PayrollApproved, core.EventPayrollEntryApproved)
}

// PayPayrollEntry marks an approved statement as paid out.
func (h *Handler) PayPayrollEntry(w http.ResponseWriter, r *http.Request) {
	h.movePayrollEntry(w, r, []core.PayrollStatus{core.PayrollApproved}, core.PayrollPaid, core.EventPayrollEntryPaid)
}

func (h *Handler) movePayrollEntry(w http.ResponseWriter, r *http.Request, from []core.PayrollStatus, to core.PayrollStatus, kind core.EventKind) {
	id := core.PayrollEntryID(chi.URLParam(r, "id"))

	err := h.Store.WithTx(r.Context(), func(tx core.Store) error {
		entry, err := tx.GetPayrollEntry(r.Context(), id)
		if err != nil {
			return err
		}
		if err := tx.TransitionPayrollEntry(r.Context(), id, from, to); err != nil {
			return err
		}
		event := core.NewEvent(kind, time.Now())
		emp := entry.EmployeeID
		event.EmployeeID = &emp
		event = event.With("period", core.Period{Start: entry.PeriodStart, End: entry.PeriodEnd}.String()).
			With("total", entry.Total.String())
		return tx.AppendEvent(r.Context(), event)
	})
	if err != nil {
		writeError(w, statusFor(err), "Failed to update payroll entry", err)
		return
	}

	entry, err := h.Store.GetPayrollEntry(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to load payroll entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollEntryDTO(entry))
}

// BuildPayroll builds payroll statements for the schedules whose payday
// falls on the given date.
func (h *Handler) BuildPayroll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	date, err := dateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Builder.BuildForDate(r.Context(), date)
	if err != nil {
		writeError(w, statusFor(err), "Failed to build payroll", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunAdjustments processes all shifts completed in a date window.
func (h *Handler) RunAdjustments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	from, err := core.ParseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := core.ParseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from", nil)
		return
	}

	result, err := h.Engine.ProcessWindow(r.Context(), from, to)
	if err != nil {
		writeError(w, statusFor(err), "Failed to process adjustments", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// JOB HANDLERS
// =============================================================================

// RunJobs triggers the daily batch chain for a date.
func (h *Handler) RunJobs(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Scheduler not configured", nil)
		return
	}

	var req RunJobsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	date, err := dateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	runs := h.Scheduler.RunNow(r.Context(), date, req.Force)
	dtos := make([]JobRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toJobRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListJobRuns returns recent batch runs.
func (h *Handler) ListJobRuns(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)

	runs, err := h.Store.ListJobRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list job runs", err)
		return
	}

	dtos := make([]JobRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toJobRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// ListEvents returns the domain event feed.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since timestamp (use RFC3339)", err)
			return
		}
		since = t
	}
	limit := intQuery(r, "limit", 100)

	events, err := h.Store.ListEvents(r.Context(), since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, event := range events {
		dtos[i] = toEventDTO(event)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case core.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case core.IsConflict(err),
		errors.Is(err, core.ErrNotActive),
		errors.Is(err, core.ErrContractInactive),
		errors.Is(err, core.ErrEvidenceRequired),
		errors.Is(err, core.ErrCycleDetected),
		errors.Is(err, core.ErrAmbiguousSchedule):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func dateOrToday(s string) (core.Date, error) {
	if s == "" {
		return core.Today(nil), nil
	}
	return core.ParseDate(s)
}

func intQuery(r *http.Request, name string, fallback int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func toScheduleDTO(schedule core.PaymentSchedule, f *factory.Factory) ScheduleDTO {
	return ScheduleDTO{
		ID:      string(schedule.ID),
		OwnerID: string(schedule.OwnerID),
		Name:    schedule.Name,
		Active:  schedule.Active,
		Config:  f.ScheduleToJSON(schedule),
	}
}

func latePolicyFromDTO(dto *LatePolicyDTO) *core.LatePolicy {
	if dto == nil {
		return nil
	}
	return &core.LatePolicy{
		ThresholdMinutes: dto.ThresholdMinutes,
		PenaltyPerMinute: core.ParseMoney(dto.PenaltyPerMinute),
	}
}

func moneyPtr(s *string) *core.Money {
	if s == nil {
		return nil
	}
	m := core.ParseMoney(*s)
	return &m
}

func unitIDPtr(s *string) *core.UnitID {
	if s == nil || *s == "" {
		return nil
	}
	id := core.UnitID(*s)
	return &id
}

func systemIDPtr(s *string) *core.SystemID {
	if s == nil || *s == "" {
		return nil
	}
	id := core.SystemID(*s)
	return &id
}

func scheduleIDPtr(s *string) *core.ScheduleID {
	if s == nil || *s == "" {
		return nil
	}
	id := core.ScheduleID(*s)
	return &id
}

func unitIDOrNew(s string) core.UnitID {
	if s == "" {
		return core.UnitID(core.NewID())
	}
	return core.UnitID(s)
}

func objectIDOrNew(s string) core.ObjectID {
	if s == "" {
		return core.ObjectID(core.NewID())
	}
	return core.ObjectID(s)
}

func systemIDOrNew(s string) core.SystemID {
	if s == "" {
		return core.SystemID(core.NewID())
	}
	return core.SystemID(s)
}

func contractIDOrNew(s string) core.ContractID {
	if s == "" {
		return core.ContractID(core.NewID())
	}
	return core.ContractID(s)
}
