/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Money travels as decimal strings ("12.50"), never floats. Clients that
  need arithmetic parse them with a decimal library.

TIME:
  Instants are RFC3339 strings in UTC. Calendar dates are "YYYY-MM-DD".

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/factory.go: TaskJSON and ScheduleJSON wire shapes
*/
package api

import (
	"time"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/factory"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LatePolicyDTO represents a lateness policy.
type LatePolicyDTO struct {
	ThresholdMinutes int    `json:"threshold_minutes"`
	PenaltyPerMinute string `json:"penalty_per_minute"`
}

// UnitDTO represents an organizational unit in API responses.
type UnitDTO struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Name        string         `json:"name"`
	ParentID    *string        `json:"parent_id,omitempty"`
	SystemID    *string        `json:"system_id,omitempty"`
	ScheduleID  *string        `json:"schedule_id,omitempty"`
	LatePolicy  *LatePolicyDTO `json:"late_policy,omitempty"`
	LateInherit bool           `json:"late_inherit"`
	Active      bool           `json:"active"`
}

// CreateUnitRequest is the request to create a unit.
type CreateUnitRequest struct {
	ID          string         `json:"id,omitempty"`
	OwnerID     string         `json:"owner_id"`
	Name        string         `json:"name"`
	ParentID    *string        `json:"parent_id,omitempty"`
	SystemID    *string        `json:"system_id,omitempty"`
	ScheduleID  *string        `json:"schedule_id,omitempty"`
	LatePolicy  *LatePolicyDTO `json:"late_policy,omitempty"`
	LateInherit bool           `json:"late_inherit"`
}

// MoveUnitRequest re-parents a unit. A null parent makes it a root.
type MoveUnitRequest struct {
	NewParentID *string `json:"new_parent_id"`
}

// ObjectDTO represents a work object in API responses.
type ObjectDTO struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	UnitID     string            `json:"unit_id"`
	Name       string            `json:"name"`
	Timezone   string            `json:"timezone"`
	Closing    *string           `json:"closing,omitempty"` // "HH:MM"
	SystemID   *string           `json:"system_id,omitempty"`
	Rate       *string           `json:"rate,omitempty"`
	LatePolicy *LatePolicyDTO    `json:"late_policy,omitempty"`
	Tasks      []factory.TaskJSON `json:"tasks,omitempty"`
	Active     bool              `json:"active"`
}

// CreateObjectRequest is the request to create a work object.
type CreateObjectRequest struct {
	ID         string             `json:"id,omitempty"`
	OwnerID    string             `json:"owner_id"`
	UnitID     string             `json:"unit_id"`
	Name       string             `json:"name"`
	Timezone   string             `json:"timezone"`
	Closing    *string            `json:"closing,omitempty"`
	SystemID   *string            `json:"system_id,omitempty"`
	Rate       *string            `json:"rate,omitempty"`
	LatePolicy *LatePolicyDTO     `json:"late_policy,omitempty"`
	Tasks      []factory.TaskJSON `json:"tasks,omitempty"`
}

// CloseObjectRequest is the request to close an object for the day.
type CloseObjectRequest struct {
	At string `json:"at,omitempty"` // RFC3339; empty = now
}

// CloseObjectResponse reports what the close swept up.
type CloseObjectResponse struct {
	ObjectID     string          `json:"object_id"`
	ObjectClosed bool            `json:"object_closed"`
	ClosedShifts []string        `json:"closed_shifts"`
	Errors       []core.RunError `json:"errors,omitempty"`
}

// SystemDTO represents a payment system.
type SystemDTO struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
}

// CreateSystemRequest is the request to create a payment system.
type CreateSystemRequest struct {
	ID      string `json:"id,omitempty"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"` // "hourly" or "hourly_tasks"
}

// ScheduleDTO wraps the schedule wire shape.
type ScheduleDTO struct {
	ID      string               `json:"id"`
	OwnerID string               `json:"owner_id"`
	Name    string               `json:"name"`
	Active  bool                 `json:"active"`
	Config  factory.ScheduleJSON `json:"config"`
}

// CreateScheduleRequest is the request to create a payment schedule.
type CreateScheduleRequest struct {
	Config factory.ScheduleJSON `json:"config"`
}

// PeriodDTO is the period a schedule produces for one date.
type PeriodDTO struct {
	Matched   bool   `json:"matched"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	Ambiguous bool   `json:"ambiguous,omitempty"`
}

// ContractDTO represents an employee contract.
type ContractDTO struct {
	ID               string   `json:"id"`
	OwnerID          string   `json:"owner_id"`
	EmployeeID       string   `json:"employee_id"`
	Status           string   `json:"status"`
	Rate             *string  `json:"rate,omitempty"`
	RatePrecedence   bool     `json:"rate_precedence"`
	SystemID         *string  `json:"system_id,omitempty"`
	SystemPrecedence bool     `json:"system_precedence"`
	AllowedObjectIDs []string `json:"allowed_object_ids,omitempty"`
	Permissions      []string `json:"permissions,omitempty"`
}

// CreateContractRequest is the request to create a contract.
type CreateContractRequest struct {
	ID               string   `json:"id,omitempty"`
	OwnerID          string   `json:"owner_id"`
	EmployeeID       string   `json:"employee_id"`
	Rate             *string  `json:"rate,omitempty"`
	RatePrecedence   bool     `json:"rate_precedence"`
	SystemID         *string  `json:"system_id,omitempty"`
	SystemPrecedence bool     `json:"system_precedence"`
	AllowedObjectIDs []string `json:"allowed_object_ids,omitempty"`
	Permissions      []string `json:"permissions,omitempty"`
}

// SettingsDTO is the fully resolved pay configuration for one
// (employee, object) pair, with the layer each field came from.
type SettingsDTO struct {
	Rate                 string  `json:"rate"`
	RateSource           string  `json:"rate_source"`
	SystemID             *string `json:"system_id,omitempty"`
	SystemSource         string  `json:"system_source"`
	ScheduleID           *string `json:"schedule_id,omitempty"`
	ScheduleSource       string  `json:"schedule_source"`
	LateThresholdMinutes int     `json:"late_threshold_minutes"`
	LatePenaltyPerMinute string  `json:"late_penalty_per_minute"`
	LateSource           string  `json:"late_source"`
}

// EntryDTO represents a planned shift.
type EntryDTO struct {
	ID                 string             `json:"id"`
	EmployeeID         string             `json:"employee_id"`
	ObjectID           string             `json:"object_id"`
	PlannedStart       string             `json:"planned_start"`
	PlannedEnd         string             `json:"planned_end"`
	Status             string             `json:"status"`
	TaskListDefined    bool               `json:"task_list_defined"`
	Tasks              []factory.TaskJSON `json:"tasks,omitempty"`
	IncludeObjectTasks bool               `json:"include_object_tasks"`
}

// PlanEntryRequest is the request to plan a shift. The tasks field is
// tri-state: absent (inherit object defaults), [] (suppress them), or a
// list (use it as the slot's own task list).
type PlanEntryRequest struct {
	EmployeeID         string              `json:"employee_id"`
	ObjectID           string              `json:"object_id"`
	Start              string              `json:"start"`
	End                string              `json:"end"`
	Tasks              *[]factory.TaskJSON `json:"tasks,omitempty"`
	IncludeObjectTasks bool                `json:"include_object_tasks"`
}

// CancelEntryResponse reports the cancellation cascade.
type CancelEntryResponse struct {
	EntryID         string   `json:"entry_id"`
	CancelledShifts []string `json:"cancelled_shifts"`
}

// ShiftDTO represents a shift execution.
type ShiftDTO struct {
	ID            string  `json:"id"`
	EntryID       *string `json:"entry_id,omitempty"`
	ObjectID      string  `json:"object_id"`
	EmployeeID    string  `json:"employee_id"`
	StartAt       string  `json:"start_at"`
	EndAt         *string `json:"end_at,omitempty"`
	Status        string  `json:"status"`
	StartLocation *string `json:"start_location,omitempty"`
	EndLocation   *string `json:"end_location,omitempty"`
	Hours         string  `json:"hours"`
	BasePay       string  `json:"base_pay"`
	AutoClosed    bool    `json:"auto_closed"`
}

// OpenShiftRequest is the request to open a shift.
type OpenShiftRequest struct {
	EmployeeID string  `json:"employee_id"`
	ObjectID   string  `json:"object_id"`
	EntryID    *string `json:"entry_id,omitempty"` // nil = spontaneous
	At         string  `json:"at,omitempty"`       // RFC3339; empty = now
	Location   *string `json:"location,omitempty"`
}

// CloseShiftRequest is the request to close a shift.
type CloseShiftRequest struct {
	At       string  `json:"at,omitempty"` // RFC3339; empty = now
	Location *string `json:"location,omitempty"`
}

// TaskDTO represents a task assignment on a shift.
type TaskDTO struct {
	ID            string  `json:"id"`
	ShiftID       string  `json:"shift_id"`
	Text          string  `json:"text"`
	Mandatory     bool    `json:"mandatory"`
	Amount        string  `json:"amount"`
	RequiresMedia bool    `json:"requires_media"`
	Source        string  `json:"source"`
	Completed     bool    `json:"completed"`
	CompletedAt   *string `json:"completed_at,omitempty"`
	EvidenceRef   *string `json:"evidence_ref,omitempty"`
}

// CompleteTaskRequest is the request to mark a task done.
type CompleteTaskRequest struct {
	EvidenceRef *string `json:"evidence_ref,omitempty"`
}

// AdjustmentDTO represents a payroll adjustment line.
type AdjustmentDTO struct {
	ID         string  `json:"id"`
	ShiftID    string  `json:"shift_id"`
	EmployeeID string  `json:"employee_id"`
	ObjectID   string  `json:"object_id"`
	Kind       string  `json:"kind"`
	Amount     string  `json:"amount"`
	Automatic  bool    `json:"automatic"`
	TaskID     *string `json:"task_id,omitempty"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// ManualAdjustmentRequest is the request to add a manual adjustment.
type ManualAdjustmentRequest struct {
	ShiftID string `json:"shift_id"`
	Amount  string `json:"amount"` // signed decimal
	Note    string `json:"note"`
}

// PayrollEntryDTO represents an aggregated payroll statement.
type PayrollEntryDTO struct {
	ID              string `json:"id"`
	OwnerID         string `json:"owner_id"`
	EmployeeID      string `json:"employee_id"`
	ScheduleID      string `json:"schedule_id"`
	PeriodStart     string `json:"period_start"`
	PeriodEnd       string `json:"period_end"`
	BaseAmount      string `json:"base_amount"`
	BonusAmount     string `json:"bonus_amount"`
	DeductionAmount string `json:"deduction_amount"`
	Total           string `json:"total"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// EventDTO represents a domain event.
type EventDTO struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	OccurredAt string            `json:"occurred_at"`
	EmployeeID *string           `json:"employee_id,omitempty"`
	ObjectID   *string           `json:"object_id,omitempty"`
	ShiftID    *string           `json:"shift_id,omitempty"`
	EntryID    *string           `json:"entry_id,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// JobRunDTO represents one batch-job execution.
type JobRunDTO struct {
	ID         string          `json:"id"`
	Job        string          `json:"job"`
	TargetDate string          `json:"target_date"`
	StartedAt  string          `json:"started_at"`
	FinishedAt *string         `json:"finished_at,omitempty"`
	Status     string          `json:"status"`
	Created    int             `json:"created"`
	Updated    int             `json:"updated"`
	Skipped    int             `json:"skipped"`
	Errors     []core.RunError `json:"errors,omitempty"`
}

// RunJobsRequest triggers the daily batch chain for a date.
type RunJobsRequest struct {
	Date  string `json:"date"`  // "YYYY-MM-DD"; empty = today
	Force bool   `json:"force"` // re-run even if already completed
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLatePolicyDTO(late *core.LatePolicy) *LatePolicyDTO {
	if late == nil {
		return nil
	}
	return &LatePolicyDTO{
		ThresholdMinutes: late.ThresholdMinutes,
		PenaltyPerMinute: late.PenaltyPerMinute.String(),
	}
}

func toUnitDTO(unit core.OrganizationalUnit) UnitDTO {
	dto := UnitDTO{
		ID:          string(unit.ID),
		OwnerID:     string(unit.OwnerID),
		Name:        unit.Name,
		LatePolicy:  toLatePolicyDTO(unit.Late),
		LateInherit: unit.LateInherit,
		Active:      unit.Active,
	}
	if unit.ParentID != nil {
		s := string(*unit.ParentID)
		dto.ParentID = &s
	}
	if unit.SystemID != nil {
		s := string(*unit.SystemID)
		dto.SystemID = &s
	}
	if unit.ScheduleID != nil {
		s := string(*unit.ScheduleID)
		dto.ScheduleID = &s
	}
	return dto
}

func toObjectDTO(object core.WorkObject, f *factory.Factory) ObjectDTO {
	dto := ObjectDTO{
		ID:         string(object.ID),
		OwnerID:    string(object.OwnerID),
		UnitID:     string(object.UnitID),
		Name:       object.Name,
		Timezone:   object.Timezone,
		LatePolicy: toLatePolicyDTO(object.Late),
		Tasks:      f.TasksToJSON(object.TaskDefaults),
		Active:     object.Active,
	}
	if object.Closing != nil {
		s := object.Closing.String()
		dto.Closing = &s
	}
	if object.SystemID != nil {
		s := string(*object.SystemID)
		dto.SystemID = &s
	}
	if object.Rate != nil {
		s := object.Rate.String()
		dto.Rate = &s
	}
	return dto
}

func toContractDTO(contract core.Contract) ContractDTO {
	dto := ContractDTO{
		ID:               string(contract.ID),
		OwnerID:          string(contract.OwnerID),
		EmployeeID:       string(contract.EmployeeID),
		Status:           string(contract.Status),
		RatePrecedence:   contract.RatePrecedence,
		SystemPrecedence: contract.SystemPrecedence,
	}
	if contract.Rate != nil {
		s := contract.Rate.String()
		dto.Rate = &s
	}
	if contract.SystemID != nil {
		s := string(*contract.SystemID)
		dto.SystemID = &s
	}
	for _, id := range contract.AllowedObjectIDs {
		dto.AllowedObjectIDs = append(dto.AllowedObjectIDs, string(id))
	}
	for _, p := range contract.Permissions {
		dto.Permissions = append(dto.Permissions, string(p))
	}
	return dto
}

func toEntryDTO(entry core.ScheduleEntry, f *factory.Factory) EntryDTO {
	return EntryDTO{
		ID:                 string(entry.ID),
		EmployeeID:         string(entry.EmployeeID),
		ObjectID:           string(entry.ObjectID),
		PlannedStart:       entry.PlannedStart.Format(time.RFC3339),
		PlannedEnd:         entry.PlannedEnd.Format(time.RFC3339),
		Status:             string(entry.Status),
		TaskListDefined:    entry.TaskListDefined,
		Tasks:              f.TasksToJSON(entry.TaskTemplates),
		IncludeObjectTasks: entry.IncludeObjectTasks,
	}
}

func toShiftDTO(shift core.Shift) ShiftDTO {
	dto := ShiftDTO{
		ID:            string(shift.ID),
		ObjectID:      string(shift.ObjectID),
		EmployeeID:    string(shift.EmployeeID),
		StartAt:       shift.StartAt.Format(time.RFC3339),
		Status:        string(shift.Status),
		StartLocation: shift.StartLocation,
		EndLocation:   shift.EndLocation,
		Hours:         shift.Hours.String(),
		BasePay:       shift.BasePay.String(),
		AutoClosed:    shift.AutoClosed,
	}
	if shift.EntryID != nil {
		s := string(*shift.EntryID)
		dto.EntryID = &s
	}
	if shift.EndAt != nil {
		s := shift.EndAt.Format(time.RFC3339)
		dto.EndAt = &s
	}
	return dto
}

func toShiftDTOs(shifts []core.Shift) []ShiftDTO {
	dtos := make([]ShiftDTO, len(shifts))
	for i, shift := range shifts {
		dtos[i] = toShiftDTO(shift)
	}
	return dtos
}

func toTaskDTO(task core.TaskAssignment) TaskDTO {
	dto := TaskDTO{
		ID:            string(task.ID),
		ShiftID:       string(task.ShiftID),
		Text:          task.Text,
		Mandatory:     task.Mandatory,
		Amount:        task.Amount.String(),
		RequiresMedia: task.RequiresMedia,
		Source:        string(task.Source),
		Completed:     task.Completed,
		EvidenceRef:   task.EvidenceRef,
	}
	if task.CompletedAt != nil {
		s := task.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}

func toAdjustmentDTO(adj core.PayrollAdjustment) AdjustmentDTO {
	dto := AdjustmentDTO{
		ID:         string(adj.ID),
		ShiftID:    string(adj.ShiftID),
		EmployeeID: string(adj.EmployeeID),
		ObjectID:   string(adj.ObjectID),
		Kind:       string(adj.Kind),
		Amount:     adj.Amount.String(),
		Automatic:  adj.Automatic,
		Note:       adj.Note,
		CreatedAt:  adj.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  adj.UpdatedAt.Format(time.RFC3339),
	}
	if adj.TaskID != nil {
		s := string(*adj.TaskID)
		dto.TaskID = &s
	}
	return dto
}

func toPayrollEntryDTO(entry core.PayrollEntry) PayrollEntryDTO {
	return PayrollEntryDTO{
		ID:              string(entry.ID),
		OwnerID:         string(entry.OwnerID),
		EmployeeID:      string(entry.EmployeeID),
		ScheduleID:      string(entry.ScheduleID),
		PeriodStart:     entry.PeriodStart.String(),
		PeriodEnd:       entry.PeriodEnd.String(),
		BaseAmount:      entry.BaseAmount.String(),
		BonusAmount:     entry.BonusAmount.String(),
		DeductionAmount: entry.DeductionAmount.String(),
		Total:           entry.Total.String(),
		Status:          string(entry.Status),
		CreatedAt:       entry.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       entry.UpdatedAt.Format(time.RFC3339),
	}
}

func toEventDTO(event core.Event) EventDTO {
	dto := EventDTO{
		ID:         string(event.ID),
		Kind:       string(event.Kind),
		OccurredAt: event.OccurredAt.Format(time.RFC3339),
		Payload:    event.Payload,
	}
	if event.EmployeeID != nil {
		s := string(*event.EmployeeID)
		dto.EmployeeID = &s
	}
	if event.ObjectID != nil {
		s := string(*event.ObjectID)
		dto.ObjectID = &s
	}
	if event.ShiftID != nil {
		s := string(*event.ShiftID)
		dto.ShiftID = &s
	}
	if event.EntryID != nil {
		s := string(*event.EntryID)
		dto.EntryID = &s
	}
	return dto
}

func toJobRunDTO(run core.JobRun) JobRunDTO {
	dto := JobRunDTO{
		ID:         run.ID,
		Job:        string(run.Job),
		TargetDate: run.TargetDate.String(),
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		Status:     string(run.Status),
		Created:    run.Created,
		Updated:    run.Updated,
		Skipped:    run.Skipped,
		Errors:     run.Errors,
	}
	if run.FinishedAt != nil {
		s := run.FinishedAt.Format(time.RFC3339)
		dto.FinishedAt = &s
	}
	return dto
}
