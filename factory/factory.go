/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON task-list and payment-schedule definitions into core
  types. This is the single place that understands the legacy field
  names still present in stored configurations - everything past this
  boundary works with normalized structs and never branches on raw
  field-name presence.

TASK JSON SCHEMA (both shapes accepted, new shape written):
  new:    {"text": "Mop floor", "is_mandatory": true, "amount": "25.50",
           "requires_media": true}
  legacy: {"task": "Mop floor", "required": true, "price": 25.5,
           "photo": true}

SCHEDULE JSON SCHEMA:
  weekly:  {"frequency": "weekly", "payment_weekday": 2,
            "start_offset": -22, "end_offset": -16}
  monthly: {"frequency": "monthly", "instances": [
             {"next_payment_date": "2025-11-30", "anchor_day": 30,
              "start_offset": -29, "end_offset": 0}]}
  legacy:  {"frequency": "monthly", "payment_day": 10,
            "start_offset": -9, "end_offset": 0}

KEY FEATURES:
  - Detects legacy vs new task shape per element, not per document
  - Amounts parse from JSON strings or numbers (decimal-safe)
  - Generates instance ids when configurations omit them
  - Validates structure via PaymentSchedule.Validate

USAGE:
  f := factory.NewFactory()
  defs, err := f.ParseTaskDefinitions(jsonStr)
  schedule, err := f.ParseSchedule(jsonStr)

SEE ALSO:
  - core/types.go: TaskDefinition
  - core/period.go: PaymentSchedule, PaymentInstance
  - store/sqlite: Persists these types through this package
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TaskJSON is one task definition in either accepted shape. The new
// fields win when both shapes appear on the same element.
type TaskJSON struct {
	// New shape
	Text          *string          `json:"text,omitempty"`
	IsMandatory   *bool            `json:"is_mandatory,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	RequiresMedia *bool            `json:"requires_media,omitempty"`

	// Legacy shape
	Task     *string  `json:"task,omitempty"`
	Required *bool    `json:"required,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Photo    *bool    `json:"photo,omitempty"`
}

// ScheduleJSON is the JSON representation of a payment schedule.
type ScheduleJSON struct {
	ID      string `json:"id,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Active  *bool  `json:"active,omitempty"` // default true

	Frequency string `json:"frequency"`

	PaymentWeekday int `json:"payment_weekday,omitempty"` // ISO 1-7

	StartOffset int `json:"start_offset,omitempty"`
	EndOffset   int `json:"end_offset,omitempty"`

	PaymentDay int            `json:"payment_day,omitempty"` // legacy monthly
	Instances  []InstanceJSON `json:"instances,omitempty"`
}

// InstanceJSON is one monthly payment instance.
type InstanceJSON struct {
	ID              string `json:"id,omitempty"`
	NextPaymentDate string `json:"next_payment_date"`
	AnchorDay       int    `json:"anchor_day,omitempty"`
	StartOffset     int    `json:"start_offset"`
	EndOffset       int    `json:"end_offset"`
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory converts JSON configurations to core structs and back.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// ParseTaskDefinitions parses a JSON array of task definitions in either
// shape into normalized TaskDefinitions.
func (f *Factory) ParseTaskDefinitions(jsonStr string) ([]core.TaskDefinition, error) {
	if jsonStr == "" {
		return nil, nil
	}
	var items []TaskJSON
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		return nil, fmt.Errorf("failed to parse task definitions: %w", err)
	}
	return f.FromTaskJSON(items)
}

// FromTaskJSON normalizes parsed task elements.
func (f *Factory) FromTaskJSON(items []TaskJSON) ([]core.TaskDefinition, error) {
	var defs []core.TaskDefinition
	for i, item := range items {
		def, err := normalizeTask(item)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func normalizeTask(item TaskJSON) (core.TaskDefinition, error) {
	switch {
	case item.Text != nil:
		def := core.TaskDefinition{Text: *item.Text}
		if item.IsMandatory != nil {
			def.Mandatory = *item.IsMandatory
		}
		if item.Amount != nil {
			def.Amount = core.MoneyFromDecimal(*item.Amount)
		} else {
			def.Amount = core.ZeroMoney()
		}
		if item.RequiresMedia != nil {
			def.RequiresMedia = *item.RequiresMedia
		}
		return def, nil

	case item.Task != nil:
		def := core.TaskDefinition{Text: *item.Task}
		if item.Required != nil {
			def.Mandatory = *item.Required
		}
		if item.Price != nil {
			def.Amount = core.NewMoney(*item.Price)
		} else {
			def.Amount = core.ZeroMoney()
		}
		if item.Photo != nil {
			def.RequiresMedia = *item.Photo
		}
		return def, nil
	}
	return core.TaskDefinition{}, &core.ValidationError{Field: "text", Reason: "missing task text"}
}

// TasksToJSON renders definitions in the new shape.
func (f *Factory) TasksToJSON(defs []core.TaskDefinition) []TaskJSON {
	items := make([]TaskJSON, 0, len(defs))
	for _, def := range defs {
		text := def.Text
		mandatory := def.Mandatory
		amount := def.Amount.Value
		media := def.RequiresMedia
		items = append(items, TaskJSON{
			Text:          &text,
			IsMandatory:   &mandatory,
			Amount:        &amount,
			RequiresMedia: &media,
		})
	}
	return items
}

// MarshalTaskDefinitions serializes definitions for storage, always in
// the new shape. Empty input yields the empty string.
func (f *Factory) MarshalTaskDefinitions(defs []core.TaskDefinition) (string, error) {
	if len(defs) == 0 {
		return "", nil
	}
	b, err := json.Marshal(f.TasksToJSON(defs))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

// ParseSchedule parses a JSON schedule definition.
func (f *Factory) ParseSchedule(jsonStr string) (core.PaymentSchedule, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return core.PaymentSchedule{}, fmt.Errorf("failed to parse schedule JSON: %w", err)
	}
	return f.FromScheduleJSON(sj)
}

// FromScheduleJSON converts ScheduleJSON to a validated PaymentSchedule.
// Missing ids (schedule and instances) are generated.
func (f *Factory) FromScheduleJSON(sj ScheduleJSON) (core.PaymentSchedule, error) {
	schedule := core.PaymentSchedule{
		ID:             core.ScheduleID(sj.ID),
		OwnerID:        core.OwnerID(sj.OwnerID),
		Name:           sj.Name,
		Active:         true,
		Frequency:      parseFrequency(sj.Frequency),
		PaymentWeekday: sj.PaymentWeekday,
		StartOffset:    sj.StartOffset,
		EndOffset:      sj.EndOffset,
		PaymentDay:     sj.PaymentDay,
	}
	if sj.ID == "" {
		schedule.ID = core.ScheduleID(core.NewID())
	}
	if sj.Active != nil {
		schedule.Active = *sj.Active
	}

	for i, ij := range sj.Instances {
		inst, err := parseInstance(ij)
		if err != nil {
			return core.PaymentSchedule{}, fmt.Errorf("instance %d: %w", i, err)
		}
		schedule.Instances = append(schedule.Instances, inst)
	}

	if err := schedule.Validate(); err != nil {
		return core.PaymentSchedule{}, err
	}
	return schedule, nil
}

func parseInstance(ij InstanceJSON) (core.PaymentInstance, error) {
	date, err := core.ParseDate(ij.NextPaymentDate)
	if err != nil {
		return core.PaymentInstance{}, &core.ValidationError{Field: "next_payment_date", Reason: "invalid date"}
	}
	inst := core.PaymentInstance{
		ID:              ij.ID,
		NextPaymentDate: date,
		AnchorDay:       ij.AnchorDay,
		StartOffset:     ij.StartOffset,
		EndOffset:       ij.EndOffset,
	}
	if inst.ID == "" {
		inst.ID = core.NewID()
	}
	return inst, nil
}

func parseFrequency(s string) core.ScheduleFrequency {
	switch s {
	case "monthly":
		return core.FrequencyMonthly
	case "weekly":
		return core.FrequencyWeekly
	default:
		// Validate rejects anything else downstream.
		return core.ScheduleFrequency(s)
	}
}

// ScheduleToJSON converts a PaymentSchedule to its JSON representation.
func (f *Factory) ScheduleToJSON(schedule core.PaymentSchedule) ScheduleJSON {
	active := schedule.Active
	sj := ScheduleJSON{
		ID:             string(schedule.ID),
		OwnerID:        string(schedule.OwnerID),
		Name:           schedule.Name,
		Active:         &active,
		Frequency:      string(schedule.Frequency),
		PaymentWeekday: schedule.PaymentWeekday,
		StartOffset:    schedule.StartOffset,
		EndOffset:      schedule.EndOffset,
		PaymentDay:     schedule.PaymentDay,
	}
	for _, inst := range schedule.Instances {
		sj.Instances = append(sj.Instances, InstanceJSON{
			ID:              inst.ID,
			NextPaymentDate: inst.NextPaymentDate.String(),
			AnchorDay:       inst.AnchorDay,
			StartOffset:     inst.StartOffset,
			EndOffset:       inst.EndOffset,
		})
	}
	return sj
}

// MarshalInstances serializes monthly instances for storage. Empty input
// yields the empty string.
func (f *Factory) MarshalInstances(instances []core.PaymentInstance) (string, error) {
	if len(instances) == 0 {
		return "", nil
	}
	items := make([]InstanceJSON, 0, len(instances))
	for _, inst := range instances {
		items = append(items, InstanceJSON{
			ID:              inst.ID,
			NextPaymentDate: inst.NextPaymentDate.String(),
			AnchorDay:       inst.AnchorDay,
			StartOffset:     inst.StartOffset,
			EndOffset:       inst.EndOffset,
		})
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseInstances deserializes stored monthly instances.
func (f *Factory) ParseInstances(jsonStr string) ([]core.PaymentInstance, error) {
	if jsonStr == "" {
		return nil, nil
	}
	var items []InstanceJSON
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		return nil, fmt.Errorf("failed to parse instances: %w", err)
	}
	var instances []core.PaymentInstance
	for i, ij := range items {
		inst, err := parseInstance(ij)
		if err != nil {
			return nil, fmt.Errorf("instance %d: %w", i, err)
		}
		instances = append(instances, inst)
	}
	return instances, nil
}
