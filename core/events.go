package core

import "time"

// =============================================================================
// DOMAIN EVENTS - Append-only records for the notification dispatcher
// =============================================================================

// The core emits events; an external dispatcher turns them into chat/email
// messages. No channel-specific logic lives here.

type EventKind string

const (
	EventShiftOpened          EventKind = "shift_opened"
	EventShiftClosed          EventKind = "shift_closed"
	EventShiftAutoClosed      EventKind = "shift_auto_closed"
	EventShiftCancelled       EventKind = "shift_cancelled"
	EventEntryCancelled       EventKind = "entry_cancelled"
	EventObjectClosed         EventKind = "object_closed"
	EventTaskCompleted        EventKind = "task_completed"
	EventAdjustmentApplied    EventKind = "adjustment_applied"
	EventPayrollEntryCreated  EventKind = "payroll_entry_created"
	EventPayrollEntryUpdated  EventKind = "payroll_entry_updated"
	EventPayrollEntryApproved EventKind = "payroll_entry_approved"
	EventPayrollEntryPaid     EventKind = "payroll_entry_paid"
)

// Event is one append-only domain event. Reference fields are optional;
// Payload carries kind-specific details as flat key/value pairs.
type Event struct {
	ID         EventID
	Kind       EventKind
	OccurredAt Instant

	EmployeeID *EmployeeID
	ObjectID   *ObjectID
	ShiftID    *ShiftID
	EntryID    *EntryID

	Payload map[string]string
}

// NewEvent constructs an event with a fresh ID. Callers fill references
// and payload before appending.
func NewEvent(kind EventKind, at time.Time) Event {
	return Event{
		ID:         EventID(NewID()),
		Kind:       kind,
		OccurredAt: at.UTC(),
		Payload:    map[string]string{},
	}
}

// WithShift attaches shift context (shift, employee, object) in one call.
func (e Event) WithShift(s Shift) Event {
	id := s.ID
	e.ShiftID = &id
	emp := s.EmployeeID
	e.EmployeeID = &emp
	obj := s.ObjectID
	e.ObjectID = &obj
	return e
}

// WithEntry attaches the planned-entry reference.
func (e Event) WithEntry(id EntryID) Event {
	e.EntryID = &id
	return e
}

// With adds one payload pair.
func (e Event) With(key, value string) Event {
	if e.Payload == nil {
		e.Payload = map[string]string{}
	}
	e.Payload[key] = value
	return e
}
