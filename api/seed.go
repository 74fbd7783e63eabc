/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:

	Populates the database with a small but realistic staffing setup so
	every endpoint has something to return: an owner with a three-unit
	tree, two payment systems, weekly and monthly schedules, two objects
	in different time zones, three contracts, one already-worked shift
	(late arrival, tasks, evidence) and one upcoming planned entry.

WHAT THE DATA DEMONSTRATES:

	settings resolution:  contract rate with precedence beats the cafe's
	                      object rate; the depot inherits system and
	                      schedule from the airport unit override
	late penalty:         yesterday's shift opened 22 minutes after plan
	                      with a 15-minute threshold on the root unit
	task pricing:         the cafe pays under hourly_tasks; the optional
	                      fridge task was completed with photo evidence,
	                      the mandatory register task as well
	period calculation:   weekly Friday schedule paying the previous
	                      Mon-Sun week, plus a monthly 10th-of-month
	                      instance covering the prior month

NOTE:

	Seeding resets the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: statusFor and the response helpers
  - lifecycle/coordinator.go: the open/close flow the seed drives
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/lifecycle"
)

const demoOwner = core.OwnerID("owner-demo")

// resetter is satisfied by stores that can wipe themselves (sqlite, memory).
type resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// HTTP HANDLERS
// =============================================================================

// SeedDemo wipes the database and loads the demo dataset.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := Seed(r.Context(), h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "seeded",
		"owner_id":  string(demoOwner),
		"employees": "emp-001, emp-002, emp-003",
		"objects":   "obj-cafe, obj-depot",
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	store, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SEED DATA
// =============================================================================

// Seed resets the store (when supported) and loads the demo dataset.
// Shared by the HTTP handler and the CLI seed command.
func Seed(ctx context.Context, store core.TxStore) error {
	if r, ok := store.(resetter); ok {
		if err := r.Reset(ctx); err != nil {
			return err
		}
	}

	// ----- payment systems -----
	systems := []core.PaymentSystem{
		{ID: "sys-hourly", OwnerID: demoOwner, Name: "Hourly", Kind: core.SystemHourly},
		{ID: "sys-hourly-tasks", OwnerID: demoOwner, Name: "Hourly + Tasks", Kind: core.SystemHourlyTasks},
	}
	for _, system := range systems {
		if err := store.CreateSystem(ctx, system); err != nil {
			return err
		}
	}

	// ----- payment schedules -----
	// Weekly: payday every Friday, covering the previous Monday-Sunday.
	weekly := core.PaymentSchedule{
		ID:             "sched-weekly",
		OwnerID:        demoOwner,
		Name:           "Weekly (Friday)",
		Active:         true,
		Frequency:      core.FrequencyWeekly,
		PaymentWeekday: 5,
		StartOffset:    -11,
		EndOffset:      -5,
	}
	if err := store.CreateSchedule(ctx, weekly); err != nil {
		return err
	}

	// Monthly: payday on the 10th, covering roughly the prior month. The
	// next upcoming 10th so the scheduler can actually hit it.
	now := time.Now().UTC()
	payday := core.NewDate(now.Year(), now.Month(), 10)
	if !payday.After(core.Today(nil)) {
		payday = core.NewDate(now.Year(), now.Month()+1, 10)
	}
	monthly := core.PaymentSchedule{
		ID:        "sched-monthly",
		OwnerID:   demoOwner,
		Name:      "Monthly (10th)",
		Active:    true,
		Frequency: core.FrequencyMonthly,
		Instances: []core.PaymentInstance{
			{
				ID:              "inst-10th",
				NextPaymentDate: payday,
				AnchorDay:       10,
				StartOffset:     -40,
				EndOffset:       -10,
			},
		},
	}
	if err := store.CreateSchedule(ctx, monthly); err != nil {
		return err
	}

	// ----- organizational units -----
	// Root carries the owner-wide defaults; the airport overrides both
	// system and schedule, the city inherits everything.
	hq := core.OrganizationalUnit{
		ID:         "unit-hq",
		OwnerID:    demoOwner,
		Name:       "Headquarters",
		SystemID:   systemID("sys-hourly"),
		ScheduleID: scheduleID("sched-weekly"),
		Late:       &core.LatePolicy{ThresholdMinutes: 15, PenaltyPerMinute: core.ParseMoney("0.50")},
		Active:     true,
	}
	city := core.OrganizationalUnit{
		ID:       "unit-city",
		OwnerID:  demoOwner,
		Name:     "Berlin City",
		ParentID: unitID("unit-hq"),
		Active:   true,
	}
	airport := core.OrganizationalUnit{
		ID:         "unit-airport",
		OwnerID:    demoOwner,
		Name:       "Airport",
		ParentID:   unitID("unit-hq"),
		SystemID:   systemID("sys-hourly-tasks"),
		ScheduleID: scheduleID("sched-monthly"),
		Active:     true,
	}
	for _, unit := range []core.OrganizationalUnit{hq, city, airport} {
		if err := store.CreateUnit(ctx, unit); err != nil {
			return err
		}
	}

	// ----- work objects -----
	closing := core.DayTime{Hour: 22, Minute: 0}
	cafeRate := core.ParseMoney("18.50")
	cafe := core.WorkObject{
		ID:       "obj-cafe",
		OwnerID:  demoOwner,
		UnitID:   "unit-city",
		Name:     "Cafe Central",
		Timezone: "Europe/Berlin",
		Closing:  &closing,
		SystemID: systemID("sys-hourly-tasks"),
		Rate:     &cafeRate,
		TaskDefaults: []core.TaskDefinition{
			{Text: "Close out the register", Mandatory: true},
			{Text: "Restock the display fridge", Amount: core.ParseMoney("7.50"), RequiresMedia: true},
		},
		Active: true,
	}
	depotClosing := core.DayTime{Hour: 23, Minute: 30}
	depot := core.WorkObject{
		ID:       "obj-depot",
		OwnerID:  demoOwner,
		UnitID:   "unit-airport",
		Name:     "Airport Depot",
		Timezone: "America/New_York",
		Closing:  &depotClosing,
		Active:   true,
	}
	for _, object := range []core.WorkObject{cafe, depot} {
		if err := store.CreateObject(ctx, object); err != nil {
			return err
		}
	}

	// ----- contracts -----
	aliceRate := core.ParseMoney("22.00")
	contracts := []core.Contract{
		{
			ID:             "contract-001",
			OwnerID:        demoOwner,
			EmployeeID:     "emp-001",
			Status:         core.ContractActive,
			Rate:           &aliceRate,
			RatePrecedence: true,
		},
		{
			ID:               "contract-002",
			OwnerID:          demoOwner,
			EmployeeID:       "emp-002",
			Status:           core.ContractActive,
			AllowedObjectIDs: []core.ObjectID{"obj-cafe"},
		},
		{
			ID:         "contract-003",
			OwnerID:    demoOwner,
			EmployeeID: "emp-003",
			Status:     core.ContractActive,
			Permissions: []core.Permission{
				core.PermManageSchedule,
				core.PermCloseShifts,
				core.PermRunPayroll,
			},
		},
	}
	for _, contract := range contracts {
		if err := store.CreateContract(ctx, contract); err != nil {
			return err
		}
	}

	// ----- yesterday's worked shift at the cafe -----
	// Planned 09:00-17:00 Berlin time, opened 22 minutes late (beyond the
	// 15-minute threshold), both tasks completed, closed a little after
	// plan. The adjustment run prices base pay, the fridge bonus, and the
	// late penalty from this one shift.
	berlin, err := core.LoadLocation("Europe/Berlin")
	if err != nil {
		return err
	}
	coordinator := lifecycle.NewCoordinator(store)
	day := time.Now().In(berlin).AddDate(0, 0, -1)

	entry, err := coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID:         "emp-001",
		ObjectID:           "obj-cafe",
		Start:              time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, berlin),
		End:                time.Date(day.Year(), day.Month(), day.Day(), 17, 0, 0, 0, berlin),
		IncludeObjectTasks: true,
	})
	if err != nil {
		return err
	}

	location := "52.5200,13.4050"
	shift, err := coordinator.Open(ctx, lifecycle.OpenRequest{
		EmployeeID: "emp-001",
		ObjectID:   "obj-cafe",
		EntryID:    &entry.ID,
		At:         time.Date(day.Year(), day.Month(), day.Day(), 9, 22, 0, 0, berlin),
		Location:   &location,
	})
	if err != nil {
		return err
	}

	tasks, err := store.ListTasksByShift(ctx, shift.ID)
	if err != nil {
		return err
	}
	evidence := "media-0001"
	for _, task := range tasks {
		ref := &evidence
		if !task.RequiresMedia {
			ref = nil
		}
		if _, err := coordinator.Tasks().Complete(ctx, task.ID, ref); err != nil {
			return err
		}
	}

	closeAt := time.Date(day.Year(), day.Month(), day.Day(), 17, 5, 0, 0, berlin)
	if _, err := coordinator.Close(ctx, shift.ID, closeAt, &location); err != nil {
		return err
	}

	// ----- tonight's planned entry for the second employee -----
	// Slot-defined task list, object defaults suppressed.
	tonight := time.Now().In(berlin)
	_, err = coordinator.PlanEntry(ctx, lifecycle.PlanRequest{
		EmployeeID:      "emp-002",
		ObjectID:        "obj-cafe",
		Start:           time.Date(tonight.Year(), tonight.Month(), tonight.Day(), 18, 0, 0, 0, berlin),
		End:             time.Date(tonight.Year(), tonight.Month(), tonight.Day(), 23, 0, 0, 0, berlin),
		TaskListDefined: true,
		TaskTemplates: []core.TaskDefinition{
			{Text: "Deep-clean the espresso machine", Mandatory: true, Amount: core.ParseMoney("12.00")},
		},
	})
	return err
}

func unitID(s string) *core.UnitID {
	id := core.UnitID(s)
	return &id
}

func systemID(s string) *core.SystemID {
	id := core.SystemID(s)
	return &id
}

func scheduleID(s string) *core.ScheduleID {
	id := core.ScheduleID(s)
	return &id
}
