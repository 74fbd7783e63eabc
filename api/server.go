/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for admin frontend

ROUTE GROUPS:
  /v1/units/*       Organizational tree
  /v1/objects/*     Work objects
  /v1/systems/*     Payment systems
  /v1/schedules/*   Payment schedules
  /v1/contracts/*   Contracts and effective settings
  /v1/entries/*     Planned shifts
  /v1/shifts/*      Shift lifecycle
  /v1/tasks/*       Task completion
  /v1/adjustments   Manual adjustments
  /v1/payroll/*     Statements and batch triggers
  /v1/jobs/*        Scheduler runs
  /v1/events        Domain event feed
  /v1/demo/*        Seed/reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Put this behind a gateway in production.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/shiftd/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		// Organizational units
		r.Route("/units", func(r chi.Router) {
			r.Get("/", h.ListUnits)
			r.Post("/", h.CreateUnit)
			r.Get("/{id}", h.GetUnit)
			r.Post("/{id}/move", h.MoveUnit)
			r.Get("/{id}/schedule", h.GetUnitSchedule)
		})

		// Work objects
		r.Route("/objects", func(r chi.Router) {
			r.Get("/", h.ListObjects)
			r.Post("/", h.CreateObject)
			r.Get("/{id}", h.GetObject)
			r.Post("/{id}/close", h.CloseObject)
		})

		// Payment systems
		r.Route("/systems", func(r chi.Router) {
			r.Get("/", h.ListSystems)
			r.Post("/", h.CreateSystem)
		})

		// Payment schedules
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Post("/", h.CreateSchedule)
			r.Get("/{id}", h.GetSchedule)
			r.Get("/{id}/period", h.GetSchedulePeriod)
		})

		// Contracts
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", h.CreateContract)
			r.Get("/settings", h.GetEffectiveSettings)
			r.Get("/{id}", h.GetContract)
			r.Post("/{id}/terminate", h.TerminateContract)
		})

		// Schedule entries
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.PlanEntry)
			r.Post("/{id}/cancel", h.CancelEntry)
		})

		// Shifts
		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/open", h.OpenShift)
			r.Get("/{id}", h.GetShift)
			r.Post("/{id}/close", h.CloseShift)
			r.Get("/{id}/tasks", h.ListShiftTasks)
			r.Get("/{id}/adjustments", h.ListShiftAdjustments)
		})

		// Tasks
		r.Post("/tasks/{id}/complete", h.CompleteTask)

		// Manual adjustments
		r.Post("/adjustments", h.CreateManualAdjustment)

		// Payroll
		r.Route("/payroll", func(r chi.Router) {
			r.Get("/entries", h.ListPayrollEntries)
			r.Post("/entries/{id}/approve", h.ApprovePayrollEntry)
			r.Post("/entries/{id}/pay", h.PayPayrollEntry)
			r.Post("/build", h.BuildPayroll)
			r.Post("/adjustments/run", h.RunAdjustments)
		})

		// Jobs
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/run", h.RunJobs)
			r.Get("/runs", h.ListJobRuns)
		})

		// Events
		r.Get("/events", h.ListEvents)

		// Demo data (dev only)
		r.Route("/demo", func(r chi.Router) {
			r.Post("/seed", h.SeedDemo)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "shift-engine",
			"health":  "/health",
			"api":     "/v1",
		})
	})

	return r
}
