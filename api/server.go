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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*        Employees, balances, request submission
  /api/requests/*         Approval queue and lifecycle transitions
  /api/leave-types/*      Catalog management
  /api/holidays           Public holiday entry
  /api/blocked-periods/*  Blackout window management
  /api/adjustments        Ledger audit trail
  /api/admin/*            Batch jobs, manual corrections, seeding

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  actor identity and role come from request bodies.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/requests", h.ListEmployeeRequests)
			r.Post("/{id}/requests", h.SubmitRequest)
		})

		// Request lifecycle routes
		r.Route("/requests", func(r chi.Router) {
			r.Get("/pending", h.ListPendingRequests)
			r.Post("/bulk", h.BulkDecide)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/submit", h.SubmitDraft)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
			r.Post("/{id}/return", h.ReturnRequest)
			r.Post("/{id}/resubmit", h.ResubmitRequest)
			r.Post("/{id}/modify", h.ModifyRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
			r.Post("/{id}/override", h.OverrideRequest)
		})

		// Catalog routes
		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.Post("/", h.CreateLeaveType)
		})

		// Calendar routes
		r.Post("/holidays", h.CreateHoliday)
		r.Route("/blocked-periods", func(r chi.Router) {
			r.Get("/", h.ListBlockedPeriods)
			r.Post("/", h.CreateBlockedPeriod)
		})

		// Ledger audit trail
		r.Get("/adjustments", h.ListAdjustments)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/accrual", h.TriggerAccrual)
			r.Post("/carryforward", h.TriggerCarryForward)
			r.Post("/adjustments", h.CreateAdjustment)
			r.Get("/runs", h.ListBatchRuns)
			r.Post("/seed", h.SeedDefaults)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
