/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/tenants/{tenantID}/*    Tenant-scoped policy, ledger, attendance
  /api/teachers/{teacherID}/*  Teacher-scoped listings
  /api/leave/applications/*    Application lifecycle transitions
  /health                      Liveness probe

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Tenant-scoped routes
		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Get("/quota-settings", h.GetQuotaSettings)
			r.Put("/quota-settings", h.UpdateQuotaSettings)

			r.Route("/balances", func(r chi.Router) {
				r.Get("/", h.ListBalances)
				r.Post("/initialize", h.InitializeBalances)
				r.Get("/{teacherID}", h.GetBalance)
				r.Patch("/{teacherID}", h.UpdateBalance)
			})

			r.Route("/leave/applications", func(r chi.Router) {
				r.Post("/", h.SubmitApplication)
				r.Get("/", h.ListTenantApplications)
			})

			r.Route("/attendance", func(r chi.Router) {
				r.Post("/", h.MarkAttendance)
				r.Post("/bulk", h.BulkMarkAttendance)
				r.Get("/day", h.GetDayAttendance)
				r.Get("/summary", h.GetRangeSummary)
				r.Post("/reconcile", h.ReconcileAttendance)
			})
		})

		// Teacher-scoped routes
		r.Route("/teachers/{teacherID}", func(r chi.Router) {
			r.Get("/leave/applications", h.ListTeacherApplications)
			r.Get("/attendance/records", h.GetMonthRecords)
			r.Get("/attendance/monthly", h.GetMonthlyStats)
		})

		// Application lifecycle routes
		r.Route("/leave/applications", func(r chi.Router) {
			r.Get("/{id}", h.GetApplication)
			r.Post("/{id}/cancel", h.CancelApplication)
			r.Post("/{id}/approve", h.ApproveApplication)
			r.Post("/{id}/reject", h.RejectApplication)
		})
	})

	return r
}
