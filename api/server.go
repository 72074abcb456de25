/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/members/*         Member directory and per-member compliance
  /api/requirements/*    Requirement configuration documents
  /api/compliance/*      The compliance matrix
  /api/progress          Progress record ingestion
  /api/certifications/*  Issued credentials
  /api/leaves/*          Leave lifecycle (mediator-backed)
  /api/waivers/*         Manual waivers
  /api/alerts/*          Certification alert sweep and tier states

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public; deploy
  behind the department gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/compliance-engine/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
			r.Get("/{id}/compliance", h.MemberCompliance)
		})

		r.Route("/requirements", func(r chi.Router) {
			r.Get("/", h.ListRequirements)
			r.Post("/", h.CreateRequirement)
			r.Get("/{id}", h.GetRequirement)
		})

		r.Route("/compliance", func(r chi.Router) {
			r.Get("/matrix", h.ComplianceMatrix)
		})

		r.Post("/progress", h.RecordProgress)

		r.Route("/certifications", func(r chi.Router) {
			r.Get("/", h.ListCertifications)
			r.Post("/", h.CreateCertification)
		})

		r.Route("/leaves", func(r chi.Router) {
			r.Get("/", h.ListLeaves)
			r.Post("/", h.CreateLeave)
			r.Post("/{id}/dates", h.UpdateLeaveDates)
			r.Post("/{id}/deactivate", h.DeactivateLeave)
		})

		r.Route("/waivers", func(r chi.Router) {
			r.Get("/", h.ListWaivers)
			r.Post("/", h.CreateWaiver)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
			r.Get("/states", h.ListAlertStates)
		})
	})

	return r
}
