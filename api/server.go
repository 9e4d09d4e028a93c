/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zerolog request logging, logger on the context
  3. Recovery:      Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the browser front end

ROUTE GROUPS:
  /api/scenarios/*      Scenarios, their rules and diffs
  /api/rules            Rule upserts
  /api/transactions/*   Ledger
  /api/anchors/*        Balance anchors
  /api/goals/*          Savings goals and projections
  /api/categories/*     Categories
  /api/forecasts, /api/cashflow, /api/months, /api/daily, /api/balance
  /api/alerts           Divergence monitor
  /api/demo/*           Demo datasets
  /api/reset            Store reset (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public; bind to localhost.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// DefaultAllowedOrigins is used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log zerolog.Logger, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(Recovery(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/", h.CreateScenario)
			r.Post("/{id}/default", h.SetDefaultScenario)
			r.Get("/{id}/rules", h.ListRules)
			r.Get("/{id}/diff", h.GetDiff)
		})

		r.Post("/rules", h.CreateRule)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
		})

		r.Route("/anchors", func(r chi.Router) {
			r.Get("/", h.ListAnchors)
			r.Post("/", h.CreateAnchor)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.Post("/", h.CreateGoal)
			r.Get("/{id}/projection", h.GetGoalProjection)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})

		// Projections
		r.Get("/forecasts", h.GetForecasts)
		r.Post("/cashflow", h.ProjectCashFlow)
		r.Get("/months", h.GetMonths)
		r.Get("/daily", h.GetDaily)
		r.Get("/balance", h.GetBalance)
		r.Get("/alerts", h.GetAlerts)

		// Demo datasets
		r.Route("/demo", func(r chi.Router) {
			r.Get("/", h.ListDemos)
			r.Post("/load", h.LoadDemo)
		})
		r.Post("/reset", h.Reset)
	})

	return r
}
