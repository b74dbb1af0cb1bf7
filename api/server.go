/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     httplog request logging in ECS schema
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Heartbeat:  /healthz answered before routing
  5. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/employees/*       Per-employee computations
  /api/balances          Batch computation
  /api/billing-periods/* Snapshots
  /api/<source>          Source data writes
  /api/admin/*           Admin operations
  /metrics               Prometheus exposition

SECURITY NOTE:
  No authentication middleware. Deploy behind a gateway that handles it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured. gatherer backs
// /metrics and may be nil to leave the endpoint out.
func NewRouter(h *Handler, logger *slog.Logger, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/weeks", h.GetWeeks)
			r.Get("/carryover/{year}", h.GetCarryover)
		})
		r.Get("/balances", h.ListBalances)

		// Billing period routes
		r.Route("/billing-periods", func(r chi.Router) {
			r.Get("/", h.ListBillingPeriods)
			r.Post("/", h.CreateBillingPeriod)
			r.Get("/{id}", h.GetBillingPeriod)
			r.Delete("/{id}", h.DeleteBillingPeriod)
		})

		// Source data routes
		r.Post("/contracts", h.CreateContract)
		r.Delete("/contracts/{id}", h.DeleteContract)
		r.Post("/slots", h.CreateSlot)
		r.Post("/bookings", h.CreateBooking)
		r.Delete("/bookings/{id}", h.DeleteBooking)
		r.Post("/extra-hours", h.CreateExtraHours)
		r.Delete("/extra-hours/{id}", h.DeleteExtraHours)
		r.Post("/special-days", h.CreateSpecialDay)
		r.Delete("/special-days/{id}", h.DeleteSpecialDay)
		r.Route("/custom-extra-hours", func(r chi.Router) {
			r.Post("/", h.CreateCustomExtraHours)
			r.Post("/{id}/links", h.LinkCustomExtraHours)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/carryover/refresh", h.RefreshCarryover)
		})
	})

	return r
}
