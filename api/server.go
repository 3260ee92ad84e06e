/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin console
  5. metrics:    Latency histogram per route

ROUTE GROUPS:
  /reward/*     Ledger, accrual, and statistics endpoints
  /healthz      Liveness
  /metrics      Prometheus metrics

SECURITY NOTE:
  Authentication happens at the gateway; this service trusts the
  X-User-Id header it injects.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greenride/seed-engine/observability"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id"},
		AllowCredentials: false,
	}))
	r.Use(metricsMiddleware)

	r.Route("/reward", func(r chi.Router) {
		// Member endpoints
		r.Post("/earn", h.Earn)
		r.Post("/use", h.Use)
		r.Route("/users", func(r chi.Router) {
			r.Get("/balance", h.Balance)
			r.Get("/history", h.History)
		})
		r.Get("/entries/{id}", h.Entry)

		// Admin endpoints
		r.Route("/stats", func(r chi.Router) {
			r.Get("/total", h.TotalStats)
			r.Get("/monthly", h.MonthlyStats)
			r.Get("/daily", h.DailyStats)
			r.Get("/per-user", h.PerUserStats)
		})
		r.Route("/by-reason", func(r chi.Router) {
			r.Get("/total", h.YearlyBreakdown)
			r.Get("/monthly", h.MonthBreakdown)
		})
		r.Get("/monthly-stats", h.Trend)
		r.Get("/history/all", h.AllHistory)
		r.Get("/filter", h.Filter)
		r.Post("/by-drive", h.ByDrive)
	})

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// metricsMiddleware records handler latency per route pattern and status
// class.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(ww.Status()/100) + "xx"
		observability.RequestDuration.WithLabelValues(route, status).
			Observe(time.Since(start).Seconds())
	})
}
