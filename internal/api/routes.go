package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	r.Use(m.Timeout(30 * time.Second))
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	// v1 API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			// Analytics
			r.Route("/analytics", func(r chi.Router) {
				r.Get("/dashboard", h.GetDashboard)
				r.Get("/trend", h.GetTrend)
				r.Post("/run", h.RunAnalytics)
			})

			// AI insights
			r.Route("/insights", func(r chi.Router) {
				r.Get("/", h.ListInsights)
				r.Get("/active", h.ListActiveInsights)
				r.Get("/metrics", h.GetInsightMetrics)
				r.Post("/{insightID}/used", h.MarkInsightUsed)
			})

			// Connected accounts
			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.ListAccounts)
				r.Post("/", h.ConnectAccount)
			})
		})
	})

	return r
}
