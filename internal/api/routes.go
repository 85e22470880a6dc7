package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. health may be nil, in which case
// /health answers with a static liveness body.
func SetupRoutes(h *Handlers, health *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	} else {
		r.Get("/health", h.HealthCheck)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/", h.ListUsers)
			r.Get("/{id}", h.GetUser)
			r.Patch("/{id}/preferences", h.UpdatePreferences)
			r.Post("/{id}/activity", h.LogActivity)
			r.Get("/{id}/messages", h.ListUserMessages)
		})

		r.Route("/engagement", func(r chi.Router) {
			r.Post("/run", h.RunCycle)
			r.Get("/stats", h.GetEngagementStats)
			r.Get("/users/{id}", h.EvaluateUser)
		})

		r.Route("/utility", func(r chi.Router) {
			r.Get("/types", h.ListUtilityTypes)
			r.Post("/reminders", h.SendReminder)
			r.Post("/broadcasts", h.SendBroadcast)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/metrics", h.GetMetrics)
			r.Get("/recommendation", h.GetRecommendation)
			r.Post("/snapshot", h.CreateSnapshot)
			r.Get("/history", h.GetRecommendationHistory)
			r.Post("/track/{messageID}", h.TrackInteraction)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})

	return r
}
