package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartgrow/irrigation-edge/internal/ml"
	"github.com/smartgrow/irrigation-edge/internal/safety"
	"github.com/smartgrow/irrigation-edge/internal/services"
	"github.com/smartgrow/irrigation-edge/internal/store"
	"github.com/smartgrow/irrigation-edge/internal/ws"
)

// SetupRoutes configures all HTTP routes for the irrigation controller API
func SetupRoutes(dataStore store.DataStore, wsHub *ws.Hub, loop *services.ControlLoop, engine *ml.DecisionEngine, safetyCtl *safety.Controller) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // In production, specify allowed origins
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers := NewHandlers(dataStore, loop, engine, safetyCtl, wsHub)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// System stats
		r.Get("/stats", handlers.GetSystemStats)

		// Sensor sample routes
		r.Route("/sensors", func(r chi.Router) {
			r.Get("/latest", handlers.GetLatestSamples)
			r.Get("/recent", handlers.GetRecentSamples)

			// Inject a sample manually (for testing without the MQTT feed)
			r.Post("/data", handlers.AddSample)
		})

		// Watering decision history
		r.Route("/decisions", func(r chi.Router) {
			r.Get("/recent", handlers.GetRecentDecisions)
			r.Get("/history", handlers.GetDecisionsInRange)
		})

		// Anomaly history
		r.Route("/anomalies", func(r chi.Router) {
			r.Get("/recent", handlers.GetRecentAnomalies)
			r.Get("/history", handlers.GetAnomaliesInRange)
		})

		// Pump status and emergency control
		r.Route("/pumps", func(r chi.Router) {
			r.Get("/", handlers.GetAllPumpStatuses)
			r.Post("/stop", handlers.EmergencyStopAll)
			r.Get("/{channel}", handlers.GetPumpStatus)
			r.Post("/{channel}/stop", handlers.EmergencyStopPump)
		})

		// Safety state
		r.Route("/safety", func(r chi.Router) {
			r.Get("/health", handlers.GetSystemHealth)
			r.Post("/reset", handlers.ResetFailsafe)
			r.Post("/failsafe-mode", handlers.SetFailsafeMode)
		})

		// Plant profiles and channel assignments
		r.Route("/plants", func(r chi.Router) {
			r.Get("/", handlers.GetPlantProfiles)
			r.Post("/thresholds", handlers.SetPlantThresholds)
			r.Post("/thresholds/reset", handlers.ResetPlantThresholds)
			r.Get("/channels", handlers.GetChannelConfigs)
			r.Put("/channels/{channel}", handlers.SetChannelConfig)
			r.Get("/{plant}", handlers.GetPlantProfile)
		})

		// Export routes for decision history
		r.Route("/export", func(r chi.Router) {
			r.Get("/history.xlsx", handlers.ExportHistoryExcel)
			r.Get("/history.csv", handlers.ExportHistoryCSV)
		})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket route for real-time updates
	r.HandleFunc("/ws", wsHub.HandleWebSocket)

	return r
}
