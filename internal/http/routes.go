package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jbb1988/VF4Tester/internal/store"
	"github.com/jbb1988/VF4Tester/internal/ws"
)

// SetupRoutes configures all HTTP routes for the meter testing API
func SetupRoutes(dataStore store.DataStore, wsHub *ws.Hub) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // In production, specify allowed origins
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers := NewHandlers(dataStore, wsHub)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// System stats
		r.Get("/stats", handlers.GetSystemStats)

		// Test result routes
		r.Route("/tests", func(r chi.Router) {
			r.Post("/", handlers.RecordTest)
			r.Get("/", handlers.GetTests)
			r.Get("/recent", handlers.GetRecentTests)
			r.Get("/stats", handlers.GetTestStats)
			r.Get("/trend", handlers.GetTestTrend)
			r.Get("/{id}", handlers.GetTest)
			r.Get("/{id}/export.csv", handlers.ExportTestCSV)
			r.Patch("/{id}/notes", handlers.UpdateTestNotes)
		})

		// Session preferences
		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", handlers.GetPreferences)
			r.Put("/", handlers.UpdatePreferences)
		})

		// Export routes for test history
		r.Route("/export", func(r chi.Router) {
			r.Get("/results.csv", handlers.ExportCSV)
			r.Get("/results.json", handlers.ExportJSON)
			r.Get("/results.xlsx", handlers.ExportExcel)
			r.Get("/report", handlers.ExportReport)
		})
	})

	// WebSocket route for real-time updates
	r.HandleFunc("/ws", wsHub.HandleWebSocket)

	return r
}
