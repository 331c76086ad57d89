package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device endpoints
		r.Get("/device", s.handleGetDevice)
		r.Get("/stats", s.handleGetStats)

		// Entity endpoints
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Get("/{id}", s.handleGetEntity)
			r.Get("/{id}/history", s.handleGetEntityHistory)
		})

		// State cache
		r.Get("/states", s.handleListStates)

		// Door-event history across all entities
		r.Get("/history", s.handleGetHistory)

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	mqttConnected := false
	if s.mqtt != nil {
		mqttConnected = s.mqtt.IsConnected()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          s.version,
		"device_connected": s.bridge.DeviceConnected(),
		"device_address":   s.bridge.DeviceAddress(),
		"mqtt_connected":   mqttConnected,
	})
}
