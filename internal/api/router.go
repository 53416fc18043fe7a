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
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/scenes", s.handleScenes)
		r.Post("/discover", s.handleDiscover)
		r.Delete("/cache", s.handleClearCache)
		r.Get("/commands", s.handleCommands)

		r.Route("/bulb", func(r chi.Router) {
			r.Get("/state", s.handleGetState)
			r.Post("/{verb}", s.handleVerb)
		})

		r.Route("/bulbs", func(r chi.Router) {
			r.Get("/", s.handleListBulbs)
			r.Get("/{mac}/history", s.handleHistory)
		})
	})

	return r
}

// handleHealth returns the server health and the session's view of the bulb.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"session": s.controller.SessionState().String(),
	}
	if target, ok := s.controller.Target(); ok {
		resp["target"] = map[string]any{
			"ip":   target.Address,
			"port": target.Port,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
