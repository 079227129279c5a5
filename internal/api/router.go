package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/aiagent-relay/internal/api/handlers"
	"github.com/agentoven/aiagent-relay/internal/api/middleware"
	"github.com/agentoven/aiagent-relay/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "aiagent-relay"

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware. No compression: completions are streamed.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		// OpenAI-compatible completion endpoint called by the agent platform
		r.With(middleware.RequireBearer).Post("/chat/completions", h.ChatCompletions)

		// Agent instance lifecycle
		r.Post("/start", h.Start)
		r.Post("/stop", h.Stop)
		r.Post("/getAgentInfo", h.GetAgentInfo)

		// Callbacks
		r.Post("/callback", h.AgentCallback)
		r.Post("/zim-callback", h.ZIMCallback)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": serviceName,
		})
	}
}
