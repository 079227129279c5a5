// Package server provides the public entry point for initializing the relay.
//
// It is the composition root: every service is built once here and handed
// to the HTTP handlers, so embedders can wrap the handler with their own
// middleware.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/agentoven/aiagent-relay/internal/agents"
	"github.com/agentoven/aiagent-relay/internal/api"
	"github.com/agentoven/aiagent-relay/internal/api/handlers"
	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/internal/controlplane"
	"github.com/agentoven/aiagent-relay/internal/instances"
	"github.com/agentoven/aiagent-relay/internal/knowledge"
	"github.com/agentoven/aiagent-relay/internal/llm"
	"github.com/agentoven/aiagent-relay/internal/messaging"
	"github.com/agentoven/aiagent-relay/internal/relay"
	"github.com/agentoven/aiagent-relay/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized relay.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Instances owns the active agent instance. Exposed so the process can
	// stop it on shutdown.
	Instances *instances.Manager

	// Config is the server configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *config.Config {
	return config.Load()
}

// New initializes all components from the environment and returns a ready
// Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, LoadConfig())
}

// NewWithConfig initializes the relay with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if cfg.ZEGO.AppID == 0 || cfg.ZEGO.ServerSecret == "" {
		log.Warn().Msg("ZEGO_APP_ID or ZEGO_SERVER_SECRET not set, agent and messaging calls will fail")
	}
	if cfg.Upstream.BaseURL == "" {
		log.Warn().Msg("LLM_BASE_URL_REAL not set, completions will fail")
	}

	cp := controlplane.New(cfg.ZEGO.AppID, cfg.ZEGO.ServerSecret, cfg.ZEGO.AIAgentBaseURL)
	agentDir := agents.NewDirectory(cp, cfg.Agent)
	robots := messaging.NewDirectory(cp, cfg.ZEGO.ZIMBaseURL, cfg.Messaging.RobotUserID)
	manager := instances.NewManager(cp, agentDir, robots, instances.Options{
		AgentID:           cfg.Agent.ID,
		AgentName:         cfg.Agent.Name,
		AgentIDPrefix:     cfg.Agent.IDPrefix,
		HistorySyncMode:   cfg.Agent.HistorySyncMode,
		HistoryWindowSize: cfg.Agent.HistoryWindowSize,
	})
	log.Info().Str("agent_id", cfg.Agent.ID).Msg("✅ Agent directory initialized")

	retriever, err := knowledge.New(cfg.Knowledge)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("init knowledge: %w", err)
	}
	if retriever != nil {
		log.Info().Str("kb_type", retriever.Name()).Int("chunks", cfg.Knowledge.ChunkCount).Msg("✅ Knowledge retrieval enabled")
	} else {
		log.Info().Msg("Knowledge retrieval disabled")
	}

	upstream := llm.New(cfg.Upstream.BaseURL, llm.WithAPIKey(cfg.Upstream.APIKey))
	chatRelay := relay.New(upstream, retriever)
	bridge := messaging.NewBridge(robots, upstream, retriever, messaging.BridgeConfig{
		Model:         cfg.Upstream.BridgeModel,
		APIKey:        cfg.Agent.LLMAPIKey,
		SystemPrompt:  cfg.Messaging.SystemPrompt,
		HistoryWindow: cfg.Messaging.HistoryWindow,
	})
	log.Info().Str("endpoint", upstream.Endpoint()).Msg("✅ Completion relay initialized")

	h := handlers.New(chatRelay, manager, bridge)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Instances:    manager,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// Serve accepts connections on ln until ctx is done. It then stops the
// active agent instance and shuts the listener down, waiting up to grace for
// in-flight requests (including open completion streams) to finish. Serve
// returns only once that drain is over.
func (s *Server) Serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	// No WriteTimeout: completion streams stay open as long as the model
	// keeps producing.
	httpServer := &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	served := make(chan error, 1)
	go func() { served <- httpServer.Serve(ln) }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("🛑 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if s.Instances != nil {
		if id := s.Instances.Active(); id != "" {
			if _, err := s.Instances.Stop(shutdownCtx, id); err != nil {
				log.Warn().Err(err).Str("instance_id", id).Msg("Failed to stop active agent instance")
			}
		}
	}
	err := httpServer.Shutdown(shutdownCtx)
	if serveErr := <-served; !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return err
}
