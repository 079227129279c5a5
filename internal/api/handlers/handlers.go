// Package handlers implements the HTTP handlers for the relay: the
// knowledge-augmented completion endpoint, agent instance lifecycle and the
// agent and messaging callbacks.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentoven/aiagent-relay/internal/instances"
	"github.com/agentoven/aiagent-relay/internal/messaging"
	"github.com/agentoven/aiagent-relay/internal/relay"
	"github.com/agentoven/aiagent-relay/pkg/models"
)

// ChatRelay prepares and streams a completion.
type ChatRelay interface {
	Prepare(ctx context.Context, apiKey string, in *models.ChatCompletionRequest) (*models.ChatCompletionRequest, error)
	Pipe(ctx context.Context, apiKey string, req *models.ChatCompletionRequest, sink relay.EventSink) (int, error)
}

// InstanceManager starts and stops agent instances.
type InstanceManager interface {
	Start(ctx context.Context, req instances.StartRequest) (*instances.StartResult, error)
	Stop(ctx context.Context, instanceID string) (string, error)
	AgentInfo(ctx context.Context, userID string) (*instances.AgentInfo, error)
}

// PeerBridge answers messages delivered to a robot.
type PeerBridge interface {
	OnPeerMessage(ctx context.Context, ev models.PeerMessageEvent) messaging.Outcome
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Relay     ChatRelay
	Instances InstanceManager
	Bridge    PeerBridge
}

// New creates a new Handlers instance with all dependencies.
func New(r ChatRelay, m InstanceManager, b PeerBridge) *Handlers {
	return &Handlers{Relay: r, Instances: m, Bridge: b}
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// errorMessage returns the caller-facing message of err: the Message of a
// *models.Error when set, otherwise err's text.
func errorMessage(err error) string {
	var e *models.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// respondCodeError writes the {code, message} error body used by the agent
// endpoints. code is the provider result code when one exists, otherwise
// the HTTP status.
func respondCodeError(w http.ResponseWriter, status int, err error) {
	code := models.CodeOf(err)
	if code == 0 {
		code = status
	}
	respondJSON(w, status, map[string]interface{}{
		"code":    code,
		"message": errorMessage(err),
	})
}
