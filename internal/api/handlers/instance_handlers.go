package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/aiagent-relay/internal/instances"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
)

// ══════════════════════════════════════════════════════════════
// ── Agent Instance Handlers ──────────────────────────────────
// ══════════════════════════════════════════════════════════════

type digitalHumanRequest struct {
	DigitalHumanID string `json:"digital_human_id"`
	ConfigID       string `json:"config_id"`
}

type startRequest struct {
	AgentID       string               `json:"agent_id"`
	AgentName     string               `json:"agent_name"`
	UserID        string               `json:"user_id"`
	RoomID        string               `json:"room_id"`
	UserStreamID  string               `json:"user_stream_id"`
	AgentStreamID string               `json:"agent_stream_id"`
	AgentUserID   string               `json:"agent_user_id"`
	DigitalHuman  *digitalHumanRequest `json:"digital_human"`

	LLM            *models.LLMConfig      `json:"llm"`
	TTS            *models.TTSConfig      `json:"tts"`
	ASR            *models.ASRConfig      `json:"asr"`
	CallbackConfig *models.CallbackConfig `json:"callback_config"`
}

// Start handles POST /api/start
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"code":    http.StatusBadRequest,
			"message": "invalid request body",
		})
		return
	}

	start := instances.StartRequest{
		AgentID:        req.AgentID,
		AgentName:      req.AgentName,
		UserID:         req.UserID,
		RoomID:         req.RoomID,
		UserStreamID:   req.UserStreamID,
		AgentStreamID:  req.AgentStreamID,
		AgentUserID:    req.AgentUserID,
		LLM:            req.LLM,
		TTS:            req.TTS,
		ASR:            req.ASR,
		CallbackConfig: req.CallbackConfig,
	}
	if dh := req.DigitalHuman; dh != nil && dh.DigitalHumanID != "" {
		start.DigitalHuman = &models.DigitalHumanInfo{
			DigitalHumanId: dh.DigitalHumanID,
			ConfigId:       dh.ConfigID,
		}
	}

	res, err := h.Instances.Start(r.Context(), start)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to start agent instance")
		respondCodeError(w, models.HTTPStatusOf(err), err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"code":              0,
		"message":           "start agent success",
		"agent_id":          res.AgentID,
		"agent_instance_id": res.AgentInstanceID,
		"agent_stream_id":   res.AgentStreamID,
		"agent_user_id":     res.AgentUserID,
		"robot_id":          res.RobotID,
	})
}

// Stop handles POST /api/stop
//
// The body is optional; without an agent_instance_id the active instance is
// stopped.
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentInstanceID string `json:"agent_instance_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("No stop body, using the active instance")
	}

	id, err := h.Instances.Stop(r.Context(), req.AgentInstanceID)
	if err != nil {
		if !models.IsKind(err, models.KindNotFound) {
			log.Error().Err(err).Str("instance_id", req.AgentInstanceID).Msg("Failed to stop agent instance")
		}
		respondCodeError(w, models.HTTPStatusOf(err), err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"code":              0,
		"message":           "delete agent instance success",
		"agent_instance_id": id,
	})
}

// GetAgentInfo handles POST /api/getAgentInfo
func (h *Handlers) GetAgentInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("No agent info body")
	}

	info, err := h.Instances.AgentInfo(r.Context(), req.UserID)
	if err != nil {
		status := http.StatusInternalServerError
		if models.IsKind(err, models.KindValidation) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to get agent info")
		respondCodeError(w, status, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"code":                      0,
		"message":                   "get agent info success",
		"agent_id":                  info.AgentID,
		"agent_name":                info.AgentName,
		"robot_id":                  info.RobotID,
		"is_new_robot_registration": info.IsNewRobotRegistration,
	})
}
