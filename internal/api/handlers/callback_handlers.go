package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
)

// agentEvent is the subset of an agent event callback that gets logged.
type agentEvent struct {
	Event           string          `json:"Event"`
	AgentInstanceId string          `json:"AgentInstanceId"`
	RoomId          string          `json:"RoomId"`
	Data            json.RawMessage `json:"Data"`
}

// AgentCallback handles POST /api/callback
func (h *Handlers) AgentCallback(w http.ResponseWriter, r *http.Request) {
	var ev agentEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		log.Error().Err(err).Msg("Failed to parse agent callback")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to process callback"})
		return
	}

	logger := log.With().Str("event", ev.Event).Str("instance_id", ev.AgentInstanceId).Logger()
	switch ev.Event {
	case "UserSpeakAction":
		logger.Info().RawJSON("data", rawOrNull(ev.Data)).Msg("User speak action")
	case "AgentSpeakAction":
		logger.Info().RawJSON("data", rawOrNull(ev.Data)).Msg("Agent speak action")
	default:
		logger.Info().Str("room_id", ev.RoomId).RawJSON("data", rawOrNull(ev.Data)).Msg("Agent callback received")
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "callback received"})
}

// ZIMCallback handles POST /api/zim-callback
//
// Every parsable event is answered 200; bridge failures are reported in the
// body, never as an error status.
func (h *Handlers) ZIMCallback(w http.ResponseWriter, r *http.Request) {
	var ev models.PeerMessageEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		log.Error().Err(err).Msg("Failed to parse messaging callback")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to process callback"})
		return
	}

	out := h.Bridge.OnPeerMessage(r.Context(), ev)
	respondJSON(w, http.StatusOK, out)
}

func rawOrNull(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
