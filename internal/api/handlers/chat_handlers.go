package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/aiagent-relay/internal/api/middleware"
	"github.com/agentoven/aiagent-relay/internal/relay"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
)

// ChatCompletions handles POST /api/chat/completions
//
// The request is augmented with knowledge for its latest user turn and
// streamed from the upstream model. Errors before the stream opens are
// returned as JSON; once the event stream has started every outcome ends
// with the terminal marker.
func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	apiKey := middleware.GetBearerToken(r.Context())
	if apiKey == "" {
		apiKey = middleware.ExtractBearer(r)
	}
	if apiKey == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in models.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Relay.Prepare(r.Context(), apiKey, &in)
	if err != nil {
		status := models.HTTPStatusOf(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("Failed to prepare completion")
		}
		respondError(w, status, errorMessage(err))
		return
	}

	relay.WriteHeaders(w)
	sink := relay.NewSSESink(r.Context(), w)
	n, err := h.Relay.Pipe(r.Context(), apiKey, req, sink)
	if err != nil {
		log.Debug().Err(err).Int("chunks", n).Msg("Completion stream ended early")
		return
	}
	log.Debug().Int("chunks", n).Str("model", req.Model).Msg("Completion streamed")
}
