// Package agents manages remote agent definitions on the control plane:
// lookup, registration, update and the drift check that keeps repeated
// registration calls from issuing redundant updates.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/internal/controlplane"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Control-plane actions owned by the directory.
const (
	ActionQueryAgents   = "QueryAgents"
	ActionRegisterAgent = "RegisterAgent"
	ActionUpdateAgent   = "UpdateAgent"
	ActionListAgents    = "ListAgents"
)

// Directory queries, registers and updates agents.
type Directory struct {
	cp       controlplane.Sender
	defaults config.AgentConfig

	// ensure collapses concurrent EnsureAgentRegistered calls per agent id.
	ensure singleflight.Group
}

// NewDirectory creates an agent directory backed by the signed client.
func NewDirectory(cp controlplane.Sender, defaults config.AgentConfig) *Directory {
	return &Directory{cp: cp, defaults: defaults}
}

// DefaultConfig returns the locally computed default agent configuration.
func (d *Directory) DefaultConfig() models.AgentConfig {
	return DefaultAgentConfig(d.defaults)
}

// call sends action and fails with a provisioning error when the control
// plane answers with a non-zero Code.
func (d *Directory) call(ctx context.Context, action string, body any) (*controlplane.Envelope, error) {
	var env controlplane.Envelope
	if err := d.cp.Send(ctx, action, body, &env); err != nil {
		return nil, err
	}
	if env.Code != models.CodeSuccess {
		return &env, models.NewProvisioningError("agents."+action, env.Code, nil,
			"control plane rejected request: %s (request %s)", env.Message, env.RequestId)
	}
	return &env, nil
}

// QueryAgents returns the agents among ids that exist remotely. An empty
// result means none are registered.
func (d *Directory) QueryAgents(ctx context.Context, ids []string) ([]models.AgentSummary, error) {
	env, err := d.call(ctx, ActionQueryAgents, map[string]any{"AgentIds": ids})
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var data struct {
		Agents []models.AgentSummary `json:"Agents"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("agents.QueryAgents: decode data: %w", err)
	}
	log.Debug().Strs("agent_ids", ids).Int("found", len(data.Agents)).Msg("Queried agents")
	return data.Agents, nil
}

// ListAgents pages through every agent registered for the app.
func (d *Directory) ListAgents(ctx context.Context, limit int, cursor string) (*models.AgentPage, error) {
	body := map[string]any{}
	if limit > 0 {
		body["Limit"] = limit
	}
	if cursor != "" {
		body["Cursor"] = cursor
	}
	env, err := d.call(ctx, ActionListAgents, body)
	if err != nil {
		return nil, err
	}
	page := &models.AgentPage{}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, page); err != nil {
			return nil, fmt.Errorf("agents.ListAgents: decode data: %w", err)
		}
	}
	return page, nil
}

// definition merges the optional overrides over the defaults. Each override
// replaces its whole section.
func (d *Directory) definition(op, agentID, name string, llm *models.LLMConfig, tts *models.TTSConfig, asr *models.ASRConfig) (*models.AgentDefinition, error) {
	if d.defaults.LLMBaseURL == "" || d.defaults.LLMAPIKey == "" || d.defaults.LLMModel == "" {
		return nil, models.NewConfigurationError(op, "LLM_BASE_URL, LLM_API_KEY and LLM_MODEL must be set")
	}
	def := d.DefaultConfig()
	out := &models.AgentDefinition{AgentId: agentID, Name: name, LLM: def.LLM, TTS: def.TTS, ASR: def.ASR}
	if llm != nil {
		out.LLM = *llm
	}
	if tts != nil {
		out.TTS = *tts
	}
	if asr != nil {
		out.ASR = *asr
	}
	return out, nil
}

// RegisterAgent creates an agent definition remotely.
func (d *Directory) RegisterAgent(ctx context.Context, agentID, name string, llm *models.LLMConfig, tts *models.TTSConfig, asr *models.ASRConfig) error {
	def, err := d.definition("agents.RegisterAgent", agentID, name, llm, tts, asr)
	if err != nil {
		return err
	}
	if _, err := d.call(ctx, ActionRegisterAgent, def); err != nil {
		return err
	}
	log.Info().Str("agent_id", agentID).Msg("Agent registered")
	return nil
}

// UpdateAgent replaces an existing agent definition remotely.
func (d *Directory) UpdateAgent(ctx context.Context, agentID, name string, llm *models.LLMConfig, tts *models.TTSConfig, asr *models.ASRConfig) error {
	def, err := d.definition("agents.UpdateAgent", agentID, name, llm, tts, asr)
	if err != nil {
		return err
	}
	if _, err := d.call(ctx, ActionUpdateAgent, def); err != nil {
		return err
	}
	log.Info().Str("agent_id", agentID).Msg("Agent updated")
	return nil
}

// CompareAgentConfig reports whether the remote agent's LLM, TTS and ASR
// sections deep-equal the local defaults. Both sides are compared in their
// JSON form so number types and key order do not matter.
func (d *Directory) CompareAgentConfig(remote models.AgentSummary) bool {
	def := d.DefaultConfig()
	local := map[string]any{
		"LLM": normalize(def.LLM),
		"TTS": normalize(def.TTS),
		"ASR": normalize(def.ASR),
	}
	other := map[string]any{
		"LLM": normalizeRaw(remote.LLM),
		"TTS": normalizeRaw(remote.TTS),
		"ASR": normalizeRaw(remote.ASR),
	}
	return reflect.DeepEqual(local, other)
}

func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return normalizeRaw(raw)
}

func normalizeRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func findAgent(agents []models.AgentSummary, agentID string) *models.AgentSummary {
	for i := range agents {
		if agents[i].AgentId == agentID {
			return &agents[i]
		}
	}
	return nil
}

// EnsureAgentRegistered registers the agent when it is missing, updates it
// when its remote config drifted from the defaults, and otherwise does
// nothing. Concurrent calls for the same id share one execution; a failed
// registration that raced with another registrar is resolved by querying
// again.
func (d *Directory) EnsureAgentRegistered(ctx context.Context, agentID, name string) error {
	// The shared execution outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	_, err, joined := d.ensure.Do(agentID, func() (any, error) {
		return nil, d.ensureRegistered(shared, agentID, name)
	})
	if joined {
		log.Debug().Str("agent_id", agentID).Msg("Joined in-flight agent registration")
	}
	return err
}

func (d *Directory) ensureRegistered(ctx context.Context, agentID, name string) error {
	agents, err := d.QueryAgents(ctx, []string{agentID})
	if err != nil {
		return fmt.Errorf("ensure agent %s: %w", agentID, err)
	}

	existing := findAgent(agents, agentID)
	if existing == nil {
		regErr := d.RegisterAgent(ctx, agentID, name, nil, nil, nil)
		if regErr == nil {
			return nil
		}
		if models.IsKind(regErr, models.KindConfiguration) {
			return fmt.Errorf("ensure agent %s: %w", agentID, regErr)
		}
		// Another registrar may have won; the remote copy is authoritative.
		again, err := d.QueryAgents(ctx, []string{agentID})
		if err == nil && findAgent(again, agentID) != nil {
			log.Info().Str("agent_id", agentID).Msg("Agent already exists, registration skipped")
			return nil
		}
		log.Error().Err(regErr).Str("agent_id", agentID).Msg("Agent registration failed")
		return fmt.Errorf("ensure agent %s: %w", agentID, regErr)
	}

	if d.CompareAgentConfig(*existing) {
		log.Debug().Str("agent_id", agentID).Msg("Agent exists with current config")
		return nil
	}

	log.Info().Str("agent_id", agentID).Msg("Agent config drifted, updating")
	if err := d.UpdateAgent(ctx, agentID, name, nil, nil, nil); err != nil {
		return fmt.Errorf("ensure agent %s: %w", agentID, err)
	}
	return nil
}
