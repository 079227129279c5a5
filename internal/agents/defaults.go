package agents

import (
	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/pkg/models"
)

// DefaultTTSVendor is the speech vendor every default agent uses.
const DefaultTTSVendor = "ByteDance"

// DefaultAgentConfig derives the agent definition this process expects the
// control plane to hold. It is recomputed on every call so that drift checks
// always see the current environment.
func DefaultAgentConfig(cfg config.AgentConfig) models.AgentConfig {
	return models.AgentConfig{
		LLM: models.LLMConfig{
			Url:          cfg.LLMBaseURL,
			ApiKey:       cfg.LLMAPIKey,
			Model:        cfg.LLMModel,
			SystemPrompt: cfg.SystemPrompt,
		},
		TTS: models.TTSConfig{
			Vendor: DefaultTTSVendor,
			Params: map[string]any{
				"app": map[string]any{
					"appid":   cfg.TTSAppID,
					"token":   cfg.TTSToken,
					"cluster": cfg.TTSCluster,
				},
				"speed_ratio":  1,
				"volume_ratio": 1,
				"pitch_ratio":  1,
				"emotion":      "happy",
				"audio": map[string]any{
					"rate":       24000,
					"voice_type": cfg.TTSVoiceType,
				},
			},
			FilterText: []models.FilterText{
				{BeginCharacters: "(", EndCharacters: ")"},
				{BeginCharacters: "（", EndCharacters: "）"},
			},
		},
		ASR: models.ASRConfig{},
	}
}
