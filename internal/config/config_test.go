package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "KB_TYPE", "ZEGO_APP_ID", "NEXT_PUBLIC_ZEGO_APP_ID", "BRIDGE_LLM_MODEL", "LLM_MODEL", "RAGFLOW_KB_DATASET_ID"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "", cfg.Knowledge.Type)
	assert.Equal(t, 3, cfg.Knowledge.ChunkCount)
	assert.Equal(t, int64(0), cfg.ZEGO.AppID)
	assert.Equal(t, "https://aigc-aiagent-api.zegotech.cn", cfg.ZEGO.AIAgentBaseURL)
	assert.Equal(t, "https://zim-api.zego.im", cfg.ZEGO.ZIMBaseURL)
	assert.Equal(t, "ai_agent_1", cfg.Agent.IDPrefix)
	assert.Equal(t, 1, cfg.Agent.HistorySyncMode)
	assert.Equal(t, 10, cfg.Agent.HistoryWindowSize)
	assert.Equal(t, "deepseek-v3-250324", cfg.Upstream.BridgeModel)
	assert.Equal(t, 0.2, cfg.Knowledge.RAGFlow.SimilarityThreshold)
	assert.Equal(t, 1024, cfg.Knowledge.RAGFlow.TopK)
	assert.True(t, cfg.Knowledge.RAGFlow.Keyword)
	assert.Nil(t, cfg.Knowledge.RAGFlow.DatasetIDs)
	assert.Equal(t, "@RBT#AIAgentExample1", cfg.Messaging.RobotUserID)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)
	assert.Equal(t, cfg.Version, cfg.Telemetry.ServiceVersion)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KB_TYPE", "RAGFlow")
	t.Setenv("NEXT_PUBLIC_ZEGO_APP_ID", "1234")
	t.Setenv("ZEGO_APP_ID", "")
	t.Setenv("LLM_MODEL", "doubao")
	t.Setenv("BRIDGE_LLM_MODEL", "")
	t.Setenv("RAGFLOW_API_ENDPOINT", "https://rag.example.com/")
	t.Setenv("RAGFLOW_KB_DATASET_ID", " a, ,b ")
	t.Setenv("RAGFLOW_KEYWORD", "false")
	t.Setenv("RAGFLOW_SIMILARITY_THRESHOLD", "0.5")

	cfg := Load()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "ragflow", cfg.Knowledge.Type)
	assert.Equal(t, int64(1234), cfg.ZEGO.AppID)
	assert.Equal(t, "doubao", cfg.Upstream.BridgeModel)
	assert.Equal(t, "https://rag.example.com", cfg.Knowledge.RAGFlow.Endpoint)
	assert.Equal(t, []string{"a", "b"}, cfg.Knowledge.RAGFlow.DatasetIDs)
	assert.False(t, cfg.Knowledge.RAGFlow.Keyword)
	assert.Equal(t, 0.5, cfg.Knowledge.RAGFlow.SimilarityThreshold)
}

func TestEnvHelpers_IgnoreMalformed(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_FLOAT", "1.2.3")
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.True(t, envBool("X_BOOL", true))
	assert.Equal(t, 0.3, envFloat("X_FLOAT", 0.3))
	assert.Equal(t, int64(5), envInt64("X_INT", 5))
}
