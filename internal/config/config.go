package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the relay.
type Config struct {
	Port      int
	Version   string
	LogLevel  string
	Telemetry TelemetryConfig
	ZEGO      ZEGOConfig
	Agent     AgentConfig
	Upstream  UpstreamConfig
	Knowledge KnowledgeConfig
	Messaging MessagingConfig
}

type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

// ZEGOConfig holds the signing credentials shared by the agent control
// plane and the messaging provider.
type ZEGOConfig struct {
	AppID          int64
	ServerSecret   string
	AIAgentBaseURL string
	ZIMBaseURL     string
}

// AgentConfig is the locally derived default agent definition.
type AgentConfig struct {
	ID           string
	Name         string
	IDPrefix     string
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	SystemPrompt string

	TTSAppID     string
	TTSToken     string
	TTSCluster   string
	TTSVoiceType string

	HistorySyncMode   int
	HistoryWindowSize int
}

// UpstreamConfig points at the real model provider behind the relay.
type UpstreamConfig struct {
	BaseURL     string
	APIKey      string
	BridgeModel string
}

// KnowledgeConfig selects and configures the knowledge provider.
type KnowledgeConfig struct {
	// Type is "ragflow", "vector" or empty for none.
	Type       string
	ChunkCount int
	RAGFlow    RAGFlowConfig
	Vector     VectorConfig
}

type RAGFlowConfig struct {
	APIKey                 string
	Endpoint               string
	DatasetIDs             []string
	DocumentIDs            []string
	PageSize               int
	SimilarityThreshold    float64
	VectorSimilarityWeight float64
	TopK                   int
	RerankID               string
	Keyword                bool
	Highlight              bool
}

type VectorConfig struct {
	QdrantURL         string
	QdrantAPIKey      string
	Collection        string
	DocNameField      string
	TextField         string
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingEndpoint string
}

type MessagingConfig struct {
	RobotUserID   string
	HistoryWindow int
	SystemPrompt  string
}

const defaultAgentSystemPrompt = `
请根据用户提供的知识库内容用友好的语气回答用户问题，如果用户的问题不在知识库中，请礼貌的告诉用户我们没有相关的知识库内容。
`

const defaultBridgeSystemPrompt = "你是一个有帮助的助手，请简洁明了地回答用户问题。"

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	version := envStr("SERVICE_VERSION", "0.1.0")
	return &Config{
		Port:     envInt("PORT", 8080),
		Version:  version,
		LogLevel: envStr("LOG_LEVEL", "info"),
		Telemetry: TelemetryConfig{
			Enabled:        envBool("OTEL_ENABLED", false),
			OTLPEndpoint:   envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:    envStr("OTEL_SERVICE_NAME", "aiagent-relay"),
			ServiceVersion: version,
			SampleRatio:    envFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
		ZEGO: ZEGOConfig{
			AppID:          envInt64("ZEGO_APP_ID", envInt64("NEXT_PUBLIC_ZEGO_APP_ID", 0)),
			ServerSecret:   envStr("ZEGO_SERVER_SECRET", ""),
			AIAgentBaseURL: envStr("ZEGO_AIAGENT_BASE_URL", "https://aigc-aiagent-api.zegotech.cn"),
			ZIMBaseURL:     envStr("ZEGO_ZIM_BASE_URL", "https://zim-api.zego.im"),
		},
		Agent: AgentConfig{
			ID:                envStr("AGENT_ID", "ai_agent_example_1"),
			Name:              envStr("AGENT_NAME", "李浩然"),
			IDPrefix:          envStr("AGENT_ID_PREFIX", "ai_agent_1"),
			LLMBaseURL:        envStr("LLM_BASE_URL", ""),
			LLMAPIKey:         envStr("LLM_API_KEY", ""),
			LLMModel:          envStr("LLM_MODEL", ""),
			SystemPrompt:      envStr("AGENT_SYSTEM_PROMPT", defaultAgentSystemPrompt),
			TTSAppID:          envStr("TTS_BYTEDANCE_APP_ID", ""),
			TTSToken:          envStr("TTS_BYTEDANCE_TOKEN", ""),
			TTSCluster:        envStr("TTS_BYTEDANCE_CLUSTER", ""),
			TTSVoiceType:      envStr("TTS_BYTEDANCE_VOICE_TYPE", ""),
			HistorySyncMode:   envInt("MESSAGE_HISTORY_SYNC_MODE", 1),
			HistoryWindowSize: envInt("MESSAGE_HISTORY_WINDOW_SIZE", 10),
		},
		Upstream: UpstreamConfig{
			BaseURL:     envStr("LLM_BASE_URL_REAL", ""),
			APIKey:      envStr("LLM_API_KEY_REAL", ""),
			BridgeModel: envStr("BRIDGE_LLM_MODEL", envStr("LLM_MODEL", "deepseek-v3-250324")),
		},
		Knowledge: KnowledgeConfig{
			Type:       strings.ToLower(envStr("KB_TYPE", "")),
			ChunkCount: envInt("KB_CHUNK_COUNT", 3),
			RAGFlow: RAGFlowConfig{
				APIKey:                 envStr("RAGFLOW_API_KEY", ""),
				Endpoint:               strings.TrimRight(envStr("RAGFLOW_API_ENDPOINT", ""), "/"),
				DatasetIDs:             envList("RAGFLOW_KB_DATASET_ID"),
				DocumentIDs:            envList("RAGFLOW_DOCUMENT_IDS"),
				PageSize:               envInt("RAGFLOW_PAGE_SIZE", 100),
				SimilarityThreshold:    envFloat("RAGFLOW_SIMILARITY_THRESHOLD", 0.2),
				VectorSimilarityWeight: envFloat("RAGFLOW_VECTOR_SIMILARITY_WEIGHT", 0.3),
				TopK:                   envInt("RAGFLOW_TOP_K", 1024),
				RerankID:               envStr("RAGFLOW_RERANK_ID", ""),
				Keyword:                envBool("RAGFLOW_KEYWORD", true),
				Highlight:              envBool("RAGFLOW_HIGHLIGHT", false),
			},
			Vector: VectorConfig{
				QdrantURL:         envStr("QDRANT_URL", ""),
				QdrantAPIKey:      envStr("QDRANT_API_KEY", ""),
				Collection:        envStr("QDRANT_COLLECTION", ""),
				DocNameField:      envStr("QDRANT_DOC_NAME_FIELD", "doc_name"),
				TextField:         envStr("QDRANT_TEXT_FIELD", "text"),
				EmbeddingProvider: envStr("EMBEDDING_PROVIDER", "openai"),
				EmbeddingModel:    envStr("EMBEDDING_MODEL", "text-embedding-3-small"),
				EmbeddingAPIKey:   envStr("EMBEDDING_API_KEY", ""),
				EmbeddingEndpoint: envStr("EMBEDDING_ENDPOINT", ""),
			},
		},
		Messaging: MessagingConfig{
			RobotUserID:   envStr("ROBOT_USER_ID", "@RBT#AIAgentExample1"),
			HistoryWindow: envInt("BRIDGE_HISTORY_WINDOW", 20),
			SystemPrompt:  envStr("BRIDGE_SYSTEM_PROMPT", defaultBridgeSystemPrompt),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
