package models

import "encoding/json"

// ── Agent Definition ────────────────────────────────────────

// LLMConfig is the model section of an agent definition. Field names follow
// the control-plane wire format.
type LLMConfig struct {
	Url          string         `json:"Url"`
	ApiKey       string         `json:"ApiKey"`
	Model        string         `json:"Model"`
	SystemPrompt string         `json:"SystemPrompt,omitempty"`
	Temperature  *float64       `json:"Temperature,omitempty"`
	TopP         *float64       `json:"TopP,omitempty"`
	Params       map[string]any `json:"Params,omitempty"`
}

// FilterText strips text between BeginCharacters and EndCharacters before
// it reaches speech synthesis.
type FilterText struct {
	BeginCharacters string `json:"BeginCharacters"`
	EndCharacters   string `json:"EndCharacters"`
}

// TTSConfig is the speech synthesis section of an agent definition.
type TTSConfig struct {
	Vendor     string         `json:"Vendor"`
	Params     map[string]any `json:"Params,omitempty"`
	FilterText []FilterText   `json:"FilterText,omitempty"`
}

// ASRConfig is the speech recognition section of an agent definition.
type ASRConfig struct {
	HotWord string         `json:"HotWord,omitempty"`
	Params  map[string]any `json:"Params,omitempty"`
}

// AgentConfig groups the three provider sections compared for drift.
type AgentConfig struct {
	LLM LLMConfig `json:"LLM"`
	TTS TTSConfig `json:"TTS"`
	ASR ASRConfig `json:"ASR"`
}

// AgentDefinition is the body of RegisterAgent / UpdateAgent.
type AgentDefinition struct {
	AgentId string    `json:"AgentId"`
	Name    string    `json:"Name"`
	LLM     LLMConfig `json:"LLM"`
	TTS     TTSConfig `json:"TTS"`
	ASR     ASRConfig `json:"ASR"`
}

// AgentSummary is an agent as reported by QueryAgents / ListAgents. The
// provider sections stay raw so drift detection compares exactly what the
// control plane holds.
type AgentSummary struct {
	AgentId string          `json:"AgentId"`
	Name    string          `json:"Name"`
	LLM     json.RawMessage `json:"LLM,omitempty"`
	TTS     json.RawMessage `json:"TTS,omitempty"`
	ASR     json.RawMessage `json:"ASR,omitempty"`
}

// AgentPage is one page of ListAgents.
type AgentPage struct {
	Total  int            `json:"Total"`
	Agents []AgentSummary `json:"Agents"`
	Cursor string         `json:"Cursor,omitempty"`
}

// ── Agent Instance ──────────────────────────────────────────

// RTCInfo binds an instance to a real-time room.
type RTCInfo struct {
	RoomId        string `json:"RoomId"`
	AgentStreamId string `json:"AgentStreamId"`
	AgentUserId   string `json:"AgentUserId"`
	UserStreamId  string `json:"UserStreamId"`
}

// ZIMConfig points the control plane at a robot that stores history.
type ZIMConfig struct {
	RobotId          string `json:"RobotId"`
	LoadMessageCount int    `json:"LoadMessageCount"`
}

// Message history sync modes.
const (
	HistorySyncFromRobot = 0
	HistorySyncInline    = 1
)

// MessageHistory controls how an instance seeds conversation context.
type MessageHistory struct {
	SyncMode   int        `json:"SyncMode"`
	Messages   []any      `json:"Messages"`
	WindowSize int        `json:"WindowSize"`
	ZIM        *ZIMConfig `json:"ZIM,omitempty"`
}

// CallbackConfig toggles control-plane event callbacks.
type CallbackConfig struct {
	ASRResult int `json:"ASRResult"`
	LLMResult int `json:"LLMResult"`
}

// DigitalHumanInfo selects a digital-human avatar for an instance.
type DigitalHumanInfo struct {
	DigitalHumanId string `json:"DigitalHumanId"`
	ConfigId       string `json:"ConfigId"`
}

// AgentInstanceSpec is the body of CreateAgentInstance and
// CreateDigitalHumanAgentInstance.
type AgentInstanceSpec struct {
	AgentId        string            `json:"AgentId"`
	UserId         string            `json:"UserId"`
	RTC            RTCInfo           `json:"RTC"`
	DigitalHuman   *DigitalHumanInfo `json:"DigitalHuman,omitempty"`
	MessageHistory MessageHistory    `json:"MessageHistory"`
	LLM            *LLMConfig        `json:"LLM"`
	TTS            *TTSConfig        `json:"TTS"`
	ASR            *ASRConfig        `json:"ASR"`
	CallbackConfig *CallbackConfig   `json:"CallbackConfig"`
}

// Control-plane result codes with special meaning.
const (
	CodeSuccess                      = 0
	CodeDigitalHumanConcurrencyLimit = 410001025
)
