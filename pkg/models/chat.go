package models

import (
	"encoding/json"
	"fmt"
)

// ── Chat Turns ──────────────────────────────────────────────

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of an OpenAI-style conversation. Content holds
// text content. Content that is not a string (an array of parts, or null
// next to tool_calls) is kept verbatim in RawContent, and every field other
// than role, content and name is kept in Extra; both are re-emitted
// unchanged by MarshalJSON.
type ChatMessage struct {
	Role       string
	Content    string
	Name       string
	RawContent json.RawMessage
	Extra      map[string]json.RawMessage
}

var knownMessageFields = map[string]bool{"role": true, "content": true, "name": true}

// IsText reports whether the turn's content is a plain string.
func (m ChatMessage) IsText() bool { return m.RawContent == nil }

// UnmarshalJSON accepts string, array and null content and keeps unknown
// fields.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = ChatMessage{}
	if v, ok := raw["role"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &m.Role); err != nil {
			return fmt.Errorf("role: %w", err)
		}
	}
	if v, ok := raw["name"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &m.Name); err != nil {
			return fmt.Errorf("name: %w", err)
		}
	}
	if v, ok := raw["content"]; ok {
		if err := json.Unmarshal(v, &m.Content); err != nil || string(v) == "null" {
			m.Content = ""
			m.RawContent = append(json.RawMessage(nil), v...)
		}
	}
	for k, v := range raw {
		if knownMessageFields[k] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = v
	}
	return nil
}

// MarshalJSON emits the turn with its pass-through fields.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["role"] = m.Role
	if m.RawContent != nil {
		out["content"] = m.RawContent
	} else {
		out["content"] = m.Content
	}
	if m.Name != "" {
		out["name"] = m.Name
	}
	return json.Marshal(out)
}

// ChatCompletionRequest is an OpenAI-style chat completion request. Fields
// this service does not interpret are kept in Params and re-emitted
// unchanged when the request is forwarded upstream.
type ChatCompletionRequest struct {
	Model    string
	Messages []ChatMessage
	Stream   bool
	Params   map[string]json.RawMessage
}

var knownRequestFields = map[string]bool{"model": true, "messages": true, "stream": true}

// UnmarshalJSON splits the known fields from pass-through parameters.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ChatCompletionRequest{}
	if v, ok := raw["model"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &r.Model); err != nil {
			return fmt.Errorf("model: %w", err)
		}
	}
	if v, ok := raw["messages"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &r.Messages); err != nil {
			return fmt.Errorf("messages: %w", err)
		}
	}
	if v, ok := raw["stream"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &r.Stream); err != nil {
			return fmt.Errorf("stream: %w", err)
		}
	}
	for k, v := range raw {
		if knownRequestFields[k] {
			continue
		}
		if r.Params == nil {
			r.Params = make(map[string]json.RawMessage)
		}
		r.Params[k] = v
	}
	return nil
}

// MarshalJSON merges pass-through parameters back with the known fields.
func (r ChatCompletionRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Params)+3)
	for k, v := range r.Params {
		out[k] = v
	}
	out["model"] = r.Model
	out["messages"] = r.Messages
	out["stream"] = r.Stream
	return json.Marshal(out)
}

// Clone returns a copy whose Messages and Params can be modified without
// touching the receiver.
func (r *ChatCompletionRequest) Clone() *ChatCompletionRequest {
	cp := *r
	cp.Messages = append([]ChatMessage(nil), r.Messages...)
	if r.Params != nil {
		cp.Params = make(map[string]json.RawMessage, len(r.Params))
		for k, v := range r.Params {
			cp.Params[k] = v
		}
	}
	return &cp
}

// ── Knowledge ───────────────────────────────────────────────

// KnowledgeChunk is one retrieved passage and its source document.
type KnowledgeChunk struct {
	DocName string `json:"doc_name"`
	Content string `json:"content"`
}
