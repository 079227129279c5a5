package relay

import (
	"github.com/agentoven/aiagent-relay/internal/knowledge"
	"github.com/agentoven/aiagent-relay/pkg/models"
)

// LatestUserIndex returns the index of the last user turn, or -1.
func LatestUserIndex(msgs []models.ChatMessage) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleUser {
			return i
		}
	}
	return -1
}

// FindSystem returns the index of the first system turn, or -1.
func FindSystem(msgs []models.ChatMessage) int {
	for i, m := range msgs {
		if m.Role == models.RoleSystem {
			return i
		}
	}
	return -1
}

// SpliceKnowledge returns a copy of msgs in which the content of the turn at
// idx is replaced by that content followed by the rendered chunks. All other
// turns are copied unchanged.
func SpliceKnowledge(msgs []models.ChatMessage, idx int, chunks []models.KnowledgeChunk) []models.ChatMessage {
	out := append([]models.ChatMessage(nil), msgs...)
	if idx < 0 || idx >= len(out) {
		return out
	}
	out[idx].Content = knowledge.Splice(out[idx].Content, chunks)
	return out
}
