package messaging

import (
	"context"
	"strings"

	"github.com/agentoven/aiagent-relay/internal/knowledge"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
)

// Apology is sent back whenever a reply could not be produced.
const Apology = "抱歉，处理您的请求时出现了问题，请稍后再试。"

// PeerMessenger reads history and sends peer messages.
type PeerMessenger interface {
	QueryPeerMessages(ctx context.Context, from, to string, limit int, next int64) ([]models.HistoryMessage, int64, error)
	SendPeerMessage(ctx context.Context, from, to, text string) error
}

// Completer runs a blocking chat completion.
type Completer interface {
	Complete(ctx context.Context, apiKey, model string, messages []models.ChatMessage) (string, error)
}

// BridgeConfig holds the completion settings used for robot replies.
type BridgeConfig struct {
	Model         string
	APIKey        string
	SystemPrompt  string
	HistoryWindow int
}

// Outcome describes how an inbound event was handled. Ignored events have
// Handled=false and a reason in Message.
type Outcome struct {
	Handled bool   `json:"handled"`
	Message string `json:"message"`
	Reply   string `json:"reply,omitempty"`
}

// Bridge replies to users who message a robot.
type Bridge struct {
	msgs      PeerMessenger
	llm       Completer
	retriever knowledge.Retriever
	cfg       BridgeConfig
}

// NewBridge creates a bridge. retriever may be nil.
func NewBridge(msgs PeerMessenger, llm Completer, retriever knowledge.Retriever, cfg BridgeConfig) *Bridge {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	return &Bridge{msgs: msgs, llm: llm, retriever: retriever, cfg: cfg}
}

// ignoreReason reports why ev is not a text message a user delivered to a
// robot, or "" if it is.
func ignoreReason(ev models.PeerMessageEvent) string {
	switch {
	case ev.Event != models.EventSendMessage:
		return "ignored: not a send_msg event"
	case ev.ConvType != models.ConvTypeSingleChat:
		return "ignored: not a single chat"
	case ev.MsgType != models.MsgTypeText:
		return "ignored: not a text message"
	case ev.SendResult != 0:
		return "ignored: message was not delivered"
	case !strings.HasPrefix(ev.ConvID, models.RobotUserIdPrefix):
		return "ignored: conversation is not with a robot"
	case ev.FromUserID == "":
		return "ignored: missing sender"
	}
	return ""
}

// OnPeerMessage answers ev. It never fails: pipeline errors are logged and
// turned into an apology.
func (b *Bridge) OnPeerMessage(ctx context.Context, ev models.PeerMessageEvent) Outcome {
	if reason := ignoreReason(ev); reason != "" {
		log.Debug().Str("event", ev.Event).Str("conv_id", ev.ConvID).Msg(reason)
		return Outcome{Message: reason}
	}

	robot, user := ev.ConvID, ev.FromUserID
	logger := log.With().Str("robot", robot).Str("user", user).Logger()

	history, _, err := b.msgs.QueryPeerMessages(ctx, robot, user, b.cfg.HistoryWindow, 0)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to query message history")
		return Outcome{Handled: true, Message: "failed", Reply: Apology}
	}

	reply := Apology
	messages, err := b.buildContext(ctx, robot, history, ev.MsgBody)
	if err != nil {
		logger.Error().Err(err).Msg("Knowledge retrieval failed")
	} else if text, err := b.llm.Complete(ctx, b.cfg.APIKey, b.cfg.Model, messages); err != nil || strings.TrimSpace(text) == "" {
		logger.Error().Err(err).Msg("Failed to generate reply")
	} else {
		reply = text
	}

	if err := b.msgs.SendPeerMessage(ctx, robot, user, reply); err != nil {
		logger.Error().Err(err).Msg("Failed to send reply")
		return Outcome{Handled: true, Message: "failed", Reply: Apology}
	}

	logger.Info().Int("history", len(history)).Msg("Robot reply sent")
	return Outcome{Handled: true, Message: "ok", Reply: reply}
}

// buildContext maps history onto chat roles, appends the new turn and
// prepends the system prompt. Messages sent by the robot are the assistant's.
func (b *Bridge) buildContext(ctx context.Context, robot string, history []models.HistoryMessage, text string) ([]models.ChatMessage, error) {
	out := make([]models.ChatMessage, 0, len(history)+2)
	if b.cfg.SystemPrompt != "" {
		out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: b.cfg.SystemPrompt})
	}
	for _, m := range history {
		role := models.RoleUser
		if m.Sender == robot {
			role = models.RoleAssistant
		}
		out = append(out, models.ChatMessage{Role: role, Content: m.MsgBody})
	}

	content := text
	if b.retriever != nil {
		chunks, err := b.retriever.Retrieve(ctx, text)
		if err != nil {
			return nil, err
		}
		content = knowledge.Splice(text, chunks)
	}
	return append(out, models.ChatMessage{Role: models.RoleUser, Content: content}), nil
}
