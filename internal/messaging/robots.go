// Package messaging talks to the in-app messaging provider. Robots are
// messaging identities that hold an agent's text conversation history; the
// Bridge answers users who write to a robot directly.
package messaging

import (
	"context"

	"github.com/agentoven/aiagent-relay/internal/controlplane"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Messaging provider actions.
const (
	ActionRobotRegister   = "RobotRegister"
	ActionQueryPeerMsg    = "QueryPeerMsg"
	ActionSendPeerMessage = "SendPeerMessage"
)

// DefaultBaseURL is the messaging provider endpoint.
const DefaultBaseURL = "https://zim-api.zego.im"

type subError struct {
	UserId     string `json:"UserId"`
	SubCode    int    `json:"SubCode"`
	SubMessage string `json:"SubMessage"`
}

type registerResponse struct {
	Code      int        `json:"Code"`
	Message   string     `json:"Message"`
	RequestId string     `json:"RequestId"`
	ErrorList []subError `json:"ErrorList"`
	Data      *struct {
		RobotId string `json:"RobotId"`
	} `json:"Data"`
}

type historyResponse struct {
	Code      int                     `json:"Code"`
	Message   string                  `json:"Message"`
	RequestId string                  `json:"RequestId"`
	Next      int64                   `json:"Next"`
	List      []models.HistoryMessage `json:"List"`
}

type sendResponse struct {
	Code      int        `json:"Code"`
	Message   string     `json:"Message"`
	RequestId string     `json:"RequestId"`
	ErrorList []subError `json:"ErrorList"`
}

// Directory provisions robots and reads/writes peer messages. It shares the
// agent control plane's signing credentials but targets its own base URL.
type Directory struct {
	cp           controlplane.Sender
	baseURL      string
	defaultRobot string

	register singleflight.Group
}

// NewDirectory creates a messaging directory. defaultRobot is used when
// EnsureRobotExists is called without a user id.
func NewDirectory(cp controlplane.Sender, baseURL, defaultRobot string) *Directory {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Directory{cp: cp, baseURL: baseURL, defaultRobot: defaultRobot}
}

func (d *Directory) send(ctx context.Context, action string, body, out any) error {
	return d.cp.Send(ctx, action, body, out, controlplane.WithBaseURL(d.baseURL))
}

// EnsureRobotExists registers robotUserID. A robot that is already
// registered is reported with IsNewRegistration=false; any other provider
// failure is a registration error.
func (d *Directory) EnsureRobotExists(ctx context.Context, robotUserID string) (*models.RobotRegistration, error) {
	if robotUserID == "" {
		robotUserID = d.defaultRobot
	}
	detached := context.WithoutCancel(ctx)
	v, err, _ := d.register.Do(robotUserID, func() (any, error) {
		return d.registerRobot(detached, robotUserID)
	})
	if err != nil {
		return nil, err
	}
	reg := *v.(*models.RobotRegistration)
	return &reg, nil
}

func (d *Directory) registerRobot(ctx context.Context, robotUserID string) (*models.RobotRegistration, error) {
	const op = "messaging.EnsureRobotExists"

	var resp registerResponse
	body := map[string]any{"UserInfo": []map[string]string{{"UserId": robotUserID}}}
	if err := d.send(ctx, ActionRobotRegister, body, &resp); err != nil {
		return nil, models.NewRegistrationError(op, 0, err, "register robot %s", robotUserID)
	}

	switch {
	case resp.Code == models.CodeSuccess && len(resp.ErrorList) == 0:
		robotID := robotUserID
		if resp.Data != nil && resp.Data.RobotId != "" {
			robotID = resp.Data.RobotId
		}
		log.Info().Str("robot_id", robotID).Msg("Robot registered")
		return &models.RobotRegistration{RobotId: robotID, IsNewRegistration: true}, nil
	case len(resp.ErrorList) > 0 && resp.ErrorList[0].SubCode == models.SubCodeRobotAlreadyExists:
		log.Debug().Str("robot_id", robotUserID).Msg("Robot already exists")
		return &models.RobotRegistration{RobotId: robotUserID, IsNewRegistration: false}, nil
	case len(resp.ErrorList) > 0:
		e := resp.ErrorList[0]
		return nil, models.NewRegistrationError(op, e.SubCode, nil, "register robot %s failed: %s", robotUserID, e.SubMessage)
	default:
		return nil, models.NewRegistrationError(op, resp.Code, nil, "register robot %s failed: %s", robotUserID, resp.Message)
	}
}

// QueryPeerMessages returns up to limit messages exchanged between from and
// to, oldest first as the provider orders them, plus the paging cursor.
func (d *Directory) QueryPeerMessages(ctx context.Context, from, to string, limit int, next int64) ([]models.HistoryMessage, int64, error) {
	var resp historyResponse
	body := map[string]any{
		"FromUserId":   from,
		"ToUserId":     to,
		"Limit":        limit,
		"Next":         next,
		"WithEmptyMsg": 0,
	}
	if err := d.send(ctx, ActionQueryPeerMsg, body, &resp); err != nil {
		return nil, 0, err
	}
	if resp.Code != models.CodeSuccess {
		return nil, 0, models.NewTransportError("messaging.QueryPeerMessages", nil,
			"query history failed: %s (code %d)", resp.Message, resp.Code)
	}
	return resp.List, resp.Next, nil
}

// SendPeerMessage sends a text message from one user to another at medium
// priority.
func (d *Directory) SendPeerMessage(ctx context.Context, from, to, text string) error {
	var resp sendResponse
	body := map[string]any{
		"FromUserId":  from,
		"ToUserId":    []string{to},
		"MessageType": models.MsgTypeText,
		"Priority":    models.PriorityMedium,
		"MessageBody": models.MessageBody{Message: text},
	}
	if err := d.send(ctx, ActionSendPeerMessage, body, &resp); err != nil {
		return err
	}
	if resp.Code != models.CodeSuccess {
		return models.NewTransportError("messaging.SendPeerMessage", nil, "send failed: %s (code %d)", resp.Message, resp.Code)
	}
	if len(resp.ErrorList) > 0 {
		e := resp.ErrorList[0]
		return models.NewTransportError("messaging.SendPeerMessage", nil, "send to %s failed (sub code %d)", e.UserId, e.SubCode)
	}
	return nil
}
