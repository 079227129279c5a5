// Package instances starts and stops agent instances: live bindings of a
// registered agent to a real-time room. At most one instance is tracked as
// active per process; starting a new one tears the previous one down.
package instances

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/agentoven/aiagent-relay/internal/controlplane"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Control-plane actions owned by the manager.
const (
	ActionCreateAgentInstance             = "CreateAgentInstance"
	ActionCreateDigitalHumanAgentInstance = "CreateDigitalHumanAgentInstance"
	ActionDeleteAgentInstance             = "DeleteAgentInstance"
)

// AgentEnsurer makes sure an agent definition exists remotely.
type AgentEnsurer interface {
	EnsureAgentRegistered(ctx context.Context, agentID, name string) error
}

// RobotEnsurer makes sure a messaging robot exists.
type RobotEnsurer interface {
	EnsureRobotExists(ctx context.Context, robotUserID string) (*models.RobotRegistration, error)
}

// Options carries the defaults applied to every start request.
type Options struct {
	AgentID           string
	AgentName         string
	AgentIDPrefix     string
	HistorySyncMode   int
	HistoryWindowSize int
}

// Manager owns the active instance id. Start and Stop are serialized.
type Manager struct {
	cp     controlplane.Sender
	agents AgentEnsurer
	robots RobotEnsurer
	opts   Options

	mu     sync.Mutex
	active ActiveInstance
}

// NewManager creates an instance manager.
func NewManager(cp controlplane.Sender, agents AgentEnsurer, robots RobotEnsurer, opts Options) *Manager {
	return &Manager{cp: cp, agents: agents, robots: robots, opts: opts}
}

// StartRequest describes an instance to create. Empty AgentID and AgentName
// fall back to the configured agent; empty stream and user ids for the
// agent side are generated.
type StartRequest struct {
	AgentID       string
	AgentName     string
	UserID        string
	RoomID        string
	UserStreamID  string
	AgentStreamID string
	AgentUserID   string

	DigitalHuman   *models.DigitalHumanInfo
	LLM            *models.LLMConfig
	TTS            *models.TTSConfig
	ASR            *models.ASRConfig
	CallbackConfig *models.CallbackConfig
}

// StartResult reports the created instance.
type StartResult struct {
	AgentID         string
	AgentInstanceID string
	AgentStreamID   string
	AgentUserID     string
	RobotID         string
}

// AgentInfo reports the agent and robot provisioned for a user.
type AgentInfo struct {
	AgentID                string
	AgentName              string
	RobotID                string
	IsNewRobotRegistration bool
}

// RobotUserID returns the robot identity that stores an agent's history.
func RobotUserID(agentID string) string {
	return models.RobotUserIdPrefix + agentID
}

func randomID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// provisioning wraps err as a provisioning error unless it already carries
// a kind that maps to a more precise status.
func provisioning(op string, err error, format string, args ...any) error {
	switch models.KindOf(err) {
	case models.KindProvisioning, models.KindConfiguration, models.KindValidation:
		return err
	}
	return models.NewProvisioningError(op, models.CodeOf(err), err, format, args...)
}

// Active returns the recorded active instance id.
func (m *Manager) Active() string { return m.active.Get() }

// AgentInfo ensures the per-user agent (AgentIDPrefix_userID) and its robot
// exist.
func (m *Manager) AgentInfo(ctx context.Context, userID string) (*AgentInfo, error) {
	const op = "instances.AgentInfo"
	if userID == "" {
		return nil, models.NewValidationError(op, "user_id is required")
	}
	agentID := m.opts.AgentIDPrefix + "_" + userID

	if err := m.agents.EnsureAgentRegistered(ctx, agentID, m.opts.AgentName); err != nil {
		return nil, provisioning(op, err, "ensure agent %s", agentID)
	}
	reg, err := m.robots.EnsureRobotExists(ctx, RobotUserID(agentID))
	if err != nil {
		return nil, err
	}
	return &AgentInfo{
		AgentID:                agentID,
		AgentName:              m.opts.AgentName,
		RobotID:                reg.RobotId,
		IsNewRobotRegistration: reg.IsNewRegistration,
	}, nil
}

// Start creates a new instance and records it as the active one. Any
// previously recorded instance is deleted first; if that delete fails the
// stale id is still dropped so it is never reported as active again.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	const op = "instances.Start"
	if req.UserID == "" || req.RoomID == "" || req.UserStreamID == "" {
		return nil, models.NewValidationError(op, "user_id, room_id and user_stream_id are required")
	}
	if req.AgentID == "" {
		req.AgentID = m.opts.AgentID
	}
	if req.AgentName == "" {
		req.AgentName = m.opts.AgentName
	}
	if req.AgentStreamID == "" {
		req.AgentStreamID = randomID("stream_agent_")
	}
	if req.AgentUserID == "" {
		req.AgentUserID = randomID("user_agent_")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	logger := log.With().Str("agent_id", req.AgentID).Str("room_id", req.RoomID).Logger()

	if err := m.agents.EnsureAgentRegistered(ctx, req.AgentID, req.AgentName); err != nil {
		return nil, provisioning(op, err, "ensure agent %s", req.AgentID)
	}

	robotID := RobotUserID(req.AgentID)
	if _, err := m.robots.EnsureRobotExists(ctx, robotID); err != nil {
		return nil, provisioning(op, err, "ensure robot %s", robotID)
	}

	if previous := m.active.Get(); previous != "" {
		if err := m.deleteInstance(ctx, previous); err != nil {
			logger.Warn().Err(err).Str("instance_id", previous).Msg("Failed to delete previous instance, dropping it")
		} else {
			logger.Info().Str("instance_id", previous).Msg("Previous instance deleted")
		}
		m.active.CompareAndSwap(previous, "")
	}

	spec := models.AgentInstanceSpec{
		AgentId: req.AgentID,
		UserId:  req.UserID,
		RTC: models.RTCInfo{
			RoomId:        req.RoomID,
			AgentStreamId: req.AgentStreamID,
			AgentUserId:   req.AgentUserID,
			UserStreamId:  req.UserStreamID,
		},
		DigitalHuman:   req.DigitalHuman,
		MessageHistory: m.messageHistory(robotID),
		LLM:            req.LLM,
		TTS:            req.TTS,
		ASR:            req.ASR,
		CallbackConfig: req.CallbackConfig,
	}
	action := ActionCreateAgentInstance
	if req.DigitalHuman != nil {
		action = ActionCreateDigitalHumanAgentInstance
	}

	instanceID, err := m.createInstance(ctx, action, spec)
	if err != nil {
		return nil, err
	}
	m.active.Set(instanceID)
	logger.Info().Str("instance_id", instanceID).Str("action", action).Msg("Agent instance started")

	return &StartResult{
		AgentID:         req.AgentID,
		AgentInstanceID: instanceID,
		AgentStreamID:   req.AgentStreamID,
		AgentUserID:     req.AgentUserID,
		RobotID:         robotID,
	}, nil
}

func (m *Manager) messageHistory(robotID string) models.MessageHistory {
	h := models.MessageHistory{
		SyncMode:   m.opts.HistorySyncMode,
		Messages:   []any{},
		WindowSize: m.opts.HistoryWindowSize,
	}
	if h.SyncMode == models.HistorySyncFromRobot {
		h.ZIM = &models.ZIMConfig{RobotId: robotID, LoadMessageCount: h.WindowSize}
	}
	return h
}

func (m *Manager) createInstance(ctx context.Context, action string, spec models.AgentInstanceSpec) (string, error) {
	const op = "instances.Start"
	var env controlplane.Envelope
	if err := m.cp.Send(ctx, action, spec, &env); err != nil {
		return "", provisioning(op, err, "%s", action)
	}
	if env.Code != models.CodeSuccess {
		if env.Code == models.CodeDigitalHumanConcurrencyLimit {
			return "", models.NewProvisioningError(op, env.Code, nil, "digital human concurrency limit reached")
		}
		return "", models.NewProvisioningError(op, env.Code, nil, "%s rejected: %s", action, env.Message)
	}
	var data struct {
		AgentInstanceId string `json:"AgentInstanceId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AgentInstanceId == "" {
		return "", models.NewProvisioningError(op, 0, err, "%s returned no instance id", action)
	}
	return data.AgentInstanceId, nil
}

func (m *Manager) deleteInstance(ctx context.Context, instanceID string) error {
	var env controlplane.Envelope
	if err := m.cp.Send(ctx, ActionDeleteAgentInstance, map[string]string{"AgentInstanceId": instanceID}, &env); err != nil {
		return err
	}
	if env.Code != models.CodeSuccess {
		return models.NewProvisioningError("instances.Delete", env.Code, nil, "delete %s rejected: %s", instanceID, env.Message)
	}
	return nil
}

// Stop deletes instanceID, or the active instance when instanceID is empty.
// The active id is cleared only if it still names the stopped instance.
func (m *Manager) Stop(ctx context.Context, instanceID string) (string, error) {
	const op = "instances.Stop"
	m.mu.Lock()
	defer m.mu.Unlock()

	if instanceID == "" {
		instanceID = m.active.Get()
	}
	if instanceID == "" {
		return "", models.NewNotFoundError(op, "agent instance not found - no instance ID provided and no stored instance")
	}

	if err := m.deleteInstance(ctx, instanceID); err != nil {
		return "", provisioning(op, err, "delete agent instance %s", instanceID)
	}
	m.active.CompareAndSwap(instanceID, "")
	log.Info().Str("instance_id", instanceID).Msg("Agent instance stopped")
	return instanceID, nil
}
