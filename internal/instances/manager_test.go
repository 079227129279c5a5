package instances_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/agentoven/aiagent-relay/internal/controlplane"
	"github.com/agentoven/aiagent-relay/internal/instances"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgents struct {
	err   error
	calls []string
}

func (f *fakeAgents) EnsureAgentRegistered(_ context.Context, id, _ string) error {
	f.calls = append(f.calls, id)
	return f.err
}

type fakeRobots struct {
	err   error
	seen  map[string]bool
	calls []string
}

func (f *fakeRobots) EnsureRobotExists(_ context.Context, id string) (*models.RobotRegistration, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	isNew := !f.seen[id]
	f.seen[id] = true
	return &models.RobotRegistration{RobotId: id, IsNewRegistration: isNew}, nil
}

// fakeInstances is a control plane that creates and deletes instances.
type fakeInstances struct {
	mu        sync.Mutex
	next      int
	live      map[string]bool
	bodies    map[string]map[string]any
	actions   []string
	createErr int
	deleteErr int
}

func (f *fakeInstances) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	action := r.URL.Query().Get("Action")
	f.actions = append(f.actions, action)
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies[action] = body
	write := func(code int, data any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"Code": code, "Message": "msg", "Data": data})
	}

	switch action {
	case instances.ActionCreateAgentInstance, instances.ActionCreateDigitalHumanAgentInstance:
		if f.createErr != 0 {
			write(f.createErr, nil)
			return
		}
		f.next++
		id := fmt.Sprintf("inst-%d", f.next)
		f.live[id] = true
		write(0, map[string]any{"AgentInstanceId": id})
	case instances.ActionDeleteAgentInstance:
		if f.deleteErr != 0 {
			write(f.deleteErr, nil)
			return
		}
		delete(f.live, body["AgentInstanceId"].(string))
		write(0, nil)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeInstances) body(action string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[action]
}

func (f *fakeInstances) isLive(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[id]
}

type fixture struct {
	cp     *fakeInstances
	agents *fakeAgents
	robots *fakeRobots
	m      *instances.Manager
}

func newFixture(t *testing.T, syncMode int) *fixture {
	t.Helper()
	cp := &fakeInstances{live: map[string]bool{}, bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(cp)
	t.Cleanup(srv.Close)

	f := &fixture{cp: cp, agents: &fakeAgents{}, robots: &fakeRobots{}}
	f.m = instances.NewManager(controlplane.New(1, "s", srv.URL), f.agents, f.robots, instances.Options{
		AgentID:           "ai_agent_example_1",
		AgentName:         "Agent",
		AgentIDPrefix:     "ai_agent_1",
		HistorySyncMode:   syncMode,
		HistoryWindowSize: 10,
	})
	return f
}

func startReq() instances.StartRequest {
	return instances.StartRequest{UserID: "u1", RoomID: "room1", UserStreamID: "u1_stream"}
}

func TestStart_CreatesAndRecords(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)

	res, err := f.m.Start(context.Background(), startReq())
	require.NoError(t, err)
	assert.Equal(t, "inst-1", res.AgentInstanceID)
	assert.Equal(t, "ai_agent_example_1", res.AgentID)
	assert.True(t, strings.HasPrefix(res.AgentStreamID, "stream_agent_"))
	assert.True(t, strings.HasPrefix(res.AgentUserID, "user_agent_"))
	assert.Equal(t, "inst-1", f.m.Active())

	assert.Equal(t, []string{"ai_agent_example_1"}, f.agents.calls)
	assert.Equal(t, []string{"@RBT#ai_agent_example_1"}, f.robots.calls)

	body := f.cp.body(instances.ActionCreateAgentInstance)
	history := body["MessageHistory"].(map[string]any)
	assert.Equal(t, float64(1), history["SyncMode"])
	assert.Equal(t, []any{}, history["Messages"])
	assert.NotContains(t, history, "ZIM")
	assert.Equal(t, "room1", body["RTC"].(map[string]any)["RoomId"])
}

func TestStart_RobotHistory(t *testing.T) {
	f := newFixture(t, models.HistorySyncFromRobot)
	_, err := f.m.Start(context.Background(), startReq())
	require.NoError(t, err)

	history := f.cp.body(instances.ActionCreateAgentInstance)["MessageHistory"].(map[string]any)
	assert.Equal(t, map[string]any{"RobotId": "@RBT#ai_agent_example_1", "LoadMessageCount": float64(10)}, history["ZIM"])
}

func TestStart_ReplacesPreviousInstance(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	ctx := context.Background()

	first, err := f.m.Start(ctx, startReq())
	require.NoError(t, err)
	second, err := f.m.Start(ctx, startReq())
	require.NoError(t, err)

	assert.False(t, f.cp.isLive(first.AgentInstanceID))
	assert.True(t, f.cp.isLive(second.AgentInstanceID))
	assert.Equal(t, second.AgentInstanceID, f.m.Active())
}

func TestStart_CreateFailureLeavesNothingRecorded(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	ctx := context.Background()
	_, err := f.m.Start(ctx, startReq())
	require.NoError(t, err)

	f.cp.mu.Lock()
	f.cp.createErr = 410000009
	f.cp.mu.Unlock()

	_, err = f.m.Start(ctx, startReq())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindProvisioning))
	assert.Equal(t, 410000009, models.CodeOf(err))
	assert.Empty(t, f.m.Active())
}

func TestStart_DigitalHuman(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	req := startReq()
	req.DigitalHuman = &models.DigitalHumanInfo{DigitalHumanId: "dh1", ConfigId: "web"}

	_, err := f.m.Start(context.Background(), req)
	require.NoError(t, err)
	body := f.cp.body(instances.ActionCreateDigitalHumanAgentInstance)
	require.NotNil(t, body)
	assert.Equal(t, "dh1", body["DigitalHuman"].(map[string]any)["DigitalHumanId"])
}

func TestStart_DigitalHumanConcurrencyLimit(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	f.cp.createErr = models.CodeDigitalHumanConcurrencyLimit
	req := startReq()
	req.DigitalHuman = &models.DigitalHumanInfo{DigitalHumanId: "dh1"}

	_, err := f.m.Start(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, models.CodeDigitalHumanConcurrencyLimit, models.CodeOf(err))
}

func TestStart_UpstreamStepFailures(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	f.agents.err = errors.New("control plane down")
	_, err := f.m.Start(context.Background(), startReq())
	assert.True(t, models.IsKind(err, models.KindProvisioning))

	f = newFixture(t, models.HistorySyncInline)
	f.robots.err = models.NewRegistrationError("robots", 660700001, nil, "bad id")
	_, err = f.m.Start(context.Background(), startReq())
	assert.True(t, models.IsKind(err, models.KindProvisioning))
	assert.Empty(t, f.m.Active())
}

func TestStart_Validation(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	_, err := f.m.Start(context.Background(), instances.StartRequest{UserID: "u1"})
	assert.True(t, models.IsKind(err, models.KindValidation))
	assert.Empty(t, f.agents.calls)
}

func TestStop_NoInstance(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	_, err := f.m.Stop(context.Background(), "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
	assert.Equal(t, http.StatusNotFound, models.HTTPStatusOf(err))
}

func TestStop_ActiveInstance(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	ctx := context.Background()
	res, err := f.m.Start(ctx, startReq())
	require.NoError(t, err)

	stopped, err := f.m.Stop(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, res.AgentInstanceID, stopped)
	assert.Empty(t, f.m.Active())
	assert.False(t, f.cp.isLive(stopped))
}

func TestStop_OtherInstanceKeepsActive(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	ctx := context.Background()
	res, err := f.m.Start(ctx, startReq())
	require.NoError(t, err)

	_, err = f.m.Stop(ctx, "someone-elses")
	require.NoError(t, err)
	assert.Equal(t, res.AgentInstanceID, f.m.Active())
}

func TestStop_DeleteRejected(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	ctx := context.Background()
	_, err := f.m.Start(ctx, startReq())
	require.NoError(t, err)
	f.cp.mu.Lock()
	f.cp.deleteErr = 410000010
	f.cp.mu.Unlock()

	_, err = f.m.Stop(ctx, "")
	assert.True(t, models.IsKind(err, models.KindProvisioning))
	assert.NotEmpty(t, f.m.Active())
}

func TestAgentInfo(t *testing.T) {
	f := newFixture(t, models.HistorySyncInline)
	ctx := context.Background()

	info, err := f.m.AgentInfo(ctx, "u42")
	require.NoError(t, err)
	assert.Equal(t, "ai_agent_1_u42", info.AgentID)
	assert.Equal(t, "@RBT#ai_agent_1_u42", info.RobotID)
	assert.True(t, info.IsNewRobotRegistration)

	info, err = f.m.AgentInfo(ctx, "u42")
	require.NoError(t, err)
	assert.False(t, info.IsNewRobotRegistration)

	_, err = f.m.AgentInfo(ctx, "")
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestActiveInstance_CompareAndSwap(t *testing.T) {
	var a instances.ActiveInstance
	assert.Empty(t, a.Get())
	a.Set("x")
	assert.False(t, a.CompareAndSwap("y", ""))
	assert.Equal(t, "x", a.Get())
	assert.True(t, a.CompareAndSwap("x", ""))
	assert.Empty(t, a.Get())
}
