package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentoven/aiagent-relay/internal/api"
	"github.com/agentoven/aiagent-relay/internal/api/handlers"
	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/internal/instances"
	"github.com/agentoven/aiagent-relay/internal/messaging"
	"github.com/agentoven/aiagent-relay/internal/relay"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/stretchr/testify/assert"
)

type noopRelay struct{ prepares int }

func (n *noopRelay) Prepare(_ context.Context, _ string, in *models.ChatCompletionRequest) (*models.ChatCompletionRequest, error) {
	n.prepares++
	return in, nil
}

func (n *noopRelay) Pipe(_ context.Context, _ string, _ *models.ChatCompletionRequest, sink relay.EventSink) (int, error) {
	sink.Finish()
	return 0, nil
}

type noopInstances struct{}

func (noopInstances) Start(context.Context, instances.StartRequest) (*instances.StartResult, error) {
	return &instances.StartResult{}, nil
}

func (noopInstances) Stop(context.Context, string) (string, error) {
	return "", models.NewNotFoundError("stop", "agent instance not found")
}

func (noopInstances) AgentInfo(context.Context, string) (*instances.AgentInfo, error) {
	return &instances.AgentInfo{}, nil
}

type noopBridge struct{}

func (noopBridge) OnPeerMessage(context.Context, models.PeerMessageEvent) messaging.Outcome {
	return messaging.Outcome{}
}

func TestRouter(t *testing.T) {
	rl := &noopRelay{}
	router := api.NewRouter(&config.Config{Version: "1.2.3"}, handlers.New(rl, noopInstances{}, noopBridge{}))

	tests := []struct {
		method string
		path   string
		body   string
		header map[string]string
		status int
	}{
		{http.MethodGet, "/health", "", nil, http.StatusOK},
		{http.MethodGet, "/version", "", nil, http.StatusOK},
		{http.MethodPost, "/api/chat/completions", `{}`, nil, http.StatusUnauthorized},
		{http.MethodPost, "/api/stop", ``, nil, http.StatusNotFound},
		{http.MethodPost, "/api/callback", `{"Event":"x"}`, nil, http.StatusOK},
		{http.MethodPost, "/api/zim-callback", `{"event":"x"}`, nil, http.StatusOK},
		{http.MethodGet, "/api/start", ``, nil, http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/unknown", ``, nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Zero(t, rl.prepares)
}

func TestRouter_StreamsCompletion(t *testing.T) {
	rl := &noopRelay{}
	router := api.NewRouter(&config.Config{}, handlers.New(rl, noopInstances{}, noopBridge{}))

	req := httptest.NewRequest(http.MethodPost, "/api/chat/completions", strings.NewReader(`{"stream":true,"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Authorization", "Bearer k")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "data: [DONE]\n\n", w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, 1, rl.prepares)
}

func TestRouter_Preflight(t *testing.T) {
	router := api.NewRouter(&config.Config{}, handlers.New(&noopRelay{}, noopInstances{}, noopBridge{}))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/completions", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
