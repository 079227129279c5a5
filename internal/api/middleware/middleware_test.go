package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentoven/aiagent-relay/internal/api/middleware"
	"github.com/stretchr/testify/assert"
)

func TestRequireBearer(t *testing.T) {
	var got string
	called := false
	handler := middleware.RequireBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got = middleware.GetBearerToken(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
		token  string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"lowercase scheme", "bearer abc", http.StatusUnauthorized, ""},
		{"valid", "Bearer zego_abc", http.StatusOK, "zego_abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called, got = false, ""
			req := httptest.NewRequest(http.MethodPost, "/api/chat/completions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status == http.StatusOK, called)
			assert.Equal(t, tt.token, got)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
			}
		})
	}
}

func TestLoggerAndTelemetry_PreserveFlush(t *testing.T) {
	handler := middleware.Logger(middleware.Telemetry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		assert.True(t, ok, "wrapped writer must implement http.Flusher")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("data: x\n"))
		if ok {
			f.Flush()
		}
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, w.Flushed)
	assert.Equal(t, "data: x\n", w.Body.String())
}
