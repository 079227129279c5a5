package knowledge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/internal/knowledge"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out := knowledge.Render([]models.KnowledgeChunk{
		{DocName: "d1", Content: "c1"},
		{DocName: "d2", Content: "c2"},
	})
	assert.Equal(t, "doc_name: d1\ncontent: c1\n\ndoc_name: d2\ncontent: c2", out)
	assert.Empty(t, knowledge.Render(nil))
}

func TestNew_SelectsProvider(t *testing.T) {
	r, err := knowledge.New(config.KnowledgeConfig{})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = knowledge.New(config.KnowledgeConfig{Type: "ragflow"})
	require.NoError(t, err)
	assert.Equal(t, "ragflow", r.Name())

	r, err = knowledge.New(config.KnowledgeConfig{Type: "vector", Vector: config.VectorConfig{EmbeddingProvider: "openai"}})
	require.NoError(t, err)
	assert.Equal(t, "vector", r.Name())

	// The hosted Bailian index is refused outright rather than quietly
	// served from the vector store.
	_, err = knowledge.New(config.KnowledgeConfig{Type: "bailian", Vector: config.VectorConfig{EmbeddingProvider: "openai"}})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
	assert.Contains(t, err.Error(), "bailian")

	_, err = knowledge.New(config.KnowledgeConfig{Type: "elastic"})
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func ragflowConfig(endpoint string) config.RAGFlowConfig {
	return config.RAGFlowConfig{
		APIKey:                 "rf-key",
		Endpoint:               endpoint,
		DatasetIDs:             []string{"ds1"},
		PageSize:               100,
		SimilarityThreshold:    0.2,
		VectorSimilarityWeight: 0.3,
		TopK:                   1024,
		Keyword:                true,
	}
}

func TestRAGFlow_Retrieve(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/retrieval", r.URL.Path)
		assert.Equal(t, "Bearer rf-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"code":0,"data":{"chunks":[
			{"content":"c1","document_keyword":"d1"},
			{"content":"c2","document_keyword":"d2"},
			{"content":"c3","document_keyword":"d3"}],"total":3}}`))
	}))
	defer srv.Close()

	r := knowledge.NewRAGFlow(ragflowConfig(srv.URL), 2)
	chunks, err := r.Retrieve(context.Background(), "what is x")
	require.NoError(t, err)
	assert.Equal(t, []models.KnowledgeChunk{{DocName: "d1", Content: "c1"}, {DocName: "d2", Content: "c2"}}, chunks)

	assert.Equal(t, "what is x", body["question"])
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, 0.2, body["similarity_threshold"])
	assert.Equal(t, true, body["keyword"])
	assert.Equal(t, false, body["highlight"])
	assert.Equal(t, []any{}, body["document_ids"])
	assert.NotContains(t, body, "rerank_id")
}

func TestRAGFlow_ProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":102,"message":"dataset not found"}`))
	}))
	defer srv.Close()

	_, err := knowledge.NewRAGFlow(ragflowConfig(srv.URL), 3).Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindRetrieval))
	assert.Contains(t, err.Error(), "dataset not found")
}

func TestRAGFlow_HTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := knowledge.NewRAGFlow(ragflowConfig(srv.URL), 3).Retrieve(context.Background(), "q")
	assert.True(t, models.IsKind(err, models.KindRetrieval))
}

func TestRAGFlow_MissingConfig(t *testing.T) {
	_, err := knowledge.NewRAGFlow(config.RAGFlowConfig{}, 3).Retrieve(context.Background(), "q")
	assert.True(t, models.IsKind(err, models.KindRetrieval))

	cfg := ragflowConfig("http://unused")
	cfg.DatasetIDs = nil
	_, err = knowledge.NewRAGFlow(cfg, 3).Retrieve(context.Background(), "q")
	assert.True(t, models.IsKind(err, models.KindRetrieval))
	assert.Contains(t, err.Error(), "RAGFLOW_DOCUMENT_IDS")
}

func TestRAGFlow_DocumentIDsWithoutDatasets(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"code":0,"data":{"chunks":[{"content":"c1","document_keyword":"d1"}],"total":1}}`))
	}))
	defer srv.Close()

	cfg := ragflowConfig(srv.URL)
	cfg.DatasetIDs = nil
	cfg.DocumentIDs = []string{"doc1"}
	chunks, err := knowledge.NewRAGFlow(cfg, 3).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []models.KnowledgeChunk{{DocName: "d1", Content: "c1"}}, chunks)
	assert.Equal(t, []any{}, body["dataset_ids"])
	assert.Equal(t, []any{"doc1"}, body["document_ids"])
}
