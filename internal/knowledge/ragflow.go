package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/pkg/models"
)

// RAGFlow queries a RAGFlow server's retrieval API.
type RAGFlow struct {
	cfg       config.RAGFlowConfig
	maxChunks int
	client    *http.Client
}

// NewRAGFlow creates a RAGFlow retriever that returns at most maxChunks.
func NewRAGFlow(cfg config.RAGFlowConfig, maxChunks int) *RAGFlow {
	return &RAGFlow{cfg: cfg, maxChunks: maxChunks, client: &http.Client{Timeout: 30 * time.Second}}
}

func (r *RAGFlow) Name() string { return ProviderRAGFlow }

type ragflowRequest struct {
	Question               string   `json:"question"`
	DatasetIDs             []string `json:"dataset_ids"`
	DocumentIDs            []string `json:"document_ids"`
	Page                   int      `json:"page"`
	PageSize               int      `json:"page_size"`
	SimilarityThreshold    float64  `json:"similarity_threshold"`
	VectorSimilarityWeight float64  `json:"vector_similarity_weight"`
	TopK                   int      `json:"top_k"`
	RerankID               string   `json:"rerank_id,omitempty"`
	Keyword                bool     `json:"keyword"`
	Highlight              bool     `json:"highlight"`
}

type ragflowResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Chunks []struct {
			Content         string `json:"content"`
			DocumentKeyword string `json:"document_keyword"`
		} `json:"chunks"`
		Total int `json:"total"`
	} `json:"data"`
}

// Retrieve asks the first result page for question.
func (r *RAGFlow) Retrieve(ctx context.Context, question string) ([]models.KnowledgeChunk, error) {
	const op = "knowledge.ragflow"
	if r.cfg.Endpoint == "" || r.cfg.APIKey == "" {
		return nil, models.NewRetrievalError(op, nil, "RAGFLOW_API_ENDPOINT and RAGFLOW_API_KEY must be set")
	}
	if len(r.cfg.DatasetIDs) == 0 && len(r.cfg.DocumentIDs) == 0 {
		return nil, models.NewRetrievalError(op, nil, "RAGFLOW_KB_DATASET_ID or RAGFLOW_DOCUMENT_IDS must be set")
	}

	datasetIDs, documentIDs := r.cfg.DatasetIDs, r.cfg.DocumentIDs
	if datasetIDs == nil {
		datasetIDs = []string{}
	}
	if documentIDs == nil {
		documentIDs = []string{}
	}
	body, err := json.Marshal(ragflowRequest{
		Question:               question,
		DatasetIDs:             datasetIDs,
		DocumentIDs:            documentIDs,
		Page:                   1,
		PageSize:               r.cfg.PageSize,
		SimilarityThreshold:    r.cfg.SimilarityThreshold,
		VectorSimilarityWeight: r.cfg.VectorSimilarityWeight,
		TopK:                   r.cfg.TopK,
		RerankID:               r.cfg.RerankID,
		Keyword:                r.cfg.Keyword,
		Highlight:              r.cfg.Highlight,
	})
	if err != nil {
		return nil, models.NewRetrievalError(op, err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint+"/api/v1/retrieval", bytes.NewReader(body))
	if err != nil {
		return nil, models.NewRetrievalError(op, err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, models.NewRetrievalError(op, err, "request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewRetrievalError(op, err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.NewRetrievalError(op, nil, "HTTP error! status: %d: %s", resp.StatusCode, string(raw))
	}

	var out ragflowResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, models.NewRetrievalError(op, err, "decode response")
	}
	if out.Code != 0 {
		return nil, models.NewRetrievalError(op, nil, "ragflow error %d: %s", out.Code, out.Message)
	}

	chunks := make([]models.KnowledgeChunk, 0, len(out.Data.Chunks))
	for _, c := range out.Data.Chunks {
		chunks = append(chunks, models.KnowledgeChunk{DocName: c.DocumentKeyword, Content: c.Content})
	}
	chunks = capChunks(chunks, r.maxChunks)
	logRetrieved(r.Name(), question, len(chunks))
	return chunks, nil
}
