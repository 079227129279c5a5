package knowledge

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/internal/embeddings"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/qdrant/go-client/qdrant"
)

// pointSearcher is the slice of *qdrant.Client the vector retriever uses.
type pointSearcher interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// Vector searches a single Qdrant collection with an embedded query. No
// reranking is applied; Qdrant's score order is kept.
type Vector struct {
	search     pointSearcher
	embedder   embeddings.Embedder
	collection string
	docField   string
	textField  string
	maxChunks  int
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// The REST port 6333 is mapped to the gRPC port 6334.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("invalid qdrant URL: %q", rawURL)
	}
	useTLS = u.Scheme == "https"
	host = u.Hostname()
	port = 6334
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port in qdrant URL: %q", portStr)
		}
		if p != 6333 {
			port = p
		}
	}
	return host, port, useTLS, nil
}

// DialQdrant opens a gRPC client for cfg.QdrantURL.
func DialQdrant(cfg config.VectorConfig) (*qdrant.Client, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.QdrantURL)
	if err != nil {
		return nil, models.NewConfigurationError("knowledge.DialQdrant", "%v", err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, models.NewConfigurationError("knowledge.DialQdrant", "connect to qdrant at %s:%d: %v", host, port, err)
	}
	return client, nil
}

// NewVector connects to Qdrant. Missing connection settings are reported by
// Retrieve rather than here so the service can still start.
func NewVector(cfg config.VectorConfig, embedder embeddings.Embedder, maxChunks int) (*Vector, error) {
	v := &Vector{
		embedder:   embedder,
		collection: cfg.Collection,
		docField:   cfg.DocNameField,
		textField:  cfg.TextField,
		maxChunks:  maxChunks,
	}
	if cfg.QdrantURL == "" {
		return v, nil
	}
	client, err := DialQdrant(cfg)
	if err != nil {
		return nil, err
	}
	v.search = client
	return v, nil
}

func (v *Vector) Name() string { return ProviderVector }

// Retrieve embeds query and returns the nearest points' payloads.
func (v *Vector) Retrieve(ctx context.Context, query string) ([]models.KnowledgeChunk, error) {
	const op = "knowledge.vector"
	if v.search == nil || v.collection == "" || v.embedder == nil {
		return nil, models.NewRetrievalError(op, nil, "QDRANT_URL, QDRANT_COLLECTION and an embedding provider must be set")
	}

	vecs, err := v.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, models.NewRetrievalError(op, err, "embed query")
	}
	if len(vecs) != 1 {
		return nil, models.NewRetrievalError(op, nil, "expected 1 embedding, got %d", len(vecs))
	}

	limit := uint64(10)
	if v.maxChunks > 0 {
		limit = uint64(v.maxChunks) //nolint:gosec
	}
	scored, err := v.search.Query(ctx, &qdrant.QueryPoints{
		CollectionName: v.collection,
		Query:          qdrant.NewQueryDense(vecs[0]),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, models.NewRetrievalError(op, err, "qdrant query")
	}

	chunks := make([]models.KnowledgeChunk, 0, len(scored))
	for _, sp := range scored {
		text := sp.GetPayload()[v.textField].GetStringValue()
		if text == "" {
			continue
		}
		chunks = append(chunks, models.KnowledgeChunk{
			DocName: sp.GetPayload()[v.docField].GetStringValue(),
			Content: text,
		})
	}
	chunks = capChunks(chunks, v.maxChunks)
	logRetrieved(v.Name(), query, len(chunks))
	return chunks, nil
}
