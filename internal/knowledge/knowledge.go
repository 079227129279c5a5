// Package knowledge retrieves supporting passages for a user question from a
// configured knowledge base. Each provider is one Retriever implementation;
// the provider is chosen once at startup from KB_TYPE.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/internal/embeddings"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
)

// Provider names accepted in KB_TYPE.
const (
	ProviderRAGFlow = "ragflow"
	ProviderVector  = "vector"
)

// providerBailian is the hosted Alibaba Cloud Bailian index. It has no
// retriever here; deployments load their documents into the vector store
// with kbload and keep DashScope embeddings instead.
const providerBailian = "bailian"

// Retriever returns passages relevant to query, most relevant first. The
// result is capped; callers must not assume every match is returned.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query string) ([]models.KnowledgeChunk, error)
}

// New builds the retriever selected by cfg.Type. An empty type disables
// retrieval and returns a nil Retriever.
func New(cfg config.KnowledgeConfig) (Retriever, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case ProviderRAGFlow:
		return NewRAGFlow(cfg.RAGFlow, cfg.ChunkCount), nil
	case providerBailian:
		return nil, models.NewConfigurationError("knowledge.New",
			"KB_TYPE %q is not supported; load the documents with kbload and use KB_TYPE=%q with EMBEDDING_PROVIDER=dashscope", cfg.Type, ProviderVector)
	case ProviderVector:
		embedder, err := embeddings.New(cfg.Vector)
		if err != nil {
			return nil, models.NewConfigurationError("knowledge.New", "%v", err)
		}
		return NewVector(cfg.Vector, embedder, cfg.ChunkCount)
	default:
		return nil, models.NewConfigurationError("knowledge.New", "unknown KB_TYPE %q", cfg.Type)
	}
}

// Render joins chunks as "doc_name: <name>\ncontent: <text>" blocks
// separated by blank lines.
func Render(chunks []models.KnowledgeChunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("doc_name: %s\ncontent: %s", c.DocName, c.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// capChunks trims chunks to max; max <= 0 means no cap.
func capChunks(chunks []models.KnowledgeChunk, max int) []models.KnowledgeChunk {
	if max > 0 && len(chunks) > max {
		return chunks[:max]
	}
	return chunks
}

func logRetrieved(provider, query string, n int) {
	log.Debug().Str("provider", provider).Int("query_len", len(query)).Int("chunks", n).Msg("Knowledge retrieved")
}

// SpliceHeader separates a question from the knowledge appended to it.
const SpliceHeader = "\n以下是知识库查询结果:\n"

// Splice returns question followed by the rendered chunks.
func Splice(question string, chunks []models.KnowledgeChunk) string {
	return question + SpliceHeader + Render(chunks)
}
