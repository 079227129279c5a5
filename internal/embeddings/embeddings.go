// Package embeddings turns query text into dense vectors for the vector
// knowledge provider. Two HTTP drivers are available: OpenAI-compatible
// endpoints (OpenAI itself, DashScope compatible mode, most gateways) and a
// local Ollama server.
package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/aiagent-relay/internal/config"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Kind() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DashScopeEndpoint is the OpenAI-compatible embeddings endpoint of Alibaba
// Bailian (DashScope).
const DashScopeEndpoint = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"

// New selects a driver by provider name.
func New(cfg config.VectorConfig) (Embedder, error) {
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case "", "openai":
		var opts []OpenAIOption
		if cfg.EmbeddingEndpoint != "" {
			opts = append(opts, WithOpenAIEndpoint(cfg.EmbeddingEndpoint))
		}
		return NewOpenAIDriver(cfg.EmbeddingAPIKey, cfg.EmbeddingModel, opts...), nil
	case "dashscope", "bailian":
		endpoint := cfg.EmbeddingEndpoint
		if endpoint == "" {
			endpoint = DashScopeEndpoint
		}
		return NewOpenAIDriver(cfg.EmbeddingAPIKey, cfg.EmbeddingModel, WithOpenAIEndpoint(endpoint)), nil
	case "ollama":
		return NewOllamaDriver(cfg.EmbeddingEndpoint, cfg.EmbeddingModel), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
