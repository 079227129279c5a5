// Package relay implements the streaming completion relay: it validates an
// OpenAI-style request, splices retrieved knowledge into the latest user
// turn, streams the upstream completion back chunk by chunk and always
// terminates the stream with a single [DONE] marker.
package relay

import (
	"context"
	"errors"
	"io"

	"github.com/agentoven/aiagent-relay/internal/knowledge"
	"github.com/agentoven/aiagent-relay/internal/llm"
	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("aiagent-relay/relay")

// Upstream opens a streaming completion.
type Upstream interface {
	Stream(ctx context.Context, apiKey string, req *models.ChatCompletionRequest) (*llm.ChunkStream, error)
}

// Relay forwards completions to the upstream model. retriever may be nil,
// in which case no knowledge is spliced.
type Relay struct {
	upstream  Upstream
	retriever knowledge.Retriever
}

// New creates a relay.
func New(upstream Upstream, retriever knowledge.Retriever) *Relay {
	return &Relay{upstream: upstream, retriever: retriever}
}

// Prepare validates in and returns the request to send upstream. The input
// is never modified. Retrieval failures are returned before any response is
// written.
func (r *Relay) Prepare(ctx context.Context, apiKey string, in *models.ChatCompletionRequest) (*models.ChatCompletionRequest, error) {
	const op = "relay.Prepare"
	if apiKey == "" {
		return nil, models.NewAuthError(op, "Unauthorized")
	}
	if in == nil || len(in.Messages) == 0 {
		return nil, models.NewValidationError(op, "Messages are required")
	}
	if !in.Stream {
		return nil, models.NewValidationError(op, "Streaming is required")
	}

	out := in.Clone()
	idx := LatestUserIndex(out.Messages)
	// Multi-part content is forwarded as-is; only text turns are augmented.
	if r.retriever == nil || idx < 0 || !out.Messages[idx].IsText() {
		return out, nil
	}

	ctx, span := tracer.Start(ctx, "relay.retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("kb.provider", r.retriever.Name()))

	chunks, err := r.retriever.Retrieve(ctx, out.Messages[idx].Content)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("kb.chunks", len(chunks)))
	out.Messages = SpliceKnowledge(out.Messages, idx, chunks)
	return out, nil
}

// Pipe streams req from the upstream into sink and finishes the sink on
// every path. It returns the number of chunks forwarded and the error that
// ended the stream, if any; that error has already been logged and must not
// be reported to the client.
func (r *Relay) Pipe(ctx context.Context, apiKey string, req *models.ChatCompletionRequest, sink EventSink) (int, error) {
	defer sink.Finish()

	ctx, span := tracer.Start(ctx, "relay.pipe")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", req.Model))

	logger := log.With().Str("model", req.Model).Logger()

	stream, err := r.upstream.Stream(ctx, apiKey, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open upstream stream")
		span.RecordError(err)
		return 0, err
	}
	defer stream.Close()

	n := 0
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			logger.Debug().Int("chunks", n).Msg("Upstream stream completed")
			span.SetAttributes(attribute.Int("relay.chunks", n))
			return n, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Int("chunks", n).Msg("Client disconnected, upstream aborted")
			} else {
				logger.Error().Err(err).Int("chunks", n).Msg("Upstream stream failed")
			}
			span.RecordError(err)
			return n, err
		}
		if err := sink.Write(chunk); err != nil {
			logger.Info().Err(err).Int("chunks", n).Msg("Client write failed, aborting stream")
			return n, err
		}
		n++
	}
}
