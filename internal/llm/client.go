// Package llm talks to an OpenAI-compatible chat completions endpoint. The
// relay uses the streaming form and forwards each chunk verbatim; the
// messaging bridge uses the blocking form and only needs the reply text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aiagent-relay/llm")

// doneSentinel terminates an OpenAI-style stream.
const doneSentinel = "[DONE]"

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Streaming responses are long
// lived, so the client should not carry a short overall timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithAPIKey sets the key used when a call does not supply one.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// New creates a client for baseURL; requests go to baseURL/chat/completions.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/chat/completions",
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the chat completions URL.
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) key(apiKey string) string {
	if c.apiKey != "" {
		return c.apiKey
	}
	return apiKey
}

func (c *Client) do(ctx context.Context, op, apiKey string, payload any, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if k := c.key(apiKey); k != "" {
		req.Header.Set("Authorization", "Bearer "+k)
	}
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, models.NewTransportError(op, err, "upstream request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, models.NewTransportError(op, nil, "upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// Stream opens a streaming completion. The request is sent with stream=true
// and every other field as given. The caller must Close the returned stream.
func (c *Client) Stream(ctx context.Context, apiKey string, req *models.ChatCompletionRequest) (*ChunkStream, error) {
	ctx, span := tracer.Start(ctx, "llm.stream")
	span.SetAttributes(attribute.String("llm.model", req.Model), attribute.Int("llm.messages", len(req.Messages)))

	out := req.Clone()
	out.Stream = true

	resp, err := c.do(ctx, "llm.Stream", apiKey, out, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}
	log.Debug().Str("model", req.Model).Msg("Upstream stream opened")
	return &ChunkStream{scanner: newSSEScanner(resp.Body), body: resp.Body, end: func() { span.End() }}, nil
}

// ChunkStream yields raw completion chunks from an upstream SSE stream.
// It is not safe for concurrent use.
type ChunkStream struct {
	scanner *sseScanner
	body    io.Closer
	end     func()
	done    bool
}

// Next returns the next chunk's JSON payload verbatim. It returns io.EOF
// once the upstream sends [DONE] or closes the stream.
func (s *ChunkStream) Next() (json.RawMessage, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.scanner.Next() {
		data := strings.TrimSpace(s.scanner.Event().Data)
		if data == "" {
			continue
		}
		if data == doneSentinel {
			s.done = true
			return nil, io.EOF
		}
		if !json.Valid([]byte(data)) {
			log.Warn().Str("data", data).Msg("Skipping malformed upstream chunk")
			continue
		}
		// A payload split over several data lines arrives newline-joined;
		// it has to go back out on one line.
		if strings.ContainsAny(data, "\r\n") {
			var buf bytes.Buffer
			_ = json.Compact(&buf, []byte(data))
			return json.RawMessage(buf.Bytes()), nil
		}
		return json.RawMessage(data), nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, models.NewTransportError("llm.Stream", err, "upstream stream interrupted")
	}
	return nil, io.EOF
}

// Close releases the upstream connection. It is safe to call more than once.
func (s *ChunkStream) Close() error {
	s.done = true
	if s.end != nil {
		s.end()
		s.end = nil
	}
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete runs a non-streaming completion and returns the first choice's
// text.
func (c *Client) Complete(ctx context.Context, apiKey, model string, messages []models.ChatMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", model), attribute.Int("llm.messages", len(messages)))

	req := &models.ChatCompletionRequest{Model: model, Messages: messages}
	resp, err := c.do(ctx, "llm.Complete", apiKey, req, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", models.NewTransportError("llm.Complete", err, "decode upstream response")
	}
	if len(out.Choices) == 0 {
		return "", models.NewTransportError("llm.Complete", nil, "upstream returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
