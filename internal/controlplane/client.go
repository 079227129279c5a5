// Package controlplane implements the signed request client used for every
// call to the agent control plane and the messaging provider.
//
// Each request carries AppId, SignatureNonce, Timestamp, SignatureVersion and
// Signature as query parameters next to the Action that selects the remote
// operation. Signature = hex(md5(appId + nonce + serverSecret + timestamp)).
package controlplane

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SignatureVersion is the only signature scheme the remote verifier accepts.
const SignatureVersion = "2.0"

// DefaultBaseURL is the agent control-plane endpoint.
const DefaultBaseURL = "https://aigc-aiagent-api.zegotech.cn"

var tracer = otel.Tracer("aiagent-relay/controlplane")

// Envelope is the common response shape of control-plane actions.
type Envelope struct {
	Code      int             `json:"Code"`
	Message   string          `json:"Message"`
	RequestId string          `json:"RequestId"`
	Data      json.RawMessage `json:"Data,omitempty"`
}

// CommonParams are the signed query parameters attached to every request.
type CommonParams struct {
	AppId            int64
	SignatureNonce   string
	Timestamp        int64
	SignatureVersion string
	Signature        string
}

// Client sends signed requests. It is safe for concurrent use.
type Client struct {
	appID        int64
	serverSecret string
	baseURL      string
	client       *http.Client

	now   func() time.Time
	nonce func() string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithNonceSource overrides the nonce generator.
func WithNonceSource(nonce func() string) Option {
	return func(c *Client) { c.nonce = nonce }
}

// New creates a signed request client. baseURL defaults to DefaultBaseURL.
// Missing credentials are reported per call as configuration errors so that
// endpoints which never reach the control plane keep working.
func New(appID int64, serverSecret, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		appID:        appID,
		serverSecret: serverSecret,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{},
		now:          time.Now,
		nonce:        randomNonce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateSignature computes the request signature. The action is accepted
// to match the verifier's signing contract but is not part of the digest.
func GenerateSignature(appID int64, signatureNonce, serverSecret string, timestamp int64, action string) string {
	_ = action
	sum := md5.Sum([]byte(strconv.FormatInt(appID, 10) + signatureNonce + serverSecret + strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(sum[:])
}

func randomNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// CommonParams generates a fresh nonce and timestamp and signs them.
func (c *Client) CommonParams(action string) CommonParams {
	ts := c.now().Unix()
	nonce := c.nonce()
	return CommonParams{
		AppId:            c.appID,
		SignatureNonce:   nonce,
		Timestamp:        ts,
		SignatureVersion: SignatureVersion,
		Signature:        GenerateSignature(c.appID, nonce, c.serverSecret, ts, action),
	}
}

// BuildURL renders <base>/?Action=..&AppId=..&SignatureNonce=..&Timestamp=..
// &SignatureVersion=..&Signature=.. in that order.
func (c *Client) BuildURL(action string, p CommonParams, baseURL string) string {
	if baseURL == "" {
		baseURL = c.baseURL
	}
	pairs := [][2]string{
		{"Action", action},
		{"AppId", strconv.FormatInt(p.AppId, 10)},
		{"SignatureNonce", p.SignatureNonce},
		{"Timestamp", strconv.FormatInt(p.Timestamp, 10)},
		{"SignatureVersion", p.SignatureVersion},
		{"Signature", p.Signature},
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(baseURL, "/"))
	sb.WriteString("/?")
	for i, kv := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv[0]))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv[1]))
	}
	return sb.String()
}

type sendOptions struct {
	baseURL string
	method  string
}

// SendOption tunes a single Send call.
type SendOption func(*sendOptions)

// WithBaseURL sends the request to another signed endpoint (e.g. the
// messaging provider) instead of the client's default.
func WithBaseURL(baseURL string) SendOption {
	return func(o *sendOptions) { o.baseURL = baseURL }
}

// WithMethod overrides the HTTP method (POST by default).
func WithMethod(method string) SendOption {
	return func(o *sendOptions) { o.method = method }
}

// Send signs and sends action with a JSON body and decodes the JSON reply
// into out (which may be nil). A non-2xx status or network failure is a
// transport error. No retry is applied.
func (c *Client) Send(ctx context.Context, action string, body, out any, opts ...SendOption) error {
	o := sendOptions{method: http.MethodPost}
	for _, opt := range opts {
		opt(&o)
	}
	op := "controlplane." + action

	if c.appID == 0 || c.serverSecret == "" {
		return models.NewConfigurationError(op, "ZEGO_APP_ID and ZEGO_SERVER_SECRET must be set")
	}

	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("controlplane.action", action))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.BuildURL(action, c.CommonParams(action), o.baseURL)
	req, err := http.NewRequestWithContext(ctx, o.method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		log.Error().Err(err).Str("action", action).Msg("Control-plane request failed")
		return models.NewTransportError(op, err, "request failed")
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		span.SetStatus(codes.Error, resp.Status)
		log.Error().Str("action", action).Int("status", resp.StatusCode).Msg("Control-plane returned non-2xx")
		return models.NewTransportError(op, nil, "HTTP error! status: %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.NewTransportError(op, err, "decode response")
	}
	return nil
}

// Sender is the capability consumers depend on; *Client implements it.
type Sender interface {
	Send(ctx context.Context, action string, body, out any, opts ...SendOption) error
}

var _ Sender = (*Client)(nil)
