// Package gateway implements the client for the Koine text/object-generation
// gateway service: one-shot generation calls plus the SSE streaming session.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/koinehq/koine-go/config"
	"github.com/koinehq/koine-go/tokens"
	"github.com/koinehq/koine-go/utils"
)

// Client talks to a single Koine gateway.
type Client struct {
	cfg     *config.Config
	http    *http.Client
	stream  *http.Client
	logger  utils.Logger
	limiter *rate.Limiter
	counter *tokens.Counter
}

// Option customizes a Client beyond what Config covers.
type Option func(*Client)

// WithLogger replaces the default slog-backed logger.
func WithLogger(logger utils.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client used for one-shot calls. Streaming
// requests keep their own client without a whole-response timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithRateLimiter installs a client-side limiter applied before every
// request, overriding Config.RequestsPerSecond.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithTokenCounter installs a prompt token estimator used in request debug
// logs, regardless of log level at construction time.
func WithTokenCounter(counter *tokens.Counter) Option {
	return func(c *Client) {
		c.counter = counter
	}
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The one-shot client bounds the whole exchange. The streaming client
	// only bounds time-to-first-byte: a healthy stream may outlive any
	// fixed response timeout.
	streamTransport := http.DefaultTransport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		ct := t.Clone()
		ct.ResponseHeaderTimeout = cfg.Timeout
		streamTransport = ct
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		stream: &http.Client{Transport: streamTransport},
		logger: utils.NewLogger(cfg.LogLevel),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	// Token estimates only feed debug logs, so skip the encoding setup (and
	// its lazy BPE fetch) unless they will be visible.
	if cfg.LogLevel >= utils.LogLevelDebug {
		if counter, err := tokens.NewCounter(cfg.Model); err == nil {
			c.counter = counter
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Logger exposes the client's logger so callers can adjust its level.
func (c *Client) Logger() utils.Logger {
	return c.logger
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, path string, body requestBody) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AuthKey)
	for k, v := range c.cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}

	if c.counter != nil {
		c.logger.Debug("Sending request", "path", path, "prompt_tokens_estimate", c.counter.Count(body.Prompt))
	} else {
		c.logger.Debug("Sending request", "path", path)
	}

	return httpClient.Do(req)
}

// parseErrorBody turns a non-2xx response body into an Error. Structured
// gateway errors are forwarded verbatim; anything else becomes HTTP_ERROR
// with the status line.
func parseErrorBody(statusCode int, body []byte) *Error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" && er.Code != "" {
		return &Error{Code: er.Code, Message: er.Error, RawText: er.RawText}
	}
	return NewError(CodeHTTPError, fmt.Sprintf("HTTP %d %s", statusCode, http.StatusText(statusCode)), nil)
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// GenerateText requests a complete plain-text generation.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	resp, err := c.post(ctx, c.http, "/generate-text", requestBody{
		System:    req.System,
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
		Model:     c.cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		gerr := parseErrorBody(resp.StatusCode, body)
		c.logger.Error("Text generation failed", "status", resp.StatusCode, "code", gerr.Code)
		return nil, gerr
	}

	var tr textResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.Usage == nil || tr.SessionID == "" {
		return nil, NewError(CodeInvalidResponse, "invalid response from Koine gateway", err)
	}

	c.logger.Debug("Text generated", "session_id", tr.SessionID, "output_tokens", tr.Usage.OutputTokens)
	return &TextResult{
		Text:      tr.Text,
		Usage:     *tr.Usage,
		SessionID: tr.SessionID,
	}, nil
}

// StreamText opens a streaming generation. The initial HTTP exchange fails
// fast on a non-2xx status; on success the returned StreamResult owns the
// connection and releases it when iteration ends or Close is called.
func (c *Client) StreamText(ctx context.Context, req TextRequest) (*StreamResult, error) {
	resp, err := c.post(ctx, c.stream, "/stream", requestBody{
		System:    req.System,
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
		Model:     c.cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		gerr := parseErrorBody(resp.StatusCode, body)
		c.logger.Error("Stream open failed", "status", resp.StatusCode, "code", gerr.Code)
		return nil, gerr
	}

	return newStreamResult(resp.Body, c.logger), nil
}
