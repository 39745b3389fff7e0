// Package reasoning orchestrates the guarded LLM reasoning stage: payload
// guarding, bounded-retry model invocation, output validation, and the
// consistency check against deterministic evidence.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/retry"
)

// Message is one chat message sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider-agnostic inference request.
type CompletionRequest struct {
	Messages  []Message
	JSONMode  bool
	MaxTokens int
}

// Completion is the provider response. Content is the primary field;
// Thinking and Response are the fallbacks consulted, in that order, when
// Content comes back empty.
type Completion struct {
	Content   string
	Thinking  string
	Response  string
	Model     string
	Usage     map[string]any
	LatencyMs int64
}

// BestContent returns the first non-empty of content, thinking, response.
func (c *Completion) BestContent() string {
	if c.Content != "" {
		return c.Content
	}
	if c.Thinking != "" {
		return c.Thinking
	}
	return c.Response
}

// Provider is the external model contract. Implementations fail by
// returning an error on transport or HTTP failure.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
	Model() string
}

// HTTPStatusError is a non-2xx provider response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// retryableStatus reports whether an HTTP status warrants a retry.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// httpRetryBase is the first backoff delay; subsequent delays double.
const httpRetryBase = 2 * time.Second

// HTTPProvider talks to an OpenAI-compatible chat completions endpoint.
type HTTPProvider struct {
	endpoint   string
	model      string
	apiKey     string
	maxRetries int
	client     *http.Client
}

// NewHTTPProvider builds a provider from config. The API key is read from
// the environment variable named by cfg.APIKeyEnv.
func NewHTTPProvider(cfg domain.ReasoningConfig) (*HTTPProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("reasoning endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("reasoning model is required")
	}

	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	maxRetries := cfg.MaxHTTPRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPProvider{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     apiKey,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the configured model name.
func (p *HTTPProvider) Model() string {
	return p.model
}

// chatResponse mirrors the OpenAI-compatible wire shape, plus the fallback
// fields some providers attach.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content  string `json:"content"`
			Thinking string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
	Response string         `json:"response"`
	Usage    map[string]any `json:"usage"`
}

// Complete issues the chat completion with a bounded HTTP-retry loop:
// transient statuses (429, 502, 503, 504) back off exponentially, anything
// else fails immediately.
func (p *HTTPProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	body := map[string]any{
		"model":    p.model,
		"messages": req.Messages,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	var completion *Completion
	start := time.Now()

	err = retry.Do(ctx, p.maxRetries, httpRetryBase, func() error {
		c, err := p.doRequest(ctx, encoded)
		if err != nil {
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) && !retryableStatus(statusErr.StatusCode) {
				return retry.Permanent(err)
			}
			return err
		}
		completion = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	completion.LatencyMs = time.Since(start).Milliseconds()
	return completion, nil
}

func (p *HTTPProvider) doRequest(ctx context.Context, encoded []byte) (*Completion, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 200)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	c := &Completion{
		Model:    parsed.Model,
		Usage:    parsed.Usage,
		Response: parsed.Response,
	}
	if c.Model == "" {
		c.Model = p.model
	}
	if len(parsed.Choices) > 0 {
		c.Content = parsed.Choices[0].Message.Content
		c.Thinking = parsed.Choices[0].Message.Thinking
	}
	return c, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
