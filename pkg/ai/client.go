package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/pkg/config"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

// Message is a single chat turn exchanged with the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs an upstream completion client.
func NewClient(cfg config.AssistantConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// StreamChatCompletion forwards the message sequence upstream with
// stream:true and returns the raw event-stream body. The caller owns the
// returned reader and must close it.
//
// Upstream statuses translate to the domain taxonomy: 429 becomes
// ErrRateLimited and 402 ErrPaymentRequired, both surfaced verbatim to the
// caller with no internal retry. Any other non-success status is logged with
// its response body and collapses to ErrUpstream.
func (c *Client) StreamChatCompletion(ctx context.Context, messages []Message) (io.ReadCloser, error) {
	if c.apiKey == "" {
		return nil, appErrors.Clone(appErrors.ErrInternal, "assistant credential is not configured")
	}

	payload, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode completion request")
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build completion request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "call completion service")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		c.drain(resp)
		return nil, appErrors.ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		c.drain(resp)
		return nil, appErrors.ErrPaymentRequired
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		c.logger.Error("completion upstream failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("upstream returned status %d", resp.StatusCode))
	}
}

func (c *Client) drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
