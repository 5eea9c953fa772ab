package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"friendchat/internal/config"
	"friendchat/internal/logging"

	"github.com/google/uuid"
)

// Fixed sampling parameters sent with every request.
const (
	Temperature = 0.7
	MaxTokens   = 2000
)

type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClientWithEndpoint(cfg.EndpointURL(), logger)
}

func NewClientWithEndpoint(endpoint string, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		// No overall timeout: a stream lasts as long as the model talks.
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 2 * time.Minute,
			},
		},
		logger: logging.OrDiscard(logger),
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// --- Chat completions (streaming) ---

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message    string
	Model      string
	Credential string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: %d, %s", e.StatusCode, e.Body)
}

func newCompletionRequest(req ChatRequest) CompletionRequest {
	return CompletionRequest{
		Model:       req.Model,
		Messages:    []ChatMessage{{Role: "user", Content: req.Message}},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		Stream:      true,
	}
}

// StreamChat posts one user message and streams the reply into sink.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, sink Sink) (*StreamResult, error) {
	body, err := json.Marshal(newCompletionRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Client-Request-Id", requestID)
	if req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	}

	log := c.logger.With("request_id", requestID, "model", req.Model)
	log.Debug("sending chat request", "endpoint", c.endpoint)
	started := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Error("chat request failed", "error", err)
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(errBody))}
		log.Error("chat request rejected", "status", resp.StatusCode)
		return nil, statusErr
	}

	res, err := ReadStream(ctx, resp.Body, sink, log)
	if err != nil {
		log.Error("stream interrupted", "error", err, "events", eventsOf(res))
		return res, err
	}
	log.Info("stream complete",
		"events", res.Events,
		"skipped", res.Skipped,
		"content_len", len(res.Content),
		"reasoning_len", len(res.Reasoning),
		"duration", time.Since(started))
	return res, nil
}

func eventsOf(res *StreamResult) int {
	if res == nil {
		return 0
	}
	return res.Events
}
