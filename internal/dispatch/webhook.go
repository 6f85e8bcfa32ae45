// ABOUTME: Webhook agent client posting messages to the agent's configured endpoint
// ABOUTME: Sends JSON with the message and recent history, expects a JSON content reply

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// webhookMessage is one history entry in the webhook request body.
type webhookMessage struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// webhookRequest is the JSON body POSTed to the agent's webhook URL.
type webhookRequest struct {
	Message string           `json:"message"`
	History []webhookMessage `json:"history"`
}

// webhookResponse is the JSON body expected back from the webhook.
type webhookResponse struct {
	Content string `json:"content"`
}

// WebhookClient delivers messages to real agent endpoints over HTTP.
// One attempt per send; retry policy belongs to the caller.
type WebhookClient struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewWebhookClient creates a webhook client. A non-positive timeout
// disables the per-request deadline.
func NewWebhookClient(timeout time.Duration, logger *slog.Logger) *WebhookClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookClient{
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger.With("component", "webhook_client"),
	}
}

func (c *WebhookClient) Respond(ctx context.Context, req *Request) (*Response, error) {
	history := make([]webhookMessage, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, webhookMessage{
			Sender:    m.Sender,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}

	body, err := json.Marshal(webhookRequest{
		Message: req.Message,
		History: history,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling webhook request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("calling agent webhook", "agent_id", req.AgentID, "url", req.WebhookURL)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var parsed webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing webhook response: %w", err)
	}
	if parsed.Content == "" {
		return nil, fmt.Errorf("webhook response missing content")
	}

	return &Response{Content: parsed.Content}, nil
}
