package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dingclaw/dingclaw/internal/bus"
)

// envelope is the JSON body POSTed to the host endpoint for each message.
type envelope struct {
	Channel   string         `json:"channel"`
	SenderID  string         `json:"senderId"`
	ChatID    string         `json:"chatId"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Media     []string       `json:"media,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// HTTPResponder forwards each inbound envelope to the host agent framework
// over HTTP and returns the reply text from its response.
type HTTPResponder struct {
	client   *http.Client
	endpoint string
	token    string
}

// NewHTTPResponder creates a responder POSTing to endpoint. token, when
// non-empty, is sent as a bearer credential.
func NewHTTPResponder(endpoint, token string, timeout time.Duration) *HTTPResponder {
	return &HTTPResponder{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		token:    token,
	}
}

func (h *HTTPResponder) Respond(ctx context.Context, msg bus.InboundMessage) (string, error) {
	body, err := json.Marshal(envelope{
		Channel:   string(msg.Channel()),
		SenderID:  msg.SenderId(),
		ChatID:    msg.ChatId(),
		Content:   msg.Content(),
		Timestamp: msg.Timestamp(),
		Media:     msg.Media(),
		Metadata:  msg.Metadata(),
	})
	if err != nil {
		return "", fmt.Errorf("respond: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("respond: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("respond: call host: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("respond: host returned status %d", resp.StatusCode)
	}

	var result struct {
		Reply string `json:"reply"`
	}
	b, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(b, &result); err != nil {
		return "", fmt.Errorf("respond: decode host response: %w", err)
	}
	return result.Reply, nil
}
