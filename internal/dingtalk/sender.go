package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Message keys for robot active sends.
const (
	MsgKeyText     = "sampleText"
	MsgKeyMarkdown = "sampleMarkdown"
	MsgKeyImage    = "sampleImageMsg"
)

// Sender performs proactive robot sends outside the session-webhook window,
// via the one-to-one batch endpoint and the group endpoint.
type Sender struct {
	client  *http.Client
	apiBase string
	tokens  *Tokens
}

// NewSender creates a Sender using the given token cache.
func NewSender(tokens *Tokens) *Sender {
	return &Sender{client: newHTTPClient(), apiBase: DefaultAPIBase, tokens: tokens}
}

// SetAPIBase overrides the vendor API origin (tests).
func (s *Sender) SetAPIBase(base string) { s.apiBase = base }

// TextParam builds the msgParam payload for a sampleText send.
func TextParam(content string) string {
	b, _ := json.Marshal(map[string]string{"content": content})
	return string(b)
}

// MarkdownParam builds the msgParam payload for a sampleMarkdown send.
func MarkdownParam(title, text string) string {
	if title == "" {
		title = "message"
	}
	b, _ := json.Marshal(map[string]string{"title": title, "text": text})
	return string(b)
}

// ImageParam builds the msgParam payload for a sampleImageMsg send. The photo
// URL may be a media_id from the legacy upload endpoint.
func ImageParam(photoURL string) string {
	b, _ := json.Marshal(map[string]string{"photoURL": photoURL})
	return string(b)
}

// SendToUsers pushes a message to one or more users by staff id.
func (s *Sender) SendToUsers(ctx context.Context, id RobotIdentity, userIDs []string, msgKey, msgParam string) error {
	return s.send(ctx, id, "/v1.0/robot/oToMessages/batchSend", map[string]any{
		"robotCode": id.RobotCode,
		"userIds":   userIDs,
		"msgKey":    msgKey,
		"msgParam":  msgParam,
	})
}

// SendToGroup pushes a message to a group conversation the robot belongs to.
func (s *Sender) SendToGroup(ctx context.Context, id RobotIdentity, conversationID, msgKey, msgParam string) error {
	return s.send(ctx, id, "/v1.0/robot/groupMessages/send", map[string]any{
		"robotCode":          id.RobotCode,
		"openConversationId": conversationID,
		"msgKey":             msgKey,
		"msgParam":           msgParam,
	})
}

func (s *Sender) send(ctx context.Context, id RobotIdentity, path string, payload map[string]any) error {
	token, err := s.tokens.Get(ctx, id)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dingtalk: build send request: %w", err)
	}
	req.Header.Set("x-acs-dingtalk-access-token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalk: active send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("dingtalk: active send returned status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	return nil
}
