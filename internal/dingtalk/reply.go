package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Replier posts replies to the per-message session webhook. The webhook is a
// complete short-lived URL, so no token is attached.
type Replier struct {
	client *http.Client
	state  *StateStore
}

// NewReplier creates a Replier that records delivery on the given state store.
func NewReplier(state *StateStore) *Replier {
	return &Replier{client: newHTTPClient(), state: state}
}

// ReplyText posts a plain-text reply to the session webhook. An empty webhook
// means the reply window is gone; the reply is logged and dropped.
func (r *Replier) ReplyText(ctx context.Context, webhook, text string) error {
	return r.post(ctx, webhook, map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": text},
	})
}

// ReplyMarkdown posts a markdown reply to the session webhook.
func (r *Replier) ReplyMarkdown(ctx context.Context, webhook, title, text string) error {
	if title == "" {
		title = "reply"
	}
	return r.post(ctx, webhook, map[string]any{
		"msgtype":  "markdown",
		"markdown": map[string]string{"title": title, "text": text},
	})
}

func (r *Replier) post(ctx context.Context, webhook string, payload map[string]any) error {
	if webhook == "" {
		slog.Warn("dingtalk: no session webhook, dropping reply")
		return nil
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dingtalk: build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalk: post reply: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dingtalk: reply returned status %d", resp.StatusCode)
	}

	// The webhook reports application-level rejection in the body with a
	// 200 status, so the errcode has to be checked explicitly.
	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	b, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(b, &result)
	if result.ErrCode != 0 {
		return &ReplyRejected{Code: result.ErrCode, Msg: result.ErrMsg}
	}

	if r.state != nil {
		r.state.TouchOutbound()
	}
	return nil
}
