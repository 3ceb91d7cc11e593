package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dingclaw/dingclaw/internal/bus"
	"github.com/dingclaw/dingclaw/internal/config"
	"github.com/dingclaw/dingclaw/internal/dingtalk"
	"github.com/dingclaw/dingclaw/internal/respond"
)

func testTokens() *dingtalk.Tokens {
	return dingtalk.NewTokens(func(ctx context.Context, clientID, clientSecret string) (string, time.Duration, error) {
		return "tok", time.Hour, nil
	})
}

func newTestChannel(t *testing.T, cfg *config.DingTalkConfig) (*DingTalkChannel, bus.Bus) {
	t.Helper()
	b := bus.NewMessageBus(4)
	ch := NewDingTalkChannel(cfg, b, testTokens(), dingtalk.NewStateStore(), t.TempDir())
	return ch, b
}

func TestSend_WebhookReply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0})
	}))
	defer srv.Close()

	ch, _ := newTestChannel(t, &config.DingTalkConfig{Enabled: true, ClientID: "id", ClientSecret: "sec"})

	out := bus.NewOutboundMessage(bus.ChannelDingTalk, "staff-1", "hello back")
	out.SetMetadata(map[string]any{dingtalk.MetaSessionWebhook: srv.URL})

	if err := ch.Send(context.Background(), out); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got["msgtype"] != "text" {
		t.Errorf("msgtype = %v, want text", got["msgtype"])
	}
}

func TestSend_MarkdownReplies(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0})
	}))
	defer srv.Close()

	ch, _ := newTestChannel(t, &config.DingTalkConfig{
		Enabled: true, ClientID: "id", ClientSecret: "sec", MarkdownReplies: true,
	})

	out := bus.NewOutboundMessage(bus.ChannelDingTalk, "staff-1", "**hi**")
	out.SetMetadata(map[string]any{dingtalk.MetaSessionWebhook: srv.URL})

	if err := ch.Send(context.Background(), out); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got["msgtype"] != "markdown" {
		t.Errorf("msgtype = %v, want markdown", got["msgtype"])
	}
}

func TestSend_ActiveSendFallback(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"processQueryKey": "ok"})
	}))
	defer srv.Close()

	ch, _ := newTestChannel(t, &config.DingTalkConfig{Enabled: true, ClientID: "id", ClientSecret: "sec"})
	ch.sender.SetAPIBase(srv.URL)

	// No session webhook in metadata: this must fall back to an active send.
	out := bus.NewOutboundMessage(bus.ChannelDingTalk, "staff-1", "reminder")
	out.SetMetadata(map[string]any{dingtalk.MetaConversationType: "1"})

	if err := ch.Send(context.Background(), out); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if path != "/v1.0/robot/oToMessages/batchSend" {
		t.Errorf("path = %q, want oToMessages/batchSend", path)
	}
	users, _ := got["userIds"].([]any)
	if len(users) != 1 || users[0] != "staff-1" {
		t.Errorf("userIds = %v, want [staff-1]", got["userIds"])
	}
}

func TestSend_ActiveSendGroup(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"processQueryKey": "ok"})
	}))
	defer srv.Close()

	ch, _ := newTestChannel(t, &config.DingTalkConfig{Enabled: true, ClientID: "id", ClientSecret: "sec"})
	ch.sender.SetAPIBase(srv.URL)

	out := bus.NewOutboundMessage(bus.ChannelDingTalk, "cid-group", "announcement")
	out.SetMetadata(map[string]any{dingtalk.MetaConversationType: "2"})

	if err := ch.Send(context.Background(), out); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if path != "/v1.0/robot/groupMessages/send" {
		t.Errorf("path = %q, want groupMessages/send", path)
	}
	if got["openConversationId"] != "cid-group" {
		t.Errorf("openConversationId = %v", got["openConversationId"])
	}
}

func TestSend_ExpiredWebhookFallsBackToActiveSend(t *testing.T) {
	webhookHits := 0
	webhookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHits++
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0})
	}))
	defer webhookSrv.Close()

	var path string
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"processQueryKey": "ok"})
	}))
	defer apiSrv.Close()

	ch, _ := newTestChannel(t, &config.DingTalkConfig{Enabled: true, ClientID: "id", ClientSecret: "sec"})
	ch.sender.SetAPIBase(apiSrv.URL)

	out := bus.NewOutboundMessage(bus.ChannelDingTalk, "staff-1", "late reply")
	out.SetMetadata(map[string]any{
		dingtalk.MetaSessionWebhook:          webhookSrv.URL,
		dingtalk.MetaSessionWebhookExpiredAt: time.Now().Add(-time.Minute).UnixMilli(),
		dingtalk.MetaConversationType:        "1",
	})

	if err := ch.Send(context.Background(), out); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if webhookHits != 0 {
		t.Errorf("expired webhook was called %d times, want 0", webhookHits)
	}
	if path != "/v1.0/robot/oToMessages/batchSend" {
		t.Errorf("path = %q, want the active-send endpoint", path)
	}
}

func TestSend_UnexpiredWebhookStillUsed(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0})
	}))
	defer srv.Close()

	ch, _ := newTestChannel(t, &config.DingTalkConfig{Enabled: true, ClientID: "id", ClientSecret: "sec"})

	out := bus.NewOutboundMessage(bus.ChannelDingTalk, "staff-1", "in time")
	out.SetMetadata(map[string]any{
		dingtalk.MetaSessionWebhook:          srv.URL,
		dingtalk.MetaSessionWebhookExpiredAt: time.Now().Add(time.Hour).UnixMilli(),
	})

	if err := ch.Send(context.Background(), out); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got["msgtype"] != "text" {
		t.Errorf("msgtype = %v, want text via the session webhook", got["msgtype"])
	}
}

func TestPublishInbound_Allowlist(t *testing.T) {
	ch, b := newTestChannel(t, &config.DingTalkConfig{
		Enabled: true, ClientID: "id", ClientSecret: "sec", AllowFrom: []string{"staff-1"},
	})

	allowed := &dingtalk.ChatMessage{
		MsgType: "text", ConversationType: "1", SenderStaffID: "staff-1",
		Text: &dingtalk.TextContent{Content: "hi"},
	}
	denied := &dingtalk.ChatMessage{
		MsgType: "text", ConversationType: "1", SenderStaffID: "staff-2",
		Text: &dingtalk.TextContent{Content: "hi"},
	}

	ch.publishInbound(dingtalk.ChatMessagePublication{Message: allowed, Result: dingtalk.HandleResult{OK: true, NormalizedText: "hi"}})
	ch.publishInbound(dingtalk.ChatMessagePublication{Message: denied, Result: dingtalk.HandleResult{OK: true, NormalizedText: "hi"}})

	select {
	case msg := <-b.InboundChan():
		if msg.SenderId() != "staff-1" {
			t.Errorf("published sender = %q, want staff-1", msg.SenderId())
		}
	default:
		t.Fatal("allowed sender's message not published")
	}
	select {
	case msg := <-b.InboundChan():
		t.Errorf("denied sender's message published: %+v", msg)
	default:
	}
}

// End-to-end: a text event enters through the monitor, flows across the bus
// through the responder loop, and the reply lands on the session webhook.
func TestEndToEnd_TextEcho(t *testing.T) {
	replies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		replies <- body.Text.Content
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0})
	}))
	defer srv.Close()

	ch, b := newTestChannel(t, &config.DingTalkConfig{Enabled: true, ClientID: "id", ClientSecret: "sec"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = respond.NewLoop(b, respond.EchoResponder{}, time.Second).Run(ctx) }()
	go func() {
		for {
			select {
			case out := <-b.OutboundChan():
				_ = ch.Send(ctx, out)
			case <-ctx.Done():
				return
			}
		}
	}()

	msg := &dingtalk.ChatMessage{
		MsgType:          "text",
		MsgID:            "msg-e2e",
		ConversationType: "1",
		SenderStaffID:    "staff-1",
		SessionWebhook:   srv.URL,
		Text:             &dingtalk.TextContent{Content: "ping"},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if got := ch.monitor.HandleEvent(ctx, dingtalk.EventFrame{MessageID: "evt", Data: data}); got != dingtalk.AckSuccess {
		t.Fatalf("HandleEvent = %q, want SUCCESS", got)
	}

	select {
	case text := <-replies:
		if text != "ping" {
			t.Errorf("webhook reply = %q, want ping", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply reached the session webhook")
	}
}
