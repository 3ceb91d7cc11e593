package dingtalk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type fakeStreamer struct {
	started atomic.Int32
	closed  atomic.Int32
}

func (f *fakeStreamer) Start(ctx context.Context) error { f.started.Add(1); return nil }
func (f *fakeStreamer) Close()                          { f.closed.Add(1) }

func frameFor(t *testing.T, msg *ChatMessage) EventFrame {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	return EventFrame{MessageID: "evt-1", Data: data}
}

// newTestMonitor builds a monitor whose error replies go to a local webhook
// server; the webhook URL is returned for use in message payloads.
func newTestMonitor(t *testing.T, fetch fetchFunc, webhookReplies chan<- string) (*Monitor, chan ChatMessagePublication, string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if webhookReplies != nil {
			webhookReplies <- body.Text.Content
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0})
	}))
	t.Cleanup(srv.Close)

	published := make(chan ChatMessagePublication, 4)
	m := NewMonitor(testIdentity(), testHandlers(t, fetch), NewReplier(nil), NewStateStore(),
		func(p ChatMessagePublication) { published <- p }, nil)
	return m, published, srv.URL
}

func TestMonitor_DecodeFailureAcksFailure(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil, nil)
	got := m.HandleEvent(context.Background(), EventFrame{MessageID: "evt-1", Data: []byte("{not json")})
	if got != AckFailure {
		t.Errorf("HandleEvent = %q, want FAILURE", got)
	}
}

func TestMonitor_PublishesHandledMessage(t *testing.T) {
	m, published, _ := newTestMonitor(t, nil, nil)

	msg := &ChatMessage{
		MsgType:          "text",
		MsgID:            "msg-1",
		ConversationType: "1",
		SenderStaffID:    "staff-9",
		Text:             &TextContent{Content: "hello"},
	}
	if got := m.HandleEvent(context.Background(), frameFor(t, msg)); got != AckSuccess {
		t.Fatalf("HandleEvent = %q, want SUCCESS", got)
	}

	select {
	case p := <-published:
		if p.Message.MsgID != "msg-1" || p.Result.NormalizedText != "hello" {
			t.Errorf("published %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message was never published")
	}
}

func TestMonitor_AcksBeforeDownloadCompletes(t *testing.T) {
	gate := make(chan struct{})
	m, published, _ := newTestMonitor(t, func(ctx context.Context, id RobotIdentity, code string) ([]byte, error) {
		<-gate
		return []byte("img"), nil
	}, nil)

	msg := &ChatMessage{
		MsgType:          "picture",
		MsgID:            "msg-2",
		ConversationType: "1",
		SenderStaffID:    "staff-9",
		Content:          &MediaContent{DownloadCode: "dl-slow"},
	}

	// The ack must come back while the download is still blocked.
	done := make(chan AckStatus, 1)
	go func() { done <- m.HandleEvent(context.Background(), frameFor(t, msg)) }()

	select {
	case got := <-done:
		if got != AckSuccess {
			t.Fatalf("HandleEvent = %q, want SUCCESS", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("HandleEvent blocked on the media download")
	}

	close(gate)
	select {
	case p := <-published:
		if len(p.Result.Media) != 1 {
			t.Errorf("published %d media items, want 1", len(p.Result.Media))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message was never published after the download finished")
	}
}

func TestMonitor_ValidationErrorRepliesToSender(t *testing.T) {
	replies := make(chan string, 1)
	m, published, webhook := newTestMonitor(t, nil, replies)

	msg := &ChatMessage{
		MsgType:          "picture",
		MsgID:            "msg-3",
		ConversationType: "1",
		SenderStaffID:    "staff-9",
		SessionWebhook:   webhook,
		Content:          &MediaContent{}, // no download code
	}
	if got := m.HandleEvent(context.Background(), frameFor(t, msg)); got != AckSuccess {
		t.Fatalf("HandleEvent = %q, want SUCCESS", got)
	}

	select {
	case text := <-replies:
		if text == "" {
			t.Error("error reply is empty")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reply was sent")
	}
	select {
	case p := <-published:
		t.Errorf("invalid message was published: %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitor_EmptyTextIsDroppedSilently(t *testing.T) {
	replies := make(chan string, 1)
	m, published, webhook := newTestMonitor(t, nil, replies)

	msg := &ChatMessage{
		MsgType:          "text",
		ConversationType: "1",
		SenderStaffID:    "staff-9",
		SessionWebhook:   webhook,
		Text:             &TextContent{Content: "   "},
	}
	if got := m.HandleEvent(context.Background(), frameFor(t, msg)); got != AckSuccess {
		t.Fatalf("HandleEvent = %q, want SUCCESS", got)
	}

	select {
	case text := <-replies:
		t.Errorf("got reply %q for empty text, want silence", text)
	case p := <-published:
		t.Errorf("empty text was published: %+v", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMonitor_UnsupportedTypeRepliesAndIsNotPublished(t *testing.T) {
	replies := make(chan string, 1)
	fetched := make(chan string, 1)
	m, published, webhook := newTestMonitor(t, func(ctx context.Context, id RobotIdentity, code string) ([]byte, error) {
		fetched <- code
		return nil, nil
	}, replies)

	msg := &ChatMessage{
		MsgType:          "interactiveCard",
		MsgID:            "msg-4",
		ConversationType: "1",
		SenderStaffID:    "staff-9",
		SessionWebhook:   webhook,
	}
	if got := m.HandleEvent(context.Background(), frameFor(t, msg)); got != AckSuccess {
		t.Fatalf("HandleEvent = %q, want SUCCESS", got)
	}

	select {
	case text := <-replies:
		if text != unsupportedReply {
			t.Errorf("reply = %q, want the unsupported-type notice", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply was sent for the unsupported type")
	}
	select {
	case p := <-published:
		t.Errorf("unsupported message was published: %+v", p)
	case code := <-fetched:
		t.Errorf("pipeline fetched media %q for an unsupported type", code)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitor_HandlerFailureRepliesToSender(t *testing.T) {
	replies := make(chan string, 1)
	m, _, webhook := newTestMonitor(t, func(ctx context.Context, id RobotIdentity, code string) ([]byte, error) {
		return nil, &TransferError{Status: 500}
	}, replies)

	msg := &ChatMessage{
		MsgType:          "picture",
		ConversationType: "1",
		SenderStaffID:    "staff-9",
		SessionWebhook:   webhook,
		Content:          &MediaContent{DownloadCode: "dl"},
	}
	m.HandleEvent(context.Background(), frameFor(t, msg))

	select {
	case text := <-replies:
		if text == "" {
			t.Error("failure reply is empty")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no failure reply was sent")
	}
}

func TestMonitor_RunAndStop(t *testing.T) {
	streamer := &fakeStreamer{}
	state := NewStateStore()
	m := NewMonitor(testIdentity(), testHandlers(t, nil), NewReplier(nil), state,
		func(ChatMessagePublication) {}, func(id RobotIdentity, handle func(ctx context.Context, f EventFrame) AckStatus) (Streamer, error) {
			return streamer, nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitFor(t, func() bool { return state.Get().Running })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Extra Stop calls are no-ops.
	m.Stop()
	m.Stop()
	if got := streamer.closed.Load(); got != 1 {
		t.Errorf("streamer closed %d times, want 1", got)
	}
	if state.Get().Running {
		t.Error("state still running after stop")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
