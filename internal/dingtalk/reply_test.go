package dingtalk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReplier_ReplyText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0, "errmsg": "ok"})
	}))
	defer srv.Close()

	state := NewStateStore()
	r := NewReplier(state)
	if err := r.ReplyText(context.Background(), srv.URL, "hello"); err != nil {
		t.Fatalf("ReplyText returned error: %v", err)
	}

	if got["msgtype"] != "text" {
		t.Errorf("msgtype = %v, want text", got["msgtype"])
	}
	text, _ := got["text"].(map[string]any)
	if text["content"] != "hello" {
		t.Errorf("content = %v, want hello", text["content"])
	}
	if state.Get().LastOutboundAt.IsZero() {
		t.Error("LastOutboundAt not touched after successful reply")
	}
}

func TestReplier_ReplyMarkdown(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0})
	}))
	defer srv.Close()

	r := NewReplier(nil)
	if err := r.ReplyMarkdown(context.Background(), srv.URL, "", "**bold**"); err != nil {
		t.Fatalf("ReplyMarkdown returned error: %v", err)
	}
	if got["msgtype"] != "markdown" {
		t.Errorf("msgtype = %v, want markdown", got["msgtype"])
	}
	md, _ := got["markdown"].(map[string]any)
	if md["title"] == "" {
		t.Error("markdown title is empty, want default")
	}
}

func TestReplier_PlatformRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 310000, "errmsg": "session expired"})
	}))
	defer srv.Close()

	state := NewStateStore()
	r := NewReplier(state)
	err := r.ReplyText(context.Background(), srv.URL, "hello")

	var rejected *ReplyRejected
	if !errors.As(err, &rejected) {
		t.Fatalf("error type = %T (%v), want *ReplyRejected", err, err)
	}
	if rejected.Code != 310000 {
		t.Errorf("Code = %d, want 310000", rejected.Code)
	}
	if !state.Get().LastOutboundAt.IsZero() {
		t.Error("LastOutboundAt touched on rejected reply")
	}
}

func TestReplier_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewReplier(nil)
	if err := r.ReplyText(context.Background(), srv.URL, "hello"); err == nil {
		t.Fatal("ReplyText returned nil on 502, want error")
	}
}

func TestReplier_MissingWebhookDropsReply(t *testing.T) {
	r := NewReplier(nil)
	if err := r.ReplyText(context.Background(), "", "hello"); err != nil {
		t.Fatalf("ReplyText with empty webhook returned error: %v", err)
	}
}
