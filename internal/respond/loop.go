// Package respond consumes normalized inbound messages, obtains a reply from
// the host responder, and publishes the reply back onto the bus.
package respond

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dingclaw/dingclaw/internal/bus"
	"github.com/dingclaw/dingclaw/internal/schema"
)

const processingFailedReply = "Sorry, something went wrong while processing your message."

// Loop drains the inbound bus and runs one responder call per message.
type Loop struct {
	b         bus.Bus
	responder schema.Responder
	timeout   time.Duration
}

// NewLoop creates a responder loop. A zero timeout means no per-message bound.
func NewLoop(b bus.Bus, responder schema.Responder, timeout time.Duration) *Loop {
	return &Loop{b: b, responder: responder, timeout: timeout}
}

// Run consumes inbound messages until ctx is cancelled. Each message is
// processed on its own goroutine so one slow reply never blocks the rest.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-l.b.InboundChan():
			go l.process(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loop) process(ctx context.Context, msg bus.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("responder panic", "session", msg.SessionKey(),
				"panic", r, "stack", string(debug.Stack()))
			l.publishReply(msg, processingFailedReply)
		}
	}()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	slog.Info("processing message", "session", msg.SessionKey(), "preview", msg.Preview())

	reply, err := l.responder.Respond(ctx, msg)
	if err != nil {
		slog.Error("responder failed", "session", msg.SessionKey(), "err", err)
		l.publishReply(msg, processingFailedReply)
		return
	}
	if reply == "" {
		slog.Debug("empty reply, nothing to send", "session", msg.SessionKey())
		return
	}
	l.publishReply(msg, reply)
}

// publishReply builds the outbound envelope, carrying the inbound metadata
// through so the channel can find its session webhook and conversation hints.
func (l *Loop) publishReply(msg bus.InboundMessage, text string) {
	out := bus.NewOutboundMessage(msg.Channel(), msg.ChatId(), text)
	if id, ok := msg.Metadata()["message_id"].(string); ok {
		out.SetReplyTo(id)
	}
	out.SetMetadata(msg.Metadata())
	l.b.PublishOutbound(out)
}
