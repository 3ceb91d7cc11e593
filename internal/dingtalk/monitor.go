package dingtalk

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// AckStatus is the acknowledgement returned to the platform for one event.
type AckStatus string

const (
	AckSuccess AckStatus = "SUCCESS"
	AckFailure AckStatus = "FAILURE"
)

// EventFrame is one robot callback event off the stream connection.
type EventFrame struct {
	MessageID string
	Data      []byte
}

// Streamer is the long-lived duplex connection to the platform.
type Streamer interface {
	// Start opens the connection and begins delivering events. It returns
	// once the connection is established (reconnects are internal).
	Start(ctx context.Context) error
	Close()
}

// StreamerFactory builds the stream connection for one robot, delivering each
// event to handle.
type StreamerFactory func(id RobotIdentity, handle func(ctx context.Context, f EventFrame) AckStatus) (Streamer, error)

// Monitor owns one robot's stream session: it acknowledges every event
// immediately after classification and runs the download/handoff pipeline on
// a detached goroutine, so slow media fetches never stall the event loop or
// trigger platform redelivery.
type Monitor struct {
	robot       RobotIdentity
	handlers    *Handlers
	replier     *Replier
	state       *StateStore
	publish     func(m ChatMessagePublication)
	newStreamer StreamerFactory

	streamer Streamer
	stopOnce sync.Once
}

// ChatMessagePublication is a handled message ready for the inbound bus.
type ChatMessagePublication struct {
	Message *ChatMessage
	Result  HandleResult
}

// NewMonitor wires a session monitor. publish receives every message that
// survives validation and handling.
func NewMonitor(robot RobotIdentity, handlers *Handlers, replier *Replier, state *StateStore,
	publish func(m ChatMessagePublication), factory StreamerFactory) *Monitor {
	if factory == nil {
		factory = NewSDKStreamer
	}
	return &Monitor{
		robot:       robot,
		handlers:    handlers,
		replier:     replier,
		state:       state,
		publish:     publish,
		newStreamer: factory,
	}
}

// Run opens the stream session and blocks until ctx is done or the connection
// cannot be established.
func (m *Monitor) Run(ctx context.Context) error {
	streamer, err := m.newStreamer(m.robot, m.HandleEvent)
	if err != nil {
		m.state.RecordError(err)
		return err
	}
	m.streamer = streamer

	if err := streamer.Start(ctx); err != nil {
		m.state.RecordError(err)
		return err
	}
	m.state.MarkStarted()
	slog.Info("dingtalk: stream session started", "robot_code", m.robot.RobotCode)

	<-ctx.Done()
	m.Stop()
	return nil
}

// Stop closes the stream session. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.streamer != nil {
			m.streamer.Close()
		}
		m.state.MarkStopped()
		slog.Info("dingtalk: stream session stopped", "robot_code", m.robot.RobotCode)
	})
}

// HandleEvent is the per-event entry point. It decodes and classifies
// synchronously, then acknowledges; everything that can block (downloads,
// replies, handoff) runs detached. A body that fails to decode is acked as a
// failure and dropped — the platform's redelivery would fail identically.
func (m *Monitor) HandleEvent(ctx context.Context, f EventFrame) AckStatus {
	msg, err := DecodeChatMessage(f.Data)
	if err != nil {
		slog.Error("dingtalk: dropping undecodable event", "message_id", f.MessageID, "error", err)
		return AckFailure
	}

	handler := m.handlers.Classify(msg)
	slog.Info("dingtalk: inbound message",
		"kind", handler.Kind(),
		"msg_id", msg.MsgID,
		"sender", msg.SenderKey(),
		"group", msg.IsGroup(),
		"preview", handler.Preview(msg))
	m.state.TouchInbound()

	go m.runPipeline(msg, handler)
	return AckSuccess
}

// runPipeline validates, handles and publishes one message. It runs after the
// event is acknowledged, on its own context: the stream event's context ends
// at ack time.
func (m *Monitor) runPipeline(msg *ChatMessage, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dingtalk: pipeline panic",
				"msg_id", msg.MsgID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	ctx := context.Background()

	v := handler.Validate(msg)
	if !v.Valid {
		if v.ErrorMessage != "" {
			m.replyError(ctx, msg, v.ErrorMessage)
		}
		return
	}

	res := handler.Handle(ctx, msg, m.robot)
	if !res.OK {
		slog.Warn("dingtalk: message handling failed", "msg_id", msg.MsgID, "error", res.ErrorMessage)
		m.replyError(ctx, msg, res.ErrorMessage)
		return
	}
	if res.SkipProcessing {
		return
	}

	m.publish(ChatMessagePublication{Message: msg, Result: res})
}

func (m *Monitor) replyError(ctx context.Context, msg *ChatMessage, text string) {
	if err := m.replier.ReplyText(ctx, msg.SessionWebhook, text); err != nil {
		slog.Error("dingtalk: error reply failed", "msg_id", msg.MsgID, "error", err)
	}
}
