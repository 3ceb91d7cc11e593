package respond

import (
	"context"

	"github.com/dingclaw/dingclaw/internal/bus"
)

// EchoResponder mirrors the inbound text back. It is the fallback when no
// host endpoint is configured, useful for wiring checks and demos.
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, msg bus.InboundMessage) (string, error) {
	return msg.Content(), nil
}
