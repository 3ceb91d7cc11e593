package schema

import (
	"context"

	"github.com/dingclaw/dingclaw/internal/bus"
)

// Responder is the host-framework boundary: it turns one normalized inbound
// envelope into reply text. The gateway never interprets the reply beyond
// delivering its text back through the originating channel.
type Responder interface {
	Respond(ctx context.Context, msg bus.InboundMessage) (string, error)
}
