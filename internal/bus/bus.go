// Package bus defines the message types that flow between channels and the
// host responder, and the in-process bus that carries them.
package bus

type ChannelType string

const (
	ChannelDingTalk ChannelType = "dingtalk"
	ChannelCLI      ChannelType = "cli"
	ChannelSystem   ChannelType = "system"
)

// SenderIdCLI is the fixed sender id for interactive console input.
const SenderIdCLI = "cli-user"

// Bus is the contract between chat channels and the responder core.
// Implementations may use buffered channels, pub/sub systems, or any other transport.
type Bus interface {
	// PublishInbound delivers a message from a channel to the responder.
	PublishInbound(msg InboundMessage)
	// PublishOutbound delivers a reply from the responder to a channel.
	PublishOutbound(msg OutboundMessage)
	// InboundChan returns a receive-only channel for the responder to consume.
	InboundChan() <-chan InboundMessage
	// OutboundChan returns a receive-only channel for the channel manager to consume.
	OutboundChan() <-chan OutboundMessage
}

// MessageBus is the default in-process Bus implementation backed by buffered Go channels.
//
// Channels push InboundMessages; the responder consumes them, processes, and
// pushes OutboundMessages back for the channel manager to route.
// Both directions use buffered channels so senders never block on a slow consumer.
type MessageBus struct {
	inbound  chan InboundMessage  // channels -> responder
	outbound chan OutboundMessage // responder -> channels
}

func NewMessageBus(bufSize int) Bus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, bufSize),
		outbound: make(chan OutboundMessage, bufSize),
	}
}

// PublishInbound sends an InboundMessage to the responder.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

// PublishOutbound sends an OutboundMessage to the channel manager.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.outbound <- msg
}

// InboundChan returns a receive-only view of the inbound channel.
func (b *MessageBus) InboundChan() <-chan InboundMessage {
	return b.inbound
}

// OutboundChan returns a receive-only view of the outbound channel.
func (b *MessageBus) OutboundChan() <-chan OutboundMessage {
	return b.outbound
}
