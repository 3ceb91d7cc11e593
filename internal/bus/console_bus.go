package bus

// ConsoleBus carries messages from the responder → CLI REPL.
// It is separate from the main bus so CLI output is not drained by
// the channel manager's dispatchOutbound goroutine.
type ConsoleBus struct {
	ch chan OutboundMessage
}

func NewConsoleBus(bufSize int) *ConsoleBus {
	return &ConsoleBus{ch: make(chan OutboundMessage, bufSize)}
}

// Publish delivers a reply to the CLI REPL.
func (b *ConsoleBus) Publish(msg OutboundMessage) {
	b.ch <- msg
}

// Subscribe returns a receive-only view of the console channel.
func (b *ConsoleBus) Subscribe() <-chan OutboundMessage {
	return b.ch
}
