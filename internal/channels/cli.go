package channels

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dingclaw/dingclaw/internal/bus"
	"github.com/dingclaw/dingclaw/internal/shared/cmdutils"
)

var cliExitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// CLIChannel wires the terminal (stdin/stdout) into the channel manager so
// that interactive console input reaches the responder via the bus and
// replies are printed to stdout via the ConsoleBus.
type CLIChannel struct {
	Base
	console *bus.ConsoleBus
}

// NewCLIChannel creates a CLIChannel.
func NewCLIChannel(b bus.Bus, console *bus.ConsoleBus) *CLIChannel {
	return &CLIChannel{
		Base:    NewBase(bus.ChannelCLI, b, nil),
		console: console,
	}
}

func (c *CLIChannel) Name() string { return string(bus.ChannelCLI) }

// Start runs the stdin REPL: reads lines, dispatches them to the responder
// via the inbound bus, and prints each reply received on the console bus.
// Blocks until ctx is cancelled or stdin is closed.
func (c *CLIChannel) Start(ctx context.Context) error {
	fmt.Printf("CLI channel ready. Type 'exit' or press Ctrl+C to quit.\n\n")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("You: ")

		scanDone := make(chan bool, 1)
		go func() {
			scanDone <- scanner.Scan()
		}()

		select {
		case ok := <-scanDone:
			if !ok {
				fmt.Println("\nGoodbye!")
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if cliExitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		c.HandleMessage(bus.SenderIdCLI, "direct", line, nil, nil)
		c.waitForReply(ctx)
	}
}

// waitForReply blocks until the responder publishes a reply on the console
// bus, then prints it.
func (c *CLIChannel) waitForReply(ctx context.Context) {
	select {
	case msg := <-c.console.Subscribe():
		cmdutils.PrintResponse(msg.Content())
	case <-ctx.Done():
	}
}

// Send delivers an outbound reply to the CLI by publishing it onto the
// console bus. The Start loop drains the console bus and prints to stdout.
func (c *CLIChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.console.Publish(msg)

	return nil
}
