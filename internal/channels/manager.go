package channels

import (
	"context"
	"log/slog"

	"github.com/dingclaw/dingclaw/internal/bus"
	"github.com/dingclaw/dingclaw/internal/config"
	"github.com/dingclaw/dingclaw/internal/dingtalk"
	"github.com/dingclaw/dingclaw/internal/schema"
)

// Manager owns all enabled channels and routes outbound messages.
type Manager struct {
	channels map[string]schema.Channel
	b        bus.Bus
}

// NewManager creates a Manager and initialises all enabled channels.
// The CLIChannel is always registered; it uses consoleBus to deliver replies
// back to the terminal when the gateway is running interactively.
func NewManager(cfg *config.Config, b bus.Bus, console *bus.ConsoleBus,
	tokens *dingtalk.Tokens, state *dingtalk.StateStore) *Manager {

	m := &Manager{
		channels: make(map[string]schema.Channel),
		b:        b,
	}

	cli := NewCLIChannel(b, console)
	m.channels[cli.Name()] = cli
	slog.Info("channel enabled", "name", cli.Name())

	if cfg.Channels.DingTalk.Enabled {
		ch := NewDingTalkChannel(&cfg.Channels.DingTalk, b, tokens, state, cfg.MediaPath())
		m.channels[ch.Name()] = ch
		slog.Info("channel enabled", "name", ch.Name())
	}

	return m
}

// EnabledChannels returns the names of all enabled channels.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, n)
	}
	return names
}

// StartAll starts all channels concurrently and dispatches outbound messages.
// Blocks until ctx is cancelled.
func (m *Manager) StartAll(ctx context.Context) error {
	go m.dispatchOutbound(ctx)

	for name, ch := range m.channels {
		go func(n string, c schema.Channel) {
			slog.Info("starting channel", "name", n)
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("channel exited with error", "name", n, "err", err)
			}
		}(name, ch)
	}

	<-ctx.Done()
	return ctx.Err()
}

// dispatchOutbound reads outbound messages off the bus and routes each to the
// owning channel's Send method.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-m.b.OutboundChan():
			ch, ok := m.channels[string(msg.Channel())]
			if !ok {
				slog.Debug("unknown channel for outbound message", "channel", msg.Channel())
				continue
			}
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("send error", "channel", msg.Channel(), "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
