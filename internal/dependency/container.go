// Package dependency wires core dingclaw services using go.uber.org/dig.
package dependency

import (
	"context"
	"time"

	"go.uber.org/dig"

	"github.com/dingclaw/dingclaw/internal/bus"
	"github.com/dingclaw/dingclaw/internal/channels"
	"github.com/dingclaw/dingclaw/internal/config"
	"github.com/dingclaw/dingclaw/internal/cron"
	"github.com/dingclaw/dingclaw/internal/dingtalk"
	"github.com/dingclaw/dingclaw/internal/heartbeat"
	"github.com/dingclaw/dingclaw/internal/respond"
	"github.com/dingclaw/dingclaw/internal/schema"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	msgBus    bus.Bus
	console   *bus.ConsoleBus
	tokens    *dingtalk.Tokens
	state     *dingtalk.StateStore
	loop      *respond.Loop
	manager   *channels.Manager
	cronSvc   *cron.Service
	heartbeat *heartbeat.Service
}

func (c *Container) MessageBus() bus.Bus                  { return c.msgBus }
func (c *Container) ConsoleBus() *bus.ConsoleBus          { return c.console }
func (c *Container) Tokens() *dingtalk.Tokens             { return c.tokens }
func (c *Container) State() *dingtalk.StateStore          { return c.state }
func (c *Container) RespondLoop() *respond.Loop           { return c.loop }
func (c *Container) ChannelManager() *channels.Manager    { return c.manager }
func (c *Container) CronService() *cron.Service           { return c.cronSvc }
func (c *Container) HeartbeatService() *heartbeat.Service { return c.heartbeat }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(newMessageBus); err != nil {
		return nil, err
	}
	if err := d.Provide(newConsoleBus); err != nil {
		return nil, err
	}
	if err := d.Provide(newTokens); err != nil {
		return nil, err
	}
	if err := d.Provide(newStateStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newResponder); err != nil {
		return nil, err
	}
	if err := d.Provide(newRespondLoop); err != nil {
		return nil, err
	}
	if err := d.Provide(newChannelManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newCronService); err != nil {
		return nil, err
	}
	if err := d.Provide(newHeartbeatService); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		b bus.Bus,
		console *bus.ConsoleBus,
		tokens *dingtalk.Tokens,
		state *dingtalk.StateStore,
		loop *respond.Loop,
		manager *channels.Manager,
		cronSvc *cron.Service,
		hb *heartbeat.Service,
	) {
		result = &Container{
			msgBus:    b,
			console:   console,
			tokens:    tokens,
			state:     state,
			loop:      loop,
			manager:   manager,
			cronSvc:   cronSvc,
			heartbeat: hb,
		}
	})
	return result, err
}

func newMessageBus(cfg *config.Config) bus.Bus {
	size := cfg.Gateway.BusSize
	if size <= 0 {
		size = 100
	}
	return bus.NewMessageBus(size)
}

func newConsoleBus(cfg *config.Config) *bus.ConsoleBus {
	size := cfg.Gateway.BusSize
	if size <= 0 {
		size = 100
	}
	return bus.NewConsoleBus(size)
}

func newTokens() *dingtalk.Tokens {
	return dingtalk.NewTokens(nil)
}

func newStateStore() *dingtalk.StateStore {
	return dingtalk.NewStateStore()
}

func newResponder(cfg *config.Config) schema.Responder {
	if cfg.Host.Endpoint == "" {
		return respond.EchoResponder{}
	}
	timeout := time.Duration(cfg.Host.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return respond.NewHTTPResponder(cfg.Host.Endpoint, cfg.Host.Token, timeout)
}

func newRespondLoop(b bus.Bus, r schema.Responder, cfg *config.Config) *respond.Loop {
	timeout := time.Duration(cfg.Host.TimeoutSeconds) * time.Second
	return respond.NewLoop(b, r, timeout)
}

func newChannelManager(cfg *config.Config, b bus.Bus, console *bus.ConsoleBus,
	tokens *dingtalk.Tokens, state *dingtalk.StateStore) *channels.Manager {
	return channels.NewManager(cfg, b, console, tokens, state)
}

// newCronService arms the token keep-warm job so the first message after a
// quiet period never waits on a token exchange.
func newCronService(cfg *config.Config, tokens *dingtalk.Tokens) *cron.Service {
	dt := cfg.Channels.DingTalk
	if !dt.Enabled || dt.ClientID == "" {
		return cron.NewService("", nil)
	}
	robot := dingtalk.RobotIdentity{
		ClientID:     dt.ClientID,
		ClientSecret: dt.ClientSecret,
		RobotCode:    dt.EffectiveRobotCode(),
	}
	return cron.NewService(cfg.Gateway.TokenRefreshSchedule, func(ctx context.Context) error {
		_, err := tokens.Get(ctx, robot)
		return err
	})
}

func newHeartbeatService(cfg *config.Config, state *dingtalk.StateStore) *heartbeat.Service {
	return heartbeat.NewService(state, time.Duration(cfg.Gateway.HeartbeatSeconds)*time.Second)
}
