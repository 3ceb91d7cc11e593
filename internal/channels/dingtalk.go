package channels

import (
	"context"
	"log/slog"
	"time"

	"github.com/dingclaw/dingclaw/internal/bus"
	"github.com/dingclaw/dingclaw/internal/config"
	"github.com/dingclaw/dingclaw/internal/dingtalk"
)

// DingTalkChannel connects to DingTalk via Stream Mode. The heavy lifting
// (classification, media download, webhook replies) lives in the dingtalk
// package; this adapter wires it to the bus and the channel manager.
type DingTalkChannel struct {
	Base
	cfg      *config.DingTalkConfig
	robot    dingtalk.RobotIdentity
	monitor  *dingtalk.Monitor
	replier  *dingtalk.Replier
	sender   *dingtalk.Sender
	uploader *dingtalk.Uploader
	state    *dingtalk.StateStore
}

// NewDingTalkChannel creates the channel and its session monitor.
func NewDingTalkChannel(cfg *config.DingTalkConfig, b bus.Bus, tokens *dingtalk.Tokens,
	state *dingtalk.StateStore, mediaDir string) *DingTalkChannel {

	robot := dingtalk.RobotIdentity{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RobotCode:    cfg.EffectiveRobotCode(),
	}

	ch := &DingTalkChannel{
		Base:     NewBase(bus.ChannelDingTalk, b, cfg.AllowFrom),
		cfg:      cfg,
		robot:    robot,
		replier:  dingtalk.NewReplier(state),
		sender:   dingtalk.NewSender(tokens),
		uploader: dingtalk.NewUploader(tokens),
		state:    state,
	}

	handlers := dingtalk.NewHandlers(dingtalk.NewDownloader(tokens), mediaDir)
	ch.monitor = dingtalk.NewMonitor(robot, handlers, ch.replier, state, ch.publishInbound, nil)
	return ch
}

func (d *DingTalkChannel) Name() string { return string(bus.ChannelDingTalk) }

// State exposes the session snapshot for status reporting.
func (d *DingTalkChannel) State() dingtalk.ChannelState { return d.state.Get() }

// Start runs the stream session until ctx is cancelled.
func (d *DingTalkChannel) Start(ctx context.Context) error {
	if d.cfg.ClientID == "" || d.cfg.ClientSecret == "" {
		slog.Warn("dingtalk: clientId or clientSecret not configured")
		<-ctx.Done()
		return ctx.Err()
	}
	return d.monitor.Run(ctx)
}

func (d *DingTalkChannel) publishInbound(p dingtalk.ChatMessagePublication) {
	d.Publish(dingtalk.BuildInbound(p.Message, p.Result))
}

// Send delivers an outbound reply. Replies within the session window go to
// the session webhook; anything else falls back to an active robot send.
func (d *DingTalkChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if err := d.sendMedia(ctx, msg); err != nil {
		slog.Warn("dingtalk: media send failed", "err", err)
	}

	if msg.Content() == "" {
		return nil
	}

	if webhook := usableWebhook(msg.Metadata()); webhook != "" {
		if d.cfg.MarkdownReplies {
			return d.replier.ReplyMarkdown(ctx, webhook, "", msg.Content())
		}
		return d.replier.ReplyText(ctx, webhook, msg.Content())
	}
	return d.activeSend(ctx, msg)
}

// usableWebhook returns the session webhook from the metadata, or "" when it
// is absent or its expiry timestamp (epoch milliseconds) has already passed.
func usableWebhook(meta map[string]any) string {
	webhook, _ := meta[dingtalk.MetaSessionWebhook].(string)
	if webhook == "" {
		return ""
	}
	var expiredAt int64
	switch v := meta[dingtalk.MetaSessionWebhookExpiredAt].(type) {
	case int64:
		expiredAt = v
	case float64:
		expiredAt = int64(v)
	}
	if expiredAt > 0 && time.Now().After(time.UnixMilli(expiredAt)) {
		return ""
	}
	return webhook
}

// activeSend pushes a reply outside the webhook window via the robot API.
func (d *DingTalkChannel) activeSend(ctx context.Context, msg bus.OutboundMessage) error {
	msgKey, msgParam := dingtalk.MsgKeyText, dingtalk.TextParam(msg.Content())
	if d.cfg.MarkdownReplies {
		msgKey, msgParam = dingtalk.MsgKeyMarkdown, dingtalk.MarkdownParam("", msg.Content())
	}

	convType, _ := msg.Metadata()[dingtalk.MetaConversationType].(string)
	if convType == "2" {
		return d.sendGroup(ctx, msg.ChatId(), msgKey, msgParam)
	}
	if err := d.sender.SendToUsers(ctx, d.robot, []string{msg.ChatId()}, msgKey, msgParam); err != nil {
		return err
	}
	d.state.TouchOutbound()
	return nil
}

func (d *DingTalkChannel) sendGroup(ctx context.Context, conversationID, msgKey, msgParam string) error {
	if err := d.sender.SendToGroup(ctx, d.robot, conversationID, msgKey, msgParam); err != nil {
		return err
	}
	d.state.TouchOutbound()
	return nil
}

// sendMedia uploads outbound image attachments and pushes them as image
// messages. Non-image attachments are skipped for now.
func (d *DingTalkChannel) sendMedia(ctx context.Context, msg bus.OutboundMessage) error {
	for _, path := range msg.Media() {
		mediaID, err := d.uploader.UploadMedia(ctx, d.robot, "image", path)
		if err != nil {
			return err
		}
		param := dingtalk.ImageParam(mediaID)
		convType, _ := msg.Metadata()[dingtalk.MetaConversationType].(string)
		if convType == "2" {
			if err := d.sendGroup(ctx, msg.ChatId(), dingtalk.MsgKeyImage, param); err != nil {
				return err
			}
			continue
		}
		if err := d.sender.SendToUsers(ctx, d.robot, []string{msg.ChatId()}, dingtalk.MsgKeyImage, param); err != nil {
			return err
		}
		d.state.TouchOutbound()
	}
	return nil
}
