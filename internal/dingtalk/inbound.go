package dingtalk

import (
	"fmt"

	"github.com/dingclaw/dingclaw/internal/bus"
)

// Metadata keys attached to inbound envelopes. The reply path reads the
// webhook keys back off the outbound envelope, so they round-trip through
// the responder untouched.
const (
	MetaMessageID               = "message_id"
	MetaMsgType                 = "msg_type"
	MetaConversationType        = "conversation_type"
	MetaConversationTitle       = "conversation_title"
	MetaSenderNick              = "sender_nick"
	MetaCreateAt                = "create_at"
	MetaSessionWebhook          = "session_webhook"
	MetaSessionWebhookExpiredAt = "session_webhook_expired_at"
	MetaRobotCode               = "robot_code"
	MetaMediaPath               = "media_path"
	MetaMediaType               = "media_type"
	MetaMediaPaths              = "media_paths"
	MetaMediaTypes              = "media_types"
)

// BuildInbound converts a handled chat message into the channel-neutral
// inbound envelope. Direct chats key the conversation by sender so the same
// person maps to one session across webhook rotations; group chats keep the
// platform conversation id.
func BuildInbound(msg *ChatMessage, res HandleResult) bus.InboundMessage {
	chatID := msg.SenderKey()
	if msg.IsGroup() {
		chatID = msg.ConversationID
	}

	m := bus.NewInboundMessage(bus.ChannelDingTalk, msg.SenderKey(), chatID, inboundText(msg, res))

	meta := map[string]any{
		MetaMessageID:        msg.MsgID,
		MetaMsgType:          msg.MsgType,
		MetaConversationType: msg.ConversationType,
		MetaSenderNick:       msg.SenderNick,
		MetaCreateAt:         msg.CreateAt,
		MetaRobotCode:        msg.RobotCode,
	}
	if msg.ConversationTitle != "" {
		meta[MetaConversationTitle] = msg.ConversationTitle
	}
	if msg.SessionWebhook != "" {
		meta[MetaSessionWebhook] = msg.SessionWebhook
		meta[MetaSessionWebhookExpiredAt] = msg.SessionWebhookExpiredTime
	}

	if len(res.Media) > 0 {
		// First item is the primary attachment; the parallel arrays carry
		// every item, in arrival order.
		meta[MetaMediaPath] = res.Media[0].Path
		meta[MetaMediaType] = res.Media[0].ContentType

		paths := make([]string, len(res.Media))
		types := make([]string, len(res.Media))
		for i, item := range res.Media {
			paths[i] = item.Path
			types[i] = item.ContentType
		}
		meta[MetaMediaPaths] = paths
		meta[MetaMediaTypes] = types
		m.SetMedia(paths)
	}

	m.SetMetadata(meta)
	return m
}

// inboundText picks the envelope text: the normalized text when the handler
// produced one, otherwise a kind-specific placeholder so downstream always
// sees non-empty content.
func inboundText(msg *ChatMessage, res HandleResult) string {
	if res.NormalizedText != "" {
		return res.NormalizedText
	}
	switch msg.Kind() {
	case KindPicture:
		return "[picture]"
	case KindAudio:
		if msg.Content != nil && msg.Content.Duration > 0 {
			return fmt.Sprintf("[audio %ds]", msg.Content.Duration/1000)
		}
		return "[audio]"
	case KindVideo:
		if msg.Content != nil && msg.Content.Duration > 0 {
			return fmt.Sprintf("[video %ds]", msg.Content.Duration/1000)
		}
		return "[video]"
	case KindFile:
		if msg.Content != nil && msg.Content.FileName != "" {
			return fmt.Sprintf("[file %s]", msg.Content.FileName)
		}
		return "[file]"
	case KindRichText:
		return "[richText]"
	default:
		return msg.TextBody()
	}
}
