// Package dingtalk implements the DingTalk enterprise-robot ingestion and
// dispatch core: stream session monitoring, message classification, media
// download, reply delivery and active sends.
package dingtalk

import (
	"encoding/json"
	"strings"
)

// MessageKind is the declared payload kind of an inbound robot message.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindPicture  MessageKind = "picture"
	KindAudio    MessageKind = "audio"
	KindVideo    MessageKind = "video"
	KindFile     MessageKind = "file"
	KindRichText MessageKind = "richText"
	KindUnknown  MessageKind = "unknown"
)

// RobotIdentity carries the credentials one robot uses on vendor API calls.
type RobotIdentity struct {
	ClientID     string
	ClientSecret string
	RobotCode    string
}

// TextContent is the body of a text message.
type TextContent struct {
	Content string `json:"content"`
}

// RichTextElement is one ordered element of a richText body: either a text
// run or an embedded picture identified by its download code.
type RichTextElement struct {
	Type         string `json:"type,omitempty"`
	Text         string `json:"text,omitempty"`
	DownloadCode string `json:"downloadCode,omitempty"`
}

// IsPicture reports whether the element references an embedded image.
// Older payloads omit the type field, so a download code alone counts.
func (e RichTextElement) IsPicture() bool {
	return e.Type == "picture" || (e.Type == "" && e.DownloadCode != "")
}

// MediaContent is the kind-specific body of picture/audio/video/file and
// richText messages.
type MediaContent struct {
	DownloadCode string            `json:"downloadCode,omitempty"`
	FileName     string            `json:"fileName,omitempty"`
	Extension    string            `json:"extension,omitempty"`
	Duration     int64             `json:"duration,omitempty"` // milliseconds
	Size         int64             `json:"size,omitempty"`
	Recognition  string            `json:"recognition,omitempty"`
	VideoType    string            `json:"videoType,omitempty"`
	RichText     []RichTextElement `json:"richText,omitempty"`
}

// ChatMessage is the decoded body of one robot callback event.
type ChatMessage struct {
	MsgType                   string        `json:"msgtype"`
	MsgID                     string        `json:"msgId"`
	CreateAt                  int64         `json:"createAt"` // epoch milliseconds
	ConversationType          string        `json:"conversationType"` // "1" direct, "2" group
	ConversationID            string        `json:"conversationId"`
	ConversationTitle         string        `json:"conversationTitle,omitempty"`
	SenderID                  string        `json:"senderId"`
	SenderStaffID             string        `json:"senderStaffId,omitempty"`
	SenderNick                string        `json:"senderNick,omitempty"`
	SessionWebhook            string        `json:"sessionWebhook,omitempty"`
	SessionWebhookExpiredTime int64         `json:"sessionWebhookExpiredTime,omitempty"`
	RobotCode                 string        `json:"robotCode,omitempty"`
	ChatbotUserID             string        `json:"chatbotUserId,omitempty"`
	Text                      *TextContent  `json:"text,omitempty"`
	Content                   *MediaContent `json:"content,omitempty"`
}

// DecodeChatMessage parses one raw event body.
func DecodeChatMessage(data []byte) (*ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &msg, nil
}

// Kind maps the declared msgtype onto the fixed kind set.
func (m *ChatMessage) Kind() MessageKind {
	switch m.MsgType {
	case "text":
		return KindText
	case "picture":
		return KindPicture
	case "audio":
		return KindAudio
	case "video":
		return KindVideo
	case "file":
		return KindFile
	case "richText":
		return KindRichText
	default:
		return KindUnknown
	}
}

// IsGroup reports whether the message arrived in a group conversation.
func (m *ChatMessage) IsGroup() bool {
	return m.ConversationType == "2"
}

// SenderKey returns the stable sender identifier: the staff id when present,
// falling back to the union id.
func (m *ChatMessage) SenderKey() string {
	if m.SenderStaffID != "" {
		return m.SenderStaffID
	}
	return m.SenderID
}

// TextBody returns the trimmed plain-text body, empty for non-text kinds.
func (m *ChatMessage) TextBody() string {
	if m.Text == nil {
		return ""
	}
	return strings.TrimSpace(m.Text.Content)
}

// parseRichTextContent splits a richText body into its ordered text parts and
// its embedded images.
func parseRichTextContent(elems []RichTextElement) (textParts []string, images []RichTextElement) {
	for _, e := range elems {
		if e.IsPicture() {
			images = append(images, e)
			continue
		}
		if e.Text != "" {
			textParts = append(textParts, e.Text)
		}
	}
	return textParts, images
}
