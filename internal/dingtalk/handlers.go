package dingtalk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dingclaw/dingclaw/internal/shared/stringutils"
)

// ValidateResult is the outcome of the cheap synchronous message check.
// Invalid with an empty ErrorMessage means "nothing to say" — the message is
// dropped silently; a non-empty ErrorMessage is surfaced to the user.
type ValidateResult struct {
	Valid        bool
	ErrorMessage string
}

// HandleResult is the outcome of a handler's side-fetch work.
type HandleResult struct {
	OK             bool
	Media          []MediaItem
	NormalizedText string // text extracted from the payload, if any
	ErrorMessage   string
	SkipProcessing bool // short-circuit: do not hand off to the responder
}

// Handler validates and normalizes one message kind.
type Handler interface {
	Kind() MessageKind
	// Preview returns a short diagnostic summary with no side effects.
	Preview(msg *ChatMessage) string
	Validate(msg *ChatMessage) ValidateResult
	Handle(ctx context.Context, msg *ChatMessage, robot RobotIdentity) HandleResult
}

// Handlers owns the per-kind handlers and their shared collaborators.
type Handlers struct {
	fetcher  Fetcher
	mediaDir string
}

// NewHandlers creates the handler set backed by the given media fetcher.
func NewHandlers(fetcher Fetcher, mediaDir string) *Handlers {
	return &Handlers{fetcher: fetcher, mediaDir: mediaDir}
}

// Classify selects the handler responsible for a message. Exactly one handler
// matches any message; unknown kinds get the unsupported handler.
func (h *Handlers) Classify(msg *ChatMessage) Handler {
	switch msg.Kind() {
	case KindText:
		return textHandler{}
	case KindPicture:
		return mediaHandler{h: h, kind: KindPicture, defaultExt: ".jpg"}
	case KindAudio:
		return mediaHandler{h: h, kind: KindAudio, defaultExt: ".amr"}
	case KindVideo:
		return mediaHandler{h: h, kind: KindVideo, defaultExt: ".mp4"}
	case KindFile:
		return mediaHandler{h: h, kind: KindFile}
	case KindRichText:
		return richTextHandler{h: h}
	default:
		return unsupportedHandler{}
	}
}

// ---------------------------------------------------------------------------
// text
// ---------------------------------------------------------------------------

type textHandler struct{}

func (textHandler) Kind() MessageKind { return KindText }

func (textHandler) Preview(msg *ChatMessage) string {
	return stringutils.Truncate(msg.TextBody(), 60)
}

func (textHandler) Validate(msg *ChatMessage) ValidateResult {
	if msg.TextBody() == "" {
		// Nothing to say; not an error worth telling the user about.
		return ValidateResult{Valid: false}
	}
	return ValidateResult{Valid: true}
}

func (textHandler) Handle(_ context.Context, msg *ChatMessage, _ RobotIdentity) HandleResult {
	return HandleResult{OK: true, NormalizedText: msg.TextBody()}
}

// ---------------------------------------------------------------------------
// picture / audio / video / file
// ---------------------------------------------------------------------------

type mediaHandler struct {
	h          *Handlers
	kind       MessageKind
	defaultExt string
}

func (m mediaHandler) Kind() MessageKind { return m.kind }

func (m mediaHandler) Preview(msg *ChatMessage) string {
	if msg.Content == nil {
		return fmt.Sprintf("[%s]", m.kind)
	}
	switch {
	case msg.Content.FileName != "":
		return fmt.Sprintf("[%s %s]", m.kind, msg.Content.FileName)
	case msg.Content.Duration > 0:
		return fmt.Sprintf("[%s %dms]", m.kind, msg.Content.Duration)
	default:
		return fmt.Sprintf("[%s]", m.kind)
	}
}

func (m mediaHandler) Validate(msg *ChatMessage) ValidateResult {
	if msg.Content == nil || msg.Content.DownloadCode == "" {
		return ValidateResult{ErrorMessage: fmt.Sprintf("%s message is missing its download code", m.kind)}
	}
	return ValidateResult{Valid: true}
}

func (m mediaHandler) Handle(ctx context.Context, msg *ChatMessage, robot RobotIdentity) HandleResult {
	data, err := m.h.fetcher.Fetch(ctx, robot, msg.Content.DownloadCode)
	if err != nil {
		return failure(m.kind, err)
	}
	item, err := saveMedia(m.h.mediaDir, m.kind, data, m.ext(msg), msg.Content.FileName, msg.Content.Duration)
	if err != nil {
		return failure(m.kind, err)
	}
	res := HandleResult{OK: true, Media: []MediaItem{item}}
	if m.kind == KindAudio {
		// Speech recognition text, when the platform supplies it.
		res.NormalizedText = strings.TrimSpace(msg.Content.Recognition)
	}
	return res
}

func (m mediaHandler) ext(msg *ChatMessage) string {
	if msg.Content.Extension != "" {
		return msg.Content.Extension
	}
	if msg.Content.FileName != "" {
		if e := filepath.Ext(msg.Content.FileName); e != "" {
			return e
		}
	}
	return m.defaultExt
}

// ---------------------------------------------------------------------------
// richText
// ---------------------------------------------------------------------------

type richTextHandler struct {
	h *Handlers
}

func (richTextHandler) Kind() MessageKind { return KindRichText }

func (richTextHandler) Preview(msg *ChatMessage) string {
	if msg.Content == nil {
		return "[richText]"
	}
	texts, images := parseRichTextContent(msg.Content.RichText)
	return fmt.Sprintf("[richText %d texts, %d images] %s",
		len(texts), len(images), stringutils.Truncate(strings.Join(texts, " "), 40))
}

func (richTextHandler) Validate(msg *ChatMessage) ValidateResult {
	if msg.Content == nil {
		return ValidateResult{}
	}
	texts, images := parseRichTextContent(msg.Content.RichText)
	if len(texts) == 0 && len(images) == 0 {
		// Empty rich text is silently ignored, same as empty plain text.
		return ValidateResult{}
	}
	return ValidateResult{Valid: true}
}

func (r richTextHandler) Handle(ctx context.Context, msg *ChatMessage, robot RobotIdentity) HandleResult {
	texts, images := parseRichTextContent(msg.Content.RichText)

	// Images download independently and in order. A failure mid-way discards
	// what was already fetched and reports one aggregate error; delivering
	// only some of the images is never attempted.
	var items []MediaItem
	for _, img := range images {
		data, err := r.h.fetcher.Fetch(ctx, robot, img.DownloadCode)
		if err != nil {
			discardMedia(items)
			return failure(KindRichText, err)
		}
		item, err := saveMedia(r.h.mediaDir, KindPicture, data, ".jpg", "", 0)
		if err != nil {
			discardMedia(items)
			return failure(KindRichText, err)
		}
		items = append(items, item)
	}

	return HandleResult{
		OK:             true,
		Media:          items,
		NormalizedText: strings.TrimSpace(strings.Join(texts, "\n")),
	}
}

// ---------------------------------------------------------------------------
// unsupported
// ---------------------------------------------------------------------------

const unsupportedReply = "Sorry, I can only handle text, picture, audio, video, file and rich-text messages."

type unsupportedHandler struct{}

func (unsupportedHandler) Kind() MessageKind { return KindUnknown }

func (unsupportedHandler) Preview(msg *ChatMessage) string {
	return fmt.Sprintf("[unsupported msgtype=%s]", msg.MsgType)
}

func (unsupportedHandler) Validate(_ *ChatMessage) ValidateResult {
	return ValidateResult{ErrorMessage: unsupportedReply}
}

func (unsupportedHandler) Handle(_ context.Context, _ *ChatMessage, _ RobotIdentity) HandleResult {
	return HandleResult{OK: true, SkipProcessing: true}
}

// ---------------------------------------------------------------------------

func failure(kind MessageKind, err error) HandleResult {
	return HandleResult{ErrorMessage: fmt.Sprintf("%s processing failed: %v", kind, err)}
}

func discardMedia(items []MediaItem) {
	for _, it := range items {
		_ = os.Remove(it.Path)
	}
}
