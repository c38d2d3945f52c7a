package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

// placeholderContent is the best-effort content string emitted when a media
// message carries no caption or text.
var placeholderContent = map[model.ContentType]string{
	model.ContentImage:    "image",
	model.ContentAudio:    "voice message",
	model.ContentPTT:      "voice message",
	model.ContentVideo:    "video",
	model.ContentDocument: "document",
	model.ContentSticker:  "sticker",
}

// Normalizer turns a provider-specific payload into an InboundEvent. It is
// deliberately tolerant: missing fields degrade to placeholders, unknown
// event kinds classify as KindOther, and only an unparseable top-level
// document is an error.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize parses the raw payload for the given channel. inboxIdentifier
// is the inbox's own connected identifier; events whose sender equals it
// (a self-sent echo) return (nil, nil) and must be ignored upstream.
func (n *Normalizer) Normalize(channel model.Channel, inboxIdentifier string, payload json.RawMessage) (*InboundEvent, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}

	ev := &InboundEvent{
		Channel:     channel,
		Kind:        KindMessage,
		ContentType: model.ContentText,
		Timestamp:   time.Now(),
		Raw:         doc,
	}

	switch channel {
	case model.ChannelWhatsApp:
		n.normalizeWhatsApp(doc, ev)
	case model.ChannelTelegram:
		n.normalizeTelegram(doc, ev)
	case model.ChannelEmail:
		n.normalizeEmail(doc, ev)
	default:
		n.normalizeWebChat(doc, ev)
	}

	if ev.SenderID == "" {
		// No usable sender anywhere in the document.
		return nil, errNoSender
	}

	// Self-sent echo: the sender is the inbox's own connected identifier,
	// whichever provider field carried it.
	if boolAt(doc, "key.fromMe") || boolAt(doc, "fromMe") ||
		(inboxIdentifier != "" && NormalizeIdentifier(ev.SenderID) == NormalizeIdentifier(inboxIdentifier)) {
		return nil, nil
	}

	if ev.Kind == KindMessage && strings.TrimSpace(ev.Content) == "" {
		if ph, ok := placeholderContent[ev.ContentType]; ok {
			ev.Content = ph
		}
	}

	if ts := intAt(doc, "messageTimestamp"); ts > 0 {
		ev.Timestamp = time.Unix(ts, 0)
	} else if ts := intAt(doc, "message.date"); ts > 0 {
		ev.Timestamp = time.Unix(ts, 0)
	}

	return ev, nil
}

func (n *Normalizer) normalizeWhatsApp(doc map[string]any, ev *InboundEvent) {
	ev.SenderID = firstString(doc, "key.remoteJid", "key.participant", "sender", "from")
	ev.SenderName = firstString(doc, "pushName", "notifyName")
	ev.SenderAvatar = firstString(doc, "profilePicUrl")
	ev.ProviderMessageID = firstString(doc, "key.id", "id")
	ev.QuotedRef = firstString(doc,
		"message.extendedTextMessage.contextInfo.stanzaId",
		"contextInfo.stanzaId")

	switch {
	case has(doc, "message.reactionMessage"):
		ev.Kind = KindReaction
		ev.ReactionTarget = firstString(doc, "message.reactionMessage.key.id")
		ev.ReactionEmoji = firstString(doc, "message.reactionMessage.text")
	case firstString(doc, "message.protocolMessage.type") == "REVOKE":
		ev.Kind = KindDelete
		ev.ProviderMessageID = firstString(doc, "message.protocolMessage.key.id")
	case has(doc, "message.editedMessage"):
		ev.Kind = KindEdit
		ev.Content = firstString(doc, "message.editedMessage.message.conversation")
	case has(doc, "message.audioMessage"):
		ev.ContentType = model.ContentAudio
		if boolAt(doc, "message.audioMessage.ptt") {
			ev.ContentType = model.ContentPTT
		}
		ev.MediaRef = firstString(doc, "message.audioMessage.url", "key.id")
	case has(doc, "message.imageMessage"):
		ev.ContentType = model.ContentImage
		ev.Content = firstString(doc, "message.imageMessage.caption")
		ev.MediaRef = firstString(doc, "message.imageMessage.url", "key.id")
	case has(doc, "message.videoMessage"):
		ev.ContentType = model.ContentVideo
		ev.Content = firstString(doc, "message.videoMessage.caption")
		ev.MediaRef = firstString(doc, "message.videoMessage.url", "key.id")
	case has(doc, "message.documentMessage"):
		ev.ContentType = model.ContentDocument
		ev.Content = firstString(doc, "message.documentMessage.fileName")
		ev.MediaRef = firstString(doc, "message.documentMessage.url", "key.id")
	case has(doc, "message.stickerMessage"):
		ev.ContentType = model.ContentSticker
		ev.MediaRef = firstString(doc, "message.stickerMessage.url", "key.id")
	case has(doc, "message.protocolMessage") || has(doc, "message.senderKeyDistributionMessage"):
		ev.Kind = KindOther
	default:
		ev.Content = firstString(doc,
			"message.conversation",
			"message.extendedTextMessage.text",
			"text", "body")
	}
}

func (n *Normalizer) normalizeTelegram(doc map[string]any, ev *InboundEvent) {
	ev.SenderID = firstString(doc, "message.from.id", "callback_query.from.id", "from.id")
	ev.SenderName = strings.TrimSpace(firstString(doc, "message.from.first_name") + " " + firstString(doc, "message.from.last_name"))
	ev.ProviderMessageID = firstString(doc, "message.message_id", "message_id")
	ev.QuotedRef = firstString(doc, "message.reply_to_message.message_id")

	switch {
	case has(doc, "message.voice"):
		ev.ContentType = model.ContentPTT
		ev.MediaRef = firstString(doc, "message.voice.file_id")
	case has(doc, "message.audio"):
		ev.ContentType = model.ContentAudio
		ev.MediaRef = firstString(doc, "message.audio.file_id")
	case has(doc, "message.photo"):
		ev.ContentType = model.ContentImage
		ev.Content = firstString(doc, "message.caption")
		ev.MediaRef = firstString(doc, "message.photo.file_id")
	case has(doc, "message.video"):
		ev.ContentType = model.ContentVideo
		ev.Content = firstString(doc, "message.caption")
		ev.MediaRef = firstString(doc, "message.video.file_id")
	case has(doc, "message.document"):
		ev.ContentType = model.ContentDocument
		ev.Content = firstString(doc, "message.document.file_name")
		ev.MediaRef = firstString(doc, "message.document.file_id")
	case has(doc, "message.sticker"):
		ev.ContentType = model.ContentSticker
		ev.MediaRef = firstString(doc, "message.sticker.file_id")
	case has(doc, "edited_message"):
		ev.Kind = KindEdit
		ev.SenderID = firstString(doc, "edited_message.from.id")
		ev.ProviderMessageID = firstString(doc, "edited_message.message_id")
		ev.Content = firstString(doc, "edited_message.text")
	case has(doc, "message.text"):
		ev.Content = firstString(doc, "message.text")
	default:
		ev.Kind = KindOther
	}
}

func (n *Normalizer) normalizeEmail(doc map[string]any, ev *InboundEvent) {
	ev.SenderID = firstString(doc, "from.address", "from", "sender")
	ev.SenderName = firstString(doc, "from.name")
	ev.ProviderMessageID = firstString(doc, "messageId", "message_id")
	ev.QuotedRef = firstString(doc, "inReplyTo", "in_reply_to")
	ev.Content = firstString(doc, "text", "body")
	if ev.Content == "" {
		ev.Content = firstString(doc, "subject")
	}
	if att := firstString(doc, "attachments.url"); att != "" {
		ev.ContentType = model.ContentDocument
		ev.MediaRef = att
	}
}

func (n *Normalizer) normalizeWebChat(doc map[string]any, ev *InboundEvent) {
	ev.SenderID = firstString(doc, "sender.id", "senderId", "from")
	ev.SenderName = firstString(doc, "sender.name", "senderName")
	ev.SenderAvatar = firstString(doc, "sender.avatarUrl")
	ev.ProviderMessageID = firstString(doc, "messageId", "id")
	ev.QuotedRef = firstString(doc, "replyTo", "quotedMessageId")
	ev.Content = firstString(doc, "content", "text")

	switch firstString(doc, "type", "kind") {
	case "reaction":
		ev.Kind = KindReaction
		ev.ReactionTarget = firstString(doc, "targetId", "reactionTarget")
		ev.ReactionEmoji = firstString(doc, "emoji", "content")
	case "delete":
		ev.Kind = KindDelete
	case "audio":
		ev.ContentType = model.ContentAudio
		ev.MediaRef = firstString(doc, "mediaUrl", "fileUrl")
	case "image":
		ev.ContentType = model.ContentImage
		ev.MediaRef = firstString(doc, "mediaUrl", "fileUrl")
	case "file", "document":
		ev.ContentType = model.ContentDocument
		ev.MediaRef = firstString(doc, "mediaUrl", "fileUrl")
	case "", "text", "message":
		// plain message
	default:
		ev.Kind = KindOther
	}
}
