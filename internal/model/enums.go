package model

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
	ChannelWebChat  Channel = "webchat"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelTelegram, ChannelEmail, ChannelWebChat:
		return true
	}
	return false
}

type ConversationStatus string

const (
	// Snoozed conversations are unassigned and eligible for the AI agent.
	ConversationSnoozed ConversationStatus = "snoozed"
	ConversationOpen    ConversationStatus = "open"
	ConversationPending ConversationStatus = "pending"
	ConversationClosed  ConversationStatus = "closed"
)

type MessageDirection string

const (
	DirectionCustomer MessageDirection = "customer"
	DirectionAgent    MessageDirection = "agent"
	DirectionSystem   MessageDirection = "system"
)

type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentAudio    ContentType = "audio"
	ContentVideo    ContentType = "video"
	ContentDocument ContentType = "document"
	ContentSticker  ContentType = "sticker"
	ContentPTT      ContentType = "ptt"
)

type CSATRequestStatus string

const (
	CSATRequestPending   CSATRequestStatus = "pending"
	CSATRequestSent      CSATRequestStatus = "sent"
	CSATRequestCompleted CSATRequestStatus = "completed"
	CSATRequestCancelled CSATRequestStatus = "cancelled"
	CSATRequestFailed    CSATRequestStatus = "failed"
)

// Awaiting reports whether the request can still intercept an inbound reply.
func (s CSATRequestStatus) Awaiting() bool {
	return s == CSATRequestPending || s == CSATRequestSent
}
