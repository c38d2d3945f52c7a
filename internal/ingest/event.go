package ingest

import (
	"time"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

// EventKind classifies what an inbound webhook delivery represents.
type EventKind string

const (
	KindMessage  EventKind = "message"
	KindReaction EventKind = "reaction"
	KindDelete   EventKind = "delete"
	KindEdit     EventKind = "edit"
	KindOther    EventKind = "other"
)

// InboundEvent is the channel-agnostic form of a provider webhook payload.
type InboundEvent struct {
	Channel      model.Channel
	Kind         EventKind
	SenderID     string
	SenderName   string
	SenderAvatar string

	Content     string
	ContentType model.ContentType

	// ProviderMessageID is the provider's own id for this message, used for
	// reply/reaction/delete correlation and idempotent re-processing.
	ProviderMessageID string
	// QuotedRef is the provider id of the message this one replies to.
	QuotedRef string
	// ReactionTarget / ReactionEmoji are set for Kind == KindReaction. An
	// empty emoji means the sender removed their reaction.
	ReactionTarget string
	ReactionEmoji  string
	// MediaRef points at downloadable media attached to the message.
	MediaRef string

	Timestamp time.Time
	Raw       map[string]any
}

func (e *InboundEvent) HasMedia() bool {
	return e.MediaRef != ""
}

// Pipeline status tokens. The webhook endpoint always answers 200 with one
// of these for business outcomes.
const (
	StatusOK                = "ok"
	StatusIgnored           = "ignored"
	StatusIgnoredDuplicate  = "ignored_duplicate"
	StatusReactionProcessed = "reaction_processed"
	StatusMessageDeleted    = "message_deleted"
	StatusCSATProcessed     = "csat_processed"
	StatusError             = "error"
)

// Outcome is what one webhook delivery produced: a status token plus the
// domain events the caller forwards to the notification emitter.
type Outcome struct {
	Status  string
	Message *model.Message
	Events  []model.DomainEvent
}
