package model

import "encoding/json"

// DomainEventType identifies an outcome of a state-mutating operation.
// Every mutation returns its events explicitly; the caller forwards them to
// the notification emitter. There are no hidden persistence hooks.
type DomainEventType string

const (
	EventMessageCreated      DomainEventType = "message.created"
	EventMessageUpdated      DomainEventType = "message.updated"
	EventMessageDeleted      DomainEventType = "message.deleted"
	EventConversationCreated DomainEventType = "conversation.created"
	EventConversationUpdated DomainEventType = "conversation.updated"
	EventCSATCompleted       DomainEventType = "csat.completed"
)

type DomainEvent struct {
	Type           DomainEventType `json:"type"`
	TenantID       string          `json:"tenantId"`
	ConversationID string          `json:"conversationId"`
	Payload        json.RawMessage `json:"payload"`
}

func NewMessageEvent(t DomainEventType, msg *Message) DomainEvent {
	data, _ := json.Marshal(msg)
	return DomainEvent{
		Type:           t,
		TenantID:       msg.TenantID,
		ConversationID: msg.ConversationID,
		Payload:        data,
	}
}

func NewConversationEvent(t DomainEventType, conv *Conversation) DomainEvent {
	data, _ := json.Marshal(conv)
	return DomainEvent{
		Type:           t,
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Payload:        data,
	}
}
