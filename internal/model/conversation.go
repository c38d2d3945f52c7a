package model

import (
	"time"
)

type Conversation struct {
	ID         string             `db:"id" json:"id"`
	TenantID   string             `db:"tenant_id" json:"tenantId"`
	ContactID  string             `db:"contact_id" json:"contactId"`
	InboxID    string             `db:"inbox_id" json:"inboxId"`
	Status     ConversationStatus `db:"status" json:"status"`
	AssigneeID *string            `db:"assignee_id" json:"assigneeId,omitempty"`
	TeamID     *string            `db:"team_id" json:"teamId,omitempty"`
	Version    int                `db:"version" json:"version"`
	CreatedAt  time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updatedAt"`
	ClosedAt   *time.Time         `db:"closed_at" json:"closedAt,omitempty"`
}

// Assigned reports whether a human currently owns the conversation.
func (c *Conversation) Assigned() bool {
	return c.AssigneeID != nil && *c.AssigneeID != ""
}

type CreateConversationParams struct {
	TenantID  string
	ContactID string
	InboxID   string
	Status    ConversationStatus
}

type CSATRequest struct {
	ID             string            `db:"id" json:"id"`
	TenantID       string            `db:"tenant_id" json:"tenantId"`
	ConversationID string            `db:"conversation_id" json:"conversationId"`
	Channel        Channel           `db:"channel" json:"channel"`
	Status         CSATRequestStatus `db:"status" json:"status"`
	ScheduledAt    time.Time         `db:"scheduled_at" json:"scheduledAt"`
	SentAt         *time.Time        `db:"sent_at" json:"sentAt,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
}

type CreateCSATRequestParams struct {
	TenantID       string
	ConversationID string
	Channel        Channel
	ScheduledAt    time.Time
}

type CSATFeedback struct {
	ID                     string    `db:"id" json:"id"`
	TenantID               string    `db:"tenant_id" json:"tenantId"`
	RequestID              string    `db:"request_id" json:"requestId"`
	ConversationID         string    `db:"conversation_id" json:"conversationId"`
	Rating                 int       `db:"rating" json:"rating"`
	Emoji                  string    `db:"emoji" json:"emoji"`
	SourceText             string    `db:"source_text" json:"sourceText"`
	ResponseLatencySeconds int64     `db:"response_latency_seconds" json:"responseLatencySeconds"`
	CreatedAt              time.Time `db:"created_at" json:"createdAt"`
}

type CreateCSATFeedbackParams struct {
	TenantID               string
	RequestID              string
	ConversationID         string
	Rating                 int
	Emoji                  string
	SourceText             string
	ResponseLatencySeconds int64
}
