package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Message struct {
	ID             string           `db:"id" json:"id"`
	TenantID       string           `db:"tenant_id" json:"tenantId"`
	ConversationID string           `db:"conversation_id" json:"conversationId"`
	InboxID        string           `db:"inbox_id" json:"inboxId"`
	Direction      MessageDirection `db:"direction" json:"direction"`
	ContentType    ContentType      `db:"content_type" json:"contentType"`
	Content        string           `db:"content" json:"content"`
	ExternalID     *string          `db:"external_id" json:"externalId,omitempty"`
	Extensions     Extensions       `db:"extensions" json:"extensions"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
}

type CreateMessageParams struct {
	TenantID       string
	ConversationID string
	InboxID        string
	Direction      MessageDirection
	ContentType    ContentType
	Content        string
	ExternalID     *string
	Extensions     Extensions
}

// Extensions is the per-message bag of optional, kind-tagged enrichment
// data. Known kinds are typed fields; Extra keeps genuinely
// provider-specific pass-through values.
type Extensions struct {
	Reply         *ReplyRef       `json:"reply,omitempty"`
	Reactions     []Reaction      `json:"reactions,omitempty"`
	Transcription *Transcription  `json:"transcription,omitempty"`
	Deletion      *DeletionMarker `json:"deletion,omitempty"`
	PdfSummary    *PdfSummary     `json:"pdfSummary,omitempty"`
	SendFailure   *SendFailure    `json:"sendFailure,omitempty"`
	Extra         map[string]any  `json:"extra,omitempty"`
}

type ReplyRef struct {
	MessageID string `json:"messageId"`
	Snippet   string `json:"snippet,omitempty"`
}

type Reaction struct {
	SenderID  string    `json:"senderId"`
	Emoji     string    `json:"emoji"`
	ReactedAt time.Time `json:"reactedAt"`
}

type Transcription struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Passes   int    `json:"passes"`
}

type DeletionMarker struct {
	DeletedAt time.Time `json:"deletedAt"`
}

type PdfSummary struct {
	Text string `json:"text"`
}

type SendFailure struct {
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

// UpsertReaction keeps at most one reaction per sender.
func (e *Extensions) UpsertReaction(senderID, emoji string, at time.Time) {
	for i := range e.Reactions {
		if e.Reactions[i].SenderID == senderID {
			e.Reactions[i].Emoji = emoji
			e.Reactions[i].ReactedAt = at
			return
		}
	}
	e.Reactions = append(e.Reactions, Reaction{SenderID: senderID, Emoji: emoji, ReactedAt: at})
}

// RemoveReaction drops the sender's reaction if present. Returns true when
// something was removed.
func (e *Extensions) RemoveReaction(senderID string) bool {
	for i := range e.Reactions {
		if e.Reactions[i].SenderID == senderID {
			e.Reactions = append(e.Reactions[:i], e.Reactions[i+1:]...)
			return true
		}
	}
	return false
}

// Value implements driver.Valuer so Extensions persists as JSONB.
func (e Extensions) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner.
func (e *Extensions) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*e = Extensions{}
		return nil
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("unsupported extensions type %T", src)
	}
}
