package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

type MessageRepository interface {
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByExternalID(ctx context.Context, inboxID, externalID string) (*model.Message, error)
	FindRecentByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	// ExistsDuplicateSince is the dedup guard's sliding window: has the same
	// (conversation, content, direction) tuple already been persisted since
	// the given instant.
	ExistsDuplicateSince(ctx context.Context, conversationID, content string, direction model.MessageDirection, since time.Time) (bool, error)
	// ExistsReplyToSource guards the arbiter against producing two replies
	// for one inbound message across retries.
	ExistsReplyToSource(ctx context.Context, sourceMessageID string) (bool, error)
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	CreateReply(ctx context.Context, params model.CreateMessageParams, sourceMessageID string) (*model.Message, error)
	UpdateExtensions(ctx context.Context, id string, ext model.Extensions) error
	UpdateContent(ctx context.Context, id string, content string, ext model.Extensions) error
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		SELECT id, tenant_id, conversation_id, inbox_id, direction,
		       content_type, content, external_id, extensions, created_at
		FROM messages WHERE id = $1
	`, id)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) FindByExternalID(ctx context.Context, inboxID, externalID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		SELECT id, tenant_id, conversation_id, inbox_id, direction,
		       content_type, content, external_id, extensions, created_at
		FROM messages
		WHERE inbox_id = $1 AND external_id = $2
	`, inboxID, externalID)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) FindRecentByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT id, tenant_id, conversation_id, inbox_id, direction,
		       content_type, content, external_id, extensions, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit)
	return msgs, err
}

func (r *messageRepo) ExistsDuplicateSince(ctx context.Context, conversationID, content string, direction model.MessageDirection, since time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE conversation_id = $1
			AND content = $2
			AND direction = $3
			AND created_at >= $4
		)
	`, conversationID, content, direction, since)
	return exists, err
}

func (r *messageRepo) ExistsReplyToSource(ctx context.Context, sourceMessageID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM messages WHERE source_message_id = $1
		)
	`, sourceMessageID)
	return exists, err
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	return r.insert(ctx, params, nil)
}

func (r *messageRepo) CreateReply(ctx context.Context, params model.CreateMessageParams, sourceMessageID string) (*model.Message, error) {
	return r.insert(ctx, params, &sourceMessageID)
}

func (r *messageRepo) insert(ctx context.Context, params model.CreateMessageParams, sourceMessageID *string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(id, tenant_id, conversation_id, inbox_id, direction,
			 content_type, content, external_id, extensions, source_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, tenant_id, conversation_id, inbox_id, direction,
		          content_type, content, external_id, extensions, created_at
	`, uuid.NewString(), params.TenantID, params.ConversationID, params.InboxID,
		params.Direction, params.ContentType, params.Content, params.ExternalID,
		params.Extensions, sourceMessageID)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) UpdateExtensions(ctx context.Context, id string, ext model.Extensions) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET extensions = $2 WHERE id = $1
	`, id, ext)
	return err
}

// UpdateContent replaces content together with the extension bag; used by
// the enrichment pipeline (transcription, document summaries). Message rows
// are otherwise immutable.
func (r *messageRepo) UpdateContent(ctx context.Context, id string, content string, ext model.Extensions) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = $2, extensions = $3 WHERE id = $1
	`, id, content, ext)
	return err
}
