package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	// FindLatestByContactAndInbox returns the newest conversation for the
	// (contact, inbox) pair regardless of status; the state machine decides
	// whether a closed one reopens.
	FindLatestByContactAndInbox(ctx context.Context, contactID, inboxID string) (*model.Conversation, error)
	Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error)

	// LockByID must run inside a transaction; it takes the row lock that
	// serializes concurrent status mutation for one conversation.
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Conversation, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status model.ConversationStatus, assigneeID *string) (*model.Conversation, error)

	UpdateAssignment(ctx context.Context, id string, assigneeID *string, status model.ConversationStatus) error
	Close(ctx context.Context, id string, closedAt time.Time) error
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT * FROM conversations WHERE id = $1`, id)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) FindLatestByContactAndInbox(ctx context.Context, contactID, inboxID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations
		WHERE contact_id = $1 AND inbox_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, contactID, inboxID)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations
			(id, tenant_id, contact_id, inbox_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, uuid.NewString(), params.TenantID, params.ContactID, params.InboxID, params.Status)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := tx.GetContext(ctx, &conv, `
		SELECT * FROM conversations WHERE id = $1 FOR UPDATE
	`, id)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status model.ConversationStatus, assigneeID *string) (*model.Conversation, error) {
	var conv model.Conversation
	err := tx.GetContext(ctx, &conv, `
		UPDATE conversations SET
			status = $2,
			assignee_id = $3,
			version = version + 1,
			closed_at = CASE WHEN $2 = 'closed' THEN NOW() ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, status, assigneeID)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) UpdateAssignment(ctx context.Context, id string, assigneeID *string, status model.ConversationStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			assignee_id = $2,
			status = $3,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1
	`, id, assigneeID, status)
	return err
}

func (r *conversationRepo) Close(ctx context.Context, id string, closedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			status = 'closed',
			version = version + 1,
			closed_at = $2,
			updated_at = NOW()
		WHERE id = $1
	`, id, closedAt)
	return err
}
