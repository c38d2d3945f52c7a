package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

type InboxRepository interface {
	FindByID(ctx context.Context, id string) (*model.Inbox, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Inbox, error)
	FindByTenantID(ctx context.Context, tenantID string) ([]model.Inbox, error)
}

type inboxRepo struct {
	db *sqlx.DB
}

func NewInboxRepository(db *sqlx.DB) InboxRepository {
	return &inboxRepo{db: db}
}

func (r *inboxRepo) FindByID(ctx context.Context, id string) (*model.Inbox, error) {
	var inbox model.Inbox
	err := r.db.GetContext(ctx, &inbox, `SELECT * FROM inboxes WHERE id = $1`, id)
	return HandleNotFound(&inbox, err)
}

func (r *inboxRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Inbox, error) {
	var inbox model.Inbox
	err := r.db.GetContext(ctx, &inbox, `
		SELECT * FROM inboxes WHERE api_token_hash = $1
	`, tokenHash)
	return HandleNotFound(&inbox, err)
}

func (r *inboxRepo) FindByTenantID(ctx context.Context, tenantID string) ([]model.Inbox, error) {
	var inboxes []model.Inbox
	err := r.db.SelectContext(ctx, &inboxes, `
		SELECT * FROM inboxes
		WHERE tenant_id = $1
		ORDER BY created_at ASC
	`, tenantID)
	return inboxes, err
}
