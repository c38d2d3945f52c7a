package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

type CSATRequestRepository interface {
	FindByID(ctx context.Context, id string) (*model.CSATRequest, error)
	// FindAwaitingByConversation returns the pending/sent request for the
	// conversation, if any. The partial unique index guarantees at most one.
	FindAwaitingByConversation(ctx context.Context, conversationID string) (*model.CSATRequest, error)
	Create(ctx context.Context, params model.CreateCSATRequestParams) (*model.CSATRequest, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]model.CSATRequest, error)
	UpdateStatus(ctx context.Context, id string, status model.CSATRequestStatus) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	CancelStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type csatRequestRepo struct {
	db *sqlx.DB
}

func NewCSATRequestRepository(db *sqlx.DB) CSATRequestRepository {
	return &csatRequestRepo{db: db}
}

func (r *csatRequestRepo) FindByID(ctx context.Context, id string) (*model.CSATRequest, error) {
	var req model.CSATRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM csat_requests WHERE id = $1`, id)
	return HandleNotFound(&req, err)
}

func (r *csatRequestRepo) FindAwaitingByConversation(ctx context.Context, conversationID string) (*model.CSATRequest, error) {
	var req model.CSATRequest
	err := r.db.GetContext(ctx, &req, `
		SELECT * FROM csat_requests
		WHERE conversation_id = $1 AND status IN ('pending', 'sent')
		LIMIT 1
	`, conversationID)
	return HandleNotFound(&req, err)
}

// Create relies on the partial unique index over non-cancelled requests:
// a second request for the same conversation is a no-op returning nil.
func (r *csatRequestRepo) Create(ctx context.Context, params model.CreateCSATRequestParams) (*model.CSATRequest, error) {
	var req model.CSATRequest
	err := r.db.GetContext(ctx, &req, `
		INSERT INTO csat_requests
			(id, tenant_id, conversation_id, channel, status, scheduled_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		ON CONFLICT DO NOTHING
		RETURNING *
	`, uuid.NewString(), params.TenantID, params.ConversationID, params.Channel, params.ScheduledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *csatRequestRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]model.CSATRequest, error) {
	var reqs []model.CSATRequest
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT * FROM csat_requests
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`, now, limit)
	return reqs, err
}

// UpdateStatus only moves the enum forward; a completed or cancelled
// request never regresses.
func (r *csatRequestRepo) UpdateStatus(ctx context.Context, id string, status model.CSATRequestStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE csat_requests SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
	`, id, status)
	return err
}

func (r *csatRequestRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE csat_requests SET
			status = 'sent',
			sent_at = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, sentAt)
	return err
}

func (r *csatRequestRepo) CancelStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE csat_requests SET
			status = 'cancelled',
			updated_at = NOW()
		WHERE status IN ('pending', 'sent') AND scheduled_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type CSATFeedbackRepository interface {
	FindByRequestID(ctx context.Context, requestID string) (*model.CSATFeedback, error)
	// Create is first-write-wins on request_id; a second survey reply for
	// the same request returns (nil, nil).
	Create(ctx context.Context, params model.CreateCSATFeedbackParams) (*model.CSATFeedback, error)
}

type csatFeedbackRepo struct {
	db *sqlx.DB
}

func NewCSATFeedbackRepository(db *sqlx.DB) CSATFeedbackRepository {
	return &csatFeedbackRepo{db: db}
}

func (r *csatFeedbackRepo) FindByRequestID(ctx context.Context, requestID string) (*model.CSATFeedback, error) {
	var fb model.CSATFeedback
	err := r.db.GetContext(ctx, &fb, `
		SELECT * FROM csat_feedbacks WHERE request_id = $1
	`, requestID)
	return HandleNotFound(&fb, err)
}

func (r *csatFeedbackRepo) Create(ctx context.Context, params model.CreateCSATFeedbackParams) (*model.CSATFeedback, error) {
	var fb model.CSATFeedback
	err := r.db.GetContext(ctx, &fb, `
		INSERT INTO csat_feedbacks
			(id, tenant_id, request_id, conversation_id, rating, emoji,
			 source_text, response_latency_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING *
	`, uuid.NewString(), params.TenantID, params.RequestID, params.ConversationID,
		params.Rating, params.Emoji, params.SourceText, params.ResponseLatencySeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}
