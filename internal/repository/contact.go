package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

type ContactRepository interface {
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByPhoneNumber(ctx context.Context, tenantID, phoneNumber string) (*model.Contact, error)
	FindByPhoneSuffix(ctx context.Context, tenantID, suffix string) (*model.Contact, error)
	FindByIdentifier(ctx context.Context, tenantID, identifier string) (*model.Contact, error)
	Create(ctx context.Context, params model.CreateContactParams) (*model.Contact, error)
	UpdateProfile(ctx context.Context, id string, params model.UpdateContactProfileParams) error
}

type contactRepo struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepo{db: db}
}

func (r *contactRepo) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `SELECT * FROM contacts WHERE id = $1`, id)
	return HandleNotFound(&contact, err)
}

func (r *contactRepo) FindByPhoneNumber(ctx context.Context, tenantID, phoneNumber string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		SELECT * FROM contacts
		WHERE tenant_id = $1 AND phone_number = $2
	`, tenantID, phoneNumber)
	return HandleNotFound(&contact, err)
}

// FindByPhoneSuffix absorbs country/area-code prefix drift between the
// formats providers report for the same subscriber. The most recently seen
// match wins when more than one contact shares the suffix.
func (r *contactRepo) FindByPhoneSuffix(ctx context.Context, tenantID, suffix string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		SELECT * FROM contacts
		WHERE tenant_id = $1 AND phone_number LIKE '%' || $2
		ORDER BY updated_at DESC
		LIMIT 1
	`, tenantID, suffix)
	return HandleNotFound(&contact, err)
}

func (r *contactRepo) FindByIdentifier(ctx context.Context, tenantID, identifier string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		SELECT * FROM contacts
		WHERE tenant_id = $1 AND identifier = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`, tenantID, identifier)
	return HandleNotFound(&contact, err)
}

func (r *contactRepo) Create(ctx context.Context, params model.CreateContactParams) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		INSERT INTO contacts
			(id, tenant_id, phone_number, identifier, name, avatar_url, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'::jsonb))
		ON CONFLICT (tenant_id, phone_number) DO UPDATE SET
			updated_at = NOW()
		RETURNING *
	`, uuid.NewString(), params.TenantID, params.PhoneNumber, params.Identifier,
		params.Name, params.AvatarURL, params.Attributes)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// UpdateProfile only touches fields with non-nil params; a present value is
// never overwritten with empty data.
func (r *contactRepo) UpdateProfile(ctx context.Context, id string, params model.UpdateContactProfileParams) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET
			name = COALESCE(NULLIF($2, ''), name),
			avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
			identifier = COALESCE(NULLIF($4, ''), identifier),
			updated_at = NOW()
		WHERE id = $1
	`, id, deref(params.Name), deref(params.AvatarURL), deref(params.Identifier))
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
