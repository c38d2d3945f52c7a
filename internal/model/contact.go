package model

import (
	"encoding/json"
	"time"
)

type Contact struct {
	ID          string          `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"tenantId"`
	PhoneNumber string          `db:"phone_number" json:"phoneNumber"`
	Identifier  *string         `db:"identifier" json:"identifier,omitempty"`
	Name        string          `db:"name" json:"name"`
	AvatarURL   string          `db:"avatar_url" json:"avatarUrl"`
	Attributes  json.RawMessage `db:"attributes" json:"attributes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

type CreateContactParams struct {
	TenantID    string
	PhoneNumber string
	Identifier  *string
	Name        string
	AvatarURL   string
	Attributes  json.RawMessage
}

type UpdateContactProfileParams struct {
	Name       *string
	AvatarURL  *string
	Identifier *string
}

type Inbox struct {
	ID                  string          `db:"id" json:"id"`
	TenantID            string          `db:"tenant_id" json:"tenantId"`
	Channel             Channel         `db:"channel" json:"channel"`
	Name                string          `db:"name" json:"name"`
	ConnectedIdentifier string          `db:"connected_identifier" json:"connectedIdentifier"`
	Settings            json.RawMessage `db:"settings" json:"settings,omitempty"`
	APITokenHash        *string         `db:"api_token_hash" json:"-"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updatedAt"`
}

// InboxSettings is the parsed form of Inbox.Settings. Zero values fall back
// to the service-wide defaults from config.
type InboxSettings struct {
	TranscriptionLanguage string `json:"transcriptionLanguage,omitempty"`
	TranscriptionQuality  string `json:"transcriptionQuality,omitempty"`
	TranscriptionDelayMs  int    `json:"transcriptionDelayMs,omitempty"`
	AgentEnabled          *bool  `json:"agentEnabled,omitempty"`
}

func (i *Inbox) ParseSettings() InboxSettings {
	var s InboxSettings
	if len(i.Settings) > 0 {
		_ = json.Unmarshal(i.Settings, &s)
	}
	return s
}
