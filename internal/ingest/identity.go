package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

const suffixMatchDigits = 8

// providerSuffixes are identifier decorations that mean the same subscriber.
var providerSuffixes = []string{
	"@s.whatsapp.net", "@c.us", "@g.us", "@lid", "@broadcast",
}

// NormalizeIdentifier maps any provider-reported sender id variant to a
// canonical form. Phone-like ids keep digits only; everything else is
// lowercased with provider suffixes stripped. The function is idempotent.
func NormalizeIdentifier(raw string) string {
	id := strings.TrimSpace(strings.ToLower(raw))
	for _, suffix := range providerSuffixes {
		id = strings.TrimSuffix(id, suffix)
	}
	if isPhoneLike(id) {
		var b strings.Builder
		for _, r := range id {
			if unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return id
}

func isPhoneLike(id string) bool {
	digits := 0
	for _, r := range id {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return digits >= 7
}

// lastDigits returns the trailing n significant digits of a normalized
// phone-like identifier, or "" when there are not enough.
func lastDigits(normalized string, n int) string {
	if !isPhoneLike(normalized) || len(normalized) < n {
		return ""
	}
	return normalized[len(normalized)-n:]
}

// IdentityResolver maps event sender identifiers to one Contact, tolerant
// of the id variants providers report for a single subscriber.
type IdentityResolver struct {
	contacts repository.ContactRepository
}

func NewIdentityResolver(contacts repository.ContactRepository) *IdentityResolver {
	return &IdentityResolver{contacts: contacts}
}

// Resolve finds or creates the Contact for the event sender. Match order:
// exact normalized identifier, then trailing-digit suffix (absorbs
// country/area-code prefix drift), then the secondary identifier stored on
// the contact. Profile fields update only with non-empty, different values.
func (r *IdentityResolver) Resolve(ctx context.Context, tenantID string, ev *InboundEvent) (*model.Contact, error) {
	normalized := NormalizeIdentifier(ev.SenderID)
	if normalized == "" {
		return nil, fmt.Errorf("empty sender identifier after normalization")
	}

	contact, err := r.contacts.FindByPhoneNumber(ctx, tenantID, normalized)
	if err != nil {
		return nil, fmt.Errorf("find contact by identifier: %w", err)
	}

	if contact == nil {
		if suffix := lastDigits(normalized, suffixMatchDigits); suffix != "" {
			contact, err = r.contacts.FindByPhoneSuffix(ctx, tenantID, suffix)
			if err != nil {
				return nil, fmt.Errorf("find contact by suffix: %w", err)
			}
		}
	}

	if contact == nil {
		contact, err = r.contacts.FindByIdentifier(ctx, tenantID, normalized)
		if err != nil {
			return nil, fmt.Errorf("find contact by secondary identifier: %w", err)
		}
	}

	if contact == nil {
		contact, err = r.contacts.Create(ctx, model.CreateContactParams{
			TenantID:    tenantID,
			PhoneNumber: normalized,
			Name:        ev.SenderName,
			AvatarURL:   ev.SenderAvatar,
		})
		if err != nil {
			return nil, fmt.Errorf("create contact: %w", err)
		}
		log.Info().
			Str("tenantId", tenantID).
			Str("contactId", contact.ID).
			Msg("contact created")
		return contact, nil
	}

	r.refreshProfile(ctx, contact, ev, normalized)
	return contact, nil
}

func (r *IdentityResolver) refreshProfile(ctx context.Context, contact *model.Contact, ev *InboundEvent, normalized string) {
	var params model.UpdateContactProfileParams
	dirty := false

	if ev.SenderName != "" && ev.SenderName != contact.Name {
		params.Name = &ev.SenderName
		dirty = true
	}
	if ev.SenderAvatar != "" && ev.SenderAvatar != contact.AvatarURL {
		params.AvatarURL = &ev.SenderAvatar
		dirty = true
	}
	// A suffix or secondary match means this event used an id variant we
	// have not stored yet; remember it for the next exact lookup.
	if normalized != contact.PhoneNumber &&
		(contact.Identifier == nil || *contact.Identifier != normalized) {
		params.Identifier = &normalized
		dirty = true
	}

	if !dirty {
		return
	}
	if err := r.contacts.UpdateProfile(ctx, contact.ID, params); err != nil {
		log.Warn().Err(err).Str("contactId", contact.ID).Msg("failed to refresh contact profile")
	}
}
