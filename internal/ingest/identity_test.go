package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"plain phone", "5511999887766", "5511999887766"},
		{"whatsapp suffix", "5511999887766@s.whatsapp.net", "5511999887766"},
		{"c.us suffix", "5511999887766@c.us", "5511999887766"},
		{"lid suffix", "5511999887766@lid", "5511999887766"},
		{"plus and dashes", "+55 (11) 99988-7766", "5511999887766"},
		{"email stays lowercase", "Ana.Silva@Example.COM", "ana.silva@example.com"},
		{"short numeric id kept verbatim", "12345", "12345"},
		{"whitespace trimmed", "  5511999887766  ", "5511999887766"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeIdentifier(tt.raw))
		})
	}

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{
			"5511999887766@s.whatsapp.net",
			"+55 11 99988-7766",
			"ana.silva@example.com",
			"web-visitor-42",
		}
		for _, in := range inputs {
			once := NormalizeIdentifier(in)
			assert.Equal(t, once, NormalizeIdentifier(once), "input: %s", in)
		}
	})
}

func TestLastDigits(t *testing.T) {
	t.Run("returns trailing digits of a phone", func(t *testing.T) {
		assert.Equal(t, "99988776", lastDigits("551199988776", 8))
	})

	t.Run("too short returns empty", func(t *testing.T) {
		assert.Equal(t, "", lastDigits("12345", 8))
	})

	t.Run("non-phone returns empty", func(t *testing.T) {
		assert.Equal(t, "", lastDigits("ana@example.com", 8))
	})
}

func TestIdentityResolverResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("exact match wins", func(t *testing.T) {
		contacts := newMockContactRepo()
		existing := &model.Contact{ID: "c1", PhoneNumber: "5511999887766", Name: "Ana"}
		contacts.byPhone["5511999887766"] = existing

		resolver := NewIdentityResolver(contacts)
		contact, err := resolver.Resolve(ctx, "t1", &InboundEvent{
			SenderID:   "5511999887766@s.whatsapp.net",
			SenderName: "Ana",
		})

		assert.NoError(t, err)
		assert.Equal(t, "c1", contact.ID)
		assert.Empty(t, contacts.created)
	})

	t.Run("suffix match absorbs prefix drift", func(t *testing.T) {
		contacts := newMockContactRepo()
		existing := &model.Contact{ID: "c2", PhoneNumber: "11999887766"}
		contacts.bySuffix["99887766"] = existing

		resolver := NewIdentityResolver(contacts)
		contact, err := resolver.Resolve(ctx, "t1", &InboundEvent{
			SenderID: "5511999887766",
		})

		assert.NoError(t, err)
		assert.Equal(t, "c2", contact.ID)
		assert.Empty(t, contacts.created)
		// The unseen variant is stored as the secondary identifier.
		if assert.Len(t, contacts.updated, 1) {
			assert.Equal(t, "5511999887766", *contacts.updated[0].Identifier)
		}
	})

	t.Run("secondary identifier match", func(t *testing.T) {
		contacts := newMockContactRepo()
		existing := &model.Contact{ID: "c3", PhoneNumber: "webchat-visitor"}
		contacts.byIdentifier["ana@example.com"] = existing

		resolver := NewIdentityResolver(contacts)
		contact, err := resolver.Resolve(ctx, "t1", &InboundEvent{
			SenderID: "ana@example.com",
		})

		assert.NoError(t, err)
		assert.Equal(t, "c3", contact.ID)
	})

	t.Run("no match creates contact", func(t *testing.T) {
		contacts := newMockContactRepo()

		resolver := NewIdentityResolver(contacts)
		contact, err := resolver.Resolve(ctx, "t1", &InboundEvent{
			SenderID:   "5521988776655@s.whatsapp.net",
			SenderName: "Bruno",
		})

		assert.NoError(t, err)
		assert.NotNil(t, contact)
		if assert.Len(t, contacts.created, 1) {
			assert.Equal(t, "5521988776655", contacts.created[0].PhoneNumber)
			assert.Equal(t, "Bruno", contacts.created[0].Name)
		}
	})

	t.Run("empty profile fields never overwrite", func(t *testing.T) {
		contacts := newMockContactRepo()
		contacts.byPhone["5511999887766"] = &model.Contact{
			ID: "c1", PhoneNumber: "5511999887766", Name: "Ana", AvatarURL: "https://cdn/a.png",
		}

		resolver := NewIdentityResolver(contacts)
		_, err := resolver.Resolve(ctx, "t1", &InboundEvent{
			SenderID: "5511999887766",
		})

		assert.NoError(t, err)
		assert.Empty(t, contacts.updated)
	})
}
