package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

func TestEligible(t *testing.T) {
	tests := []struct {
		name     string
		conv     *model.Conversation
		content  string
		expected bool
	}{
		{"snoozed unassigned with content", &model.Conversation{Status: model.ConversationSnoozed}, "oi", true},
		{"open unassigned with content", &model.Conversation{Status: model.ConversationOpen}, "oi", true},
		{"assigned conversation", &model.Conversation{Status: model.ConversationOpen, AssigneeID: strPtr("agent-1")}, "oi", false},
		{"pending conversation", &model.Conversation{Status: model.ConversationPending}, "oi", false},
		{"closed conversation", &model.Conversation{Status: model.ConversationClosed}, "oi", false},
		{"blank content", &model.Conversation{Status: model.ConversationSnoozed}, "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Eligible(tt.conv, tt.content))
		})
	}
}

func TestArbiterRespond(t *testing.T) {
	ctx := context.Background()
	conv := &model.Conversation{ID: "conv1", TenantID: "t1", Status: model.ConversationSnoozed}
	contact := &model.Contact{ID: "c1", PhoneNumber: "5511999887766"}
	inbox := &model.Inbox{ID: "i1", TenantID: "t1"}
	source := &model.Message{ID: "m1", TenantID: "t1", ConversationID: "conv1"}

	t.Run("generates persists and sends one reply", func(t *testing.T) {
		messages := newMockMessageRepo()
		generator := &mockGenerator{reply: "Posso ajudar com isso!"}
		sender := &mockSender{}

		a := NewArbiter(generator, sender, messages)
		reply, events, err := a.Respond(ctx, conv, contact, inbox, source, "preciso de ajuda", "")

		assert.NoError(t, err)
		assert.NotNil(t, reply)
		assert.Equal(t, "Posso ajudar com isso!", reply.Content)
		assert.Equal(t, model.DirectionAgent, reply.Direction)
		assert.Equal(t, []string{"m1"}, messages.replySrcs)
		assert.Contains(t, sender.texts, "Posso ajudar com isso!")
		assert.Len(t, events, 1)
		assert.Equal(t, model.EventMessageCreated, events[0].Type)
	})

	t.Run("ineligible conversation produces nothing", func(t *testing.T) {
		messages := newMockMessageRepo()
		generator := &mockGenerator{reply: "nunca enviado"}

		assigned := &model.Conversation{ID: "conv1", Status: model.ConversationOpen, AssigneeID: strPtr("agent-1")}
		a := NewArbiter(generator, &mockSender{}, messages)
		reply, events, err := a.Respond(ctx, assigned, contact, inbox, source, "oi", "")

		assert.NoError(t, err)
		assert.Nil(t, reply)
		assert.Empty(t, events)
		assert.Zero(t, generator.calls)
	})

	t.Run("existing reply blocks a second one", func(t *testing.T) {
		messages := newMockMessageRepo()
		messages.replyExists = true
		generator := &mockGenerator{reply: "duplicada"}

		a := NewArbiter(generator, &mockSender{}, messages)
		reply, _, err := a.Respond(ctx, conv, contact, inbox, source, "oi", "")

		assert.NoError(t, err)
		assert.Nil(t, reply)
		assert.Zero(t, generator.calls)
		assert.Empty(t, messages.replies)
	})

	t.Run("generation failure persists nothing", func(t *testing.T) {
		messages := newMockMessageRepo()

		a := NewArbiter(&mockGenerator{fail: true}, &mockSender{}, messages)
		reply, events, err := a.Respond(ctx, conv, contact, inbox, source, "oi", "")

		assert.NoError(t, err)
		assert.Nil(t, reply)
		assert.Empty(t, events)
		assert.Empty(t, messages.replies)
	})

	t.Run("precomposed reply skips generation", func(t *testing.T) {
		messages := newMockMessageRepo()
		generator := &mockGenerator{reply: "nunca usado"}

		a := NewArbiter(generator, &mockSender{}, messages)
		reply, _, err := a.Respond(ctx, conv, contact, inbox, source, "fatura.pdf", "Resumo do documento: fatura de R$ 120,00")

		assert.NoError(t, err)
		assert.NotNil(t, reply)
		assert.Equal(t, "Resumo do documento: fatura de R$ 120,00", reply.Content)
		assert.Zero(t, generator.calls)
	})

	t.Run("send failure keeps reply with marker", func(t *testing.T) {
		messages := newMockMessageRepo()

		a := NewArbiter(&mockGenerator{reply: "resposta"}, &mockSender{fail: true}, messages)
		reply, events, err := a.Respond(ctx, conv, contact, inbox, source, "oi", "")

		assert.NoError(t, err)
		assert.NotNil(t, reply)
		assert.NotNil(t, reply.Extensions.SendFailure)
		assert.Len(t, events, 2)
		assert.Equal(t, model.EventMessageUpdated, events[1].Type)
	})
}
