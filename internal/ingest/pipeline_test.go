package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/omnidesk/ingest-server-go/internal/errors"
	"github.com/omnidesk/ingest-server-go/internal/model"
)

type pipelineFixture struct {
	contacts      *mockContactRepo
	messages      *mockMessageRepo
	conversations *mockConversationRepo
	csatRequests  *mockCSATRequestRepo
	feedbacks     *mockCSATFeedbackRepo
	sender        *mockSender
	publisher     *mockPublisher
	pipeline      *Pipeline
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		contacts:      newMockContactRepo(),
		messages:      newMockMessageRepo(),
		conversations: newMockConversationRepo(),
		csatRequests:  newMockCSATRequestRepo(),
		feedbacks:     &mockCSATFeedbackRepo{},
		sender:        &mockSender{},
		publisher:     &mockPublisher{},
	}
	flow := NewConversationFlow(nil, f.conversations, nil, f.csatRequests, 2*time.Minute)
	csat := NewCSATInterceptor(f.csatRequests, f.feedbacks, nil, f.sender)
	f.pipeline = NewPipeline(
		NewNormalizer(),
		NewIdentityResolver(f.contacts),
		NewDedupGuard(f.messages, 30*time.Second),
		NewReactionResolver(f.messages),
		flow,
		csat,
		f.messages,
		f.conversations,
		f.publisher,
	)
	return f
}

func testInbox() *model.Inbox {
	return &model.Inbox{
		ID:                  "inbox1",
		TenantID:            "tenant1",
		Channel:             model.ChannelWhatsApp,
		ConnectedIdentifier: "5500000000000",
	}
}

func TestPipelineFirstContact(t *testing.T) {
	f := newPipelineFixture()

	outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
		"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "ABC123"},
		"pushName": "Ana",
		"message": {"conversation": "oi, preciso de ajuda"},
		"messageTimestamp": 1700000000
	}`))

	require.NoError(t, err)
	assert.Equal(t, StatusOK, outcome.Status)

	// A brand-new sender produces a contact and a snoozed conversation.
	require.Len(t, f.contacts.created, 1)
	assert.Equal(t, "Ana", f.contacts.created[0].Name)
	require.Len(t, f.conversations.created, 1)
	assert.Equal(t, model.ConversationSnoozed, f.conversations.created[0].Status)

	require.Len(t, f.messages.created, 1)
	created := f.messages.created[0]
	assert.Equal(t, model.DirectionCustomer, created.Direction)
	assert.Equal(t, "oi, preciso de ajuda", created.Content)
	require.NotNil(t, created.ExternalID)
	assert.Equal(t, "ABC123", *created.ExternalID)

	require.Len(t, outcome.Events, 2)
	assert.Equal(t, model.EventConversationCreated, outcome.Events[0].Type)
	assert.Equal(t, model.EventMessageCreated, outcome.Events[1].Type)

	require.Len(t, f.publisher.jobs, 1)
	assert.Equal(t, outcome.Message.ID, f.publisher.jobs[0].MessageID)
}

func TestPipelineIgnoresNonEvents(t *testing.T) {
	t.Run("self-sent echo", func(t *testing.T) {
		f := newPipelineFixture()

		outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
			"key": {"remoteJid": "5511999887766@s.whatsapp.net", "fromMe": true, "id": "E1"},
			"message": {"conversation": "resposta do atendente"}
		}`))

		require.NoError(t, err)
		assert.Equal(t, StatusIgnored, outcome.Status)
		assert.Empty(t, f.messages.created)
	})

	t.Run("protocol noise", func(t *testing.T) {
		f := newPipelineFixture()

		outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
			"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "N1"},
			"message": {"senderKeyDistributionMessage": {"groupId": "g"}}
		}`))

		require.NoError(t, err)
		assert.Equal(t, StatusIgnored, outcome.Status)
		assert.Empty(t, f.contacts.created)
	})
}

func TestPipelineMalformedPayload(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
		"message": {"conversation": "sem remetente"}
	}`))

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeMalformedEvent, appErr.Code)
}

func TestPipelineDuplicateSuppression(t *testing.T) {
	t.Run("provider id redelivery", func(t *testing.T) {
		f := newPipelineFixture()
		existing := &model.Message{ID: "m1", Content: "oi"}
		f.messages.byExternalID["ABC123"] = existing

		outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
			"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "ABC123"},
			"message": {"conversation": "oi"}
		}`))

		require.NoError(t, err)
		assert.Equal(t, StatusIgnoredDuplicate, outcome.Status)
		assert.Same(t, existing, outcome.Message)
		assert.Empty(t, f.messages.created)
		assert.Empty(t, f.publisher.jobs)
	})

	t.Run("same content inside window", func(t *testing.T) {
		f := newPipelineFixture()
		f.conversations.latest = &model.Conversation{ID: "conv1", Status: model.ConversationOpen}
		f.conversations.byID["conv1"] = f.conversations.latest
		f.messages.duplicate = true

		outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
			"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "DUP2"},
			"message": {"conversation": "oi"}
		}`))

		require.NoError(t, err)
		assert.Equal(t, StatusIgnoredDuplicate, outcome.Status)
		// Duplicates must not mutate conversation state.
		assert.Equal(t, model.ConversationOpen, f.conversations.byID["conv1"].Status)
		assert.Empty(t, f.conversations.created)
		assert.Empty(t, f.messages.created)
	})
}

func TestPipelineReactions(t *testing.T) {
	t.Run("reaction without conversation is dropped", func(t *testing.T) {
		f := newPipelineFixture()

		outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
			"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "R1"},
			"message": {"reactionMessage": {"key": {"id": "TARGET9"}, "text": "👍"}}
		}`))

		require.NoError(t, err)
		assert.Equal(t, StatusIgnored, outcome.Status)
	})

	t.Run("reaction lands on resolved target", func(t *testing.T) {
		f := newPipelineFixture()
		f.conversations.latest = &model.Conversation{ID: "conv1", Status: model.ConversationOpen}
		ext := "TARGET9"
		target := &model.Message{ID: "m1", ConversationID: "conv1", ExternalID: &ext}
		f.messages.byID["m1"] = target
		f.messages.byExternalID["TARGET9"] = target

		outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
			"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "R2"},
			"message": {"reactionMessage": {"key": {"id": "TARGET9"}, "text": "👍"}}
		}`))

		require.NoError(t, err)
		assert.Equal(t, StatusReactionProcessed, outcome.Status)
		require.Len(t, outcome.Events, 1)
		assert.Equal(t, model.EventMessageUpdated, outcome.Events[0].Type)
		require.Len(t, f.messages.extUpdates["m1"].Reactions, 1)
		assert.Equal(t, "👍", f.messages.extUpdates["m1"].Reactions[0].Emoji)
	})
}

func TestPipelineEdit(t *testing.T) {
	t.Run("rewrites known target", func(t *testing.T) {
		f := newPipelineFixture()
		ext := "ED1"
		target := &model.Message{ID: "m1", Content: "old", ExternalID: &ext}
		f.messages.byID["m1"] = target
		f.messages.byExternalID["ED1"] = target

		outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
			"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "ED1"},
			"message": {"editedMessage": {"message": {"conversation": "texto corrigido"}}}
		}`))

		require.NoError(t, err)
		assert.Equal(t, StatusOK, outcome.Status)
		assert.Equal(t, "texto corrigido", f.messages.byID["m1"].Content)
		require.Len(t, outcome.Events, 1)
		assert.Equal(t, model.EventMessageUpdated, outcome.Events[0].Type)
	})

	t.Run("unknown target is dropped", func(t *testing.T) {
		f := newPipelineFixture()

		outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
			"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "NOPE"},
			"message": {"editedMessage": {"message": {"conversation": "tarde demais"}}}
		}`))

		require.NoError(t, err)
		assert.Equal(t, StatusIgnored, outcome.Status)
	})
}

func TestPipelineCSATShortCircuit(t *testing.T) {
	f := newPipelineFixture()
	f.csatRequests.awaiting = &model.CSATRequest{
		ID:             "req1",
		TenantID:       "tenant1",
		ConversationID: "conv1",
		Status:         model.CSATRequestSent,
	}

	outcome, err := f.pipeline.Process(context.Background(), testInbox(), json.RawMessage(`{
		"key": {"remoteJid": "5511999887766@s.whatsapp.net", "id": "S1"},
		"message": {"conversation": "🤩"}
	}`))

	require.NoError(t, err)
	assert.Equal(t, StatusCSATProcessed, outcome.Status)

	// Survey replies still persist as messages but never reach enrichment.
	require.Len(t, f.messages.created, 1)
	assert.Empty(t, f.publisher.jobs)

	require.Len(t, f.feedbacks.created, 1)
	assert.Equal(t, 5, f.feedbacks.created[0].Rating)
	require.Len(t, f.sender.texts, 1)
	assert.Equal(t, thankYouText, f.sender.texts[0])
}
