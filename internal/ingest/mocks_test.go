package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omnidesk/ingest-server-go/internal/capability"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/queue"
)

type mockContactRepo struct {
	byPhone      map[string]*model.Contact
	bySuffix     map[string]*model.Contact
	byIdentifier map[string]*model.Contact
	created      []model.CreateContactParams
	updated      []model.UpdateContactProfileParams
}

func newMockContactRepo() *mockContactRepo {
	return &mockContactRepo{
		byPhone:      make(map[string]*model.Contact),
		bySuffix:     make(map[string]*model.Contact),
		byIdentifier: make(map[string]*model.Contact),
	}
}

func (m *mockContactRepo) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	for _, c := range m.byPhone {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockContactRepo) FindByPhoneNumber(ctx context.Context, tenantID, phoneNumber string) (*model.Contact, error) {
	return m.byPhone[phoneNumber], nil
}

func (m *mockContactRepo) FindByPhoneSuffix(ctx context.Context, tenantID, suffix string) (*model.Contact, error) {
	return m.bySuffix[suffix], nil
}

func (m *mockContactRepo) FindByIdentifier(ctx context.Context, tenantID, identifier string) (*model.Contact, error) {
	return m.byIdentifier[identifier], nil
}

func (m *mockContactRepo) Create(ctx context.Context, params model.CreateContactParams) (*model.Contact, error) {
	m.created = append(m.created, params)
	contact := &model.Contact{
		ID:          uuid.NewString(),
		TenantID:    params.TenantID,
		PhoneNumber: params.PhoneNumber,
		Name:        params.Name,
		AvatarURL:   params.AvatarURL,
	}
	m.byPhone[contact.PhoneNumber] = contact
	return contact, nil
}

func (m *mockContactRepo) UpdateProfile(ctx context.Context, id string, params model.UpdateContactProfileParams) error {
	m.updated = append(m.updated, params)
	return nil
}

type mockMessageRepo struct {
	byID         map[string]*model.Message
	byExternalID map[string]*model.Message
	recent       []model.Message
	duplicate    bool
	replyExists  bool

	created    []model.CreateMessageParams
	replies    []model.CreateMessageParams
	replySrcs  []string
	extUpdates map[string]model.Extensions
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{
		byID:         make(map[string]*model.Message),
		byExternalID: make(map[string]*model.Message),
		extUpdates:   make(map[string]model.Extensions),
	}
}

func (m *mockMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	return m.byID[id], nil
}

func (m *mockMessageRepo) FindByExternalID(ctx context.Context, inboxID, externalID string) (*model.Message, error) {
	return m.byExternalID[externalID], nil
}

func (m *mockMessageRepo) FindRecentByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit < len(m.recent) {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

func (m *mockMessageRepo) ExistsDuplicateSince(ctx context.Context, conversationID, content string, direction model.MessageDirection, since time.Time) (bool, error) {
	return m.duplicate, nil
}

func (m *mockMessageRepo) ExistsReplyToSource(ctx context.Context, sourceMessageID string) (bool, error) {
	return m.replyExists, nil
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	m.created = append(m.created, params)
	msg := &model.Message{
		ID:             uuid.NewString(),
		TenantID:       params.TenantID,
		ConversationID: params.ConversationID,
		InboxID:        params.InboxID,
		Direction:      params.Direction,
		ContentType:    params.ContentType,
		Content:        params.Content,
		ExternalID:     params.ExternalID,
		Extensions:     params.Extensions,
		CreatedAt:      time.Now(),
	}
	m.byID[msg.ID] = msg
	if params.ExternalID != nil {
		m.byExternalID[*params.ExternalID] = msg
	}
	return msg, nil
}

func (m *mockMessageRepo) CreateReply(ctx context.Context, params model.CreateMessageParams, sourceMessageID string) (*model.Message, error) {
	m.replies = append(m.replies, params)
	m.replySrcs = append(m.replySrcs, sourceMessageID)
	return m.Create(ctx, params)
}

func (m *mockMessageRepo) UpdateExtensions(ctx context.Context, id string, ext model.Extensions) error {
	m.extUpdates[id] = ext
	if msg, ok := m.byID[id]; ok {
		msg.Extensions = ext
	}
	return nil
}

func (m *mockMessageRepo) UpdateContent(ctx context.Context, id string, content string, ext model.Extensions) error {
	if msg, ok := m.byID[id]; ok {
		msg.Content = content
		msg.Extensions = ext
	}
	return nil
}

type mockConversationRepo struct {
	latest  *model.Conversation
	byID    map[string]*model.Conversation
	created []model.CreateConversationParams
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{byID: make(map[string]*model.Conversation)}
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	return m.byID[id], nil
}

func (m *mockConversationRepo) FindLatestByContactAndInbox(ctx context.Context, contactID, inboxID string) (*model.Conversation, error) {
	return m.latest, nil
}

func (m *mockConversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	m.created = append(m.created, params)
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		TenantID:  params.TenantID,
		ContactID: params.ContactID,
		InboxID:   params.InboxID,
		Status:    params.Status,
		Version:   1,
	}
	m.byID[conv.ID] = conv
	return conv, nil
}

func (m *mockConversationRepo) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Conversation, error) {
	return m.byID[id], nil
}

func (m *mockConversationRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status model.ConversationStatus, assigneeID *string) (*model.Conversation, error) {
	conv := m.byID[id]
	conv.Status = status
	conv.AssigneeID = assigneeID
	conv.Version++
	return conv, nil
}

func (m *mockConversationRepo) UpdateAssignment(ctx context.Context, id string, assigneeID *string, status model.ConversationStatus) error {
	if conv, ok := m.byID[id]; ok {
		conv.AssigneeID = assigneeID
		conv.Status = status
		conv.Version++
	}
	return nil
}

func (m *mockConversationRepo) Close(ctx context.Context, id string, closedAt time.Time) error {
	if conv, ok := m.byID[id]; ok {
		conv.Status = model.ConversationClosed
		conv.ClosedAt = &closedAt
		conv.Version++
	}
	return nil
}

type mockCSATRequestRepo struct {
	awaiting *model.CSATRequest
	created  []model.CreateCSATRequestParams
	statuses map[string]model.CSATRequestStatus
}

func newMockCSATRequestRepo() *mockCSATRequestRepo {
	return &mockCSATRequestRepo{statuses: make(map[string]model.CSATRequestStatus)}
}

func (m *mockCSATRequestRepo) FindByID(ctx context.Context, id string) (*model.CSATRequest, error) {
	return nil, nil
}

func (m *mockCSATRequestRepo) FindAwaitingByConversation(ctx context.Context, conversationID string) (*model.CSATRequest, error) {
	return m.awaiting, nil
}

func (m *mockCSATRequestRepo) Create(ctx context.Context, params model.CreateCSATRequestParams) (*model.CSATRequest, error) {
	m.created = append(m.created, params)
	return &model.CSATRequest{
		ID:             uuid.NewString(),
		TenantID:       params.TenantID,
		ConversationID: params.ConversationID,
		Channel:        params.Channel,
		Status:         model.CSATRequestPending,
		ScheduledAt:    params.ScheduledAt,
	}, nil
}

func (m *mockCSATRequestRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]model.CSATRequest, error) {
	return nil, nil
}

func (m *mockCSATRequestRepo) UpdateStatus(ctx context.Context, id string, status model.CSATRequestStatus) error {
	m.statuses[id] = status
	return nil
}

func (m *mockCSATRequestRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	m.statuses[id] = model.CSATRequestSent
	return nil
}

func (m *mockCSATRequestRepo) CancelStale(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

type mockCSATFeedbackRepo struct {
	existing bool
	created  []model.CreateCSATFeedbackParams
}

func (m *mockCSATFeedbackRepo) FindByRequestID(ctx context.Context, requestID string) (*model.CSATFeedback, error) {
	return nil, nil
}

func (m *mockCSATFeedbackRepo) Create(ctx context.Context, params model.CreateCSATFeedbackParams) (*model.CSATFeedback, error) {
	if m.existing {
		return nil, nil
	}
	m.created = append(m.created, params)
	return &model.CSATFeedback{
		ID:        uuid.NewString(),
		RequestID: params.RequestID,
		Rating:    params.Rating,
		Emoji:     params.Emoji,
	}, nil
}

type mockSender struct {
	fail  bool
	texts []string
}

func (m *mockSender) SendText(ctx context.Context, tenantID, inboxID, recipient, text string) bool {
	if m.fail {
		return false
	}
	m.texts = append(m.texts, text)
	return true
}

func (m *mockSender) SendMedia(ctx context.Context, tenantID, inboxID, recipient, fileURL, caption string) bool {
	return !m.fail
}

type mockGenerator struct {
	reply string
	fail  bool
	calls int
}

func (m *mockGenerator) Generate(ctx context.Context, req capability.GenerateRequest) (*capability.GenerateResult, error) {
	m.calls++
	if m.fail {
		return &capability.GenerateResult{Success: false}, nil
	}
	return &capability.GenerateResult{Success: true, ReplyText: m.reply}, nil
}

type mockClassifier struct {
	rating int
	fail   bool
	calls  int
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (int, error) {
	m.calls++
	if m.fail {
		return 0, context.DeadlineExceeded
	}
	return m.rating, nil
}

type mockTranscriber struct {
	text  string
	fail  bool
	calls int
}

func (m *mockTranscriber) Transcribe(ctx context.Context, filePath, language, quality string) (string, error) {
	m.calls++
	if m.fail {
		return "", context.DeadlineExceeded
	}
	return m.text, nil
}

type mockAnalyzer struct {
	summary      string
	actionSignal bool
	fail         bool
	calls        int
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req capability.AnalyzeRequest) (*capability.AnalyzeResult, error) {
	m.calls++
	if m.fail {
		return nil, context.DeadlineExceeded
	}
	return &capability.AnalyzeResult{
		Success:      true,
		SummaryText:  m.summary,
		ActionSignal: m.actionSignal,
	}, nil
}

type mockPublisher struct {
	jobs []queue.EnrichJob
}

func (m *mockPublisher) EnqueueEnrich(ctx context.Context, job queue.EnrichJob) error {
	m.jobs = append(m.jobs, job)
	return nil
}
