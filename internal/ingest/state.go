package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/database"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// Transition is the outcome of applying an inbound customer message to a
// conversation's lifecycle state.
type Transition struct {
	Status        model.ConversationStatus
	ClearAssignee bool
	Changed       bool
}

// TransitionOnInbound is the pure state machine for inbound customer
// messages:
//
//   - unassigned            -> snoozed (re-arms AI eligibility)
//   - assigned, closed      -> snoozed, assignee cleared (reopens to the AI
//     queue, not to the prior agent)
//   - assigned, not open    -> open, assignee preserved
//   - assigned, open        -> unchanged
func TransitionOnInbound(conv *model.Conversation) Transition {
	if !conv.Assigned() {
		return Transition{
			Status:  model.ConversationSnoozed,
			Changed: conv.Status != model.ConversationSnoozed,
		}
	}

	switch conv.Status {
	case model.ConversationClosed:
		return Transition{Status: model.ConversationSnoozed, ClearAssignee: true, Changed: true}
	case model.ConversationOpen:
		return Transition{Status: model.ConversationOpen}
	default:
		return Transition{Status: model.ConversationOpen, Changed: true}
	}
}

// ConversationFlow owns conversation lifecycle mutation. Inbound-driven
// transitions run under a row lock so concurrent deliveries for the same
// conversation serialize; agent-driven operations are plain updates plus
// their side effects (closing schedules a CSAT request).
type ConversationFlow struct {
	db            *database.DB
	conversations repository.ConversationRepository
	inboxes       repository.InboxRepository
	csatRequests  repository.CSATRequestRepository
	csatDelay     time.Duration
}

func NewConversationFlow(
	db *database.DB,
	conversations repository.ConversationRepository,
	inboxes repository.InboxRepository,
	csatRequests repository.CSATRequestRepository,
	csatDelay time.Duration,
) *ConversationFlow {
	return &ConversationFlow{
		db:            db,
		conversations: conversations,
		inboxes:       inboxes,
		csatRequests:  csatRequests,
		csatDelay:     csatDelay,
	}
}

// EnsureOnInbound fetches or lazily creates the conversation for the
// (contact, inbox) pair and applies the inbound transition. Returned events
// must be forwarded to the notification emitter by the caller.
func (f *ConversationFlow) EnsureOnInbound(ctx context.Context, tenantID string, contact *model.Contact, inbox *model.Inbox) (*model.Conversation, []model.DomainEvent, error) {
	existing, err := f.conversations.FindLatestByContactAndInbox(ctx, contact.ID, inbox.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("find conversation: %w", err)
	}

	if existing == nil {
		conv, err := f.conversations.Create(ctx, model.CreateConversationParams{
			TenantID:  tenantID,
			ContactID: contact.ID,
			InboxID:   inbox.ID,
			Status:    model.ConversationSnoozed,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create conversation: %w", err)
		}
		log.Info().
			Str("conversationId", conv.ID).
			Str("contactId", contact.ID).
			Str("inboxId", inbox.ID).
			Msg("conversation created")
		return conv, []model.DomainEvent{
			model.NewConversationEvent(model.EventConversationCreated, conv),
		}, nil
	}

	var updated *model.Conversation
	err = f.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := f.conversations.LockByID(ctx, tx, existing.ID)
		if err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}
		if locked == nil {
			return fmt.Errorf("conversation %s vanished under lock", existing.ID)
		}

		tr := TransitionOnInbound(locked)
		if !tr.Changed {
			updated = locked
			return nil
		}

		assignee := locked.AssigneeID
		if tr.ClearAssignee {
			assignee = nil
		}
		updated, err = f.conversations.UpdateStatusTx(ctx, tx, locked.ID, tr.Status, assignee)
		if err != nil {
			return fmt.Errorf("update conversation status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var events []model.DomainEvent
	if updated.Version != existing.Version {
		events = append(events, model.NewConversationEvent(model.EventConversationUpdated, updated))
	}
	return updated, events, nil
}

// Assign puts the conversation in a human agent's hands.
func (f *ConversationFlow) Assign(ctx context.Context, conversationID, assigneeID string) ([]model.DomainEvent, error) {
	if err := f.conversations.UpdateAssignment(ctx, conversationID, &assigneeID, model.ConversationOpen); err != nil {
		return nil, fmt.Errorf("assign conversation: %w", err)
	}
	return f.updatedEvent(ctx, conversationID)
}

// Transfer parks the conversation unassigned, waiting for pickup.
func (f *ConversationFlow) Transfer(ctx context.Context, conversationID string) ([]model.DomainEvent, error) {
	if err := f.conversations.UpdateAssignment(ctx, conversationID, nil, model.ConversationPending); err != nil {
		return nil, fmt.Errorf("transfer conversation: %w", err)
	}
	return f.updatedEvent(ctx, conversationID)
}

// Close terminates the conversation and schedules the satisfaction survey.
// The CSAT request insert is idempotent: at most one non-cancelled request
// exists per conversation.
func (f *ConversationFlow) Close(ctx context.Context, conversationID string) ([]model.DomainEvent, error) {
	now := time.Now()
	if err := f.conversations.Close(ctx, conversationID, now); err != nil {
		return nil, fmt.Errorf("close conversation: %w", err)
	}

	conv, err := f.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("reload conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s not found after close", conversationID)
	}

	channel := model.ChannelWhatsApp
	if inbox, err := f.inboxes.FindByID(ctx, conv.InboxID); err == nil && inbox != nil {
		channel = inbox.Channel
	}

	req, err := f.csatRequests.Create(ctx, model.CreateCSATRequestParams{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Channel:        channel,
		ScheduledAt:    now.Add(f.csatDelay),
	})
	if err != nil {
		log.Error().Err(err).Str("conversationId", conv.ID).Msg("failed to schedule csat request")
	} else if req != nil {
		log.Info().
			Str("conversationId", conv.ID).
			Time("scheduledAt", req.ScheduledAt).
			Msg("csat request scheduled")
	}

	return []model.DomainEvent{model.NewConversationEvent(model.EventConversationUpdated, conv)}, nil
}

func (f *ConversationFlow) updatedEvent(ctx context.Context, conversationID string) ([]model.DomainEvent, error) {
	conv, err := f.conversations.FindByID(ctx, conversationID)
	if err != nil || conv == nil {
		return nil, err
	}
	return []model.DomainEvent{model.NewConversationEvent(model.EventConversationUpdated, conv)}, nil
}
