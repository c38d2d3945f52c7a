package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/omnidesk/ingest-server-go/internal/errors"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/queue"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// EnrichPublisher hands persisted messages to the asynchronous enrichment
// stage (media pipeline plus the response arbiter).
type EnrichPublisher interface {
	EnqueueEnrich(ctx context.Context, job queue.EnrichJob) error
}

// Pipeline is the synchronous half of ingestion: everything that must be
// decided before the webhook responds. Media enrichment and AI generation
// run afterwards on the queue consumer.
type Pipeline struct {
	normalizer    *Normalizer
	identities    *IdentityResolver
	dedup         *DedupGuard
	reactions     *ReactionResolver
	flow          *ConversationFlow
	csat          *CSATInterceptor
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	publisher     EnrichPublisher
}

func NewPipeline(
	normalizer *Normalizer,
	identities *IdentityResolver,
	dedup *DedupGuard,
	reactions *ReactionResolver,
	flow *ConversationFlow,
	csat *CSATInterceptor,
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	publisher EnrichPublisher,
) *Pipeline {
	return &Pipeline{
		normalizer:    normalizer,
		identities:    identities,
		dedup:         dedup,
		reactions:     reactions,
		flow:          flow,
		csat:          csat,
		messages:      messages,
		conversations: conversations,
		publisher:     publisher,
	}
}

// Process runs one webhook delivery through the pipeline. A returned error
// means the payload itself was unusable; every business outcome comes back
// as an Outcome with a status token.
func (p *Pipeline) Process(ctx context.Context, inbox *model.Inbox, payload json.RawMessage) (*Outcome, error) {
	ev, err := p.normalizer.Normalize(inbox.Channel, inbox.ConnectedIdentifier, payload)
	if err != nil {
		if errors.Is(err, errNoSender) {
			return nil, apperrors.MalformedEvent("no sender identifier")
		}
		return nil, apperrors.MalformedEvent(err.Error()).WithCause(err)
	}
	if ev == nil {
		// Self-sent echo.
		return &Outcome{Status: StatusIgnored}, nil
	}
	if ev.Kind == KindOther {
		return &Outcome{Status: StatusIgnored}, nil
	}

	contact, err := p.identities.Resolve(ctx, inbox.TenantID, ev)
	if err != nil {
		return nil, apperrors.IdentityResolution(err)
	}

	switch ev.Kind {
	case KindReaction:
		return p.processReaction(ctx, contact, inbox, ev)
	case KindDelete:
		return p.processDelete(ctx, inbox, ev)
	case KindEdit:
		return p.processEdit(ctx, inbox, ev)
	}

	return p.processMessage(ctx, contact, inbox, ev)
}

// processMessage is the main path: dedup, state transition, persistence,
// CSAT interception, then hand-off to the enrichment queue.
func (p *Pipeline) processMessage(ctx context.Context, contact *model.Contact, inbox *model.Inbox, ev *InboundEvent) (*Outcome, error) {
	// Provider-id idempotency: redelivered webhooks carry the same external
	// message id and must not produce a second row.
	if ev.ProviderMessageID != "" {
		existing, err := p.messages.FindByExternalID(ctx, inbox.ID, ev.ProviderMessageID)
		if err != nil {
			return nil, fmt.Errorf("check external id: %w", err)
		}
		if existing != nil {
			return &Outcome{Status: StatusIgnoredDuplicate, Message: existing}, nil
		}
	}

	// Content dedup runs against the current conversation before any state
	// mutation, so a duplicate never reopens or re-snoozes anything.
	current, err := p.conversations.FindLatestByContactAndInbox(ctx, contact.ID, inbox.ID)
	if err != nil {
		return nil, fmt.Errorf("find current conversation: %w", err)
	}
	if current != nil && strings.TrimSpace(ev.Content) != "" {
		dup, err := p.dedup.IsDuplicate(ctx, current.ID, ev.Content, model.DirectionCustomer)
		if err != nil {
			return nil, fmt.Errorf("dedup check: %w", err)
		}
		if dup {
			log.Debug().
				Str("conversationId", current.ID).
				Str("contactId", contact.ID).
				Msg("duplicate inbound content inside dedup window")
			return &Outcome{Status: StatusIgnoredDuplicate}, nil
		}
	}

	conv, events, err := p.flow.EnsureOnInbound(ctx, inbox.TenantID, contact, inbox)
	if err != nil {
		return nil, fmt.Errorf("conversation transition: %w", err)
	}

	var ext model.Extensions
	if reply := p.reactions.ResolveReply(ctx, inbox.ID, ev); reply != nil {
		ext.Reply = reply
	}

	var externalID *string
	if ev.ProviderMessageID != "" {
		externalID = &ev.ProviderMessageID
	}
	msg, err := p.messages.Create(ctx, model.CreateMessageParams{
		TenantID:       inbox.TenantID,
		ConversationID: conv.ID,
		InboxID:        inbox.ID,
		Direction:      model.DirectionCustomer,
		ContentType:    ev.ContentType,
		Content:        ev.Content,
		ExternalID:     externalID,
		Extensions:     ext,
	})
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	events = append(events, model.NewMessageEvent(model.EventMessageCreated, msg))

	handled, err := p.csat.Intercept(ctx, conv, contact, inbox, ev)
	if err != nil {
		log.Error().Err(err).Str("conversationId", conv.ID).Msg("csat interception failed")
	}
	if handled {
		return &Outcome{Status: StatusCSATProcessed, Message: msg, Events: events}, nil
	}

	job := queue.EnrichJob{MessageID: msg.ID, MediaRef: ev.MediaRef}
	if err := p.publisher.EnqueueEnrich(ctx, job); err != nil {
		// The message is committed; enrichment is lost, not the event.
		log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to enqueue enrichment")
	}

	return &Outcome{Status: StatusOK, Message: msg, Events: events}, nil
}

// processReaction mutates the target message's reaction set. Reactions
// never create a conversation: with nothing to react to they are dropped.
func (p *Pipeline) processReaction(ctx context.Context, contact *model.Contact, inbox *model.Inbox, ev *InboundEvent) (*Outcome, error) {
	conv, err := p.conversations.FindLatestByContactAndInbox(ctx, contact.ID, inbox.ID)
	if err != nil {
		return nil, fmt.Errorf("find conversation for reaction: %w", err)
	}
	if conv == nil {
		return &Outcome{Status: StatusIgnored}, nil
	}

	target, err := p.reactions.ApplyReaction(ctx, conv.ID, inbox.ID, ev)
	if err != nil {
		return nil, fmt.Errorf("apply reaction: %w", err)
	}
	if target == nil {
		return &Outcome{Status: StatusIgnored}, nil
	}

	return &Outcome{
		Status:  StatusReactionProcessed,
		Message: target,
		Events:  []model.DomainEvent{model.NewMessageEvent(model.EventMessageUpdated, target)},
	}, nil
}

func (p *Pipeline) processDelete(ctx context.Context, inbox *model.Inbox, ev *InboundEvent) (*Outcome, error) {
	target, err := p.reactions.ApplyDelete(ctx, inbox.ID, ev)
	if err != nil {
		return nil, fmt.Errorf("apply delete: %w", err)
	}
	if target == nil {
		return &Outcome{Status: StatusIgnored}, nil
	}

	return &Outcome{
		Status:  StatusMessageDeleted,
		Message: target,
		Events:  []model.DomainEvent{model.NewMessageEvent(model.EventMessageDeleted, target)},
	}, nil
}

// processEdit replaces the content of an already-ingested message. Unknown
// targets are dropped rather than resurrected as new messages.
func (p *Pipeline) processEdit(ctx context.Context, inbox *model.Inbox, ev *InboundEvent) (*Outcome, error) {
	if ev.ProviderMessageID == "" {
		return &Outcome{Status: StatusIgnored}, nil
	}

	target, err := p.messages.FindByExternalID(ctx, inbox.ID, ev.ProviderMessageID)
	if err != nil {
		return nil, fmt.Errorf("resolve edit target: %w", err)
	}
	if target == nil {
		return &Outcome{Status: StatusIgnored}, nil
	}

	if err := p.messages.UpdateContent(ctx, target.ID, ev.Content, target.Extensions); err != nil {
		return nil, fmt.Errorf("persist edit: %w", err)
	}
	target.Content = ev.Content

	return &Outcome{
		Status:  StatusOK,
		Message: target,
		Events:  []model.DomainEvent{model.NewMessageEvent(model.EventMessageUpdated, target)},
	}, nil
}
