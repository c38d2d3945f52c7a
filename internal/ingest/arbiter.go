package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/capability"
	"github.com/omnidesk/ingest-server-go/internal/config"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// Arbiter decides whether the automated agent answers an inbound message,
// and persists/dispatches its reply.
type Arbiter struct {
	generator capability.Generator
	sender    capability.Sender
	messages  repository.MessageRepository
}

func NewArbiter(generator capability.Generator, sender capability.Sender, messages repository.MessageRepository) *Arbiter {
	return &Arbiter{generator: generator, sender: sender, messages: messages}
}

// Eligible reports whether the conversation state allows an automated
// reply: nobody assigned, not parked, not closed, and real content.
func Eligible(conv *model.Conversation, content string) bool {
	if conv.Assigned() {
		return false
	}
	if conv.Status == model.ConversationPending || conv.Status == model.ConversationClosed {
		return false
	}
	return strings.TrimSpace(content) != ""
}

// Respond produces at most one outbound reply for the inbound message.
// precomposed carries document-analysis output that already is the reply;
// when empty, the generation capability is called. Generation failure
// persists nothing: no partial replies.
func (a *Arbiter) Respond(ctx context.Context, conv *model.Conversation, contact *model.Contact, inbox *model.Inbox, source *model.Message, content, precomposed string) (*model.Message, []model.DomainEvent, error) {
	if !Eligible(conv, content) {
		return nil, nil, nil
	}

	// One reply per inbound event, across the document/image short-circuit
	// path and the normal path, and across worker retries.
	already, err := a.messages.ExistsReplyToSource(ctx, source.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("check existing reply: %w", err)
	}
	if already {
		log.Debug().Str("messageId", source.ID).Msg("reply already produced for inbound message")
		return nil, nil, nil
	}

	replyText := strings.TrimSpace(precomposed)
	if replyText == "" {
		if a.generator == nil {
			return nil, nil, nil
		}
		gctx, cancel := context.WithTimeout(ctx, config.GenerationTimeout)
		result, genErr := a.generator.Generate(gctx, capability.GenerateRequest{
			Text:           content,
			TenantID:       conv.TenantID,
			ConversationID: conv.ID,
		})
		cancel()
		if genErr != nil || !result.Success || strings.TrimSpace(result.ReplyText) == "" {
			if genErr != nil {
				log.Error().Err(genErr).Str("conversationId", conv.ID).Msg("reply generation failed")
			}
			return nil, nil, nil
		}
		replyText = strings.TrimSpace(result.ReplyText)
	}

	reply, err := a.messages.CreateReply(ctx, model.CreateMessageParams{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		InboxID:        inbox.ID,
		Direction:      model.DirectionAgent,
		ContentType:    model.ContentText,
		Content:        replyText,
	}, source.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("persist reply: %w", err)
	}

	events := []model.DomainEvent{model.NewMessageEvent(model.EventMessageCreated, reply)}

	if !a.sender.SendText(ctx, conv.TenantID, inbox.ID, contact.PhoneNumber, replyText) {
		// The operator sees the reply with a delivery-failed marker instead
		// of a missing message. Redelivery belongs to the recovery job, not
		// to this path.
		reply.Extensions.SendFailure = &model.SendFailure{
			Reason:   "downstream send failed",
			FailedAt: time.Now(),
		}
		if err := a.messages.UpdateExtensions(ctx, reply.ID, reply.Extensions); err != nil {
			log.Error().Err(err).Str("messageId", reply.ID).Msg("failed to record send failure")
		}
		events = append(events, model.NewMessageEvent(model.EventMessageUpdated, reply))
	}

	log.Info().
		Str("conversationId", conv.ID).
		Str("replyId", reply.ID).
		Bool("precomposed", precomposed != "").
		Msg("automated reply produced")

	return reply, events, nil
}
