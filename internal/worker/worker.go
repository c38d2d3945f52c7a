package worker

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/ingest"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/queue"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// Emitter forwards domain events to connected dashboard clients.
type Emitter interface {
	Emit(events ...model.DomainEvent)
}

// Worker is the asynchronous half of ingestion: it picks up persisted
// messages from the enrichment queue, runs the media pipeline, and lets
// the arbiter decide on an automated reply. The webhook has long since
// responded when this runs.
type Worker struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	inboxes       repository.InboxRepository
	contacts      repository.ContactRepository

	media   *ingest.MediaOrchestrator
	arbiter *ingest.Arbiter
	emitter Emitter
}

func New(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	inboxes repository.InboxRepository,
	contacts repository.ContactRepository,
	media *ingest.MediaOrchestrator,
	arbiter *ingest.Arbiter,
	emitter Emitter,
) *Worker {
	return &Worker{
		messages:      messages,
		conversations: conversations,
		inboxes:       inboxes,
		contacts:      contacts,
		media:         media,
		arbiter:       arbiter,
		emitter:       emitter,
	}
}

// Handle processes one enrichment job. Returning true requeues the job;
// the arbiter's reply-once guard makes redelivery safe.
func (w *Worker) Handle(ctx context.Context, job queue.EnrichJob) bool {
	msg, err := w.messages.FindByID(ctx, job.MessageID)
	if err != nil {
		log.Error().Err(err).Str("messageId", job.MessageID).Msg("load message for enrichment")
		return true
	}
	if msg == nil {
		log.Warn().Str("messageId", job.MessageID).Msg("enrich job references missing message, dropping")
		return false
	}

	conv, err := w.conversations.FindByID(ctx, msg.ConversationID)
	if err != nil || conv == nil {
		log.Error().Err(err).Str("conversationId", msg.ConversationID).Msg("load conversation for enrichment")
		return err != nil
	}
	inbox, err := w.inboxes.FindByID(ctx, msg.InboxID)
	if err != nil || inbox == nil {
		log.Error().Err(err).Str("inboxId", msg.InboxID).Msg("load inbox for enrichment")
		return err != nil
	}
	contact, err := w.contacts.FindByID(ctx, conv.ContactID)
	if err != nil || contact == nil {
		log.Error().Err(err).Str("contactId", conv.ContactID).Msg("load contact for enrichment")
		return err != nil
	}

	// The queue job carries only the media pointer; everything else comes
	// from the committed row.
	ev := &ingest.InboundEvent{
		Channel:     inbox.Channel,
		Kind:        ingest.KindMessage,
		Content:     msg.Content,
		ContentType: msg.ContentType,
		MediaRef:    job.MediaRef,
		Timestamp:   msg.CreatedAt,
	}

	enr := w.media.Enrich(ctx, inbox, msg, ev)
	content := msg.Content
	if enr.Content != "" || enr.Transcription != nil || enr.PdfSummary != nil {
		if enr.Content != "" {
			content = enr.Content
		}
		msg.Extensions.Transcription = enr.Transcription
		if enr.PdfSummary != nil {
			msg.Extensions.PdfSummary = enr.PdfSummary
		}
		if err := w.messages.UpdateContent(ctx, msg.ID, content, msg.Extensions); err != nil {
			log.Error().Err(err).Str("messageId", msg.ID).Msg("persist enrichment")
			return true
		}
		msg.Content = content
		w.emitter.Emit(model.NewMessageEvent(model.EventMessageUpdated, msg))
	}

	// Re-read the conversation: an agent may have picked it up while the
	// media pipeline was running, which disqualifies the automated reply.
	conv, err = w.conversations.FindByID(ctx, msg.ConversationID)
	if err != nil || conv == nil {
		log.Error().Err(err).Str("conversationId", msg.ConversationID).Msg("reload conversation before arbiter")
		return err != nil
	}

	if enabled := inbox.ParseSettings().AgentEnabled; enabled != nil && !*enabled {
		return false
	}

	precomposed := ""
	if enr.SkipGeneration {
		precomposed = content
	}

	_, events, err := w.arbiter.Respond(ctx, conv, contact, inbox, msg, content, precomposed)
	if err != nil {
		log.Error().Err(err).Str("messageId", msg.ID).Msg("arbiter failed")
		return true
	}
	w.emitter.Emit(events...)
	return false
}
