package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/config"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// recentScanLimit bounds how far back the in-conversation heuristics look.
const recentScanLimit = 50

// ReactionResolver links events to prior messages: reactions mutate the
// target's reaction set, deletes set a deletion marker, quoted replies
// thread the new message. A reaction never creates a new Message row.
type ReactionResolver struct {
	messages repository.MessageRepository
}

func NewReactionResolver(messages repository.MessageRepository) *ReactionResolver {
	return &ReactionResolver{messages: messages}
}

// resolveTarget finds the message a reaction points at. The cascade is a
// known-fuzzy heuristic, in documented precedence order: explicit target
// id, substring match against stored external ids, nearest compatible-type
// message inside a 5-minute window, most recent message. A nil result
// means the reaction is discarded, which is not an error.
func (r *ReactionResolver) resolveTarget(ctx context.Context, conversationID, inboxID string, ev *InboundEvent) (*model.Message, error) {
	if ev.ReactionTarget != "" {
		msg, err := r.messages.FindByExternalID(ctx, inboxID, ev.ReactionTarget)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}

	recent, err := r.messages.FindRecentByConversation(ctx, conversationID, recentScanLimit)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}

	if ev.ReactionTarget != "" {
		for i := range recent {
			ext := recent[i].ExternalID
			if ext != nil && (strings.Contains(*ext, ev.ReactionTarget) || strings.Contains(ev.ReactionTarget, *ext)) {
				return &recent[i], nil
			}
		}
	}

	// Nearest in time among compatible types (voice reactions usually land
	// right after the audio they answer).
	cutoff := ev.Timestamp.Add(-config.ReactionFallbackWindow)
	for i := range recent {
		m := &recent[i]
		if m.CreatedAt.Before(cutoff) {
			break
		}
		if m.ContentType == model.ContentAudio || m.ContentType == model.ContentPTT {
			return m, nil
		}
	}

	return &recent[0], nil
}

// ApplyReaction resolves the target and upserts or removes the sender's
// reaction. Returns the mutated message, or nil when the reaction was
// discarded.
func (r *ReactionResolver) ApplyReaction(ctx context.Context, conversationID, inboxID string, ev *InboundEvent) (*model.Message, error) {
	target, err := r.resolveTarget(ctx, conversationID, inboxID, ev)
	if err != nil {
		return nil, fmt.Errorf("resolve reaction target: %w", err)
	}
	if target == nil {
		log.Debug().
			Str("conversationId", conversationID).
			Str("target", ev.ReactionTarget).
			Msg("reaction target unresolved, discarding")
		return nil, nil
	}

	emoji := strings.TrimSpace(ev.ReactionEmoji)
	if emoji == "" {
		if !target.Extensions.RemoveReaction(ev.SenderID) {
			// Nothing removed, nothing changed: no update, no event.
			return nil, nil
		}
	} else {
		target.Extensions.UpsertReaction(ev.SenderID, emoji, ev.Timestamp)
	}

	if err := r.messages.UpdateExtensions(ctx, target.ID, target.Extensions); err != nil {
		return nil, fmt.Errorf("persist reaction: %w", err)
	}
	return target, nil
}

// ApplyDelete marks the referenced message as deleted. The row is kept;
// operators still see that a message existed.
func (r *ReactionResolver) ApplyDelete(ctx context.Context, inboxID string, ev *InboundEvent) (*model.Message, error) {
	if ev.ProviderMessageID == "" {
		return nil, nil
	}

	target, err := r.messages.FindByExternalID(ctx, inboxID, ev.ProviderMessageID)
	if err != nil {
		return nil, fmt.Errorf("resolve delete target: %w", err)
	}
	if target == nil {
		// Some providers prefix the id (e.g. "true_<jid>_<id>"); retry with
		// the bare trailing segment.
		if idx := strings.LastIndexByte(ev.ProviderMessageID, '_'); idx >= 0 && idx < len(ev.ProviderMessageID)-1 {
			target, err = r.messages.FindByExternalID(ctx, inboxID, ev.ProviderMessageID[idx+1:])
			if err != nil {
				return nil, fmt.Errorf("resolve delete target by bare id: %w", err)
			}
		}
	}
	if target == nil {
		return nil, nil
	}

	if target.Extensions.Deletion == nil {
		target.Extensions.Deletion = &model.DeletionMarker{DeletedAt: time.Now()}
		if err := r.messages.UpdateExtensions(ctx, target.ID, target.Extensions); err != nil {
			return nil, fmt.Errorf("persist deletion marker: %w", err)
		}
	}
	return target, nil
}

// ResolveReply builds the reply extension for a quoted message. Resolution
// failure degrades to an un-threaded message.
func (r *ReactionResolver) ResolveReply(ctx context.Context, inboxID string, ev *InboundEvent) *model.ReplyRef {
	if ev.QuotedRef == "" {
		return nil
	}

	quoted, err := r.messages.FindByExternalID(ctx, inboxID, ev.QuotedRef)
	if err != nil || quoted == nil {
		if err != nil {
			log.Warn().Err(err).Str("quotedRef", ev.QuotedRef).Msg("quoted message lookup failed")
		}
		return nil
	}

	snippet := quoted.Content
	if len(snippet) > config.ReplySnippetMaxLen {
		snippet = snippet[:config.ReplySnippetMaxLen]
	}
	return &model.ReplyRef{MessageID: quoted.ID, Snippet: snippet}
}
