package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/capability"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// scaleEmojis is the fixed 5-point survey scale.
var scaleEmojis = []struct {
	emoji  string
	rating int
}{
	{"😡", 1},
	{"😕", 2},
	{"😐", 3},
	{"🙂", 4},
	{"🤩", 5},
}

const neutralRating = 3

const thankYouText = "Obrigado pela sua avaliação! 💙"

// ScaleRating extracts a rating from survey reply text by scanning for the
// scale emojis. Returns (0, "") when none is present.
func ScaleRating(text string) (int, string) {
	for _, s := range scaleEmojis {
		if strings.Contains(text, s.emoji) {
			return s.rating, s.emoji
		}
	}
	return 0, ""
}

// CSATInterceptor runs before the AI arbiter on every inbound customer
// message. When the conversation has an awaiting survey request and the
// message qualifies as a response, it produces the feedback record, thanks
// the customer, and short-circuits the pipeline.
type CSATInterceptor struct {
	requests   repository.CSATRequestRepository
	feedbacks  repository.CSATFeedbackRepository
	classifier capability.SentimentClassifier
	sender     capability.Sender
}

func NewCSATInterceptor(
	requests repository.CSATRequestRepository,
	feedbacks repository.CSATFeedbackRepository,
	classifier capability.SentimentClassifier,
	sender capability.Sender,
) *CSATInterceptor {
	return &CSATInterceptor{
		requests:   requests,
		feedbacks:  feedbacks,
		classifier: classifier,
		sender:     sender,
	}
}

// Intercept returns true when the event was consumed as a survey response.
// The arbiter must not run for a consumed event.
func (i *CSATInterceptor) Intercept(ctx context.Context, conv *model.Conversation, contact *model.Contact, inbox *model.Inbox, ev *InboundEvent) (bool, error) {
	if ev.Kind != KindMessage {
		return false, nil
	}

	req, err := i.requests.FindAwaitingByConversation(ctx, conv.ID)
	if err != nil {
		return false, fmt.Errorf("find awaiting csat request: %w", err)
	}
	if req == nil || !req.Status.Awaiting() {
		return false, nil
	}

	text := strings.TrimSpace(ev.Content)
	if text == "" {
		return false, nil
	}

	rating, emoji := ScaleRating(text)
	if rating == 0 {
		rating = i.classifyOrNeutral(ctx, text)
	}

	latency := int64(0)
	if req.SentAt != nil {
		latency = int64(time.Since(*req.SentAt).Seconds())
	}

	fb, err := i.feedbacks.Create(ctx, model.CreateCSATFeedbackParams{
		TenantID:               conv.TenantID,
		RequestID:              req.ID,
		ConversationID:         conv.ID,
		Rating:                 rating,
		Emoji:                  emoji,
		SourceText:             text,
		ResponseLatencySeconds: latency,
	})
	if err != nil {
		return false, fmt.Errorf("create csat feedback: %w", err)
	}
	if fb == nil {
		// Another reply already answered this survey; first write wins and
		// later replies are consumed silently.
		log.Debug().Str("requestId", req.ID).Msg("csat feedback already recorded, ignoring reply")
		return true, nil
	}

	if err := i.requests.UpdateStatus(ctx, req.ID, model.CSATRequestCompleted); err != nil {
		log.Error().Err(err).Str("requestId", req.ID).Msg("failed to complete csat request")
	}

	if !i.sender.SendText(ctx, conv.TenantID, inbox.ID, contact.PhoneNumber, thankYouText) {
		log.Warn().Str("conversationId", conv.ID).Msg("csat thank-you message not delivered")
	}

	log.Info().
		Str("conversationId", conv.ID).
		Str("requestId", req.ID).
		Int("rating", rating).
		Msg("csat feedback recorded")

	return true, nil
}

// classifyOrNeutral falls back to the sentiment capability and, when that
// is unavailable or fails, to the neutral midpoint. Survey feedback is
// never dropped over a classifier outage.
func (i *CSATInterceptor) classifyOrNeutral(ctx context.Context, text string) int {
	if i.classifier == nil {
		return neutralRating
	}
	rating, err := i.classifier.Classify(ctx, text)
	if err != nil || rating < 1 || rating > 5 {
		if err != nil {
			log.Warn().Err(err).Msg("sentiment classification failed, defaulting to neutral")
		}
		return neutralRating
	}
	return rating
}
