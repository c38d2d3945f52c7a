package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/capability"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// surveyPrompt is what the customer receives when their closed
// conversation's survey comes due.
const surveyPrompt = "Como você avalia o nosso atendimento? Responda com um emoji:\n😡 😕 😐 🙂 🤩"

const dispatchBatchSize = 50

// CSATDispatchJob delivers due satisfaction surveys. Requests are created
// at conversation close with a scheduled-send delay; this job picks up the
// ones whose time has come and pushes them through the send capability.
type CSATDispatchJob struct {
	csatRequests  repository.CSATRequestRepository
	conversations repository.ConversationRepository
	contacts      repository.ContactRepository
	sender        capability.Sender
	interval      time.Duration
	done          chan struct{}
}

func NewCSATDispatchJob(
	csatRequests repository.CSATRequestRepository,
	conversations repository.ConversationRepository,
	contacts repository.ContactRepository,
	sender capability.Sender,
	interval time.Duration,
) *CSATDispatchJob {
	return &CSATDispatchJob{
		csatRequests:  csatRequests,
		conversations: conversations,
		contacts:      contacts,
		sender:        sender,
		interval:      interval,
		done:          make(chan struct{}),
	}
}

func (j *CSATDispatchJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("csat dispatch job started")
}

func (j *CSATDispatchJob) Stop() {
	close(j.done)
	log.Info().Msg("csat dispatch job stopped")
}

func (j *CSATDispatchJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.dispatch()
		}
	}
}

func (j *CSATDispatchJob) dispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	due, err := j.csatRequests.FindDue(ctx, time.Now(), dispatchBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to load due csat requests")
		return
	}

	for i := range due {
		j.dispatchOne(ctx, &due[i])
	}
}

func (j *CSATDispatchJob) dispatchOne(ctx context.Context, req *model.CSATRequest) {
	conv, err := j.conversations.FindByID(ctx, req.ConversationID)
	if err != nil || conv == nil {
		log.Error().Err(err).Str("requestId", req.ID).Msg("csat request without conversation, cancelling")
		j.fail(ctx, req, model.CSATRequestCancelled)
		return
	}

	// A reopened conversation makes the survey moot.
	if conv.Status != model.ConversationClosed {
		j.fail(ctx, req, model.CSATRequestCancelled)
		log.Info().
			Str("requestId", req.ID).
			Str("conversationId", conv.ID).
			Msg("conversation reopened before survey, cancelled")
		return
	}

	contact, err := j.contacts.FindByID(ctx, conv.ContactID)
	if err != nil || contact == nil {
		log.Error().Err(err).Str("requestId", req.ID).Msg("csat request without contact, cancelling")
		j.fail(ctx, req, model.CSATRequestCancelled)
		return
	}

	if !j.sender.SendText(ctx, req.TenantID, conv.InboxID, contact.PhoneNumber, surveyPrompt) {
		j.fail(ctx, req, model.CSATRequestFailed)
		return
	}

	if err := j.csatRequests.MarkSent(ctx, req.ID, time.Now()); err != nil {
		log.Error().Err(err).Str("requestId", req.ID).Msg("failed to mark csat request sent")
		return
	}
	log.Info().
		Str("requestId", req.ID).
		Str("conversationId", conv.ID).
		Msg("csat survey sent")
}

func (j *CSATDispatchJob) fail(ctx context.Context, req *model.CSATRequest, status model.CSATRequestStatus) {
	if err := j.csatRequests.UpdateStatus(ctx, req.ID, status); err != nil {
		log.Error().Err(err).Str("requestId", req.ID).Msg("failed to update csat request status")
	}
}
