package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/omnidesk/ingest-server-go/internal/errors"
	"github.com/omnidesk/ingest-server-go/internal/ingest"
	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
	"github.com/omnidesk/ingest-server-go/internal/supervisor"
	"github.com/omnidesk/ingest-server-go/internal/worker"
)

// WebhookHandler receives provider webhook deliveries. Business outcomes
// always answer 200 with a status token; non-200 is reserved for payloads
// that cannot be processed at all.
type WebhookHandler struct {
	pipeline   *ingest.Pipeline
	inboxes    repository.InboxRepository
	supervisor *supervisor.Supervisor
	emitter    worker.Emitter
}

func NewWebhookHandler(
	pipeline *ingest.Pipeline,
	inboxes repository.InboxRepository,
	sup *supervisor.Supervisor,
	emitter worker.Emitter,
) *WebhookHandler {
	return &WebhookHandler{
		pipeline:   pipeline,
		inboxes:    inboxes,
		supervisor: sup,
		emitter:    emitter,
	}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	channel := model.Channel(chi.URLParam(r, "channel"))
	inboxID := chi.URLParam(r, "inboxID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.MalformedEvent("unreadable body"))
		return
	}
	if !json.Valid(body) {
		writeError(w, apperrors.MalformedEvent("invalid JSON body"))
		return
	}

	inbox, err := h.inboxes.FindByID(r.Context(), inboxID)
	if err != nil {
		log.Error().Err(err).Str("inboxId", inboxID).Msg("webhook: inbox lookup failed")
		writeJSON(w, http.StatusOK, map[string]string{"status": ingest.StatusError})
		return
	}
	if inbox == nil || (channel.Valid() && inbox.Channel != channel) {
		log.Warn().
			Str("inboxId", inboxID).
			Str("channel", string(channel)).
			Msg("webhook for unknown inbox/channel pair")
		writeJSON(w, http.StatusOK, map[string]string{"status": ingest.StatusIgnored})
		return
	}

	h.supervisor.Touch(inbox.ID)

	outcome, err := h.pipeline.Process(r.Context(), inbox, body)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeMalformedEvent {
			writeError(w, appErr)
			return
		}
		log.Error().Err(err).Str("inboxId", inbox.ID).Msg("webhook processing failed")
		writeJSON(w, http.StatusOK, map[string]string{"status": ingest.StatusError})
		return
	}

	h.emitter.Emit(outcome.Events...)

	resp := map[string]string{"status": outcome.Status}
	if outcome.Message != nil {
		resp["messageId"] = outcome.Message.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
