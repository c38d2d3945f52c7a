package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/omnidesk/ingest-server-go/internal/errors"
	"github.com/omnidesk/ingest-server-go/internal/middleware"
	"github.com/omnidesk/ingest-server-go/internal/repository"
	"github.com/omnidesk/ingest-server-go/internal/supervisor"
)

// InboxHandler exposes per-inbox connection control.
type InboxHandler struct {
	inboxes    repository.InboxRepository
	supervisor *supervisor.Supervisor
}

func NewInboxHandler(inboxes repository.InboxRepository, sup *supervisor.Supervisor) *InboxHandler {
	return &InboxHandler{inboxes: inboxes, supervisor: sup}
}

func (h *InboxHandler) load(w http.ResponseWriter, r *http.Request) (string, bool) {
	inboxID := chi.URLParam(r, "inboxID")
	caller := middleware.GetInbox(r.Context())

	inbox, err := h.inboxes.FindByID(r.Context(), inboxID)
	if err != nil {
		log.Error().Err(err).Str("inboxId", inboxID).Msg("inbox lookup failed")
		writeError(w, apperrors.Internal("Failed to load inbox"))
		return "", false
	}
	if inbox == nil || (caller != nil && inbox.TenantID != caller.TenantID) {
		writeError(w, apperrors.NotFound("inbox"))
		return "", false
	}
	return inbox.ID, true
}

func (h *InboxHandler) StartConnection(w http.ResponseWriter, r *http.Request) {
	inboxID, ok := h.load(w, r)
	if !ok {
		return
	}
	conn := h.supervisor.Start(inboxID)
	writeJSON(w, http.StatusOK, conn)
}

func (h *InboxHandler) StopConnection(w http.ResponseWriter, r *http.Request) {
	inboxID, ok := h.load(w, r)
	if !ok {
		return
	}
	if !h.supervisor.Stop(inboxID) {
		writeError(w, apperrors.NotFound("connection"))
		return
	}
	writeJSON(w, http.StatusOK, h.supervisor.Status(inboxID))
}

func (h *InboxHandler) ConnectionStatus(w http.ResponseWriter, r *http.Request) {
	inboxID, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.supervisor.Status(inboxID))
}
