package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/omnidesk/ingest-server-go/internal/errors"
	"github.com/omnidesk/ingest-server-go/internal/ingest"
	"github.com/omnidesk/ingest-server-go/internal/middleware"
	"github.com/omnidesk/ingest-server-go/internal/repository"
	"github.com/omnidesk/ingest-server-go/internal/worker"
)

const messagePageSize = 50

// ConversationHandler exposes the agent-side lifecycle actions. The state
// transitions themselves live in the conversation flow; this layer only
// authenticates, validates and translates.
type ConversationHandler struct {
	flow          *ingest.ConversationFlow
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	emitter       worker.Emitter
}

func NewConversationHandler(
	flow *ingest.ConversationFlow,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	emitter worker.Emitter,
) *ConversationHandler {
	return &ConversationHandler{
		flow:          flow,
		conversations: conversations,
		messages:      messages,
		emitter:       emitter,
	}
}

// load fetches the conversation and checks it belongs to the caller's
// tenant.
func (h *ConversationHandler) load(w http.ResponseWriter, r *http.Request) (string, bool) {
	conversationID := chi.URLParam(r, "conversationID")
	inbox := middleware.GetInbox(r.Context())

	conv, err := h.conversations.FindByID(r.Context(), conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversationId", conversationID).Msg("conversation lookup failed")
		writeError(w, apperrors.Internal("Failed to load conversation"))
		return "", false
	}
	if conv == nil || (inbox != nil && conv.TenantID != inbox.TenantID) {
		writeError(w, apperrors.NotFound("conversation"))
		return "", false
	}
	return conv.ID, true
}

func (h *ConversationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.load(w, r)
	if !ok {
		return
	}

	var req struct {
		AssigneeID string `json:"assigneeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssigneeID == "" {
		writeError(w, apperrors.New(apperrors.ErrCodeMissingRequired, "assigneeId is required"))
		return
	}

	events, err := h.flow.Assign(r.Context(), conversationID, req.AssigneeID)
	if err != nil {
		log.Error().Err(err).Str("conversationId", conversationID).Msg("assign failed")
		writeError(w, apperrors.Internal("Failed to assign conversation"))
		return
	}
	h.emitter.Emit(events...)

	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func (h *ConversationHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.load(w, r)
	if !ok {
		return
	}

	events, err := h.flow.Transfer(r.Context(), conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversationId", conversationID).Msg("transfer failed")
		writeError(w, apperrors.Internal("Failed to transfer conversation"))
		return
	}
	h.emitter.Emit(events...)

	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.load(w, r)
	if !ok {
		return
	}

	events, err := h.flow.Close(r.Context(), conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversationId", conversationID).Msg("close failed")
		writeError(w, apperrors.Internal("Failed to close conversation"))
		return
	}
	h.emitter.Emit(events...)

	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.load(w, r)
	if !ok {
		return
	}

	msgs, err := h.messages.FindRecentByConversation(r.Context(), conversationID, messagePageSize)
	if err != nil {
		log.Error().Err(err).Str("conversationId", conversationID).Msg("message listing failed")
		writeError(w, apperrors.Internal("Failed to load messages"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}
