package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
	"github.com/omnidesk/ingest-server-go/internal/util"
)

type contextKey string

const InboxContextKey contextKey = "inbox"

func GetInbox(ctx context.Context) *model.Inbox {
	if inbox, ok := ctx.Value(InboxContextKey).(*model.Inbox); ok {
		return inbox
	}
	return nil
}

// AuthMiddleware authenticates agent-facing API calls with a per-inbox API
// token and puts the owning inbox on the request context.
type AuthMiddleware struct {
	inboxRepo repository.InboxRepository
}

func NewAuthMiddleware(inboxRepo repository.InboxRepository) *AuthMiddleware {
	return &AuthMiddleware{inboxRepo: inboxRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		inbox, err := m.inboxRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if inbox == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), InboxContextKey, inbox)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
