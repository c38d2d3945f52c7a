package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/omnidesk/ingest-server-go/internal/model"
	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// DedupGuard suppresses re-delivery of the same logical message within a
// trailing time window. Providers deliver webhooks at-least-once; retries
// for an already-persisted message must produce no side effects.
type DedupGuard struct {
	messages repository.MessageRepository
	window   time.Duration
}

func NewDedupGuard(messages repository.MessageRepository, window time.Duration) *DedupGuard {
	return &DedupGuard{messages: messages, window: window}
}

// IsDuplicate reports whether the (conversation, content, direction) tuple
// was already recorded as a Message inside the window.
func (g *DedupGuard) IsDuplicate(ctx context.Context, conversationID, content string, direction model.MessageDirection) (bool, error) {
	if g.window <= 0 || content == "" {
		return false, nil
	}
	since := time.Now().Add(-g.window)
	dup, err := g.messages.ExistsDuplicateSince(ctx, conversationID, content, direction, since)
	if err != nil {
		return false, fmt.Errorf("dedup window check: %w", err)
	}
	return dup, nil
}
