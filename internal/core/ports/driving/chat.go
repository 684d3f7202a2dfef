package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// ChatService answers questions over the ingested documents.
type ChatService interface {
	// Ask runs one chat turn. An empty sessionID starts a new session.
	// The reply is always returned unless the query itself is invalid.
	Ask(ctx context.Context, sessionID, query string) (*domain.ChatReply, error)

	// History returns a session's messages oldest first.
	// A positive limit returns only the last limit messages.
	History(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// Clear deletes a session's history.
	Clear(ctx context.Context, sessionID string) error

	// Sessions lists every known session.
	Sessions(ctx context.Context) ([]domain.Session, error)
}
