package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// ConversationStore is an append-only message log per session.
// Sessions are created lazily on first append and only destroyed by Clear.
type ConversationStore interface {
	// Append records a message and bumps the session's UpdatedAt.
	Append(ctx context.Context, sessionID string, role domain.Role, content string) (*domain.Message, error)

	// Get returns messages oldest first. A positive limit returns only the
	// last limit messages. Unknown sessions return an empty slice.
	Get(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// Clear deletes the whole session atomically. Unknown sessions are a no-op.
	Clear(ctx context.Context, sessionID string) error

	// ListSessions returns every session, most recently updated first.
	// Messages are not populated.
	ListSessions(ctx context.Context) ([]domain.Session, error)
}
