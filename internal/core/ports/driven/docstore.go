package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// DocumentStore persists document records and their processing status.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents, newest upload first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document record.
	// Returns domain.ErrNotFound if it does not exist.
	DeleteDocument(ctx context.Context, id string) error

	// MarkProcessed records a successful indexing run.
	MarkProcessed(ctx context.Context, id string, chunkCount int) error

	// MarkFailed records a failed indexing run.
	MarkFailed(ctx context.Context, id string, reason string) error
}
