package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// IngestionService runs the write path: chunk, embed, index.
type IngestionService interface {
	// Submit records the document and schedules processing in the
	// background. It returns as soon as the record is saved.
	Submit(ctx context.Context, doc *domain.Document, text string) error

	// Process chunks, embeds and indexes the document synchronously.
	// Returns the number of chunks indexed.
	Process(ctx context.Context, doc *domain.Document, text string) (int, error)

	// Get returns a document record.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List returns every document record.
	List(ctx context.Context) ([]domain.Document, error)

	// Delete removes the document's index entries and record.
	// Returns the number of index entries removed.
	Delete(ctx context.Context, id string) (int, error)

	// Wait blocks until all background processing has finished.
	Wait()
}
