package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// VectorIndex stores chunk embeddings for similarity search.
// Entries are keyed by document id + "_" + ordinal.
//
// Every operation is consistent on return: a Query issued right after an
// Add can see the added entries. Implementations must be safe for
// concurrent use and must never let a Query observe a partial chunk set
// for a document being replaced.
type VectorIndex interface {
	// Add upserts entries. Re-adding an existing key overwrites it in place,
	// keeping its original insertion position.
	Add(ctx context.Context, entries []domain.IndexEntry) error

	// Query returns up to topK entries ranked by cosine similarity
	// descending. Ties are broken by insertion order.
	Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievalResult, error)

	// DeleteByDocument removes every entry of the document and returns
	// how many were removed. Unknown documents are a no-op.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// ReplaceDocument atomically swaps the document's entries for the given set.
	ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) error

	// Count returns the total number of entries.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
