package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Retriever returns ranked relevant chunks for a query.
type Retriever interface {
	// Retrieve is best-effort: failures yield an empty outcome whose
	// Reason and Err describe what went wrong. A nil threshold disables
	// filtering.
	Retrieve(ctx context.Context, query string, topK int, threshold *float64) domain.RetrievalOutcome
}
