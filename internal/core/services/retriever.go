package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.Retriever = (*Retriever)(nil)

// Retriever embeds a query and ranks indexed chunks against it.
// It never fails: backend errors become an empty outcome with a reason.
type Retriever struct {
	embedder     driven.EmbeddingService
	index        driven.VectorIndex
	embedTimeout time.Duration
}

// NewRetriever creates a retriever. A non-positive embedTimeout uses the default.
func NewRetriever(embedder driven.EmbeddingService, index driven.VectorIndex, embedTimeout time.Duration) *Retriever {
	if embedTimeout <= 0 {
		embedTimeout = domain.DefaultRAGSettings().EmbedTimeout
	}
	return &Retriever{
		embedder:     embedder,
		index:        index,
		embedTimeout: embedTimeout,
	}
}

// Retrieve returns up to topK results scoring at least threshold.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, topK int, threshold *float64,
) domain.RetrievalOutcome {
	logger.Section("Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		return outcome(nil, domain.RetrievalEmptyQuery, nil)
	}
	if r.embedder == nil {
		return r.fail(domain.RetrievalEmbeddingFailed, domain.ErrEmbeddingUnavailable)
	}

	query = truncateRunes(query, r.embedder.MaxInputChars())
	logger.Debug("Query: %q, top_k: %d", query, topK)

	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	vector, err := r.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		return r.fail(domain.RetrievalEmbeddingFailed, fmt.Errorf("%w: %w", domain.ErrEmbedding, err))
	}

	candidates, err := r.index.Query(ctx, vector, topK)
	if err != nil {
		return r.fail(domain.RetrievalIndexFailed, wrapIndexErr(err))
	}
	if len(candidates) == 0 {
		logger.Debug("Index returned no candidates")
		return outcome(nil, domain.RetrievalNoMatches, nil)
	}

	if threshold == nil {
		return outcome(candidates, domain.RetrievalOK, nil)
	}

	kept := make([]domain.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= *threshold {
			kept = append(kept, c)
		}
	}
	logger.Debug("Candidates: %d, above %.2f: %d", len(candidates), *threshold, len(kept))
	if len(kept) == 0 {
		return outcome(nil, domain.RetrievalBelowThreshold, nil)
	}
	return outcome(kept, domain.RetrievalOK, nil)
}

func (r *Retriever) fail(reason domain.RetrievalReason, err error) domain.RetrievalOutcome {
	logger.Warn("retrieval %s: %v", reason, err)
	return outcome(nil, reason, err)
}

func outcome(results []domain.RetrievalResult, reason domain.RetrievalReason, err error) domain.RetrievalOutcome {
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	return domain.RetrievalOutcome{Results: results, Reason: reason, Err: err}
}

// truncateRunes cuts s to at most limit characters. Non-positive limits keep s.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
