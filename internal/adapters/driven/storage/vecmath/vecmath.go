// Package vecmath holds the exact cosine ranking shared by the vector index adapters.
package vecmath

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b.
// Zero-magnitude or mismatched vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Candidate is an index entry scored against a query.
// Candidates must be passed to Rank in insertion order.
type Candidate struct {
	Entry      domain.IndexEntry
	Similarity float64
}

// Rank returns the topK candidates by similarity descending.
// Equal scores keep insertion order.
func Rank(cands []Candidate, topK int) []domain.RetrievalResult {
	if topK <= 0 || len(cands) == 0 {
		return []domain.RetrievalResult{}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Similarity > cands[j].Similarity
	})
	if topK > len(cands) {
		topK = len(cands)
	}

	results := make([]domain.RetrievalResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = domain.RetrievalResult{
			Content:    cands[i].Entry.Text,
			Similarity: cands[i].Similarity,
			Metadata:   cands[i].Entry.Metadata,
		}
	}
	return results
}

// CheckDims requires every entry to share one dimensionality, equal to
// base when base is non-zero. Returns the resulting dimensionality.
func CheckDims(entries []domain.IndexEntry, base int) (int, error) {
	dims := base
	for _, e := range entries {
		if dims == 0 {
			dims = len(e.Embedding)
		}
		if dims == 0 || len(e.Embedding) != dims {
			return 0, fmt.Errorf("%w: entry %s has %d dimensions, expected %d",
				domain.ErrIndex, e.Key, len(e.Embedding), dims)
		}
	}
	return dims, nil
}

// CheckOwner requires every entry to belong to documentID.
func CheckOwner(documentID string, entries []domain.IndexEntry) error {
	for _, e := range entries {
		if e.Metadata.DocumentID != documentID {
			return fmt.Errorf("%w: entry %s does not belong to document %s", domain.ErrIndex, e.Key, documentID)
		}
	}
	return nil
}
