package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex using
// brute-force cosine similarity. Entries are kept in insertion order.
type VectorIndex struct {
	mu      sync.RWMutex
	dims    int
	entries []domain.IndexEntry
	byKey   map[string]int
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		byKey: make(map[string]int),
	}
}

// Add upserts entries.
func (v *VectorIndex) Add(_ context.Context, entries []domain.IndexEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	base := 0
	if len(v.entries) > 0 {
		base = v.dims
	}
	dims, err := vecmath.CheckDims(entries, base)
	if err != nil {
		return err
	}
	v.dims = dims
	v.upsert(entries)
	return nil
}

// Query returns the topK most similar entries.
func (v *VectorIndex) Query(_ context.Context, embedding []float32, topK int) ([]domain.RetrievalResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.dims > 0 && len(embedding) != v.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrIndex, len(embedding), v.dims)
	}

	cands := make([]vecmath.Candidate, len(v.entries))
	for i, e := range v.entries {
		cands[i] = vecmath.Candidate{Entry: e, Similarity: vecmath.Cosine(embedding, e.Embedding)}
	}
	return vecmath.Rank(cands, topK), nil
}

// DeleteByDocument removes every entry of the document.
func (v *VectorIndex) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.removeDocument(documentID), nil
}

// ReplaceDocument swaps the document's entries in one critical section.
func (v *VectorIndex) ReplaceDocument(_ context.Context, documentID string, entries []domain.IndexEntry) error {
	if err := vecmath.CheckOwner(documentID, entries); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	base := 0
	for _, e := range v.entries {
		if e.Metadata.DocumentID != documentID {
			base = v.dims
			break
		}
	}
	dims, err := vecmath.CheckDims(entries, base)
	if err != nil {
		return err
	}

	v.removeDocument(documentID)
	v.dims = dims
	v.upsert(entries)
	return nil
}

// Count returns the total number of entries.
func (v *VectorIndex) Count(_ context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries), nil
}

// Close releases resources (no-op for memory index).
func (v *VectorIndex) Close() error {
	return nil
}

// upsert writes entries in place or appends them (caller must hold lock).
func (v *VectorIndex) upsert(entries []domain.IndexEntry) {
	for _, e := range entries {
		e.Embedding = append([]float32(nil), e.Embedding...)
		if pos, ok := v.byKey[e.Key]; ok {
			v.entries[pos] = e
			continue
		}
		v.byKey[e.Key] = len(v.entries)
		v.entries = append(v.entries, e)
	}
}

// removeDocument drops the document's entries and reindexes keys (caller must hold lock).
func (v *VectorIndex) removeDocument(documentID string) int {
	kept := v.entries[:0]
	removed := 0
	for _, e := range v.entries {
		if e.Metadata.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0
	}
	// Clear the tail so dropped embeddings can be collected.
	for i := len(kept); i < len(v.entries); i++ {
		v.entries[i] = domain.IndexEntry{}
	}
	v.entries = kept
	v.byKey = make(map[string]int, len(kept))
	for i, e := range kept {
		v.byKey[e.Key] = i
	}
	return removed
}
