// Package cache provides an EmbeddingService decorator that memoises
// embeddings in process, so repeated queries skip the provider call.
package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultTTL             = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// EmbeddingService wraps another EmbeddingService with a TTL cache keyed
// by model name and text.
type EmbeddingService struct {
	next  driven.EmbeddingService
	items *gocache.Cache
}

// New wraps next. A non-positive ttl uses DefaultTTL.
func New(next driven.EmbeddingService, ttl time.Duration) *EmbeddingService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EmbeddingService{
		next:  next,
		items: gocache.New(ttl, DefaultCleanupInterval),
	}
}

// Embed returns the cached embedding or computes and stores it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := s.key(text)
	if v, ok := s.items.Get(key); ok {
		return clone(v.([]float32)), nil
	}
	emb, err := s.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.items.SetDefault(key, clone(emb))
	return emb, nil
}

// EmbedBatch serves hits from the cache and embeds the misses in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := s.items.Get(s.key(text)); ok {
			out[i] = clone(v.([]float32))
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	embs, err := s.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embs) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbedding, len(embs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = embs[j]
		s.items.SetDefault(s.key(missTexts[j]), clone(embs[j]))
	}
	return out, nil
}

// Len returns the number of cached embeddings.
func (s *EmbeddingService) Len() int {
	return s.items.ItemCount()
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int { return s.next.Dimensions() }

// ModelName returns the wrapped service's model name.
func (s *EmbeddingService) ModelName() string { return s.next.ModelName() }

// MaxInputChars returns the wrapped service's input limit.
func (s *EmbeddingService) MaxInputChars() int { return s.next.MaxInputChars() }

// Ping checks the wrapped service.
func (s *EmbeddingService) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close flushes the cache and closes the wrapped service.
func (s *EmbeddingService) Close() error {
	s.items.Flush()
	return s.next.Close()
}

func (s *EmbeddingService) key(text string) string {
	return s.next.ModelName() + "\x00" + text
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}
