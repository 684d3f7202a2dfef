package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// Chunker splits document text into ordered chunks.
type Chunker interface {
	Chunk(doc *domain.Document, text string) ([]domain.Chunk, error)
}

// IngestionService chunks, embeds and indexes documents.
// At most one processing run per document id is active at a time.
type IngestionService struct {
	docs     driven.DocumentStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	chunker  Chunker

	batchSize    int
	embedTimeout time.Duration

	locks *keyedMutex
	wg    sync.WaitGroup
}

// NewIngestionService creates an ingestion service.
// Batch size and embed timeout come from rag; zero values use the defaults.
func NewIngestionService(
	docs driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	chunker Chunker,
	rag domain.RAGSettings,
) *IngestionService {
	defaults := domain.DefaultRAGSettings()
	if rag.EmbedBatchSize <= 0 {
		rag.EmbedBatchSize = defaults.EmbedBatchSize
	}
	if rag.EmbedTimeout <= 0 {
		rag.EmbedTimeout = defaults.EmbedTimeout
	}
	return &IngestionService{
		docs:         docs,
		index:        index,
		embedder:     embedder,
		chunker:      chunker,
		batchSize:    rag.EmbedBatchSize,
		embedTimeout: rag.EmbedTimeout,
		locks:        newKeyedMutex(),
	}
}

// Submit saves the record as pending and processes it in the background.
// The background run is detached from ctx cancellation.
func (s *IngestionService) Submit(ctx context.Context, doc *domain.Document, text string) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	pending := *doc
	pending.Processed = false
	pending.ChunkCount = nil
	pending.Error = ""
	if err := s.docs.SaveDocument(ctx, &pending); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Process(bg, &pending, text); err != nil {
			logger.Error("ingest %s (%s): %v", pending.ID, pending.Filename, err)
		}
	}()
	return nil
}

// Process runs chunk, embed and index synchronously.
func (s *IngestionService) Process(ctx context.Context, doc *domain.Document, text string) (int, error) {
	if err := validateDocument(doc); err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(doc.ID)
	defer unlock()

	logger.Section("Ingestion")
	logger.Debug("Document: %s (%s), %d bytes", doc.ID, doc.Filename, doc.ByteSize)

	if err := s.ensureRecord(ctx, doc); err != nil {
		return 0, err
	}

	n, err := s.indexDocument(ctx, doc, text)
	if err != nil {
		if markErr := s.docs.MarkFailed(ctx, doc.ID, err.Error()); markErr != nil {
			logger.Warn("mark %s failed: %v", doc.ID, markErr)
		}
		return 0, err
	}

	if err := s.docs.MarkProcessed(ctx, doc.ID, n); err != nil {
		return 0, fmt.Errorf("mark %s processed: %w", doc.ID, err)
	}
	logger.Info("Indexed %s: %d chunks", doc.Filename, n)
	return n, nil
}

// ensureRecord upserts doc as pending so re-ingests replace a stale
// filename and size. An existing record keeps its upload time.
func (s *IngestionService) ensureRecord(ctx context.Context, doc *domain.Document) error {
	record := *doc
	record.Processed = false
	record.ChunkCount = nil
	record.Error = ""

	existing, err := s.docs.GetDocument(ctx, doc.ID)
	switch {
	case err == nil:
		if !existing.UploadedAt.IsZero() {
			record.UploadedAt = existing.UploadedAt
		}
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("load document %s: %w", doc.ID, err)
	}

	if err := s.docs.SaveDocument(ctx, &record); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *IngestionService) indexDocument(ctx context.Context, doc *domain.Document, text string) (int, error) {
	chunks, err := s.chunker.Chunk(doc, text)
	if err != nil {
		return 0, err
	}
	logger.Debug("Chunks: %d", len(chunks))

	if len(chunks) > 0 {
		if err := s.embed(ctx, chunks); err != nil {
			return 0, err
		}
	}

	entries := make([]domain.IndexEntry, 0, len(chunks))
	for _, c := range chunks {
		entry, err := domain.NewIndexEntry(c, doc.Filename)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrIndex, err)
		}
		entries = append(entries, entry)
	}

	if err := s.index.ReplaceDocument(ctx, doc.ID, entries); err != nil {
		return 0, wrapIndexErr(err)
	}
	return len(entries), nil
}

// embed fills in chunk embeddings batch by batch.
func (s *IngestionService) embed(ctx context.Context, chunks []domain.Chunk) error {
	if s.embedder == nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbedding, domain.ErrEmbeddingUnavailable)
	}

	limit := s.embedder.MaxInputChars()
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); limit > 0 && n > limit {
			return fmt.Errorf("%w: chunk %d has %d characters, model accepts %d",
				domain.ErrEmbedding, c.Ordinal, n, limit)
		}
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := s.embedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrEmbedding, len(vectors), len(texts))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
		logger.Debug("Embedded chunks %d-%d", start, end-1)
	}
	return nil
}

func (s *IngestionService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return vectors, nil
}

// Get returns a document record.
func (s *IngestionService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.docs.GetDocument(ctx, id)
}

// List returns every document record.
func (s *IngestionService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docs.ListDocuments(ctx)
}

// Delete removes the document's index entries and its record.
func (s *IngestionService) Delete(ctx context.Context, id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	removed, err := s.index.DeleteByDocument(ctx, id)
	if err != nil {
		return 0, wrapIndexErr(err)
	}

	err = s.docs.DeleteDocument(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound) && removed > 0:
		logger.Debug("Document %s had index entries but no record", id)
	case err != nil:
		return removed, err
	}
	logger.Info("Deleted %s: %d index entries", id, removed)
	return removed, nil
}

// Wait blocks until background processing has drained.
func (s *IngestionService) Wait() {
	s.wg.Wait()
}

func validateDocument(doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.Filename) == "" {
		return fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	return nil
}

func wrapIndexErr(err error) error {
	if errors.Is(err, domain.ErrIndex) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrIndex, err)
}
