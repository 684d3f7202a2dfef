package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// mockEmbedder returns fixed vectors keyed by text, or a constant vector.
type mockEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	maxChars int
	delay    time.Duration
	batches  [][]string
	queries  []string
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		vectors:  make(map[string][]float32),
		fallback: []float32{1, 0, 0},
		maxChars: 10000,
	}
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return m.fallback
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return len(m.fallback) }
func (m *mockEmbedder) ModelName() string            { return "mock" }
func (m *mockEmbedder) MaxInputChars() int           { return m.maxChars }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// failingIndex wraps a real index and fails selected operations.
type failingIndex struct {
	driven.VectorIndex
	queryErr   error
	replaceErr error
	deleteErr  error
}

func (f *failingIndex) Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievalResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.VectorIndex.Query(ctx, embedding, topK)
}

func (f *failingIndex) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.VectorIndex.ReplaceDocument(ctx, documentID, entries)
}

func (f *failingIndex) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.VectorIndex.DeleteByDocument(ctx, documentID)
}

// failingConversation wraps a real store and fails selected operations.
type failingConversation struct {
	driven.ConversationStore
	appendErr error
	getErr    error
}

func (f *failingConversation) Append(
	ctx context.Context, sessionID string, role domain.Role, content string,
) (*domain.Message, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	return f.ConversationStore.Append(ctx, sessionID, role, content)
}

func (f *failingConversation) Get(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.ConversationStore.Get(ctx, sessionID, limit)
}

// mockLLM returns a fixed completion, an error, or blocks until ctx is done.
type mockLLM struct {
	mu       sync.Mutex
	content  string
	tokens   int
	err      error
	block    bool
	calls    int
	messages []driven.ChatMessage
	opts     driven.ChatOptions
}

func (m *mockLLM) Chat(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions,
) (*driven.Generation, error) {
	m.mu.Lock()
	m.calls++
	m.messages = messages
	m.opts = opts
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &driven.Generation{Content: m.content, TokenUsage: m.tokens}, nil
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockPromptStore serves prompts from a map.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", errors.New("prompt not found")
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// mockValidator records validation calls.
type mockValidator struct {
	embeddingErr error
	llmErr       error
	embedding    *domain.EmbeddingSettings
	llm          *domain.LLMSettings
}

func (m *mockValidator) ValidateEmbedding(cfg *domain.EmbeddingSettings) error {
	m.embedding = cfg
	return m.embeddingErr
}

func (m *mockValidator) ValidateLLM(cfg *domain.LLMSettings) error {
	m.llm = cfg
	return m.llmErr
}

// fixedChunker splits on a separator.
type fixedChunker struct {
	err error
}

func (c fixedChunker) Chunk(doc *domain.Document, text string) ([]domain.Chunk, error) {
	if c.err != nil {
		return nil, c.err
	}
	var chunks []domain.Chunk
	for i, part := range splitNonEmpty(text, "|") {
		chunks = append(chunks, domain.Chunk{DocumentID: doc.ID, Ordinal: i, Text: part})
	}
	return chunks, nil
}

func splitNonEmpty(text, sep string) []string {
	var out []string
	for _, part := range strings.Split(text, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
