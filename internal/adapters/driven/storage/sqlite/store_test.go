package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "docchat-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// fakeClock returns strictly increasing timestamps.
func fakeClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func entry(docID string, ord int, emb ...float32) domain.IndexEntry {
	text := fmt.Sprintf("%s chunk %d", docID, ord)
	return domain.IndexEntry{
		Key:       domain.ChunkKey(docID, ord),
		Embedding: emb,
		Text:      text,
		Metadata: domain.ChunkMetadata{
			DocumentID: docID,
			Filename:   docID + ".txt",
			Ordinal:    ord,
			TextLength: len(text),
		},
	}
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "docchat-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "docchat.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "docchat-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	nestedDir := filepath.Join(tempDir, "nested", "path", "to", "db")
	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var version int
	err := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	for _, table := range []string{"documents", "index_entries", "sessions", "messages"} {
		var exists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "table %s should exist", table)
	}
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.VectorIndex().Add(ctx, []domain.IndexEntry{entry("d1", 0, 1, 0)}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(tempDir)
	require.NoError(t, err)
	defer reopened.Close()

	var rows int
	require.NoError(t, reopened.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&rows))
	assert.Equal(t, 1, rows)

	count, err := reopened.VectorIndex().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var fkEnabled int
	require.NoError(t, store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled))
	assert.Equal(t, 1, fkEnabled)
}

func TestStore_Close(t *testing.T) {
	store, _ := setupTestStore(t)

	assert.NoError(t, store.Close())
	assert.Error(t, store.db.Ping())
}

// ==================== Helper Tests ====================

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 500, time.UTC)
	b := time.Date(2024, 1, 1, 0, 0, 0, 1000000, time.UTC)
	assert.Less(t, formatTime(a), formatTime(b))

	parsed, err := parseTime(formatTime(a))
	require.NoError(t, err)
	assert.True(t, a.Equal(parsed))
}

// ==================== Document Store Tests ====================

func TestDocumentStore_Lifecycle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	doc, err := domain.NewDocument("doc-1", "notes.txt", 120)
	require.NoError(t, err)
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.Filename)
	assert.Equal(t, int64(120), got.ByteSize)
	assert.False(t, got.Processed)
	assert.Nil(t, got.ChunkCount)
	assert.True(t, doc.UploadedAt.Equal(got.UploadedAt))

	require.NoError(t, docs.MarkFailed(ctx, "doc-1", "boom"))
	got, err = docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status())
	assert.Equal(t, "boom", got.Error)

	require.NoError(t, docs.MarkProcessed(ctx, "doc-1", 4))
	got, err = docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, got.Processed)
	require.NotNil(t, got.ChunkCount)
	assert.Equal(t, 4, *got.ChunkCount)
	assert.Empty(t, got.Error)

	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))
	_, err = docs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	_, err := docs.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, docs.DeleteDocument(ctx, "missing"), domain.ErrNotFound)
	assert.ErrorIs(t, docs.MarkProcessed(ctx, "missing", 1), domain.ErrNotFound)
	assert.ErrorIs(t, docs.MarkFailed(ctx, "missing", "x"), domain.ErrNotFound)
	assert.ErrorIs(t, docs.SaveDocument(ctx, nil), domain.ErrInvalidInput)
}

func TestDocumentStore_ListNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		doc := &domain.Document{ID: id, Filename: id + ".md", UploadedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, docs.SaveDocument(ctx, doc))
	}

	list, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
}

// ==================== Vector Index Tests ====================

func TestVectorIndex_AddQuery(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	idx := store.VectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("d1", 0, 1, 0),
		entry("d1", 1, 0, 1),
		entry("d2", 0, 1, 1),
	}))

	results, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "d1 chunk 0", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Equal(t, "d1.txt", results[0].Metadata.Filename)
	assert.Equal(t, "d2", results[1].Metadata.DocumentID)
	assert.InDelta(t, 0.7071, results[1].Similarity, 1e-3)
}

func TestVectorIndex_UpsertKeepsPosition(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	idx := store.VectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{entry("d1", 0, 1, 0), entry("d2", 0, 1, 0)}))
	updated := entry("d1", 0, 1, 0)
	updated.Text = "rewritten"
	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{updated}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "rewritten", results[0].Content)
	assert.Equal(t, "d2", results[1].Metadata.DocumentID)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	idx := store.VectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{entry("d1", 0, 1, 0)}))
	assert.ErrorIs(t, idx.Add(ctx, []domain.IndexEntry{entry("d2", 0, 1, 0, 0)}), domain.ErrIndex)

	_, err := idx.Query(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrIndex)
}

func TestVectorIndex_DeleteAndReplace(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	idx := store.VectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("d1", 0, 1, 0),
		entry("d1", 1, 1, 0),
		entry("d2", 0, 0, 1),
	}))

	require.NoError(t, idx.ReplaceDocument(ctx, "d1", []domain.IndexEntry{entry("d1", 0, 1, 1)}))
	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = idx.ReplaceDocument(ctx, "d1", []domain.IndexEntry{entry("d1", 0, 1, 1, 1)})
	assert.ErrorIs(t, err, domain.ErrIndex)
	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "failed replace must leave the index untouched")

	removed, err := idx.DeleteByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = idx.DeleteByDocument(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestVectorIndex_ConcurrentWrites(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	idx := store.VectorIndex()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			doc := fmt.Sprintf("doc-%d", n)
			assert.NoError(t, idx.ReplaceDocument(ctx, doc, []domain.IndexEntry{entry(doc, 0, 1, 0), entry(doc, 1, 0, 1)}))
		}(i)
	}
	wg.Wait()

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

// ==================== Conversation Store Tests ====================

func TestConversationStore_AppendGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	conv := store.ConversationStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := conv.Append(ctx, "s1", domain.RoleUser, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	all, err := conv.Get(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "m0", all[0].Content)

	last, err := conv.Get(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "m2", last[0].Content)
	assert.Equal(t, "m3", last[1].Content)

	none, err := conv.Get(ctx, "unknown", 5)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConversationStore_ClearAndList(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	store.now = fakeClock()
	conv := store.ConversationStore()
	ctx := context.Background()

	_, err := conv.Append(ctx, "older", domain.RoleUser, "a")
	require.NoError(t, err)
	_, err = conv.Append(ctx, "newer", domain.RoleUser, "b")
	require.NoError(t, err)
	_, err = conv.Append(ctx, "newer", domain.RoleAssistant, "c")
	require.NoError(t, err)

	sessions, err := conv.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].ID)
	assert.Equal(t, 2, sessions[0].MessageCount)
	assert.Equal(t, "older", sessions[1].ID)
	assert.Equal(t, 1, sessions[1].MessageCount)

	require.NoError(t, conv.Clear(ctx, "newer"))
	require.NoError(t, conv.Clear(ctx, "never-existed"))

	msgs, err := conv.Get(ctx, "newer", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	sessions, err = conv.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "older", sessions[0].ID)
}

func TestConversationStore_InvalidRole(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.ConversationStore().Append(context.Background(), "s1", domain.Role("system"), "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
