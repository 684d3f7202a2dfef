package cli

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/services"
	"github.com/custodia-labs/docchat/internal/postprocessors/chunker"
)

// failingEmbedder rejects every input.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: model offline", domain.ErrEmbedding)
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: model offline", domain.ErrEmbedding)
}

func (failingEmbedder) Dimensions() int            { return 8 }
func (failingEmbedder) ModelName() string          { return "failing" }
func (failingEmbedder) MaxInputChars() int         { return 10000 }
func (failingEmbedder) Ping(context.Context) error { return nil }
func (failingEmbedder) Close() error               { return nil }

// Ingest Command Tests

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [file]...", ingestCmd.Use)
}

func TestIngestCmd_RequiresArgs(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := executeCommand("ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIngestCmd_WaitIndexesFile(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	path := writeFile(t, env.dir, "france.txt", parisText)

	out, err := executeCommand("ingest", "--wait", "--id", "doc-france", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed france.txt (doc-france): 1 chunks")

	doc, err := env.docs.GetDocument(t.Context(), "doc-france")
	require.NoError(t, err)
	assert.True(t, doc.Processed)
	assert.Equal(t, int64(len(parisText)), doc.ByteSize)
}

func TestIngestCmd_SubmitWaitsForBackground(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	a := writeFile(t, env.dir, "a.txt", "Alpha document text.")
	b := writeFile(t, env.dir, "b.md", "# Beta\n\nBeta document text.")

	out, err := executeCommand("ingest", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted a.txt")
	assert.Contains(t, out, "Submitted b.md")

	docs, err := env.docs.ListDocuments(t.Context())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.True(t, d.Processed, d.Filename)
	}
}

func TestIngestCmd_SubmitReportsBackgroundFailure(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	rag := domain.DefaultRAGSettings()
	ch, err := chunker.New(chunker.WithChunkSize(rag.ChunkSize), chunker.WithOverlap(rag.ChunkOverlap))
	require.NoError(t, err)
	ingestionService = services.NewIngestionService(env.docs, env.index, failingEmbedder{}, ch, rag)

	path := writeFile(t, env.dir, "broken.txt", parisText)

	out, err := executeCommand("ingest", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
	assert.Contains(t, out, "Submitted broken.txt")
	assert.Contains(t, out, "Failed broken.txt")

	docs, err := env.docs.ListDocuments(t.Context())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.False(t, docs[0].Processed)
	assert.Contains(t, docs[0].Error, "model offline")
}

func TestIngestCmd_UnsupportedFileFails(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	path := writeFile(t, env.dir, "image.png", "not text")

	out, err := executeCommand("ingest", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
	assert.Contains(t, out, "Skipping")
}

func TestIngestCmd_IDWithManyFiles(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	a := writeFile(t, env.dir, "a.txt", "a")
	b := writeFile(t, env.dir, "b.txt", "b")

	_, err := executeCommand("ingest", "--id", "x", a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--id can only be used with a single file")
}

// Documents Command Tests

func TestDocumentsCmd_Empty(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	out, err := executeCommand("documents")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents ingested.")
}

func TestDocumentsCmd_ListsStatus(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	path := writeFile(t, env.dir, "france.txt", parisText)
	_, err := executeCommand("ingest", "--wait", "--id", "doc-france", path)
	require.NoError(t, err)

	out, err := executeCommand("documents")
	require.NoError(t, err)
	assert.Contains(t, out, "doc-france")
	assert.Contains(t, out, "File: france.txt")
	assert.Contains(t, out, "Status: processed, 1 chunks")
	assert.Contains(t, out, "Total: 1 documents")
}

// Delete Command Tests

func TestDeleteCmd_RequiresExactlyOneArg(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := executeCommand("delete")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestDeleteCmd_RemovesDocument(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	path := writeFile(t, env.dir, "france.txt", parisText)
	_, err := executeCommand("ingest", "--wait", "--id", "doc-france", path)
	require.NoError(t, err)

	out, err := executeCommand("delete", "doc-france")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted document doc-france (1 index entries removed)")

	count, err := env.index.Count(t.Context())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteCmd_NotFound(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := executeCommand("delete", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found: missing")
}
