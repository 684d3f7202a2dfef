package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driven/embedding/local"
	"github.com/custodia-labs/docchat/internal/adapters/driven/extract"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/services"
	"github.com/custodia-labs/docchat/internal/logger"
	"github.com/custodia-labs/docchat/internal/postprocessors/chunker"
)

const parisText = "Paris is the capital of France. It is known for the Eiffel Tower."

// testServices exposes the stores behind the wired services.
type testServices struct {
	docs      *memory.DocumentStore
	index     *memory.VectorIndex
	ingestion *services.IngestionService
	dir       string
}

// setupTestServices wires real services over in-memory adapters and
// resets every flag so tests do not leak state into each other.
func setupTestServices(t *testing.T) (*testServices, func()) {
	t.Helper()

	rag := domain.DefaultRAGSettings()
	rag.SimilarityThreshold = -1

	ch, err := chunker.New(chunker.WithChunkSize(rag.ChunkSize), chunker.WithOverlap(rag.ChunkOverlap))
	require.NoError(t, err)

	embedder := local.NewEmbeddingService(0)
	docs := memory.NewDocumentStore()
	index := memory.NewVectorIndex()
	ingestion := services.NewIngestionService(docs, index, embedder, ch, rag)
	retriever := services.NewRetriever(embedder, index, rag.EmbedTimeout)
	chat := services.NewChatService(retriever, services.NewContextBuilder(nil),
		memory.NewConversationStore(), nil, rag)

	SetServices(&Services{
		Ingestion: ingestion,
		Chat:      chat,
		Retriever: retriever,
		Settings:  services.NewSettingsService(memory.NewConfigStore(), nil),
		Extractor: extract.NewDefaultRegistry(),
		RAG:       rag,
	})
	resetFlags(rootCmd)

	return &testServices{docs: docs, index: index, ingestion: ingestion, dir: t.TempDir()}, func() {
		ingestion.Wait()
		SetServices(nil)
		resetFlags(rootCmd)
	}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(args ...string) (string, error) {
	return executeCommandContext(context.Background(), args...)
}

func executeCommandContext(ctx context.Context, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()
	setContext(ctx, rootCmd)

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// setContext replaces the context cobra keeps on each command after its
// first run, so every execution sees the caller's context.
func setContext(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContext(ctx, sub)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Root Command Tests

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "docchat", rootCmd.Use)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{
		"ingest", "documents", "delete", "ask", "retrieve", "history",
		"clear", "sessions", "watch", "settings", "mcp", "version",
	} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("data-dir"))
}

func TestSetServices_NilResetsDefaults(t *testing.T) {
	SetServices(nil)
	assert.Nil(t, ingestionService)
	assert.Nil(t, chatService)
	assert.Equal(t, domain.DefaultRAGSettings(), ragSettings)
}

func TestCommands_WithoutServices(t *testing.T) {
	SetServices(nil)
	defer resetFlags(rootCmd)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"documents"}, "ingestion service not configured"},
		{[]string{"ask", "hi"}, "chat service not configured"},
		{[]string{"retrieve", "hi"}, "retriever not configured"},
		{[]string{"sessions"}, "chat service not configured"},
		{[]string{"settings"}, "settings service not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := executeCommand(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

type ctxKey struct{}

func TestExecuteCommandContext_FreshContextPerRun(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := executeCommand("version")
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "second")
	_, err = executeCommandContext(ctx, "version")
	require.NoError(t, err)

	assert.Equal(t, "second", versionCmd.Context().Value(ctxKey{}))
}

func TestBootstrap(t *testing.T) {
	defer logger.SetVerbose(false)
	defer SetBootstrap(nil)
	defer SetServices(nil)
	defer resetFlags(rootCmd)

	var got Options
	cleaned := false
	SetBootstrap(func(_ context.Context, opts Options) (*Services, func(), error) {
		got = opts
		return &Services{Ingestion: &services.IngestionService{}}, func() { cleaned = true }, nil
	})

	dir := t.TempDir()
	_, _ = executeCommand("--data-dir", dir, "--verbose", "sessions")
	assert.Equal(t, Options{DataDir: dir, Verbose: true}, got)

	runCleanup()
	assert.True(t, cleaned)
}

func TestBootstrap_SkippedForVersion(t *testing.T) {
	defer SetBootstrap(nil)
	defer resetFlags(rootCmd)

	called := false
	SetBootstrap(func(_ context.Context, _ Options) (*Services, func(), error) {
		called = true
		return &Services{}, nil, nil
	})

	_, err := executeCommand("version")
	require.NoError(t, err)
	assert.False(t, called)
}
