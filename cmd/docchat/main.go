// Command docchat chats with local documents through a retrieval pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/docchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/docchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docchat/internal/adapters/driven/extract"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/docchat/internal/config"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/services"
	"github.com/custodia-labs/docchat/internal/logger"
	"github.com/custodia-labs/docchat/internal/postprocessors/chunker"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync() //nolint:errcheck // best effort flush on exit

	cli.SetBootstrap(bootstrap)
	cli.SetSettingKeys(services.SettingKeys)

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

// bootstrap is the composition root: it layers configuration and wires
// adapters into services.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func(), error) {
	env, err := config.Load("")
	if err != nil {
		return nil, nil, err
	}
	logger.SetVerbose(opts.Verbose || env.Verbose)

	root, err := resolveRoot(opts.DataDir, env.DataDir)
	if err != nil {
		return nil, nil, err
	}
	logger.Section("Startup")
	logger.Debug("Data directory: %s", root)

	configStore, err := file.NewConfigStore(root)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}

	aiOpts := ai.Options{Retry: env.Retry, CacheTTL: env.CacheTTL}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator(aiOpts))

	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService}, func() {}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}
	if err := env.Apply(settings); err != nil {
		return nil, nil, err
	}
	if err := settings.RAG.Validate(); err != nil {
		return nil, nil, err
	}

	store, err := sqlite.NewStore(filepath.Join(root, "data"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	closers := []func(){func() { _ = store.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	index, closeIndex, err := openVectorIndex(ctx, settings.VectorIndex, store)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if closeIndex != nil {
		closers = append(closers, closeIndex)
	}

	var embedder driven.EmbeddingService
	var llm driven.LLMService
	aiResult, err := ai.Initialise(settings, aiOpts)
	if err != nil {
		logger.Error("%v", err)
	} else {
		embedder = aiResult.EmbeddingService
		llm = aiResult.LLMService
		for _, w := range aiResult.Warnings {
			logger.Warn("%s", w)
		}
		closers = append(closers, aiResult.Close)
	}

	prompts, err := file.NewPromptStore(filepath.Join(root, "prompts"))
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("opening prompts: %w", err)
	}

	rag := settings.RAG
	ch, err := chunker.New(
		chunker.WithChunkSize(rag.ChunkSize),
		chunker.WithOverlap(rag.ChunkOverlap),
		chunker.WithMaxLookback(rag.MaxLookback),
	)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	ingestion := services.NewIngestionService(store.DocumentStore(), index, embedder, ch, rag)
	retriever := services.NewRetriever(embedder, index, rag.EmbedTimeout)
	chat := services.NewChatService(retriever, services.NewContextBuilder(prompts),
		store.ConversationStore(), llm, rag)

	cleanup := func() {
		ingestion.Wait()
		closeAll()
	}

	return &cli.Services{
		Ingestion: ingestion,
		Chat:      chat,
		Retriever: retriever,
		Settings:  settingsService,
		Extractor: extract.NewDefaultRegistry(),
		RAG:       rag,
	}, cleanup, nil
}

// resolveRoot picks the docchat directory: flag, then env, then ~/.docchat.
func resolveRoot(flagDir, envDir string) (string, error) {
	for _, dir := range []string{flagDir, envDir} {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".docchat"), nil
}

// openVectorIndex selects the configured backend. The returned close func is
// nil when the index shares the sqlite store's lifetime.
func openVectorIndex(
	ctx context.Context, cfg domain.VectorIndexSettings, store *sqlite.Store,
) (driven.VectorIndex, func(), error) {
	switch cfg.Backend {
	case domain.VectorBackendMemory:
		return memory.NewVectorIndex(), nil, nil
	case domain.VectorBackendPostgres:
		idx, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres index: %w", err)
		}
		return idx, func() { _ = idx.Close() }, nil
	default:
		return store.VectorIndex(), nil, nil
	}
}
