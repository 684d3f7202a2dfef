// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docchat/internal/adapters/driven/embedding/cache"
	localembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/retry"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Options tunes the adapters built by this package.
type Options struct {
	// Retry is the retry policy for hosted and Ollama calls.
	Retry retry.Config

	// CacheTTL is how long query embeddings are cached. Zero uses the
	// cache default; negative disables caching.
	CacheTTL time.Duration
}

// DefaultOptions returns the default adapter options.
func DefaultOptions() Options {
	return Options{Retry: retry.DefaultConfig()}
}

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService // Nil when no LLM is configured.
	Warnings         []string          // Non-fatal issues worth telling the user.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise builds the embedding and LLM services from settings.
// No connectivity check is made: provider outages surface per call as
// failed retrievals or degraded replies.
func Initialise(settings *domain.AppSettings, opts Options) (*InitResult, error) {
	embedder, err := CreateEmbeddingService(&settings.Embedding, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'docchat settings' to check the embedding provider",
			domain.ErrEmbeddingUnavailable, err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: provider %q is not configured",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}
	if settings.RAG.ChunkSize > embedder.MaxInputChars() {
		embedder.Close()
		return nil, fmt.Errorf("%w: chunk_size %d exceeds the %s input limit of %d characters",
			domain.ErrInvalidConfig, settings.RAG.ChunkSize, embedder.ModelName(), embedder.MaxInputChars())
	}

	result := &InitResult{EmbeddingService: embedder}

	llm, err := CreateLLMService(&settings.LLM, opts)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("LLM provider %s unusable (%v); answers will be excerpts only", settings.LLM.Provider, err))
	case llm == nil:
		result.Warnings = append(result.Warnings, "no LLM provider configured; answers will be excerpts only")
	default:
		result.LLMService = llm
	}

	return result, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings, opts Options) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings, opts)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings, opts Options) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings, opts)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Remote providers are wrapped in a query embedding cache.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings, opts Options) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderLocal:
		// Hashing is cheaper than a cache lookup.
		return createLocalEmbedding(settings), nil

	case domain.AIProviderOllama:
		svc = createOllamaEmbedding(settings, opts)

	case domain.AIProviderOpenAI:
		svc, err = createOpenAIEmbedding(settings, opts)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheTTL < 0 {
		return svc, nil
	}
	return cache.New(svc, opts.CacheTTL), nil
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings, opts Options) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings, opts), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings, opts)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings, opts)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// createLocalEmbedding creates the built-in hashing embedder.
func createLocalEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return localembed.NewEmbeddingService(domain.EmbeddingDimensions()[settings.Model])
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings, opts Options) driven.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
		Retry:      opts.Retry,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings, opts Options) (driven.EmbeddingService, error) {
	dimensions := domain.EmbeddingDimensions()[settings.Model]

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
		Retry:      opts.Retry,
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings, opts Options) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Retry:   opts.Retry,
	})
}

// createOpenAILLM creates an OpenAI-compatible LLM service.
func createOpenAILLM(settings *domain.LLMSettings, opts Options) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Retry:   opts.Retry,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings, opts Options) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Retry:   opts.Retry,
	})
}
