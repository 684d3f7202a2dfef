package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderLocal is the built-in offline hashing embedder.
	AIProviderLocal AIProvider = "local"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is an OpenAI-compatible cloud API (OpenAI, xAI Grok).
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderLocal:
		return "Local (built-in hashing embedder)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI-compatible (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible hosts).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible hosts).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector index backends.
const (
	// VectorBackendSQLite stores entries in the local SQLite database.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendMemory keeps entries in process memory only.
	VectorBackendMemory VectorBackend = "memory"

	// VectorBackendPostgres stores entries in Postgres with pgvector.
	VectorBackendPostgres VectorBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendSQLite, VectorBackendMemory, VectorBackendPostgres:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend is the index implementation.
	Backend VectorBackend

	// PostgresURL is the connection string for the postgres backend.
	PostgresURL string
}

// RAGSettings holds the retrieval pipeline tunables.
type RAGSettings struct {
	// ChunkSize is the maximum characters per chunk.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by adjacent chunks.
	ChunkOverlap int

	// MaxLookback caps how far back the chunker searches for a sentence boundary.
	MaxLookback int

	// TopK is the number of excerpts retrieved per query.
	TopK int

	// SimilarityThreshold drops excerpts scoring below it.
	SimilarityThreshold float64

	// MaxHistory is the number of prior messages replayed per turn.
	MaxHistory int

	// EmbedBatchSize is the number of chunks per embedding request.
	EmbedBatchSize int

	// EmbedTimeout bounds each embedding call.
	EmbedTimeout time.Duration

	// GenerationTimeout bounds each language model call.
	GenerationTimeout time.Duration

	// MaxTokens caps generated tokens.
	MaxTokens int

	// Temperature controls generation randomness.
	Temperature float64
}

// Validate checks the settings are usable.
// Returns an error wrapping ErrInvalidConfig on failure.
func (r RAGSettings) Validate() error {
	if r.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, r.ChunkSize)
	}
	if r.ChunkOverlap <= 0 {
		return fmt.Errorf("%w: chunk_overlap must be positive, got %d", ErrInvalidConfig, r.ChunkOverlap)
	}
	if r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be less than chunk_size %d",
			ErrInvalidConfig, r.ChunkOverlap, r.ChunkSize)
	}
	if r.MaxLookback <= 0 {
		return fmt.Errorf("%w: max_lookback must be positive, got %d", ErrInvalidConfig, r.MaxLookback)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, r.TopK)
	}
	if r.MaxHistory < 0 {
		return fmt.Errorf("%w: max_history must not be negative, got %d", ErrInvalidConfig, r.MaxHistory)
	}
	if r.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: embed_batch_size must be positive, got %d", ErrInvalidConfig, r.EmbedBatchSize)
	}
	if r.EmbedTimeout <= 0 || r.GenerationTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

// AppSettings holds all application settings.
type AppSettings struct {
	// RAG holds retrieval pipeline settings.
	RAG RAGSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// VectorIndex holds vector index settings.
	VectorIndex VectorIndexSettings
}

// DefaultRAGSettings returns the pipeline defaults.
func DefaultRAGSettings() RAGSettings {
	return RAGSettings{
		ChunkSize:           1000,
		ChunkOverlap:        100,
		MaxLookback:         200,
		TopK:                3,
		SimilarityThreshold: 0.7,
		MaxHistory:          10,
		EmbedBatchSize:      32,
		EmbedTimeout:        10 * time.Second,
		GenerationTimeout:   30 * time.Second,
		MaxTokens:           1000,
		Temperature:         0.7,
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// Embeddings default to the offline local embedder; the LLM is left
// unconfigured, so chat replies are degraded until one is set up.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		RAG: DefaultRAGSettings(),
		Embedding: EmbeddingSettings{
			Provider: AIProviderLocal,
			Model:    DefaultEmbeddingModels()[AIProviderLocal],
		},
		LLM: LLMSettings{},
		VectorIndex: VectorIndexSettings{
			Backend: VectorBackendSQLite,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderLocal,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "hashing-512",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "grok-beta",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Local models
		"hashing-512": 512,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
