// Package config overlays environment variables onto persisted settings.
//
// Variables use the DOCCHAT_ prefix and may come from a .env file in the
// working directory. An unset variable leaves the underlying value alone.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/retry"
)

// Prefix is prepended to every variable name.
const Prefix = "DOCCHAT_"

// grokKeyVar is honoured as the LLM API key when DOCCHAT_LLM_API_KEY is unset.
const grokKeyVar = "GROK_API_KEY"

// Env is the set of recognised variables. Pointer fields stay nil when unset.
type Env struct {
	DataDir string `env:"DATA_DIR"`
	Verbose bool   `env:"VERBOSE"`

	RAG       RAGEnv      `envPrefix:"RAG_"`
	Embedding ProviderEnv `envPrefix:"EMBEDDING_"`
	LLM       ProviderEnv `envPrefix:"LLM_"`

	VectorBackend *string `env:"VECTOR_BACKEND"`
	PostgresURL   *string `env:"POSTGRES_URL"`

	Retry retry.Config `envPrefix:"RETRY_"`

	// CacheTTL is how long query embeddings are cached. Negative disables it.
	CacheTTL time.Duration `env:"EMBEDDING_CACHE_TTL" envDefault:"10m"`
}

// RAGEnv overrides pipeline tunables.
type RAGEnv struct {
	ChunkSize           *int           `env:"CHUNK_SIZE"`
	ChunkOverlap        *int           `env:"CHUNK_OVERLAP"`
	MaxLookback         *int           `env:"MAX_LOOKBACK"`
	TopK                *int           `env:"TOP_K"`
	SimilarityThreshold *float64       `env:"SIMILARITY_THRESHOLD"`
	MaxHistory          *int           `env:"MAX_HISTORY"`
	EmbedBatchSize      *int           `env:"EMBED_BATCH_SIZE"`
	EmbedTimeout        *time.Duration `env:"EMBED_TIMEOUT"`
	GenerationTimeout   *time.Duration `env:"GENERATION_TIMEOUT"`
	MaxTokens           *int           `env:"MAX_TOKENS"`
	Temperature         *float64       `env:"TEMPERATURE"`
}

// ProviderEnv overrides an AI provider block.
type ProviderEnv struct {
	Provider *string `env:"PROVIDER"`
	Model    *string `env:"MODEL"`
	BaseURL  *string `env:"BASE_URL"`
	APIKey   *string `env:"API_KEY"`
}

// Load reads envFile if it exists, then parses the environment.
// An empty envFile means ".env".
func Load(envFile string) (*Env, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	return Parse()
}

// Parse reads the process environment without touching .env files.
func Parse() (*Env, error) {
	e, err := env.ParseAsWithOptions[Env](env.Options{Prefix: Prefix})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if e.LLM.APIKey == nil {
		if key, ok := os.LookupEnv(grokKeyVar); ok && key != "" {
			e.LLM.APIKey = &key
		}
	}
	if e.Retry.Attempts == 0 {
		e.Retry = retry.DefaultConfig()
	}
	return &e, nil
}

// Apply writes every set variable onto settings.
func (e *Env) Apply(settings *domain.AppSettings) error {
	r := &settings.RAG
	setInt(&r.ChunkSize, e.RAG.ChunkSize)
	setInt(&r.ChunkOverlap, e.RAG.ChunkOverlap)
	setInt(&r.MaxLookback, e.RAG.MaxLookback)
	setInt(&r.TopK, e.RAG.TopK)
	setFloat(&r.SimilarityThreshold, e.RAG.SimilarityThreshold)
	setInt(&r.MaxHistory, e.RAG.MaxHistory)
	setInt(&r.EmbedBatchSize, e.RAG.EmbedBatchSize)
	setDuration(&r.EmbedTimeout, e.RAG.EmbedTimeout)
	setDuration(&r.GenerationTimeout, e.RAG.GenerationTimeout)
	setInt(&r.MaxTokens, e.RAG.MaxTokens)
	setFloat(&r.Temperature, e.RAG.Temperature)

	if e.Embedding.Provider != nil {
		p := domain.AIProvider(*e.Embedding.Provider)
		if !p.IsValid() {
			return fmt.Errorf("%w: %sEMBEDDING_PROVIDER %q", domain.ErrInvalidConfig, Prefix, p)
		}
		settings.Embedding.Provider = p
	}
	setString(&settings.Embedding.Model, e.Embedding.Model)
	setString(&settings.Embedding.BaseURL, e.Embedding.BaseURL)
	setString(&settings.Embedding.APIKey, e.Embedding.APIKey)

	if e.LLM.Provider != nil {
		p := domain.AIProvider(*e.LLM.Provider)
		if !p.IsValid() {
			return fmt.Errorf("%w: %sLLM_PROVIDER %q", domain.ErrInvalidConfig, Prefix, p)
		}
		settings.LLM.Provider = p
	}
	setString(&settings.LLM.Model, e.LLM.Model)
	setString(&settings.LLM.BaseURL, e.LLM.BaseURL)
	setString(&settings.LLM.APIKey, e.LLM.APIKey)

	if e.VectorBackend != nil {
		b := domain.VectorBackend(*e.VectorBackend)
		if !b.IsValid() {
			return fmt.Errorf("%w: %sVECTOR_BACKEND %q", domain.ErrInvalidConfig, Prefix, b)
		}
		settings.VectorIndex.Backend = b
	}
	setString(&settings.VectorIndex.PostgresURL, e.PostgresURL)
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
