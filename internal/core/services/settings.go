package services

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize         = "rag.chunk_size"
	keyChunkOverlap      = "rag.chunk_overlap"
	keyMaxLookback       = "rag.max_lookback"
	keyTopK              = "rag.top_k"
	keyThreshold         = "rag.similarity_threshold"
	keyMaxHistory        = "rag.max_history"
	keyEmbedBatchSize    = "rag.embed_batch_size"
	keyEmbedTimeout      = "rag.embed_timeout"
	keyGenerationTimeout = "rag.generation_timeout"
	keyMaxTokens         = "rag.max_tokens"
	keyTemperature       = "rag.temperature"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyVectorBackend     = "vector_index.backend"
	keyPostgresURL       = "vector_index.postgres_url"
)

const defaultOllamaURL = "http://localhost:11434"

// setter applies a raw string value to one field.
type setter func(s *domain.AppSettings, value string) error

var setters = map[string]setter{
	keyChunkSize:         intSetter(func(s *domain.AppSettings) *int { return &s.RAG.ChunkSize }),
	keyChunkOverlap:      intSetter(func(s *domain.AppSettings) *int { return &s.RAG.ChunkOverlap }),
	keyMaxLookback:       intSetter(func(s *domain.AppSettings) *int { return &s.RAG.MaxLookback }),
	keyTopK:              intSetter(func(s *domain.AppSettings) *int { return &s.RAG.TopK }),
	keyMaxHistory:        intSetter(func(s *domain.AppSettings) *int { return &s.RAG.MaxHistory }),
	keyEmbedBatchSize:    intSetter(func(s *domain.AppSettings) *int { return &s.RAG.EmbedBatchSize }),
	keyMaxTokens:         intSetter(func(s *domain.AppSettings) *int { return &s.RAG.MaxTokens }),
	keyThreshold:         floatSetter(func(s *domain.AppSettings) *float64 { return &s.RAG.SimilarityThreshold }),
	keyTemperature:       floatSetter(func(s *domain.AppSettings) *float64 { return &s.RAG.Temperature }),
	keyEmbedTimeout:      durationSetter(func(s *domain.AppSettings) *time.Duration { return &s.RAG.EmbedTimeout }),
	keyGenerationTimeout: durationSetter(func(s *domain.AppSettings) *time.Duration { return &s.RAG.GenerationTimeout }),
	keyEmbedModel:        stringSetter(func(s *domain.AppSettings) *string { return &s.Embedding.Model }),
	keyEmbedBaseURL:      stringSetter(func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL }),
	keyEmbedAPIKey:       stringSetter(func(s *domain.AppSettings) *string { return &s.Embedding.APIKey }),
	keyLLMModel:          stringSetter(func(s *domain.AppSettings) *string { return &s.LLM.Model }),
	keyLLMBaseURL:        stringSetter(func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }),
	keyLLMAPIKey:         stringSetter(func(s *domain.AppSettings) *string { return &s.LLM.APIKey }),
	keyPostgresURL:       stringSetter(func(s *domain.AppSettings) *string { return &s.VectorIndex.PostgresURL }),
	keyEmbedProvider: func(s *domain.AppSettings, v string) error {
		p := domain.AIProvider(v)
		if !slices.Contains(domain.AllEmbeddingProviders(), p) {
			return fmt.Errorf("%w: %q is not an embedding provider", domain.ErrInvalidInput, v)
		}
		s.Embedding.Provider = p
		return nil
	},
	keyLLMProvider: func(s *domain.AppSettings, v string) error {
		p := domain.AIProvider(v)
		if v != "" && !slices.Contains(domain.AllLLMProviders(), p) {
			return fmt.Errorf("%w: %q is not an LLM provider", domain.ErrInvalidInput, v)
		}
		s.LLM.Provider = p
		return nil
	},
	keyVectorBackend: func(s *domain.AppSettings, v string) error {
		b := domain.VectorBackend(v)
		if !b.IsValid() {
			return fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, v)
		}
		s.VectorIndex.Backend = b
		return nil
	},
}

// SettingKeys returns every key accepted by Set, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		RAG: domain.RAGSettings{
			ChunkSize:           s.getInt(keyChunkSize, d.RAG.ChunkSize),
			ChunkOverlap:        s.getInt(keyChunkOverlap, d.RAG.ChunkOverlap),
			MaxLookback:         s.getInt(keyMaxLookback, d.RAG.MaxLookback),
			TopK:                s.getInt(keyTopK, d.RAG.TopK),
			SimilarityThreshold: s.getFloat(keyThreshold, d.RAG.SimilarityThreshold),
			MaxHistory:          s.getInt(keyMaxHistory, d.RAG.MaxHistory),
			EmbedBatchSize:      s.getInt(keyEmbedBatchSize, d.RAG.EmbedBatchSize),
			EmbedTimeout:        s.getDuration(keyEmbedTimeout, d.RAG.EmbedTimeout),
			GenerationTimeout:   s.getDuration(keyGenerationTimeout, d.RAG.GenerationTimeout),
			MaxTokens:           s.getInt(keyMaxTokens, d.RAG.MaxTokens),
			Temperature:         s.getFloat(keyTemperature, d.RAG.Temperature),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend:     s.getBackend(d.VectorIndex.Backend),
			PostgresURL: s.configStore.GetString(keyPostgresURL),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	r := settings.RAG
	values := map[string]any{
		keyChunkSize:         r.ChunkSize,
		keyChunkOverlap:      r.ChunkOverlap,
		keyMaxLookback:       r.MaxLookback,
		keyTopK:              r.TopK,
		keyThreshold:         r.SimilarityThreshold,
		keyMaxHistory:        r.MaxHistory,
		keyEmbedBatchSize:    r.EmbedBatchSize,
		keyEmbedTimeout:      r.EmbedTimeout,
		keyGenerationTimeout: r.GenerationTimeout,
		keyMaxTokens:         r.MaxTokens,
		keyTemperature:       r.Temperature,
		keyEmbedProvider:     settings.Embedding.Provider.String(),
		keyEmbedModel:        settings.Embedding.Model,
		keyEmbedBaseURL:      settings.Embedding.BaseURL,
		keyLLMProvider:       settings.LLM.Provider.String(),
		keyLLMModel:          settings.LLM.Model,
		keyLLMBaseURL:        settings.LLM.BaseURL,
		keyVectorBackend:     settings.VectorIndex.Backend.String(),
		keyPostgresURL:       settings.VectorIndex.PostgresURL,
	}
	// API keys are only written when present so a blank form never wipes one.
	if settings.Embedding.APIKey != "" {
		values[keyEmbedAPIKey] = settings.Embedding.APIKey
	}
	if settings.LLM.APIKey != "" {
		values[keyLLMAPIKey] = settings.LLM.APIKey
	}

	if err := s.configStore.SetMany(values); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Set updates a single setting from its string form.
// The resulting pipeline settings must still validate.
func (s *SettingsService) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	apply, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := apply(settings, strings.TrimSpace(value)); err != nil {
		return err
	}
	if strings.HasPrefix(key, "rag.") {
		if err := settings.RAG.Validate(); err != nil {
			return err
		}
	}
	if key == keyEmbedAPIKey || key == keyLLMAPIKey {
		return s.configStore.Set(key, strings.TrimSpace(value))
	}
	return s.Save(settings)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that current settings can start the pipeline.
// An unset LLM is allowed; chat replies are then degraded.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if err := settings.RAG.Validate(); err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrInvalidConfig, settings.Embedding.Provider)
	}
	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %q is not configured", domain.ErrInvalidConfig, settings.LLM.Provider)
	}
	if settings.VectorIndex.Backend == domain.VectorBackendPostgres && settings.VectorIndex.PostgresURL == "" {
		return fmt.Errorf("%w: postgres backend requires %s", domain.ErrInvalidConfig, keyPostgresURL)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) has(key string) bool {
	_, ok := s.configStore.Get(key)
	return ok
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if !s.has(key) {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if !s.has(key) {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	backend := domain.VectorBackend(s.configStore.GetString(keyVectorBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func modelOrDefault(model, def string) string {
	if model != "" {
		return model
	}
	return def
}

// baseURLFor keeps a custom URL for Ollama and clears it for built-in providers.
// OpenAI-compatible hosts keep whatever was configured.
func baseURLFor(provider domain.AIProvider, current string) string {
	switch provider {
	case domain.AIProviderOllama:
		if current == "" {
			return defaultOllamaURL
		}
		return current
	case domain.AIProviderOpenAI:
		return current
	default:
		return ""
	}
}

func intSetter(field func(*domain.AppSettings) *int) setter {
	return func(s *domain.AppSettings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidInput, v)
		}
		*field(s) = n
		return nil
	}
}

func floatSetter(field func(*domain.AppSettings) *float64) setter {
	return func(s *domain.AppSettings, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidInput, v)
		}
		*field(s) = f
		return nil
	}
}

func durationSetter(field func(*domain.AppSettings) *time.Duration) setter {
	return func(s *domain.AppSettings, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %q is not a duration", domain.ErrInvalidInput, v)
		}
		*field(s) = d
		return nil
	}
}

func stringSetter(field func(*domain.AppSettings) *string) setter {
	return func(s *domain.AppSettings, v string) error {
		*field(s) = v
		return nil
	}
}
