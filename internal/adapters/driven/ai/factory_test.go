package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driven/embedding/cache"
	localembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/ollama"
	anthropicllm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
	}{
		{
			name:     "nil settings returns nil",
			settings: nil,
			wantNil:  true,
		},
		{
			name:     "unconfigured settings returns nil",
			settings: &domain.EmbeddingSettings{},
			wantNil:  true,
		},
		{
			name:     "local provider creates service",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderLocal, Model: "hashing-512"},
		},
		{
			name: "ollama provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
		},
		{
			name:     "anthropic is not an embedding provider",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"},
			wantNil:  true,
		},
		{
			name:     "unknown provider returns nil (not configured)",
			settings: &domain.EmbeddingSettings{Provider: "unknown", APIKey: "test-key"},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings, DefaultOptions())
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.NoError(t, svc.Close())
		})
	}
}

func TestCreateEmbeddingService_Caching(t *testing.T) {
	remote := &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"}

	svc, err := CreateEmbeddingService(remote, DefaultOptions())
	require.NoError(t, err)
	assert.IsType(t, &cache.EmbeddingService{}, svc)
	assert.Equal(t, 768, svc.Dimensions())

	svc, err = CreateEmbeddingService(remote, Options{CacheTTL: -1})
	require.NoError(t, err)
	assert.IsType(t, &ollamaembed.EmbeddingService{}, svc)

	svc, err = CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderLocal}, DefaultOptions())
	require.NoError(t, err)
	assert.IsType(t, &localembed.EmbeddingService{}, svc)
	assert.Equal(t, localembed.DefaultDimensions, svc.Dimensions())
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantType any
	}{
		{"nil settings", nil, nil},
		{"unconfigured", &domain.LLMSettings{}, nil},
		{"local is not an llm", &domain.LLMSettings{Provider: domain.AIProviderLocal}, nil},
		{"openai without key", &domain.LLMSettings{Provider: domain.AIProviderOpenAI}, nil},
		{"ollama", &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}, &ollamallm.LLMService{}},
		{"openai", &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k"}, &openaillm.LLMService{}},
		{"anthropic", &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, &anthropicllm.LLMService{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings, DefaultOptions())
			require.NoError(t, err)
			if tt.wantType == nil {
				assert.Nil(t, svc)
				return
			}
			assert.IsType(t, tt.wantType, svc)
		})
	}
}

func TestCreateLLMService_OpenAIDefaultsToGrok(t *testing.T) {
	svc, err := CreateLLMService(&domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, openaillm.DefaultLLMModel, svc.ModelName())
}

func TestInitialise(t *testing.T) {
	t.Run("defaults use local embedder and no llm", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		result, err := Initialise(&settings, DefaultOptions())
		require.NoError(t, err)
		defer result.Close()

		assert.Equal(t, "hashing-512", result.EmbeddingService.ModelName())
		assert.Nil(t, result.LLMService)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "no LLM provider configured")
	})

	t.Run("configured llm", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}
		result, err := Initialise(&settings, DefaultOptions())
		require.NoError(t, err)
		defer result.Close()

		require.NotNil(t, result.LLMService)
		assert.Equal(t, "llama3.2", result.LLMService.ModelName())
		assert.Empty(t, result.Warnings)
	})

	t.Run("missing embedding provider fails", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI}
		_, err := Initialise(&settings, DefaultOptions())
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("chunk size above model limit fails", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"}
		settings.RAG.ChunkSize = ollamaembed.DefaultMaxInputChars + 1
		_, err := Initialise(&settings, DefaultOptions())
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})
}

func TestValidateLLMConfig_Ollama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))

	settings := &domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL}
	assert.NoError(t, ValidateLLMConfig(settings, DefaultOptions()))

	server.Close()
	assert.ErrorIs(t, ValidateLLMConfig(settings, DefaultOptions()), domain.ErrLLMUnavailable)
}

func TestValidateEmbeddingConfig(t *testing.T) {
	assert.NoError(t, ValidateEmbeddingConfig(nil, DefaultOptions()))
	assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{}, DefaultOptions()))
	assert.NoError(t, ValidateEmbeddingConfig(
		&domain.EmbeddingSettings{Provider: domain.AIProviderLocal}, DefaultOptions()))
}
