package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAIProvider_IsValid tests provider recognition
func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		provider AIProvider
		expected bool
	}{
		{AIProviderLocal, true},
		{AIProviderOllama, true},
		{AIProviderOpenAI, true},
		{AIProviderAnthropic, true},
		{AIProvider(""), false},
		{AIProvider("cohere"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

// TestAIProvider_RequiresAPIKey tests API key requirement
func TestAIProvider_RequiresAPIKey(t *testing.T) {
	assert.False(t, AIProviderLocal.RequiresAPIKey())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.True(t, AIProviderAnthropic.RequiresAPIKey())
}

// TestEmbeddingSettings_IsConfigured tests embedding configuration checks
func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{"local", EmbeddingSettings{Provider: AIProviderLocal}, true},
		{"ollama", EmbeddingSettings{Provider: AIProviderOllama}, true},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}, true},
		{"anthropic has no embeddings", EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}, false},
		{"empty", EmbeddingSettings{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

// TestLLMSettings_IsConfigured tests LLM configuration checks
func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.False(t, LLMSettings{}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderLocal}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOpenAI, APIKey: "xai-1"}.IsConfigured())
}

// TestDefaultRAGSettings tests pipeline defaults
func TestDefaultRAGSettings(t *testing.T) {
	s := DefaultRAGSettings()

	assert.Equal(t, 1000, s.ChunkSize)
	assert.Equal(t, 100, s.ChunkOverlap)
	assert.Equal(t, 200, s.MaxLookback)
	assert.Equal(t, 3, s.TopK)
	assert.InDelta(t, 0.7, s.SimilarityThreshold, 1e-9)
	assert.Equal(t, 10, s.MaxHistory)
	assert.Equal(t, 30*time.Second, s.GenerationTimeout)
	require.NoError(t, s.Validate())
}

// TestRAGSettings_Validate tests invalid configurations
func TestRAGSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RAGSettings)
	}{
		{"zero chunk size", func(s *RAGSettings) { s.ChunkSize = 0 }},
		{"zero overlap", func(s *RAGSettings) { s.ChunkOverlap = 0 }},
		{"overlap equals size", func(s *RAGSettings) { s.ChunkOverlap = s.ChunkSize }},
		{"overlap exceeds size", func(s *RAGSettings) { s.ChunkOverlap = s.ChunkSize + 1 }},
		{"zero lookback", func(s *RAGSettings) { s.MaxLookback = 0 }},
		{"zero top k", func(s *RAGSettings) { s.TopK = 0 }},
		{"negative history", func(s *RAGSettings) { s.MaxHistory = -1 }},
		{"zero batch", func(s *RAGSettings) { s.EmbedBatchSize = 0 }},
		{"zero timeout", func(s *RAGSettings) { s.EmbedTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultRAGSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidConfig)
		})
	}
}

// TestDefaultAppSettings tests application defaults
func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, AIProviderLocal, s.Embedding.Provider)
	assert.True(t, s.Embedding.IsConfigured())
	assert.False(t, s.LLM.IsConfigured())
	assert.Equal(t, VectorBackendSQLite, s.VectorIndex.Backend)
	assert.Equal(t, 512, EmbeddingDimensions()[s.Embedding.Model])
}

// TestVectorBackend_IsValid tests backend recognition
func TestVectorBackend_IsValid(t *testing.T) {
	assert.True(t, VectorBackendSQLite.IsValid())
	assert.True(t, VectorBackendMemory.IsValid())
	assert.True(t, VectorBackendPostgres.IsValid())
	assert.False(t, VectorBackend("hnsw").IsValid())
}
