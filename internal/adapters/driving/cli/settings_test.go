package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/services"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Settings Command Tests

func TestSettingsCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(settingsCmd.Commands()))
	for _, cmd := range settingsCmd.Commands() {
		names = append(names, cmd.Name())
	}

	assert.Contains(t, names, "show")
	assert.Contains(t, names, "set")
	assert.Contains(t, names, "keys")
	assert.Contains(t, names, "embedding")
	assert.Contains(t, names, "llm")
}

func TestSettingsShow_Defaults(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	out, err := executeCommand("settings")
	require.NoError(t, err)
	assert.Contains(t, out, "[Retrieval]")
	assert.Contains(t, out, "Top K: 3")
	assert.Contains(t, out, "Provider: Local (built-in hashing embedder)")
	assert.Contains(t, out, "Provider: none")
	assert.Contains(t, out, "Backend: sqlite")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsSet(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	out, err := executeCommand("settings", "set", "rag.top_k", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Set rag.top_k = 5")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, 5, settings.RAG.TopK)
}

func TestSettingsSet_MasksAPIKey(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	out, err := executeCommand("settings", "set", "llm.api_key", "sk-1234567890abcdef")
	require.NoError(t, err)
	assert.Contains(t, out, "sk-1...cdef")
	assert.NotContains(t, out, "1234567890")
}

func TestSettingsSet_Invalid(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := executeCommand("settings", "set", "rag.nope", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = executeCommand("settings", "set", "rag.chunk_overlap", "5000")
	require.Error(t, err)
}

func TestSettingsKeys(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	original := settingKeys
	defer func() { settingKeys = original }()
	SetSettingKeys(services.SettingKeys)

	out, err := executeCommand("settings", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "rag.top_k")
	assert.Contains(t, out, "vector_index.backend")
}

func TestSettingsEmbedding_Interactive(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	original := stdin
	defer func() { stdin = original }()
	// Ollama, then the default model.
	stdin = strings.NewReader("2\n\n")

	out, err := executeCommand("settings", "embedding")
	require.NoError(t, err)
	assert.Contains(t, out, "Validating configuration... OK")
	assert.Contains(t, out, "embedding provider configured: Ollama (local) (nomic-embed-text)")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
}

func TestSettingsLLM_RequiresAPIKey(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	original := stdin
	defer func() { stdin = original }()
	// OpenAI-compatible, default model, empty key.
	stdin = strings.NewReader("2\n\n\n")

	_, err := executeCommand("settings", "llm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestSettingsLLM_None(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	require.NoError(t, settingsService.SetLLMProvider(domain.AIProviderOllama, "llama3.2", ""))

	original := stdin
	defer func() { stdin = original }()
	stdin = strings.NewReader("4\n")

	out, err := executeCommand("settings", "llm")
	require.NoError(t, err)
	assert.Contains(t, out, "LLM provider disabled")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProvider(""), settings.LLM.Provider)
}
