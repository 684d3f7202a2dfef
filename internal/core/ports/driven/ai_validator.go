package driven

import "github.com/custodia-labs/docchat/internal/core/domain"

// AIConfigValidator checks provider settings before they are relied on.
// Both methods return nil for a provider that is not configured.
type AIConfigValidator interface {
	// ValidateEmbedding builds the embedding client and pings it.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM builds the LLM client and pings it.
	ValidateLLM(config *domain.LLMSettings) error
}
