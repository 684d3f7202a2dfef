// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService provides language model generation for chat answers.
// This is an optional service - when nil, chat replies fall back to
// the degraded answer built from retrieved excerpts.
//
// Implementations may include:
//   - OpenAI-compatible APIs (OpenAI, xAI Grok)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Chat conducts a multi-turn conversation and returns the completion.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*Generation, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// Generation is the result of a chat completion.
type Generation struct {
	// Content is the generated text.
	Content string

	// TokenUsage is the total tokens reported by the provider, 0 if unknown.
	TokenUsage int
}
