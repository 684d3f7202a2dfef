package services

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure ContextBuilder can take a prompt store.
var _ driven.PromptStoreAware = (*ContextBuilder)(nil)

const (
	builtinChatSystem = "You are a helpful AI assistant that answers questions based on provided documents. " +
		"Answer primarily from the document excerpts, cite which document each fact comes from, " +
		"and say so clearly when the documents do not contain the answer."

	builtinNoContext = "No relevant documents found."

	contextHeader    = "Based on the following document excerpts:\n\n"
	fallbackNoMatch  = "I apologize, but I couldn't find relevant information in the uploaded documents to answer your question. Could you please try rephrasing your question or upload more relevant documents?" //nolint:lll
	fallbackHeader   = "Based on the uploaded documents, I found some relevant information:\n\n"
	fallbackFooter   = "Note: I'm currently unable to provide a more detailed analysis. Please try your question again."
	fallbackExcerpts = 2
	fallbackPreview  = 300
)

// ContextBuilder assembles the messages sent to the language model.
type ContextBuilder struct {
	prompts driven.PromptStore
}

// NewContextBuilder creates a builder. prompts may be nil.
func NewContextBuilder(prompts driven.PromptStore) *ContextBuilder {
	return &ContextBuilder{prompts: prompts}
}

// SetPromptStore replaces the prompt store.
func (b *ContextBuilder) SetPromptStore(store driven.PromptStore) {
	b.prompts = store
}

// Build returns the system message, the last maxHistory history messages
// and the query, plus the cited filenames in order of first appearance.
func (b *ContextBuilder) Build(
	query string, retrieved []domain.RetrievalResult, history []domain.Message, maxHistory int,
) ([]driven.ChatMessage, []string) {
	if maxHistory < 0 {
		maxHistory = 0
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]driven.ChatMessage, 0, len(history)+2)
	messages = append(messages, driven.ChatMessage{
		Role:    driven.RoleSystem,
		Content: b.prompt(driven.PromptChatSystem, builtinChatSystem) + "\n\n" + b.contextBlock(retrieved),
	})
	for _, m := range history {
		role := driven.RoleUser
		if m.Role == domain.RoleAssistant {
			role = driven.RoleAssistant
		}
		messages = append(messages, driven.ChatMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, driven.ChatMessage{Role: driven.RoleUser, Content: query})

	return messages, Citations(retrieved)
}

func (b *ContextBuilder) contextBlock(retrieved []domain.RetrievalResult) string {
	if len(retrieved) == 0 {
		return b.prompt(driven.PromptNoContext, builtinNoContext)
	}

	var sb strings.Builder
	sb.WriteString(contextHeader)
	for i, r := range retrieved {
		sb.WriteString("Document ")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(" (from ")
		sb.WriteString(r.Metadata.Filename)
		sb.WriteString("):\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// prompt loads a named prompt, falling back to def.
func (b *ContextBuilder) prompt(name, def string) string {
	if b.prompts == nil {
		return def
	}
	p, err := b.prompts.Load(name)
	if err != nil || strings.TrimSpace(p) == "" {
		if err != nil {
			logger.Debug("prompt %s: %v, using built-in", name, err)
		}
		return def
	}
	return p
}

// Fallback is the deterministic reply used when generation is unavailable.
func (b *ContextBuilder) Fallback(retrieved []domain.RetrievalResult) string {
	if len(retrieved) == 0 {
		return fallbackNoMatch
	}

	var sb strings.Builder
	sb.WriteString(fallbackHeader)
	for _, r := range retrieved[:min(fallbackExcerpts, len(retrieved))] {
		sb.WriteString("From ")
		sb.WriteString(r.Metadata.Filename)
		sb.WriteString(":\n")
		sb.WriteString(truncateRunes(r.Content, fallbackPreview))
		sb.WriteString("...\n\n")
	}
	sb.WriteString(fallbackFooter)
	return sb.String()
}

// Citations returns the filenames of results, deduplicated in order.
func Citations(retrieved []domain.RetrievalResult) []string {
	seen := make(map[string]struct{}, len(retrieved))
	out := make([]string, 0, len(retrieved))
	for _, r := range retrieved {
		name := r.Metadata.Filename
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
