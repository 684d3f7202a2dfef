package driven

// PromptStore supplies the text blocks used to build chat prompts.
type PromptStore interface {
	// Load returns the named prompt, falling back to the built-in text
	// when no override exists.
	Load(name string) (string, error)

	// Reload drops cached prompts so edits on disk take effect.
	Reload()
}

// Prompt names.
const (
	// PromptChatSystem is the instruction block of the chat system message.
	// It must tell the model to answer from excerpts and cite documents.
	// This prompt has no format placeholders.
	PromptChatSystem = "chat_system"

	// PromptNoContext is the context block used when retrieval found nothing.
	// This prompt has no format placeholders.
	PromptNoContext = "no_context"
)

// PromptStoreAware is implemented by services whose prompts can be
// swapped after construction.
type PromptStoreAware interface {
	SetPromptStore(store PromptStore)
}
