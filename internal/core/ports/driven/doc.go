// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Maps chunk and query text to vectors
//   - VectorIndex: Stores chunk embeddings and answers similarity queries
//   - DocumentStore: Document record persistence and status writeback
//   - ConversationStore: Append-only per-session message log
//   - ConfigStore: Application configuration
//   - TextExtractor: Turns an uploaded file into a single text blob
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Language model generation. Without it, chat replies are degraded.
//   - PromptStore: Custom prompt templates. Without it, built-in defaults are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
