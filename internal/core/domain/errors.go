package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type the extractor cannot read.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInputTooLarge indicates a file or text exceeds a configured limit.
	ErrInputTooLarge = errors.New("input too large")

	// Pipeline Errors.

	// ErrInvalidConfig indicates chunking or retrieval settings are unusable.
	// This is a startup failure, never a per-call one.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrEmbedding indicates the embedding model rejected or failed an input.
	// Retrieval recovers from it by returning an empty outcome.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndex indicates the vector index failed to add, query, or delete.
	ErrIndex = errors.New("vector index failure")

	// ErrGeneration indicates the language model call failed or timed out.
	// Chat recovers from it with a degraded reply.
	ErrGeneration = errors.New("generation failed")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Chat replies fall back to the degraded answer.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the provider API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
