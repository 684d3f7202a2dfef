package domain

import "time"

// RetrievalResult is a single ranked chunk returned for a query.
// It is recomputed per query and never persisted.
type RetrievalResult struct {
	// Content is the chunk text.
	Content string

	// Similarity is the cosine similarity to the query (-1 to 1).
	Similarity float64

	// Metadata carries the chunk's provenance.
	Metadata ChunkMetadata
}

// RetrievalReason explains why a retrieval outcome has the results it has.
type RetrievalReason string

// Retrieval reasons.
const (
	// RetrievalOK means at least one result passed the threshold.
	RetrievalOK RetrievalReason = "ok"

	// RetrievalEmptyQuery means the query was blank.
	RetrievalEmptyQuery RetrievalReason = "empty_query"

	// RetrievalNoMatches means the index returned nothing.
	RetrievalNoMatches RetrievalReason = "no_matches"

	// RetrievalBelowThreshold means every candidate scored below the threshold.
	RetrievalBelowThreshold RetrievalReason = "below_threshold"

	// RetrievalEmbeddingFailed means the query could not be embedded.
	RetrievalEmbeddingFailed RetrievalReason = "embedding_failed"

	// RetrievalIndexFailed means the vector index query failed.
	RetrievalIndexFailed RetrievalReason = "index_failed"
)

// IsFailure returns true if the reason reports a backend failure
// rather than a genuine absence of matches.
func (r RetrievalReason) IsFailure() bool {
	return r == RetrievalEmbeddingFailed || r == RetrievalIndexFailed
}

// String returns the string representation.
func (r RetrievalReason) String() string {
	return string(r)
}

// RetrievalOutcome is the best-effort result of a retrieval.
// Results may be empty; Reason says why and Err holds any backend cause.
type RetrievalOutcome struct {
	Results []RetrievalResult
	Reason  RetrievalReason
	Err     error
}

// Empty returns true if the outcome has no results.
func (o RetrievalOutcome) Empty() bool {
	return len(o.Results) == 0
}

// ChatReply is the answer to one chat turn.
type ChatReply struct {
	// SessionID is the conversation the turn was recorded in.
	SessionID string

	// Content is the assistant's answer.
	Content string

	// Sources lists cited filenames in order of first appearance.
	Sources []string

	// Degraded is true when the answer is the fallback built from excerpts.
	Degraded bool

	// TokenUsage is the total tokens reported by the model, if any.
	TokenUsage int

	// RelevantCount is the number of retrieved excerpts used as context.
	RelevantCount int

	// ResponseTime is the wall time spent answering.
	ResponseTime time.Duration

	// Retrieval is the reason attached to the retrieval step.
	Retrieval RetrievalReason
}
