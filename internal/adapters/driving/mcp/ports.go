package mcp

import (
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retriever ranks document excerpts for a query.
	Retriever driving.Retriever

	// Chat answers questions. Optional.
	Chat driving.ChatService

	// Ingestion lists documents. Optional.
	Ingestion driving.IngestionService

	// RAG supplies default top_k and similarity threshold.
	// A zero value uses domain.DefaultRAGSettings.
	RAG domain.RAGSettings
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}

// defaults returns RAG with zero fields filled in.
func (p *Ports) defaults() domain.RAGSettings {
	rag := p.RAG
	def := domain.DefaultRAGSettings()
	if rag.TopK <= 0 {
		rag.TopK = def.TopK
	}
	if rag.SimilarityThreshold == 0 {
		rag.SimilarityThreshold = def.SimilarityThreshold
	}
	return rag
}
