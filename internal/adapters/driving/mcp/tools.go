package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query     string   `json:"query" jsonschema:"the question or phrase to find relevant excerpts for"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of excerpts to return (default from settings)"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity between -1 and 1 (default from settings)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []ExcerptOutput `json:"results"`
	Count   int             `json:"count"`
	Reason  string          `json:"reason"`
	Error   string          `json:"error,omitempty"`
}

// ExcerptOutput represents a single retrieved excerpt.
type ExcerptOutput struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from the ingested documents"`
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation to continue; a new one is started when empty"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	Degraded  bool     `json:"degraded"`
	Retrieval string   `json:"retrieval"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct{}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput is one ingested document.
type DocumentOutput struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	ByteSize   int64  `json:"byte_size"`
	Status     string `json:"status"`
	ChunkCount *int   `json:"chunk_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the document excerpts most similar to a query",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using the ingested documents as context",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List ingested documents and their processing status",
	}, s.handleListDocuments)
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	rag := s.ports.defaults()
	topK := input.TopK
	if topK <= 0 {
		topK = rag.TopK
	}
	threshold := input.Threshold
	if threshold == nil {
		threshold = &rag.SimilarityThreshold
	}

	outcome := s.ports.Retriever.Retrieve(ctx, input.Query, topK, threshold)

	output := RetrieveOutput{
		Results: toExcerpts(outcome.Results),
		Count:   len(outcome.Results),
		Reason:  outcome.Reason.String(),
	}
	if outcome.Err != nil {
		output.Error = outcome.Err.Error()
	}
	return nil, output, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Chat == nil {
		return nil, AskOutput{}, ErrChatUnavailable
	}

	reply, err := s.ports.Chat.Ask(ctx, strings.TrimSpace(input.SessionID), input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	sources := reply.Sources
	if sources == nil {
		sources = []string{}
	}
	return nil, AskOutput{
		SessionID: reply.SessionID,
		Answer:    reply.Content,
		Sources:   sources,
		Degraded:  reply.Degraded,
		Retrieval: reply.Retrieval.String(),
	}, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, ListDocumentsOutput{Documents: []DocumentOutput{}}, nil
	}

	docs, err := s.ports.Ingestion.List(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	out := toDocuments(docs)
	return nil, ListDocumentsOutput{Documents: out, Count: len(out)}, nil
}

func toExcerpts(results []domain.RetrievalResult) []ExcerptOutput {
	out := make([]ExcerptOutput, len(results))
	for i, r := range results {
		out[i] = ExcerptOutput{
			DocumentID: r.Metadata.DocumentID,
			Filename:   r.Metadata.Filename,
			ChunkIndex: r.Metadata.Ordinal,
			Similarity: r.Similarity,
			Content:    r.Content,
		}
	}
	return out
}

func toDocuments(docs []domain.Document) []DocumentOutput {
	out := make([]DocumentOutput, len(docs))
	for i := range docs {
		out[i] = DocumentOutput{
			ID:         docs[i].ID,
			Filename:   docs[i].Filename,
			ByteSize:   docs[i].ByteSize,
			Status:     docs[i].Status(),
			ChunkCount: docs[i].ChunkCount,
			Error:      docs[i].Error,
		}
	}
	return out
}
