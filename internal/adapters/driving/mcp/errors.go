// Package mcp provides an MCP (Model Context Protocol) server adapter for docchat.
// It lets AI assistants retrieve excerpts from, and ask questions about,
// the locally ingested documents.
package mcp

import "errors"

// ErrMissingRetriever is returned when the retriever is not provided.
var ErrMissingRetriever = errors.New("mcp: retriever is required")

// ErrChatUnavailable is returned by the ask tool when no chat service is wired.
var ErrChatUnavailable = errors.New("mcp: chat service not configured")
