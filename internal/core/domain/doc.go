// Package domain defines the core business entities for docchat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested document and its processing status
//   - Chunk: A bounded piece of document text, the unit of retrieval
//   - IndexEntry: A chunk embedding stored in the vector index
//   - RetrievalOutcome: Ranked results plus the reason they may be empty
//   - Session / Message: A conversation thread and its turns
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
