package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Document is an ingested file as seen by the retrieval pipeline.
// The record is owned by the document store; the pipeline reads ID and
// Filename as chunk provenance and writes back the processing status.
type Document struct {
	// ID is the opaque unique identifier for the document.
	ID string

	// Filename is the original file name, used in citations.
	Filename string

	// ByteSize is the size of the uploaded file in bytes.
	ByteSize int64

	// UploadedAt is when the document was submitted.
	UploadedAt time.Time

	// Processed is true once chunking and indexing completed.
	Processed bool

	// ChunkCount is set once processing completes.
	ChunkCount *int

	// Error holds the last processing failure, if any.
	Error string
}

// NewDocument validates and creates a document record.
func NewDocument(id, filename string, byteSize int64) (*Document, error) {
	id = strings.TrimSpace(id)
	filename = strings.TrimSpace(filename)
	if id == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if byteSize < 0 {
		return nil, fmt.Errorf("%w: negative byte size", ErrInvalidInput)
	}
	return &Document{
		ID:         id,
		Filename:   filename,
		ByteSize:   byteSize,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Status returns a short processing status label.
func (d *Document) Status() string {
	switch {
	case d.Processed:
		return "processed"
	case d.Error != "":
		return "failed"
	default:
		return "pending"
	}
}

// Chunk is a bounded contiguous piece of a document's text.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Ordinal is the 0-based position within the document.
	Ordinal int

	// Text is the chunk content, never empty after trimming.
	Text string

	// Embedding is the vector representation, set after embedding.
	Embedding []float32
}

// Key returns the index key for the chunk: document id + "_" + ordinal.
func (c Chunk) Key() string {
	return ChunkKey(c.DocumentID, c.Ordinal)
}

// ChunkKey builds the unique index key for a document chunk.
func ChunkKey(documentID string, ordinal int) string {
	return documentID + "_" + strconv.Itoa(ordinal)
}

// ChunkMetadata is the provenance stored alongside each index entry.
type ChunkMetadata struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Ordinal    int    `json:"chunk_index"`
	TextLength int    `json:"text_length"`
}

// IndexEntry is a stored (key, embedding, text, metadata) tuple.
type IndexEntry struct {
	Key       string
	Embedding []float32
	Text      string
	Metadata  ChunkMetadata
}

// NewIndexEntry builds the index entry for an embedded chunk.
func NewIndexEntry(chunk Chunk, filename string) (IndexEntry, error) {
	if chunk.DocumentID == "" {
		return IndexEntry{}, fmt.Errorf("%w: chunk has no document id", ErrInvalidInput)
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return IndexEntry{}, fmt.Errorf("%w: chunk %d is empty", ErrInvalidInput, chunk.Ordinal)
	}
	if len(chunk.Embedding) == 0 {
		return IndexEntry{}, fmt.Errorf("%w: chunk %d has no embedding", ErrInvalidInput, chunk.Ordinal)
	}
	return IndexEntry{
		Key:       chunk.Key(),
		Embedding: chunk.Embedding,
		Text:      chunk.Text,
		Metadata: ChunkMetadata{
			DocumentID: chunk.DocumentID,
			Filename:   filename,
			Ordinal:    chunk.Ordinal,
			TextLength: len([]rune(chunk.Text)),
		},
	}, nil
}
