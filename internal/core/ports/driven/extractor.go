package driven

import "context"

// TextExtractor turns an uploaded file into a single text blob.
// Format-specific parsing lives behind this port.
type TextExtractor interface {
	// Supports returns true if the extractor can read files with this name.
	Supports(filename string) bool

	// Extract returns the document text.
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}
