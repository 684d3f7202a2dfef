// Package chunker splits document text into overlapping, sentence-aligned chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// DefaultMaxLookback caps how many characters back from a window's end
// the boundary search may go.
const DefaultMaxLookback = 200

// Split divides text into chunks of at most chunkSize characters, with
// adjacent chunks sharing up to overlap characters.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	return SplitWithLookback(text, chunkSize, overlap, DefaultMaxLookback)
}

// SplitWithLookback is Split with an explicit boundary lookback cap.
//
// Each window that stops short of the end of the text is shrunk to end
// just after the last '.', '!', '?' or '\n' found in its back half and
// within maxLookback characters of the naive end. Windows with no such
// boundary are cut hard at chunkSize. Lengths count runes, not bytes.
func SplitWithLookback(text string, chunkSize, overlap, maxLookback int) ([]string, error) {
	if err := validate(chunkSize, overlap, maxLookback); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	runes := []rune(text)
	n := len(runes)
	chunks := make([]string, 0, n/(chunkSize-overlap)+1)

	start := 0
	for {
		// Windows open on a non-space rune so trimmed chunk starts
		// strictly increase.
		for start < n && unicode.IsSpace(runes[start]) {
			start++
		}
		if start >= n {
			break
		}

		end := start + chunkSize
		if end < n {
			end = boundaryEnd(runes, start, end, chunkSize, maxLookback)
		} else {
			end = n
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// boundaryEnd returns the window end moved to just after the nearest
// boundary character, or end unchanged if there is none in range.
func boundaryEnd(runes []rune, start, end, chunkSize, maxLookback int) int {
	floor := start + chunkSize/2
	if lb := end - maxLookback; lb > floor {
		floor = lb
	}
	for i := end - 1; i >= floor; i-- {
		if isBoundary(runes[i]) {
			return i + 1
		}
	}
	return end
}

func isBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}

func validate(chunkSize, overlap, maxLookback int) error {
	if chunkSize <= 0 || overlap <= 0 {
		return fmt.Errorf("%w: chunk size %d and overlap %d must be positive",
			domain.ErrInvalidConfig, chunkSize, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap %d must be less than chunk size %d",
			domain.ErrInvalidConfig, overlap, chunkSize)
	}
	if maxLookback <= 0 {
		return fmt.Errorf("%w: max lookback %d must be positive", domain.ErrInvalidConfig, maxLookback)
	}
	return nil
}

// Processor turns document text into domain chunks.
type Processor struct {
	chunkSize   int
	overlap     int
	maxLookback int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithMaxLookback sets the boundary search cap in characters.
func WithMaxLookback(lookback int) Option {
	return func(p *Processor) {
		p.maxLookback = lookback
	}
}

// New creates a chunker processor with the given options.
// Returns an error wrapping domain.ErrInvalidConfig for unusable values.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize:   DefaultChunkSize,
		overlap:     DefaultChunkOverlap,
		maxLookback: DefaultMaxLookback,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := validate(p.chunkSize, p.overlap, p.maxLookback); err != nil {
		return nil, err
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured maximum chunk length.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Chunk splits text into ordered chunks belonging to doc.
func (p *Processor) Chunk(doc *domain.Document, text string) ([]domain.Chunk, error) {
	parts, err := SplitWithLookback(text, p.chunkSize, p.overlap, p.maxLookback)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.Chunk{
			DocumentID: doc.ID,
			Ordinal:    i,
			Text:       part,
		}
	}
	return chunks, nil
}
