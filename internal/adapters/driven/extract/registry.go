// Package extract routes uploaded files to a format-specific text extractor.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docchat/internal/adapters/driven/extract/docx"
	"github.com/custodia-labs/docchat/internal/adapters/driven/extract/html"
	"github.com/custodia-labs/docchat/internal/adapters/driven/extract/markdown"
	"github.com/custodia-labs/docchat/internal/adapters/driven/extract/pdf"
	"github.com/custodia-labs/docchat/internal/adapters/driven/extract/plaintext"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.TextExtractor = (*Registry)(nil)

// DefaultMaxFileSize is the largest file accepted for ingestion.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Extractor is a TextExtractor that can list the extensions it reads.
type Extractor interface {
	driven.TextExtractor
	Extensions() []string
}

// Registry maps file extensions to extractors.
type Registry struct {
	byExt   map[string]driven.TextExtractor
	maxSize int64
}

// NewRegistry creates an empty registry. A non-positive maxSize uses
// DefaultMaxFileSize.
func NewRegistry(maxSize int64) *Registry {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Registry{
		byExt:   make(map[string]driven.TextExtractor),
		maxSize: maxSize,
	}
}

// NewDefaultRegistry registers every built-in extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(DefaultMaxFileSize)
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
	return r
}

// Register adds an extractor for each of its extensions.
// Later registrations replace earlier ones for the same extension.
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// MaxFileSize returns the size limit in bytes.
func (r *Registry) MaxFileSize() int64 {
	return r.maxSize
}

// Supports returns true if an extractor is registered for the file's extension.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract checks the size limit and delegates to the matching extractor.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", fmt.Errorf("%w: %s (supported: %s)",
			domain.ErrUnsupportedType, filepath.Base(filename), strings.Join(r.Extensions(), ", "))
	}
	if int64(len(data)) > r.maxSize {
		return "", fmt.Errorf("%w: %s is %d bytes, limit is %d",
			domain.ErrInputTooLarge, filepath.Base(filename), len(data), r.maxSize)
	}
	return e.Extract(ctx, filename, data)
}

// ExtractFile reads and extracts a file from disk. The size limit is
// checked before the file is read. Returns the text and the file size.
func (r *Registry) ExtractFile(ctx context.Context, path string) (string, int64, error) {
	if !r.Supports(path) {
		return "", 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, err
	}
	if info.IsDir() {
		return "", 0, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	if info.Size() > r.maxSize {
		return "", 0, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			domain.ErrInputTooLarge, filepath.Base(path), info.Size(), r.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	text, err := r.Extract(ctx, path, data)
	if err != nil {
		return "", 0, err
	}
	return text, int64(len(data)), nil
}
