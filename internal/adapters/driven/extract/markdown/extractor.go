// Package markdown extracts text from Markdown files.
//
// Documents are rendered to HTML with GitHub Flavored Markdown and read back
// through the html extractor, so formatting marks, link targets and image
// URLs never reach the index.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/custodia-labs/docchat/internal/adapters/driven/extract/html"
	"github.com/custodia-labs/docchat/internal/adapters/driven/extract/plaintext"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor converts Markdown to plain text.
type Extractor struct {
	md goldmark.Markdown
}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Supports returns true for the extensions listed by Extensions.
func (e *Extractor) Supports(filename string) bool {
	return slices.Contains(e.Extensions(), strings.ToLower(filepath.Ext(filename)))
}

// Extract renders the document and returns its text.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !e.Supports(filename) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filename)
	}
	src, err := plaintext.Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, filename, err)
	}

	var buf bytes.Buffer
	if err := e.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("%w: %s: render markdown: %v", domain.ErrInvalidInput, filename, err)
	}
	text, err := html.Text(buf.String())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, filename, err)
	}
	return text, nil
}
