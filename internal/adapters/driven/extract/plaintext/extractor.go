// Package plaintext extracts text from plain text and Markdown files.
package plaintext

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// utf8BOM is stripped from decoded text.
const utf8BOM = "\uFEFF"

// Extractor reads UTF-8 text, falling back to Windows-1252 when the
// bytes are not valid UTF-8.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".txt", ".text"}
}

// Supports returns true for the extensions listed by Extensions.
func (e *Extractor) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range e.Extensions() {
		if ext == supported {
			return true
		}
	}
	return false
}

// Extract decodes the file contents.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !e.Supports(filename) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filename)
	}
	text, err := Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, filename, err)
	}
	return text, nil
}

// Decode returns data as a string. Valid UTF-8 is used as is; anything
// else is decoded as Windows-1252, which maps every byte.
func Decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), utf8BOM), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode windows-1252: %w", err)
	}
	return string(out), nil
}
