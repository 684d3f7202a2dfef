// Package html extracts readable text from HTML files.
package html

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/docchat/internal/adapters/driven/extract/plaintext"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// invisible elements are dropped with their contents.
const invisible = "head, script, style, noscript, svg, template, iframe"

// blockElements start and end on their own line.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "section": true,
	"article": true, "header": true, "footer": true, "main": true,
	"aside": true, "nav": true, "ul": true, "ol": true, "dt": true,
	"dd": true, "figcaption": true,
}

// Extractor strips markup from HTML, keeping one line per block element.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".html", ".htm"}
}

// Supports returns true for the extensions listed by Extensions.
func (e *Extractor) Supports(filename string) bool {
	return slices.Contains(e.Extensions(), strings.ToLower(filepath.Ext(filename)))
}

// Extract returns the visible text of the document.
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
	text, err := Text(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, filename, err)
	}
	return text, nil
}

// Text returns the visible text of an HTML document. Entities are decoded,
// runs of whitespace collapse to one space and blank lines are dropped.
func Text(src string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(invisible).Remove()

	var sb strings.Builder
	writeText(doc.Selection, &sb)
	return tidy(sb.String()), nil
}

func writeText(sel *goquery.Selection, sb *strings.Builder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch name := goquery.NodeName(s); name {
		case "#text":
			writeInline(s.Text(), sb)
		case "#comment":
		default:
			block := blockElements[name]
			if block {
				sb.WriteByte('\n')
			}
			if name == "pre" {
				// Preformatted text keeps its own line breaks.
				sb.WriteString(s.Text())
			} else {
				writeText(s, sb)
			}
			if block {
				sb.WriteByte('\n')
			}
		}
	})
}

// writeInline writes a text node with every whitespace run, newlines
// included, reduced to a single space. Line breaks come only from blocks.
func writeInline(text string, sb *strings.Builder) {
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
}

// tidy collapses whitespace within lines and removes empty lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
