// Package types provides the document model shared across the pipeline.
// This package has no dependencies on other docket packages to avoid import cycles.
package types

import "strings"

// ElementType classifies a text element produced by the extraction collaborator.
type ElementType string

const (
	ElementHeader    ElementType = "header"
	ElementParagraph ElementType = "paragraph"
	ElementList      ElementType = "list"
	ElementText      ElementType = "text"
)

// ParseElementType converts a string to an ElementType.
// Returns ElementText if the string is not recognized.
func ParseElementType(s string) ElementType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "header", "heading", "title":
		return ElementHeader
	case "paragraph":
		return ElementParagraph
	case "list", "list_item":
		return ElementList
	default:
		return ElementText
	}
}

// TextElement is one ordered unit of extracted text.
type TextElement struct {
	Content  string         `json:"content" yaml:"content"`
	Type     ElementType    `json:"type" yaml:"type"`
	Level    int            `json:"level,omitempty" yaml:"level,omitempty"` // Headers only
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// PlainText returns the element content with surrounding whitespace trimmed.
func (e TextElement) PlainText() string {
	return strings.TrimSpace(e.Content)
}

// IsHeader reports whether the element was marked as a heading upstream.
func (e TextElement) IsHeader() bool {
	return e.Type == ElementHeader
}

// ExtractedDocument is the read-only input to section detection.
type ExtractedDocument struct {
	Path       string         `json:"path" yaml:"path"`
	MimeType   string         `json:"mime_type" yaml:"mime_type"`
	Elements   []TextElement  `json:"elements" yaml:"elements"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	TotalPages int            `json:"total_pages" yaml:"total_pages"`
}

// PlainText joins the plain text of every element, separated by blank lines.
func (d *ExtractedDocument) PlainText() string {
	if d == nil {
		return ""
	}
	parts := make([]string, 0, len(d.Elements))
	for _, el := range d.Elements {
		if text := el.PlainText(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// TextLength returns the aggregate character count of all element text.
func (d *ExtractedDocument) TextLength() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, el := range d.Elements {
		n += len([]rune(el.PlainText()))
	}
	return n
}
