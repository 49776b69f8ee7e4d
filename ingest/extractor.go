package ingest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// Extractor converts raw document bytes to plain text suitable for
// chunking.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ContentType identifies the format of raw content for extraction.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeMarkdown  ContentType = "text/markdown"
	TypeHTML      ContentType = "text/html"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps a file extension (without the dot) to a
// content type. Unknown extensions are treated as plain text.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(ext) {
	case "md", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// ExtractorFor returns the extractor for a content type.
func ExtractorFor(ct ContentType) Extractor {
	switch ct {
	case TypeHTML:
		return HTMLExtractor{}
	case TypePDF:
		return NewPDFExtractor()
	default:
		// Markdown passes through unchanged so the structural strategy
		// still sees its headings.
		return PlainTextExtractor{}
	}
}

// PlainTextExtractor returns content as-is. Also used for Markdown.
type PlainTextExtractor struct{}

var _ Extractor = PlainTextExtractor{}

func (PlainTextExtractor) Extract(content []byte) (string, error) {
	return string(content), nil
}

// HTMLExtractor pulls the readable article text out of an HTML page,
// dropping navigation, scripts, and boilerplate.
type HTMLExtractor struct{}

var _ Extractor = HTMLExtractor{}

func (HTMLExtractor) Extract(content []byte) (string, error) {
	article, err := readability.FromReader(strings.NewReader(string(content)), &url.URL{})
	if err != nil {
		return "", fmt.Errorf("extract html: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
