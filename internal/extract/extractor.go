// Package extract provides text extraction from the document formats found
// in legal archives.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// Plain text formats (.txt, .md, .json) are returned as-is after UTF-8
// validation. PDF, DOCX, ODT, RTF and XLSX are parsed from their binary
// formats. Unknown extensions fall back to plain text.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext includes the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".odt", ".rtf":
		return extractODT(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md", ".json", "":
		return extractPlain(content)
	default:
		return extractPlain(content)
	}
}
