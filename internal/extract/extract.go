// Package extract turns raw document bytes into positioned text lines.
// Each format has an Extractor chosen by file extension.
package extract

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Document is the extractor output: every visual line of every page.
type Document struct {
	Name      string             `json:"name"`
	PageCount int                `json:"page_count"`
	MetaTitle string             `json:"meta_title,omitempty"`
	Lines     []doctree.TextLine `json:"lines"`
}

// Extractor reads one document.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, filename string) (*Document, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Extractor{
		".txt":      func() Extractor { return &TextExtractor{} },
		".md":       func() Extractor { return &MarkdownExtractor{} },
		".markdown": func() Extractor { return &MarkdownExtractor{} },
		".html":     func() Extractor { return &HTMLExtractor{} },
		".htm":      func() Extractor { return &HTMLExtractor{} },
		".docx":     func() Extractor { return &DOCXExtractor{} },
		".pdf":      func() Extractor { return &PDFExtractor{} },
		".csv":      func() Extractor { return &CSVExtractor{} },
		".json":     func() Extractor { return &JSONExtractor{} },
	}
)

// Register adds or replaces the extractor for the given extensions.
// Optional formats with native dependencies register themselves this way.
func Register(factory func() Extractor, exts ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, ext := range exts {
		registry[strings.ToLower(ext)] = factory
	}
}

// ForFile returns the appropriate extractor for a filename.
func ForFile(filename string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	registryMu.RLock()
	factory, ok := registry[ext]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
	return factory(), nil
}

// PageRecognizer reads the text lines of one page image. Boxes and font
// sizes are in pixels of that image.
type PageRecognizer func(ctx context.Context, img []byte) ([]doctree.TextLine, error)

var pageOCR PageRecognizer

// RegisterPageOCR installs the recognizer the PDF extractor falls back to
// for pages without a usable text layer. nil turns the fallback off.
func RegisterPageOCR(fn PageRecognizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	pageOCR = fn
}

func pageRecognizer() PageRecognizer {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return pageOCR
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[ext]
	return ok
}

// SupportedExtensions lists registered extensions in sorted order.
func SupportedExtensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for ext := range registry {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Stem returns the base filename without its extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FallbackTitle is the title used when a document has no usable lines.
func (d *Document) FallbackTitle() string {
	if t := strings.TrimSpace(d.MetaTitle); t != "" {
		return t
	}
	return Stem(d.Name)
}
