// Package extract turns raw uploaded bytes into plain text for chunking.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/poiesic/docchat/core"
)

// Extractor converts the raw bytes of one file type to plain text.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, raw []byte) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, raw []byte) (string, error) {
	return f(ctx, raw)
}

// Registry maps file types to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[core.FileType]Extractor
}

// NewRegistry creates a registry with the txt, md and html extractors.
func NewRegistry() *Registry {
	r := &Registry{extractors: map[core.FileType]Extractor{}}
	r.Register(core.FileTypeText, ExtractorFunc(extractText))
	r.Register(core.FileTypeMarkdown, ExtractorFunc(extractMarkdown))
	r.Register(core.FileTypeHTML, ExtractorFunc(extractHTML))
	return r
}

// Register adds or replaces the extractor for a file type.
func (r *Registry) Register(ft core.FileType, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[ft] = e
}

// Supports reports whether a file type has an extractor.
func (r *Registry) Supports(ft core.FileType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[ft]
	return ok
}

// Extract converts raw to text with the extractor registered for ft.
func (r *Registry) Extract(ctx context.Context, raw []byte, ft core.FileType) (string, error) {
	r.mu.RLock()
	e, ok := r.extractors[ft]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ft)
	}
	return e.Extract(ctx, raw)
}

// DetectFileType maps a file name's extension to a FileType.
func DetectFileType(name string) (core.FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text":
		return core.FileTypeText, nil
	case ".md", ".markdown":
		return core.FileTypeMarkdown, nil
	case ".html", ".htm":
		return core.FileTypeHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}
