package ingestion

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 512

	// DefaultChunkOverlap is the number of characters shared by neighbouring chunks.
	DefaultChunkOverlap = 64
)

// chunkSeparators are tried in order: paragraph, line, sentence, word, then
// single characters as the hard cut.
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits document text into overlapping passages.
type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker producing chunks of at most size characters,
// with overlap characters carried between neighbours.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size < 1 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidChunking
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(chunkSeparators),
		),
	}, nil
}

// DefaultChunker returns a chunker with DefaultChunkSize and DefaultChunkOverlap.
func DefaultChunker() *Chunker {
	c, _ := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	return c
}

// Size returns the maximum chunk length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text. Whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks, nil
}
