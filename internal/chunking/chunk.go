// Package chunking splits document text into bounded, overlapping segments
// sized for a single model invocation or embedding call.
package chunking

import (
	"fmt"
	"strings"
)

// Chunk is one contiguous segment of source text.
// The first Overlap bytes of Text repeat the tail of the previous chunk.
type Chunk struct {
	Text    string
	Index   int
	Overlap int
}

// Fresh returns the part of the chunk not shared with its predecessor.
func (c Chunk) Fresh() string {
	return c.Text[c.Overlap:]
}

// Splitter turns text into an ordered, finite sequence of chunks.
type Splitter interface {
	Split(text string) ([]Chunk, error)
}

// Reconstruct concatenates chunks with their overlaps removed.
func Reconstruct(chunks []Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c.Text)
			continue
		}
		sb.WriteString(c.Fresh())
	}
	return sb.String()
}

// Cap truncates chunks to at most limit entries and reports whether anything was
// dropped. A limit of zero or less means unlimited.
func Cap(chunks []Chunk, limit int) ([]Chunk, bool) {
	if limit <= 0 || len(chunks) <= limit {
		return chunks, false
	}
	return chunks[:limit], true
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func checkSizes(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return nil
}
