package chunking

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Token splitter defaults.
const (
	DefaultEncoding     = "cl100k_base"
	DefaultTokenOverlap = 20
)

// Tokenizer converts between text and token ids. Decode(Encode(s)) must
// return s exactly.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Tiktoken is a Tokenizer backed by a BPE encoding.
type Tiktoken struct {
	tkm *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, or cl100k_base when empty.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tkm, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %s: %w", encoding, err)
	}
	return &Tiktoken{tkm: tkm}, nil
}

// Encode treats special-token text as ordinary text so any input round-trips.
func (t *Tiktoken) Encode(text string) []int {
	return t.tkm.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(tokens []int) string {
	return t.tkm.Decode(tokens)
}

// TokenSplitter cuts text into fixed windows of ChunkSize tokens, each window
// starting ChunkSize-Overlap tokens after the previous one.
type TokenSplitter struct {
	Tokenizer Tokenizer
	ChunkSize int
	Overlap   int
}

// Split implements Splitter. Text that is empty or only whitespace yields no
// chunks.
func (s *TokenSplitter) Split(text string) ([]Chunk, error) {
	if s.Tokenizer == nil {
		return nil, fmt.Errorf("token splitter has no tokenizer")
	}
	if err := checkSizes(s.ChunkSize, s.Overlap); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tokens := s.Tokenizer.Encode(text)
	n := len(tokens)
	if n == 0 {
		return nil, nil
	}

	stride := s.ChunkSize - s.Overlap
	var chunks []Chunk
	for start := 0; ; start += stride {
		end := min(start+s.ChunkSize, n)
		overlap := 0
		if start > 0 {
			overlap = len(s.Tokenizer.Decode(tokens[start : start+s.Overlap]))
		}
		chunks = append(chunks, Chunk{
			Text:    s.Tokenizer.Decode(tokens[start:end]),
			Index:   len(chunks),
			Overlap: overlap,
		})
		if end == n {
			break
		}
	}
	return chunks, nil
}
