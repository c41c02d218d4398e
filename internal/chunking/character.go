package chunking

import (
	"strings"
	"unicode/utf8"
)

// Character splitter defaults.
const (
	DefaultSeparator        = "\n\n"
	DefaultCharacterSize    = 1000
	DefaultCharacterOverlap = 50
)

// CharacterSplitter splits on a separator and packs the pieces into chunks of
// at most ChunkSize characters. Consecutive chunks share whole trailing pieces
// totalling at most Overlap characters. Sizes are counted in runes.
type CharacterSplitter struct {
	Separator string
	ChunkSize int
	Overlap   int
}

// NewCharacterSplitter returns a splitter with the paragraph defaults.
func NewCharacterSplitter() *CharacterSplitter {
	return &CharacterSplitter{
		Separator: DefaultSeparator,
		ChunkSize: DefaultCharacterSize,
		Overlap:   DefaultCharacterOverlap,
	}
}

type piece struct {
	text  string
	runes int
}

// Split implements Splitter.
func (s *CharacterSplitter) Split(text string) ([]Chunk, error) {
	if err := checkSizes(s.ChunkSize, s.Overlap); err != nil {
		return nil, err
	}

	pieces := s.pieces(text)
	if len(pieces) == 0 {
		return nil, nil
	}

	var (
		chunks  []Chunk
		window  []piece
		winLen  int
		overlap int
	)
	emit := func() {
		var sb strings.Builder
		for _, p := range window {
			sb.WriteString(p.text)
		}
		chunks = append(chunks, Chunk{Text: sb.String(), Index: len(chunks), Overlap: overlap})
	}

	for _, p := range pieces {
		if len(window) > 0 && winLen+p.runes > s.ChunkSize {
			emit()
			// Keep the longest tail that fits the overlap and leaves room for p.
			for len(window) > 0 && (winLen > s.Overlap || winLen+p.runes > s.ChunkSize) {
				winLen -= window[0].runes
				window = window[1:]
			}
			overlap = 0
			for _, w := range window {
				overlap += len(w.text)
			}
		}
		window = append(window, p)
		winLen += p.runes
	}
	emit()

	return chunks, nil
}

// pieces splits text after each separator and breaks any piece longer than
// ChunkSize into ChunkSize-rune segments.
func (s *CharacterSplitter) pieces(text string) []piece {
	var raw []string
	if s.Separator == "" {
		raw = []string{text}
	} else {
		raw = strings.SplitAfter(text, s.Separator)
	}

	out := make([]piece, 0, len(raw))
	for _, r := range raw {
		for r != "" {
			n := utf8.RuneCountInString(r)
			if n <= s.ChunkSize {
				out = append(out, piece{text: r, runes: n})
				break
			}
			cut := byteOffset(r, s.ChunkSize)
			out = append(out, piece{text: r[:cut], runes: s.ChunkSize})
			r = r[cut:]
		}
	}
	return out
}

// byteOffset returns the byte index of the n-th rune in s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
