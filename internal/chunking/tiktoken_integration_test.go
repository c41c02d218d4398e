//go:build integration

package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiktoken_SplitReconstructs(t *testing.T) {
	tok, err := NewTiktoken("")
	require.NoError(t, err)

	text := strings.Repeat("Acme Corp has 500 employees and is hiring Go engineers in Berlin. ", 200) +
		"<|endoftext|> is treated as plain text."

	assert.Equal(t, text, tok.Decode(tok.Encode(text)))

	chunks, err := (&TokenSplitter{Tokenizer: tok, ChunkSize: 256, Overlap: DefaultTokenOverlap}).Split(text)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, text, Reconstruct(chunks))
	assert.Greater(t, len(tok.Encode(text)), 256)
}
