// Package retrieval narrows a long document to the passages most relevant to
// an extractor before any model is invoked.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jonathan/lead-extractor/internal/chunking"
	"github.com/jonathan/lead-extractor/internal/llm"
	"gonum.org/v1/gonum/floats"
)

// DefaultK is the number of passages returned when K is unset.
const DefaultK = 4

// Narrower selects the top-K passages of a corpus by embedding similarity to a
// query. The index it builds lives only for the duration of one Narrow call.
type Narrower struct {
	// Splitter defaults to chunking.NewCharacterSplitter().
	Splitter chunking.Splitter
	Embedder llm.Embedder
	K        int
}

// NewNarrower returns a Narrower with the default splitter and K.
func NewNarrower(embedder llm.Embedder) *Narrower {
	return &Narrower{
		Splitter: chunking.NewCharacterSplitter(),
		Embedder: embedder,
		K:        DefaultK,
	}
}

type scored struct {
	index int
	score float64
}

// Narrow returns up to K passages of corpus ordered by descending similarity
// to query. Equal scores keep document order. Fewer than K passages in the
// corpus means all of them are returned.
func (n *Narrower) Narrow(ctx context.Context, corpus, query string) ([]string, error) {
	if n.Embedder == nil {
		return nil, fmt.Errorf("retrieval requires an embedder")
	}
	splitter := n.Splitter
	if splitter == nil {
		splitter = chunking.NewCharacterSplitter()
	}
	k := n.K
	if k <= 0 {
		k = DefaultK
	}

	chunks, err := splitter.Split(corpus)
	if err != nil {
		return nil, fmt.Errorf("failed to split corpus: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	passages := chunking.Texts(chunks)

	docs, err := n.Embedder.EmbedDocuments(ctx, passages)
	if err != nil {
		return nil, embeddingError(err)
	}
	if len(docs) != len(passages) {
		return nil, embeddingError(fmt.Errorf("expected %d passage embeddings, got %d", len(passages), len(docs)))
	}
	q, err := n.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, embeddingError(err)
	}

	ranked := make([]scored, len(docs))
	for i, d := range docs {
		if len(d) != len(q) {
			return nil, embeddingError(fmt.Errorf("passage %d has dimension %d, query has %d", i, len(d), len(q)))
		}
		ranked[i] = scored{index: i, score: CosineSimilarity(q, d)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := range out {
		out[i] = passages[ranked[i].index]
	}
	return out, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or zero
// when either vector has no magnitude. Both must have the same length.
func CosineSimilarity(a, b []float64) float64 {
	val := floats.Dot(a, b) / (floats.Norm(a, 2) * floats.Norm(b, 2))
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0
	}
	return val
}

func embeddingError(err error) error {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &llm.ProviderError{Provider: "embedding", Op: "embeddings", Cause: err}
}
