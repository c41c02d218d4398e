package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go/v3"
)

// Default embedding models.
const (
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultGeminiEmbeddingModel = "text-embedding-004"
)

// Embedder maps text into a vector space shared by documents and queries.
type Embedder interface {
	// EmbedDocuments returns one vector per text, in order
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
	// EmbedQuery returns the vector for a search query
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// OpenAIEmbedder embeds with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder for model, or the default model when empty.
func NewOpenAIEmbedder(client openai.Client, model string) *OpenAIEmbedder {
	if model == "" {
		model = DefaultOpenAIEmbeddingModel
	}
	return &OpenAIEmbedder{client: client, model: model}
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// EmbedDocuments implements Embedder.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          openai.EmbeddingModel(e.model),
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, providerError(ProviderOpenAI, "embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &ProviderError{
			Provider: string(ProviderOpenAI),
			Op:       "embeddings",
			Cause:    fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) || vectors[d.Index] != nil {
			return nil, &ProviderError{
				Provider: string(ProviderOpenAI),
				Op:       "embeddings",
				Cause:    fmt.Errorf("unexpected embedding index %d", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedQuery implements Embedder.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GeminiEmbedder embeds with the Gemini embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder for model, or the default model when empty.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: model}
}

// Model returns the embedding model name.
func (e *GeminiEmbedder) Model() string {
	return e.model
}

// EmbedDocuments implements Embedder.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, providerError(ProviderGemini, "embeddings", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &ProviderError{
			Provider: string(ProviderGemini),
			Op:       "embeddings",
			Cause:    fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)),
		}
	}

	vectors := make([][]float64, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, &ProviderError{Provider: string(ProviderGemini), Op: "embeddings", Cause: fmt.Errorf("missing embedding %d", i)}
		}
		vectors[i] = toFloat64(emb.Values)
	}
	return vectors, nil
}

// EmbedQuery implements Embedder.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, providerError(ProviderGemini, "embeddings", err)
	}
	if resp.Embedding == nil {
		return nil, &ProviderError{Provider: string(ProviderGemini), Op: "embeddings", Cause: fmt.Errorf("empty embedding")}
	}
	return toFloat64(resp.Embedding.Values), nil
}

func toFloat64(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
