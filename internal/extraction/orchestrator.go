// Package extraction runs extractors over documents: it validates the schema,
// splits or narrows the text, fans the pieces out to the model invoker and
// merges the results.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/lead-extractor/internal/chunking"
	"github.com/jonathan/lead-extractor/internal/llm"
	"github.com/jonathan/lead-extractor/internal/schemas"
	"github.com/jonathan/lead-extractor/internal/types"
)

// ProgressEvent represents a progress update during an extraction run
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when extraction progress occurs
type ProgressCallback func(event ProgressEvent)

// Narrower selects the passages of a document relevant to a query.
type Narrower interface {
	Narrow(ctx context.Context, corpus, query string) ([]string, error)
}

// Options configures an Orchestrator.
type Options struct {
	Invoker *llm.Invoker
	// Registry defaults to the invoker's registry.
	Registry  *llm.Registry
	Tokenizer chunking.Tokenizer
	// Narrower is required only for retrieval mode.
	Narrower Narrower
	// MaxChunks caps the chunks sent per document. Zero or less means unlimited.
	MaxChunks int
	// TokenOverlap is the token overlap between consecutive chunks. Zero means
	// none; a negative value selects chunking.DefaultTokenOverlap.
	TokenOverlap int
	Logger       *zap.Logger
	OnProgress   ProgressCallback
}

// Orchestrator runs extractions in either mode.
type Orchestrator struct {
	invoker      *llm.Invoker
	registry     *llm.Registry
	tokenizer    chunking.Tokenizer
	narrower     Narrower
	maxChunks    int
	tokenOverlap int
	logger       *zap.Logger
	onProgress   ProgressCallback
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Invoker == nil {
		return nil, fmt.Errorf("model invoker is required")
	}
	if opts.Tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	o := &Orchestrator{
		invoker:      opts.Invoker,
		registry:     opts.Registry,
		tokenizer:    opts.Tokenizer,
		narrower:     opts.Narrower,
		maxChunks:    opts.MaxChunks,
		tokenOverlap: opts.TokenOverlap,
		logger:       opts.Logger,
		onProgress:   opts.OnProgress,
	}
	if o.registry == nil {
		o.registry = opts.Invoker.Registry()
	}
	if o.tokenOverlap < 0 {
		o.tokenOverlap = chunking.DefaultTokenOverlap
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o, nil
}

// Extract runs the extractor over text in the given mode.
func (o *Orchestrator) Extract(ctx context.Context, mode types.Mode, text string, ex *types.Extractor, model string) (*types.ExtractionResponse, error) {
	switch mode {
	case types.ModeEntireDocument, "":
		return o.EntireDocument(ctx, text, ex, model)
	case types.ModeRetrieval:
		return o.FromContent(ctx, text, ex, model)
	default:
		return nil, fmt.Errorf("unknown extraction mode %q", mode)
	}
}

// EntireDocument splits text into model-sized token chunks, extracts from
// each and merges the results. ContentTooLong reports whether chunks beyond
// MaxChunks were dropped.
func (o *Orchestrator) EntireDocument(ctx context.Context, text string, ex *types.Extractor, model string) (*types.ExtractionResponse, error) {
	run := o.newRun()
	schema, spec, err := o.prepare(ex, model)
	if err != nil {
		return nil, err
	}

	splitter := &chunking.TokenSplitter{Tokenizer: o.tokenizer, ChunkSize: spec.ChunkSize, Overlap: o.tokenOverlap}
	if splitter.Overlap >= splitter.ChunkSize {
		splitter.Overlap = 0
	}
	chunks, err := splitter.Split(text)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}
	total := len(chunks)
	chunks, truncated := chunking.Cap(chunks, o.maxChunks)
	if truncated {
		o.logger.Warn("document exceeds chunk limit, truncating",
			zap.String("run_id", run.id),
			zap.Int("chunks", total),
			zap.Int("max_chunks", o.maxChunks))
	}
	run.progress("chunk", fmt.Sprintf("Split document into %d chunks of up to %d tokens", len(chunks), spec.ChunkSize))

	resp, err := o.extractAll(ctx, run, chunking.Texts(chunks), ex, schema, spec)
	if err != nil {
		return nil, err
	}
	resp.ContentTooLong = truncated
	return resp, nil
}

// FromContent extracts only from the passages most relevant to the extractor.
// The query is the extractor description, or the schema title when the
// description is blank. Retrieval never truncates, so ContentTooLong is false.
func (o *Orchestrator) FromContent(ctx context.Context, text string, ex *types.Extractor, model string) (*types.ExtractionResponse, error) {
	run := o.newRun()
	schema, spec, err := o.prepare(ex, model)
	if err != nil {
		return nil, err
	}
	if o.narrower == nil {
		return nil, fmt.Errorf("retrieval mode requires an embedding narrower")
	}

	query := strings.TrimSpace(ex.Description)
	if query == "" {
		query = schema.Title()
	}
	passages, err := o.narrower.Narrow(ctx, text, query)
	if err != nil {
		return nil, fmt.Errorf("failed to narrow document: %w", err)
	}
	run.progress("narrow", fmt.Sprintf("Selected %d passages for %q", len(passages), query))

	return o.extractAll(ctx, run, passages, ex, schema, spec)
}

// prepare validates everything that can fail before any text is chunked or
// any model is called.
func (o *Orchestrator) prepare(ex *types.Extractor, model string) (*schemas.ExtractionSchema, llm.ModelSpec, error) {
	if ex == nil {
		return nil, llm.ModelSpec{}, fmt.Errorf("extractor is required")
	}
	schema, err := schemas.Compile(ex.Schema)
	if err != nil {
		return nil, llm.ModelSpec{}, err
	}
	if err := schema.ValidateExamples(ex.Examples); err != nil {
		return nil, llm.ModelSpec{}, err
	}
	spec, err := o.registry.Resolve(model)
	if err != nil {
		return nil, llm.ModelSpec{}, err
	}
	return schema, spec, nil
}

func (o *Orchestrator) extractAll(ctx context.Context, r *run, texts []string, ex *types.Extractor, schema *schemas.ExtractionSchema, spec llm.ModelSpec) (*types.ExtractionResponse, error) {
	start := time.Now()
	reqs := make([]llm.Request, len(texts))
	for i, t := range texts {
		reqs[i] = llm.Request{
			Text:         t,
			Schema:       schema,
			Instructions: ex.Instruction,
			Examples:     ex.Examples,
			ModelName:    spec.Name,
		}
	}

	r.progress("invoke", fmt.Sprintf("Sending %d requests to %s", len(reqs), spec.Name))
	results, err := o.invoker.Batch(ctx, reqs)
	if err != nil {
		o.logger.Error("extraction failed",
			zap.String("run_id", r.id),
			zap.String("extractor", ex.Name),
			zap.String("model", spec.Name),
			zap.Error(err))
		return nil, err
	}

	data := Deduplicate(results)
	r.progress("deduplicate", fmt.Sprintf("Extracted %d unique records", len(data)))
	o.logger.Info("extraction complete",
		zap.String("run_id", r.id),
		zap.String("extractor", ex.Name),
		zap.String("model", spec.Name),
		zap.Int("requests", len(reqs)),
		zap.Int("records", len(data)),
		zap.Duration("duration", time.Since(start)))
	return &types.ExtractionResponse{Data: data}, nil
}

type run struct {
	id         string
	onProgress ProgressCallback
}

func (o *Orchestrator) newRun() *run {
	return &run{id: uuid.NewString(), onProgress: o.onProgress}
}

func (r *run) progress(step, message string) {
	if r.onProgress != nil {
		r.onProgress(ProgressEvent{Step: step, Message: message, RunID: r.id})
	}
}
