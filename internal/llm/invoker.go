package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonathan/lead-extractor/internal/prompts"
	"github.com/jonathan/lead-extractor/internal/schemas"
	"github.com/jonathan/lead-extractor/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Invoker defaults.
const (
	DefaultMaxConcurrency = 1
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 500 * time.Millisecond
)

// Request is one chunk-level extraction. One request maps to exactly one
// model invocation (plus retries of transient failures).
type Request struct {
	Text         string
	Schema       *schemas.ExtractionSchema
	Instructions string
	Examples     []types.ExtractionExample
	ModelName    string
}

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	Registry *Registry
	Backends []Backend
	// MaxConcurrency caps in-flight model calls per Batch. Defaults to 1.
	MaxConcurrency int
	MaxAttempts    uint
	RetryDelay     time.Duration
	Metrics        *Metrics
	Logger         *zap.Logger
}

// Invoker sends extraction requests to the backend serving each model.
type Invoker struct {
	registry       *Registry
	backends       map[Provider]Backend
	maxConcurrency int
	maxAttempts    uint
	retryDelay     time.Duration
	metrics        *Metrics
	logger         *zap.Logger
}

// NewInvoker creates an Invoker. Every backend is keyed by its provider name.
func NewInvoker(cfg InvokerConfig) (*Invoker, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("model registry is required")
	}

	backends := make(map[Provider]Backend, len(cfg.Backends))
	for _, b := range cfg.Backends {
		if b == nil {
			continue
		}
		backends[b.Name()] = b
	}

	inv := &Invoker{
		registry:       cfg.Registry,
		backends:       backends,
		maxConcurrency: cfg.MaxConcurrency,
		maxAttempts:    cfg.MaxAttempts,
		retryDelay:     cfg.RetryDelay,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
	if inv.maxConcurrency <= 0 {
		inv.maxConcurrency = DefaultMaxConcurrency
	}
	if inv.maxAttempts == 0 {
		inv.maxAttempts = DefaultMaxAttempts
	}
	if inv.retryDelay <= 0 {
		inv.retryDelay = DefaultRetryDelay
	}
	if inv.logger == nil {
		inv.logger = zap.NewNop()
	}
	return inv, nil
}

// Registry returns the registry models are resolved against.
func (inv *Invoker) Registry() *Registry {
	return inv.registry
}

// Invoke runs a single extraction request. Unknown models fail with
// *UnsupportedModelError; every provider or output failure is a *ProviderError.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (*types.ExtractionResponse, error) {
	if req.Schema == nil {
		return nil, &schemas.SchemaError{Message: "extraction schema is required"}
	}
	spec, err := inv.registry.Resolve(req.ModelName)
	if err != nil {
		return nil, err
	}
	backend, ok := inv.backends[spec.Provider]
	if !ok {
		return nil, fmt.Errorf("no backend configured for provider %s (model %s)", spec.Provider, spec.Name)
	}

	prompt, err := prompts.Build(prompts.BuildInput{
		SchemaName:   req.Schema.FunctionName(),
		Instructions: req.Instructions,
		Examples:     req.Examples,
		Text:         req.Text,
		Encoder:      backend.Encoder(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}
	fn := Function{
		Name:        req.Schema.FunctionName(),
		Description: functionDescription(req.Schema),
		Parameters:  req.Schema.FunctionParameters(),
	}

	done := inv.metrics.start()
	raw, err := retry.DoWithData(
		func() (string, error) {
			return backend.Complete(ctx, spec.Name, prompt, fn)
		},
		retry.Context(ctx),
		retry.Attempts(inv.maxAttempts),
		retry.Delay(inv.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(n uint, err error) {
			inv.metrics.retried(spec.Name)
			inv.logger.Warn("retrying model call",
				zap.String("model", spec.Name),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		done(spec.Name, "error")
		return nil, providerError(backend.Name(), "completion", err)
	}

	records, err := ParseRecords(raw)
	if err != nil {
		done(spec.Name, "invalid_output")
		return nil, &ProviderError{Provider: string(backend.Name()), Op: "parse output", Cause: err}
	}
	for i, rec := range records {
		if err := req.Schema.ValidateRecord(rec); err != nil {
			done(spec.Name, "invalid_output")
			return nil, &ProviderError{
				Provider: string(backend.Name()),
				Op:       "validate output",
				Cause:    fmt.Errorf("record %d does not conform to schema %q: %w", i, req.Schema.Title(), err),
			}
		}
	}

	done(spec.Name, "ok")
	return &types.ExtractionResponse{Data: records}, nil
}

// Batch runs requests concurrently with at most MaxConcurrency in flight;
// excess requests wait for a slot. Results are returned by position. The first
// failure cancels the calls still pending and fails the whole batch.
func (inv *Invoker) Batch(ctx context.Context, reqs []Request) ([]*types.ExtractionResponse, error) {
	results := make([]*types.ExtractionResponse, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.maxConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := inv.Invoke(gctx, req)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func functionDescription(s *schemas.ExtractionSchema) string {
	if d := s.Description(); d != "" {
		return d
	}
	return fmt.Sprintf("Extract %s records from the text", s.Title())
}
