// Package llm resolves extraction models, talks to the model and embedding
// providers, and runs extraction requests under a concurrency ceiling.
package llm

import (
	"fmt"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenAI is the OpenAI chat completions API with function calling
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini API in JSON mode
	ProviderGemini Provider = "gemini"
)

// Token budgets per chunk.
const (
	DefaultChunkSize      = 4000
	LargeContextChunkSize = 50000
)

// ModelSpec describes one supported extraction model.
type ModelSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Provider    Provider `json:"provider"`
	// ChunkSize is the token budget for one chunk sent to this model.
	ChunkSize int  `json:"chunk_size"`
	Default   bool `json:"default,omitempty"`
}

// Registry is the fixed set of models an invoker may use. It is immutable
// once built; WithModel returns a modified copy.
type Registry struct {
	models []ModelSpec
	byName map[string]int
	def    int
}

// NewRegistry builds a registry. Names must be unique and chunk sizes positive.
// At most one spec may be marked Default; without one the first spec is the default.
func NewRegistry(specs ...ModelSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("registry needs at least one model")
	}

	r := &Registry{
		models: make([]ModelSpec, 0, len(specs)),
		byName: make(map[string]int, len(specs)),
		def:    -1,
	}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("model name is required")
		}
		if _, dup := r.byName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate model %q", spec.Name)
		}
		if spec.ChunkSize <= 0 {
			return nil, fmt.Errorf("model %q: chunk size must be positive", spec.Name)
		}
		if spec.Provider == "" {
			return nil, fmt.Errorf("model %q: provider is required", spec.Name)
		}
		if spec.Default {
			if r.def >= 0 {
				return nil, fmt.Errorf("models %q and %q are both marked default", r.models[r.def].Name, spec.Name)
			}
			r.def = len(r.models)
		}
		r.byName[spec.Name] = len(r.models)
		r.models = append(r.models, spec)
	}
	if r.def < 0 {
		r.def = 0
		r.models[0].Default = true
	}
	return r, nil
}

// DefaultRegistry returns the models supported out of the box.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		ModelSpec{
			Name:        "gpt-3.5-turbo",
			Description: "GPT-3.5 Turbo (default)",
			Provider:    ProviderOpenAI,
			ChunkSize:   DefaultChunkSize,
			Default:     true,
		},
		ModelSpec{
			Name:        "gpt-4o-mini",
			Description: "GPT-4o mini",
			Provider:    ProviderOpenAI,
			ChunkSize:   DefaultChunkSize,
		},
		ModelSpec{
			Name:        "gpt-4-0125-preview",
			Description: "GPT-4 Turbo, large context",
			Provider:    ProviderOpenAI,
			ChunkSize:   LargeContextChunkSize,
		},
		ModelSpec{
			Name:        "gemini-2.5-flash",
			Description: "Gemini 2.5 Flash, large context",
			Provider:    ProviderGemini,
			ChunkSize:   LargeContextChunkSize,
		},
	)
	if err != nil {
		panic(fmt.Sprintf("invalid default registry: %v", err))
	}
	return r
}

// Resolve returns the spec for name. An empty name resolves to the default model.
func (r *Registry) Resolve(name string) (ModelSpec, error) {
	if name == "" {
		return r.models[r.def], nil
	}
	idx, ok := r.byName[name]
	if !ok {
		return ModelSpec{}, &UnsupportedModelError{Model: name, Available: r.Names()}
	}
	return r.models[idx], nil
}

// Default returns the default model spec.
func (r *Registry) Default() ModelSpec {
	return r.models[r.def]
}

// Models returns every spec in registration order.
func (r *Registry) Models() []ModelSpec {
	out := make([]ModelSpec, len(r.models))
	copy(out, r.models)
	return out
}

// Names returns every model name in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.models))
	for i, m := range r.models {
		names[i] = m.Name
	}
	return names
}

// WithModel returns a new Registry with spec added, or replacing the model of
// the same name. Marking spec Default moves the default to it.
func (r *Registry) WithModel(spec ModelSpec) (*Registry, error) {
	specs := make([]ModelSpec, 0, len(r.models)+1)
	replaced := false
	for _, m := range r.models {
		if spec.Default {
			m.Default = false
		}
		if m.Name == spec.Name {
			if !spec.Default && m.Default {
				spec.Default = true
			}
			m = spec
			replaced = true
		}
		specs = append(specs, m)
	}
	if !replaced {
		specs = append(specs, spec)
	}
	return NewRegistry(specs...)
}
