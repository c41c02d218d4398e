package llm

import (
	"context"

	"github.com/jonathan/lead-extractor/internal/prompts"
)

// Function is the structured-output function a model is asked to call.
type Function struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Backend sends a prompt to one provider and returns the raw JSON argument
// payload of the extraction call, {"data": [...]}.
type Backend interface {
	// Name returns the provider this backend serves
	Name() Provider
	// Encoder returns how few-shot examples must be encoded for this backend
	Encoder() prompts.ExampleEncoder
	// Complete runs one structured-output completion
	Complete(ctx context.Context, model string, prompt *prompts.Prompt, fn Function) (string, error)
}
