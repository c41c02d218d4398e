package prompts

import (
	"fmt"
	"strings"

	"github.com/jonathan/lead-extractor/internal/types"
)

// Prompt is an ordered chat transcript. The first turn is always the system turn.
type Prompt struct {
	Turns []Turn
}

// System returns the content of the system turn.
func (p *Prompt) System() string {
	if len(p.Turns) == 0 || p.Turns[0].Role != RoleSystem {
		return ""
	}
	return p.Turns[0].Content
}

// Messages returns every turn after the system turn.
func (p *Prompt) Messages() []Turn {
	if len(p.Turns) > 0 && p.Turns[0].Role == RoleSystem {
		return p.Turns[1:]
	}
	return p.Turns
}

// BuildInput holds everything needed to build one extraction prompt.
type BuildInput struct {
	SchemaName   string
	Instructions string
	Examples     []types.ExtractionExample
	Text         string
	// Encoder defaults to FunctionCallEncoder.
	Encoder ExampleEncoder
}

// Build assembles the extraction prompt: the system preamble with any
// instructions appended, one exchange per example in order, then the text.
// The same input always yields the same prompt.
func Build(in BuildInput) (*Prompt, error) {
	if in.SchemaName == "" {
		return nil, fmt.Errorf("schema name is required")
	}
	encoder := in.Encoder
	if encoder == nil {
		encoder = FunctionCallEncoder{}
	}

	preamble, err := Get(ExtractionFile, KeySystemPreamble)
	if err != nil {
		return nil, err
	}
	if instructions := strings.TrimSpace(in.Instructions); instructions != "" {
		preamble += "\n\n" + instructions
	}

	turns := []Turn{{Role: RoleSystem, Content: preamble}}
	for i, ex := range in.Examples {
		exampleTurns, err := encoder.EncodeExample(in.SchemaName, i, ex)
		if err != nil {
			return nil, err
		}
		turns = append(turns, exampleTurns...)
	}

	textTemplate, err := Get(ExtractionFile, KeyExtractFromText)
	if err != nil {
		return nil, err
	}
	turns = append(turns, Turn{
		Role:    RoleUser,
		Content: Format(textTemplate, map[string]string{"Text": in.Text}),
	})

	return &Prompt{Turns: turns}, nil
}
