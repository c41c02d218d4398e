package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jonathan/lead-extractor/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	extractionResource = "mem://extraction.json"
	draft2020URI       = "https://json-schema.org/draft/2020-12/schema"
)

var invalidFunctionChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ExtractionSchema is a compiled, meta-validated JSON Schema describing one
// extracted record. It is safe for concurrent use.
type ExtractionSchema struct {
	doc      map[string]any
	title    string
	compiled *jsonschema.Schema
}

// Compile checks a caller-supplied schema and compiles it under Draft 2020-12.
// A schema declaring any other $schema is refused, and references outside the
// document are never fetched. Every failure is returned as a *SchemaError.
func Compile(raw json.RawMessage) (*ExtractionSchema, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &SchemaError{Message: "extraction schema is required"}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &SchemaError{Message: "schema must be a JSON object", Cause: err}
	}
	if doc == nil {
		return nil, &SchemaError{Message: "schema must be a JSON object"}
	}

	title, _ := doc["title"].(string)
	if strings.TrimSpace(title) == "" {
		return nil, &SchemaError{Message: "schema must declare a non-empty string title"}
	}

	if declared, ok := doc["$schema"]; ok {
		uri, _ := declared.(string)
		if strings.TrimSuffix(uri, "#") != draft2020URI {
			return nil, &SchemaError{Message: fmt.Sprintf("unsupported $schema %v: only %s is accepted", declared, draft2020URI)}
		}
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("external reference %s is not allowed", url)
	}
	if err := compiler.AddResource(extractionResource, bytes.NewReader(raw)); err != nil {
		return nil, &SchemaError{Message: "failed to load schema", Cause: err}
	}
	compiled, err := compiler.Compile(extractionResource)
	if err != nil {
		return nil, &SchemaError{Message: "schema failed meta-validation", Cause: err}
	}

	return &ExtractionSchema{
		doc:      doc,
		title:    strings.TrimSpace(title),
		compiled: compiled,
	}, nil
}

// Title returns the schema's declared title.
func (s *ExtractionSchema) Title() string {
	return s.title
}

// FunctionName returns the title in a form accepted as a tool name by
// function-calling APIs.
func (s *ExtractionSchema) FunctionName() string {
	name := invalidFunctionChars.ReplaceAllString(s.title, "_")
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// Description returns the schema's description, if any.
func (s *ExtractionSchema) Description() string {
	d, _ := s.doc["description"].(string)
	return d
}

// ValidateRecord checks a single record against the schema.
func (s *ExtractionSchema) ValidateRecord(record types.Record) error {
	// Round-trip so Go numeric types become the float64 the validator expects.
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return s.compiled.Validate(doc)
}

// ValidateExamples checks that every example output conforms to the schema.
func (s *ExtractionSchema) ValidateExamples(examples []types.ExtractionExample) error {
	for i, ex := range examples {
		for j, rec := range ex.Output {
			if err := s.ValidateRecord(rec); err != nil {
				return &SchemaError{
					Message: fmt.Sprintf("example %d output %d does not conform to schema %q", i, j, s.title),
					Cause:   err,
				}
			}
		}
	}
	return nil
}

// FunctionParameters returns the parameter schema for the extraction function:
// an object with a single "data" array whose items are records. Definitions are
// hoisted to the wrapper root so local references still resolve.
func (s *ExtractionSchema) FunctionParameters() map[string]any {
	items := deepCopy(s.doc).(map[string]any)
	delete(items, "$schema")
	delete(items, "$id")

	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data": map[string]any{
				"type":  "array",
				"items": items,
			},
		},
		"required": []any{"data"},
	}
	for _, key := range []string{"$defs", "definitions"} {
		if defs, ok := items[key]; ok {
			params[key] = defs
			delete(items, key)
		}
	}
	return params
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
