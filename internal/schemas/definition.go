package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/jonathan/lead-extractor/internal/types"
)

//go:embed extractor.schema.json
var extractorDefinitionSchema string

// ExtractorDefinitionSchema returns the JSON Schema that extractor definition
// documents must satisfy.
func ExtractorDefinitionSchema() string {
	return extractorDefinitionSchema
}

// LoadExtractor parses an extractor definition document. The document is
// checked against the definition schema, the struct validator, and finally the
// embedded record schema and example outputs are compiled and checked.
func LoadExtractor(data []byte) (*types.Extractor, *ExtractionSchema, error) {
	if err := ValidateJSONBytes("extractor definition", extractorDefinitionSchema, data); err != nil {
		return nil, nil, err
	}

	var extractor types.Extractor
	if err := json.Unmarshal(data, &extractor); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal extractor definition: %w", err)
	}
	if err := extractor.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid extractor definition: %w", err)
	}

	schema, err := Compile(extractor.Schema)
	if err != nil {
		return nil, nil, err
	}
	if err := schema.ValidateExamples(extractor.Examples); err != nil {
		return nil, nil, err
	}
	return &extractor, schema, nil
}
