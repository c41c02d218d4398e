// Package types provides type definitions for structured data used throughout the lead-extractor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Record is a single extracted item. Schemas are supplied at runtime, so
// records are open maps rather than Go structs.
type Record map[string]any

// ExtractionExample pairs an input text with the records a model should
// produce for it. Examples are used for few-shot prompting in order.
type ExtractionExample struct {
	Text   string   `json:"text" validate:"required"`
	Output []Record `json:"output"`
}

// Extractor is a named, persisted extraction configuration: a target schema,
// free-text instructions and few-shot examples.
type Extractor struct {
	ID          uuid.UUID           `json:"id,omitempty"`
	OwnerID     string              `json:"owner_id,omitempty"`
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description,omitempty" validate:"max=1000"`
	Instruction string              `json:"instruction,omitempty"`
	Schema      json.RawMessage     `json:"json_schema" validate:"required"`
	Examples    []ExtractionExample `json:"examples,omitempty" validate:"dive"`
	CreatedAt   time.Time           `json:"created_at,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at,omitempty"`
}

// Validate validates the Extractor using the validator.
func (e *Extractor) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}
