package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/lead-extractor/internal/types"
)

// ExtractionRun is a stored extraction result.
type ExtractionRun struct {
	ID             uuid.UUID      `json:"id"`
	ExtractorID    uuid.UUID      `json:"extractor_id"`
	ModelName      string         `json:"model_name"`
	Mode           types.Mode     `json:"mode"`
	Source         string         `json:"source,omitempty"`
	Records        []types.Record `json:"records"`
	ContentTooLong bool           `json:"content_too_long"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ExtractionRunInput describes a result to store.
type ExtractionRunInput struct {
	ExtractorID uuid.UUID
	ModelName   string
	Mode        types.Mode
	Source      string
	Response    *types.ExtractionResponse
}
