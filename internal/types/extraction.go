//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects how a document is fed to the model.
type Mode string

const (
	// ModeEntireDocument token-chunks the whole document.
	ModeEntireDocument Mode = "entire_document"
	// ModeRetrieval narrows the document to the passages most similar to the
	// extractor description before extraction.
	ModeRetrieval Mode = "retrieval"
)

// ParseMode converts a user-supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeEntireDocument:
		return ModeEntireDocument, nil
	case ModeRetrieval:
		return ModeRetrieval, nil
	default:
		return "", fmt.Errorf("unknown extraction mode %q (expected %q or %q)", s, ModeEntireDocument, ModeRetrieval)
	}
}

// ExtractionResponse is the result of one extraction call.
// ContentTooLong reports that the document was truncated to the chunk budget;
// callers must check it rather than infer truncation from Data.
type ExtractionResponse struct {
	Data           []Record `json:"data"`
	ContentTooLong bool     `json:"content_too_long"`
}

// MarshalJSON always emits data as a list, never null.
func (r ExtractionResponse) MarshalJSON() ([]byte, error) {
	type alias ExtractionResponse
	out := alias(r)
	if out.Data == nil {
		out.Data = []Record{}
	}
	return json.Marshal(out)
}
