package extraction

import (
	"encoding/json"

	"github.com/jonathan/lead-extractor/internal/types"
)

// Deduplicate flattens the records of every response, in response order, and
// drops exact duplicates. Records are compared by their canonical JSON form,
// so key order never matters but any differing value keeps both.
func Deduplicate(responses []*types.ExtractionResponse) []types.Record {
	var all []types.Record
	for _, r := range responses {
		if r == nil {
			continue
		}
		all = append(all, r.Data...)
	}
	return DeduplicateRecords(all)
}

// DeduplicateRecords keeps the first occurrence of each distinct record.
// Applying it twice gives the same result as applying it once.
func DeduplicateRecords(records []types.Record) []types.Record {
	out := make([]types.Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		// encoding/json writes map keys in sorted order.
		key, err := json.Marshal(rec)
		if err != nil {
			out = append(out, rec)
			continue
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		out = append(out, rec)
	}
	return out
}
