package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/lead-extractor/internal/types"
)

// SaveExtraction stores the result of one extraction call.
func (db *DB) SaveExtraction(ctx context.Context, in ExtractionRunInput) (uuid.UUID, error) {
	if in.Response == nil {
		return uuid.Nil, fmt.Errorf("extraction response is required")
	}
	records, err := marshalRecords(in.Response.Data)
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO extraction_runs (extractor_id, model_name, mode, source, records, content_too_long)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		in.ExtractorID, in.ModelName, string(in.Mode), in.Source, records, in.Response.ContentTooLong,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save extraction: %w", err)
	}
	return id, nil
}

// ListExtractions returns stored results for an extractor, newest first.
// A limit of zero or less returns all of them.
func (db *DB) ListExtractions(ctx context.Context, extractorID uuid.UUID, limit int) ([]ExtractionRun, error) {
	query := `SELECT id, extractor_id, model_name, mode, source, records, content_too_long, created_at
		FROM extraction_runs WHERE extractor_id = $1 ORDER BY created_at DESC`
	args := []any{extractorID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	var out []ExtractionRun
	for rows.Next() {
		run, err := scanExtractionRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	return out, nil
}

func scanExtractionRun(row pgx.Row) (*ExtractionRun, error) {
	var (
		run     ExtractionRun
		mode    string
		records []byte
	)
	err := row.Scan(&run.ID, &run.ExtractorID, &run.ModelName, &mode, &run.Source,
		&records, &run.ContentTooLong, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.Mode = types.Mode(mode)
	run.Records = []types.Record{}
	if len(records) > 0 {
		if err := json.Unmarshal(records, &run.Records); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
	}
	return &run, nil
}

func marshalRecords(records []types.Record) ([]byte, error) {
	if records == nil {
		records = []types.Record{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return b, nil
}
