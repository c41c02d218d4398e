package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/lead-extractor/internal/types"
)

const extractorColumns = `id, owner_id, name, description, instruction, json_schema, examples, created_at, updated_at`

// CreateExtractor stores a new extractor definition and returns it with its
// generated ID and timestamps.
func (db *DB) CreateExtractor(ctx context.Context, ex *types.Extractor) (*types.Extractor, error) {
	if ex == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if err := ex.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extractor: %w", err)
	}
	if ex.OwnerID == "" {
		return nil, fmt.Errorf("extractor owner is required")
	}

	examples, err := marshalExamples(ex.Examples)
	if err != nil {
		return nil, err
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO extractors (owner_id, name, description, instruction, json_schema, examples)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+extractorColumns,
		ex.OwnerID, ex.Name, ex.Description, ex.Instruction, []byte(ex.Schema), examples,
	)
	created, err := scanExtractor(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	return created, nil
}

// GetExtractor retrieves an extractor by ID. Missing rows return an error
// wrapping ErrNotFound.
func (db *DB) GetExtractor(ctx context.Context, id uuid.UUID) (*types.Extractor, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+extractorColumns+` FROM extractors WHERE id = $1`, id)
	ex, err := scanExtractor(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("failed to get extractor %s", id))
	}
	return ex, nil
}

// ListExtractors returns the extractors owned by owner, newest first.
func (db *DB) ListExtractors(ctx context.Context, owner string) ([]types.Extractor, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+extractorColumns+` FROM extractors WHERE owner_id = $1 ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractors: %w", err)
	}
	defer rows.Close()

	var out []types.Extractor
	for rows.Next() {
		ex, err := scanExtractor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extractor: %w", err)
		}
		out = append(out, *ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list extractors: %w", err)
	}
	return out, nil
}

// DeleteExtractor removes an extractor and, through the foreign key, its runs.
func (db *DB) DeleteExtractor(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM extractors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete extractor %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete extractor %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanExtractor(row pgx.Row) (*types.Extractor, error) {
	var (
		ex       types.Extractor
		schema   []byte
		examples []byte
	)
	err := row.Scan(&ex.ID, &ex.OwnerID, &ex.Name, &ex.Description, &ex.Instruction,
		&schema, &examples, &ex.CreatedAt, &ex.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ex.Schema = json.RawMessage(schema)
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &ex.Examples); err != nil {
			return nil, fmt.Errorf("failed to decode examples: %w", err)
		}
	}
	return &ex, nil
}

func marshalExamples(examples []types.ExtractionExample) ([]byte, error) {
	if examples == nil {
		examples = []types.ExtractionExample{}
	}
	b, err := json.Marshal(examples)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal examples: %w", err)
	}
	return b, nil
}
