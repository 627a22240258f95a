package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wastetrack/bulk-movements/internal/domain"
)

type batchRepository struct {
	pool *pgxpool.Pool
}

// NewBatchRepository wires a batch repository backed by pgxpool.
func NewBatchRepository(pool *pgxpool.Pool) BatchRepository {
	return &batchRepository{pool: pool}
}

func (r *batchRepository) Create(ctx context.Context, batch domain.Batch, source []byte) error {
	stateJSON, err := json.Marshal(batch.State)
	if err != nil {
		return fmt.Errorf("failed to marshal batch state: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO batches (id, account_id, file_name, source, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		batch.ID,
		batch.AccountID,
		batch.FileName,
		source,
		stateJSON,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

func (r *batchRepository) Get(ctx context.Context, id, accountID uuid.UUID) (domain.Batch, error) {
	var batch domain.Batch
	var stateJSON []byte

	err := r.pool.QueryRow(
		ctx,
		`SELECT id, account_id, file_name, state, created_at, updated_at
		 FROM batches
		 WHERE id = $1 AND account_id = $2`,
		id,
		accountID,
	).Scan(&batch.ID, &batch.AccountID, &batch.FileName, &stateJSON, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, fmt.Errorf("batch %s: %w", id, domain.ErrNotFound)
		}
		return domain.Batch{}, fmt.Errorf("failed to get batch: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &batch.State); err != nil {
		return domain.Batch{}, fmt.Errorf("failed to unmarshal batch state: %w", err)
	}
	return batch, nil
}

// UpdateState writes only the state column. Concurrent writers for the same
// batch are last-writer-wins; callers rely on the state machine's own
// transition checks rather than storage locking.
func (r *batchRepository) UpdateState(ctx context.Context, id, accountID uuid.UUID, state domain.BatchState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal batch state: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE batches SET state = $3, updated_at = now()
		 WHERE id = $1 AND account_id = $2`,
		id,
		accountID,
		stateJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *batchRepository) GetSource(ctx context.Context, id, accountID uuid.UUID) (string, []byte, error) {
	var fileName string
	var source []byte

	err := r.pool.QueryRow(
		ctx,
		`SELECT file_name, source FROM batches WHERE id = $1 AND account_id = $2`,
		id,
		accountID,
	).Scan(&fileName, &source)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, fmt.Errorf("batch %s: %w", id, domain.ErrNotFound)
		}
		return "", nil, fmt.Errorf("failed to get batch source: %w", err)
	}
	return fileName, source, nil
}
