package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wastetrack/bulk-movements/internal/domain"
)

type submissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository wires a submission repository backed by pgxpool.
func NewSubmissionRepository(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepository{pool: pool}
}

// CreateForBatch replaces the batch's submission set in one transaction, so
// a partially finalized batch is never visible to the listing endpoint and
// a losing finalize racer leaves no extra rows behind.
func (r *submissionRepository) CreateForBatch(ctx context.Context, batchID, accountID uuid.UUID, submissions []domain.SubmissionRef) error {
	if len(submissions) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(
		ctx,
		`DELETE FROM submissions WHERE batch_id = $1 AND account_id = $2`,
		batchID,
		accountID,
	); err != nil {
		return fmt.Errorf("failed to clear previous submissions: %w", err)
	}

	for _, submission := range submissions {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO submissions (id, batch_id, account_id, transaction_id)
			 VALUES ($1, $2, $3, $4)`,
			submission.ID,
			batchID,
			accountID,
			submission.TransactionID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert submission %s: %w", submission.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submissions: %w", err)
	}
	return nil
}

func (r *submissionRepository) ListByBatch(ctx context.Context, batchID, accountID uuid.UUID, limit, offset int) ([]domain.SubmissionRef, int, error) {
	if limit <= 0 {
		limit = 15
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, transaction_id, count(*) OVER () AS total_count
		 FROM submissions
		 WHERE batch_id = $1 AND account_id = $2
		 ORDER BY transaction_id, id
		 LIMIT $3 OFFSET $4`,
		batchID,
		accountID,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	submissions := []domain.SubmissionRef{}
	totalCount := 0
	for rows.Next() {
		var submission domain.SubmissionRef
		if scanErr := rows.Scan(&submission.ID, &submission.TransactionID, &totalCount); scanErr != nil {
			return nil, 0, fmt.Errorf("failed to scan submission: %w", scanErr)
		}
		submissions = append(submissions, submission)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, fmt.Errorf("failed to iterate submissions: %w", rowsErr)
	}

	return submissions, totalCount, nil
}
