package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/wastetrack/bulk-movements/internal/domain"
)

// BatchRepository persists batch state keyed by (batchId, accountId).
// Reads that find nothing return domain.ErrNotFound rather than an
// ambiguous empty success.
type BatchRepository interface {
	Create(ctx context.Context, batch domain.Batch, source []byte) error
	Get(ctx context.Context, id, accountID uuid.UUID) (domain.Batch, error)
	// UpdateState patches only the state document (and updated_at),
	// leaving sibling columns untouched.
	UpdateState(ctx context.Context, id, accountID uuid.UUID, state domain.BatchState) error
	GetSource(ctx context.Context, id, accountID uuid.UUID) (string, []byte, error)
}

// SubmissionRepository stores the downstream submission records created
// when a batch is finalized.
type SubmissionRepository interface {
	// CreateForBatch replaces the batch's submission set; a batch holds at
	// most one set at a time.
	CreateForBatch(ctx context.Context, batchID, accountID uuid.UUID, submissions []domain.SubmissionRef) error
	// ListByBatch returns one page of submissions plus the total count for
	// the batch.
	ListByBatch(ctx context.Context, batchID, accountID uuid.UUID, limit, offset int) ([]domain.SubmissionRef, int, error)
}
