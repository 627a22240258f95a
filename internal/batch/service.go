package batch

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/wastetrack/bulk-movements/internal/domain"
	"github.com/wastetrack/bulk-movements/internal/ingestion"
	"github.com/wastetrack/bulk-movements/internal/repository"
)

// ErrInvalidUpload is returned when an upload is rejected before a batch is
// created (empty file, oversized payload, unsupported extension).
var ErrInvalidUpload = errors.New("invalid upload")

// Config carries the service's tunable settings.
type Config struct {
	// MaxUploadBytes bounds the accepted payload size; zero disables the
	// check.
	MaxUploadBytes int64
	// PageSize is the submission listing page size.
	PageSize int
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Service owns the batch lifecycle: upload, assembly, polling views,
// finalize, and submission listing. All operations are scoped by the
// caller's account id.
type Service struct {
	batches     repository.BatchRepository
	submissions repository.SubmissionRepository
	assembler   *ingestion.Assembler

	maxUploadBytes int64
	pageSize       int
	now            func() time.Time
}

// NewService creates a batch service.
func NewService(
	batches repository.BatchRepository,
	submissions repository.SubmissionRepository,
	assembler *ingestion.Assembler,
	cfg Config,
) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 15
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		batches:        batches,
		submissions:    submissions,
		assembler:      assembler,
		maxUploadBytes: cfg.MaxUploadBytes,
		pageSize:       cfg.PageSize,
		now:            cfg.Now,
	}
}

// Create stores the upload as a new Processing batch and starts assembly.
// The caller polls Get until the batch resolves.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, fileName string, data []byte) (domain.Batch, error) {
	if accountID == uuid.Nil {
		return domain.Batch{}, fmt.Errorf("%w: account id is required", ErrInvalidUpload)
	}
	if len(data) == 0 {
		return domain.Batch{}, fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}
	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return domain.Batch{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, s.maxUploadBytes)
	}
	if !ingestion.SupportedFormat(fileName) {
		return domain.Batch{}, fmt.Errorf("%w: unsupported file format", ErrInvalidUpload)
	}

	batch := domain.NewBatch(accountID, fileName, s.now())
	if err := s.batches.Create(ctx, batch, data); err != nil {
		return domain.Batch{}, err
	}

	go s.process(batch, data)

	return batch, nil
}

// process runs assembly to completion. It always resolves the batch out of
// Processing: parse failures and panics become a FailedValidation state
// with a file-level error rather than a batch stuck forever.
func (s *Service) process(batch domain.Batch, data []byte) {
	ctx := context.Background()

	defer func() {
		if p := recover(); p != nil {
			log.Printf("[BATCH] assembly panic for batch %s: %v", batch.ID, p)
			s.resolve(ctx, batch, ingestion.FileFailure("The file could not be processed"))
		}
	}()

	table, err := ingestion.ParseTable(batch.FileName, data)
	if err != nil {
		s.resolve(ctx, batch, ingestion.FileFailure("The file could not be read"))
		return
	}

	s.resolve(ctx, batch, s.assembler.Assemble(table))
}

func (s *Service) resolve(ctx context.Context, batch domain.Batch, result ingestion.Result) {
	var next domain.BatchState
	var err error
	if result.Failed() {
		next, err = batch.State.WithFailedValidation(result.RowErrors, result.ColumnErrors, s.now())
	} else {
		next, err = batch.State.WithPassedValidation(result.Records, s.now())
	}
	if err != nil {
		// The batch already left Processing (e.g. a concurrent re-run);
		// validation results are one-shot so this outcome is discarded.
		log.Printf("[BATCH] batch %s not resolvable: %v", batch.ID, err)
		return
	}

	if err := s.batches.UpdateState(ctx, batch.ID, batch.AccountID, next); err != nil {
		log.Printf("[BATCH] failed to persist state for batch %s: %v", batch.ID, err)
	}
}

// Get returns the batch for polling.
func (s *Service) Get(ctx context.Context, accountID, batchID uuid.UUID) (domain.Batch, error) {
	return s.batches.Get(ctx, batchID, accountID)
}

// GetRowError returns the aggregated error view for one source row.
func (s *Service) GetRowError(ctx context.Context, accountID, batchID uuid.UUID, rowNumber int) (domain.RowError, error) {
	batch, err := s.batches.Get(ctx, batchID, accountID)
	if err != nil {
		return domain.RowError{}, err
	}
	rowErr, ok := batch.State.RowErrorByNumber(rowNumber)
	if !ok {
		return domain.RowError{}, fmt.Errorf("row %d in batch %s: %w", rowNumber, batchID, domain.ErrNotFound)
	}
	return rowErr, nil
}

// GetColumnError returns the aggregated error view for one logical column.
func (s *Service) GetColumnError(ctx context.Context, accountID, batchID uuid.UUID, columnRef string) (domain.ColumnError, error) {
	batch, err := s.batches.Get(ctx, batchID, accountID)
	if err != nil {
		return domain.ColumnError{}, err
	}
	colErr, ok := batch.State.ColumnErrorByRef(columnRef)
	if !ok {
		return domain.ColumnError{}, fmt.Errorf("column %s in batch %s: %w", columnRef, batchID, domain.ErrNotFound)
	}
	return colErr, nil
}

// Finalize converts a PassedValidation batch into downstream submission
// records and moves it to Submitted. Finalizing an already-Submitted batch
// is a no-op that returns the existing submission set; any other state is
// an ErrInvalidState conflict. Concurrent finalize calls race at the
// storage layer: both can pass the state check, but the submission write
// replaces the batch's set, so the store holds exactly one set (the last
// writer's) rather than accumulating one per racer.
func (s *Service) Finalize(ctx context.Context, accountID, batchID uuid.UUID) ([]domain.SubmissionRef, error) {
	batch, err := s.batches.Get(ctx, batchID, accountID)
	if err != nil {
		return nil, err
	}

	switch batch.State.Status {
	case domain.BatchStatusSubmitted:
		return batch.State.Submissions, nil
	case domain.BatchStatusPassedValidation:
		// fall through to submission
	default:
		return nil, fmt.Errorf("cannot finalize batch in state %s: %w", batch.State.Status, domain.ErrInvalidState)
	}

	submissions := make([]domain.SubmissionRef, len(batch.State.Records))
	for i := range batch.State.Records {
		submissions[i] = domain.SubmissionRef{
			ID:            uuid.New(),
			TransactionID: s.newTransactionID(),
		}
	}

	if err := s.submissions.CreateForBatch(ctx, batchID, accountID, submissions); err != nil {
		return nil, err
	}

	next, err := batch.State.WithSubmitted(submissions, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.batches.UpdateState(ctx, batchID, accountID, next); err != nil {
		return nil, err
	}

	return submissions, nil
}

// ListSubmissions returns one page of a batch's submission references.
// Pages are 1-based; a page beyond the end clamps to the last page so
// currentPage never exceeds totalPages.
func (s *Service) ListSubmissions(ctx context.Context, accountID, batchID uuid.UUID, page int) (domain.PagedSubmissions, error) {
	if _, err := s.batches.Get(ctx, batchID, accountID); err != nil {
		return domain.PagedSubmissions{}, err
	}

	if page < 1 {
		page = 1
	}

	values, total, err := s.submissions.ListByBatch(ctx, batchID, accountID, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return domain.PagedSubmissions{}, err
	}

	if len(values) == 0 && page > 1 {
		// Requested page is past the end; re-read from the start to learn
		// the real total and clamp.
		_, total, err = s.submissions.ListByBatch(ctx, batchID, accountID, s.pageSize, 0)
		if err != nil {
			return domain.PagedSubmissions{}, err
		}
		if total > 0 {
			page = (total + s.pageSize - 1) / s.pageSize
			values, total, err = s.submissions.ListByBatch(ctx, batchID, accountID, s.pageSize, (page-1)*s.pageSize)
			if err != nil {
				return domain.PagedSubmissions{}, err
			}
		}
	}

	totalPages := (total + s.pageSize - 1) / s.pageSize
	if totalPages == 0 {
		page = 0
	}

	pages := make([]domain.PageMetadata, 0, totalPages)
	for i := 1; i <= totalPages; i++ {
		pages = append(pages, domain.PageMetadata{
			PageNumber: i,
			Token:      fmt.Sprintf("%d", (i-1)*s.pageSize),
		})
	}

	return domain.PagedSubmissions{
		TotalRecords: total,
		TotalPages:   totalPages,
		CurrentPage:  page,
		Pages:        pages,
		Values:       values,
	}, nil
}

// DownloadSource re-emits the originally uploaded file for audit.
func (s *Service) DownloadSource(ctx context.Context, accountID, batchID uuid.UUID) (string, []byte, error) {
	return s.batches.GetSource(ctx, batchID, accountID)
}

const transactionAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789"

// newTransactionID produces movement transaction numbers like WM2508X4K2QF:
// a fixed prefix, the two-digit year and month, and six characters from an
// alphabet with no zero, O, or I.
func (s *Service) newTransactionID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	chars := make([]byte, len(buf))
	for i, b := range buf {
		chars[i] = transactionAlphabet[int(b)%len(transactionAlphabet)]
	}
	return fmt.Sprintf("WM%s%s", s.now().Format("0601"), chars)
}
