package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wastetrack/bulk-movements/internal/domain"
	"github.com/wastetrack/bulk-movements/internal/ingestion"
	"github.com/wastetrack/bulk-movements/internal/validation"
)

type stubBatchRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]domain.Batch
	sources map[uuid.UUID][]byte
}

func newStubBatchRepo() *stubBatchRepo {
	return &stubBatchRepo{
		batches: map[uuid.UUID]domain.Batch{},
		sources: map[uuid.UUID][]byte{},
	}
}

func (r *stubBatchRepo) Create(_ context.Context, batch domain.Batch, source []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = batch
	r.sources[batch.ID] = source
	return nil
}

func (r *stubBatchRepo) Get(_ context.Context, id, accountID uuid.UUID) (domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[id]
	if !ok || batch.AccountID != accountID {
		return domain.Batch{}, fmt.Errorf("batch %s: %w", id, domain.ErrNotFound)
	}
	return batch, nil
}

func (r *stubBatchRepo) UpdateState(_ context.Context, id, accountID uuid.UUID, state domain.BatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[id]
	if !ok || batch.AccountID != accountID {
		return fmt.Errorf("batch %s: %w", id, domain.ErrNotFound)
	}
	batch.State = state
	r.batches[id] = batch
	return nil
}

func (r *stubBatchRepo) GetSource(_ context.Context, id, accountID uuid.UUID) (string, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[id]
	if !ok || batch.AccountID != accountID {
		return "", nil, fmt.Errorf("batch %s: %w", id, domain.ErrNotFound)
	}
	return batch.FileName, r.sources[id], nil
}

type stubSubmissionRepo struct {
	mu      sync.Mutex
	byBatch map[uuid.UUID][]domain.SubmissionRef
	creates int
}

func newStubSubmissionRepo() *stubSubmissionRepo {
	return &stubSubmissionRepo{byBatch: map[uuid.UUID][]domain.SubmissionRef{}}
}

func (r *stubSubmissionRepo) CreateForBatch(_ context.Context, batchID, _ uuid.UUID, submissions []domain.SubmissionRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byBatch[batchID] = append([]domain.SubmissionRef(nil), submissions...)
	r.creates++
	return nil
}

func (r *stubSubmissionRepo) ListByBatch(_ context.Context, batchID, _ uuid.UUID, limit, offset int) ([]domain.SubmissionRef, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := append([]domain.SubmissionRef{}, r.byBatch[batchID]...)
	sort.Slice(all, func(i, j int) bool { return all[i].TransactionID < all[j].TransactionID })

	total := len(all)
	if offset >= total {
		return []domain.SubmissionRef{}, 0, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func testClock() time.Time {
	return time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC)
}

func newTestService(batches *stubBatchRepo, submissions *stubSubmissionRepo, pageSize int) *Service {
	assembler := ingestion.NewAssembler(validation.NewRowValidatorAt(testClock), 100)
	return NewService(batches, submissions, assembler, Config{
		MaxUploadBytes: 1 << 20,
		PageSize:       pageSize,
		Now:            testClock,
	})
}

const validCSV = "Reference,Waste Code,EWC Codes,Description,Quantity,Unit,Collection Date\n" +
	"REF-001,B1010,010101,Baled cans,2.5,Tonnes,01/09/2025\n" +
	"REF-002,B3020,150101,Mixed paper,10,Kilograms,02/09/2025\n"

const invalidRowCSV = "Reference,Waste Code,EWC Codes,Description,Quantity,Unit,Collection Date\n" +
	"REF-001,B1010,010101,Baled cans,-1,Tonnes,01/09/2025\n" +
	"REF-002,B3020,150101,Mixed paper,10,Kilograms,02/09/2025\n"

func waitForResolution(t *testing.T, service *Service, accountID, batchID uuid.UUID) domain.Batch {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		batch, err := service.Get(context.Background(), accountID, batchID)
		if err != nil {
			t.Fatalf("get returned error: %v", err)
		}
		if batch.State.Status != domain.BatchStatusProcessing {
			return batch
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("batch %s never resolved out of Processing", batchID)
	return domain.Batch{}
}

func TestCreateResolvesToPassedValidation(t *testing.T) {
	accountID := uuid.New()
	service := newTestService(newStubBatchRepo(), newStubSubmissionRepo(), 15)

	created, err := service.Create(context.Background(), accountID, "movements.csv", []byte(validCSV))
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	batch := waitForResolution(t, service, accountID, created.ID)
	if batch.State.Status != domain.BatchStatusPassedValidation {
		t.Fatalf("expected PassedValidation, got %s (%+v)", batch.State.Status, batch.State.RowErrors)
	}
	if batch.State.TotalRecords != 2 {
		t.Fatalf("expected 2 records, got %d", batch.State.TotalRecords)
	}
}

func TestCreateResolvesToFailedValidation(t *testing.T) {
	accountID := uuid.New()
	service := newTestService(newStubBatchRepo(), newStubSubmissionRepo(), 15)

	created, err := service.Create(context.Background(), accountID, "movements.csv", []byte(invalidRowCSV))
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	batch := waitForResolution(t, service, accountID, created.ID)
	if batch.State.Status != domain.BatchStatusFailedValidation {
		t.Fatalf("expected FailedValidation, got %s", batch.State.Status)
	}
	if len(batch.State.RowErrors) != 1 || batch.State.RowErrors[0].RowNumber != 1 {
		t.Fatalf("expected one error on row 1, got %+v", batch.State.RowErrors)
	}
}

func TestCreateRejectsBadUploads(t *testing.T) {
	service := newTestService(newStubBatchRepo(), newStubSubmissionRepo(), 15)
	accountID := uuid.New()
	ctx := context.Background()

	if _, err := service.Create(ctx, accountID, "movements.csv", nil); !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("expected ErrInvalidUpload for empty file, got %v", err)
	}
	if _, err := service.Create(ctx, accountID, "movements.pdf", []byte("x")); !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("expected ErrInvalidUpload for pdf, got %v", err)
	}
	if _, err := service.Create(ctx, uuid.Nil, "movements.csv", []byte(validCSV)); !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("expected ErrInvalidUpload for missing account, got %v", err)
	}
	oversized := []byte(strings.Repeat("a", (1<<20)+1))
	if _, err := service.Create(ctx, accountID, "movements.csv", oversized); !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("expected ErrInvalidUpload for oversized file, got %v", err)
	}
}

func TestProcessResolvesUnreadableFile(t *testing.T) {
	accountID := uuid.New()
	batches := newStubBatchRepo()
	service := newTestService(batches, newStubSubmissionRepo(), 15)

	batch := domain.NewBatch(accountID, "movements.xlsx", testClock())
	payload := []byte("not really a workbook")
	if err := batches.Create(context.Background(), batch, payload); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	service.process(batch, payload)

	resolved, err := service.Get(context.Background(), accountID, batch.ID)
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if resolved.State.Status != domain.BatchStatusFailedValidation {
		t.Fatalf("expected FailedValidation for unreadable file, got %s", resolved.State.Status)
	}
	if len(resolved.State.RowErrors) != 1 || resolved.State.RowErrors[0].RowNumber != ingestion.FileRowNumber {
		t.Fatalf("expected a file-level row error, got %+v", resolved.State.RowErrors)
	}
}

func seedBatch(t *testing.T, batches *stubBatchRepo, accountID uuid.UUID, state domain.BatchState) domain.Batch {
	t.Helper()
	batch := domain.NewBatch(accountID, "movements.csv", testClock())
	batch.State = state
	if err := batches.Create(context.Background(), batch, []byte(validCSV)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return batch
}

func passedState(records int) domain.BatchState {
	state := domain.BatchState{
		Status:       domain.BatchStatusPassedValidation,
		Timestamp:    testClock(),
		TotalRecords: records,
	}
	for i := 0; i < records; i++ {
		state.Records = append(state.Records, domain.MovementRecord{Reference: fmt.Sprintf("REF-%03d", i+1)})
	}
	return state
}

func TestFinalizeCreatesSubmissions(t *testing.T) {
	accountID := uuid.New()
	batches := newStubBatchRepo()
	submissionRepo := newStubSubmissionRepo()
	service := newTestService(batches, submissionRepo, 15)

	batch := seedBatch(t, batches, accountID, passedState(3))

	submissions, err := service.Finalize(context.Background(), accountID, batch.ID)
	if err != nil {
		t.Fatalf("finalize returned error: %v", err)
	}
	if len(submissions) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(submissions))
	}
	for _, submission := range submissions {
		if !strings.HasPrefix(submission.TransactionID, "WM2508") {
			t.Fatalf("unexpected transaction id: %s", submission.TransactionID)
		}
	}

	updated, err := service.Get(context.Background(), accountID, batch.ID)
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if updated.State.Status != domain.BatchStatusSubmitted {
		t.Fatalf("expected Submitted, got %s", updated.State.Status)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	accountID := uuid.New()
	batches := newStubBatchRepo()
	submissionRepo := newStubSubmissionRepo()
	service := newTestService(batches, submissionRepo, 15)

	batch := seedBatch(t, batches, accountID, passedState(2))

	first, err := service.Finalize(context.Background(), accountID, batch.ID)
	if err != nil {
		t.Fatalf("first finalize returned error: %v", err)
	}
	second, err := service.Finalize(context.Background(), accountID, batch.ID)
	if err != nil {
		t.Fatalf("second finalize returned error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("finalize not idempotent: %d vs %d submissions", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("submission %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
	if submissionRepo.creates != 1 {
		t.Fatalf("expected exactly one downstream create, got %d", submissionRepo.creates)
	}
}

func TestFinalizeRacerDoesNotAccumulateSubmissions(t *testing.T) {
	accountID := uuid.New()
	batches := newStubBatchRepo()
	submissionRepo := newStubSubmissionRepo()
	service := newTestService(batches, submissionRepo, 15)

	batch := seedBatch(t, batches, accountID, passedState(2))

	if _, err := service.Finalize(context.Background(), accountID, batch.ID); err != nil {
		t.Fatalf("first finalize returned error: %v", err)
	}

	// A racer that read the batch before the first write also passes the
	// state check. Its submission set must replace the first, not extend
	// it.
	if err := batches.UpdateState(context.Background(), batch.ID, accountID, passedState(2)); err != nil {
		t.Fatalf("state reset failed: %v", err)
	}
	second, err := service.Finalize(context.Background(), accountID, batch.ID)
	if err != nil {
		t.Fatalf("second finalize returned error: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(second))
	}

	listing, err := service.ListSubmissions(context.Background(), accountID, batch.ID, 1)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if listing.TotalRecords != 2 {
		t.Fatalf("expected 2 stored submissions after racing finalize, got %d", listing.TotalRecords)
	}
}

func TestFinalizeConflictsOutsidePassedValidation(t *testing.T) {
	accountID := uuid.New()
	batches := newStubBatchRepo()
	service := newTestService(batches, newStubSubmissionRepo(), 15)

	processing := seedBatch(t, batches, accountID, domain.BatchState{
		Status:    domain.BatchStatusProcessing,
		Timestamp: testClock(),
	})
	if _, err := service.Finalize(context.Background(), accountID, processing.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for Processing batch, got %v", err)
	}

	// The conflict must leave the state untouched.
	unchanged, err := service.Get(context.Background(), accountID, processing.ID)
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if unchanged.State.Status != domain.BatchStatusProcessing {
		t.Fatalf("conflict mutated state to %s", unchanged.State.Status)
	}

	failed := seedBatch(t, batches, accountID, domain.BatchState{
		Status:    domain.BatchStatusFailedValidation,
		Timestamp: testClock(),
		RowErrors: []domain.RowError{{RowNumber: 1, ErrorAmount: 1, ErrorDetails: []string{"bad"}}},
	})
	if _, err := service.Finalize(context.Background(), accountID, failed.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for failed batch, got %v", err)
	}
}

func TestFinalizeUnknownBatch(t *testing.T) {
	service := newTestService(newStubBatchRepo(), newStubSubmissionRepo(), 15)
	if _, err := service.Finalize(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRowAndColumnErrors(t *testing.T) {
	accountID := uuid.New()
	batches := newStubBatchRepo()
	service := newTestService(batches, newStubSubmissionRepo(), 15)

	batch := seedBatch(t, batches, accountID, domain.BatchState{
		Status:    domain.BatchStatusFailedValidation,
		Timestamp: testClock(),
		RowErrors: []domain.RowError{
			{RowNumber: 1, ErrorAmount: 1, ErrorDetails: []string{"bad quantity"}},
		},
		ColumnErrors: []domain.ColumnError{
			{ColumnRef: "quantity", ErrorAmount: 1, ErrorDetails: []string{"bad quantity"}},
		},
	})

	rowErr, err := service.GetRowError(context.Background(), accountID, batch.ID, 1)
	if err != nil {
		t.Fatalf("row lookup returned error: %v", err)
	}
	if rowErr.ErrorAmount != 1 {
		t.Fatalf("unexpected row error: %+v", rowErr)
	}

	if _, err := service.GetRowError(context.Background(), accountID, batch.ID, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent row, got %v", err)
	}

	colErr, err := service.GetColumnError(context.Background(), accountID, batch.ID, "quantity")
	if err != nil {
		t.Fatalf("column lookup returned error: %v", err)
	}
	if colErr.ColumnRef != "quantity" {
		t.Fatalf("unexpected column error: %+v", colErr)
	}

	if _, err := service.GetColumnError(context.Background(), accountID, batch.ID, "unit"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent column, got %v", err)
	}
}

func TestListSubmissionsPaging(t *testing.T) {
	accountID := uuid.New()
	batches := newStubBatchRepo()
	submissionRepo := newStubSubmissionRepo()
	service := newTestService(batches, submissionRepo, 15)

	batch := seedBatch(t, batches, accountID, passedState(0))
	var refs []domain.SubmissionRef
	for i := 0; i < 35; i++ {
		refs = append(refs, domain.SubmissionRef{
			ID:            uuid.New(),
			TransactionID: fmt.Sprintf("WM2508%06d", i),
		})
	}
	if err := submissionRepo.CreateForBatch(context.Background(), batch.ID, accountID, refs); err != nil {
		t.Fatalf("seed submissions failed: %v", err)
	}

	page1, err := service.ListSubmissions(context.Background(), accountID, batch.ID, 1)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if page1.TotalRecords != 35 || page1.TotalPages != 3 || page1.CurrentPage != 1 {
		t.Fatalf("unexpected page 1 metadata: %+v", page1)
	}
	if len(page1.Values) != 15 {
		t.Fatalf("expected 15 values on page 1, got %d", len(page1.Values))
	}
	if len(page1.Pages) != 3 || page1.Pages[2].PageNumber != 3 {
		t.Fatalf("unexpected page metadata: %+v", page1.Pages)
	}

	// A page past the end clamps so currentPage never exceeds totalPages.
	page99, err := service.ListSubmissions(context.Background(), accountID, batch.ID, 99)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if page99.CurrentPage != 3 || len(page99.Values) != 5 {
		t.Fatalf("expected clamped last page with 5 values, got %+v", page99)
	}

	empty := seedBatch(t, batches, accountID, passedState(0))
	none, err := service.ListSubmissions(context.Background(), accountID, empty.ID, 1)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if none.TotalRecords != 0 || none.TotalPages != 0 || none.CurrentPage != 0 || len(none.Values) != 0 {
		t.Fatalf("unexpected empty listing: %+v", none)
	}

	if _, err := service.ListSubmissions(context.Background(), accountID, uuid.New(), 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown batch, got %v", err)
	}
}

func TestDownloadSourceRoundTrip(t *testing.T) {
	accountID := uuid.New()
	batches := newStubBatchRepo()
	service := newTestService(batches, newStubSubmissionRepo(), 15)

	created, err := service.Create(context.Background(), accountID, "movements.csv", []byte(validCSV))
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	fileName, data, err := service.DownloadSource(context.Background(), accountID, created.ID)
	if err != nil {
		t.Fatalf("download returned error: %v", err)
	}
	if fileName != "movements.csv" {
		t.Fatalf("unexpected file name: %s", fileName)
	}
	if string(data) != validCSV {
		t.Fatalf("downloaded source does not match upload")
	}
}
