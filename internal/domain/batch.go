package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchStatus identifies where a batch sits in its lifecycle.
type BatchStatus string

const (
	BatchStatusProcessing       BatchStatus = "Processing"
	BatchStatusFailedValidation BatchStatus = "FailedValidation"
	BatchStatusPassedValidation BatchStatus = "PassedValidation"
	BatchStatusSubmitted        BatchStatus = "Submitted"
)

// RowError aggregates every field-level failure on a single source row.
// Row numbers are 1-based and exclude the header row; row 0 is reserved for
// file-level failures (unparseable upload, missing columns).
type RowError struct {
	RowNumber    int      `json:"rowNumber"`
	ErrorAmount  int      `json:"errorAmount"`
	ErrorDetails []string `json:"errorDetails"`
}

// ColumnError aggregates field-level failures for one logical column across
// all rows of a batch.
type ColumnError struct {
	ColumnRef    string   `json:"columnRef"`
	ErrorAmount  int      `json:"errorAmount"`
	ErrorDetails []string `json:"errorDetails"`
}

// SubmissionRef points at a downstream submission record created when a
// batch is finalized. The batch only holds the reference.
type SubmissionRef struct {
	ID            uuid.UUID `json:"id"`
	TransactionID string    `json:"transactionId"`
}

// BatchState is the tagged union persisted as the batch's state document.
// Status selects the variant; only the fields belonging to that variant are
// populated.
type BatchState struct {
	Status    BatchStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`

	// FailedValidation
	RowErrors    []RowError    `json:"rowErrors,omitempty"`
	ColumnErrors []ColumnError `json:"columnErrors,omitempty"`

	// PassedValidation
	TotalRecords int              `json:"totalRecords,omitempty"`
	Records      []MovementRecord `json:"records,omitempty"`

	// Submitted
	Submissions []SubmissionRef `json:"submissions,omitempty"`
}

// Batch is one uploaded file and its derived validation and submission
// state, always scoped by the owning account.
type Batch struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"accountId"`
	FileName  string     `json:"fileName"`
	State     BatchState `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewBatch creates a batch in the initial Processing state.
func NewBatch(accountID uuid.UUID, fileName string, now time.Time) Batch {
	return Batch{
		ID:        uuid.New(),
		AccountID: accountID,
		FileName:  fileName,
		State: BatchState{
			Status:    BatchStatusProcessing,
			Timestamp: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithFailedValidation transitions Processing -> FailedValidation.
func (s BatchState) WithFailedValidation(rowErrors []RowError, columnErrors []ColumnError, now time.Time) (BatchState, error) {
	if s.Status != BatchStatusProcessing {
		return s, fmt.Errorf("cannot fail validation from %s: %w", s.Status, ErrInvalidState)
	}
	return BatchState{
		Status:       BatchStatusFailedValidation,
		Timestamp:    now,
		RowErrors:    rowErrors,
		ColumnErrors: columnErrors,
	}, nil
}

// WithPassedValidation transitions Processing -> PassedValidation. The
// normalized records are retained so that finalize does not re-parse the
// source file.
func (s BatchState) WithPassedValidation(records []MovementRecord, now time.Time) (BatchState, error) {
	if s.Status != BatchStatusProcessing {
		return s, fmt.Errorf("cannot pass validation from %s: %w", s.Status, ErrInvalidState)
	}
	return BatchState{
		Status:       BatchStatusPassedValidation,
		Timestamp:    now,
		TotalRecords: len(records),
		Records:      records,
	}, nil
}

// WithSubmitted transitions PassedValidation -> Submitted, the terminal
// state.
func (s BatchState) WithSubmitted(submissions []SubmissionRef, now time.Time) (BatchState, error) {
	if s.Status != BatchStatusPassedValidation {
		return s, fmt.Errorf("cannot submit from %s: %w", s.Status, ErrInvalidState)
	}
	return BatchState{
		Status:      BatchStatusSubmitted,
		Timestamp:   now,
		Submissions: submissions,
	}, nil
}

// RowErrorByNumber looks up the aggregated error view for one source row.
func (s BatchState) RowErrorByNumber(rowNumber int) (RowError, bool) {
	for _, rowErr := range s.RowErrors {
		if rowErr.RowNumber == rowNumber {
			return rowErr, true
		}
	}
	return RowError{}, false
}

// ColumnErrorByRef looks up the aggregated error view for one logical
// column.
func (s BatchState) ColumnErrorByRef(columnRef string) (ColumnError, bool) {
	for _, colErr := range s.ColumnErrors {
		if colErr.ColumnRef == columnRef {
			return colErr, true
		}
	}
	return ColumnError{}, false
}
