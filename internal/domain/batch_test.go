package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewBatchStartsProcessing(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	batch := NewBatch(uuid.New(), "movements.csv", now)

	if batch.State.Status != BatchStatusProcessing {
		t.Fatalf("expected Processing, got %s", batch.State.Status)
	}
	if batch.State.Timestamp != now {
		t.Fatalf("unexpected state timestamp: %v", batch.State.Timestamp)
	}
}

func TestBatchStateTransitions(t *testing.T) {
	now := time.Now()
	initial := BatchState{Status: BatchStatusProcessing, Timestamp: now}

	failed, err := initial.WithFailedValidation(
		[]RowError{{RowNumber: 1, ErrorAmount: 1, ErrorDetails: []string{"bad"}}},
		[]ColumnError{{ColumnRef: "reference", ErrorAmount: 1, ErrorDetails: []string{"bad"}}},
		now,
	)
	if err != nil {
		t.Fatalf("failed transition returned error: %v", err)
	}
	if failed.Status != BatchStatusFailedValidation {
		t.Fatalf("expected FailedValidation, got %s", failed.Status)
	}

	passed, err := initial.WithPassedValidation([]MovementRecord{{Reference: "REF1"}}, now)
	if err != nil {
		t.Fatalf("passed transition returned error: %v", err)
	}
	if passed.Status != BatchStatusPassedValidation || passed.TotalRecords != 1 {
		t.Fatalf("unexpected passed state: %+v", passed)
	}

	submitted, err := passed.WithSubmitted([]SubmissionRef{{ID: uuid.New(), TransactionID: "WM2508ABCDEF"}}, now)
	if err != nil {
		t.Fatalf("submit transition returned error: %v", err)
	}
	if submitted.Status != BatchStatusSubmitted {
		t.Fatalf("expected Submitted, got %s", submitted.Status)
	}
}

func TestBatchStateTransitionsAreOneDirectional(t *testing.T) {
	now := time.Now()

	failed := BatchState{Status: BatchStatusFailedValidation, Timestamp: now}
	if _, err := failed.WithSubmitted(nil, now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState submitting a failed batch, got %v", err)
	}
	if _, err := failed.WithPassedValidation(nil, now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState re-validating a failed batch, got %v", err)
	}

	submitted := BatchState{Status: BatchStatusSubmitted, Timestamp: now}
	if _, err := submitted.WithFailedValidation(nil, nil, now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState failing a submitted batch, got %v", err)
	}
	if _, err := submitted.WithPassedValidation(nil, now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState passing a submitted batch, got %v", err)
	}
	if _, err := submitted.WithSubmitted(nil, now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState re-submitting a submitted batch, got %v", err)
	}
}

func TestRowAndColumnLookups(t *testing.T) {
	state := BatchState{
		Status: BatchStatusFailedValidation,
		RowErrors: []RowError{
			{RowNumber: 1, ErrorAmount: 2, ErrorDetails: []string{"a", "b"}},
			{RowNumber: 3, ErrorAmount: 1, ErrorDetails: []string{"c"}},
		},
		ColumnErrors: []ColumnError{
			{ColumnRef: "reference", ErrorAmount: 2, ErrorDetails: []string{"a", "c"}},
			{ColumnRef: "quantity", ErrorAmount: 1, ErrorDetails: []string{"b"}},
		},
	}

	rowErr, ok := state.RowErrorByNumber(3)
	if !ok || rowErr.ErrorAmount != 1 {
		t.Fatalf("unexpected row lookup result: %+v ok=%v", rowErr, ok)
	}
	if _, ok := state.RowErrorByNumber(2); ok {
		t.Fatalf("expected row 2 to be absent")
	}

	colErr, ok := state.ColumnErrorByRef("quantity")
	if !ok || colErr.ErrorAmount != 1 {
		t.Fatalf("unexpected column lookup result: %+v ok=%v", colErr, ok)
	}
	if _, ok := state.ColumnErrorByRef("unit"); ok {
		t.Fatalf("expected unit column to be absent")
	}
}
