package ingestion

import (
	"fmt"

	"github.com/wastetrack/bulk-movements/internal/domain"
	"github.com/wastetrack/bulk-movements/internal/validation"
)

// FileColumnRef is the column ref used for failures that concern the whole
// upload rather than a specific column (unparseable file, row limit).
const FileColumnRef = "file"

// FileRowNumber is the row number used for whole-file failures. Data rows
// are numbered from 1, so 0 never collides with a real row.
const FileRowNumber = 0

// Result is the outcome of assembling one uploaded batch. Any row error
// fails the batch as a whole; there is no partial success.
type Result struct {
	Records      []domain.MovementRecord
	RowErrors    []domain.RowError
	ColumnErrors []domain.ColumnError
}

// Failed reports whether the batch failed validation.
func (r Result) Failed() bool {
	return len(r.RowErrors) > 0
}

// TotalErrors counts every field-level error once, via the row view.
func (r Result) TotalErrors() int {
	total := 0
	for _, rowErr := range r.RowErrors {
		total += rowErr.ErrorAmount
	}
	return total
}

// Assembler turns a parsed table into per-row validation results with the
// errors aggregated into both row and column views.
type Assembler struct {
	validator *validation.RowValidator
	maxRows   int
}

// NewAssembler creates an assembler. maxRows bounds the number of data rows
// accepted per batch; zero or negative disables the limit.
func NewAssembler(validator *validation.RowValidator, maxRows int) *Assembler {
	return &Assembler{validator: validator, maxRows: maxRows}
}

// Assemble validates every row of the table. Each field error is counted
// exactly once and is visible both under its source row and under its
// logical column. Given the same input the output is identical, including
// ordering: rows ascend, details follow validator declaration order.
func (a *Assembler) Assemble(table Table) Result {
	if missing := table.MissingColumns(); len(missing) > 0 {
		result := Result{}
		fileRow := domain.RowError{RowNumber: FileRowNumber}
		for _, ref := range missing {
			detail := fmt.Sprintf("The %s column is missing from the file", ref)
			fileRow.ErrorAmount++
			fileRow.ErrorDetails = append(fileRow.ErrorDetails, detail)
			result.ColumnErrors = append(result.ColumnErrors, domain.ColumnError{
				ColumnRef:    ref,
				ErrorAmount:  1,
				ErrorDetails: []string{detail},
			})
		}
		result.RowErrors = append(result.RowErrors, fileRow)
		return result
	}

	if len(table.Rows) == 0 {
		return FileFailure("The file contains no data rows")
	}
	if a.maxRows > 0 && len(table.Rows) > a.maxRows {
		return FileFailure(fmt.Sprintf("The file contains more than %d rows", a.maxRows))
	}

	result := Result{}
	columnBuckets := make(map[string]*domain.ColumnError)

	for _, row := range table.Rows {
		record, failures := a.validator.ValidateRow(table.RowValues(row))
		if len(failures) == 0 {
			result.Records = append(result.Records, record)
			continue
		}

		rowErr := domain.RowError{
			RowNumber:   row.Number,
			ErrorAmount: len(failures),
		}
		for _, failure := range failures {
			rowErr.ErrorDetails = append(rowErr.ErrorDetails, failure.Message)

			bucket, ok := columnBuckets[failure.ColumnRef]
			if !ok {
				bucket = &domain.ColumnError{ColumnRef: failure.ColumnRef}
				columnBuckets[failure.ColumnRef] = bucket
			}
			bucket.ErrorAmount++
			bucket.ErrorDetails = append(bucket.ErrorDetails, failure.Message)
		}
		result.RowErrors = append(result.RowErrors, rowErr)
	}

	if len(result.RowErrors) > 0 {
		result.Records = nil
		for _, ref := range validation.ColumnRefs {
			if bucket, ok := columnBuckets[ref]; ok {
				result.ColumnErrors = append(result.ColumnErrors, *bucket)
			}
		}
	}

	return result
}

// FileFailure builds a failed result carrying a single whole-file error,
// used when the upload cannot be parsed at all. The error is counted once
// in each view so the row/column totals stay balanced.
func FileFailure(message string) Result {
	return Result{
		RowErrors: []domain.RowError{{
			RowNumber:    FileRowNumber,
			ErrorAmount:  1,
			ErrorDetails: []string{message},
		}},
		ColumnErrors: []domain.ColumnError{{
			ColumnRef:    FileColumnRef,
			ErrorAmount:  1,
			ErrorDetails: []string{message},
		}},
	}
}
