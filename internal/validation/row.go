package validation

import (
	"time"

	"github.com/wastetrack/bulk-movements/internal/domain"
)

// RowValidator validates one logical row against every field rule. It is
// pure: malformed input produces structured failures, never a panic or an
// error return.
type RowValidator struct {
	now func() time.Time
}

// NewRowValidator creates a row validator using the wall clock for
// date-in-the-past checks.
func NewRowValidator() *RowValidator {
	return &RowValidator{now: time.Now}
}

// NewRowValidatorAt creates a row validator with an injected clock.
func NewRowValidatorAt(now func() time.Time) *RowValidator {
	return &RowValidator{now: now}
}

// ValidateRow runs every field validator over the raw row values (keyed by
// canonical column ref) and collects all failures rather than stopping at
// the first, so one row can surface multiple simultaneous errors. Failures
// are reported in ColumnRefs order.
func (v *RowValidator) ValidateRow(values map[string]string) (domain.MovementRecord, []FieldError) {
	var record domain.MovementRecord
	var failures []FieldError

	collect := func(err *FieldError) {
		if err != nil {
			failures = append(failures, *err)
		}
	}

	var err *FieldError
	record.Reference, err = validateReference(values[ColumnReference])
	collect(err)

	record.WasteCode, err = validateWasteCode(values[ColumnWasteCode])
	collect(err)

	record.EWCCodes, err = validateEWCCodes(values[ColumnEWCCodes])
	collect(err)

	record.Description, err = validateDescription(values[ColumnDescription])
	collect(err)

	record.Quantity, err = validateQuantity(values[ColumnQuantity])
	collect(err)

	record.Unit, err = validateUnit(values[ColumnUnit])
	collect(err)

	record.CollectionDate, err = validateCollectionDate(values[ColumnCollectionDate], v.now())
	collect(err)

	if len(failures) > 0 {
		return domain.MovementRecord{}, failures
	}
	return record, nil
}
