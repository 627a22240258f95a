package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/wastetrack/bulk-movements/internal/domain"
)

// ErrorKind classifies a field validation failure. Exactly one kind is
// reported per field per row: rules are checked in a fixed priority order
// and the first violated rule wins.
type ErrorKind string

const (
	ErrorKindEmpty       ErrorKind = "empty"
	ErrorKindCharTooFew  ErrorKind = "charTooFew"
	ErrorKindCharTooMany ErrorKind = "charTooMany"
	ErrorKindInvalid     ErrorKind = "invalid"
	ErrorKindTooMany     ErrorKind = "tooMany"
)

// FieldError is a single field-level validation failure, addressable back
// to the originating column.
type FieldError struct {
	ColumnRef string    `json:"columnRef"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.ColumnRef, e.Message)
}

// Named field constraints.
const (
	ReferenceCharMin   = 1
	ReferenceCharMax   = 20
	DescriptionCharMax = 100
	EWCCodesMax        = 5
)

// QuantityMax bounds a single movement's quantity regardless of unit.
var QuantityMax = decimal.NewFromInt(1_000_000)

var (
	referencePattern = regexp.MustCompile(`^[a-zA-Z0-9\-/]+$`)
	ewcCodePattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

var dateLayouts = []string{"02/01/2006", "2/1/2006", "2006-01-02"}

func fieldErr(columnRef string, kind ErrorKind, message string) *FieldError {
	return &FieldError{ColumnRef: columnRef, Kind: kind, Message: message}
}

func validateReference(raw string) (string, *FieldError) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return "", fieldErr(ColumnReference, ErrorKindEmpty, "Enter a unique reference")
	case utf8.RuneCountInString(value) < ReferenceCharMin:
		return "", fieldErr(ColumnReference, ErrorKindCharTooFew,
			fmt.Sprintf("The unique reference must be at least %d character", ReferenceCharMin))
	case utf8.RuneCountInString(value) > ReferenceCharMax:
		return "", fieldErr(ColumnReference, ErrorKindCharTooMany,
			fmt.Sprintf("The unique reference must be %d characters or less", ReferenceCharMax))
	case !referencePattern.MatchString(value):
		return "", fieldErr(ColumnReference, ErrorKindInvalid,
			"The unique reference can only contain letters, numbers, hyphens and slashes")
	}
	return value, nil
}

func validateWasteCode(raw string) (string, *FieldError) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case value == "":
		return "", fieldErr(ColumnWasteCode, ErrorKindEmpty, "Enter a waste code")
	case !IsWasteCode(value):
		return "", fieldErr(ColumnWasteCode, ErrorKindInvalid, "Enter a waste code from the Basel or OECD list")
	}
	return value, nil
}

func validateEWCCodes(raw string) ([]string, *FieldError) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, fieldErr(ColumnEWCCodes, ErrorKindEmpty, "Enter a European Waste Catalogue code")
	}

	parts := strings.Split(value, ";")
	codes := make([]string, 0, len(parts))
	for _, part := range parts {
		code := strings.TrimSpace(part)
		if code == "" {
			continue
		}
		codes = append(codes, code)
	}

	if len(codes) == 0 {
		return nil, fieldErr(ColumnEWCCodes, ErrorKindEmpty, "Enter a European Waste Catalogue code")
	}
	if len(codes) > EWCCodesMax {
		return nil, fieldErr(ColumnEWCCodes, ErrorKindTooMany,
			fmt.Sprintf("You can only enter a maximum of %d European Waste Catalogue codes", EWCCodesMax))
	}
	for _, code := range codes {
		if !ewcCodePattern.MatchString(code) || !IsEWCCode(code) {
			return nil, fieldErr(ColumnEWCCodes, ErrorKindInvalid,
				"Enter European Waste Catalogue codes in the correct six-digit format")
		}
	}
	return codes, nil
}

func validateDescription(raw string) (string, *FieldError) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return "", fieldErr(ColumnDescription, ErrorKindEmpty, "Enter a description of the waste")
	case utf8.RuneCountInString(value) > DescriptionCharMax:
		return "", fieldErr(ColumnDescription, ErrorKindCharTooMany,
			fmt.Sprintf("The waste description must be %d characters or less", DescriptionCharMax))
	}
	return value, nil
}

func validateQuantity(raw string) (decimal.Decimal, *FieldError) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, fieldErr(ColumnQuantity, ErrorKindEmpty, "Enter a waste quantity")
	}
	quantity, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fieldErr(ColumnQuantity, ErrorKindInvalid, "The waste quantity must be a number")
	}
	if quantity.Sign() <= 0 || quantity.GreaterThan(QuantityMax) {
		return decimal.Zero, fieldErr(ColumnQuantity, ErrorKindInvalid,
			fmt.Sprintf("The waste quantity must be greater than 0 and no more than %s", QuantityMax))
	}
	return quantity, nil
}

func validateUnit(raw string) (domain.QuantityUnit, *FieldError) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fieldErr(ColumnUnit, ErrorKindEmpty, "Enter a unit of measurement")
	}
	for _, unit := range []domain.QuantityUnit{domain.UnitTonnes, domain.UnitKilograms, domain.UnitLitres, domain.UnitCubicMetres} {
		if strings.EqualFold(value, string(unit)) {
			return unit, nil
		}
	}
	return "", fieldErr(ColumnUnit, ErrorKindInvalid,
		"The unit of measurement must be Tonnes, Kilograms, Litres or Cubic Metres")
}

func validateCollectionDate(raw string, today time.Time) (time.Time, *FieldError) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fieldErr(ColumnCollectionDate, ErrorKindEmpty, "Enter a collection date")
	}

	var parsed time.Time
	var err error
	for _, layout := range dateLayouts {
		parsed, err = time.Parse(layout, value)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fieldErr(ColumnCollectionDate, ErrorKindInvalid,
			"Enter the collection date in the format DD/MM/YYYY")
	}

	startOfToday := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if parsed.Before(startOfToday) {
		return time.Time{}, fieldErr(ColumnCollectionDate, ErrorKindInvalid,
			"The collection date must be today or in the future")
	}
	return parsed, nil
}
