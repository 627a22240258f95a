package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wastetrack/bulk-movements/internal/validation"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Row is one non-empty data row together with its 1-based position in the
// source file, counted from the first row after the header. Skipped empty
// rows still advance the position so error reports point at the row the
// user sees in their file.
type Row struct {
	Number int
	Cells  []string
}

// Table is a parsed upload: header refs resolved to canonical column names
// plus the raw data rows.
type Table struct {
	// Columns maps a column index to its canonical ref. Unrecognized
	// columns are absent and ignored downstream.
	Columns map[int]string
	Rows    []Row
}

// SupportedFormat reports whether the file extension can be parsed.
func SupportedFormat(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}

// ParseTable reads an uploaded CSV or XLSX payload into a Table.
func ParseTable(fileName string, payload []byte) (Table, error) {
	var records [][]string
	var err error

	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		records, err = parseCSV(payload)
	case ".xlsx":
		records, err = parseExcel(payload)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Table{}, err
	}

	return normalizeTable(records)
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func normalizeTable(records [][]string) (Table, error) {
	var headerRow []string
	var dataRows []Row
	position := 0

	for _, row := range records {
		if headerRow == nil {
			if isEmptyRow(row) {
				continue
			}
			headerRow = row
			continue
		}
		position++
		if isEmptyRow(row) {
			continue
		}
		dataRows = append(dataRows, Row{Number: position, Cells: row})
	}

	if headerRow == nil {
		return Table{}, errors.New("no header row detected")
	}

	columns := resolveColumns(headerRow)
	if len(columns) == 0 {
		return Table{}, errors.New("no recognized columns in header row")
	}

	for i := range dataRows {
		dataRows[i].Cells = padRow(dataRows[i].Cells, len(headerRow))
	}

	return Table{Columns: columns, Rows: dataRows}, nil
}

// resolveColumns matches raw header labels to canonical column refs,
// ignoring case, spaces and punctuation ("Waste Code" -> wasteCode).
func resolveColumns(headerRow []string) map[int]string {
	canonical := make(map[string]string, len(validation.ColumnRefs))
	for _, ref := range validation.ColumnRefs {
		canonical[foldHeader(ref)] = ref
	}
	// Common long-form labels used in upload templates.
	canonical[foldHeader("unique reference")] = validation.ColumnReference
	canonical[foldHeader("european waste catalogue codes")] = validation.ColumnEWCCodes
	canonical[foldHeader("waste description")] = validation.ColumnDescription
	canonical[foldHeader("waste quantity")] = validation.ColumnQuantity
	canonical[foldHeader("quantity unit")] = validation.ColumnUnit

	columns := make(map[int]string)
	seen := make(map[string]bool)
	for idx, label := range headerRow {
		ref, ok := canonical[foldHeader(label)]
		if !ok || seen[ref] {
			continue
		}
		columns[idx] = ref
		seen[ref] = true
	}
	return columns
}

func foldHeader(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RowValues projects one data row into a canonical ref -> raw value map.
func (t Table) RowValues(row Row) map[string]string {
	values := make(map[string]string, len(t.Columns))
	for idx, ref := range t.Columns {
		if idx < len(row.Cells) {
			values[ref] = row.Cells[idx]
		}
	}
	return values
}

// MissingColumns returns the required canonical refs absent from the
// header, in declaration order.
func (t Table) MissingColumns() []string {
	present := make(map[string]bool, len(t.Columns))
	for _, ref := range t.Columns {
		present[ref] = true
	}

	var missing []string
	for _, ref := range validation.ColumnRefs {
		if !present[ref] {
			missing = append(missing, ref)
		}
	}
	return missing
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
